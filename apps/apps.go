// Package apps holds the builtin app images: Go programs compiled into the
// kernel and Lua scripts embedded next to them.
package apps

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"ember/kernel/loader"
)

// ErrUnknownApp is returned for names with no builtin image.
var ErrUnknownApp = errors.New("unknown builtin app")

//go:embed lua/*.lua
var luaFS embed.FS

var goApps = map[string]func(name string) loader.Image{
	"power_3":  func(name string) loader.Image { return loader.NewGoImage(name, power(3)) },
	"power_5":  func(name string) loader.Image { return loader.NewGoImage(name, power(5)) },
	"power_7":  func(name string) loader.Image { return loader.NewGoImage(name, power(7)) },
	"sleep":    func(name string) loader.Image { return loader.NewGoImage(name, sleep) },
	"taskinfo": func(name string) loader.Image { return loader.NewGoImage(name, taskInfo) },
	"hello":    func(name string) loader.Image { return loader.NewGoImage(name, hello) },
}

// Names lists every builtin, Go apps and embedded Lua scripts, sorted.
func Names() []string {
	names := make([]string, 0, len(goApps))
	for name := range goApps {
		names = append(names, name)
	}
	entries, _ := luaFS.ReadDir("lua")
	for _, e := range entries {
		names = append(names, luaName(e.Name()))
	}
	sort.Strings(names)
	return names
}

// Lookup returns a fresh image of builtin app builtin, named name.
func Lookup(name, builtin string) (loader.Image, error) {
	if mk, ok := goApps[builtin]; ok {
		return mk(name), nil
	}
	if script, ok := strings.CutPrefix(builtin, "lua_"); ok {
		src, err := luaFS.ReadFile(path.Join("lua", script+".lua"))
		if err == nil {
			img, err := loader.NewLuaImage(name, string(src))
			if err != nil {
				return nil, err
			}
			return img, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", builtin, ErrUnknownApp)
}

// Default is the app set booted when no manifest names one.
func Default() []string {
	return []string{"power_3", "power_5", "power_7", "sleep", "taskinfo"}
}

func luaName(file string) string {
	return "lua_" + strings.TrimSuffix(file, ".lua")
}

package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ember/apps"
	"ember/hal"
	"ember/internal/config"
	"ember/kernel"
)

func newTestHAL() hal.HAL {
	return hal.NewHost(hal.HostConfig{Width: 160, Height: 120, LogOutput: io.Discard})
}

// runToHalt steps s until it shuts down.
func runToHalt(t *testing.T, s *System) {
	t.Helper()
	s.Start()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		err := s.Step()
		if errors.Is(err, hal.ErrShutdown) {
			return
		}
		if err != nil {
			t.Fatalf("Step() error = %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("system did not halt")
}

func TestBootRunsDefaultAppsToHalt(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.AcctPath = ":memory:"

	var out bytes.Buffer
	s, err := Boot(ctx, newTestHAL(), cfg, nil, WithEcho(&out))
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	defer s.Close()

	if got := len(s.Loaded()); got != len(apps.Default()) {
		t.Fatalf("loaded %d apps, want %d", got, len(apps.Default()))
	}
	runToHalt(t, s)

	for _, task := range s.Tasks() {
		if task.Status != kernel.Exited || task.ExitCode != 0 {
			t.Fatalf("%s = %s/%d, want exited/0\n%s", task.Name, task.Status, task.ExitCode, out.String())
		}
	}
	for _, want := range []string{"apps loaded", "Test power_7 OK!", "Test sleep OK!", "Test task info OK!"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}
	if err := s.Step(); !errors.Is(err, hal.ErrShutdown) {
		t.Fatalf("Step() after halt = %v, want ErrShutdown", err)
	}

	exits, err := s.journal.Exits(ctx, s.BootID())
	if err != nil {
		t.Fatalf("Exits() error = %v", err)
	}
	if len(exits) != len(apps.Default()) {
		t.Fatalf("journal has %d exits, want %d", len(exits), len(apps.Default()))
	}
	boots, err := s.journal.Boots(ctx)
	if err != nil {
		t.Fatalf("Boots() error = %v", err)
	}
	if len(boots) != 1 || boots[0].HaltedAt == nil {
		t.Fatalf("boots = %+v, want one halted boot", boots)
	}
	if table := s.Console().Table(); len(table) != len(apps.Default())+1 {
		t.Fatalf("task table has %d lines", len(table))
	}
}

func TestBootManifestWithLuaScript(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "count.lua")
	src := "for i = 1, 3 do print('count ' .. i); sys.yield() end\nsys.exit(9)\n"
	if err := os.WriteFile(script, []byte(src), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.TimeSliceMs = 5
	cfg.Apps = []config.AppConfig{
		{Name: "count", Lua: script},
		{Name: "greeter", Builtin: "hello"},
		{Name: "fib", Builtin: "lua_fib"},
	}

	var out bytes.Buffer
	s, err := Boot(context.Background(), newTestHAL(), cfg, nil, WithEcho(&out))
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	defer s.Close()
	runToHalt(t, s)

	tasks := s.Tasks()
	if tasks[0].Name != "count" || tasks[0].ExitCode != 9 {
		t.Fatalf("count task = %s/%d, want count/9", tasks[0].Name, tasks[0].ExitCode)
	}
	for _, want := range []string{"count 3", "Hello, world from greeter!", "fib(20) = 6765"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestBootErrors(t *testing.T) {
	tests := []struct {
		name string
		edit func(*config.Config)
		want error
	}{
		{"unknown builtin", func(c *config.Config) {
			c.Apps = []config.AppConfig{{Name: "x", Builtin: "nope"}}
		}, apps.ErrUnknownApp},
		{"invalid config", func(c *config.Config) { c.RegionBytes = 1 }, config.ErrInvalid},
		{"missing script", func(c *config.Config) {
			c.Apps = []config.AppConfig{{Name: "x", Lua: filepath.Join(t.TempDir(), "missing.lua")}}
		}, os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.edit(&cfg)
			if _, err := Boot(context.Background(), newTestHAL(), cfg, nil); !errors.Is(err, tt.want) {
				t.Fatalf("Boot() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDrawPanicScreen(t *testing.T) {
	fb := newTestHAL().Display().Framebuffer()
	drawPanicScreen(fb, kernel.PanicInfo{TaskID: 2, Value: "unreachable in sys_exit", Stack: []byte("goroutine 7\nmain.go:1\n")})

	buf := fb.Buffer()
	white, dark := 0, 0
	for i := 0; i+1 < len(buf); i += 2 {
		if buf[i] == 0xFF && buf[i+1] == 0xFF {
			white++
		} else {
			dark++
		}
	}
	if white == 0 || dark == 0 {
		t.Fatalf("panic screen has %d white and %d drawn pixels", white, dark)
	}
}

func TestTakeRunes(t *testing.T) {
	tests := []struct {
		in         string
		n          int16
		head, tail string
	}{
		{"hello", 10, "hello", ""},
		{"hello world", 5, "hello", " world"},
		{"héllo", 2, "hé", "llo"},
		{"", 3, "", ""},
	}
	for _, tt := range tests {
		head, tail := takeRunes(tt.in, tt.n)
		if head != tt.head || tail != tt.tail {
			t.Errorf("takeRunes(%q, %d) = %q, %q, want %q, %q", tt.in, tt.n, head, tail, tt.head, tt.tail)
		}
	}
}

package loader

import (
	"fmt"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"ember/kernel/sys"
	"ember/user"
)

// LuaImage is an app written in Lua. It is compiled once at load time and
// runs in a fresh sandboxed state per task.
type LuaImage struct {
	name  string
	proto *lua.FunctionProto
}

// NewLuaImage compiles src.
func NewLuaImage(name, src string) (*LuaImage, error) {
	chunk, err := parse.Parse(strings.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("lua app %q: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("lua app %q: %w", name, err)
	}
	return &LuaImage{name: name, proto: proto}, nil
}

// LoadLuaFile reads and compiles the script at path.
func LoadLuaFile(name, path string) (*LuaImage, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lua app %q: %w", name, err)
	}
	return NewLuaImage(name, string(src))
}

func (li *LuaImage) Name() string { return li.name }

// Run executes the script. A Lua error kills the task with sys.ExitFault.
func (li *LuaImage) Run(env *user.Env) {
	L := newSandbox()
	defer L.Close()

	L.PreloadModule("sys", sysLoader(env))
	if err := L.CallByParam(lua.P{Fn: L.GetGlobal("require"), NRet: 1, Protect: true}, lua.LString("sys")); err != nil {
		panic(fmt.Sprintf("lua app %q: %v", li.name, err))
	}
	L.SetGlobal("sys", L.Get(-1))
	L.Pop(1)
	L.SetGlobal("print", L.NewFunction(luaPrint(env)))

	L.Push(L.NewFunctionFromProto(li.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		env.Printf("%s: %v\n", li.name, err)
		panic(fmt.Sprintf("lua app %q: %v", li.name, err))
	}
}

// newSandbox returns a state with only the base, table, string and math
// libraries, and without the file loaders.
func newSandbox() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}
	if pkg, ok := L.GetGlobal("package").(*lua.LTable); ok {
		L.SetField(pkg, "path", lua.LString(""))
		L.SetField(pkg, "cpath", lua.LString(""))
	}
	return L
}

// sysLoader builds the sys module bound to env.
func sysLoader(env *user.Env) lua.LGFunction {
	return func(L *lua.LState) int {
		mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
			"write": func(L *lua.LState) int {
				L.Push(lua.LNumber(env.Write([]byte(L.CheckString(1)))))
				return 1
			},
			"yield": func(L *lua.LState) int {
				L.Push(lua.LNumber(env.Yield()))
				return 1
			},
			"exit": func(L *lua.LState) int {
				env.Exit(int32(L.OptInt(1, 0)))
				return 0
			},
			"get_time": func(L *lua.LState) int {
				tv, ret := env.GetTime()
				if ret != 0 {
					L.Push(lua.LNil)
					L.Push(lua.LNumber(ret))
					return 2
				}
				L.Push(lua.LNumber(tv.Sec))
				L.Push(lua.LNumber(tv.Usec))
				return 2
			},
			"get_time_ms": func(L *lua.LState) int {
				L.Push(lua.LNumber(env.GetTimeMs()))
				return 1
			},
			"task_info": func(L *lua.LState) int {
				ti, ret := env.TaskInfo()
				if ret != 0 {
					L.Push(lua.LNil)
					return 1
				}
				L.Push(taskInfoTable(L, ti))
				return 1
			},
			"sleep": func(L *lua.LState) int {
				env.Sleep(int64(L.CheckInt(1)))
				return 0
			},
		})
		for name, id := range map[string]int{
			"WRITE":     sys.SyscallWrite,
			"EXIT":      sys.SyscallExit,
			"YIELD":     sys.SyscallYield,
			"GET_TIME":  sys.SyscallGetTime,
			"TASK_INFO": sys.SyscallTaskInfo,
		} {
			L.SetField(mod, name, lua.LNumber(id))
		}
		L.Push(mod)
		return 1
	}
}

// taskInfoTable converts ti to {status, time, syscall_times}, keeping only
// non-zero counters keyed by syscall id.
func taskInfoTable(L *lua.LState, ti sys.TaskInfo) *lua.LTable {
	times := L.NewTable()
	for id, n := range ti.SyscallTimes {
		if n != 0 {
			times.RawSetInt(id, lua.LNumber(n))
		}
	}
	t := L.NewTable()
	t.RawSetString("status", lua.LString(ti.Status.String()))
	t.RawSetString("time", lua.LNumber(ti.Time))
	t.RawSetString("syscall_times", times)
	return t
}

// luaPrint writes its arguments to stdout, tab separated.
func luaPrint(env *user.Env) lua.LGFunction {
	return func(L *lua.LState) int {
		var sb strings.Builder
		for i := 1; i <= L.GetTop(); i++ {
			if i > 1 {
				sb.WriteByte('\t')
			}
			sb.WriteString(L.ToStringMeta(L.Get(i)).String())
		}
		sb.WriteByte('\n')
		env.Write([]byte(sb.String()))
		return 0
	}
}

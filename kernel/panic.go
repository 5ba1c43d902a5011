package kernel

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// PanicInfo contains details about a kernel panic.
type PanicInfo struct {
	TaskID int
	Value  any
	Stack  []byte
}

var (
	panicActive atomic.Bool
	panicOnce   sync.Once

	panicHandler atomic.Value // func(PanicInfo)
)

// InPanicMode reports whether the kernel is in panic mode.
func InPanicMode() bool {
	return panicActive.Load()
}

// SetPanicHandler installs a process-wide panic handler.
//
// The handler is invoked at most once (on the first panic). It must not panic.
func SetPanicHandler(fn func(PanicInfo)) {
	panicHandler.Store(fn)
}

// Fatal reports a broken kernel invariant while task is current. It enters
// panic mode, runs the panic handler and panics with v.
func Fatal(task int, v any) {
	triggerPanic(PanicInfo{TaskID: task, Value: v})
	panic(v)
}

func triggerPanic(info PanicInfo) {
	panicOnce.Do(func() {
		panicActive.Store(true)
		info.Stack = debug.Stack()
		if v := panicHandler.Load(); v != nil {
			if fn, ok := v.(func(PanicInfo)); ok && fn != nil {
				fn(info)
			}
		}
	})
}

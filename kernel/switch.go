package kernel

import "runtime"

// TaskContext is the saved execution state of a task that is off the CPU.
//
// Its contents are only meaningful to the Switcher that prepared it.
type TaskContext struct {
	resume  chan struct{}
	entry   func()
	started bool

	// then is set by Abandon and consulted once the context's stack has
	// unwound.
	then func() *TaskContext
}

// Switcher performs the low-level hand-off between task contexts.
type Switcher interface {
	// Prepare initialises cx so that the first switch into it runs entry.
	// A nil entry prepares a context for the calling goroutine itself.
	Prepare(cx *TaskContext, entry func())
	// Switch saves the caller into current and resumes next. It returns when
	// current is switched back in.
	Switch(current, next *TaskContext)
	// Abandon discards current, which must be the caller. Once nothing of
	// current is left to run, pick chooses the context to resume. It does
	// not return.
	Abandon(current *TaskContext, pick func() *TaskContext)
}

// GoSwitcher runs each task on its own goroutine and passes a single baton
// between them: a context only runs after receiving on its resume channel,
// and the sender parks right after handing it over.
//
// An abandoned goroutine runs its pending deferred calls before the baton
// moves on.
type GoSwitcher struct{}

var _ Switcher = GoSwitcher{}

func (GoSwitcher) Prepare(cx *TaskContext, entry func()) {
	cx.resume = make(chan struct{}, 1)
	cx.entry = entry
	cx.started = entry == nil
	cx.then = nil
}

func (GoSwitcher) Switch(current, next *TaskContext) {
	resume(next)
	<-current.resume
}

func (GoSwitcher) Abandon(current *TaskContext, pick func() *TaskContext) {
	current.then = pick
	runtime.Goexit()
}

func resume(cx *TaskContext) {
	if !cx.started {
		cx.started = true
		go start(cx)
		return
	}
	cx.resume <- struct{}{}
}

// start is the bottom frame of every task goroutine.
func start(cx *TaskContext) {
	defer func() {
		pick := cx.then
		if pick == nil {
			return
		}
		cx.then = nil
		resume(pick())
	}()
	cx.entry()
}

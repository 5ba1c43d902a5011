package kernel

import (
	"fmt"
	"log/slog"
	"sync"
)

// ExitObserver is told about every task that exits, after its status is final.
type ExitObserver func(TaskSnapshot)

// Option configures a TaskManager.
type Option func(*TaskManager)

// WithLogger sets the kernel logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *TaskManager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithExitObserver installs fn as the exit observer.
func WithExitObserver(fn ExitObserver) Option {
	return func(m *TaskManager) { m.onExit = fn }
}

// TaskManager owns every TCB and the index of the running task.
//
// All access to tasks and current goes through mu. mu is never held across a
// context switch or a call out of the manager.
type TaskManager struct {
	mu        sync.Mutex
	tasks     [MaxAppNum]TaskControlBlock
	taskCount int
	current   int
	started   bool

	sliceStart uint64

	// boot is where Run parks while tasks execute; switching back into it
	// halts the task set.
	boot TaskContext

	switcher Switcher
	clock    Clock
	log      *slog.Logger
	onExit   ExitObserver
}

// NewTaskManager returns an empty manager.
func NewTaskManager(clock Clock, sw Switcher, opts ...Option) *TaskManager {
	if sw == nil {
		sw = GoSwitcher{}
	}
	m := &TaskManager{
		switcher: sw,
		clock:    clock,
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddTask loads a task into the next free slot and returns its id.
//
// The TCB starts UnInit with a fresh info block and becomes Ready once its
// context is prepared. If entry returns, the task exits with code 0.
func (m *TaskManager) AddTask(name string, entry func()) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return -1, ErrStarted
	}
	if m.taskCount >= MaxAppNum {
		return -1, fmt.Errorf("load %q: %w", name, ErrTooManyTasks)
	}

	id := m.taskCount
	m.taskCount++
	m.tasks[id] = newTaskControlBlock(name, m.clock)
	t := &m.tasks[id]
	m.switcher.Prepare(&t.Cx, func() {
		entry()
		m.ExitCurrentAndRunNext(0)
	})
	m.transition(id, Ready)
	return id, nil
}

// NumTasks returns the number of loaded tasks.
func (m *TaskManager) NumTasks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.taskCount
}

// Run switches into the first ready task and returns once no task is left
// to schedule.
func (m *TaskManager) Run() error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrStarted
	}
	if m.taskCount == 0 {
		m.mu.Unlock()
		return ErrNoTasks
	}
	m.started = true
	m.switcher.Prepare(&m.boot, nil)

	next, ok := m.findNextTask(m.taskCount - 1)
	if !ok {
		m.mu.Unlock()
		return nil
	}
	t := &m.tasks[next]
	m.transition(next, Running)
	m.current = next
	name := t.Name
	m.mu.Unlock()

	m.sliceStarted()
	m.log.Info("running first task", "task", next, "name", name)
	m.switcher.Switch(&m.boot, &t.Cx)
	m.log.Info("all applications completed")
	return nil
}

// CurrentTask returns the index of the running task.
func (m *TaskManager) CurrentTask() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// CurrentInfo copies the running task's status and info block.
func (m *TaskManager) CurrentInfo() TaskSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[m.current].snapshot(m.current)
}

// Tasks copies every loaded TCB.
func (m *TaskManager) Tasks() []TaskSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TaskSnapshot, m.taskCount)
	for i := 0; i < m.taskCount; i++ {
		out[i] = m.tasks[i].snapshot(i)
	}
	return out
}

// RecordSyscall counts one invocation of id against the running task.
func (m *TaskManager) RecordSyscall(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[m.current].Info.IncrementSyscallTimes(id, 1)
}

// SliceExpired reports whether the running task has held the CPU for at
// least sliceMs. A zero slice never expires.
func (m *TaskManager) SliceExpired(sliceMs uint64) bool {
	if sliceMs == 0 || m.clock == nil {
		return false
	}
	m.mu.Lock()
	start := m.sliceStart
	m.mu.Unlock()
	return m.clock.Millis()-start >= sliceMs
}

// MarkCurrentSuspended moves the running task back to Ready.
func (m *TaskManager) MarkCurrentSuspended() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transition(m.current, Ready)
}

// MarkCurrentExited records code and moves the running task to Exited.
func (m *TaskManager) MarkCurrentExited(code int32) TaskSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &m.tasks[m.current]
	t.ExitCode = code
	m.transition(m.current, Exited)
	return t.snapshot(m.current)
}

// SuspendCurrentAndRunNext yields the CPU. It returns once the caller is
// scheduled again.
func (m *TaskManager) SuspendCurrentAndRunNext() {
	m.MarkCurrentSuspended()
	from := m.currentContext()
	to := m.scheduleNext()
	if to == from {
		return
	}
	m.switcher.Switch(from, to)
}

// ExitCurrentAndRunNext terminates the running task and schedules the next
// one. The exiting task stays current until its stack has unwound. With a
// real Switcher it does not return.
func (m *TaskManager) ExitCurrentAndRunNext(code int32) {
	if m.CurrentStatus() == Exited {
		// Deferred code of an exiting task asked again.
		m.switcher.Abandon(m.currentContext(), m.scheduleNext)
		return
	}
	snap := m.MarkCurrentExited(code)
	m.log.Info("[kernel] application exited", "task", snap.ID, "name", snap.Name, "code", code)
	if m.onExit != nil {
		m.onExit(snap)
	}
	m.switcher.Abandon(m.currentContext(), m.scheduleNext)
}

// CurrentStatus returns the status of the task in the current slot.
func (m *TaskManager) CurrentStatus() TaskStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[m.current].Status
}

func (m *TaskManager) currentContext() *TaskContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &m.tasks[m.current].Cx
}

// scheduleNext picks the next ready task round-robin, marks it running and
// returns its context. When nothing is ready it returns the boot context,
// which halts Run.
func (m *TaskManager) scheduleNext() *TaskContext {
	m.mu.Lock()
	prev := m.current
	next, ok := m.findNextTask(prev)
	if !ok {
		m.mu.Unlock()
		m.log.Debug("no runnable task, halting", "last", prev)
		return &m.boot
	}
	m.transition(next, Running)
	m.current = next
	to := &m.tasks[next].Cx
	m.mu.Unlock()

	m.sliceStarted()
	if next != prev {
		m.log.Debug("switch", "from", prev, "to", next)
	}
	return to
}

// findNextTask scans the slots after from, wrapping around, and returns the
// first Ready one. from itself is checked last. Callers hold mu.
func (m *TaskManager) findNextTask(from int) (int, bool) {
	for i := 1; i <= m.taskCount; i++ {
		id := (from + i) % m.taskCount
		if m.tasks[id].Status == Ready {
			return id, true
		}
	}
	return 0, false
}

// transition applies a lifecycle step to task id. Callers hold mu.
func (m *TaskManager) transition(id int, next TaskStatus) {
	t := &m.tasks[id]
	if !t.Status.canBecome(next) {
		Fatal(id, fmt.Sprintf("task %d (%s): illegal transition %s -> %s", id, t.Name, t.Status, next))
	}
	t.Status = next
}

func (m *TaskManager) sliceStarted() {
	if m.clock == nil {
		return
	}
	now := m.clock.Millis()
	m.mu.Lock()
	m.sliceStart = now
	m.mu.Unlock()
}

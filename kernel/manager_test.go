package kernel

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

type fakeClock struct {
	us uint64
}

func (c *fakeClock) Micros() uint64 { return c.us }
func (c *fakeClock) Millis() uint64 { return c.us / 1000 }

func (c *fakeClock) advanceMs(ms uint64) { c.us += ms * 1000 }

type switchCall struct {
	from    *TaskContext
	to      *TaskContext
	abandon bool
}

// recordingSwitcher records hand-offs and returns immediately, so a test can
// play the part of whichever task is current.
type recordingSwitcher struct {
	calls []switchCall
}

func (r *recordingSwitcher) Prepare(cx *TaskContext, entry func()) {
	cx.entry = entry
	cx.started = entry == nil
}

func (r *recordingSwitcher) Switch(current, next *TaskContext) {
	r.calls = append(r.calls, switchCall{from: current, to: next})
}

func (r *recordingSwitcher) Abandon(current *TaskContext, pick func() *TaskContext) {
	r.calls = append(r.calls, switchCall{from: current, to: pick(), abandon: true})
}

func (r *recordingSwitcher) last(t *testing.T) switchCall {
	t.Helper()
	if len(r.calls) == 0 {
		t.Fatal("no context switch recorded")
	}
	return r.calls[len(r.calls)-1]
}

func newRecordingManager(t *testing.T, n int) (*TaskManager, *recordingSwitcher, *fakeClock) {
	t.Helper()
	clock := &fakeClock{}
	sw := &recordingSwitcher{}
	m := NewTaskManager(clock, sw)
	for i := 0; i < n; i++ {
		if _, err := m.AddTask(fmt.Sprintf("app%d", i), func() {}); err != nil {
			t.Fatalf("AddTask(%d) error = %v", i, err)
		}
	}
	return m, sw, clock
}

func resetPanicMode() {
	panicOnce = sync.Once{}
	panicActive.Store(false)
	panicHandler.Store(func(PanicInfo) {})
}

func statusOf(m *TaskManager, id int) TaskStatus {
	return m.Tasks()[id].Status
}

func TestTaskStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to TaskStatus
		want     bool
	}{
		{UnInit, Ready, true},
		{UnInit, Running, false},
		{Ready, Running, true},
		{Ready, Exited, false},
		{Running, Ready, true},
		{Running, Exited, true},
		{Running, UnInit, false},
		{Exited, Ready, false},
		{Exited, Running, false},
		{Exited, UnInit, false},
	}
	for _, tt := range tests {
		if got := tt.from.canBecome(tt.to); got != tt.want {
			t.Errorf("%s -> %s allowed = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestAddTaskPreparesReadyTask(t *testing.T) {
	clock := &fakeClock{}
	clock.advanceMs(42)
	m := NewTaskManager(clock, &recordingSwitcher{})

	id, err := m.AddTask("hello", func() {})
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if id != 0 {
		t.Fatalf("AddTask() id = %d, want 0", id)
	}

	snap := m.Tasks()[0]
	if snap.Status != Ready {
		t.Fatalf("status = %s, want ready", snap.Status)
	}
	if snap.StartTime != 42 {
		t.Fatalf("start time = %d, want 42", snap.StartTime)
	}
	if snap.Name != "hello" {
		t.Fatalf("name = %q, want hello", snap.Name)
	}
	if snap.SyscallTotal() != 0 {
		t.Fatalf("syscall total = %d, want 0", snap.SyscallTotal())
	}
}

func TestAddTaskCapacity(t *testing.T) {
	m, _, _ := newRecordingManager(t, MaxAppNum)

	if _, err := m.AddTask("overflow", func() {}); !errors.Is(err, ErrTooManyTasks) {
		t.Fatalf("AddTask() error = %v, want ErrTooManyTasks", err)
	}
	if got := m.NumTasks(); got != MaxAppNum {
		t.Fatalf("NumTasks() = %d, want %d", got, MaxAppNum)
	}
}

func TestAddTaskAfterRun(t *testing.T) {
	m, _, _ := newRecordingManager(t, 1)
	if err := m.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := m.AddTask("late", func() {}); !errors.Is(err, ErrStarted) {
		t.Fatalf("AddTask() error = %v, want ErrStarted", err)
	}
	if err := m.Run(); !errors.Is(err, ErrStarted) {
		t.Fatalf("second Run() error = %v, want ErrStarted", err)
	}
}

func TestRunWithoutTasks(t *testing.T) {
	m := NewTaskManager(&fakeClock{}, &recordingSwitcher{})
	if err := m.Run(); !errors.Is(err, ErrNoTasks) {
		t.Fatalf("Run() error = %v, want ErrNoTasks", err)
	}
}

func TestRunStartsFirstSlot(t *testing.T) {
	m, sw, _ := newRecordingManager(t, 3)
	if err := m.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	call := sw.last(t)
	if call.from != &m.boot || call.to != &m.tasks[0].Cx {
		t.Fatal("Run() did not switch from the boot context into task 0")
	}
	if got := m.CurrentTask(); got != 0 {
		t.Fatalf("CurrentTask() = %d, want 0", got)
	}
	if got := statusOf(m, 0); got != Running {
		t.Fatalf("task 0 status = %s, want running", got)
	}
	for id := 1; id < 3; id++ {
		if got := statusOf(m, id); got != Ready {
			t.Fatalf("task %d status = %s, want ready", id, got)
		}
	}
}

func TestYieldThenExitHandsBack(t *testing.T) {
	m, sw, _ := newRecordingManager(t, 2)
	if err := m.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Task 0 yields.
	m.SuspendCurrentAndRunNext()
	if got := statusOf(m, 0); got != Ready {
		t.Fatalf("task 0 status = %s, want ready", got)
	}
	if got := statusOf(m, 1); got != Running {
		t.Fatalf("task 1 status = %s, want running", got)
	}
	if got := m.CurrentTask(); got != 1 {
		t.Fatalf("CurrentTask() = %d, want 1", got)
	}
	call := sw.last(t)
	if call.abandon || call.from != &m.tasks[0].Cx || call.to != &m.tasks[1].Cx {
		t.Fatal("yield did not switch 0 -> 1")
	}

	// Task 1 exits.
	m.ExitCurrentAndRunNext(0)
	if got := statusOf(m, 1); got != Exited {
		t.Fatalf("task 1 status = %s, want exited", got)
	}
	if got := statusOf(m, 0); got != Running {
		t.Fatalf("task 0 status = %s, want running", got)
	}
	if got := m.CurrentTask(); got != 0 {
		t.Fatalf("CurrentTask() = %d, want 0", got)
	}
	call = sw.last(t)
	if !call.abandon || call.to != &m.tasks[0].Cx {
		t.Fatal("exit did not abandon task 1 for task 0")
	}
}

func TestRoundRobinNoStarvation(t *testing.T) {
	const n = 4
	m, _, _ := newRecordingManager(t, n)
	if err := m.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for round := 0; round < 3; round++ {
		seen := make(map[int]bool)
		for i := 0; i < n; i++ {
			seen[m.CurrentTask()] = true
			m.SuspendCurrentAndRunNext()
		}
		if len(seen) != n {
			t.Fatalf("round %d: %d distinct tasks ran, want %d", round, len(seen), n)
		}
	}
}

func TestExitedTaskNeverRescheduled(t *testing.T) {
	m, _, _ := newRecordingManager(t, 3)
	if err := m.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	m.SuspendCurrentAndRunNext() // 0 -> 1
	m.ExitCurrentAndRunNext(7)   // 1 exits -> 2

	for i := 0; i < 10; i++ {
		if got := m.CurrentTask(); got == 1 {
			t.Fatalf("exited task 1 scheduled again at step %d", i)
		}
		m.SuspendCurrentAndRunNext()
	}
	snap := m.Tasks()[1]
	if snap.Status != Exited || snap.ExitCode != 7 {
		t.Fatalf("task 1 = %s/%d, want exited/7", snap.Status, snap.ExitCode)
	}
}

func TestYieldWithSingleTaskKeepsRunning(t *testing.T) {
	m, sw, _ := newRecordingManager(t, 1)
	if err := m.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	before := len(sw.calls)

	m.SuspendCurrentAndRunNext()

	if got := statusOf(m, 0); got != Running {
		t.Fatalf("task 0 status = %s, want running", got)
	}
	if len(sw.calls) != before {
		t.Fatalf("yield of the only task switched contexts")
	}
}

func TestHaltWhenAllExited(t *testing.T) {
	m, sw, _ := newRecordingManager(t, 2)
	var exited []int
	m.onExit = func(s TaskSnapshot) { exited = append(exited, s.ID) }
	if err := m.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	m.ExitCurrentAndRunNext(0)
	m.ExitCurrentAndRunNext(1)

	call := sw.last(t)
	if !call.abandon || call.to != &m.boot {
		t.Fatal("last exit did not resume the boot context")
	}
	if len(exited) != 2 || exited[0] != 0 || exited[1] != 1 {
		t.Fatalf("exit observer saw %v, want [0 1]", exited)
	}
}

func TestRecordSyscallCountsCurrentTask(t *testing.T) {
	m, _, _ := newRecordingManager(t, 2)
	if err := m.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := m.RecordSyscall(169); err != nil {
			t.Fatalf("RecordSyscall() error = %v", err)
		}
	}
	m.SuspendCurrentAndRunNext()
	if err := m.RecordSyscall(124); err != nil {
		t.Fatalf("RecordSyscall() error = %v", err)
	}

	tasks := m.Tasks()
	if got := tasks[0].SyscallTimes[169]; got != 3 {
		t.Fatalf("task 0 get_time count = %d, want 3", got)
	}
	if got := tasks[1].SyscallTimes[124]; got != 1 {
		t.Fatalf("task 1 yield count = %d, want 1", got)
	}
	if got := tasks[1].SyscallTimes[169]; got != 0 {
		t.Fatalf("task 1 get_time count = %d, want 0", got)
	}

	if err := m.RecordSyscall(MaxSyscallNum); !errors.Is(err, ErrSyscallID) {
		t.Fatalf("RecordSyscall(MaxSyscallNum) error = %v, want ErrSyscallID", err)
	}
}

func TestCurrentInfoIsACopy(t *testing.T) {
	m, _, _ := newRecordingManager(t, 1)
	if err := m.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	info := m.CurrentInfo()
	info.SyscallTimes[1] = 99

	if got := m.CurrentInfo().SyscallTimes[1]; got != 0 {
		t.Fatalf("manager counter = %d after mutating snapshot, want 0", got)
	}
}

func TestSliceExpired(t *testing.T) {
	m, _, clock := newRecordingManager(t, 2)
	if err := m.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if m.SliceExpired(0) {
		t.Fatal("zero slice reported expired")
	}
	clock.advanceMs(9)
	if m.SliceExpired(10) {
		t.Fatal("slice expired after 9ms of 10ms")
	}
	clock.advanceMs(1)
	if !m.SliceExpired(10) {
		t.Fatal("slice not expired after 10ms")
	}
	m.SuspendCurrentAndRunNext()
	if m.SliceExpired(10) {
		t.Fatal("slice not restarted after switch")
	}
}

func TestIllegalTransitionIsFatal(t *testing.T) {
	resetPanicMode()
	var got PanicInfo
	SetPanicHandler(func(info PanicInfo) { got = info })
	t.Cleanup(resetPanicMode)

	m, _, _ := newRecordingManager(t, 1)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on ready -> ready")
		}
		if !InPanicMode() {
			t.Fatal("kernel not in panic mode")
		}
		if got.TaskID != 0 || len(got.Stack) == 0 {
			t.Fatalf("panic info = task %d, %d stack bytes", got.TaskID, len(got.Stack))
		}
	}()
	// Task 0 is Ready, not Running: suspending it is a kernel bug.
	m.MarkCurrentSuspended()
}

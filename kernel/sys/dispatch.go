package sys

import (
	"fmt"
	"log/slog"

	"ember/kernel"
	"ember/kernel/mm"
)

// Dispatcher is the trap entry for user code.
//
// Every call is counted against the current task before its handler runs.
// A call that fails the counter or pointer checks, or has no handler, kills
// the calling task.
type Dispatcher struct {
	p           *Process
	timeSliceMs uint64
	log         *slog.Logger
}

// NewDispatcher returns a dispatcher for p. A non-zero timeSliceMs preempts
// the current task at syscall return once it has run that long.
func NewDispatcher(p *Process, timeSliceMs uint64) *Dispatcher {
	return &Dispatcher{p: p, timeSliceMs: timeSliceMs, log: p.log}
}

// Syscall performs syscall id with up to three word arguments.
func (d *Dispatcher) Syscall(id uint64, args [3]uint64) int64 {
	if d.p.tm.CurrentStatus() == kernel.Exited {
		return d.afterExit(id, args)
	}
	if err := d.p.tm.RecordSyscall(id); err != nil {
		d.fault(id, err)
	}

	ret, err := d.dispatch(id, args)
	if err != nil {
		d.fault(id, err)
	}

	if d.p.tm.SliceExpired(d.timeSliceMs) {
		d.log.Debug("time slice expired", "task", d.p.tm.CurrentTask())
		d.p.tm.SuspendCurrentAndRunNext()
	}
	return ret
}

func (d *Dispatcher) dispatch(id uint64, args [3]uint64) (int64, error) {
	switch id {
	case SyscallWrite:
		return d.p.Write(args[0], mm.VirtAddr(args[1]), args[2])
	case SyscallExit:
		d.p.Exit(int32(args[0]))
		return 0, nil
	case SyscallYield:
		return d.p.Yield(), nil
	case SyscallGetTime:
		return d.p.GetTime(mm.VirtAddr(args[0]), args[1])
	case SyscallTaskInfo:
		return d.p.TaskInfo(mm.VirtAddr(args[0]))
	default:
		return -1, fmt.Errorf("syscall %d: %w", id, ErrUnknownSyscall)
	}
}

// afterExit serves calls made by deferred code of a task that is already
// exiting. They are not counted, and only exit has an effect.
func (d *Dispatcher) afterExit(id uint64, args [3]uint64) int64 {
	if id == SyscallExit {
		d.p.Exit(int32(args[0]))
	}
	d.log.Warn("[kernel] syscall from an exited application ignored",
		"task", d.p.tm.CurrentTask(), "syscall", id)
	return -1
}

// fault kills the current task. It does not return.
func (d *Dispatcher) fault(id uint64, err error) {
	d.log.Error("[kernel] bad syscall, kernel killed the application",
		"task", d.p.tm.CurrentTask(), "syscall", id, "err", err)
	d.p.Exit(ExitFault)
}

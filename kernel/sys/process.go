// Package sys implements the process-control syscalls and the trap
// dispatcher that routes user requests to them.
package sys

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"ember/kernel"
	"ember/kernel/mm"
)

// ExitFault is the exit code of a task killed for a bad syscall.
const ExitFault = -1

// maxWriteChunk bounds the kernel buffer used by sys_write.
const maxWriteChunk = 4096

// ErrUnknownSyscall is returned for ids with no handler.
var ErrUnknownSyscall = errors.New("unsupported syscall")

// Process holds the collaborators of the process-control handlers.
type Process struct {
	tm    *kernel.TaskManager
	clock kernel.Clock
	mem   *mm.AddressSpace
	out   io.Writer
	log   *slog.Logger
}

// NewProcess wires the handlers. out receives sys_write output for stdout.
func NewProcess(tm *kernel.TaskManager, clock kernel.Clock, mem *mm.AddressSpace, out io.Writer, log *slog.Logger) *Process {
	if out == nil {
		out = io.Discard
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Process{tm: tm, clock: clock, mem: mem, out: out, log: log}
}

// Exit terminates the current task and schedules the next one. It does not return.
func (p *Process) Exit(code int32) {
	p.log.Debug("kernel: sys_exit", "code", code)
	p.tm.ExitCurrentAndRunNext(code)
	kernel.Fatal(p.tm.CurrentTask(), "unreachable in sys_exit")
}

// Yield gives up the CPU and returns 0 once the caller runs again.
func (p *Process) Yield() int64 {
	p.log.Debug("kernel: sys_yield")
	p.tm.SuspendCurrentAndRunNext()
	return 0
}

// GetTime writes the time since boot to ts. The timezone argument is ignored.
func (p *Process) GetTime(ts mm.VirtAddr, _ uint64) (int64, error) {
	p.log.Debug("kernel: sys_get_time")
	b, err := TimeValFromMicros(p.clock.Micros()).MarshalBinary()
	if err != nil {
		return -1, err
	}
	if err := p.mem.CopyOut(ts, b, wordSize); err != nil {
		return -1, fmt.Errorf("sys_get_time: %w", err)
	}
	return 0, nil
}

// TaskInfo writes the current task's status, syscall counters and age to ti.
//
// The manager lock is only held for the snapshot; the clock read and the
// user copy happen after it is released.
func (p *Process) TaskInfo(ti mm.VirtAddr) (int64, error) {
	p.log.Debug("kernel: sys_task_info")
	snap := p.tm.CurrentInfo()

	info := TaskInfo{
		Status:       snap.Status,
		SyscallTimes: snap.SyscallTimes,
		Time:         p.clock.Millis() - snap.StartTime,
	}
	b, err := info.MarshalBinary()
	if err != nil {
		return -1, err
	}
	if err := p.mem.CopyOut(ti, b, wordSize); err != nil {
		return -1, fmt.Errorf("sys_task_info: %w", err)
	}
	return 0, nil
}

// Write copies n bytes at buf to the console. Only stdout is supported;
// other descriptors return -1. The whole range must lie in one mapped
// region; nothing is written otherwise.
func (p *Process) Write(fd uint64, buf mm.VirtAddr, n uint64) (int64, error) {
	if fd != FdStdout {
		p.log.Warn("kernel: sys_write to unsupported fd", "fd", fd)
		return -1, nil
	}
	if err := p.mem.Check(buf, n); err != nil {
		return -1, fmt.Errorf("sys_write: %w", err)
	}
	chunk := make([]byte, min(n, maxWriteChunk))
	for done := uint64(0); done < n; {
		c := chunk[:min(n-done, maxWriteChunk)]
		if err := p.mem.CopyIn(c, buf+mm.VirtAddr(done)); err != nil {
			return -1, fmt.Errorf("sys_write: %w", err)
		}
		if _, err := p.out.Write(c); err != nil {
			p.log.Warn("kernel: console write failed", "err", err)
		}
		done += uint64(len(c))
	}
	return int64(n), nil
}

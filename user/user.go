// Package user is the library linked into every app: it turns calls into
// syscalls and decodes the results the kernel leaves in app memory.
package user

import (
	"fmt"

	"ember/kernel/mm"
	"ember/kernel/sys"
)

// Trap enters the kernel.
type Trap interface {
	Syscall(id uint64, args [3]uint64) int64
}

// Memory is the app's view of the shared address space.
type Memory interface {
	CopyIn(dst []byte, src mm.VirtAddr) error
	CopyOut(dst mm.VirtAddr, src []byte, align uint64) error
}

// Region layout: results at the start, the write buffer from bufOffset on.
const (
	bufOffset = 2048

	// MinRegionSize is the smallest region an Env can work in.
	MinRegionSize = 4096
)

// Env is one app's handle on the kernel.
type Env struct {
	name   string
	trap   Trap
	mem    Memory
	region mm.Region
}

// NewEnv returns an Env for the app owning region.
func NewEnv(name string, trap Trap, mem Memory, region mm.Region) (*Env, error) {
	if region.Size() < MinRegionSize {
		return nil, fmt.Errorf("app %q: region of %d bytes, need %d", name, region.Size(), MinRegionSize)
	}
	return &Env{name: name, trap: trap, mem: mem, region: region}, nil
}

// Name returns the app name.
func (e *Env) Name() string { return e.name }

func (e *Env) syscall(id uint64, a0, a1, a2 uint64) int64 {
	return e.trap.Syscall(id, [3]uint64{a0, a1, a2})
}

// Write sends p to stdout and returns the number of bytes written or -1.
func (e *Env) Write(p []byte) int64 {
	buf := e.region.Start + bufOffset
	room := e.region.Size() - bufOffset

	var n int64
	for len(p) > 0 {
		chunk := p[:min(uint64(len(p)), room)]
		if err := e.mem.CopyOut(buf, chunk, 1); err != nil {
			return -1
		}
		ret := e.syscall(sys.SyscallWrite, sys.FdStdout, uint64(buf), uint64(len(chunk)))
		if ret < 0 {
			return ret
		}
		n += ret
		p = p[len(chunk):]
	}
	return n
}

// Printf formats to stdout.
func (e *Env) Printf(format string, args ...any) {
	e.Write([]byte(fmt.Sprintf(format, args...)))
}

// Exit terminates the app with code. It does not return.
func (e *Env) Exit(code int32) {
	e.syscall(sys.SyscallExit, uint64(int64(code)), 0, 0)
	panic("sys_exit returned")
}

// Yield gives up the CPU until the scheduler comes back to this app.
func (e *Env) Yield() int64 {
	return e.syscall(sys.SyscallYield, 0, 0, 0)
}

// GetTime returns the time since boot.
func (e *Env) GetTime() (sys.TimeVal, int64) {
	var tv sys.TimeVal
	ret := e.syscall(sys.SyscallGetTime, uint64(e.region.Start), 0, 0)
	if ret != 0 {
		return tv, ret
	}
	b := make([]byte, sys.TimeValSize)
	if err := e.mem.CopyIn(b, e.region.Start); err != nil {
		return tv, -1
	}
	if err := tv.UnmarshalBinary(b); err != nil {
		return tv, -1
	}
	return tv, 0
}

// GetTimeMs returns milliseconds since boot, or -1.
func (e *Env) GetTimeMs() int64 {
	tv, ret := e.GetTime()
	if ret != 0 {
		return -1
	}
	return int64(tv.Sec*1000 + tv.Usec/1000)
}

// TaskInfo returns the kernel's accounting for this app.
func (e *Env) TaskInfo() (sys.TaskInfo, int64) {
	var ti sys.TaskInfo
	ret := e.syscall(sys.SyscallTaskInfo, uint64(e.region.Start), 0, 0)
	if ret != 0 {
		return ti, ret
	}
	b := make([]byte, sys.TaskInfoSize)
	if err := e.mem.CopyIn(b, e.region.Start); err != nil {
		return ti, -1
	}
	if err := ti.UnmarshalBinary(b); err != nil {
		return ti, -1
	}
	return ti, 0
}

// Sleep yields until at least ms milliseconds have passed.
func (e *Env) Sleep(ms int64) {
	start := e.GetTimeMs()
	for e.GetTimeMs() < start+ms {
		e.Yield()
	}
}

package kernel

import "errors"

var (
	// ErrSyscallID is returned for syscall ids outside [0, MaxSyscallNum).
	ErrSyscallID = errors.New("syscall id out of range")

	ErrTooManyTasks = errors.New("no free task slot")
	ErrStarted      = errors.New("task manager already running")
	ErrNoTasks      = errors.New("no tasks loaded")
)

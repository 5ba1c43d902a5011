package sys

import (
	"encoding/binary"
	"fmt"

	"ember/kernel"
)

// Syscall ids of the process-control ABI.
const (
	SyscallWrite    = 64
	SyscallExit     = 93
	SyscallYield    = 124
	SyscallGetTime  = 169
	SyscallTaskInfo = 410
)

// FdStdout is the only file descriptor sys_write accepts.
const FdStdout = 1

// wordSize is the machine word of the ABI; every struct is aligned to it.
const wordSize = 8

// TimeVal is seconds plus microseconds.
type TimeVal struct {
	Sec  uint64
	Usec uint64
}

// TimeValSize is the encoded size of TimeVal.
const TimeValSize = 2 * wordSize

// TimeValFromMicros splits a microsecond count.
func TimeValFromMicros(us uint64) TimeVal {
	return TimeVal{Sec: us / 1_000_000, Usec: us % 1_000_000}
}

// Micros returns the total in microseconds.
func (tv TimeVal) Micros() uint64 { return tv.Sec*1_000_000 + tv.Usec }

// MarshalBinary encodes tv in ABI layout.
func (tv TimeVal) MarshalBinary() ([]byte, error) {
	b := make([]byte, TimeValSize)
	binary.LittleEndian.PutUint64(b[0:], tv.Sec)
	binary.LittleEndian.PutUint64(b[8:], tv.Usec)
	return b, nil
}

// UnmarshalBinary decodes an ABI TimeVal.
func (tv *TimeVal) UnmarshalBinary(b []byte) error {
	if len(b) < TimeValSize {
		return fmt.Errorf("timeval: short buffer (%d bytes)", len(b))
	}
	tv.Sec = binary.LittleEndian.Uint64(b[0:])
	tv.Usec = binary.LittleEndian.Uint64(b[8:])
	return nil
}

// TaskInfo is the result of sys_task_info.
type TaskInfo struct {
	Status       kernel.TaskStatus
	SyscallTimes [kernel.MaxSyscallNum]uint32
	// Time is milliseconds since the task was created.
	Time uint64
}

// Layout of TaskInfo: a status tag padded to the u32 array, then the array,
// then the word-aligned elapsed time.
const (
	taskInfoTimesOff = 4
	taskInfoTimeOff  = (taskInfoTimesOff + 4*kernel.MaxSyscallNum + wordSize - 1) &^ (wordSize - 1)

	// TaskInfoSize is the encoded size of TaskInfo.
	TaskInfoSize = taskInfoTimeOff + wordSize
)

// MarshalBinary encodes ti in ABI layout.
func (ti *TaskInfo) MarshalBinary() ([]byte, error) {
	b := make([]byte, TaskInfoSize)
	b[0] = byte(ti.Status)
	for i, c := range ti.SyscallTimes {
		binary.LittleEndian.PutUint32(b[taskInfoTimesOff+4*i:], c)
	}
	binary.LittleEndian.PutUint64(b[taskInfoTimeOff:], ti.Time)
	return b, nil
}

// UnmarshalBinary decodes an ABI TaskInfo.
func (ti *TaskInfo) UnmarshalBinary(b []byte) error {
	if len(b) < TaskInfoSize {
		return fmt.Errorf("taskinfo: short buffer (%d bytes)", len(b))
	}
	ti.Status = kernel.TaskStatus(b[0])
	for i := range ti.SyscallTimes {
		ti.SyscallTimes[i] = binary.LittleEndian.Uint32(b[taskInfoTimesOff+4*i:])
	}
	ti.Time = binary.LittleEndian.Uint64(b[taskInfoTimeOff:])
	return nil
}

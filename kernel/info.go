package kernel

import "fmt"

// TaskInfoBlock holds per-task instrumentation.
type TaskInfoBlock struct {
	// SyscallTimes counts invocations per syscall id.
	SyscallTimes [MaxSyscallNum]uint32
	// StartTime is the creation time in milliseconds since boot.
	StartTime uint64
}

// NewTaskInfoBlock returns a block with zero counters stamped with the current time.
func NewTaskInfoBlock(clock Clock) TaskInfoBlock {
	var b TaskInfoBlock
	if clock != nil {
		b.StartTime = clock.Millis()
	}
	return b
}

// IncrementSyscallTimes adds delta to the counter for id.
func (b *TaskInfoBlock) IncrementSyscallTimes(id uint64, delta uint32) error {
	if id >= MaxSyscallNum {
		return fmt.Errorf("increment syscall %d: %w", id, ErrSyscallID)
	}
	b.SyscallTimes[id] += delta
	return nil
}

package kernel

// TaskControlBlock is the schedulable state of one task.
//
// TCBs live in the manager's slot table for the whole run; an exited task
// keeps its slot.
type TaskControlBlock struct {
	Status TaskStatus
	Cx     TaskContext
	Info   TaskInfoBlock

	Name     string
	ExitCode int32
}

func newTaskControlBlock(name string, clock Clock) TaskControlBlock {
	return TaskControlBlock{
		Status: UnInit,
		Info:   NewTaskInfoBlock(clock),
		Name:   name,
	}
}

// TaskSnapshot is a copy of a TCB's observable fields.
type TaskSnapshot struct {
	ID           int
	Name         string
	Status       TaskStatus
	SyscallTimes [MaxSyscallNum]uint32
	StartTime    uint64
	ExitCode     int32
}

func (t *TaskControlBlock) snapshot(id int) TaskSnapshot {
	return TaskSnapshot{
		ID:           id,
		Name:         t.Name,
		Status:       t.Status,
		SyscallTimes: t.Info.SyscallTimes,
		StartTime:    t.Info.StartTime,
		ExitCode:     t.ExitCode,
	}
}

// SyscallTotal sums all syscall counters.
func (s TaskSnapshot) SyscallTotal() uint64 {
	var n uint64
	for _, c := range s.SyscallTimes {
		n += uint64(c)
	}
	return n
}

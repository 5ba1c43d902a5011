package kernel

import (
	"errors"
	"testing"
)

func TestNewTaskInfoBlock(t *testing.T) {
	clock := &fakeClock{}
	clock.advanceMs(1500)

	b := NewTaskInfoBlock(clock)
	if b.StartTime != 1500 {
		t.Fatalf("StartTime = %d, want 1500", b.StartTime)
	}
	for id, c := range b.SyscallTimes {
		if c != 0 {
			t.Fatalf("SyscallTimes[%d] = %d, want 0", id, c)
		}
	}
}

func TestIncrementSyscallTimes(t *testing.T) {
	var b TaskInfoBlock

	if err := b.IncrementSyscallTimes(64, 2); err != nil {
		t.Fatalf("IncrementSyscallTimes(64) error = %v", err)
	}
	if err := b.IncrementSyscallTimes(64, 1); err != nil {
		t.Fatalf("IncrementSyscallTimes(64) error = %v", err)
	}
	if err := b.IncrementSyscallTimes(MaxSyscallNum-1, 1); err != nil {
		t.Fatalf("IncrementSyscallTimes(last) error = %v", err)
	}
	if b.SyscallTimes[64] != 3 {
		t.Fatalf("SyscallTimes[64] = %d, want 3", b.SyscallTimes[64])
	}

	for _, id := range []uint64{MaxSyscallNum, MaxSyscallNum + 1, ^uint64(0)} {
		if err := b.IncrementSyscallTimes(id, 1); !errors.Is(err, ErrSyscallID) {
			t.Fatalf("IncrementSyscallTimes(%d) error = %v, want ErrSyscallID", id, err)
		}
	}
}

package kernel

const (
	// MaxSyscallNum bounds syscall identifiers; counters are kept for ids below it.
	MaxSyscallNum = 500

	// MaxAppNum is the number of task slots.
	MaxAppNum = 16
)

// Clock is a monotonic time source counted from boot.
type Clock interface {
	Micros() uint64
	Millis() uint64
}

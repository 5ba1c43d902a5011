package kernel

// TaskStatus is the lifecycle state of a task.
type TaskStatus uint8

const (
	UnInit TaskStatus = iota
	Ready
	Running
	Exited
)

func (s TaskStatus) String() string {
	switch s {
	case UnInit:
		return "uninit"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Exited:
		return "exited"
	default:
		return "unknown"
	}
}

// canBecome reports whether the lifecycle allows moving from s to next.
func (s TaskStatus) canBecome(next TaskStatus) bool {
	switch s {
	case UnInit:
		return next == Ready
	case Ready:
		return next == Running
	case Running:
		return next == Ready || next == Exited
	default:
		return false
	}
}

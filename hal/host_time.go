//go:build !tinygo

package hal

// hostTime turns elapsed clock milliseconds into ticks. A tick that finds
// the channel full is dropped, but its sequence number is still used.
type hostTime struct {
	ch    chan uint64
	clock Clock

	seq     uint64
	mark    uint64 // clock millis at the last step
	started bool
}

func newHostTime(clock Clock) *hostTime {
	return &hostTime{ch: make(chan uint64, 1024), clock: clock}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }
func (t *hostTime) Clock() Clock         { return t.clock }

// step emits one tick per millisecond since the previous step. The first
// step emits first ticks.
func (t *hostTime) step(first uint64) {
	now := t.clock.Millis()
	n := now - t.mark
	if !t.started {
		t.started = true
		n = first
	}
	t.mark = now
	for ; n > 0; n-- {
		t.seq++
		select {
		case t.ch <- t.seq:
		default:
		}
	}
}

package console

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"ember/kernel"
)

type tableLine struct {
	text   string
	exited bool
}

const tableHeader = "ID NAME         STATE    SYSCALLS  AGE"

func tableLines(tasks []kernel.TaskSnapshot, nowMs uint64) []tableLine {
	lines := make([]tableLine, 0, len(tasks)+1)
	lines = append(lines, tableLine{text: tableHeader})
	for _, t := range tasks {
		state := t.Status.String()
		if t.Status == kernel.Exited {
			state = fmt.Sprintf("exit %d", t.ExitCode)
		}
		var age time.Duration
		if nowMs > t.StartTime {
			age = time.Duration(nowMs-t.StartTime) * time.Millisecond
		}
		lines = append(lines, tableLine{
			text: fmt.Sprintf("%-2d %-12.12s %-8s %-9s %s",
				t.ID, t.Name, state, humanize.Comma(int64(t.SyscallTotal())), age),
			exited: t.Status == kernel.Exited,
		})
	}
	return lines
}

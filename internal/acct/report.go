package acct

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// WriteBoots prints one line per boot.
func WriteBoots(w io.Writer, boots []Boot, now time.Time) {
	for _, b := range boots {
		state := "running"
		if b.HaltedAt != nil {
			state = "halted after " + b.HaltedAt.Sub(b.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s  %s  %d apps  %s\n",
			b.ID, humanize.RelTime(b.StartedAt, now, "ago", "from now"), b.Apps, state)
	}
}

// WriteExits prints one line per exit followed by its busiest syscalls.
func WriteExits(w io.Writer, exits []Exit) {
	for _, e := range exits {
		fmt.Fprintf(w, "task %-2d %-12s code %-4d ran %-8s %s syscalls  %s\n",
			e.TaskID, e.Name, e.ExitCode,
			(time.Duration(e.EndMs-e.StartMs) * time.Millisecond).String(),
			humanize.Comma(int64(e.Total())), topSyscalls(e.Syscalls, 3))
	}
}

// topSyscalls renders the n most used syscall ids as "id×count".
func topSyscalls(counts map[int]uint32, n int) string {
	ids := make([]int, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > n {
		ids = ids[:n]
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d×%s", id, humanize.Comma(int64(counts[id])))
	}
	return strings.Join(parts, " ")
}

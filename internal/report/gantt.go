package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"pollsched/internal/sched"
	"pollsched/internal/task"
)

const (
	busyCell = "#"
	idleCell = "."
)

// WriteGantt draws the trace as a text chart: a tick ruler, one row per
// periodic task, one row for aperiodic requests (showing the request ID)
// and one row with the server charge of every tick.
func WriteGantt(w io.Writer, set *task.Set, log *sched.Log) error {
	entries := log.Entries()
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	row := func(label string, cell func(sched.Entry) string) {
		var b strings.Builder
		b.WriteString(label)
		b.WriteByte('\t')
		for _, e := range entries {
			b.WriteString(cell(e))
			b.WriteByte('\t')
		}
		b.WriteByte('\n')
		io.WriteString(tw, b.String())
	}

	row("t", func(e sched.Entry) string { return strconv.Itoa(e.Tick) })

	for _, p := range set.Periodic {
		id := p.ID
		row(fmt.Sprintf("τ%d", id), func(e sched.Entry) string {
			if e.Status() == sched.StatusPeriodic && e.TaskID == id {
				return busyCell
			}
			return idleCell
		})
	}

	if len(set.Aperiodic) > 0 {
		row("aper", func(e sched.Entry) string {
			if e.Status() == sched.StatusAperiodic {
				return strconv.FormatUint(uint64(e.TaskID), 10)
			}
			return idleCell
		})
	}

	row("Cs", func(e sched.Entry) string { return strconv.Itoa(e.ServerCharge) })

	return tw.Flush()
}

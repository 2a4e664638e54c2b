package report

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"pollsched/internal/sched"
	"pollsched/internal/task"
)

// WriteAnalysis prints the schedulability verdict.
func WriteAnalysis(w io.Writer, a sched.Analysis) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if a.Overflow {
		fmt.Fprintf(tw, "hyperperiod\toverflow\n")
	} else {
		fmt.Fprintf(tw, "hyperperiod\t%d\n", a.Hyperperiod)
	}
	fmt.Fprintf(tw, "horizon\t%d\t%s\n", a.Horizon, verdict(a.HorizonMatches, "matches", "MISMATCH"))
	fmt.Fprintf(tw, "utilization\t%.4f\n", a.Utilization)
	fmt.Fprintf(tw, "bound (n=%d)\t%.4f\t%s\n", a.N, a.Bound, verdict(a.Feasible, "feasible", "NOT SCHEDULABLE"))
	return tw.Flush()
}

func verdict(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

// WriteSummary prints the run statistics.
func WriteSummary(w io.Writer, log *sched.Log, m sched.Metrics) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", log.RunID)
	fmt.Fprintf(tw, "ticks\t%d\tbusy %d\tidle %d\n", m.Ticks, m.BusyTicks, m.IdleTicks)
	fmt.Fprintf(tw, "jobs completed\t%d\n", m.CompletedJobs)
	fmt.Fprintf(tw, "max server charge\t%d\n", m.MaxServerCharge)

	for _, id := range sortedIDs(m.PeriodicByTask) {
		fmt.Fprintf(tw, "τ%d\t%d ticks\n", id, m.PeriodicByTask[id])
	}

	fmt.Fprintf(tw, "aperiodic\t%d ticks\n", m.AperiodicTicks)
	for _, id := range sortedIDs(m.ResponseTimes) {
		fmt.Fprintf(tw, "  request %d\tresponse %d\n", id, m.ResponseTimes[id])
	}
	if len(m.ResponseTimes) > 0 {
		fmt.Fprintf(tw, "  mean response\t%.2f\n", m.MeanResponse)
	}
	for _, id := range m.Unserved {
		fmt.Fprintf(tw, "  request %d\tunserved\n", id)
	}

	for _, miss := range m.Misses {
		if miss.Completed < 0 {
			fmt.Fprintf(tw, "deadline miss\tτ%d released %d, deadline %d, unfinished\n", miss.TaskID, miss.Release, miss.Deadline)
			continue
		}
		fmt.Fprintf(tw, "deadline miss\tτ%d released %d, deadline %d, finished %d\n", miss.TaskID, miss.Release, miss.Deadline, miss.Completed)
	}

	return tw.Flush()
}

func sortedIDs(m map[task.ID]int) []task.ID {
	ids := make([]task.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

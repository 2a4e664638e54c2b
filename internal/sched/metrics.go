package sched

import (
	"gonum.org/v1/gonum/stat"

	"pollsched/internal/task"
)

// Miss is a periodic job that finished after its deadline or never
// finished inside the observed horizon.
type Miss struct {
	TaskID    task.ID
	Release   int
	Deadline  int
	Completed int // tick after the job's last unit ran, -1 if it never finished
}

// Metrics summarises a Log.
type Metrics struct {
	Ticks           int
	BusyTicks       int
	IdleTicks       int
	AperiodicTicks  int
	PeriodicByTask  map[task.ID]int // executed ticks per periodic task
	CompletedJobs   int
	ResponseTimes   map[task.ID]int // aperiodic: completion tick + 1 - arrival
	MeanResponse    float64
	Unserved        []task.ID // aperiodic tasks still pending at the horizon
	Misses          []Miss
	MaxServerCharge int
}

type jobRef struct {
	kind    task.Kind
	id      task.ID
	release int
}

// ComputeMetrics derives run statistics from the log of a run of set.
func ComputeMetrics(set *task.Set, log *Log) Metrics {
	m := Metrics{
		Ticks:          log.Len(),
		PeriodicByTask: make(map[task.ID]int),
		ResponseTimes:  make(map[task.ID]int),
	}

	finished := make(map[jobRef]int)
	for _, e := range log.entries {
		if e.ServerCharge > m.MaxServerCharge {
			m.MaxServerCharge = e.ServerCharge
		}
		if e.Idle {
			m.IdleTicks++
			continue
		}
		m.BusyTicks++

		switch e.Kind {
		case task.KindAperiodic:
			m.AperiodicTicks++
		case task.KindPeriodic:
			m.PeriodicByTask[e.TaskID]++
		}

		if e.Completed() {
			m.CompletedJobs++
			finished[jobRef{e.Kind, e.TaskID, e.Release}] = e.Tick + 1
		}
	}

	var responses []float64
	for _, a := range set.Aperiodic {
		done, ok := finished[jobRef{task.KindAperiodic, a.ID, a.Arrival}]
		if !ok {
			if a.Arrival < m.Ticks {
				m.Unserved = append(m.Unserved, a.ID)
			}
			continue
		}
		m.ResponseTimes[a.ID] = done - a.Arrival
		responses = append(responses, float64(done-a.Arrival))
	}
	if len(responses) > 0 {
		m.MeanResponse = stat.Mean(responses, nil)
	}

	for _, p := range set.Periodic {
		for r := 0; r+p.Period <= m.Ticks; r += p.Period {
			deadline := r + p.Period
			done, ok := finished[jobRef{task.KindPeriodic, p.ID, r}]
			switch {
			case !ok:
				m.Misses = append(m.Misses, Miss{TaskID: p.ID, Release: r, Deadline: deadline, Completed: -1})
			case done > deadline:
				m.Misses = append(m.Misses, Miss{TaskID: p.ID, Release: r, Deadline: deadline, Completed: done})
			}
		}
	}

	return m
}

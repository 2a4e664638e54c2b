// internal/sched/schedulerEvent.go

package sched

import (
	"fmt"

	"github.com/markphelps/optional"

	"pollsched/internal/task"
)

// StatusKind represents what occupied the processor during a tick
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusPeriodic
	StatusAperiodic
)

func (sk StatusKind) String() string {
	switch sk {
	case StatusIdle:
		return "Idle"
	case StatusPeriodic:
		return "Periodic"
	case StatusAperiodic:
		return "Aperiodic"
	default:
		return "Unknown"
	}
}

// Entry is the record of one tick. For idle ticks only Tick, Idle and
// ServerCharge are meaningful.
type Entry struct {
	Tick         int
	Idle         bool
	Kind         task.Kind
	TaskID       task.ID
	TaskPeriod   int          // priority key: task period, or server period for aperiodic work
	Deadline     optional.Int // periodic jobs only
	Release      int
	ServerCharge int // charge before the end-of-tick adjustment
	ServerPeriod int
	Remaining    int // remaining time of the job after this tick
}

// Status classifies the entry.
func (e Entry) Status() StatusKind {
	switch {
	case e.Idle:
		return StatusIdle
	case e.Kind == task.KindAperiodic:
		return StatusAperiodic
	default:
		return StatusPeriodic
	}
}

// Completed reports whether the job that ran in this tick finished.
func (e Entry) Completed() bool {
	return !e.Idle && e.Remaining == 0
}

func (e Entry) String() string {
	if e.Idle {
		return fmt.Sprintf("t=%04d [%-9s] charge=%d", e.Tick, e.Status(), e.ServerCharge)
	}
	deadline := "-"
	if d, err := e.Deadline.Get(); err == nil {
		deadline = fmt.Sprint(d)
	}
	return fmt.Sprintf("t=%04d [%-9s] task=%s#%d period=%d release=%d deadline=%s charge=%d",
		e.Tick, e.Status(), e.Kind, e.TaskID, e.TaskPeriod, e.Release, deadline, e.ServerCharge)
}

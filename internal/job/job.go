package job

import (
	"fmt"

	"github.com/markphelps/optional"

	"pollsched/internal/task"
)

// Job is one released instance of a periodic or aperiodic task.
type Job struct {
	Task        task.Task    // owning task, read-only
	Release     int          // tick the job was released at
	Remaining   int          // ticks of execution still needed
	Deadline    optional.Int // absolute deadline, periodic jobs only
	PriorityKey int          // task period, or the server period for aperiodic jobs
	Seq         uint64       // release order within one run
}

// ReleasePeriodic creates the job p releases at tick at.
func ReleasePeriodic(p *task.Periodic, at int, seq uint64) *Job {
	return &Job{
		Task:        p,
		Release:     at,
		Remaining:   p.Exec,
		Deadline:    optional.NewInt(at + p.Period),
		PriorityKey: p.Period,
		Seq:         seq,
	}
}

// ReleaseAperiodic creates the job a releases at tick at. Aperiodic work is
// served at the polling server's priority, so the server period is its key.
func ReleaseAperiodic(a *task.Aperiodic, at, serverPeriod int, seq uint64) *Job {
	return &Job{
		Task:        a,
		Release:     at,
		Remaining:   a.Exec,
		PriorityKey: serverPeriod,
		Seq:         seq,
	}
}

// Periodic reports whether the job belongs to a periodic task.
func (j *Job) Periodic() bool {
	return j.Task.Kind() == task.KindPeriodic
}

// TaskID returns the ID of the owning task.
func (j *Job) TaskID() task.ID {
	switch t := j.Task.(type) {
	case *task.Periodic:
		return t.ID
	case *task.Aperiodic:
		return t.ID
	default:
		panic(fmt.Sprintf("job: task %T cannot own a job", t))
	}
}

// Run executes the job for one tick.
func (j *Job) Run() {
	if j.Remaining > 0 {
		j.Remaining--
	}
}

// Done reports whether the job has no execution time left.
func (j *Job) Done() bool {
	return j.Remaining == 0
}

func (j *Job) String() string {
	return fmt.Sprintf("%s#%d@%d(rem=%d)", j.Task.Kind(), j.TaskID(), j.Release, j.Remaining)
}

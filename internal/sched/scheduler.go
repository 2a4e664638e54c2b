// internal/sched/scheduler.go

package sched

import (
	"fmt"
	"log/slog"

	"pollsched/internal/job"
	"pollsched/internal/task"
)

// Engine simulates a polling server over one task set, tick by tick.
// An Engine is not safe for concurrent use; give each goroutine its own.
type Engine struct {
	set     *task.Set
	server  *task.Server
	clock   *TickClock
	queue   *readyQueue
	charge  int    // available server budget, never capped
	seq     uint64 // release counter, breaks ties the tree would otherwise see as equal
	log     *Log
	logger  *slog.Logger
	observe func(Entry)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger makes the engine trace every tick at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithObserver registers fn to receive each entry right after it is logged.
func WithObserver(fn func(Entry)) Option {
	return func(e *Engine) { e.observe = fn }
}

// New creates an engine for set. set must come from task.NewSet.
func New(set *task.Set, opts ...Option) *Engine {
	if set == nil || set.Server == nil {
		panic("sched: task set without a server")
	}

	e := &Engine{
		set:    set,
		server: set.Server,
		clock:  NewTickClock(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Simulate analyzes set and, when it passes, runs it for horizon ticks.
// A failed analysis returns the analysis and its error and no log.
func Simulate(set *task.Set, horizon int, opts ...Option) (*Log, Analysis, error) {
	a := Analyze(set, horizon)
	if err := a.Err(); err != nil {
		return nil, a, err
	}
	return New(set, opts...).Run(horizon), a, nil
}

// Run simulates ticks 0 through horizon-1 and returns the full log.
// Every call starts from a clean state. A horizon below 1 yields an
// empty log.
func (e *Engine) Run(horizon int) *Log {
	horizon = max(horizon, 0)
	e.clock.Reset()
	e.queue = newReadyQueue()
	e.charge = 0
	e.seq = 0
	e.log = newLog(horizon, e.server.Period)

	e.logger.Debug("simulation started",
		"run_id", e.log.RunID.String(),
		"horizon", horizon,
		"periodic", len(e.set.Periodic),
		"aperiodic", len(e.set.Aperiodic),
		"server_period", e.server.Period,
		"server_capacity", e.server.Capacity)

	for !e.clock.Done(horizon) {
		e.step(e.clock.Count())
		e.clock.Advance()
	}

	e.logger.Debug("simulation finished", "run_id", e.log.RunID.String(), "ticks", e.log.Len())
	return e.log
}

// step runs one tick. The phases never interleave.
func (e *Engine) step(t int) {
	// 1) admit the jobs released at t
	e.release(t)

	// 2) refill the server
	e.replenish(t)

	// 3) pick a job
	selected := e.selectJob()

	// 4) run it for one tick
	executed := e.execute(selected)

	// 5) record the tick with the charge as it was before settling
	entry := e.record(t, selected, executed)

	// 6) charge the server for what happened
	e.settleCharge(selected, executed)

	// 7) drop finished jobs
	pruned := e.queue.prune()

	e.logger.Debug("tick",
		"tick", t,
		"status", entry.Status().String(),
		"task_id", entry.TaskID,
		"charge_before", entry.ServerCharge,
		"charge_after", e.charge,
		"ready", e.queue.len(),
		"pruned", pruned)

	if e.observe != nil {
		e.observe(entry)
	}
}

func (e *Engine) release(t int) {
	for _, p := range e.set.Periodic {
		if t%p.Period == 0 {
			e.queue.push(job.ReleasePeriodic(p, t, e.nextSeq()))
		}
	}
	for _, a := range e.set.Aperiodic {
		if a.Arrival == t {
			e.queue.push(job.ReleaseAperiodic(a, t, e.server.Period, e.nextSeq()))
		}
	}
}

func (e *Engine) nextSeq() uint64 {
	s := e.seq
	e.seq++
	return s
}

func (e *Engine) replenish(t int) {
	if t == 0 || t%e.server.Period == 0 {
		e.charge += e.server.Capacity
	}
}

// selectJob returns the head of the ready queue, unless the head is
// aperiodic work the server cannot pay for. Then the first periodic job
// takes its place, if there is one.
func (e *Engine) selectJob() *job.Job {
	selected := e.queue.first()
	if selected == nil {
		return nil
	}

	switch selected.Task.(type) {
	case *task.Aperiodic:
		if e.charge == 0 {
			if p := e.queue.firstPeriodic(); p != nil {
				return p
			}
		}
	case *task.Periodic:
	default:
		panic(fmt.Sprintf("sched: unexpected job owner %T", selected.Task))
	}
	return selected
}

func (e *Engine) execute(j *job.Job) bool {
	if j == nil {
		return false
	}

	switch j.Task.(type) {
	case *task.Aperiodic:
		if e.charge > 0 {
			j.Run()
			return true
		}
		return false
	case *task.Periodic:
		j.Run()
		return true
	default:
		panic(fmt.Sprintf("sched: unexpected job owner %T", j.Task))
	}
}

func (e *Engine) record(t int, j *job.Job, executed bool) Entry {
	entry := Entry{
		Tick:         t,
		Idle:         !executed,
		ServerCharge: e.charge,
	}
	if executed {
		entry.Kind = j.Task.Kind()
		entry.TaskID = j.TaskID()
		entry.TaskPeriod = j.PriorityKey
		entry.Deadline = j.Deadline
		entry.Release = j.Release
		entry.ServerPeriod = e.server.Period
		entry.Remaining = j.Remaining
	}
	e.log.append(entry)
	return entry
}

// settleCharge applies the polling server's budget rules after a tick:
// an idle tick forfeits the budget, aperiodic work consumes one unit, and
// a periodic task with lower priority than the server forfeits it too.
func (e *Engine) settleCharge(j *job.Job, executed bool) {
	if !executed {
		e.charge = 0
		return
	}

	switch t := j.Task.(type) {
	case *task.Aperiodic:
		e.charge--
	case *task.Periodic:
		if t.Period > e.server.Period {
			e.charge = 0
		}
	default:
		panic(fmt.Sprintf("sched: unexpected job owner %T", t))
	}
}

// Charge returns the server charge left at the end of the last tick run.
func (e *Engine) Charge() int {
	return e.charge
}

package task

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

var (
	ErrNoServer        = errors.New("task set has no server")
	ErrMultipleServers = errors.New("task set has more than one server")
	ErrInvalidPeriod   = errors.New("period must be positive")
	ErrInvalidExecTime = errors.New("execution time must be positive")
	ErrInvalidArrival  = errors.New("arrival time must not be negative")
	ErrInvalidCapacity = errors.New("server capacity must not be negative")
)

// Set is a validated task set: any number of periodic and aperiodic tasks
// and exactly one server. Slices keep the order the tasks were given in.
type Set struct {
	Periodic  []*Periodic
	Aperiodic []*Aperiodic
	Server    *Server
}

// NewSet groups tasks by variant and checks the preconditions the
// scheduler relies on. Every violation is reported, not just the first.
func NewSet(tasks ...Task) (*Set, error) {
	s := &Set{}
	var err error
	servers := 0

	for _, t := range tasks {
		switch t := t.(type) {
		case *Periodic:
			if t.Period <= 0 {
				err = multierr.Append(err, fmt.Errorf("periodic task %d: %w (got %d)", t.ID, ErrInvalidPeriod, t.Period))
			}
			if t.Exec <= 0 {
				err = multierr.Append(err, fmt.Errorf("periodic task %d: %w (got %d)", t.ID, ErrInvalidExecTime, t.Exec))
			}
			s.Periodic = append(s.Periodic, t)
		case *Aperiodic:
			if t.Arrival < 0 {
				err = multierr.Append(err, fmt.Errorf("aperiodic task %d: %w (got %d)", t.ID, ErrInvalidArrival, t.Arrival))
			}
			if t.Exec <= 0 {
				err = multierr.Append(err, fmt.Errorf("aperiodic task %d: %w (got %d)", t.ID, ErrInvalidExecTime, t.Exec))
			}
			s.Aperiodic = append(s.Aperiodic, t)
		case *Server:
			servers++
			if t.Period <= 0 {
				err = multierr.Append(err, fmt.Errorf("server: %w (got %d)", ErrInvalidPeriod, t.Period))
			}
			if t.Capacity < 0 {
				err = multierr.Append(err, fmt.Errorf("server: %w (got %d)", ErrInvalidCapacity, t.Capacity))
			}
			s.Server = t
		default:
			panic(fmt.Sprintf("task: unexpected variant %T", t))
		}
	}

	switch {
	case servers == 0:
		err = multierr.Append(err, ErrNoServer)
	case servers > 1:
		err = multierr.Append(err, fmt.Errorf("%w (got %d)", ErrMultipleServers, servers))
	}

	if err != nil {
		return nil, err
	}
	return s, nil
}

// Len returns the number of tasks in the set, server included.
func (s *Set) Len() int {
	return len(s.Periodic) + len(s.Aperiodic) + 1
}

// Tasks returns every task in the set: periodic first, then aperiodic,
// then the server.
func (s *Set) Tasks() []Task {
	out := make([]Task, 0, s.Len())
	for _, p := range s.Periodic {
		out = append(out, p)
	}
	for _, a := range s.Aperiodic {
		out = append(out, a)
	}
	return append(out, s.Server)
}

package sched

import (
	"errors"
	"fmt"
	"math"

	"github.com/emirpasic/gods/sets/treeset"
	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/floats"

	"pollsched/internal/task"
)

var (
	// ErrHorizonMismatch means the requested horizon is not one hyperperiod.
	ErrHorizonMismatch = errors.New("horizon does not match hyperperiod")
	// ErrInfeasible means the task set fails the utilization bound test.
	// The bound is only sufficient, so this is a policy stop.
	ErrInfeasible = errors.New("task set exceeds the utilization bound")
	// ErrHyperperiodOverflow means the hyperperiod does not fit in an int.
	ErrHyperperiodOverflow = errors.New("hyperperiod overflows int")
)

// Analysis is the outcome of the checks run before a simulation.
type Analysis struct {
	Horizon        int
	Hyperperiod    int // 0 when Overflow is set
	Overflow       bool
	Utilization    float64
	Bound          float64
	N              int // periodic tasks plus the server
	HorizonMatches bool
	Feasible       bool
}

// Schedulable reports whether the engine may run.
func (a Analysis) Schedulable() bool {
	return a.HorizonMatches && a.Feasible
}

// Err returns nil when the set may be simulated. Otherwise it wraps
// ErrHorizonMismatch (ErrHyperperiodOverflow when there is no hyperperiod
// to match) and ErrInfeasible as they apply.
func (a Analysis) Err() error {
	var errs []error
	switch {
	case a.Overflow:
		errs = append(errs, fmt.Errorf("%w: horizon %d", ErrHyperperiodOverflow, a.Horizon))
	case !a.HorizonMatches:
		errs = append(errs, fmt.Errorf("%w: horizon %d, hyperperiod %d", ErrHorizonMismatch, a.Horizon, a.Hyperperiod))
	}
	if !a.Feasible {
		errs = append(errs, fmt.Errorf("%w: U=%.4f > %.4f (n=%d)", ErrInfeasible, a.Utilization, a.Bound, a.N))
	}
	return errors.Join(errs...)
}

// Analyze computes the hyperperiod and the utilization test for set and
// checks horizon against the hyperperiod.
func Analyze(set *task.Set, horizon int) Analysis {
	a := Analysis{
		Horizon:     horizon,
		Utilization: Utilization(set),
		N:           len(set.Periodic) + 1,
	}
	h, err := Hyperperiod(set)
	a.Overflow = err != nil
	a.Hyperperiod = h
	a.Bound = UtilizationBound(a.N)
	a.HorizonMatches = !a.Overflow && h == horizon
	a.Feasible = a.Utilization <= a.Bound
	return a
}

// Hyperperiod is the least common multiple of the distinct periodic
// periods and the server period. It fails with ErrHyperperiodOverflow when
// the result does not fit in an int.
func Hyperperiod(set *task.Set) (int, error) {
	periods := treeset.NewWithIntComparator(set.Server.Period)
	for _, p := range set.Periodic {
		periods.Add(p.Period)
	}

	h := 1
	for _, v := range periods.Values() {
		next, ok := lcm(h, v.(int))
		if !ok {
			return 0, fmt.Errorf("%w: lcm(%d, %d)", ErrHyperperiodOverflow, h, v.(int))
		}
		h = next
	}
	return h, nil
}

// Utilization is the processor demand of the periodic tasks plus the
// server's capacity over its period.
func Utilization(set *task.Set) float64 {
	shares := make([]float64, 0, len(set.Periodic)+1)
	for _, p := range set.Periodic {
		shares = append(shares, float64(p.Exec)/float64(p.Period))
	}
	shares = append(shares, float64(set.Server.Capacity)/float64(set.Server.Period))
	return floats.Sum(shares)
}

// UtilizationBound returns n(2^(1/n) - 1), the Liu & Layland bound for n
// fixed-priority tasks.
func UtilizationBound(n int) float64 {
	if n <= 0 {
		return 0
	}
	fn := float64(n)
	return fn * (math.Pow(2, 1/fn) - 1)
}

func gcd[T constraints.Integer](a, b T) T {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// lcm expects positive operands. ok is false when the product wraps.
func lcm[T constraints.Integer](a, b T) (l T, ok bool) {
	q := a / gcd(a, b)
	l = q * b
	if l/b != q || l < 0 {
		return 0, false
	}
	return l, true
}

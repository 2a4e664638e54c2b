// internal/task/task.go

package task

import "fmt"

// Kind tags the variant of a Task.
type Kind int

const (
	KindPeriodic Kind = iota
	KindAperiodic
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindPeriodic:
		return "per"
	case KindAperiodic:
		return "aper"
	case KindServer:
		return "ser"
	default:
		return "unknown"
	}
}

// ParseKind maps the short task-set tags back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "per":
		return KindPeriodic, nil
	case "aper":
		return KindAperiodic, nil
	case "ser":
		return KindServer, nil
	}
	return 0, fmt.Errorf("unknown task kind %q", s)
}

// ID identifies a periodic or an aperiodic task. The two sequences are
// independent, so a periodic and an aperiodic task may share a value.
type ID uint64

// Task is one of *Periodic, *Aperiodic or *Server. The set is closed: only
// this package can add variants.
type Task interface {
	Kind() Kind
	ExecTime() int
	sealed()
}

// Periodic releases a job every Period ticks, starting at tick 0.
// Its relative deadline equals its period.
type Periodic struct {
	ID     ID
	Period int
	Exec   int
}

func (p *Periodic) Kind() Kind    { return KindPeriodic }
func (p *Periodic) ExecTime() int { return p.Exec }
func (p *Periodic) sealed()       {}

func (p *Periodic) String() string {
	return fmt.Sprintf("τ%d(P=%d, C=%d)", p.ID, p.Period, p.Exec)
}

// Aperiodic releases a single job at tick Arrival.
type Aperiodic struct {
	ID      ID
	Arrival int
	Exec    int
}

func (a *Aperiodic) Kind() Kind    { return KindAperiodic }
func (a *Aperiodic) ExecTime() int { return a.Exec }
func (a *Aperiodic) sealed()       {}

func (a *Aperiodic) String() string {
	return fmt.Sprintf("α%d(A=%d, C=%d)", a.ID, a.Arrival, a.Exec)
}

// Server is the polling server. It never becomes a job; it only refills
// the server charge with Capacity every Period ticks.
type Server struct {
	Period   int
	Capacity int
}

func (s *Server) Kind() Kind    { return KindServer }
func (s *Server) ExecTime() int { return s.Capacity }
func (s *Server) sealed()       {}

func (s *Server) String() string {
	return fmt.Sprintf("server(P=%d, C=%d)", s.Period, s.Capacity)
}

// NewServer creates the polling server. Servers carry no ID.
func NewServer(period, capacity int) *Server {
	return &Server{Period: period, Capacity: capacity}
}

// IDAllocator hands out task IDs. Each loader owns its own allocator so
// two task sets built in the same process never share counters.
type IDAllocator struct {
	periodic  ID
	aperiodic ID
}

// NewPeriodic creates a periodic task with the next periodic ID.
func (a *IDAllocator) NewPeriodic(period, exec int) *Periodic {
	a.periodic++
	return &Periodic{ID: a.periodic, Period: period, Exec: exec}
}

// NewAperiodic creates an aperiodic task with the next aperiodic ID.
func (a *IDAllocator) NewAperiodic(arrival, exec int) *Aperiodic {
	a.aperiodic++
	return &Aperiodic{ID: a.aperiodic, Arrival: arrival, Exec: exec}
}

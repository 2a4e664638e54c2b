package sched

import "github.com/rs/xid"

// Log is the execution trace of one run, one entry per tick.
type Log struct {
	RunID        xid.ID
	Horizon      int
	ServerPeriod int
	entries      []Entry
}

func newLog(horizon, serverPeriod int) *Log {
	return &Log{
		RunID:        xid.New(),
		Horizon:      horizon,
		ServerPeriod: serverPeriod,
		entries:      make([]Entry, 0, horizon),
	}
}

// NewLogFromEntries rebuilds a log from stored entries, e.g. when reading
// a recorded run back. Entries must be ordered by tick starting at 0.
func NewLogFromEntries(runID xid.ID, serverPeriod int, entries []Entry) *Log {
	l := &Log{
		RunID:        runID,
		Horizon:      len(entries),
		ServerPeriod: serverPeriod,
		entries:      make([]Entry, len(entries)),
	}
	copy(l.entries, entries)
	return l
}

func (l *Log) append(e Entry) {
	l.entries = append(l.entries, e)
}

// Len returns the number of recorded ticks.
func (l *Log) Len() int { return len(l.entries) }

// At returns the entry for tick t.
func (l *Log) At(t int) (Entry, bool) {
	if t < 0 || t >= len(l.entries) {
		return Entry{}, false
	}
	return l.entries[t], true
}

// Entries returns a copy of all entries in tick order.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"pollsched/internal/sched"
)

var csvHeader = []string{
	"tick", "idle", "type", "id", "task_period", "deadline", "release", "server_charge", "server_period",
}

// WriteCSV writes one row per tick. Fields that do not apply to a tick
// (everything but the charge on idle ticks, the deadline of aperiodic
// work) are left empty.
func WriteCSV(w io.Writer, log *sched.Log) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, e := range log.Entries() {
		if err := cw.Write(csvRecord(e)); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func csvRecord(e sched.Entry) []string {
	rec := make([]string, len(csvHeader))
	rec[0] = strconv.Itoa(e.Tick)
	rec[1] = strconv.FormatBool(e.Idle)
	rec[7] = strconv.Itoa(e.ServerCharge)
	if e.Idle {
		return rec
	}

	rec[2] = e.Kind.String()
	rec[3] = strconv.FormatUint(uint64(e.TaskID), 10)
	rec[4] = strconv.Itoa(e.TaskPeriod)
	if d, err := e.Deadline.Get(); err == nil {
		rec[5] = strconv.Itoa(d)
	}
	rec[6] = strconv.Itoa(e.Release)
	rec[8] = strconv.Itoa(e.ServerPeriod)
	return rec
}

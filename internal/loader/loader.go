// Package loader reads task sets from disk. Two formats are understood:
// the line-oriented text format
//
//	per <period> <exec>
//	aper <arrival> <exec>
//	ser <period> <capacity>
//	<horizon>
//
// and an equivalent YAML document. Every load uses its own
// task.IDAllocator, so IDs always start at 1.
package loader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	yaml "github.com/goccy/go-yaml"

	"pollsched/internal/task"
)

// ErrMalformed marks input that cannot be turned into a task set.
var ErrMalformed = errors.New("malformed task set")

// Format selects the task-set syntax.
type Format int

const (
	FormatText Format = iota
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// FormatFor guesses the format from a file name.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatText
	}
}

// Load reads the task set and horizon stored at path.
func Load(path string) (*task.Set, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open task set: %w", err)
	}
	defer f.Close()

	set, horizon, err := Parse(f, FormatFor(path))
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return set, horizon, nil
}

// Parse reads a task set and horizon from r.
func Parse(r io.Reader, format Format) (*task.Set, int, error) {
	switch format {
	case FormatText:
		return parseText(r)
	case FormatYAML:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, 0, fmt.Errorf("read task set: %w", err)
		}
		return parseYAML(data)
	default:
		return nil, 0, fmt.Errorf("unsupported format %v", format)
	}
}

type line struct {
	no     int
	fields []string
}

func parseText(r io.Reader) (*task.Set, int, error) {
	var lines []line
	sc := bufio.NewScanner(r)
	for no := 1; sc.Scan(); no++ {
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		if fields := strings.Fields(text); len(fields) > 0 {
			lines = append(lines, line{no: no, fields: fields})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, 0, fmt.Errorf("read task set: %w", err)
	}
	if len(lines) == 0 {
		return nil, 0, fmt.Errorf("%w: empty input", ErrMalformed)
	}

	// the last line is the horizon
	last := lines[len(lines)-1]
	if len(last.fields) != 1 {
		return nil, 0, fmt.Errorf("%w: line %d: expected the horizon as the last line", ErrMalformed, last.no)
	}
	horizon, err := positive(last.fields[0])
	if err != nil {
		return nil, 0, fmt.Errorf("%w: line %d: horizon: %v", ErrMalformed, last.no, err)
	}

	var ids task.IDAllocator
	tasks := make([]task.Task, 0, len(lines)-1)
	for _, l := range lines[:len(lines)-1] {
		t, err := parseTaskLine(&ids, l.fields)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: line %d: %v", ErrMalformed, l.no, err)
		}
		tasks = append(tasks, t)
	}

	set, err := task.NewSet(tasks...)
	if err != nil {
		return nil, 0, err
	}
	return set, horizon, nil
}

func parseTaskLine(ids *task.IDAllocator, fields []string) (task.Task, error) {
	if len(fields) != 3 {
		return nil, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}
	kind, err := task.ParseKind(fields[0])
	if err != nil {
		return nil, err
	}
	a, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not an integer", kind, fields[1])
	}
	b, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not an integer", kind, fields[2])
	}

	switch kind {
	case task.KindPeriodic:
		return ids.NewPeriodic(a, b), nil
	case task.KindAperiodic:
		return ids.NewAperiodic(a, b), nil
	case task.KindServer:
		return task.NewServer(a, b), nil
	default:
		return nil, fmt.Errorf("unhandled kind %v", kind)
	}
}

func positive(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}

// yamlTaskSet mirrors the YAML task-set document.
type yamlTaskSet struct {
	Horizon int `yaml:"horizon"`
	Server  *struct {
		Period   int `yaml:"period"`
		Capacity int `yaml:"capacity"`
	} `yaml:"server"`
	Periodic []struct {
		Period int `yaml:"period"`
		Exec   int `yaml:"exec"`
	} `yaml:"periodic"`
	Aperiodic []struct {
		Arrival int `yaml:"arrival"`
		Exec    int `yaml:"exec"`
	} `yaml:"aperiodic"`
}

func parseYAML(data []byte) (*task.Set, int, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, 0, fmt.Errorf("%w: empty input", ErrMalformed)
	}

	var doc yamlTaskSet
	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.DisallowUnknownField()); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.Horizon <= 0 {
		return nil, 0, fmt.Errorf("%w: horizon must be positive, got %d", ErrMalformed, doc.Horizon)
	}

	var ids task.IDAllocator
	var tasks []task.Task
	for _, p := range doc.Periodic {
		tasks = append(tasks, ids.NewPeriodic(p.Period, p.Exec))
	}
	for _, a := range doc.Aperiodic {
		tasks = append(tasks, ids.NewAperiodic(a.Arrival, a.Exec))
	}
	if doc.Server != nil {
		tasks = append(tasks, task.NewServer(doc.Server.Period, doc.Server.Capacity))
	}

	set, err := task.NewSet(tasks...)
	if err != nil {
		return nil, 0, err
	}
	return set, doc.Horizon, nil
}

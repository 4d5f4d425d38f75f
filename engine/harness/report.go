package harness

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/WessleyAI/wayfarer/engine/quality"
)

// ReportSubject is the NATS subject evaluation reports are published on.
const ReportSubject = "eval.report"

// Entry is the outcome of one metric for one fixture.
type Entry struct {
	Fixture string
	Metric  string
	Result  quality.Result
	// Skipped is set when the fixture lacks the metric's inputs.
	Skipped bool
	Err     error
	// Line is the human-readable report line; empty on skip or error.
	Line string
}

// Key returns "fixture/metric".
func (e Entry) Key() string { return e.Fixture + "/" + e.Metric }

// Report holds entries in fixture order, then battery order.
type Report struct {
	entries  []Entry
	index    map[string]int
	Duration time.Duration
}

func newReport() *Report {
	return &Report{index: make(map[string]int)}
}

func (r *Report) add(e Entry) {
	r.index[e.Key()] = len(r.entries)
	r.entries = append(r.entries, e)
}

// Get returns the entry for fixture and metric.
func (r *Report) Get(fixture, metric string) (Entry, bool) {
	i, ok := r.index[fixture+"/"+metric]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Keys returns entry keys in report order.
func (r *Report) Keys() []string {
	keys := make([]string, len(r.entries))
	for i, e := range r.entries {
		keys[i] = e.Key()
	}
	return keys
}

// Entries returns a copy of all entries.
func (r *Report) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Failed returns entries whose metric returned an error.
func (r *Report) Failed() []Entry {
	var out []Entry
	for _, e := range r.entries {
		if e.Err != nil {
			out = append(out, e)
		}
	}
	return out
}

// Text renders the report as one block per fixture.
func (r *Report) Text() string {
	var b strings.Builder
	current := ""
	for i, e := range r.entries {
		if i == 0 || e.Fixture != current {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "# %s\n", e.Fixture)
			current = e.Fixture
		}
		switch {
		case e.Skipped:
			fmt.Fprintf(&b, "%s: skipped\n", e.Metric)
		case e.Err != nil:
			fmt.Fprintf(&b, "%s: error: %v\n", e.Metric, e.Err)
		default:
			b.WriteString(e.Line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

type entryJSON struct {
	Fixture string          `json:"fixture"`
	Metric  string          `json:"metric"`
	Values  []quality.Value `json:"values,omitempty"`
	Inputs  map[string]any  `json:"inputs,omitempty"`
	Skipped bool            `json:"skipped,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// MarshalJSON encodes the report with entries in order.
func (r *Report) MarshalJSON() ([]byte, error) {
	out := struct {
		DurationSeconds float64     `json:"duration_seconds"`
		Entries         []entryJSON `json:"entries"`
	}{
		DurationSeconds: r.Duration.Seconds(),
		Entries:         make([]entryJSON, len(r.entries)),
	}
	for i, e := range r.entries {
		ej := entryJSON{
			Fixture: e.Fixture,
			Metric:  e.Metric,
			Values:  e.Result.Values,
			Inputs:  e.Result.Inputs,
			Skipped: e.Skipped,
		}
		if e.Err != nil {
			ej.Error = e.Err.Error()
		}
		out.Entries[i] = ej
	}
	return json.Marshal(out)
}

// Package report renders an end-of-run summary of dispatched queries.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/template"
	"time"
)

// Entry is one dispatched query as seen by the report.
type Entry struct {
	Query  string `json:"query"`
	Engine string `json:"engine"`
	Action string `json:"action"`
	URL    string `json:"url"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// Summary aggregates a whole run.
type Summary struct {
	RunID     string         `json:"run_id"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	ByEngine  map[string]int `json:"by_engine"`
	Failures  []Entry        `json:"failures,omitempty"`
}

// Build computes a Summary from the run's entries.
func Build(runID string, startedAt time.Time, entries []Entry) *Summary {
	s := &Summary{
		RunID:     runID,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Total:     len(entries),
		ByEngine:  make(map[string]int),
	}
	for _, e := range entries {
		s.ByEngine[e.Engine]++
		if e.OK {
			s.Succeeded++
		} else {
			s.Failed++
			s.Failures = append(s.Failures, e)
		}
	}
	return s
}

const textTemplate = `Run {{.RunID}}
Started:   {{.StartedAt.Format "2006-01-02 15:04:05"}}
Duration:  {{.Duration.Round 1000000}}
Queries:   {{.Total}} total, {{.Succeeded}} succeeded, {{.Failed}} failed
{{- if .EngineLines}}

Per engine:
{{- range .EngineLines}}
  {{.}}
{{- end}}
{{- end}}
{{- if .Failures}}

Failures:
{{- range .Failures}}
  {{.Query}} ({{.Engine}}/{{.Action}}): {{.Error}}
{{- end}}
{{- end}}
`

type textData struct {
	*Summary
	EngineLines []string
}

// WriteText renders a human-readable summary.
func (s *Summary) WriteText(w io.Writer) error {
	engines := make([]string, 0, len(s.ByEngine))
	for e := range s.ByEngine {
		engines = append(engines, e)
	}
	sort.Strings(engines)

	lines := make([]string, 0, len(engines))
	for _, e := range engines {
		lines = append(lines, fmt.Sprintf("%-14s %d", e, s.ByEngine[e]))
	}

	tmpl, err := template.New("report").Parse(textTemplate)
	if err != nil {
		return fmt.Errorf("parsing report template: %w", err)
	}
	return tmpl.Execute(w, textData{Summary: s, EngineLines: lines})
}

// WriteJSON renders the summary as indented JSON.
func (s *Summary) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

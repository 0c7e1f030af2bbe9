// Package logging implements the structured event log funnelsort emits
// for pass/phase transitions, filtered-record counts, and fatal errors.
// Grounded on core/monitoring/logging.go's component logger and JSON
// entry shape; adapted from a generic event logger to funnelsort's own
// event vocabulary (spec.md §7's error taxonomy, §5's pass/phase
// lifecycle).
package logging

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"
)

// Level mirrors monitoring.LogLevel's four severities.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Entry is one emitted log line.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component"`
	EventType string         `json:"event_type"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// Logger emits structured events for one named component (e.g.
// "sort-phase", "merge-pass", "output").
type Logger struct {
	component string
	w         io.Writer
}

// New creates a Logger writing to os.Stdout.
func New(component string) *Logger {
	return &Logger{component: component, w: os.Stdout}
}

// NewWriter creates a Logger writing to w, for tests and for CLI
// --hexDump-style redirection.
func NewWriter(component string, w io.Writer) *Logger {
	return &Logger{component: component, w: w}
}

// Log writes one JSON-encoded Entry. ctx is accepted for call-site
// symmetry with request-scoped loggers but carries no cancellation
// here: logging must not block or fail the pass it describes.
func (l *Logger) Log(ctx context.Context, level Level, eventType, message string, details map[string]any) {
	entry := Entry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Component: l.component,
		EventType: eventType,
		Message:   message,
		Details:   details,
	}
	_ = json.NewEncoder(l.w).Encode(entry)
}

// SortPhaseComplete logs one finished sort-phase run.
func (l *Logger) SortPhaseComplete(ctx context.Context, phase int64, records int64) {
	l.Log(ctx, Info, "sort_phase_complete", "sort phase produced a run", map[string]any{
		"phase":   phase,
		"records": records,
	})
}

// MergePassComplete logs one finished intermediate merge pass.
func (l *Logger) MergePassComplete(ctx context.Context, runsIn int, runsOut int, records int64) {
	l.Log(ctx, Info, "merge_pass_complete", "merge pass reduced run count", map[string]any{
		"runs_in":  runsIn,
		"runs_out": runsOut,
		"records":  records,
	})
}

// Filtered logs how many records WHERE rejected in a pass.
func (l *Logger) Filtered(ctx context.Context, count int64) {
	l.Log(ctx, Info, "records_filtered", "WHERE rejected records", map[string]any{
		"count": count,
	})
}

// Fatal logs an unrecoverable error before the caller aborts the run.
func (l *Logger) Fatal(ctx context.Context, eventType string, err error) {
	l.Log(ctx, Error, eventType, err.Error(), nil)
}

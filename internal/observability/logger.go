// Package observability provides structured logging for sqlgazer runs.
//
// Every analyzed job emits: job_id, project, tables referenced, statement
// count, flagged rule names, rule errors, and analysis duration.
package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// AnalysisLogEntry contains all required fields for per-job logging.
type AnalysisLogEntry struct {
	// JobID is the warehouse job identifier for the analyzed query.
	// Required: every analyzed job must have an ID.
	JobID string

	// Project is the project or account the job ran under.
	Project string

	// Tables are the base tables the query references.
	// May be empty for queries like "SELECT 1".
	Tables []string

	// Statements is the number of statements in the job's script.
	Statements int

	// FlaggedRules are the names of the rules whose verdict was true.
	FlaggedRules []string

	// RuleErrors maps rule names to evaluator fault messages.
	RuleErrors map[string]string

	// ParseError is set when the whole query could not be parsed.
	ParseError string

	// Duration is how long the analysis of this job took.
	// Must be non-negative.
	Duration time.Duration
}

// Validate checks that all required fields are present.
func (e *AnalysisLogEntry) Validate() error {
	if e.JobID == "" {
		return fmt.Errorf("observability: job_id is required")
	}
	if e.Duration < 0 {
		return fmt.Errorf("observability: duration cannot be negative")
	}
	return nil
}

// AnalysisLogger is the interface for per-job analysis logging.
type AnalysisLogger interface {
	// LogAnalysis logs one job's analysis outcome.
	// Returns an error if logging fails or the entry is invalid.
	LogAnalysis(ctx context.Context, entry AnalysisLogEntry) error

	// Summary returns aggregated statistics for the run so far.
	Summary() *RunSummary
}

// RunSummary aggregates a run's outcomes so operators can spot a
// consistently failing rule without reading per-job output.
type RunSummary struct {
	JobsAnalyzed  int            `json:"jobs_analyzed"`
	ParseFailures int            `json:"parse_failures"`
	FlagCounts    map[string]int `json:"flag_counts"`
	ErrorCounts   []RuleErrorStat `json:"error_counts"`
}

// RuleErrorStat reports how often one rule faulted and on which jobs.
type RuleErrorStat struct {
	Rule   string   `json:"rule"`
	Count  int      `json:"count"`
	JobIDs []string `json:"job_ids"`
}

// jsonLogOutput is the structured format for JSON logs.
type jsonLogOutput struct {
	Timestamp    string            `json:"timestamp"`
	Level        string            `json:"level"`
	JobID        string            `json:"job_id"`
	Project      string            `json:"project,omitempty"`
	Tables       []string          `json:"tables"`
	Statements   int               `json:"statements"`
	FlaggedRules []string          `json:"flagged_rules"`
	RuleErrors   map[string]string `json:"rule_errors,omitempty"`
	ParseError   string            `json:"parse_error,omitempty"`
	DurationMs   int64             `json:"duration_ms"`
}

// JSONLogger implements AnalysisLogger with one JSON object per job.
type JSONLogger struct {
	writer  io.Writer
	entries []AnalysisLogEntry
	mu      sync.RWMutex
}

// NewJSONLogger creates a new JSON logger writing to the given writer.
func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{
		writer:  w,
		entries: make([]AnalysisLogEntry, 0),
	}
}

// LogAnalysis logs one job's analysis outcome as JSON.
func (l *JSONLogger) LogAnalysis(ctx context.Context, entry AnalysisLogEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("observability: context error: %w", err)
	}

	if err := entry.Validate(); err != nil {
		return err
	}

	level := "info"
	if entry.ParseError != "" || len(entry.RuleErrors) > 0 {
		level = "error"
	}

	output := jsonLogOutput{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Level:        level,
		JobID:        entry.JobID,
		Project:      entry.Project,
		Tables:       entry.Tables,
		Statements:   entry.Statements,
		FlaggedRules: entry.FlaggedRules,
		RuleErrors:   entry.RuleErrors,
		ParseError:   entry.ParseError,
		DurationMs:   entry.Duration.Milliseconds(),
	}

	// Ensure list fields are never nil in JSON
	if output.Tables == nil {
		output.Tables = []string{}
	}
	if output.FlaggedRules == nil {
		output.FlaggedRules = []string{}
	}

	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("observability: failed to marshal log: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("observability: failed to write log: %w", err)
	}

	l.entries = append(l.entries, entry)
	return nil
}

// Summary returns aggregated statistics for the run so far.
func (l *JSONLogger) Summary() *RunSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	summary := &RunSummary{
		FlagCounts:  make(map[string]int),
		ErrorCounts: []RuleErrorStat{},
	}

	errJobs := make(map[string][]string)

	for _, entry := range l.entries {
		if entry.ParseError != "" {
			summary.ParseFailures++
			continue
		}
		summary.JobsAnalyzed++
		for _, rule := range entry.FlaggedRules {
			summary.FlagCounts[rule]++
		}
		for rule := range entry.RuleErrors {
			errJobs[rule] = append(errJobs[rule], entry.JobID)
		}
	}

	for rule, jobs := range errJobs {
		summary.ErrorCounts = append(summary.ErrorCounts, RuleErrorStat{
			Rule:   rule,
			Count:  len(jobs),
			JobIDs: jobs,
		})
	}
	sort.Slice(summary.ErrorCounts, func(i, j int) bool {
		if summary.ErrorCounts[i].Count != summary.ErrorCounts[j].Count {
			return summary.ErrorCounts[i].Count > summary.ErrorCounts[j].Count
		}
		return summary.ErrorCounts[i].Rule < summary.ErrorCounts[j].Rule
	})

	return summary
}

// NoopLogger is a logger that discards all logs.
// Useful for testing or when logging is disabled.
type NoopLogger struct{}

// NewNoopLogger creates a new no-op logger.
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

// LogAnalysis does nothing and always succeeds.
func (l *NoopLogger) LogAnalysis(ctx context.Context, entry AnalysisLogEntry) error {
	return nil
}

// Summary returns an empty summary for the no-op logger.
func (l *NoopLogger) Summary() *RunSummary {
	return &RunSummary{
		FlagCounts:  make(map[string]int),
		ErrorCounts: []RuleErrorStat{},
	}
}

var _ AnalysisLogger = (*JSONLogger)(nil)
var _ AnalysisLogger = (*NoopLogger)(nil)

package pipeline

import (
	"log/slog"
	"time"
)

// Stage names, in execution order.
const (
	StageExtract    = "extract"
	StageScrape     = "scrape"
	StageAuxiliary  = "auxiliary"
	StageTransform  = "transform"
	StageRelational = "relational"
	StageDocument   = "document"
)

// Stage outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

// StageReport describes one executed stage.
type StageReport struct {
	Stage    string        `json:"stage"`
	Outcome  string        `json:"outcome"`
	Duration time.Duration `json:"duration_ns"`
	Detail   string        `json:"detail,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Report describes one pipeline run. Stages after a failed stage are absent.
type Report struct {
	RunID    string        `json:"run_id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration_ns"`
	Stages   []StageReport `json:"stages"`
}

// Stage returns the report of the named stage, if it ran.
func (r Report) Stage(name string) (StageReport, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageReport{}, false
}

// LogValue implements slog.LogValuer for structured logging.
func (r Report) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("run_id", r.RunID),
		slog.Duration("duration", r.Duration),
	}
	for _, s := range r.Stages {
		attrs = append(attrs, slog.String(s.Stage, s.Outcome))
	}
	return slog.GroupValue(attrs...)
}

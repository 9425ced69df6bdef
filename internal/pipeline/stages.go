package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/sitegen/internal/docmodel"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/metrics"
)

// StageName is a strongly-typed identifier for a build stage.
type StageName string

// Canonical stage names, in full-build order.
const (
	StageEnsureOutput StageName = "ensure_output"
	StageScan         StageName = "scan"
	StageTransform    StageName = "transform"
	StageCopyAssets   StageName = "copy_assets"
	StageRenderPages  StageName = "render_pages"
	StageRenderIndex  StageName = "render_index"
	StageEmitFeed     StageName = "emit_feed"
	StageEmitSitemap  StageName = "emit_sitemap"
	StageEmitRobots   StageName = "emit_robots"
	StageGeneratePDFs StageName = "generate_pdfs"
)

// State carries the working document set between stages.
type State struct {
	Site      *Site
	Documents []docmodel.Document
	Scan      ScanStats
	Report    *Report
}

// Stage is a discrete unit of work in the site build.
type Stage func(ctx context.Context, st *State) error

// StageDef pairs a stage name with its executing function.
type StageDef struct {
	Name StageName
	Fn   Stage
}

// Pipeline is a fluent builder for ordered stage definitions.
type Pipeline struct{ Defs []StageDef }

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline { return &Pipeline{Defs: make([]StageDef, 0, 10)} }

// Add appends a stage unconditionally.
func (p *Pipeline) Add(name StageName, fn Stage) *Pipeline {
	p.Defs = append(p.Defs, StageDef{Name: name, Fn: fn})
	return p
}

// AddIf appends a stage only if cond is true.
func (p *Pipeline) AddIf(cond bool, name StageName, fn Stage) *Pipeline {
	if cond {
		p.Add(name, fn)
	}
	return p
}

// Build returns a copy of the stage definitions.
func (p *Pipeline) Build() []StageDef {
	out := make([]StageDef, len(p.Defs))
	copy(out, p.Defs)
	return out
}

// StageErrorKind classifies the outcome of a stage.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Build must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying the stage and the underlying cause.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// NewFatalStageError creates a new fatal stage error.
func NewFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}

func NewWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}

func NewCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// Report records per-stage timing and outcomes for one build.
type Report struct {
	Start          time.Time
	End            time.Time
	StageDurations map[StageName]time.Duration
	StageResults   map[StageName]metrics.ResultLabel
	Warnings       []error
}

func newReport() *Report {
	return &Report{
		Start:          time.Now(),
		StageDurations: make(map[StageName]time.Duration),
		StageResults:   make(map[StageName]metrics.ResultLabel),
	}
}

// Duration returns the wall time of the build, or the time so far when unfinished.
func (r *Report) Duration() time.Duration {
	if r.End.IsZero() {
		return time.Since(r.Start)
	}
	return r.End.Sub(r.Start)
}

// RunStages executes stages in order, recording timing and stopping on the first fatal error.
// Warnings are logged and the build continues.
func RunStages(ctx context.Context, st *State, stages []StageDef) error {
	if st.Report == nil {
		st.Report = newReport()
	}
	rec := st.Site.Recorder
	defer func() { st.Report.End = time.Now() }()

	for _, def := range stages {
		select {
		case <-ctx.Done():
			se := NewCanceledStageError(def.Name, ctx.Err())
			st.Report.StageResults[def.Name] = metrics.ResultFatal
			rec.IncStageResult(string(def.Name), metrics.ResultFatal)
			return se
		default:
		}

		t0 := time.Now()
		err := def.Fn(ctx, st)
		dur := time.Since(t0)

		st.Report.StageDurations[def.Name] = dur
		rec.ObserveStageDuration(string(def.Name), dur)

		result, abort := classifyStageResult(def.Name, err)
		st.Report.StageResults[def.Name] = result
		rec.IncStageResult(string(def.Name), result)

		if err == nil {
			slog.Debug("Stage complete", logfields.Stage(string(def.Name)), logfields.Since(t0))
			continue
		}
		if !abort {
			st.Report.Warnings = append(st.Report.Warnings, err)
			slog.Warn("Stage completed with warnings", logfields.Stage(string(def.Name)), logfields.Error(err))
			continue
		}
		var se *StageError
		if errors.As(err, &se) {
			return se
		}
		return NewFatalStageError(def.Name, err)
	}
	return nil
}

func classifyStageResult(stage StageName, err error) (metrics.ResultLabel, bool) {
	if err == nil {
		return metrics.ResultSuccess, false
	}
	var se *StageError
	if !errors.As(err, &se) {
		return metrics.ResultFatal, true
	}
	switch se.Kind {
	case StageErrorWarning:
		return metrics.ResultWarning, false
	case StageErrorFatal, StageErrorCanceled:
		return metrics.ResultFatal, true
	}
	slog.Error("Unknown stage error kind", logfields.Stage(string(stage)), slog.String("kind", string(se.Kind)))
	return metrics.ResultFatal, true
}

package pipeline

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/sitegen/internal/docmodel"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
)

// FullBuildStages returns the ordered stages of a complete build.
// PDF generation is included only when the toolchain is available.
func (s *Site) FullBuildStages() []StageDef {
	return NewPipeline().
		Add(StageEnsureOutput, func(_ context.Context, st *State) error {
			return st.Site.EnsureOutput()
		}).
		Add(StageScan, func(ctx context.Context, st *State) error {
			docs, stats, err := st.Site.Scan(ctx)
			if err != nil {
				return err
			}
			st.Documents, st.Scan = docs, stats
			return nil
		}).
		Add(StageTransform, func(_ context.Context, st *State) error {
			st.Site.Transform(st.Documents)
			return nil
		}).
		Add(StageCopyAssets, func(_ context.Context, st *State) error {
			return st.Site.CopyAssets()
		}).
		Add(StageRenderPages, func(_ context.Context, st *State) error {
			return st.Site.RenderPages(st.Documents, st.Documents)
		}).
		Add(StageRenderIndex, func(_ context.Context, st *State) error {
			return st.Site.RenderIndex(st.Documents)
		}).
		Add(StageEmitFeed, func(_ context.Context, st *State) error {
			return st.Site.EmitFeed(st.Documents, time.Now())
		}).
		Add(StageEmitSitemap, func(_ context.Context, st *State) error {
			return st.Site.EmitSitemap(st.Documents, time.Now())
		}).
		Add(StageEmitRobots, func(_ context.Context, st *State) error {
			return st.Site.EmitRobots()
		}).
		AddIf(s.PDFEnabled(), StageGeneratePDFs, func(ctx context.Context, st *State) error {
			if _, err := st.Site.GeneratePDFs(ctx, st.Documents); err != nil {
				return NewWarnStageError(StageGeneratePDFs, err)
			}
			return nil
		}).
		Build()
}

// FullBuild runs every stage and returns the resulting state.
// The state is returned even on failure so callers can inspect the report.
func (s *Site) FullBuild(ctx context.Context) (*State, error) {
	st := &State{Site: s, Report: newReport()}
	slog.Info("Starting site generation", slog.String("content", s.ContentRoot), slog.String("output", s.OutputRoot))
	if err := RunStages(ctx, st, s.FullBuildStages()); err != nil {
		return st, err
	}
	slog.Info("Site generation complete", logfields.Documents(len(st.Documents)), logfields.DurationMS(float64(st.Report.Duration().Milliseconds())))
	return st, nil
}

// RefreshAggregates re-renders the index and rewrites feed, sitemap and robots
// from the full document set.
func (s *Site) RefreshAggregates(all []docmodel.Document) error {
	now := time.Now()
	if err := s.RenderIndex(all); err != nil {
		return err
	}
	if err := s.EmitFeed(all, now); err != nil {
		return err
	}
	if err := s.EmitSitemap(all, now); err != nil {
		return err
	}
	return s.EmitRobots()
}

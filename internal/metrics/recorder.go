package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultWarning ResultLabel = "warning"
	ResultFatal   ResultLabel = "fatal"
	ResultSkipped ResultLabel = "skipped"
)

// BuildKind distinguishes full rebuilds from narrow incremental updates.
type BuildKind string

const (
	BuildFull        BuildKind = "full"
	BuildIncremental BuildKind = "incremental"
)

// Recorder defines observability hooks for builds, stages and the reload channel.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveBuildDuration(kind BuildKind, d time.Duration)
	IncBuildOutcome(kind BuildKind, success bool)
	IncChange(change string)
	IncFallback()
	SetReloadClients(n int)
	IncReloadBroadcast()
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel) {}
func (NoopRecorder) ObserveBuildDuration(BuildKind, time.Duration) {}
func (NoopRecorder) IncBuildOutcome(BuildKind, bool) {}
func (NoopRecorder) IncChange(string) {}
func (NoopRecorder) IncFallback() {}
func (NoopRecorder) SetReloadClients(int) {}
func (NoopRecorder) IncReloadBroadcast() {}

package events

import "time"

// BuildEvent is implemented by every build lifecycle event.
type BuildEvent interface {
	EventBuildID() string
}

// BuildStarted is published before a full or incremental build runs.
type BuildStarted struct {
	BuildID string `json:"build_id"`
	Kind    string `json:"kind"`
	// Trigger is the changed path for incremental builds, empty for manual full builds.
	Trigger   string    `json:"trigger,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// BuildFinished is published once a build returns, successful or not.
type BuildFinished struct {
	BuildID    string        `json:"build_id"`
	Kind       string        `json:"kind"`
	Trigger    string        `json:"trigger,omitempty"`
	Change     string        `json:"change"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Documents  int           `json:"documents"`
	Duration   time.Duration `json:"duration_ns"`
	FinishedAt time.Time     `json:"finished_at"`
	// Fingerprints maps re-rendered document paths to their content fingerprint.
	Fingerprints map[string]string `json:"fingerprints,omitempty"`
}

// ReloadSent is published after browsers were told to refresh.
type ReloadSent struct {
	BuildID string    `json:"build_id"`
	Clients int       `json:"clients"`
	SentAt  time.Time `json:"sent_at"`
}

func (e BuildStarted) EventBuildID() string  { return e.BuildID }
func (e BuildFinished) EventBuildID() string { return e.BuildID }
func (e ReloadSent) EventBuildID() string    { return e.BuildID }

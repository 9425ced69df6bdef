package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// BuildSummary is the read model of one build.
type BuildSummary struct {
	BuildID     string        `json:"build_id"`
	Kind        string        `json:"kind"`
	Trigger     string        `json:"trigger,omitempty"`
	Change      string        `json:"change,omitempty"`
	Status      string        `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Documents   int           `json:"documents"`
	Error       string        `json:"error,omitempty"`
	// Reloads counts the browsers told to refresh after this build.
	Reloads int `json:"reloads"`
}

// BuildHistoryProjection keeps a bounded, newest-first history of builds,
// reconstructed from the journal.
type BuildHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	builds   map[string]*BuildSummary
	history  []*BuildSummary
	maxSize  int
	lastSync time.Time
}

// NewBuildHistoryProjection creates a projection backed by store.
func NewBuildHistoryProjection(store Store, maxHistorySize int) *BuildHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &BuildHistoryProjection{
		store:   store,
		builds:  make(map[string]*BuildSummary),
		history: make([]*BuildSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild replays every journaled event.
func (p *BuildHistoryProjection) Rebuild(ctx context.Context) error {
	evts, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.builds = make(map[string]*BuildSummary)
	p.history = make([]*BuildSummary, 0, p.maxSize)
	for _, e := range evts {
		p.applyLocked(e)
	}
	sort.SliceStable(p.history, func(i, j int) bool {
		return p.history[i].StartedAt.After(p.history[j].StartedAt)
	})
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneLocked()
	p.lastSync = time.Now()
	return nil
}

// Apply folds one event into the projection.
func (p *BuildHistoryProjection) Apply(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(e)
}

func (p *BuildHistoryProjection) applyLocked(e Event) {
	id := e.BuildID()
	if id == "" {
		return
	}
	summary, ok := p.builds[id]
	if !ok {
		if e.Type() == TypeReloadSent {
			return
		}
		summary = &BuildSummary{BuildID: id, Status: StatusRunning, StartedAt: e.Timestamp()}
		p.builds[id] = summary
	}

	switch e.Type() {
	case TypeBuildStarted:
		var payload struct {
			Kind    string `json:"kind"`
			Trigger string `json:"trigger"`
		}
		if err := json.Unmarshal(e.Payload(), &payload); err == nil {
			summary.Kind = payload.Kind
			summary.Trigger = payload.Trigger
		}
		summary.StartedAt = e.Timestamp()

	case TypeBuildFinished:
		var payload struct {
			Kind      string `json:"kind"`
			Trigger   string `json:"trigger"`
			Change    string `json:"change"`
			Success   bool   `json:"success"`
			Error     string `json:"error"`
			Documents int    `json:"documents"`
			Duration  int64  `json:"duration_ns"`
		}
		if err := json.Unmarshal(e.Payload(), &payload); err != nil {
			return
		}
		done := e.Timestamp()
		summary.CompletedAt = &done
		summary.Kind = payload.Kind
		summary.Trigger = payload.Trigger
		summary.Change = payload.Change
		summary.Documents = payload.Documents
		summary.Error = payload.Error
		summary.Duration = time.Duration(payload.Duration)
		summary.Status = StatusFailed
		if payload.Success {
			summary.Status = StatusSucceeded
		}
		p.addToHistoryLocked(summary)

	case TypeReloadSent:
		var payload struct {
			Clients int `json:"clients"`
		}
		if err := json.Unmarshal(e.Payload(), &payload); err == nil {
			summary.Reloads += payload.Clients
		}
	}
}

func (p *BuildHistoryProjection) addToHistoryLocked(summary *BuildSummary) {
	for _, h := range p.history {
		if h.BuildID == summary.BuildID {
			return
		}
	}
	p.history = append([]*BuildSummary{summary}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneLocked()
}

// pruneLocked drops finished builds that fell out of the bounded history.
func (p *BuildHistoryProjection) pruneLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		keep[h.BuildID] = struct{}{}
	}
	for id, s := range p.builds {
		if s.Status == StatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.builds, id)
		}
	}
}

// History returns copies of the finished builds, newest first.
func (p *BuildHistoryProjection) History() []BuildSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]BuildSummary, len(p.history))
	for i, h := range p.history {
		out[i] = *h
	}
	return out
}

// Build returns the summary for one build.
func (p *BuildHistoryProjection) Build(buildID string) (BuildSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.builds[buildID]
	if !ok {
		return BuildSummary{}, false
	}
	return *s, true
}

// LastCompleted returns the most recently finished build.
func (p *BuildHistoryProjection) LastCompleted() (BuildSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.history) == 0 {
		return BuildSummary{}, false
	}
	return *p.history[0], true
}

// LastSyncTime returns when Rebuild last ran.
func (p *BuildHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}

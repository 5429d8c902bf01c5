// Package runstore tracks in-flight and completed generation runs for the
// HTTP API. It is an in-memory registry; durable history lives in the
// database layer.
package runstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sitedesc/llmstxt/internal/descriptor"
)

// State is the lifecycle of a tracked run.
type State string

// Run lifecycle values.
const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
)

// Run is one tracked generation.
type Run struct {
	ID          string                `json:"id"`
	State       State                 `json:"state"`
	Submitted   time.Time             `json:"submitted_at"`
	Finished    *time.Time            `json:"finished_at,omitempty"`
	Summary     descriptor.RunSummary `json:"summary"`
	ArtifactURI string                `json:"artifact_uri,omitempty"`
	Error       string                `json:"error,omitempty"`

	document string
	cancel   context.CancelFunc
}

// ErrNotFound is returned for unknown run IDs.
var ErrNotFound = fmt.Errorf("run not found")

// Store is a concurrency-safe run registry.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// New returns an empty Store.
func New() *Store {
	return &Store{runs: make(map[string]*Run)}
}

// Begin registers a running run and keeps its cancel function.
func (s *Store) Begin(id string, submitted time.Time, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[id] = &Run{
		ID:        id,
		State:     StateRunning,
		Submitted: submitted,
		cancel:    cancel,
	}
}

// Complete marks a run finished with its document and summary.
func (s *Store) Complete(id string, finished time.Time, summary descriptor.RunSummary, document, artifactURI string, canceled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return
	}
	run.State = StateSucceeded
	if canceled {
		run.State = StateCanceled
	}
	run.Finished = &finished
	run.Summary = summary
	run.ArtifactURI = artifactURI
	run.document = document
	run.cancel = nil
}

// Fail marks a run failed with its error message.
func (s *Store) Fail(id string, finished time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return
	}
	run.State = StateFailed
	run.Finished = &finished
	if err != nil {
		run.Error = err.Error()
	}
	run.cancel = nil
}

// Get returns a copy of the run's public state.
func (s *Store) Get(id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return *run, nil
}

// Document returns the rendered document for a finished run.
func (s *Store) Document(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return "", ErrNotFound
	}
	if run.State == StateRunning {
		return "", fmt.Errorf("run %s is still running", id)
	}
	if run.document == "" {
		return "", fmt.Errorf("run %s produced no document", id)
	}
	return run.document, nil
}

// Cancel requests cancellation of a running run. Canceling a finished run
// is a no-op.
func (s *Store) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return ErrNotFound
	}
	if run.cancel != nil {
		run.cancel()
	}
	return nil
}

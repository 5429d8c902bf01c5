// Package database persists run history. The Provider interface decouples
// the pipeline from Postgres so local runs can skip persistence entirely.
package database

import (
	"context"

	"github.com/sitedesc/llmstxt/internal/descriptor"
)

// Provider records finished runs and their per-page outcomes.
type Provider interface {
	// RecordRun inserts one run row.
	RecordRun(ctx context.Context, run descriptor.RunRecord) error
	// RecordPages inserts the per-page outcome rows for a run.
	RecordPages(ctx context.Context, pages []descriptor.PageOutcome) error
	// Close releases the underlying connection resources.
	Close()
}

// NoOp discards all writes. Used when no DSN is configured.
type NoOp struct{}

// RecordRun does nothing.
func (NoOp) RecordRun(_ context.Context, _ descriptor.RunRecord) error { return nil }

// RecordPages does nothing.
func (NoOp) RecordPages(_ context.Context, _ []descriptor.PageOutcome) error { return nil }

// Close does nothing.
func (NoOp) Close() {}

package headless

import (
	"context"
	"errors"

	"github.com/sitedesc/llmstxt/internal/descriptor"
)

// Noop implements descriptor.Fetcher but always returns an error to
// indicate that rendering is not available in the current build.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch returns an error since this is a stub implementation.
func (Noop) Fetch(_ context.Context, _ descriptor.FetchRequest) (descriptor.FetchResponse, error) {
	return descriptor.FetchResponse{}, errors.New("headless fetcher not configured")
}

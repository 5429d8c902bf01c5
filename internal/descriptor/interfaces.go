package descriptor

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// RenderDetector decides whether a rendered (headless) fetch is warranted
// after inspecting the static response.
type RenderDetector interface {
	ShouldRender(probe FetchResponse) bool
}

// Completer produces generated text for a prompt. Implementations return
// errors satisfying RetryableError when the failure is transient.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RetryableError marks failures worth another attempt (rate limits,
// upstream 5xx, timeouts).
type RetryableError interface {
	error
	Retryable() bool
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes run-completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

package descriptor

import "fmt"

// ResolutionError means the root sitemap could not be fetched or parsed.
// It is the only condition that aborts a run.
type ResolutionError struct {
	URL string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve sitemap %s: %v", e.URL, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ChildResolutionWarning records a nested sitemap that failed; the run
// continues with reduced coverage.
type ChildResolutionWarning struct {
	URL string
	Err error
}

func (w ChildResolutionWarning) Error() string {
	return fmt.Sprintf("child sitemap %s skipped: %v", w.URL, w.Err)
}

func (w ChildResolutionWarning) Unwrap() error { return w.Err }

package runstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sitedesc/llmstxt/internal/descriptor"
)

func TestRunLifecycle(t *testing.T) {
	t.Parallel()

	store := New()
	submitted := time.Unix(1700000000, 0).UTC()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	store.Begin("run-1", submitted, cancel)

	run, err := store.Get("run-1")
	require.NoError(t, err)
	require.Equal(t, StateRunning, run.State)
	require.Nil(t, run.Finished)

	_, err = store.Document("run-1")
	require.Error(t, err)

	finished := submitted.Add(time.Minute)
	store.Complete("run-1", finished, descriptor.RunSummary{Resolved: 2, Fetched: 2}, "# Doc\n", "file:///tmp/llms.txt", false)

	run, err = store.Get("run-1")
	require.NoError(t, err)
	require.Equal(t, StateSucceeded, run.State)
	require.Equal(t, 2, run.Summary.Fetched)
	require.Equal(t, "file:///tmp/llms.txt", run.ArtifactURI)

	doc, err := store.Document("run-1")
	require.NoError(t, err)
	require.Equal(t, "# Doc\n", doc)
}

func TestFailRecordsError(t *testing.T) {
	t.Parallel()

	store := New()
	store.Begin("run-1", time.Now(), func() {})
	store.Fail("run-1", time.Now(), context.DeadlineExceeded)

	run, err := store.Get("run-1")
	require.NoError(t, err)
	require.Equal(t, StateFailed, run.State)
	require.Equal(t, context.DeadlineExceeded.Error(), run.Error)
}

func TestCancelInvokesCancelFunc(t *testing.T) {
	t.Parallel()

	store := New()
	ctx, cancel := context.WithCancel(context.Background())
	store.Begin("run-1", time.Now(), cancel)

	require.NoError(t, store.Cancel("run-1"))
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("cancel did not propagate")
	}
}

func TestCompleteCanceledRunState(t *testing.T) {
	t.Parallel()

	store := New()
	store.Begin("run-1", time.Now(), func() {})
	store.Complete("run-1", time.Now(), descriptor.RunSummary{}, "partial doc", "", true)

	run, err := store.Get("run-1")
	require.NoError(t, err)
	require.Equal(t, StateCanceled, run.State)
}

func TestUnknownRun(t *testing.T) {
	t.Parallel()

	store := New()
	_, err := store.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.Document("missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, store.Cancel("missing"), ErrNotFound)
}

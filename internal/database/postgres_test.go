package database

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/sitedesc/llmstxt/internal/descriptor"
)

func TestRecordRunInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresWithPool(mock, "generation_runs", "generation_pages")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	finished := now.Add(42 * time.Second)
	run := descriptor.RunRecord{
		ID:        "run-1",
		Source:    "sitemap",
		Submitted: now,
		Finished:  &finished,
		Summary: descriptor.RunSummary{
			Resolved: 4,
			Fetched:  3,
		},
		ArtifactURI: "gs://bucket/runs/run-1/llms.txt",
	}

	mock.ExpectExec("INSERT INTO generation_runs").
		WithArgs(
			run.ID,
			run.Source,
			run.Submitted,
			run.Finished,
			[]byte(`{"resolved":4,"fetched":3,"fetch_failures":0,"analysis_degraded":0,"enriched":0,"enrichment_failures":0,"child_sitemap_failures":0,"excluded_from_output":0}`),
			run.ArtifactURI,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.RecordRun(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRunRequiresID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresWithPool(mock, "", "")
	require.NoError(t, err)

	require.Error(t, store.RecordRun(context.Background(), descriptor.RunRecord{}))
}

func TestRecordPagesInsertsEachRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresWithPool(mock, "", "")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	pages := []descriptor.PageOutcome{
		{
			RunID:             "run-1",
			URL:               "https://e.com/a",
			Status:            descriptor.StatusFetched,
			Category:          "Guides",
			DescriptionSource: "generated",
			FetchedAt:         now,
		},
		{
			RunID:             "run-1",
			URL:               "https://e.com/b",
			Status:            descriptor.StatusFailed,
			ErrorReason:       "fetch_timeout",
			Category:          "Other",
			DescriptionSource: "none",
			FetchedAt:         now,
		},
	}

	for _, p := range pages {
		mock.ExpectExec("INSERT INTO generation_pages").
			WithArgs(
				p.RunID,
				p.URL,
				string(p.Status),
				p.ErrorReason,
				p.Category,
				p.DescriptionSource,
				p.Rendered,
				p.FetchedAt,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	require.NoError(t, store.RecordPages(context.Background(), pages))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresWithPoolValidatesTables(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPostgresWithPool(mock, "bad-table;", "")
	require.Error(t, err)

	_, err = NewPostgresWithPool(nil, "", "")
	require.Error(t, err)
}

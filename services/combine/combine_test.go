package combine

import (
	"context"
	"jobdash-backend/lib/jobstore"
	"jobdash-backend/lib/telemetry"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func writeStore(t *testing.T, path string, source jobstore.Source, recs []jobstore.Record, inactive ...string) {
	t.Helper()
	store, err := jobstore.Open(path, source)
	require.NoError(t, err)

	seen := map[string]struct{}{}
	for _, rec := range recs {
		store.Upsert(rec)
		seen[rec.IdentityKey] = struct{}{}
	}
	for _, key := range inactive {
		delete(seen, key)
	}
	if len(inactive) > 0 {
		store.MarkAbsent(seen)
	}
	require.NoError(t, store.Flush())
}

func date(day int) time.Time {
	return time.Date(2025, 8, day, 0, 0, 0, 0, time.UTC)
}

func TestRunMergesAcrossSources(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:combine")
	defer cleanup()

	dir := t.TempDir()
	amazonPath := filepath.Join(dir, "amazon_jobs.csv")
	theirstackPath := filepath.Join(dir, "theirstack_jobs.csv")
	outPath := filepath.Join(dir, "all_jobs.csv")

	// same job seen by both sources: gone from the board (inactive on the
	// primary side) but the aggregator still lists it
	writeStore(t, amazonPath, jobstore.SourceAmazon, []jobstore.Record{{
		IdentityKey: "2837465",
		Title:       "ML Engineer",
		Company:     "Amazon",
		Location:    "Luxembourg",
		PostingDate: date(1),
	}}, "2837465")
	writeStore(t, theirstackPath, jobstore.SourceTheirStack, []jobstore.Record{{
		IdentityKey:        "9001",
		Title:              "ml  engineer", // spacing and case must not matter
		Company:            "Amazon",
		PostingDate:        date(2),
		QualificationsHTML: "<ul><li>5 years ML</li></ul>",
	}})

	summary, err := Run(context.Background(), Options{
		SourcePaths: []string{amazonPath, theirstackPath},
		OutputPath:  outPath,
	})
	require.NoError(t, err)
	require.Equal(t, 2, summary.SourcesLoaded)
	require.Equal(t, 1, summary.Merged)
	require.Equal(t, 1, summary.Records)

	file, err := os.Open(outPath)
	require.NoError(t, err)
	defer file.Close()
	records, err := jobstore.Load(file)
	require.NoError(t, err)
	require.Len(t, records, 1)

	// primary fields win, qualifications fill in from the aggregator,
	// active is the OR of both sides
	merged := records[0]
	require.Equal(t, "2837465", merged.IdentityKey)
	require.Equal(t, "ML Engineer", merged.Title)
	require.Equal(t, "Luxembourg", merged.Location)
	require.Equal(t, "<ul><li>5 years ML</li></ul>", merged.QualificationsHTML)
	require.True(t, merged.Active)
}

func TestRunDateToleranceSeparates(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:combine")
	defer cleanup()

	dir := t.TempDir()
	amazonPath := filepath.Join(dir, "amazon_jobs.csv")
	theirstackPath := filepath.Join(dir, "theirstack_jobs.csv")

	writeStore(t, amazonPath, jobstore.SourceAmazon, []jobstore.Record{{
		IdentityKey: "1", Title: "SDE II", Company: "Amazon", PostingDate: date(1),
	}})
	writeStore(t, theirstackPath, jobstore.SourceTheirStack, []jobstore.Record{{
		IdentityKey: "2", Title: "SDE II", Company: "Amazon", PostingDate: date(5),
	}})

	summary, err := Run(context.Background(), Options{
		SourcePaths: []string{amazonPath, theirstackPath},
		OutputPath:  filepath.Join(dir, "all_jobs.csv"),
	})
	require.NoError(t, err)
	require.Equal(t, 0, summary.Merged)
	require.Equal(t, 2, summary.Records)
}

func TestRunTitleHints(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:combine")
	defer cleanup()

	dir := t.TempDir()
	amazonPath := filepath.Join(dir, "amazon_jobs.csv")
	theirstackPath := filepath.Join(dir, "theirstack_jobs.csv")

	writeStore(t, amazonPath, jobstore.SourceAmazon, []jobstore.Record{{
		IdentityKey: "1", Title: "Software Development Engineer II", Company: "Amazon", PostingDate: date(1),
	}})
	writeStore(t, theirstackPath, jobstore.SourceTheirStack, []jobstore.Record{{
		IdentityKey: "2", Title: "SDE 2", Company: "Amazon", PostingDate: date(1),
	}})

	summary, err := Run(context.Background(), Options{
		SourcePaths: []string{amazonPath, theirstackPath},
		OutputPath:  filepath.Join(dir, "all_jobs.csv"),
		TitleHints:  map[string]string{"sde 2": "Software Development Engineer II"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Merged)
	require.Equal(t, 1, summary.Records)
}

func TestRunIdempotent(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:combine")
	defer cleanup()

	dir := t.TempDir()
	amazonPath := filepath.Join(dir, "amazon_jobs.csv")
	theirstackPath := filepath.Join(dir, "theirstack_jobs.csv")
	outPath := filepath.Join(dir, "all_jobs.csv")

	writeStore(t, amazonPath, jobstore.SourceAmazon, []jobstore.Record{
		{IdentityKey: "1", Title: "SDE II", Company: "Amazon", PostingDate: date(1)},
		{IdentityKey: "2", Title: "Data Engineer", Company: "Amazon", PostingDate: date(2)},
	})
	writeStore(t, theirstackPath, jobstore.SourceTheirStack, []jobstore.Record{
		{IdentityKey: "9", Title: "ML Engineer", Company: "Initech", PostingDate: date(3)},
	})

	opts := Options{
		SourcePaths: []string{amazonPath, theirstackPath},
		OutputPath:  outPath,
	}
	_, err := Run(context.Background(), opts)
	require.NoError(t, err)
	first, err := os.ReadFile(outPath)
	require.NoError(t, err)

	_, err = Run(context.Background(), opts)
	require.NoError(t, err)
	second, err := os.ReadFile(outPath)
	require.NoError(t, err)

	require.Empty(t, cmp.Diff(string(first), string(second)))
}

func TestRunSkipsUnreadableSource(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:combine")
	defer cleanup()

	dir := t.TempDir()
	amazonPath := filepath.Join(dir, "amazon_jobs.csv")
	writeStore(t, amazonPath, jobstore.SourceAmazon, []jobstore.Record{
		{IdentityKey: "1", Title: "SDE II", Company: "Amazon"},
	})

	summary, err := Run(context.Background(), Options{
		SourcePaths: []string{amazonPath, filepath.Join(dir, "missing.csv")},
		OutputPath:  filepath.Join(dir, "all_jobs.csv"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, summary.SourcesLoaded)
	require.Len(t, summary.SourcesSkipped, 1)
	require.Equal(t, 1, summary.Records)
}

func TestRunNoReadableSources(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:combine")
	defer cleanup()

	dir := t.TempDir()
	_, err := Run(context.Background(), Options{
		SourcePaths: []string{filepath.Join(dir, "missing.csv")},
		OutputPath:  filepath.Join(dir, "all_jobs.csv"),
	})
	require.Error(t, err)
}

package amazon

import (
	"context"
	"encoding/json"
	"fmt"
	"jobdash-backend/lib/jobstore"
	"jobdash-backend/lib/taxonomy"
	"jobdash-backend/lib/telemetry"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func pageServer(t *testing.T, jobs []rawJob, pageSize int, failAtOffset int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var offset int
		fmt.Sscanf(r.URL.Query().Get("offset"), "%d", &offset)
		if failAtOffset >= 0 && offset >= failAtOffset {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		end := offset + pageSize
		if end > len(jobs) {
			end = len(jobs)
		}
		page := []rawJob{}
		if offset < len(jobs) {
			page = jobs[offset:end]
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(searchResponse{Hits: len(jobs), Jobs: page})
	}))
}

func testClient(t *testing.T, url string) *Client {
	t.Helper()
	client, err := NewClient(ClientOptions{
		SearchURL:      url,
		ResultLimit:    2,
		Retries:        1,
		BackoffSeconds: 0.01,
		TimeoutSeconds: 5,
	})
	require.NoError(t, err)
	return client
}

func TestScrape(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:amazon")
	defer cleanup()

	jobs := []rawJob{
		{IDIcims: "1", Title: "SDE II", JobPath: "/en/jobs/1/sde-ii"},
		{IDIcims: "2", Title: "Data Engineer", JobPath: "/en/jobs/2/de"},
		{IDIcims: "3", Title: "Security Engineer", JobPath: "/en/jobs/3/sec"},
		{Title: ""}, // unusable, must be dropped not fatal
		{IDIcims: "4", Title: "SDE I", JobPath: "/en/jobs/4/sde-i"},
	}
	server := pageServer(t, jobs, 2, -1)
	defer server.Close()

	path := filepath.Join(t.TempDir(), "amazon_jobs.csv")
	store, err := jobstore.Open(path, jobstore.SourceAmazon)
	require.NoError(t, err)

	service := NewService(testClient(t, server.URL), store, taxonomy.NewMapper(nil))
	summary, err := service.Scrape(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, summary.Fetched)
	require.Equal(t, 4, summary.Upserted)
	require.Equal(t, 1, summary.Dropped)
	require.True(t, summary.RunComplete)
	require.Equal(t, 4, store.Len())
}

func TestScrapeAbsencePass(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:amazon")
	defer cleanup()

	path := filepath.Join(t.TempDir(), "amazon_jobs.csv")
	store, err := jobstore.Open(path, jobstore.SourceAmazon)
	require.NoError(t, err)
	store.Upsert(jobstore.Record{IdentityKey: "999", Title: "Gone Role", Company: "Amazon"})
	require.NoError(t, store.Flush())

	jobs := []rawJob{{IDIcims: "1", Title: "SDE II", JobPath: "/en/jobs/1/x"}}
	server := pageServer(t, jobs, 2, -1)
	defer server.Close()

	store, err = jobstore.Open(path, jobstore.SourceAmazon)
	require.NoError(t, err)
	service := NewService(testClient(t, server.URL), store, taxonomy.NewMapper(nil))
	summary, err := service.Scrape(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.MarkedInactive)

	gone, ok := store.Get("999")
	require.True(t, ok)
	require.False(t, gone.Active)
}

func TestScrapePartialSkipsAbsencePass(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:amazon")
	defer cleanup()

	path := filepath.Join(t.TempDir(), "amazon_jobs.csv")
	store, err := jobstore.Open(path, jobstore.SourceAmazon)
	require.NoError(t, err)
	store.Upsert(jobstore.Record{IdentityKey: "999", Title: "Still Here", Company: "Amazon"})
	require.NoError(t, store.Flush())

	jobs := []rawJob{
		{IDIcims: "1", Title: "SDE II", JobPath: "/en/jobs/1/x"},
		{IDIcims: "2", Title: "SDE III", JobPath: "/en/jobs/2/x"},
		{IDIcims: "3", Title: "SDE I", JobPath: "/en/jobs/3/x"},
	}
	// the second page 500s, the crawl is partial
	server := pageServer(t, jobs, 2, 2)
	defer server.Close()

	store, err = jobstore.Open(path, jobstore.SourceAmazon)
	require.NoError(t, err)
	service := NewService(testClient(t, server.URL), store, taxonomy.NewMapper(nil))
	summary, err := service.Scrape(context.Background())
	require.Error(t, err)
	require.False(t, summary.RunComplete)
	require.Equal(t, 0, summary.MarkedInactive)

	// what the partial crawl saw is still persisted
	require.Equal(t, 2, summary.Upserted)

	// and the unobserved record must not be flipped
	still, ok := store.Get("999")
	require.True(t, ok)
	require.True(t, still.Active)
}

func TestScrapeMaxPagesCap(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:amazon")
	defer cleanup()

	jobs := []rawJob{
		{IDIcims: "1", Title: "A", JobPath: "/en/jobs/1/x"},
		{IDIcims: "2", Title: "B", JobPath: "/en/jobs/2/x"},
		{IDIcims: "3", Title: "C", JobPath: "/en/jobs/3/x"},
	}
	server := pageServer(t, jobs, 2, -1)
	defer server.Close()

	client, err := NewClient(ClientOptions{
		SearchURL:   server.URL,
		ResultLimit: 2,
		MaxPages:    1,
	})
	require.NoError(t, err)

	fetched, complete, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, fetched, 2)
	require.False(t, complete)
}

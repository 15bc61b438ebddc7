package amazon

import (
	"context"
	"errors"
	"jobdash-backend/lib/jobstore"
	"jobdash-backend/lib/taxonomy"
	"log/slog"
	"time"
)

type Service struct {
	client *Client
	store  *jobstore.Store
	mapper taxonomy.Mapper
}

func NewService(client *Client, store *jobstore.Store, mapper taxonomy.Mapper) Service {
	return Service{client: client, store: store, mapper: mapper}
}

type Summary struct {
	Fetched        int
	Upserted       int
	Dropped        int
	MarkedInactive int
	RunComplete    bool
}

// Scrape runs one full crawl: fetch every page, upsert each normalized
// record, and flip unobserved records to inactive, but only when the
// crawl covered the complete listing. A partial crawl still persists
// what it saw, the absence pass is skipped.
func (s Service) Scrape(ctx context.Context) (Summary, error) {
	ctx, span := tracer.Start(ctx, "Scrape")
	defer span.End()

	var summary Summary

	jobs, complete, fetchErr := s.client.FetchAll(ctx)
	summary.Fetched = len(jobs)
	summary.RunComplete = complete && fetchErr == nil

	seen := make(map[string]struct{}, len(jobs))
	now := time.Now()
	for _, raw := range jobs {
		rec, err := Normalize(raw, s.mapper, now)
		if err != nil {
			if !errors.Is(err, jobstore.ErrNormalization) {
				slog.ErrorContext(ctx, "unexpected normalize failure", "source", "amazon", "err", err)
			} else {
				slog.WarnContext(ctx, "dropping record", "source", "amazon", "err", err)
			}
			summary.Dropped++
			continue
		}
		s.store.Upsert(rec)
		seen[rec.IdentityKey] = struct{}{}
		summary.Upserted++
	}

	if summary.RunComplete {
		summary.MarkedInactive = s.store.MarkAbsent(seen)
	} else {
		slog.WarnContext(ctx, "incomplete crawl, skipping absence pass", "source", "amazon")
	}

	if err := s.store.Flush(); err != nil {
		return summary, err
	}
	return summary, fetchErr
}

package theirstack

import (
	"context"
	"errors"
	"jobdash-backend/lib/jobstore"
	"jobdash-backend/lib/taxonomy"
	"log/slog"
	"strings"
	"time"
)

// firstRunLookback bounds the very first incremental window so a cold
// tracker does not turn into an unbounded paid fetch.
const firstRunLookback = 24 * time.Hour

type Service struct {
	client  *Client
	store   *jobstore.Store
	tracker *Tracker
	mapper  taxonomy.Mapper
}

func NewService(client *Client, store *jobstore.Store, tracker *Tracker, mapper taxonomy.Mapper) Service {
	return Service{client: client, store: store, tracker: tracker, mapper: mapper}
}

type Summary struct {
	PrecheckTotal int
	Fetched       int
	Upserted      int
	Dropped       int
	WideFallback  bool
	ResumedAtPage int
}

// queryKey identifies the filter combination a watermark belongs to, so
// changing the configured countries or titles starts a fresh window
// instead of inheriting another query's high-water mark.
func (s Service) queryKey() string {
	opts := s.client.Options()
	return strings.Join(opts.CountryCodes, ",") + "|" + strings.Join(opts.TitleFilters, ",")
}

// Scrape runs one incremental fetch: a free pre-check sizes the unseen
// window, then paid pages are bought up to the per-run cap, resuming
// from the last checkpointed page after a crash. Absence is never
// inferred here: incremental windows are partial views of the board by
// construction, so records only go inactive via the combiner's sources.
func (s Service) Scrape(ctx context.Context) (Summary, error) {
	ctx, span := tracer.Start(ctx, "Scrape")
	defer span.End()

	var summary Summary
	opts := s.client.Options()
	key := s.queryKey()
	since := s.tracker.Since(key, firstRunLookback)

	total, err := s.client.Precheck(ctx, since)
	if err != nil {
		// nothing was spent and nothing changed, safe to just abort
		return summary, err
	}
	summary.PrecheckTotal = total

	if total == 0 {
		slog.InfoContext(ctx, "no new jobs in incremental window, trying wide fallback",
			"source", "theirstack", "since", since)
		return s.wideFetch(ctx, key, summary)
	}

	target := min(total, opts.MaxJobsPerRun)
	page := s.tracker.Cursor() + 1
	summary.ResumedAtPage = page

	collected := 0
	for collected < target {
		limit := min(opts.PageSize, target-collected)
		jobs, err := s.client.FetchPage(ctx, since, page, limit)
		if err != nil {
			// cursor stays at the last checkpointed page, the next run
			// resumes there instead of re-buying stored pages
			s.flush(ctx)
			return summary, err
		}
		if len(jobs) == 0 {
			break
		}

		s.upsertAll(ctx, jobs, &summary)
		if err := s.store.Flush(); err != nil {
			return summary, err
		}
		if err := s.tracker.CheckpointPage(page); err != nil {
			return summary, err
		}

		collected += len(jobs)
		if len(jobs) < limit {
			break
		}
		page++
	}

	if err := s.tracker.CompleteRun(key); err != nil {
		return summary, err
	}
	return summary, nil
}

// wideFetch is the bounded fallback over the full max-age window. It
// only advances the watermark when it actually yields jobs, so a quiet
// board keeps being re-checked over the whole window.
func (s Service) wideFetch(ctx context.Context, key string, summary Summary) (Summary, error) {
	opts := s.client.Options()
	wideSince := time.Now().AddDate(0, 0, -opts.MaxAgeDays)

	wideTotal, err := s.client.Precheck(ctx, wideSince)
	if err != nil {
		slog.WarnContext(ctx, "wide pre-check failed", "source", "theirstack", "err", err)
		return summary, nil
	}
	if wideTotal == 0 || opts.WideFetchLimit <= 0 {
		return summary, nil
	}
	summary.WideFallback = true

	target := min(wideTotal, opts.WideFetchLimit)
	for page := 1; summary.Fetched < target; page++ {
		limit := min(opts.PageSize, target-summary.Fetched)
		jobs, err := s.client.FetchPage(ctx, wideSince, page, limit)
		if err != nil {
			slog.WarnContext(ctx, "wide fetch aborted", "source", "theirstack", "page", page, "err", err)
			break
		}
		if len(jobs) == 0 {
			break
		}
		s.upsertAll(ctx, jobs, &summary)
		if len(jobs) < limit {
			break
		}
	}

	if err := s.store.Flush(); err != nil {
		return summary, err
	}
	if summary.Upserted > 0 {
		if err := s.tracker.CompleteRun(key); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (s Service) upsertAll(ctx context.Context, jobs []rawJob, summary *Summary) {
	for _, raw := range jobs {
		summary.Fetched++
		rec, err := Normalize(raw, s.mapper)
		if err != nil {
			if !errors.Is(err, jobstore.ErrNormalization) {
				slog.ErrorContext(ctx, "unexpected normalize failure", "source", "theirstack", "err", err)
			} else {
				slog.WarnContext(ctx, "dropping record", "source", "theirstack", "err", err)
			}
			summary.Dropped++
			continue
		}
		s.store.Upsert(rec)
		summary.Upserted++
	}
}

func (s Service) flush(ctx context.Context) {
	if err := s.store.Flush(); err != nil {
		slog.ErrorContext(ctx, "flushing store after aborted fetch", "source", "theirstack", "err", err)
	}
}

// Package combine folds the per-source raw stores into the single
// canonical CSV the dashboard generator reads.
package combine

import (
	"context"
	"fmt"
	"jobdash-backend/lib/jobstore"
	"jobdash-backend/lib/textutil"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/combine")

type Options struct {
	// per-source store files, read in the order given
	SourcePaths []string `json:"source_paths"`
	OutputPath  string   `json:"output_path"`

	// fixed title corrections applied to aggregator records before
	// matching, keyed by normalized title
	TitleHints map[string]string `json:"title_hints"`

	// how far apart posting dates may be for two records to still count
	// as the same job
	DateToleranceDays int `json:"date_tolerance_days"`

	// JaroWinkler similarity above which unmerged same-company titles
	// are flagged as likely duplicates
	AuditThreshold float64 `json:"audit_similarity_threshold"`
}

type Summary struct {
	SourcesLoaded  int
	SourcesSkipped []string
	Records        int
	Merged         int
}

// Run reads every source store, merges cross-source duplicates and
// writes the canonical CSV atomically. A source that fails to load is
// skipped with a warning, the combine degrades rather than aborts as
// long as at least one source loads. Only an unwritable output is an
// error.
func Run(ctx context.Context, opts Options) (Summary, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	if opts.OutputPath == "" {
		return Summary{}, fmt.Errorf("combine: output_path is required")
	}
	if opts.DateToleranceDays <= 0 {
		opts.DateToleranceDays = 1
	}
	if opts.AuditThreshold <= 0 {
		opts.AuditThreshold = 0.93
	}

	var summary Summary
	var primary, secondary []jobstore.Record
	for _, path := range opts.SourcePaths {
		records, err := loadSource(path)
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable source", "path", path, "err", err)
			summary.SourcesSkipped = append(summary.SourcesSkipped, path)
			continue
		}
		summary.SourcesLoaded++
		for _, rec := range records {
			if rec.Source == jobstore.SourceAmazon {
				primary = append(primary, rec)
			} else {
				secondary = append(secondary, applyTitleHint(rec, opts.TitleHints))
			}
		}
	}
	if summary.SourcesLoaded == 0 {
		err := fmt.Errorf("combine: no readable sources among %d configured", len(opts.SourcePaths))
		span.RecordError(err)
		span.SetStatus(codes.Error, "no sources")
		return summary, err
	}

	merged, mergedCount := merge(primary, secondary, opts.DateToleranceDays)
	summary.Merged = mergedCount
	summary.Records = len(merged)

	auditNearDuplicates(ctx, merged, opts.AuditThreshold)

	if err := writeAtomic(opts.OutputPath, merged); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "canonical write failed")
		return summary, err
	}

	slog.InfoContext(ctx, "canonical csv written",
		"path", opts.OutputPath,
		"records", summary.Records,
		"merged", summary.Merged,
		"sources", summary.SourcesLoaded,
	)
	return summary, nil
}

func loadSource(path string) ([]jobstore.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return jobstore.Load(file)
}

func applyTitleHint(rec jobstore.Record, hints map[string]string) jobstore.Record {
	if fixed, ok := hints[textutil.NormalizeKey(rec.Title)]; ok {
		rec.Title = fixed
	}
	return rec
}

func matchKey(rec jobstore.Record) string {
	return textutil.NormalizeKey(rec.Title) + "|" + textutil.NormalizeKey(rec.Company)
}

// datesCompatible reports whether two posting dates could belong to the
// same job. An unknown date on either side never disqualifies a match.
func datesCompatible(a, b time.Time, toleranceDays int) bool {
	if a.IsZero() || b.IsZero() {
		return true
	}
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(toleranceDays)*24*time.Hour
}

// merge pairs aggregator records against primary ones. A pair with equal
// normalized title+company and compatible posting dates is one job: the
// primary record wins every field except QualificationsHTML, which is
// kept from whichever side has one, and Active, which is the OR of both.
func merge(primary, secondary []jobstore.Record, toleranceDays int) ([]jobstore.Record, int) {
	byKey := make(map[string][]int, len(primary))
	for i, rec := range primary {
		key := matchKey(rec)
		byKey[key] = append(byKey[key], i)
	}

	out := make([]jobstore.Record, len(primary))
	copy(out, primary)

	mergedCount := 0
	for _, rec := range secondary {
		matched := false
		for _, i := range byKey[matchKey(rec)] {
			if !datesCompatible(out[i].PostingDate, rec.PostingDate, toleranceDays) {
				continue
			}
			if out[i].QualificationsHTML == "" {
				out[i].QualificationsHTML = rec.QualificationsHTML
			}
			out[i].Active = out[i].Active || rec.Active
			matched = true
			mergedCount++
			break
		}
		if !matched {
			out = append(out, rec)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].IdentityKey != out[j].IdentityKey {
			return out[i].IdentityKey < out[j].IdentityKey
		}
		return out[i].Source < out[j].Source
	})
	return out, mergedCount
}

// auditNearDuplicates flags same-company title pairs across sources that
// survived the merge but look like the same job under JaroWinkler. The
// hits become candidates for the title-hints table, nothing is merged
// automatically.
func auditNearDuplicates(ctx context.Context, records []jobstore.Record, threshold float64) {
	byCompany := map[string][]jobstore.Record{}
	for _, rec := range records {
		key := textutil.NormalizeKey(rec.Company)
		byCompany[key] = append(byCompany[key], rec)
	}

	for _, group := range byCompany {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if group[i].Source == group[j].Source {
					continue
				}
				left := textutil.NormalizeKey(group[i].Title)
				right := textutil.NormalizeKey(group[j].Title)
				if left == right {
					continue
				}
				if sim := matchr.JaroWinkler(left, right, false); sim >= threshold {
					slog.WarnContext(ctx, "possible cross-source duplicate",
						"company", group[i].Company,
						"title_a", group[i].Title,
						"title_b", group[j].Title,
						"similarity", fmt.Sprintf("%.3f", sim),
					)
				}
			}
		}
	}
}

func writeAtomic(path string, records []jobstore.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".combined-*.csv")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := jobstore.WriteAll(tmp, records); err != nil {
		tmp.Close()
		return fmt.Errorf("write canonical csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace canonical csv: %w", err)
	}
	return nil
}

package theirstack

import (
	"fmt"
	"jobdash-backend/lib/jobstore"
	"jobdash-backend/lib/taxonomy"
	"jobdash-backend/lib/textutil"
	"strings"
	"time"
)

func identityKey(raw rawJob) string {
	if id := raw.ID.String(); id != "" && id != "0" {
		return id
	}
	// the aggregator occasionally ships rows without an id, fall back to
	// a composite key so the record still deduplicates across runs
	title := textutil.NormalizeKey(raw.JobTitle)
	company := textutil.NormalizeKey(companyName(raw))
	if title == "" || company == "" {
		return ""
	}
	return title + "|" + company + "|" + raw.DatePosted
}

func companyName(raw rawJob) string {
	if raw.Company != "" {
		return raw.Company
	}
	return raw.CompanyObject.Name
}

// Normalize maps one aggregator job onto the unified record schema.
func Normalize(raw rawJob, mapper taxonomy.Mapper) (jobstore.Record, error) {
	title := strings.TrimSpace(raw.JobTitle)
	if title == "" {
		return jobstore.Record{}, fmt.Errorf("%w: missing title", jobstore.ErrNormalization)
	}
	company := strings.TrimSpace(companyName(raw))
	if company == "" {
		return jobstore.Record{}, fmt.Errorf("%w: missing company for %q", jobstore.ErrNormalization, title)
	}

	key := identityKey(raw)
	if key == "" {
		return jobstore.Record{}, fmt.Errorf("%w: no usable identity for %q", jobstore.ErrNormalization, title)
	}

	url := raw.FinalURL
	if url == "" {
		url = raw.URL
	}
	if url == "" {
		url = raw.SourceURL
	}

	// the aggregator emits plain ISO dates, unparseable stays zero
	var posted time.Time
	if raw.DatePosted != "" {
		if date, err := time.Parse("2006-01-02", raw.DatePosted); err == nil {
			posted = date
		}
	}

	return jobstore.Record{
		IdentityKey: key,
		Title:       title,
		Company:     company,
		Role:        title,
		Team:        company,
		Location:    raw.Location,
		URL:         url,
		Category:    mapper.Classify(title, company),
		PostingDate: posted,
		Source:      jobstore.SourceTheirStack,
		Skills:      strings.Join(raw.TechnologySlugs, ", "),
		Description: raw.Description,
	}, nil
}

package amazon

import (
	"encoding/json"
	"fmt"
	"jobdash-backend/lib/htmlutil"
	"jobdash-backend/lib/jobstore"
	"jobdash-backend/lib/taxonomy"
	"regexp"
	"strings"
	"time"
)

var jobPathIDRegex = regexp.MustCompile(`/jobs/(\d+)`)
var postedDaysAgoRegex = regexp.MustCompile(`(?i)posted\s+(\d+)\s+days?\s+ago`)

// identityKey prefers the stable numeric listing id (id_icims, then the
// id embedded in job_path) over the api's uuid, which rotates between
// crawls.
func identityKey(raw rawJob) string {
	switch v := raw.IDIcims.(type) {
	case string:
		if v != "" {
			return v
		}
	case json.Number:
		return v.String()
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	if m := jobPathIDRegex.FindStringSubmatch(raw.JobPath); m != nil {
		return m[1]
	}
	return raw.ID
}

// parsePostingDate handles the formats the board has been seen emitting:
// ISO dates, US long dates and relative strings ("Posted 3 days ago").
// The zero time means unparseable, the record is kept regardless.
func parsePostingDate(s string, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}

	for _, layout := range []string{"2006-01-02", "January 2, 2006", time.RFC3339} {
		if date, err := time.Parse(layout, s); err == nil {
			return date
		}
	}

	lowered := strings.ToLower(s)
	switch {
	case strings.Contains(lowered, "today"):
		return now.Truncate(24 * time.Hour)
	case strings.Contains(lowered, "yesterday"):
		return now.Truncate(24 * time.Hour).AddDate(0, 0, -1)
	}
	if m := postedDaysAgoRegex.FindStringSubmatch(s); m != nil {
		var days int
		fmt.Sscanf(m[1], "%d", &days)
		return now.Truncate(24 * time.Hour).AddDate(0, 0, -days)
	}

	return time.Time{}
}

// Normalize maps one raw search.json job onto the unified record schema.
func Normalize(raw rawJob, mapper taxonomy.Mapper, now time.Time) (jobstore.Record, error) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return jobstore.Record{}, fmt.Errorf("%w: missing title", jobstore.ErrNormalization)
	}
	company := strings.TrimSpace(raw.CompanyName)
	if company == "" {
		company = "Amazon"
	}

	key := identityKey(raw)
	if key == "" {
		return jobstore.Record{}, fmt.Errorf("%w: no usable identity for %q", jobstore.ErrNormalization, title)
	}

	location := raw.NormalizedLocation
	if location == "" {
		location = raw.Location
	}
	if location == "" {
		location = raw.City
	}

	category := raw.JobCategory
	if category == "" {
		category = mapper.Classify(title, raw.Team.Label)
	}

	quals := strings.TrimSpace(raw.BasicQualifications)
	if raw.PreferredQualifications != "" {
		quals = quals + "\n" + raw.PreferredQualifications
	}
	if strings.TrimSpace(quals) == "" {
		// older postings inline the qualifications into the description
		extracted := htmlutil.ExtractQualifications(raw.Description)
		quals = strings.TrimSpace(extracted.Basic + "\n" + extracted.Preferred)
	}

	url := ""
	if raw.JobPath != "" {
		url = "https://amazon.jobs" + raw.JobPath
	}

	description := raw.Description
	if description == "" {
		description = raw.DescriptionShort
	}

	return jobstore.Record{
		IdentityKey:        key,
		Title:              title,
		Company:            company,
		Role:               title,
		Team:               raw.Team.Label,
		Location:           location,
		URL:                url,
		Category:           category,
		PostingDate:        parsePostingDate(raw.PostedDate, now),
		Source:             jobstore.SourceAmazon,
		QualificationsHTML: strings.TrimSpace(quals),
		Description:        description,
	}, nil
}

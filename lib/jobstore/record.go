package jobstore

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Source identifies which scraper produced a record.
type Source string

const (
	SourceAmazon     Source = "amazon"
	SourceTheirStack Source = "theirstack"
)

// ErrNormalization marks a raw payload that could not be turned into a
// Record. Callers drop the record, log it, and keep going.
var ErrNormalization = errors.New("normalization failed")

// ErrStoreCorruption marks an unreadable store file. It is never fatal,
// Open treats it as a cold start.
var ErrStoreCorruption = errors.New("store corruption")

// Record is the unified job schema shared by every source.
//
// IdentityKey is the source-specific stable identifier: the numeric job id
// for amazon, the api job id for theirstack (falling back to a composite of
// normalized title+company+posting date when the api omits one).
type Record struct {
	IdentityKey        string
	Title              string
	Company            string
	Role               string
	Team               string
	Location           string
	URL                string
	Category           string
	PostingDate        time.Time // zero value means the source date was unparseable
	Active             bool
	Source             Source
	FirstSeen          time.Time
	LastSeen           time.Time
	Skills             string
	QualificationsHTML string
	Description        string
}

const dateLayout = "2006-01-02"

var csvHeader = []string{
	"id",
	"title",
	"company",
	"role",
	"team",
	"location",
	"url",
	"job_category",
	"posting_date",
	"active",
	"source",
	"first_seen",
	"last_seen",
	"skills",
	"qualifications_html",
	"description",
}

func (r Record) marshalRow() []string {
	postingDate := ""
	if !r.PostingDate.IsZero() {
		postingDate = r.PostingDate.Format(dateLayout)
	}
	return []string{
		r.IdentityKey,
		r.Title,
		r.Company,
		r.Role,
		r.Team,
		r.Location,
		r.URL,
		r.Category,
		postingDate,
		strconv.FormatBool(r.Active),
		string(r.Source),
		r.FirstSeen.UTC().Format(time.RFC3339),
		r.LastSeen.UTC().Format(time.RFC3339),
		r.Skills,
		r.QualificationsHTML,
		r.Description,
	}
}

func unmarshalRow(row []string) (Record, error) {
	if len(row) != len(csvHeader) {
		return Record{}, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(row))
	}

	var rec Record
	rec.IdentityKey = row[0]
	rec.Title = row[1]
	rec.Company = row[2]
	rec.Role = row[3]
	rec.Team = row[4]
	rec.Location = row[5]
	rec.URL = row[6]
	rec.Category = row[7]

	if row[8] != "" {
		date, err := time.Parse(dateLayout, row[8])
		if err != nil {
			return Record{}, fmt.Errorf("posting_date: %w", err)
		}
		rec.PostingDate = date
	}

	active, err := strconv.ParseBool(row[9])
	if err != nil {
		return Record{}, fmt.Errorf("active: %w", err)
	}
	rec.Active = active
	rec.Source = Source(row[10])

	firstSeen, err := time.Parse(time.RFC3339, row[11])
	if err != nil {
		return Record{}, fmt.Errorf("first_seen: %w", err)
	}
	rec.FirstSeen = firstSeen
	lastSeen, err := time.Parse(time.RFC3339, row[12])
	if err != nil {
		return Record{}, fmt.Errorf("last_seen: %w", err)
	}
	rec.LastSeen = lastSeen

	rec.Skills = row[13]
	rec.QualificationsHTML = row[14]
	rec.Description = row[15]

	return rec, nil
}

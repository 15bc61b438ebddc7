package amazon

import (
	"jobdash-backend/lib/jobstore"
	"jobdash-backend/lib/taxonomy"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 8, 10, 15, 30, 0, 0, time.UTC)

func TestNormalize(t *testing.T) {
	mapper := taxonomy.NewMapper(nil)

	raw := rawJob{
		ID:                  "uuid-1234",
		IDIcims:             "2837465",
		Title:               "SDE II, Payments",
		CompanyName:         "Amazon EU Sarl",
		NormalizedLocation:  "Luxembourg, Luxembourg",
		PostedDate:          "2025-07-30",
		JobPath:             "/en/jobs/2837465/sde-ii-payments",
		BasicQualifications: "<ul><li>3+ years of Go</li></ul>",
		Team:                rawTeam{Label: "Payments"},
	}

	rec, err := Normalize(raw, mapper, testNow)
	require.NoError(t, err)
	require.Equal(t, "2837465", rec.IdentityKey)
	require.Equal(t, "Amazon EU Sarl", rec.Company)
	require.Equal(t, "Software Development", rec.Category)
	require.Equal(t, time.Date(2025, 7, 30, 0, 0, 0, 0, time.UTC), rec.PostingDate)
	require.Equal(t, "https://amazon.jobs/en/jobs/2837465/sde-ii-payments", rec.URL)
	require.Contains(t, rec.QualificationsHTML, "3+ years of Go")
	require.Equal(t, jobstore.SourceAmazon, rec.Source)
}

func TestNormalizeMissingTitle(t *testing.T) {
	_, err := Normalize(rawJob{IDIcims: "1"}, taxonomy.NewMapper(nil), testNow)
	require.ErrorIs(t, err, jobstore.ErrNormalization)
}

func TestNormalizeIdentityFallbacks(t *testing.T) {
	mapper := taxonomy.NewMapper(nil)

	// numeric id_icims as emitted by the json api
	rec, err := Normalize(rawJob{Title: "SDE", IDIcims: float64(99)}, mapper, testNow)
	require.NoError(t, err)
	require.Equal(t, "99", rec.IdentityKey)

	// no id_icims: numeric id out of job_path
	rec, err = Normalize(rawJob{Title: "SDE", JobPath: "/en/jobs/555/sde"}, mapper, testNow)
	require.NoError(t, err)
	require.Equal(t, "555", rec.IdentityKey)

	// last resort: the api uuid
	rec, err = Normalize(rawJob{Title: "SDE", ID: "uuid-1"}, mapper, testNow)
	require.NoError(t, err)
	require.Equal(t, "uuid-1", rec.IdentityKey)
}

func TestParsePostingDate(t *testing.T) {
	testCases := []struct {
		in       string
		expected time.Time
	}{
		{"2025-07-30", time.Date(2025, 7, 30, 0, 0, 0, 0, time.UTC)},
		{"July 30, 2025", time.Date(2025, 7, 30, 0, 0, 0, 0, time.UTC)},
		{"Posted today", time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC)},
		{"Posted yesterday", time.Date(2025, 8, 9, 0, 0, 0, 0, time.UTC)},
		{"Posted 3 days ago", time.Date(2025, 8, 7, 0, 0, 0, 0, time.UTC)},
		// fails soft
		{"sometime soon", time.Time{}},
		{"", time.Time{}},
	}
	for _, test := range testCases {
		got := parsePostingDate(test.in, testNow)
		require.Equal(t, test.expected, got, "input %q", test.in)
	}
}

func TestNormalizeDefaultsCompany(t *testing.T) {
	rec, err := Normalize(rawJob{Title: "SDE", IDIcims: "7"}, taxonomy.NewMapper(nil), testNow)
	require.NoError(t, err)
	require.Equal(t, "Amazon", rec.Company)
}

package htmlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripTags(t *testing.T) {
	text := StripTags("<p>Build   <b>distributed</b> systems</p>")
	require.Equal(t, "Build distributed systems", text)
}

func TestExtractQualifications(t *testing.T) {
	blob := `
		<h3>About the team</h3>
		<p>We build data pipelines.</p>
		<h3>Basic Qualifications</h3>
		<ul><li>5+ years of Go</li><li>CSV wrangling</li></ul>
		<h3>Preferred Qualifications</h3>
		<ul><li>Experience with scrapers</li></ul>
	`
	quals := ExtractQualifications(blob)
	require.Contains(t, quals.Basic, "5+ years of Go")
	require.Contains(t, quals.Basic, "CSV wrangling")
	require.Contains(t, quals.Preferred, "Experience with scrapers")
}

func TestExtractQualificationsUnstructured(t *testing.T) {
	quals := ExtractQualifications("<p>just a blurb with no headings</p>")
	require.Empty(t, quals.Basic)
	require.Empty(t, quals.Preferred)
}

func TestMatchSectionIgnoresLongProse(t *testing.T) {
	long := strings.Repeat("basic qualifications matter a lot ", 4)
	require.Equal(t, "", matchSection(long))
}

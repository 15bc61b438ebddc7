package htmlutil

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

// StripTags flattens an HTML blob into plain text with collapsed
// whitespace. Falls back to the raw input when it does not parse.
func StripTags(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return strings.TrimSpace(rawHTML)
	}
	text := doc.Text()
	text = innerWhitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Sections are matched case-insensitively against heading-like elements
// (headings, bold/strong paragraphs, list captions) in job descriptions.
// Aggregator descriptions have no fixed structure, so the alias lists are
// deliberately broad.
var sectionAliases = map[string][]string{
	"basic": {
		"basic qualifications",
		"minimum qualifications",
		"required qualifications",
		"requirements",
		"must-have",
		"required skills",
		"what we're looking for",
		"who you are",
		"your background",
	},
	"preferred": {
		"preferred qualifications",
		"nice-to-have",
		"nice to have",
		"bonus",
		"good-to-have",
		"preferred skills",
		"desirable",
	},
}

// Qualifications holds the qualification sections recovered from a free
// form description blob. Either field may be empty.
type Qualifications struct {
	Basic     string
	Preferred string
}

// ExtractQualifications scans description HTML for qualification
// headings and returns the text that follows each until the next heading.
// Descriptions without recognizable sections yield an empty result, the
// caller keeps the raw blob in that case.
func ExtractQualifications(rawHTML string) Qualifications {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return Qualifications{}
	}

	var out Qualifications
	current := ""
	var buf *strings.Builder

	flush := func() {
		if buf == nil {
			return
		}
		text := strings.TrimSpace(innerWhitespace.ReplaceAllString(buf.String(), " "))
		switch current {
		case "basic":
			out.Basic = text
		case "preferred":
			out.Preferred = text
		}
		buf = nil
	}

	doc.Find("h1, h2, h3, h4, b, strong, p, li").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if section := matchSection(text); section != "" {
			flush()
			current = section
			buf = &strings.Builder{}
			return
		}
		if buf != nil && goquery.NodeName(sel) == "li" {
			buf.WriteString(text)
			buf.WriteString("\n")
		}
	})
	flush()

	return out
}

func matchSection(heading string) string {
	// a real heading is short, a matching alias inside a long paragraph
	// is just prose mentioning qualifications
	if len(heading) > 60 {
		return ""
	}
	lowered := strings.ToLower(heading)
	for section, aliases := range sectionAliases {
		for _, alias := range aliases {
			if strings.Contains(lowered, alias) {
				return section
			}
		}
	}
	return ""
}

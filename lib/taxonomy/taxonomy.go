// Package taxonomy maps free-text job titles and team names onto the
// fixed category set used by the dashboard.
package taxonomy

import (
	"jobdash-backend/lib/textutil"
)

// Uncategorized is returned when no rule matches. Classification never
// fails harder than this.
const Uncategorized = "Uncategorized"

// Rule binds a set of keywords to a category. Rules are data, not code:
// the table is loaded from config and evaluated top to bottom, first
// match wins.
type Rule struct {
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

// Mapper is a pure function over its rule table.
type Mapper struct {
	rules []Rule
}

func NewMapper(rules []Rule) Mapper {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return Mapper{rules: rules}
}

// Classify matches title then team against the rule table. Matching is
// case-insensitive substring matching over whitespace-normalized text.
func (m Mapper) Classify(title, team string) string {
	for _, rule := range m.rules {
		if textutil.MatchKeyword(title, rule.Keywords) {
			return rule.Category
		}
	}
	for _, rule := range m.rules {
		if textutil.MatchKeyword(team, rule.Keywords) {
			return rule.Category
		}
	}
	return Uncategorized
}

// DefaultRules mirrors the Amazon jobs taxonomy. Order matters: the
// narrow roles (architect, security) sit above the broad ones so that
// "cloud security engineer" doesn't land in Software Development.
func DefaultRules() []Rule {
	return []Rule{
		{
			Category: "Solutions Architect",
			Keywords: []string{"solutions architect", "solution architect", "cloud architect"},
		},
		{
			Category: "Security",
			Keywords: []string{"security engineer", "application security", "appsec", "cloud security", "infosec", "security analyst"},
		},
		{
			Category: "Machine Learning Science",
			Keywords: []string{"machine learning", " ml ", "deep learning", "nlp", "natural language", "computer vision", "reinforcement learning", "generative ai", "genai", " llm"},
		},
		{
			Category: "Business Intelligence",
			Keywords: []string{"business intelligence", " bi ", "analytics engineer", "data analyst", "business analyst"},
		},
		{
			Category: "Data Science",
			Keywords: []string{"data scientist", "quantitative", "experimentation", "econometric", "statistician", "applied scientist"},
		},
		{
			Category: "Research Science",
			Keywords: []string{"research scientist", "researcher"},
		},
		{
			Category: "Project/Program/Product Management--Technical",
			Keywords: []string{"product manager", "program manager", "project manager", " tpm "},
		},
		{
			Category: "Operations, IT, & Support Engineering",
			Keywords: []string{"devops", " sre ", "site reliability", "systems engineer", "infrastructure", "sysadmin", "support engineer"},
		},
		{
			Category: "Software Development",
			Keywords: []string{"software engineer", "software development", "developer", " sde ", "backend", "front-end", "frontend", "full stack", "data engineer", " etl ", "platform engineer"},
		},
	}
}

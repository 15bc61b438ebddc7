// Package theirstack pulls postings from the TheirStack aggregation
// api. Requests past the pre-check cost credits, so the client leans on
// the incremental state tracker to buy as few pages as possible.
package theirstack

import (
	"context"
	"encoding/json"
	"fmt"
	"jobdash-backend/lib/telemetry"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/theirstack")

type ClientOptions struct {
	APIURL string `json:"api_url"`

	PageSize      int `json:"page_size"`
	MaxJobsPerRun int `json:"max_jobs_per_run"`

	// cap on the fallback fetch over the full max-age window when the
	// incremental pre-check comes back empty
	WideFetchLimit int `json:"wide_fetch_limit"`

	MaxAgeDays   int      `json:"posted_at_max_age_days"`
	CountryCodes []string `json:"job_country_code_or"`
	TitleFilters []string `json:"job_title_or"`

	// every response is dropped here as JSON for offline analysis,
	// empty disables backups
	BackupDir string `json:"backup_dir"`

	TimeoutSeconds int     `json:"timeout_seconds"`
	Retries        int     `json:"retries"`
	BackoffSeconds float64 `json:"backoff_seconds"`
}

type Client struct {
	http *resty.Client
	opts ClientOptions
}

func NewClient(apiKey string, opts ClientOptions) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("theirstack: api key is required")
	}
	if opts.APIURL == "" {
		return nil, fmt.Errorf("theirstack: api_url is required")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 25
	}
	if opts.MaxJobsPerRun <= 0 {
		opts.MaxJobsPerRun = 100
	}
	if opts.WideFetchLimit < 0 {
		opts.WideFetchLimit = 0
	}
	if opts.MaxAgeDays <= 0 {
		opts.MaxAgeDays = 14
	}
	if len(opts.CountryCodes) == 0 {
		opts.CountryCodes = []string{"LU"}
	}
	if opts.TimeoutSeconds <= 0 {
		opts.TimeoutSeconds = 15
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.BackoffSeconds <= 0 {
		opts.BackoffSeconds = 0.5
	}

	client := resty.New()
	client.SetAuthToken(apiKey)
	client.SetHeader("accept", "application/json")
	client.SetTimeout(time.Duration(opts.TimeoutSeconds) * time.Second)

	client.SetRetryCount(opts.Retries)
	client.SetRetryWaitTime(time.Duration(opts.BackoffSeconds * float64(time.Second)))
	client.SetRetryMaxWaitTime(time.Duration(opts.BackoffSeconds*float64(time.Second)) * 8)
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return res.StatusCode() == http.StatusTooManyRequests ||
			res.StatusCode() >= http.StatusInternalServerError
	})

	telemetry.InstrumentResty(client, "services/theirstack/http")

	return &Client{http: client, opts: opts}, nil
}

// Options returns the effective options after defaulting.
func (c *Client) Options() ClientOptions {
	return c.opts
}

type searchPayload struct {
	PostedAtGTE         string   `json:"posted_at_gte"`
	JobCountryCodeOr    []string `json:"job_country_code_or"`
	PostedAtMaxAgeDays  int      `json:"posted_at_max_age_days"`
	JobTitleOr          []string `json:"job_title_or,omitempty"`
	Limit               int      `json:"limit"`
	Page                int      `json:"page,omitempty"`
	BlurCompanyData     bool     `json:"blur_company_data,omitempty"`
	IncludeTotalResults bool     `json:"include_total_results,omitempty"`
}

type searchResponse struct {
	Metadata searchMetadata `json:"metadata"`
	Data     []rawJob       `json:"data"`
}

type searchMetadata struct {
	TotalResults int `json:"total_results"`
}

type rawJob struct {
	ID              json.Number `json:"id"`
	JobTitle        string      `json:"job_title"`
	Company         string      `json:"company"`
	CompanyObject   rawCompany  `json:"company_object"`
	Location        string      `json:"location"`
	DatePosted      string      `json:"date_posted"`
	URL             string      `json:"url"`
	FinalURL        string      `json:"final_url"`
	SourceURL       string      `json:"source_url"`
	Description     string      `json:"description"`
	TechnologySlugs []string    `json:"technology_slugs"`
}

type rawCompany struct {
	Name string `json:"name"`
}

func (c *Client) basePayload(since time.Time) searchPayload {
	return searchPayload{
		PostedAtGTE:        since.UTC().Format("2006-01-02"),
		JobCountryCodeOr:   c.opts.CountryCodes,
		PostedAtMaxAgeDays: c.opts.MaxAgeDays,
		JobTitleOr:         c.opts.TitleFilters,
	}
}

func (c *Client) post(ctx context.Context, payload searchPayload) (searchResponse, error) {
	var body searchResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&body).
		Post(c.opts.APIURL)
	if err != nil {
		return searchResponse{}, err
	}
	if res.StatusCode() != http.StatusOK {
		return searchResponse{}, fmt.Errorf("unexpected status %d: %s", res.StatusCode(), res.String())
	}
	return body, nil
}

// Precheck asks for the unseen-job count without buying any listings.
func (c *Client) Precheck(ctx context.Context, since time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "Precheck")
	defer span.End()

	payload := c.basePayload(since)
	payload.Limit = 1
	payload.BlurCompanyData = true
	payload.IncludeTotalResults = true

	body, err := c.post(ctx, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "precheck failed")
		return 0, fmt.Errorf("precheck: %w", err)
	}
	c.saveBackup("precheck", 0, payload, body)
	return body.Metadata.TotalResults, nil
}

// FetchPage buys one page of listings.
func (c *Client) FetchPage(ctx context.Context, since time.Time, page, limit int) ([]rawJob, error) {
	ctx, span := tracer.Start(ctx, "FetchPage")
	defer span.End()

	payload := c.basePayload(since)
	payload.Limit = limit
	payload.Page = page

	body, err := c.post(ctx, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "page fetch failed")
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	c.saveBackup("page", page, payload, body)
	return body.Data, nil
}

// saveBackup archives the raw exchange. Failures only warn: backups are
// an offline-analysis aid, not part of the pipeline.
func (c *Client) saveBackup(kind string, page int, payload searchPayload, response searchResponse) {
	if c.opts.BackupDir == "" {
		return
	}
	ts := time.Now().UTC().Format("20060102T150405Z")
	name := fmt.Sprintf("theirstack_response_%s_%s.json", kind, ts)
	if page > 0 {
		name = fmt.Sprintf("theirstack_response_%s_%s_p%d.json", kind, ts, page)
	}

	record := map[string]any{
		"timestamp_utc":   ts,
		"kind":            kind,
		"page":            page,
		"request_payload": payload,
		"response":        response,
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		slog.Warn("marshaling response backup", "kind", kind, "err", err)
		return
	}
	if err := os.MkdirAll(c.opts.BackupDir, 0755); err != nil {
		slog.Warn("creating backup dir", "dir", c.opts.BackupDir, "err", err)
		return
	}
	if err := os.WriteFile(filepath.Join(c.opts.BackupDir, name), data, 0644); err != nil {
		slog.Warn("writing response backup", "file", name, "err", err)
	}
}

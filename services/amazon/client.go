// Package amazon scrapes the amazon.jobs search.json endpoint, the
// primary source of the pipeline.
package amazon

import (
	"context"
	"fmt"
	"jobdash-backend/lib/telemetry"
	"net/http"
	"net/http/cookiejar"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/amazon")

type ClientOptions struct {
	// full search.json url including category/country filters, offset and
	// result_limit are rewritten per page
	SearchURL string `json:"search_url"`

	ResultLimit    int     `json:"result_limit"`
	MaxPages       int     `json:"max_pages"`
	TimeoutSeconds int     `json:"timeout_seconds"`
	Retries        int     `json:"retries"`
	BackoffSeconds float64 `json:"backoff_seconds"`

	// polite-mode pacing between page requests
	MinIntervalSeconds float64 `json:"min_interval_seconds"`
	JitterSeconds      float64 `json:"jitter_seconds"`
}

type Client struct {
	http *resty.Client
	opts ClientOptions
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.SearchURL == "" {
		return nil, fmt.Errorf("amazon: search_url is required")
	}
	if opts.ResultLimit <= 0 {
		opts.ResultLimit = 10
	}
	if opts.TimeoutSeconds <= 0 {
		opts.TimeoutSeconds = 30
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.BackoffSeconds <= 0 {
		opts.BackoffSeconds = 0.5
	}

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetHeader("accept", "application/json, text/plain, */*")
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

	telemetry.InstrumentResty(client, "services/amazon/http")

	return &Client{http: client, opts: opts}, nil
}

type searchResponse struct {
	Hits int      `json:"hits"`
	Jobs []rawJob `json:"jobs"`
}

type rawJob struct {
	ID string `json:"id"`
	// the upstream api emits id_icims as either a string or a number
	IDIcims                 any     `json:"id_icims"`
	Title                   string  `json:"title"`
	CompanyName             string  `json:"company_name"`
	City                    string  `json:"city"`
	Location                string  `json:"location"`
	NormalizedLocation      string  `json:"normalized_location"`
	JobCategory             string  `json:"job_category"`
	PostedDate              string  `json:"posted_date"`
	Description             string  `json:"description"`
	DescriptionShort        string  `json:"description_short"`
	BasicQualifications     string  `json:"basic_qualifications"`
	PreferredQualifications string  `json:"preferred_qualifications"`
	JobPath                 string  `json:"job_path"`
	Team                    rawTeam `json:"team"`
}

type rawTeam struct {
	Label string `json:"label"`
}

func (c *Client) fetchPage(ctx context.Context, offset int) (searchResponse, error) {
	ctx, span := tracer.Start(ctx, "fetchPage")
	defer span.End()

	var body searchResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("offset", fmt.Sprint(offset)).
		SetQueryParam("result_limit", fmt.Sprint(c.opts.ResultLimit)).
		SetResult(&body).
		Get(c.opts.SearchURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "page request failed")
		return searchResponse{}, fmt.Errorf("offset %d: %w", offset, err)
	}
	if res.StatusCode() != http.StatusOK {
		err := fmt.Errorf("offset %d: unexpected status %d", offset, res.StatusCode())
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected status")
		return searchResponse{}, err
	}
	return body, nil
}

// FetchAll pulls every result page. The returned complete flag reports
// whether the full listing was observed: callers must not infer absence
// from an incomplete crawl.
func (c *Client) FetchAll(ctx context.Context) (jobs []rawJob, complete bool, err error) {
	ctx, span := tracer.Start(ctx, "FetchAll")
	defer span.End()

	first, err := c.fetchPage(ctx, 0)
	if err != nil {
		return nil, false, err
	}
	jobs = first.Jobs

	totalPages := 1
	if first.Hits > 0 {
		totalPages = (first.Hits + c.opts.ResultLimit - 1) / c.opts.ResultLimit
	}
	pages := totalPages
	if c.opts.MaxPages > 0 && c.opts.MaxPages < totalPages {
		pages = c.opts.MaxPages
	}

	for page := 1; page < pages; page++ {
		c.sleepBetweenPages()

		data, err := c.fetchPage(ctx, page*c.opts.ResultLimit)
		if err != nil {
			// partial crawl: hand back what we have, flagged incomplete
			span.RecordError(err)
			span.SetStatus(codes.Error, "pagination aborted")
			return jobs, false, err
		}
		if len(data.Jobs) == 0 {
			break
		}
		jobs = append(jobs, data.Jobs...)
	}

	// a max_pages cap means we deliberately did not observe everything
	complete = pages == totalPages
	return jobs, complete, nil
}

func (c *Client) sleepBetweenPages() {
	if c.opts.MinIntervalSeconds <= 0 {
		return
	}
	delay := time.Duration(c.opts.MinIntervalSeconds * float64(time.Second))
	if c.opts.JitterSeconds > 0 {
		jitterMs, err := random.IntRange(0, int(c.opts.JitterSeconds*1000))
		if err == nil {
			delay += time.Duration(jitterMs) * time.Millisecond
		}
	}
	time.Sleep(delay)
}

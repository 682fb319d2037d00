package scholar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the Google Scholar origin.
	BaseURL = "https://scholar.google.com"

	// PageSize is the number of rows requested per profile page (Scholar's maximum).
	PageSize = 100

	// DefaultRateLimit is the default request rate in requests per second.
	DefaultRateLimit = 0.5

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxPages bounds profile pagination.
	MaxPages = 50

	// UserAgent is sent with every request.
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

	maxBodyBytes = 8 << 20
)

// Doer is the subset of *http.Client the client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a rate-limited Google Scholar scraper.
type Client struct {
	httpClient Doer
	limiter    *rate.Limiter
	baseURL    string
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client, typically one dialing through Tor.
func WithHTTPClient(hc Doer) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithRateLimit sets the request rate in requests per second.
// Zero or negative disables limiting.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a new Scholar client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		baseURL:    BaseURL,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProfileURL returns the profile page URL for scholarID.
func (c *Client) ProfileURL(scholarID string) string {
	return c.baseURL + "/citations?" + url.Values{"user": {scholarID}, "hl": {"en"}}.Encode()
}

// LookupAuthor returns all publications listed on the profile, following
// pagination until a short page is returned.
func (c *Client) LookupAuthor(ctx context.Context, scholarID string) ([]PubRef, error) {
	const op = "lookup_author"
	if scholarID == "" {
		return nil, newError(KindNotFound, op, 0, errors.New("empty scholar id"))
	}

	var refs []PubRef
	for page := 0; page < MaxPages; page++ {
		q := url.Values{
			"user":     {scholarID},
			"hl":       {"en"},
			"cstart":   {strconv.Itoa(page * PageSize)},
			"pagesize": {strconv.Itoa(PageSize)},
		}
		body, err := c.get(ctx, op, "/citations", q)
		if err != nil {
			return nil, err
		}

		parsed, err := parseProfilePage(body)
		if err != nil {
			return nil, newError(KindMalformedResponse, op, http.StatusOK, err)
		}
		if page == 0 {
			c.logger.Debug("profile page", "name", parsed.Name, "rows", len(parsed.Refs))
		}

		refs = append(refs, parsed.Refs...)
		if len(parsed.Refs) < PageSize {
			break
		}
	}

	return refs, nil
}

// FillPublication fetches the view_citation page for ref.
func (c *Client) FillPublication(ctx context.Context, ref PubRef) (*Detail, error) {
	const op = "fill_publication"
	if ref.ID == "" {
		return nil, newError(KindNotFound, op, 0, errors.New("reference has no citation id"))
	}

	q := url.Values{
		"view_op":           {"view_citation"},
		"hl":                {"en"},
		"citation_for_view": {ref.ID},
	}
	body, err := c.get(ctx, op, "/citations", q)
	if err != nil {
		return nil, err
	}

	d, err := parseDetailPage(body)
	if err != nil {
		return nil, newError(KindMalformedResponse, op, http.StatusOK, err)
	}

	d.Citation = ref.Citation
	if d.Title == "" {
		d.Title = ref.Title
	}
	if d.Year == "" {
		d.Year = ref.Year
	}
	if d.Citations == 0 {
		d.Citations = ref.Citations
	}
	if d.PubURL == "" {
		d.PubURL = c.baseURL + "/citations?" + q.Encode()
	}
	return d, nil
}

// get issues one rate-limited GET and classifies the outcome.
func (c *Client) get(ctx context.Context, op, path string, q url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, newError(KindTransientNetwork, op, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, newError(KindTransientNetwork, op, resp.StatusCode, fmt.Errorf("reading body: %w", err))
	}

	if err := checkStatus(op, resp, body); err != nil {
		c.logger.Debug("scholar request failed", "op", op, "status", resp.StatusCode, "kind", KindOf(err))
		return nil, err
	}
	return body, nil
}

// checkStatus maps a response to a classified error, or nil when usable.
func checkStatus(op string, resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return newError(KindRateLimited, op, resp.StatusCode, nil)
	case resp.StatusCode == http.StatusNotFound:
		return newError(KindNotFound, op, resp.StatusCode, nil)
	case resp.StatusCode == http.StatusForbidden:
		return newError(KindRateLimited, op, resp.StatusCode, nil)
	case resp.StatusCode >= 500:
		return newError(KindTransientNetwork, op, resp.StatusCode, nil)
	case resp.StatusCode >= 400:
		return newError(KindMalformedResponse, op, resp.StatusCode, nil)
	}
	if IsBlockPage(body) || isSorryRedirect(resp) {
		return newError(KindRateLimited, op, resp.StatusCode, errors.New("captcha page"))
	}
	return nil
}

// isSorryRedirect detects requests that were redirected to Google's
// /sorry/ interstitial.
func isSorryRedirect(resp *http.Response) bool {
	return resp.Request != nil && resp.Request.URL != nil &&
		len(resp.Request.URL.Path) >= 7 && resp.Request.URL.Path[:7] == "/sorry/"
}

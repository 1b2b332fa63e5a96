package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/matsen/reflink/internal/journal"
	"golang.org/x/time/rate"
)

const (
	// ProductionURL is the resolved references endpoint for live deposits.
	ProductionURL = "https://doi.crossref.org/getResolvedRefs"

	// SandboxURL is the resolved references endpoint for test deposits.
	SandboxURL = "https://test.crossref.org/getResolvedRefs"

	// DefaultTimeout bounds a single request so a sweep cannot stall.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default number of requests per second.
	DefaultRateLimit = 5.0

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 16 << 20
)

// Client is a rate-limited HTTP client for the Crossref resolved references API.
type Client struct {
	httpClient    *http.Client
	limiter       *rate.Limiter
	productionURL string
	sandboxURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit sets the maximum requests per second. Zero or less disables limiting.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithEndpoints overrides the production and sandbox URLs (for testing).
func WithEndpoints(production, sandbox string) ClientOption {
	return func(c *Client) {
		if production != "" {
			c.productionURL = production
		}
		if sandbox != "" {
			c.sandboxURL = sandbox
		}
	}
}

// NewClient creates a new Crossref client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: DefaultTimeout},
		limiter:       rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		productionURL: ProductionURL,
		sandboxURL:    SandboxURL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Endpoint returns the resolved references URL for the given mode.
func (c *Client) Endpoint(sandbox bool) string {
	if sandbox {
		return c.sandboxURL
	}
	return c.productionURL
}

// FetchResolvedReferences asks Crossref which of the references deposited
// with doi it has matched to DOIs.
//
// A transport failure or non-200 status returns an error wrapping
// ErrUnavailable. A 200 response that cannot be decoded, or that lacks the
// matched-references array, returns an error wrapping ErrInvalidResponse.
func (c *Client) FetchResolvedReferences(ctx context.Context, doi string, creds journal.Credentials, sandbox bool) ([]MatchedReference, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("doi", doi)
	params.Set("usr", creds.Username)
	params.Set("pwd", creds.Password)
	reqURL := c.Endpoint(sandbox) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error includes the query string, which carries the password.
		return nil, fmt.Errorf("%w: requesting %s: %v", ErrUnavailable, c.Endpoint(sandbox), unwrapURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &APIError{StatusCode: resp.StatusCode, DOI: doi}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	return parseResolvedRefs(body)
}

// parseResolvedRefs decodes a getResolvedRefs response body.
func parseResolvedRefs(body []byte) ([]MatchedReference, error) {
	var parsed resolvedRefsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parsing resolved references: %v", ErrInvalidResponse, err)
	}
	if parsed.MatchedReferences == nil {
		return nil, fmt.Errorf("%w: missing matched-references", ErrInvalidResponse)
	}

	refs := *parsed.MatchedReferences
	if refs == nil {
		refs = []MatchedReference{}
	}
	return refs, nil
}

// unwrapURLError strips the request URL from a transport error.
func unwrapURLError(err error) error {
	if ue, ok := err.(*url.Error); ok {
		return ue.Err
	}
	return err
}

package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the scoring service address used when none is configured.
const DefaultBaseURL = "http://127.0.0.1:8000"

// ErrMalformedResponse is returned when a 2xx response does not carry a
// well-formed results collection.
var ErrMalformedResponse = eris.New("scoring: malformed response")

// ErrEmptyBatch is returned when Score is called without requests.
var ErrEmptyBatch = eris.New("scoring: empty batch")

// Client defines the scoring service operations.
type Client interface {
	// Score submits all requests in a single call. The returned slice has one
	// slot per request; a slot is nil when the service omitted that index.
	Score(ctx context.Context, reqs []Request) ([]*Result, error)
	Health(ctx context.Context) error
}

// APIError is returned when the scoring service responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scoring: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout bounds every call. Zero leaves calls bounded only by the context.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.timeout = d
	}
}

// WithRateLimit caps outgoing calls per second. Zero disables limiting.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *httpClient) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
}

// NewClient creates a new scoring service client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Score(ctx context.Context, reqs []Request) ([]*Result, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyBatch
	}

	var resp scoreResponse
	if err := c.post(ctx, "/score", scoreRequest{Transactions: reqs}, &resp); err != nil {
		return nil, eris.Wrapf(err, "scoring: score batch of %d", len(reqs))
	}
	if resp.Results == nil {
		return nil, eris.Wrap(ErrMalformedResponse, "missing results")
	}

	return align(resp.Results, len(reqs))
}

func (c *httpClient) Health(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return eris.Wrap(err, "scoring: create health request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "scoring: health")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode}
	}
	return nil
}

// align places each result at its transaction_idx. Duplicate or out-of-range
// indices make the whole response malformed.
func align(results []Result, n int) ([]*Result, error) {
	out := make([]*Result, n)
	for i := range results {
		r := results[i]
		if r.TransactionIdx < 0 || r.TransactionIdx >= n {
			return nil, eris.Wrapf(ErrMalformedResponse, "transaction_idx %d out of range [0,%d)", r.TransactionIdx, n)
		}
		if out[r.TransactionIdx] != nil {
			return nil, eris.Wrapf(ErrMalformedResponse, "duplicate transaction_idx %d", r.TransactionIdx)
		}
		if r.Reasons == nil {
			r.Reasons = []string{}
		}
		if r.Debug == nil {
			r.Debug = map[string]any{}
		}
		out[r.TransactionIdx] = &r
	}

	for i, r := range out {
		if r == nil {
			zap.L().Warn("scoring: result missing for transaction",
				zap.Int("transaction_idx", i),
				zap.Int("batch_size", n),
			)
		}
	}
	return out, nil
}

func (c *httpClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(ErrMalformedResponse, err.Error())
	}

	return nil
}

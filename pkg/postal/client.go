package postal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/resilience"
)

const (
	defaultBaseURL             = "https://api.postalpincode.in"
	statusSuccess              = "Success"
	responseBodyReadLimit int64 = 1024
)

var postalCodeRe = regexp.MustCompile(`^[0-9]{6}$`)

// Place is the district/state pair the directory resolves a postal code to.
type Place struct {
	City  string `json:"city"`
	State string `json:"state"`
}

// Cache stores resolved places between lookups.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	PostalKey(postalCode string) string
}

// Recorder counts lookup outcomes.
type Recorder interface {
	PostalLookup(outcome string)
}

// Client queries the public postal directory.
type Client struct {
	httpClient *http.Client
	baseURL    string
	policy     *resilience.Policy
	cache      Cache
	cacheTTL   time.Duration
	recorder   Recorder
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the directory base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithPolicy guards lookups with a timeout/retry/breaker policy.
func WithPolicy(policy *resilience.Policy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithCache enables result caching.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithRecorder reports every lookup outcome to r.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// NewClient builds a postal directory client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// ValidCode reports whether code is exactly six digits.
func ValidCode(code string) bool {
	return postalCodeRe.MatchString(code)
}

// Lookup resolves a postal code. Unknown codes return CodeNotFound; transport
// problems, non-200 responses and an open breaker return CodeDependency.
func (c *Client) Lookup(ctx context.Context, postalCode string) (*Place, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "postal client not configured")
	}
	code := strings.TrimSpace(postalCode)
	if !ValidCode(code) {
		return nil, pkgerrors.Field("postal_code", "postal code must be 6 digits")
	}

	if place, ok := c.cached(ctx, code); ok {
		c.record(metrics.LookupCached)
		return place, nil
	}

	place, err := resilience.Do(ctx, c.policy, func(ctx context.Context) (*Place, error) {
		return c.fetch(ctx, code)
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			c.record(metrics.LookupNotFound)
		} else {
			c.record(metrics.LookupDegraded)
		}
		return nil, err
	}

	c.record(metrics.LookupHit)
	c.store(ctx, code, place)
	return place, nil
}

func (c *Client) record(outcome string) {
	if c.recorder != nil {
		c.recorder.PostalLookup(outcome)
	}
}

// cached returns a previously resolved place for code.
func (c *Client) cached(ctx context.Context, code string) (*Place, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, err := c.cache.Get(ctx, c.cache.PostalKey(code))
	if err != nil || raw == "" {
		return nil, false
	}
	var place Place
	if err := json.Unmarshal([]byte(raw), &place); err != nil {
		return nil, false
	}
	return &place, true
}

func (c *Client) store(ctx context.Context, code string, place *Place) {
	if c.cache == nil || place == nil {
		return
	}
	payload, err := json.Marshal(place)
	if err != nil {
		return
	}
	// cache failures only cost a future lookup
	_ = c.cache.Set(ctx, c.cache.PostalKey(code), string(payload), c.cacheTTL)
}

func (c *Client) fetch(ctx context.Context, code string) (*Place, error) {
	endpoint := fmt.Sprintf("%s/pincode/%s", strings.TrimRight(c.baseURL, "/"), url.PathEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build postal lookup request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, resilience.Retryable(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute postal lookup request"))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "postal lookup failed")
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, resilience.Retryable(wrapped)
		}
		return nil, wrapped
	}

	var apiResp []struct {
		Status     string `json:"Status"`
		PostOffice []struct {
			District string `json:"District"`
			State    string `json:"State"`
		} `json:"PostOffice"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode postal lookup response")
	}

	if len(apiResp) == 0 || apiResp[0].Status != statusSuccess || len(apiResp[0].PostOffice) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "postal code not found")
	}

	office := apiResp[0].PostOffice[0]
	return &Place{
		City:  strings.TrimSpace(office.District),
		State: strings.TrimSpace(office.State),
	}, nil
}

// Package alerts is a client for the alerts.in.ua public API.
package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/briangreenhill/alertsua/cache"
	"github.com/briangreenhill/alertsua/location"
)

const (
	DefaultBaseURL   = "https://api.alerts.in.ua"
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "alerts-in-ua-go/1.0"

	// UserAgentEnv overrides the default User-Agent when no WithUserAgent is given
	UserAgentEnv = "ALERTS_CLIENT_USER_AGENT"
)

// maxErrorBody caps how much of an error response is kept in Error.Message
const maxErrorBody = 4 << 10

type Client struct {
	http      *http.Client
	baseURL   *url.URL
	userAgent string
	timeout   time.Duration

	cache    *cache.Manager // nil disables caching
	resolver location.Resolver
	log      zerolog.Logger

	optErr error
}

type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Its transport is wrapped
// with bearer authentication. A nil client keeps the default.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithBaseURL points the client at another API root. New fails when raw is
// not an absolute http(s) URL.
func WithBaseURL(raw string) Option {
	return func(c *Client) {
		u, err := url.Parse(raw)
		if err == nil && (u.Scheme != "http" && u.Scheme != "https" || u.Host == "") {
			err = errors.New("must be an absolute http(s) URL")
		}
		if err != nil {
			c.optErr = errors.Join(c.optErr, fmt.Errorf("base url %q: %w", raw, err))
			return
		}
		c.baseURL = u
	}
}

// WithCache replaces the default in-memory cache. A nil manager disables
// caching and conditional requests.
func WithCache(m *cache.Manager) Option {
	return func(c *Client) { c.cache = m }
}

func WithResolver(r location.Resolver) Option {
	return func(c *Client) { c.resolver = r }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New returns a client authenticated with token. Without WithCache the
// client caches in memory and serves stale data while rate limited.
func New(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, errors.New("token required")
	}
	u, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		http:     &http.Client{Timeout: DefaultTimeout},
		baseURL:  u,
		cache:    cache.NewManager(cache.NewMemoryCache(), cache.WithStaleIfError(IsRateLimited)),
		resolver: location.Oblasts(),
		log:      zerolog.Nop(),
	}
	if ua := os.Getenv(UserAgentEnv); ua != "" {
		c.userAgent = ua
	} else {
		c.userAgent = DefaultUserAgent
	}
	for _, o := range opts {
		o(c)
	}
	if c.optErr != nil {
		return nil, c.optErr
	}

	hc := *c.http
	if c.timeout > 0 {
		hc.Timeout = c.timeout
	}
	hc.Transport = &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
		Base:   c.http.Transport,
	}
	c.http = &hc
	return c, nil
}

// Cache returns the cache manager, nil when caching is disabled
func (c *Client) Cache() *cache.Manager {
	return c.cache
}

// Resolver returns the location resolver
func (c *Client) Resolver() location.Resolver {
	return c.resolver
}

// ClearCache drops entries tagged with any of tags, or the whole cache when
// no tag is given
func (c *Client) ClearCache(ctx context.Context, tags ...string) error {
	if c.cache == nil {
		return nil
	}
	if len(tags) == 0 {
		return c.cache.Clear(ctx)
	}
	return c.cache.InvalidateTags(ctx, tags...)
}

// SetCacheTTL changes the TTL of a request type for later responses
func (c *Client) SetCacheTTL(typ string, d time.Duration) {
	if c.cache != nil {
		c.cache.SetTTL(typ, d)
	}
}

// CallOption tunes a single operation
type CallOption func(*callOptions)

type callOptions struct {
	useCache bool
}

// NoCache bypasses the cache for one call. The response is not stored.
func NoCache() CallOption {
	return func(o *callOptions) { o.useCache = false }
}

func (c *Client) callOptions(opts []CallOption) callOptions {
	co := callOptions{useCache: c.cache != nil}
	for _, o := range opts {
		o(&co)
	}
	if c.cache == nil {
		co.useCache = false
	}
	return co
}

func (c *Client) newReq(ctx context.Context, p, since string) (*http.Request, error) {
	u := *c.baseURL
	u.Path = path.Join(u.Path, p)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if since != "" {
		req.Header.Set("If-Modified-Since", since)
	}
	return req, nil
}

// response is a successful fetch. notModified is set for a 304 answer to a
// conditional request; body is then empty.
type response struct {
	body         []byte
	lastModified string
	notModified  bool
}

func (c *Client) get(ctx context.Context, p, since string) (*response, error) {
	req, err := c.newReq(ctx, p, since)
	if err != nil {
		return nil, &Error{Kind: KindAPI, Endpoint: p, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindAPI, Endpoint: p, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && since != "":
		return &response{notModified: true, lastModified: since}, nil
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &Error{Kind: KindAPI, StatusCode: resp.StatusCode, Endpoint: p, Err: err}
		}
		return &response{body: body, lastModified: resp.Header.Get("Last-Modified")}, nil
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		e := &Error{
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Endpoint:   p,
			Message:    errorMessage(b),
		}
		if e.Kind == KindRateLimited {
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				e.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, e
	}
}

// errorMessage extracts the message field of a JSON error body, falling back
// to the trimmed body text
func errorMessage(body []byte) string {
	var m struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &m); err == nil && m.Message != "" {
		return m.Message
	}
	return strings.TrimSpace(string(body))
}

// fetch runs one endpoint through the cache. On a miss it revalidates with
// If-Modified-Since and serves the stored processed value on 304.
func fetch[T any](ctx context.Context, c *Client, p, typ string, co callOptions, decode func([]byte) (T, error)) (T, error) {
	key := cache.KeyFor(p, nil)
	produce := func(ctx context.Context) (T, error) {
		return conditionalGet(ctx, c, key, p, co.useCache, decode)
	}
	if c.cache == nil {
		return produce(ctx)
	}
	return cache.GetOrSetJSON(ctx, c.cache, key, typ, co.useCache, produce)
}

func conditionalGet[T any](ctx context.Context, c *Client, key, p string, revalidate bool, decode func([]byte) (T, error)) (T, error) {
	var zero T

	var since string
	if revalidate {
		since, _ = c.cache.GetLastModified(ctx, key)
	}
	if since != "" {
		c.log.Debug().Str("endpoint", p).Str("since", since).Msg("conditional request")
	}

	resp, err := c.get(ctx, p, since)
	if err != nil {
		return zero, err
	}
	if resp.notModified {
		if v, ok := cache.CachedJSON[T](ctx, c.cache, key); ok {
			c.log.Debug().Str("endpoint", p).Msg("not modified, serving processed data")
			return v, nil
		}
		c.log.Debug().Str("endpoint", p).Msg("not modified without processed data, refetching")
		if resp, err = c.get(ctx, p, ""); err != nil {
			return zero, err
		}
	}

	v, err := decode(resp.body)
	if err != nil {
		return zero, &Error{Kind: KindAPI, StatusCode: http.StatusOK, Endpoint: p, Message: "malformed response", Err: err}
	}

	if revalidate {
		if resp.lastModified != "" {
			if err := c.cache.SetLastModified(ctx, key, resp.lastModified); err != nil {
				c.log.Warn().Err(err).Str("key", key).Msg("storing last-modified failed")
			}
		}
		if err := cache.StoreProcessedJSON(ctx, c.cache, key, v); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("storing processed data failed")
		}
	}
	return v, nil
}

// resolve turns a UID or display name into a UID, caching the answer under
// the location_resolver type
func (c *Client) resolve(ctx context.Context, id string, co callOptions) (int, error) {
	produce := func(context.Context) (int, error) {
		uid, err := location.Resolve(c.resolver, id)
		if err != nil {
			return 0, invalidParameter(err, "location %q", id)
		}
		return uid, nil
	}
	if c.cache == nil {
		return produce(ctx)
	}
	key := cache.KeyFor("locations/"+strings.ToLower(strings.TrimSpace(id)), nil)
	return cache.GetOrSetJSON(ctx, c.cache, key, cache.TypeLocationResolver, co.useCache, produce)
}

package client

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	neturl "net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/apitestkit/apitest/packages/auth"
	"github.com/apitestkit/apitest/packages/core/config"
	"github.com/apitestkit/apitest/packages/crypto"
	"github.com/apitestkit/apitest/packages/metrics"
	"github.com/apitestkit/apitest/packages/session"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultSessionCookie is the cookie carrying the seeded session id
	DefaultSessionCookie = "apitest-session"
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second

	// handlerBaseURL is the synthetic origin for in-process dispatch.
	handlerBaseURL = "http://apitest.local"
)

// Client issues HTTP requests either over the network against a base URL or
// in-process against an http.Handler. Builders created from one Client share
// its collaborators (encrypter, session store, authenticator) and transport.
type Client struct {
	httpClient     *http.Client
	handler        http.Handler
	baseURL        string
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	validateSSL    bool
	proxyURL       string
	defaultHeaders map[string]string
	sessionCookie  string
	encrypter      crypto.Encrypter
	sessions       session.Store
	auth           *auth.Authenticator
	recorder       *metrics.Recorder
	limiter        *rate.Limiter
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
		defaultHeaders: make(map[string]string),
		sessionCookie:  DefaultSessionCookie,
	}

	for _, opt := range opts {
		opt(c)
	}

	var transport http.RoundTripper
	if c.handler != nil {
		transport = handlerTransport{handler: c.handler}
	} else {
		t := &http.Transport{
			MaxIdleConns:        DefaultMaxIdleConns,
			MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
			IdleConnTimeout:     DefaultIdleConnTimeout,
		}
		if !c.validateSSL {
			t.TLSClientConfig = &tls.Config{
				InsecureSkipVerify: true,
			}
		}
		if c.proxyURL != "" {
			proxyURL, err := neturl.Parse(c.proxyURL)
			if err == nil {
				t.Proxy = http.ProxyURL(proxyURL)
			}
		}
		transport = t
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !c.followRedirect {
			return http.ErrUseLastResponse
		}
		if len(via) >= c.maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	c.httpClient = &http.Client{
		Transport:     transport,
		CheckRedirect: redirectPolicy,
	}

	return c
}

// FromConfig builds a Client from a loaded configuration. An encrypter is
// created when the config carries an application key.
func FromConfig(cfg *config.Config, opts ...ClientOption) (*Client, error) {
	base := []ClientOption{
		WithBaseURL(cfg.BaseURL),
		WithFollowRedirects(cfg.GetFollowRedirects()),
		WithValidateSSL(cfg.GetValidateSSL()),
		WithDefaultHeaders(cfg.Headers),
	}
	if cfg.Timeout > 0 {
		base = append(base, WithTimeout(time.Duration(cfg.Timeout)*time.Millisecond))
	}
	if cfg.MaxRedirects > 0 {
		base = append(base, WithMaxRedirects(cfg.MaxRedirects))
	}
	if cfg.Proxy != "" {
		base = append(base, WithProxy(cfg.Proxy))
	}
	if cfg.SessionCookie != "" {
		base = append(base, WithSessionCookie(cfg.SessionCookie))
	}
	if cfg.AppKey != "" {
		enc, err := crypto.New(cfg.AppKey)
		if err != nil {
			return nil, err
		}
		base = append(base, WithEncrypter(enc))
	}
	if cfg.DefaultGuard != "" {
		// Guards are application-specific; register them via Auth().
		base = append(base, WithAuth(auth.New(cfg.DefaultGuard)))
	}

	return NewClient(append(base, opts...)...), nil
}

// WithBaseURL sets the origin that relative request paths resolve against.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHandler dispatches requests in-process against an http.Handler instead
// of over the network.
func WithHandler(h http.Handler) ClientOption {
	return func(c *Client) {
		c.handler = h
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.followRedirect = follow
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders[key] = value
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithEncrypter sets the cookie encryption service.
func WithEncrypter(e crypto.Encrypter) ClientOption {
	return func(c *Client) {
		c.encrypter = e
	}
}

// WithSessions sets the session store used to pre-seed server-side sessions.
func WithSessions(s session.Store) ClientOption {
	return func(c *Client) {
		c.sessions = s
	}
}

// WithAuth sets the authenticator used by LoginVia.
func WithAuth(a *auth.Authenticator) ClientOption {
	return func(c *Client) {
		c.auth = a
	}
}

// WithSessionCookie overrides the name of the session id cookie.
func WithSessionCookie(name string) ClientOption {
	return func(c *Client) {
		c.sessionCookie = name
	}
}

// WithRecorder records per-route request latency into a metrics recorder.
func WithRecorder(r *metrics.Recorder) ClientOption {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithRateLimit paces outgoing requests to at most rps per second.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// Encrypter exposes the configured cookie encrypter, for response-side
// assertions that decrypt cookies.
func (c *Client) Encrypter() crypto.Encrypter {
	return c.encrypter
}

// Sessions exposes the configured session store.
func (c *Client) Sessions() session.Store {
	return c.sessions
}

// Auth exposes the configured authenticator, nil when unset. Clients built
// with FromConfig get one when the config names a default guard; schemes are
// registered on it by the test suite.
func (c *Client) Auth() *auth.Authenticator {
	return c.auth
}

// Recorder exposes the configured latency recorder, nil when unset.
func (c *Client) Recorder() *metrics.Recorder {
	return c.recorder
}

// Get starts a GET request builder.
func (c *Client) Get(url string) *RequestBuilder {
	return c.Request(http.MethodGet, url)
}

// Post starts a POST request builder.
func (c *Client) Post(url string) *RequestBuilder {
	return c.Request(http.MethodPost, url)
}

// Put starts a PUT request builder.
func (c *Client) Put(url string) *RequestBuilder {
	return c.Request(http.MethodPut, url)
}

// Patch starts a PATCH request builder.
func (c *Client) Patch(url string) *RequestBuilder {
	return c.Request(http.MethodPatch, url)
}

// Delete starts a DELETE request builder.
func (c *Client) Delete(url string) *RequestBuilder {
	return c.Request(http.MethodDelete, url)
}

// Head starts a HEAD request builder.
func (c *Client) Head(url string) *RequestBuilder {
	return c.Request(http.MethodHead, url)
}

// Options starts an OPTIONS request builder.
func (c *Client) Options(url string) *RequestBuilder {
	return c.Request(http.MethodOptions, url)
}

// Request starts a builder for an arbitrary method.
func (c *Client) Request(method, url string) *RequestBuilder {
	return newRequestBuilder(c, method, url)
}

// resolveURL joins a relative path with the client's base URL. Absolute URLs
// pass through unchanged.
func (c *Client) resolveURL(target string) (string, error) {
	if strings.Contains(target, "://") {
		return target, nil
	}

	base := c.baseURL
	if base == "" && c.handler != nil {
		base = handlerBaseURL
	}
	if base == "" {
		return "", &ConfigurationError{Op: "url", Reason: "relative path used without a base URL or handler"}
	}

	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return base + target, nil
}

// handlerTransport dispatches requests against an http.Handler without
// touching the network.
type handlerTransport struct {
	handler http.Handler
}

func (t handlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body == nil {
		// Handlers expect a readable body, as a real server would provide.
		req.Body = http.NoBody
	}

	rec := httptest.NewRecorder()
	t.handler.ServeHTTP(rec, req)

	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

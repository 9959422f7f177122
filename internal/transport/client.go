// Package transport performs authenticated requests against the CRM backend.
//
// Every request carries the current bearer credential. A 401 on the first
// exchange of a call triggers one refresh against the refresh endpoint,
// authenticated only by the session cookie, and one replay with the new
// credential. A second 401 is returned as-is; a call never refreshes twice.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/JonMunkholm/LeadSync/internal/credential"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 10 << 20

// Refresh outcomes reported to the Observer.
const (
	RefreshSuccess  = "success"
	RefreshRejected = "rejected"
	RefreshEmpty    = "empty"
	RefreshError    = "error"
)

// Observer receives request and refresh telemetry. All methods must be safe
// for concurrent use.
type Observer interface {
	// ObserveRequest records one exchange. status is 0 for network failures.
	ObserveRequest(method string, status int, elapsed time.Duration)
	ObserveRefresh(outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, int, time.Duration) {}
func (nopObserver) ObserveRefresh(string)                     {}

// Options configures a Client.
type Options struct {
	// BaseURL is joined with every request path.
	BaseURL string

	LoginPath   string
	RefreshPath string
	LogoutPath  string

	// Timeout bounds a single exchange (default: 30s). Ignored when
	// HTTPClient is set.
	Timeout time.Duration

	// SingleFlightRefresh makes concurrent 401s share one refresh call
	// instead of each refreshing independently.
	SingleFlightRefresh bool

	// Jar carries the session cookie used by refresh. Nil gets a fresh
	// in-memory jar.
	Jar http.CookieJar

	// HTTPClient overrides the underlying client (tests). Its Jar is
	// replaced by Jar when Jar is set.
	HTTPClient *http.Client

	Logger   *slog.Logger
	Observer Observer
}

// Client is the authenticated transport.
type Client struct {
	baseURL     string
	loginPath   string
	refreshPath string
	logoutPath  string

	http   *http.Client
	jar    http.CookieJar
	store  credential.Store
	logger *slog.Logger
	obs    Observer

	singleFlight bool
	group        singleflight.Group
}

// New builds a Client reading and writing the credential through store.
func New(store credential.Store, opts Options) (*Client, error) {
	if store == nil {
		return nil, errors.New("transport: credential store is required")
	}
	if opts.BaseURL == "" {
		return nil, errors.New("transport: base URL is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/api/auth/login"
	}
	if opts.RefreshPath == "" {
		opts.RefreshPath = "/api/auth/refresh"
	}
	if opts.LogoutPath == "" {
		opts.LogoutPath = "/api/auth/logout"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}

	jar := opts.Jar
	if jar == nil {
		j, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("transport: cookie jar: %w", err)
		}
		jar = j
	}

	var hc *http.Client
	if opts.HTTPClient != nil {
		c := *opts.HTTPClient
		hc = &c
	} else {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	hc.Jar = jar

	return &Client{
		baseURL:      strings.TrimSuffix(opts.BaseURL, "/"),
		loginPath:    opts.LoginPath,
		refreshPath:  opts.RefreshPath,
		logoutPath:   opts.LogoutPath,
		http:         hc,
		jar:          jar,
		store:        store,
		logger:       opts.Logger,
		obs:          opts.Observer,
		singleFlight: opts.SingleFlightRefresh,
	}, nil
}

// Request is one logical call.
type Request struct {
	Method string
	// Path is joined to the base URL; absolute URLs are used as-is.
	Path   string
	Header http.Header
	Body   []byte
}

// Response is a completed exchange with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// DecodeJSON unmarshals the body into v. An empty body, or one that is not
// declared as JSON, leaves v untouched and is not an error.
func (r *Response) DecodeJSON(v any) error {
	if v == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || !strings.Contains(mt, "json") {
			return nil
		}
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Do performs req with the current credential attached. Non-2xx responses
// are returned without error; transport failures are *NetworkError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	resp, err := c.send(ctx, req, c.store.Get())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	token := c.refresh(ctx)
	if token == "" {
		return resp, nil
	}

	c.logger.Debug("replaying request after refresh", "method", req.Method, "path", req.Path)
	return c.send(ctx, req, token)
}

// DoJSON sends in as a JSON body (nil sends none) and decodes a 2xx body
// into out. Non-2xx responses become *StatusError.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = b
	}

	resp, err := c.Do(ctx, Request{Method: method, Path: path, Body: body})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return newStatusError(method, path, resp)
	}
	return resp.DecodeJSON(out)
}

// Login exchanges email and password for a bearer credential and the
// session cookie, storing both.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return fmt.Errorf("encode login: %w", err)
	}

	resp, err := c.send(ctx, Request{Method: http.MethodPost, Path: c.loginPath, Body: body}, "")
	if err != nil {
		return err
	}
	if !resp.OK() {
		return newStatusError(http.MethodPost, c.loginPath, resp)
	}

	token := extractToken(resp.Body)
	if token == "" {
		return errors.New("login: response carried no access token")
	}
	c.store.Set(token)
	return nil
}

// Logout tells the backend to end the session, then drops the local
// credential and session cookie whatever the backend said.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.send(ctx, Request{Method: http.MethodPost, Path: c.logoutPath}, c.store.Get())

	c.store.Clear()
	if cl, ok := c.jar.(interface{ Clear() }); ok {
		cl.Clear()
	}

	if err != nil {
		return err
	}
	if !resp.OK() && resp.StatusCode != http.StatusUnauthorized {
		return newStatusError(http.MethodPost, c.logoutPath, resp)
	}
	return nil
}

// refresh returns the new credential, or "" when none was obtained.
func (c *Client) refresh(ctx context.Context) string {
	if !c.singleFlight {
		return c.refreshOnce(ctx)
	}
	// The shared call outlives any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	v, _, _ := c.group.Do("refresh", func() (any, error) {
		return c.refreshOnce(shared), nil
	})
	return v.(string)
}

func (c *Client) refreshOnce(ctx context.Context) string {
	resp, err := c.send(ctx, Request{Method: http.MethodPost, Path: c.refreshPath}, "")
	if err != nil {
		c.obs.ObserveRefresh(RefreshError)
		c.logger.Warn("credential refresh failed", "error", err)
		return ""
	}
	if !resp.OK() {
		c.obs.ObserveRefresh(RefreshRejected)
		c.logger.Info("credential refresh rejected", "status", resp.StatusCode)
		return ""
	}

	token := extractToken(resp.Body)
	if token == "" {
		c.obs.ObserveRefresh(RefreshEmpty)
		c.logger.Warn("credential refresh returned no token")
		return ""
	}

	c.store.Set(token)
	c.obs.ObserveRefresh(RefreshSuccess)
	return token
}

// send performs one exchange. token "" sends no Authorization header.
func (c *Client) send(ctx context.Context, req Request, token string) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	op := method + " " + req.Path

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.url(req.Path), body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.obs.ObserveRequest(method, 0, time.Since(start))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	c.obs.ObserveRequest(method, resp.StatusCode, time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       b,
	}, nil
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

// tokenBody accepts the field names backends commonly use for the token.
type tokenBody struct {
	AccessToken  string `json:"accessToken"`
	AccessTokenS string `json:"access_token"`
	Token        string `json:"token"`
}

func extractToken(body []byte) string {
	var tb tokenBody
	if json.Unmarshal(body, &tb) != nil {
		return ""
	}
	switch {
	case tb.AccessToken != "":
		return tb.AccessToken
	case tb.AccessTokenS != "":
		return tb.AccessTokenS
	default:
		return tb.Token
	}
}

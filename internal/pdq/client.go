package pdq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pdqctl/internal/errs"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const requestIDHeader = "X-Request-ID"

// Client talks to a PDQ planner server.
type Client struct {
	HTTP    *http.Client
	baseURL string
	log     zerolog.Logger
}

type options struct {
	verbose bool
	log     zerolog.Logger
	timeout time.Duration
	base    http.RoundTripper
}

type Option func(*options)

// WithVerbose logs one line per request and response (including latency)
// through log. Pass a logger writing to stderr so stdout stays clean.
func WithVerbose(enabled bool, log zerolog.Logger) Option {
	return func(o *options) {
		o.verbose = enabled
		o.log = log
	}
}

// WithTimeout bounds every request. Zero means no client-side timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithTransport replaces http.DefaultTransport as the innermost transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.base = rt
	}
}

// loggingRoundTripper wraps an underlying transport and emits one line per
// request and response (including latency) when verbose logging is enabled.
type loggingRoundTripper struct {
	base http.RoundTripper
	log  zerolog.Logger
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	t.log.Info().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", req.Header.Get(requestIDHeader)).
		Msg("pdq api request")

	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start).Truncate(time.Millisecond)
	if err != nil {
		t.log.Info().Err(err).Dur("elapsed", dur).Msg("pdq api error")
	} else {
		t.log.Info().
			Int("status", resp.StatusCode).
			Str("status_text", http.StatusText(resp.StatusCode)).
			Dur("elapsed", dur).
			Msg("pdq api response")
	}
	return resp, err
}

// requestIDRoundTripper stamps every outgoing request with a fresh request id
// unless the caller already set one.
type requestIDRoundTripper struct {
	base http.RoundTripper
}

func (t *requestIDRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(requestIDHeader) != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set(requestIDHeader, uuid.NewString())
	return t.base.RoundTrip(clone)
}

// NewClient builds a client for the planner server at baseURL
// (e.g. http://localhost:8080). An empty token sends no Authorization header.
func NewClient(ctx context.Context, baseURL, token string, opts ...Option) (*Client, error) {
	if ctx == nil {
		return nil, fmt.Errorf("pdq client: ctx is nil")
	}

	base, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	o := &options{log: zerolog.Nop()}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}

	transport := o.base
	if transport == nil {
		transport = http.DefaultTransport
	}
	if o.verbose {
		transport = &loggingRoundTripper{base: transport, log: o.log}
	}
	transport = &requestIDRoundTripper{base: transport}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}

	return &Client{
		HTTP:    &http.Client{Transport: transport, Timeout: o.timeout},
		baseURL: base,
		log:     o.log,
	}, nil
}

// BaseURL returns the normalized server address without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "pdq client: server url is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("pdq client: invalid server url %q", raw), err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("pdq client: unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return "", errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("pdq client: server url %q has no host", raw))
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}

// queryPath builds "/{route}/{schemaID}/{queryID}/{sql}" with the SQL escaped
// as one path segment, so the server decodes it back verbatim.
func queryPath(route string, schemaID, queryID int, sql string) string {
	return "/" + route + "/" + strconv.Itoa(schemaID) + "/" + strconv.Itoa(queryID) + "/" + url.PathEscape(sql)
}

// get issues a GET for path (already escaped) and returns the full body.
func (c *Client) get(ctx context.Context, path string, accept string) ([]byte, error) {
	if ctx == nil {
		return nil, fmt.Errorf("pdq: ctx is nil")
	}
	if c == nil || c.HTTP == nil {
		return nil, fmt.Errorf("pdq: client is nil (use NewClient)")
	}

	op := "GET " + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, op, err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, mapTransportError(ctx, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, mapStatus(op, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mapTransportError(ctx, op+": read body", err)
	}
	return body, nil
}

func mapTransportError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return errs.Wrap(errs.ErrKindTimeout, op, err)
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return errs.Wrap(errs.ErrKindTimeout, op, err)
	}
	return errs.Wrap(errs.ErrKindConnectionFailed, op, err)
}

func mapStatus(op string, code int) error {
	e := errs.Status(code, op)
	switch code {
	case http.StatusNotFound:
		e.Kind = errs.ErrKindNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		e.Kind = errs.ErrKindPermissionDenied
	case http.StatusBadRequest:
		e.Kind = errs.ErrKindInvalidInput
	}
	return e
}

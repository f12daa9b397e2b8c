// Package sheets implements the spreadsheet API client on top of gogama/httpx.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gogama/httpx"
	"github.com/gogama/httpx/request"
	"github.com/gogama/httpx/retry"
	"github.com/gogama/httpx/timeout"

	"github.com/ericfisherdev/gosheets/internal/domain/model"
	"github.com/ericfisherdev/gosheets/internal/domain/port/driven"
)

const (
	// DefaultSheetsBaseURL is the production Sheets v4 endpoint.
	DefaultSheetsBaseURL = "https://sheets.googleapis.com/v4/"
	// DefaultDriveBaseURL is the production Drive v3 endpoint.
	DefaultDriveBaseURL = "https://www.googleapis.com/drive/v3/"

	defaultTimeout  = 30 * time.Second
	defaultPageSize = 1000
)

// Compile-time interface satisfaction checks.
var (
	_ driven.Requester    = (*Client)(nil)
	_ driven.SheetsClient = (*Client)(nil)
)

// Middleware wraps the client's raw request function, e.g. with a retry policy.
type Middleware func(next driven.Requester) driven.Requester

// Client is the spreadsheet API client. Every typed operation is routed through
// Request, so middleware installed with WithMiddleware applies to all of them.
type Client struct {
	exec      *httpx.Client
	requester driven.Requester
	sheetsURL *url.URL
	driveURL  *url.URL
	pageSize  int
	logger    *slog.Logger
}

type clientOptions struct {
	sheetsBaseURL    string
	driveBaseURL     string
	timeout          time.Duration
	transientRetries int
	pageSize         int
	logger           *slog.Logger
	middleware       []Middleware
}

// Option configures a Client.
type Option func(*clientOptions)

// WithBaseURL overrides the Sheets base URL. It must end in a slash.
func WithBaseURL(u string) Option {
	return func(o *clientOptions) { o.sheetsBaseURL = u }
}

// WithDriveBaseURL overrides the Drive base URL. It must end in a slash.
func WithDriveBaseURL(u string) Option {
	return func(o *clientOptions) { o.driveBaseURL = u }
}

// WithTimeout sets the timeout applied to each individual HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// WithTransientRetries sets how many times an attempt that failed with a
// transient network error (timeout, connection reset or refused) is retried.
// HTTP status codes never trigger these retries.
func WithTransientRetries(n int) Option {
	return func(o *clientOptions) { o.transientRetries = n }
}

// WithPageSize sets how many files a single Drive listing page may hold.
func WithPageSize(n int) Option {
	return func(o *clientOptions) { o.pageSize = n }
}

// WithLogger sets the logger used for per-attempt debug logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithMiddleware wraps Request with m. Middleware is applied in the order given,
// so the first middleware is the outermost.
func WithMiddleware(m Middleware) Option {
	return func(o *clientOptions) { o.middleware = append(o.middleware, m) }
}

// NewClient creates a Client that sends requests with httpClient. Use
// NewHTTPClient to build an authenticated httpClient with the standard
// transport stack.
func NewClient(httpClient *http.Client, opts ...Option) (*Client, error) {
	o := clientOptions{
		sheetsBaseURL: DefaultSheetsBaseURL,
		driveBaseURL:  DefaultDriveBaseURL,
		timeout:       defaultTimeout,
		pageSize:      defaultPageSize,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	sheetsURL, err := parseBaseURL(o.sheetsBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing sheets base URL: %w", err)
	}
	driveURL, err := parseBaseURL(o.driveBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing drive base URL: %w", err)
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Client{
		exec: &httpx.Client{
			HTTPDoer:      httpClient,
			RetryPolicy:   retry.NewPolicy(retry.Times(o.transientRetries).And(retry.TransientErr), retry.DefaultWaiter),
			TimeoutPolicy: timeout.Fixed(o.timeout),
			Handlers:      attemptLogHandlers(o.logger),
		},
		sheetsURL: sheetsURL,
		driveURL:  driveURL,
		pageSize:  o.pageSize,
		logger:    o.logger,
	}

	var r driven.Requester = driven.RequesterFunc(c.send)
	for i := len(o.middleware) - 1; i >= 0; i-- {
		r = o.middleware[i](r)
	}
	c.requester = r

	return c, nil
}

// Request issues req through the installed middleware. It returns a
// *model.APIError when the API answers with a status code of 400 or above.
func (c *Client) Request(ctx context.Context, req model.Request) (*model.Response, error) {
	return c.requester.Request(ctx, req)
}

// send performs a single logical request without any middleware.
func (c *Client) send(ctx context.Context, req model.Request) (*model.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	u, err := c.resolve(req.Path, req.Params)
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("encoding %s %s body: %w", method, req.Path, err)
	}

	plan, err := request.NewPlanWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", method, req.Path, err)
	}
	plan.Header.Set("Accept", "application/json")
	if contentType != "" {
		plan.Header.Set("Content-Type", contentType)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			plan.Header.Add(k, v)
		}
	}

	ex, err := c.exec.Do(plan)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.Path, err)
	}

	if ex.StatusCode() >= http.StatusBadRequest {
		return nil, model.NewAPIError(ex.StatusCode(), ex.Body)
	}

	return &model.Response{
		StatusCode: ex.StatusCode(),
		Header:     ex.Header(),
		Body:       ex.Body,
	}, nil
}

// resolve turns a request path into an absolute URL. Absolute paths are used
// as-is; relative paths resolve against the Sheets base URL.
func (c *Client) resolve(path string, params url.Values) (*url.URL, error) {
	var u *url.URL
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		parsed, err := url.Parse(path)
		if err != nil {
			return nil, fmt.Errorf("parsing request URL %q: %w", path, err)
		}
		u = parsed
	} else {
		ref, err := url.Parse(strings.TrimPrefix(path, "/"))
		if err != nil {
			return nil, fmt.Errorf("parsing request path %q: %w", path, err)
		}
		u = c.sheetsURL.ResolveReference(ref)
	}

	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	return u, nil
}

// driveURLFor returns the absolute Drive URL for a relative path.
func (c *Client) driveURLFor(path string) string {
	return c.driveURL.ResolveReference(&url.URL{Path: path}).String()
}

func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return b, "application/json", nil
	case string:
		return []byte(b), "application/json", nil
	default:
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			return nil, "", err
		}
		return bytes.TrimRight(buf.Bytes(), "\n"), "application/json", nil
	}
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// attemptLogHandlers logs every HTTP attempt at debug level.
func attemptLogHandlers(logger *slog.Logger) *httpx.HandlerGroup {
	handlers := &httpx.HandlerGroup{}
	handlers.PushBack(httpx.AfterAttempt, httpx.HandlerFunc(func(_ httpx.Event, e *request.Execution) {
		logger.Debug("sheets api attempt",
			"method", e.Plan.Method,
			"url", e.Plan.URL.String(),
			"attempt", e.Attempt,
			"status", e.StatusCode(),
			"error", e.Err,
		)
	}))
	return handlers
}

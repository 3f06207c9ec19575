// Package client sends requests to the blueprint API.
//
// Sender is the seam between the upload pipeline and the network: the
// pipeline builds a Request, and a Sender returns the status and body. The
// HTTP implementation logs every exchange through go-kit/log and stamps a
// User-Agent on each request.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-kit/log"
)

const (
	// DefaultTimeout bounds a single request when no timeout is configured.
	DefaultTimeout = 30 * time.Second

	// maxBodySize caps how much of a response body is read.
	maxBodySize = 10 << 20
)

// Request is one outbound call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is what came back: status and body, fully read.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// Failed reports whether the status is a 4xx client or 5xx server error.
// Informational and redirect statuses are not failures.
func (r *Response) Failed() bool {
	return r.StatusCode >= 400 && r.StatusCode <= 599
}

// Sender sends a request and returns the response, whatever its status.
// An error means no response was received.
type Sender interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Config configures an HTTPSender.
type Config struct {
	// Timeout bounds the whole exchange. Zero means DefaultTimeout.
	Timeout time.Duration

	// UserAgent is stamped on every request when set.
	UserAgent string
}

// HTTPSender implements Sender over net/http.
type HTTPSender struct {
	client *http.Client
}

// Option configures an HTTPSender.
type Option func(*options)

type options struct {
	logger    log.Logger
	transport http.RoundTripper
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTransport sets the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// NewHTTPSender creates an HTTPSender.
func NewHTTPSender(cfg Config, opts ...Option) *HTTPSender {
	o := &options{
		logger:    log.NewNopLogger(),
		transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(o)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HTTPSender{
		client: &http.Client{
			Timeout: timeout,
			Transport: &loggingRoundTripper{
				logger:    o.logger,
				userAgent: cfg.UserAgent,
				next:      o.transport,
			},
		},
	}
}

// Send performs the request.
func (s *HTTPSender) Send(ctx context.Context, req *Request) (*Response, error) {
	if err := validateURL(req.URL); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for name, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// validateURL rejects endpoints that are not absolute http(s) URLs.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %q: no host", raw)
	}
	return nil
}

package client

import (
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// loggingRoundTripper stamps the User-Agent and logs each exchange.
// Header values are never logged since they carry the bearer token.
type loggingRoundTripper struct {
	logger    log.Logger
	userAgent string
	next      http.RoundTripper
}

func (l *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}

	start := time.Now()
	level.Debug(l.logger).Log("msg", "sending request", "method", req.Method, "url", req.URL.Redacted(), "content_length", req.ContentLength)

	resp, err := l.next.RoundTrip(req)
	if err != nil {
		level.Debug(l.logger).Log("msg", "request failed", "method", req.Method, "url", req.URL.Redacted(), "duration", time.Since(start), "err", err)
		return nil, err
	}

	level.Debug(l.logger).Log("msg", "received response", "method", req.Method, "url", req.URL.Redacted(), "status", resp.Status, "duration", time.Since(start))
	return resp, nil
}

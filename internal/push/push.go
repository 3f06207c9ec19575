// Package push converts a YAML blueprint and uploads it in one PUT request.
//
// A push runs strictly in sequence: read the file, optionally decrypt and
// render it, parse it, encode canonical JSON, wrap it as base64, send it, and
// report the response. Every failure is returned as an *Error whose Kind
// tells callers what went wrong. Nothing is retried.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/cameronsjo/blueprinter/internal/blueprint"
	"github.com/cameronsjo/blueprinter/internal/client"
	"github.com/cameronsjo/blueprinter/internal/fileutil"
	"github.com/cameronsjo/blueprinter/internal/secrets"
)

// Header names sent with every upload.
const (
	HeaderAccept        = "Accept"
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderRequestID     = "X-Request-Id"
)

// Decryptor turns an encrypted blueprint into plaintext.
type Decryptor interface {
	Decrypt(data []byte, mode secrets.Mode) ([]byte, error)
}

// Renderer expands a blueprint template.
type Renderer interface {
	Render(name string, data []byte) ([]byte, error)
}

// Request describes one push.
type Request struct {
	// Path is the blueprint file, or "-" for stdin.
	Path string

	// URL is the endpoint the wrapper is PUT to.
	URL string

	// Token is the bearer credential. Empty sends no Authorization header.
	Token string

	// Headers are sent in addition to the fixed set. They cannot replace
	// Accept, Authorization or Content-Type.
	Headers map[string]string

	// Format pins the canonical JSON encoding.
	Format blueprint.Format

	// Decrypt selects when the Decryptor runs.
	Decrypt secrets.Mode
}

// Reply is the JSON envelope the API answers with.
type Reply struct {
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
	Error   bool            `json:"error"`
	Message string          `json:"message"`
	Status  int             `json:"status"`
}

// Result describes a completed exchange.
type Result struct {
	Payload    *blueprint.Payload
	RequestID  string
	StatusCode int
	Status     string
	Body       []byte

	// Reply is the parsed envelope, nil when the body is not one.
	Reply *Reply
}

// Pusher runs the pipeline.
type Pusher struct {
	sender    client.Sender
	fs        afero.Fs
	stdin     io.Reader
	out       io.Writer
	logger    log.Logger
	decryptor Decryptor
	renderer  Renderer
	newID     func() string
	progress  func(msg string) (stop func())
}

// Option configures a Pusher.
type Option func(*Pusher)

// WithFs sets the filesystem blueprints are read from.
func WithFs(fs afero.Fs) Option {
	return func(p *Pusher) {
		p.fs = fs
	}
}

// WithStdin sets the reader used for the "-" path.
func WithStdin(r io.Reader) Option {
	return func(p *Pusher) {
		p.stdin = r
	}
}

// WithOutput sets where stage output is printed.
func WithOutput(w io.Writer) Option {
	return func(p *Pusher) {
		p.out = w
	}
}

// WithLogger sets the logger for debug diagnostics.
func WithLogger(logger log.Logger) Option {
	return func(p *Pusher) {
		p.logger = logger
	}
}

// WithDecryptor enables decryption before parsing.
func WithDecryptor(d Decryptor) Option {
	return func(p *Pusher) {
		p.decryptor = d
	}
}

// WithRenderer enables template rendering before parsing.
func WithRenderer(r Renderer) Option {
	return func(p *Pusher) {
		p.renderer = r
	}
}

// WithRequestID sets the generator for X-Request-Id values.
func WithRequestID(fn func() string) Option {
	return func(p *Pusher) {
		p.newID = fn
	}
}

// WithProgress sets a hook shown while the request is in flight.
func WithProgress(fn func(msg string) (stop func())) Option {
	return func(p *Pusher) {
		p.progress = fn
	}
}

// New creates a Pusher that sends through sender.
func New(sender client.Sender, opts ...Option) *Pusher {
	p := &Pusher{
		sender:   sender,
		fs:       afero.NewOsFs(),
		stdin:    os.Stdin,
		out:      os.Stdout,
		logger:   log.NewNopLogger(),
		newID:    uuid.NewString,
		progress: func(string) func() { return func() {} },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load runs the offline stages: read, decrypt, render, parse, encode and
// wrap. It never uses the sender.
func (p *Pusher) Load(req Request) (*blueprint.Payload, error) {
	data, err := fileutil.ReadInput(p.fs, p.stdin, req.Path)
	if err != nil {
		return nil, &Error{Kind: KindFileAccess, Path: req.Path, Err: err}
	}
	level.Debug(p.logger).Log("msg", "read blueprint", "path", req.Path, "size", humanize.Bytes(uint64(len(data))))

	if p.decryptor != nil {
		data, err = p.decryptor.Decrypt(data, req.Decrypt)
		if err != nil {
			return nil, &Error{Kind: KindFileAccess, Path: req.Path, Err: err}
		}
	}

	if p.renderer != nil {
		data, err = p.renderer.Render(filepath.Base(req.Path), data)
		if err != nil {
			return nil, &Error{Kind: KindParse, Path: req.Path, Err: err}
		}
	}

	payload, err := blueprint.NewPayload(data, req.Format)
	switch {
	case errors.Is(err, blueprint.ErrSyntax):
		return nil, &Error{Kind: KindParse, Path: req.Path, Err: err}
	case err != nil:
		return nil, &Error{Kind: KindUnknown, Path: req.Path, Err: err}
	}

	level.Debug(p.logger).Log("msg", "encoded blueprint", "json_size", humanize.Bytes(uint64(len(payload.JSON))), "wrapped_size", humanize.Bytes(uint64(len(payload.Wrapper.Blueprint))))
	return payload, nil
}

// Push runs the whole pipeline once. On an HTTP error status both the Result
// and an *Error of KindHTTPStatus are returned.
func (p *Pusher) Push(ctx context.Context, req Request) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &Error{Kind: KindUnknown, Path: req.Path, URL: req.URL, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	payload, err := p.Load(req)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(p.out, "Converted JSON payload:")
	fmt.Fprintln(p.out, string(payload.JSON))

	body, err := payload.Wrapper.Marshal()
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Path: req.Path, Err: err}
	}

	fmt.Fprintln(p.out, "Sending the following Base64 encoded JSON payload:")
	fmt.Fprintln(p.out, string(body))
	fmt.Fprintln(p.out, strings.Repeat("-", 20))

	if p.sender == nil {
		return nil, &Error{Kind: KindUnknown, Path: req.Path, URL: req.URL, Err: errors.New("no sender configured")}
	}

	id := p.newID()
	if req.Token == "" {
		level.Warn(p.logger).Log("msg", "no bearer token, sending without Authorization header", "request_id", id)
	}

	header := buildHeader(req, id)
	id = header.Get(HeaderRequestID)

	stop := p.progress("Uploading blueprint")
	resp, err := p.sender.Send(ctx, &client.Request{
		Method: http.MethodPut,
		URL:    req.URL,
		Header: header,
		Body:   body,
	})
	stop()
	if err != nil {
		return nil, &Error{Kind: KindTransport, Path: req.Path, URL: req.URL, Err: err}
	}

	fmt.Fprintf(p.out, "API Response Status Code: %d\n", resp.StatusCode)
	fmt.Fprintln(p.out, "API Response Content:")
	fmt.Fprintln(p.out, string(resp.Body))

	res = &Result{
		Payload:    payload,
		RequestID:  id,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       resp.Body,
		Reply:      parseReply(resp.Body),
	}
	level.Debug(p.logger).Log("msg", "push finished", "request_id", id, "status", resp.StatusCode)

	if resp.Failed() {
		status := resp.Status
		if status == "" {
			status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return res, &Error{
			Kind:       KindHTTPStatus,
			Path:       req.Path,
			URL:        req.URL,
			StatusCode: resp.StatusCode,
			Status:     status,
			Body:       resp.Body,
			Err:        fmt.Errorf("server returned HTTP status: %s", status),
		}
	}
	return res, nil
}

func buildHeader(req Request, id string) http.Header {
	h := make(http.Header, len(req.Headers)+4)
	for name, value := range req.Headers {
		h.Set(name, value)
	}
	h.Set(HeaderAccept, "*/*")
	h.Del(HeaderAuthorization)
	if req.Token != "" {
		h.Set(HeaderAuthorization, "Bearer "+req.Token)
	}
	h.Set(HeaderContentType, "application/json")
	if h.Get(HeaderRequestID) == "" {
		h.Set(HeaderRequestID, id)
	}
	return h
}

func parseReply(body []byte) *Reply {
	var r Reply
	if err := json.Unmarshal(body, &r); err != nil {
		return nil
	}
	if r.Message == "" && r.Status == 0 && r.Data == nil {
		return nil
	}
	return &r
}

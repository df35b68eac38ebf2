package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/zillionme/2023-naaga/shared/protocol"
)

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenFunc returns the bearer token for the current user, or "" when there is none.
type TokenFunc func() string

// Param is a single query parameter. Params are encoded in declaration order.
type Param struct {
	Name  string
	Value string
}

// Request describes one HTTP exchange before it is executed.
type Request struct {
	Method string
	Path   string
	Query  []Param
	Body   any
}

// RawQuery encodes the params without reordering them.
func (r Request) RawQuery() string {
	parts := make([]string, 0, len(r.Query))
	for _, p := range r.Query {
		parts = append(parts, url.QueryEscape(p.Name)+"="+url.QueryEscape(p.Value))
	}
	return strings.Join(parts, "&")
}

func (r Request) url(base string) string {
	u := strings.TrimRight(base, "/") + r.Path
	if q := r.RawQuery(); q != "" {
		u += "?" + q
	}
	return u
}

func (r Request) String() string {
	return r.Method + " " + r.url("")
}

// Client binds requests to a base URL and an HTTP transport.
type Client struct {
	base       string
	doer       Doer
	token      TokenFunc
	dispatcher *Dispatcher
}

// Option configures a Client.
type Option func(*Client)

// WithToken adds "Authorization: Bearer <token>" to every request when fn returns a token.
func WithToken(fn TokenFunc) Option {
	return func(c *Client) { c.token = fn }
}

// WithDispatcher runs enqueued calls on d instead of a fresh goroutine per call.
func WithDispatcher(d *Dispatcher) Option {
	return func(c *Client) { c.dispatcher = d }
}

// NewClient returns a client for the API rooted at base. A nil doer means http.DefaultClient.
func NewClient(base string, doer Doer, opts ...Option) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	c := &Client{base: base, doer: doer}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL is the API root requests are resolved against.
func (c *Client) BaseURL() string { return c.base }

// dispatch starts task without blocking the caller. With a dispatcher, waiting
// for a free worker happens on its own goroutine and a failed submit goes to fail.
func (c *Client) dispatch(task func(), fail func(error)) {
	if c.dispatcher == nil {
		go task()
		return
	}
	go func() {
		if err := c.dispatcher.Submit(task); err != nil {
			fail(err)
		}
	}()
}

// Do executes req and decodes a 2xx JSON body into out. out may be nil when
// the body is irrelevant.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	target := req.url(c.base)
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, target)
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return errors.Wrap(err, "encode request body")
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return errors.Wrapf(err, "build %s %s", req.Method, target)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if token := c.token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.doer.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrapf(ctxErr, "%s %s", req.Method, target)
		}
		return errors.Wrapf(err, "%s %s", req.Method, target)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "read %s %s", req.Method, target)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newHTTPError(req.Method, target, resp.StatusCode, bodyBytes)
	}

	if out == nil {
		return nil
	}
	// Unmarshal accepts null and leaves out untouched.
	if bytes.Equal(bytes.TrimSpace(bodyBytes), []byte("null")) {
		return &DecodeError{URL: target, Body: bodyBytes, Err: ErrNullBody}
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return &DecodeError{URL: target, Body: bodyBytes, Err: err}
	}
	return nil
}

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	// Response is the decoded server error body, nil when the body was not one.
	Response *protocol.ErrorResponse
}

// newHTTPError keeps the raw body and decodes it as an ErrorResponse when it is one.
func newHTTPError(method, target string, status int, body []byte) *HTTPError {
	e := &HTTPError{Method: method, URL: target, StatusCode: status, Body: body}
	var er protocol.ErrorResponse
	if json.Unmarshal(body, &er) == nil && (er.Code != 0 || er.Message != "") {
		e.Response = &er
	}
	return e
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
	if e.Response != nil {
		return msg + ": " + e.Response.String()
	}
	if len(e.Body) > 0 {
		return msg + ": " + strings.TrimSpace(string(e.Body))
	}
	return msg
}

// NotFound and Unauthorized classify the status code.
func (e *HTTPError) NotFound() bool     { return e.StatusCode == http.StatusNotFound }
func (e *HTTPError) Unauthorized() bool { return e.StatusCode == http.StatusUnauthorized }

// ErrNullBody is the DecodeError cause for a 2xx response whose body is JSON null.
var ErrNullBody = errors.New("response body is null")

// DecodeError means a 2xx response carried a body that is not the expected JSON.
type DecodeError struct {
	URL  string
	Body []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.NotFound()
}

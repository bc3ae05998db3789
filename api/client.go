// Package api is a low-level client for the KDP REST API. It has one method per
// endpoint and does no batching, pagination or authentication flow of its own;
// see package kdp for those.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// DefaultServer is the production KDP API.
const DefaultServer = "https://api.app.koverse.com"

// HTTPRequestDoer performs HTTP requests. *http.Client satisfies it.
type HTTPRequestDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestEditorFn is called on every request before it is sent.
type RequestEditorFn func(ctx context.Context, req *http.Request) error

// ClientOption is a functional option type for Client.
type ClientOption func(*Client) error

// Client talks to one KDP API server.
type Client struct {
	// Server is the base URL, e.g. https://api.app.koverse.com
	Server string

	// Client performs the requests. Defaults to http.DefaultClient.
	Client HTTPRequestDoer

	// RequestEditors are applied to every request, before per-call editors.
	RequestEditors []RequestEditorFn

	json jsoniter.API
}

// NewClient returns a Client for server with the options applied.
func NewClient(server string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		Server: server,
		json:   decoderConfig(false),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.Server == "" {
		c.Server = DefaultServer
	}
	if !strings.HasSuffix(c.Server, "/") {
		c.Server += "/"
	}
	if _, err := url.Parse(c.Server); err != nil {
		return nil, errors.Wrapf(err, "parsing server url '%s'", c.Server)
	}
	if c.Client == nil {
		c.Client = http.DefaultClient
	}
	return c, nil
}

// WithHTTPClient sets the doer used for requests.
func WithHTTPClient(doer HTTPRequestDoer) ClientOption {
	return func(c *Client) error {
		c.Client = doer
		return nil
	}
}

// WithRequestEditorFn adds an editor applied to every request.
func WithRequestEditorFn(fn RequestEditorFn) ClientOption {
	return func(c *Client) error {
		c.RequestEditors = append(c.RequestEditors, fn)
		return nil
	}
}

// WithDisallowUnknownFields makes response decoding fail on keys which are not
// part of the model. By default unknown keys are discarded.
func WithDisallowUnknownFields() ClientOption {
	return func(c *Client) error {
		c.json = decoderConfig(true)
		return nil
	}
}

func decoderConfig(strict bool) jsoniter.API {
	return jsoniter.Config{
		EscapeHTML:             true,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
		UseNumber:              false,
		DisallowUnknownFields:  strict,
	}.Froze()
}

// WithBearerToken returns an editor which authorizes a request with jwt. An
// empty jwt leaves the request unauthenticated.
func WithBearerToken(jwt string) RequestEditorFn {
	return func(ctx context.Context, req *http.Request) error {
		if jwt != "" {
			req.Header.Set("Authorization", "Bearer "+jwt)
		}
		return nil
	}
}

// WithGzipContentEncoding marks the request body as gzip compressed. The body
// must already be compressed.
func WithGzipContentEncoding() RequestEditorFn {
	return func(ctx context.Context, req *http.Request) error {
		req.Header.Set("Content-Encoding", "gzip")
		return nil
	}
}

func (c *Client) applyEditors(ctx context.Context, req *http.Request, additional []RequestEditorFn) error {
	req.Header.Set("X-Request-Id", uuid.New().String())
	for _, r := range c.RequestEditors {
		if err := r(ctx, req); err != nil {
			return err
		}
	}
	for _, r := range additional {
		if err := r(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// newRequest builds a request for path (relative to Server) with query
// params. A non-nil body is JSON encoded.
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		buf, err := c.json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "marshaling request body")
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := c.newRequestWithBody(ctx, method, path, query, "application/json", rdr)
	if err != nil {
		return nil, err
	}
	if body == nil {
		req.Header.Del("Content-Type")
	}
	return req, nil
}

func (c *Client) newRequestWithBody(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader) (*http.Request, error) {
	serverURL, err := url.Parse(c.Server)
	if err != nil {
		return nil, errors.Wrap(err, "parsing server url")
	}
	opURL, err := serverURL.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing path '%s'", path)
	}
	if len(query) > 0 {
		opURL.RawQuery = query.Encode()
	}
	req, err := http.NewRequest(method, opURL.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req = req.WithContext(ctx)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes a 2xx JSON response into out (if non-nil). Any other
// status is returned as an *Error.
func (c *Client) do(ctx context.Context, req *http.Request, out interface{}, reqEditors []RequestEditorFn) error {
	if err := c.applyEditors(ctx, req, reqEditors); err != nil {
		return errors.Wrap(err, "applying request editors")
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError(resp, body)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := c.json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "decoding %s %s response", req.Method, req.URL.Path)
	}
	return nil
}

// Error is returned for any response with a non-2xx status.
type Error struct {
	StatusCode int
	Status     string
	Body       []byte

	// APIError is the decoded error body, when the server sent one.
	APIError *APIError
}

// Error implements error.
func (e *Error) Error() string {
	if e.APIError != nil && e.APIError.Message != "" {
		return fmt.Sprintf("kdp api: %s: %s (%s)", e.Status, e.APIError.Message, e.APIError.Name)
	}
	return fmt.Sprintf("kdp api: %s: %s", e.Status, bytes.TrimSpace(e.Body))
}

func newError(resp *http.Response, body []byte) *Error {
	e := &Error{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
	}
	apiErr := &APIError{}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(body, apiErr); err == nil && (apiErr.Message != "" || apiErr.Name != "") {
		e.APIError = apiErr
	}
	return e
}

// StatusCode returns the HTTP status of err if its cause is an *Error, and 0
// otherwise.
func StatusCode(err error) int {
	if e, ok := errors.Cause(err).(*Error); ok {
		return e.StatusCode
	}
	return 0
}

// IsNotFound reports whether err was caused by a 404 response.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

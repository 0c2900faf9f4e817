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
)

const maxResponseBody = 1 << 20

// Envelope is the common part of every backend response body.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Succeeded reports whether the body carries a success status.
func (e Envelope) Succeeded() bool {
	switch strings.ToLower(e.Status) {
	case "success", "ok", "true", "200", "201":
		return true
	}
	return false
}

// StatusError is returned for any non-2xx response the transport guard passed
// through. It carries the decoded envelope so callers can render the message.
type StatusError struct {
	StatusCode int
	Envelope   Envelope
	Body       []byte
}

func (e *StatusError) Error() string {
	if e.Envelope.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Envelope.Message)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// Client calls the console backend. Its http.Client is expected to use the
// transport guard.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// New creates a Client rooted at baseURL.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "[api.New] invalid base URL")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("[api.New] base URL %q must be absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: u, httpClient: httpClient}, nil
}

func (c *Client) endpoint(query url.Values, segments ...string) string {
	u := *c.baseURL
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u.Path = c.baseURL.Path + "/" + strings.Join(segments, "/")
	u.RawPath = c.baseURL.EscapedPath() + "/" + strings.Join(escaped, "/")
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends body as JSON and decodes the whole response body into out.
func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "[Client.do] encode request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return errors.Wrap(err, "[Client.do] build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return errors.Wrap(err, "[Client.do] read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: data}
		_ = json.Unmarshal(data, &statusErr.Envelope)
		return statusErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "[Client.do] decode %s %s", method, req.URL.Path)
	}
	return nil
}

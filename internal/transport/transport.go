// Package transport abstracts HTTP delivery to a single "send bytes, get
// status" operation so the dispatch path can be exercised without a network.
package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// Request is one outgoing HTTP call.
type Request struct {
	Method  string
	URL     string
	Body    []byte
	Headers map[string]string
}

// Response carries the delivery outcome. Only the status code matters to
// callers.
type Response struct {
	StatusCode int
}

// Successful reports a 2xx status.
func (r Response) Successful() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client executes one request. Implementations must honor the context's
// deadline; a transport-level timeout is the only bound on an in-flight call.
type Client interface {
	Execute(ctx context.Context, req Request) (Response, error)
}

// HTTPClient is the net/http-backed default client.
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient returns a client with the given per-request timeout.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Execute performs the request and drains the response body so connections
// are reused.
func (c *HTTPClient) Execute(ctx context.Context, req Request) (Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return Response{}, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	return Response{StatusCode: resp.StatusCode}, nil
}

var _ Client = (*HTTPClient)(nil)

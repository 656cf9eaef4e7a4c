package garden

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnexpectedStatus is returned for any non-2xx response from the REST feed.
var ErrUnexpectedStatus = errors.New("unexpected upstream status")

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 8 << 20

type RESTClient struct {
	url        string
	httpClient *http.Client
}

// NewRESTClient returns a client for the REST stock endpoint at url.
// timeout bounds each request end to end.
func NewRESTClient(url string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// URL returns the endpoint being polled.
func (c *RESTClient) URL() string {
	return c.url
}

// FetchStock performs one GET and returns the body once it is known to be a
// JSON object. Transport errors, non-2xx statuses and non-object bodies are
// all errors.
func (c *RESTClient) FetchStock(ctx context.Context) ([]byte, error) {
	// Create request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	// Send request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	// Read response body
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	// Check HTTP status code
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, snippet(body))
	}

	// Decoding is left to the message handler
	if err := ValidatePayload(body); err != nil {
		return nil, err
	}
	return body, nil
}

func snippet(body []byte) string {
	const n = 200
	if len(body) > n {
		return string(body[:n]) + "..."
	}
	return string(body)
}

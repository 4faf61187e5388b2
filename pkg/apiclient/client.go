// Package apiclient is the thin HTTP client both proxies use to reach a
// storage server: the wire envelopes of pkg/wire, sent and decoded the way
// C9 defines them, over a plain *http.Client with a caller-supplied
// timeout (spec.md §5: "every outbound HTTP call has a configurable
// timeout"), generalized to a bearer-token REST shape covering this
// domain's record endpoints and its put endpoint's multipart framing.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marmos91/mediastorage/pkg/wire"
)

// Client talks to one storage server, identified by host and port.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a Client targeting host:port with the given request timeout.
func New(host string, port int, timeout time.Duration) *Client {
	return &Client{
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// APIError is returned for any non-2xx response; StatusCode lets callers
// apply the taxonomy in spec.md §7 (e.g. 409 is terminal for a storage
// proxy worker, anything else is retryable).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apiclient: storage server returned %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports whether the error is the terminal 409 a storage proxy
// worker must stop retrying on (§4.7.2).
func IsConflict(err error) bool {
	var apiErr *APIError
	return asAPIError(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

func asAPIError(err error, target **APIError) bool {
	apiErr, ok := err.(*APIError)
	if ok {
		*target = apiErr
	}
	return ok
}

func (c *Client) postJSON(ctx context.Context, path string, body, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("apiclient: encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, result)
}

func decodeResponse(resp *http.Response, result any) error {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("apiclient: read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var wireErr wire.ErrorResponse
		msg := string(respBody)
		if json.Unmarshal(respBody, &wireErr) == nil && wireErr.Error != "" {
			msg = wireErr.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("apiclient: decode response body: %w", err)
		}
	}
	return nil
}

// Put uploads content under header to the storage server (§4.3.1). It
// always uses the fixed-boundary multipart framing C9 defines; the nginx
// side-channel mode is a front-end-proxy optimization this client has no
// use for.
func (c *Client) Put(ctx context.Context, header wire.PutHeader, content io.Reader) (wire.PutResponse, error) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return wire.PutResponse{}, fmt.Errorf("apiclient: encode put header: %w", err)
	}

	var buf bytes.Buffer
	if err := wire.EncodeMultipart(&buf, headerJSON, content); err != nil {
		return wire.PutResponse{}, fmt.Errorf("apiclient: encode multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/put", &buf)
	if err != nil {
		return wire.PutResponse{}, fmt.Errorf("apiclient: build put request: %w", err)
	}
	req.Header.Set("Content-Type", wire.ContentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return wire.PutResponse{}, fmt.Errorf("apiclient: put request: %w", err)
	}
	defer resp.Body.Close()

	var out wire.PutResponse
	if err := decodeResponse(resp, &out); err != nil {
		return wire.PutResponse{}, err
	}
	return out, nil
}

// GetResult carries a streamed get response: the blob body plus the
// response headers §4.8 defines (Content-Type, Applied-Compression).
type GetResult struct {
	Body              io.ReadCloser
	ContentType       string
	AppliedCompression string
}

// Get streams a record's blob from the storage server (§4.3.2). The
// caller must Close the returned Body. A non-empty supportedCompression is
// sent, semicolon-joined, as the Supported-Compression request header.
func (c *Client) Get(ctx context.Context, req wire.GetRequest, supportedCompression []string) (*GetResult, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("apiclient: encode get request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/get", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("apiclient: build get request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if len(supportedCompression) > 0 {
		httpReq.Header.Set("Supported-Compression", joinSemicolon(supportedCompression))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("apiclient: get request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeResponse(resp, nil)
	}

	return &GetResult{
		Body:               resp.Body,
		ContentType:        resp.Header.Get("Content-Type"),
		AppliedCompression: resp.Header.Get("Applied-Compression"),
	}, nil
}

func joinSemicolon(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += ";" + p
	}
	return out
}

// Describe fetches a record's descriptor without its blob (§4.3.3).
func (c *Client) Describe(ctx context.Context, req wire.DescribeRequest) (wire.DescribeView, error) {
	var out wire.DescribeView
	err := c.postJSON(ctx, "/describe", req, &out)
	return out, err
}

// Update edits a record's policy and/or meta facets (§4.3.4).
func (c *Client) Update(ctx context.Context, req wire.UpdateRequest) (wire.DescribeView, error) {
	var out wire.DescribeView
	err := c.postJSON(ctx, "/update", req, &out)
	return out, err
}

// Unlink removes a record and its blob (§4.3.5).
func (c *Client) Unlink(ctx context.Context, req wire.UnlinkRequest) error {
	return c.postJSON(ctx, "/unlink", req, nil)
}

// Query runs a predicate search (§4.3.6).
func (c *Client) Query(ctx context.Context, req wire.QueryRequest) (wire.QueryResponse, error) {
	var out wire.QueryResponse
	err := c.postJSON(ctx, "/query", req, &out)
	return out, err
}

// Ping checks reachability (§4.3.7).
func (c *Client) Ping(ctx context.Context) (bool, error) {
	var out wire.PingResponse
	if err := c.postJSON(ctx, "/ping", struct{}{}, &out); err != nil {
		return false, err
	}
	return out.Online, nil
}

// =============================================================================
// FBDI Workflow - Backend Client
// =============================================================================
//
// Client talks to the FBDI backend over HTTP. The backend is an opaque
// collaborator: this package knows its endpoints, its multipart field names
// and its response shapes, nothing more.
//
// REQUEST RULES:
//   - One call per method, no automatic retry, no backoff.
//   - No client-side timeout unless Options.Timeout is set; cancellation is
//     driven by the caller's context.
//   - Every request carries an X-Request-ID so backend logs can be matched.
//
// ERROR RULES:
//   - Transport failures        -> *StepError{Step: "network"}
//   - Body with a "step" field  -> *StepError{Step: ...}
//   - Any other non-2xx answer  -> *APIError
//
// =============================================================================

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/fbdi-workflow/internal/logging"
)

// =============================================================================
// CLIENT
// =============================================================================

// Options configures a Client.
type Options struct {
	// Timeout bounds each request. Zero means no client-side timeout.
	Timeout time.Duration

	// HTTPClient overrides the underlying client (tests).
	HTTPClient *http.Client

	Logger logging.Logger
}

// Client is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	log     logging.Logger
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", baseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	return &Client{baseURL: u, http: hc, log: log.With("api")}, nil
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// =============================================================================
// UPLOADS
// =============================================================================

// Upload is a file sent in a multipart request. The content is held in
// memory so a submission can be replayed unchanged.
type Upload struct {
	Name string
	Data []byte
}

// LoadUpload reads a file from disk.
func LoadUpload(path string) (Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Upload{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Upload{Name: filepath.Base(path), Data: data}, nil
}

// IsZero reports whether no file was provided.
func (u Upload) IsZero() bool {
	return u.Name == "" && len(u.Data) == 0
}

type field struct {
	name  string
	value string
}

type filePart struct {
	field  string
	upload Upload
}

// =============================================================================
// TRANSPORT
// =============================================================================

type response struct {
	status      int
	contentType string
	body        []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

func (c *Client) endpoint(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL.String() + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(fmt.Errorf("failed to read response: %w", err))
	}

	c.log.Debug("request done",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"bytes", len(data),
		"request_id", requestID,
		"elapsed", time.Since(start).String(),
	)

	return &response{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        data,
	}, nil
}

func (c *Client) get(ctx context.Context, path string) (*response, error) {
	return c.do(ctx, http.MethodGet, path, nil, "")
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (*response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(data), "application/json")
}

func (c *Client) postMultipart(ctx context.Context, path string, fields []field, files []filePart) (*response, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.upload.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", f.field, err)
		}
		if _, err := part.Write(f.upload.Data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.field, err)
		}
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", f.name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	return c.do(ctx, http.MethodPost, path, &buf, w.FormDataContentType())
}

// =============================================================================
// DECODING
// =============================================================================

// failure converts a non-2xx answer into a typed error.
func failure(r *response) error {
	var probe rawStepError
	if json.Unmarshal(r.body, &probe) == nil && probe.Step != "" {
		return probe.stepError()
	}

	var body errorBody
	if json.Unmarshal(r.body, &body) == nil {
		return &APIError{StatusCode: r.status, Message: body.text(), Details: body.Details}
	}
	return &APIError{StatusCode: r.status, Message: strings.TrimSpace(string(r.body))}
}

// decodeJSON decodes a 2xx answer into v. Bodies with "status": "error" are
// failures even when the HTTP status says otherwise.
func decodeJSON(r *response, v any) error {
	if !r.ok() {
		return failure(r)
	}
	if len(bytes.TrimSpace(r.body)) == 0 {
		return ErrEmptyResponse
	}

	var body errorBody
	if json.Unmarshal(r.body, &body) == nil && strings.EqualFold(body.Status, "error") {
		return &APIError{StatusCode: r.status, Message: body.text(), Details: body.Details}
	}

	if err := json.Unmarshal(r.body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// binary returns the payload of a 2xx file download.
func binary(r *response) ([]byte, error) {
	if !r.ok() {
		return nil, failure(r)
	}
	if len(r.body) == 0 {
		return nil, ErrEmptyResponse
	}
	return r.body, nil
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	var se *StepError
	return errors.As(err, &se) && se.IsNetwork()
}

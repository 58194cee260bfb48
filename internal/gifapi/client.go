package gifapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/maauso/vid2gif/internal/job"
)

// Static errors for conversion backend operations.
var (
	// ErrBaseURLRequired is returned when the backend URL is not provided.
	ErrBaseURLRequired = errors.New("gifapi: base URL is required")
	// ErrVideoURLRequired is returned when ResolveURL is called with an empty URL.
	ErrVideoURLRequired = errors.New("gifapi: video URL is required")
	// ErrTaskIDRequired is returned when the task ID is not provided.
	ErrTaskIDRequired = errors.New("gifapi: task ID is required")
	// ErrAssetNameRequired is returned when Download is called without an asset name.
	ErrAssetNameRequired = errors.New("gifapi: asset name is required")
	// ErrNoSource is returned when a submission has neither a file nor a preview URL.
	ErrNoSource = errors.New("gifapi: submission needs a video file or a preview URL")
	// ErrAmbiguousSource is returned when a submission has both a file and a preview URL.
	ErrAmbiguousSource = errors.New("gifapi: submission has both a video file and a preview URL")
	// ErrNoTaskIDReturned is returned when the submit response contains no task ID.
	ErrNoTaskIDReturned = errors.New("gifapi: submit failed: no task ID returned")
	// ErrNoPreviewURL is returned when the resolve response contains no preview URL.
	ErrNoPreviewURL = errors.New("gifapi: resolve failed: no preview URL returned")
	// ErrNetwork is returned when the request never produced a usable response.
	ErrNetwork = errors.New("gifapi: network error")
)

// Client defines the interface for interacting with the conversion backend.
type Client interface {
	// ResolveURL asks the backend to fetch a remote video and returns the
	// preview URL that replaces it for every later step.
	ResolveURL(ctx context.Context, videoURL string) (previewURL string, err error)

	// Submit sends a conversion job and returns the backend task ID.
	Submit(ctx context.Context, sub Submission) (taskID string, err error)

	// Poll fetches the current status of a task.
	Poll(ctx context.Context, taskID string) (StatusResponse, error)

	// Download streams the named asset to w and returns the bytes written.
	Download(ctx context.Context, name string, w io.Writer) (int64, error)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

// HTTPClient is the HTTP implementation of the Client interface.
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithMaxRetries sets the maximum number of retries for transient GET failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// WithRateLimit caps outgoing requests at rps per second. A non-positive
// rps disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(hc *HTTPClient) {
		if rps <= 0 {
			hc.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		hc.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) ClientOption {
	return func(hc *HTTPClient) {
		if l != nil {
			hc.logger = l
		}
	}
}

// NewClient creates a new backend client rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*HTTPClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("gifapi: invalid base URL: %w", err)
	}

	c := &HTTPClient{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		maxRetries:  2,
		baseBackoff: 500 * time.Millisecond,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// BaseURL returns the backend root the client talks to.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// ResolveURL posts the remote URL to /upload_url.
func (c *HTTPClient) ResolveURL(ctx context.Context, videoURL string) (string, error) {
	videoURL = strings.TrimSpace(videoURL)
	if videoURL == "" {
		return "", ErrVideoURLRequired
	}

	form := url.Values{"video_url": {videoURL}}
	body := []byte(form.Encode())

	var resp resolveResponse
	if err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/upload_url",
		"application/x-www-form-urlencoded", body, &resp); err != nil {
		return "", err
	}

	if resp.PreviewURL == "" {
		return "", ErrNoPreviewURL
	}
	return resp.PreviewURL, nil
}

// Submit posts the job as multipart form data to /convert. Submissions are
// never retried.
func (c *HTTPClient) Submit(ctx context.Context, sub Submission) (string, error) {
	switch {
	case sub.VideoPath == "" && sub.PreviewURL == "":
		return "", ErrNoSource
	case sub.VideoPath != "" && sub.PreviewURL != "":
		return "", ErrAmbiguousSource
	}

	body, contentType, err := encodeSubmission(sub)
	if err != nil {
		return "", err
	}

	var resp struct {
		submitResponse
		errorBody
	}
	if err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/convert", contentType, body, &resp); err != nil {
		return "", err
	}

	if resp.TaskID == "" {
		if resp.Error != "" {
			return "", fmt.Errorf("%w: %w", ErrNoTaskIDReturned, &APIError{StatusCode: http.StatusOK, Message: resp.Error})
		}
		return "", ErrNoTaskIDReturned
	}

	return resp.TaskID, nil
}

// Poll fetches /status/{task_id}, retrying transient failures.
func (c *HTTPClient) Poll(ctx context.Context, taskID string) (StatusResponse, error) {
	if taskID == "" {
		return StatusResponse{}, ErrTaskIDRequired
	}

	u := c.baseURL + "/status/" + url.PathEscape(taskID)

	var resp StatusResponse
	if err := c.doRequestWithRetry(ctx, u, &resp); err != nil {
		return StatusResponse{}, err
	}
	return resp, nil
}

// Download streams /download_gif/{name} into w. Retries only happen before
// the first byte is written.
func (c *HTTPClient) Download(ctx context.Context, name string, w io.Writer) (int64, error) {
	if name == "" {
		return 0, ErrAssetNameRequired
	}

	u := c.baseURL + job.DownloadPath(name)

	var written int64
	err := c.retry(ctx, func() error {
		resp, err := c.send(ctx, http.MethodGet, u, "", nil)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if err := checkStatus(resp); err != nil {
			return err
		}

		written, err = io.Copy(w, resp.Body)
		if err != nil {
			return fmt.Errorf("%w: copy download data: %w", ErrNetwork, err)
		}
		return nil
	})
	return written, err
}

// encodeSubmission builds the multipart body in memory so the request has
// a known length.
func encodeSubmission(sub Submission) ([]byte, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if sub.VideoPath != "" {
		f, err := os.Open(sub.VideoPath) // #nosec G304 - path chosen by the user
		if err != nil {
			return nil, "", fmt.Errorf("gifapi: open video: %w", err)
		}
		defer func() { _ = f.Close() }()

		part, err := writer.CreateFormFile("video", filepath.Base(sub.VideoPath))
		if err != nil {
			return nil, "", fmt.Errorf("gifapi: create video part: %w", err)
		}
		if _, err := io.Copy(part, f); err != nil {
			return nil, "", fmt.Errorf("gifapi: copy video: %w", err)
		}
	} else if err := writer.WriteField("preview_url", sub.PreviewURL); err != nil {
		return nil, "", fmt.Errorf("gifapi: write preview_url: %w", err)
	}

	for _, f := range sub.Fields {
		if err := writer.WriteField(f.Name, f.Value); err != nil {
			return nil, "", fmt.Errorf("gifapi: write field %s: %w", f.Name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("gifapi: close multipart writer: %w", err)
	}
	return body.Bytes(), writer.FormDataContentType(), nil
}

// doRequestWithRetry performs a GET with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, url string, result interface{}) error {
	return c.retry(ctx, func() error {
		return c.doRequest(ctx, http.MethodGet, url, "", nil, result)
	})
}

func (c *HTTPClient) retry(ctx context.Context, attemptFn func() error) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying request",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("gifapi: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}

		err := attemptFn()
		if err == nil {
			return nil
		}

		// Check if error is retryable
		if !isRetryable(err) || ctx.Err() != nil {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("gifapi: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request and decodes a JSON body.
func (c *HTTPClient) doRequest(ctx context.Context, method, url, contentType string, body []byte, result interface{}) error {
	resp, err := c.send(ctx, method, url, contentType, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("%w: read response: %w", ErrNetwork, err)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: decode response: %w", ErrNetwork, err)
		}
	}

	return nil
}

// send waits for the limiter and issues one request.
func (c *HTTPClient) send(ctx context.Context, method, url, contentType string, body []byte) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("gifapi: rate limiter: %w", err)
		}
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("gifapi: create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("backend request", slog.String("method", method), slog.String("url", url))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("%w: %w", ErrNetwork, err)}
	}
	return resp, nil
}

// checkStatus turns a non-2xx response into an APIError. 5xx and 429 are
// retryable.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil {
		apiErr.Message = eb.Error
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return &retryableError{err: apiErr}
	}
	return apiErr
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// ServerMessage returns the backend's error text carried by err, if any.
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// Package gifapi provides an HTTP client for the video-to-GIF conversion
// backend: remote URL resolution, job submission, status polling and result
// download.
package gifapi

import (
	"fmt"
	"net/http"
)

const (
	// StateFailure is the task state the backend reports for a crashed task.
	StateFailure = "FAILURE"
	// StatusSuccess is the status a finished task reports alongside its result.
	StatusSuccess = "SUCCESS"
	// StatusFailure is the status a task reports when it caught its own error.
	StatusFailure = "FAILURE"
)

// Field is one multipart form field of a submission, in send order.
type Field struct {
	Name  string
	Value string
}

// Submission is one conversion request. Exactly one of VideoPath and
// PreviewURL must be set.
type Submission struct {
	// VideoPath is a local file sent as the "video" part.
	VideoPath string
	// PreviewURL is a server-resolved URL sent as the "preview_url" field.
	PreviewURL string
	// Fields carries the conversion options.
	Fields []Field
}

// StatusResponse is the body of GET /status/{task_id}. Every field is
// optional on the wire; the zero value is an ambiguous in-progress report.
type StatusResponse struct {
	State  string `json:"state,omitempty"`
	Status string `json:"status,omitempty"`
	GIFURL string `json:"gif_url,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Succeeded reports whether the response carries the success marker.
func (r StatusResponse) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Failed reports whether the response carries an explicit failure marker.
func (r StatusResponse) Failed() bool {
	return r.State == StateFailure || r.Status == StatusFailure
}

// Terminal reports whether polling should stop on this response.
func (r StatusResponse) Terminal() bool {
	return r.Succeeded() || r.Failed()
}

// APIError is returned for any non-2xx response. Message is the server's
// "error" text when the body carried one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gifapi: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("gifapi: %d: %s", e.StatusCode, e.Message)
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// resolveResponse is the body of POST /upload_url.
type resolveResponse struct {
	PreviewURL string `json:"preview_url"`
}

// submitResponse is the body of POST /convert.
type submitResponse struct {
	TaskID string `json:"task_id"`
}

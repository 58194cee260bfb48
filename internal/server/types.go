// Package server provides the local HTTP control API a front end binds to.
// It includes handlers, middleware, routes, and DTOs separated from session
// types.
package server

import "github.com/maauso/vid2gif/internal/history"

// SelectFileRequest selects a local file with the picker.
type SelectFileRequest struct {
	// Path is the local path of the video.
	Path string `json:"path" validate:"required"`
}

// DropRequest is a drag-and-drop of one or more local files.
type DropRequest struct {
	// Paths are the dropped files; only the first is used.
	Paths []string `json:"paths" validate:"required,min=1,dive,required"`
}

// URLRequest asks the backend to resolve a remote video.
type URLRequest struct {
	// URL is the remote video URL.
	URL string `json:"url" validate:"required,url"`
}

// CropStartRequest captures a freeze-frame to crop on.
type CropStartRequest struct {
	// AtSeconds is the preview offset of the frame.
	AtSeconds float64 `json:"at_seconds" validate:"gte=0"`
}

// CropRequest is a rectangle reported by the cropping widget, in source
// pixels before rounding.
type CropRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
}

// SubmitRequest carries the conversion options. Zero values keep the form
// defaults.
type SubmitRequest struct {
	StartTime    float64  `json:"start_time" validate:"gte=0"`
	EndTime      *float64 `json:"end_time,omitempty" validate:"omitempty,gte=0"`
	FPS          int      `json:"fps" validate:"omitempty,min=1,max=50"`
	Resize       string   `json:"resize"`
	Speed        float64  `json:"speed" validate:"omitempty,gt=0,lte=10"`
	TextOverlay  string   `json:"text_overlay" validate:"max=200"`
	TextSize     int      `json:"text_size" validate:"omitempty,min=1,max=200"`
	TextColor    string   `json:"text_color"`
	BgColor      string   `json:"bg_color"`
	NoBackground bool     `json:"no_background"`
}

// HistoryResponse lists recent conversions, newest first.
type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

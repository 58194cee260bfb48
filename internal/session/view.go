package session

import (
	"github.com/maauso/vid2gif/internal/crop"
	"github.com/maauso/vid2gif/internal/history"
)

// MediaView describes the selected media.
type MediaView struct {
	Kind       string   `json:"kind"`
	Name       string   `json:"name"`
	Path       string   `json:"path,omitempty"`
	PreviewURL string   `json:"preview_url,omitempty"`
	Duration   float64  `json:"duration,omitempty"`
	Width      int      `json:"width,omitempty"`
	Height     int      `json:"height,omitempty"`
	TrimStart  float64  `json:"trim_start"`
	TrimEnd    *float64 `json:"trim_end,omitempty"`
}

// View is an immutable snapshot of the session for rendering.
type View struct {
	State        string `json:"state"`
	SubmissionID string `json:"submission_id,omitempty"`
	TaskID       string `json:"task_id,omitempty"`

	Media        *MediaView `json:"media,omitempty"`
	Loading      bool       `json:"loading"`
	Resolving    bool       `json:"resolving"`
	PreviewReady bool       `json:"preview_ready"`

	Capturing  bool         `json:"capturing"`
	CropActive bool         `json:"crop_active"`
	Crop       *crop.Region `json:"crop,omitempty"`

	SubmitEnabled   bool   `json:"submit_enabled"`
	SubmitLabel     string `json:"submit_label"`
	ProgressVisible bool   `json:"progress_visible"`
	Progress        string `json:"progress,omitempty"`
	Error           string `json:"error,omitempty"`

	Result  *Result         `json:"result,omitempty"`
	History []history.Entry `json:"history"`
}

// Terminal reports whether the snapshot shows a finished submission.
func (v View) Terminal() bool {
	return v.State == StateSucceeded.String() || v.State == StateFailed.String()
}

// View renders the model.
func (m Model) View() View {
	v := View{
		State:        m.State.String(),
		SubmissionID: m.SubmissionID,
		Loading:      m.Loading,
		Resolving:    m.Resolving,
		PreviewReady: m.Media != nil,
		Capturing:    m.Capturing,
		CropActive:   m.FrameW > 0,
		Error:        m.Error,
		History:      append([]history.Entry{}, m.History...),
	}

	if m.Job != nil {
		v.TaskID = m.Job.TaskID
	}

	if m.Media != nil {
		mv := &MediaView{
			Kind:       m.Media.Source.Kind().String(),
			Name:       m.Media.Name,
			Path:       m.Media.Source.Path(),
			PreviewURL: m.Media.Source.PreviewURL(),
			Duration:   m.Media.Info.Duration,
			Width:      m.Media.Info.Width,
			Height:     m.Media.Info.Height,
			TrimStart:  m.Media.TrimStart,
		}
		if m.Media.HasTrimEnd {
			end := m.Media.TrimEnd
			mv.TrimEnd = &end
		}
		v.Media = mv
	}

	if m.Crop != nil {
		r := *m.Crop
		v.Crop = &r
	}

	switch m.State {
	case StateSubmitting:
		v.SubmitLabel = LabelUploading
	case StateConverting:
		v.SubmitLabel = LabelConverting
	default:
		v.SubmitLabel = LabelSubmit
	}
	v.SubmitEnabled = !m.State.Busy() && !m.Resolving && !m.URLFailed
	v.ProgressVisible = m.State.Busy()
	if v.ProgressVisible {
		v.Progress = m.Progress
	}

	if m.Result != nil {
		r := *m.Result
		v.Result = &r
	}
	return v
}

// Package job provides the ConversionJob record tracked client-side from a
// successful submission to its terminal outcome, with state machine
// transitions aligned with the conversion backend's task states.
package job

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"time"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusPending indicates the backend accepted the task but has not reported progress.
	StatusPending Status = "PENDING"
	// StatusProcessing indicates the backend reported a non-terminal status.
	StatusProcessing Status = "PROCESSING"
	// StatusSuccess indicates the backend produced the GIF.
	StatusSuccess Status = "SUCCESS"
	// StatusFailure indicates the conversion or the status check failed.
	StatusFailure Status = "FAILURE"
)

// DownloadPrefix is the backend route that serves finished assets by name.
const DownloadPrefix = "/download_gif/"

var (
	// ErrInvalidTransition is returned when an invalid state transition is attempted.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrTaskIDRequired is returned when a job is created without a task ID.
	ErrTaskIDRequired = errors.New("job: task ID is required")
	// ErrNoAssetName is returned when a result URL has no final path segment.
	ErrNoAssetName = errors.New("job: result URL has no asset name")
)

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusSuccess, StatusFailure},
	StatusProcessing: {StatusProcessing, StatusSuccess, StatusFailure},
	StatusSuccess:    {},
	StatusFailure:    {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Job is one server-side conversion request as seen by the client.
// A Job is owned by a single goroutine; it holds no references, so a
// plain copy is a snapshot.
type Job struct {
	// TaskID is the identifier returned by the submission endpoint.
	TaskID string
	// SubmissionID is the client-side identifier of the submission that created the job.
	SubmissionID string
	// Status is the current job state.
	Status Status
	// Label is the last status text reported by the backend.
	Label string
	// ResultURL is the asset URL reported on success.
	ResultURL string
	// Width and Height are the result dimensions reported on success.
	Width  int
	Height int
	// Error contains the failure message if the job failed.
	Error string
	// SubmittedAt is when the backend accepted the job.
	SubmittedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// New creates a PENDING job for a task accepted by the backend.
func New(taskID, submissionID string) (Job, error) {
	if taskID == "" {
		return Job{}, ErrTaskIDRequired
	}
	now := time.Now()
	return Job{
		TaskID:       taskID,
		SubmissionID: submissionID,
		Status:       StatusPending,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}, nil
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	if status == StatusSuccess || status == StatusFailure {
		j.CompletedAt = j.UpdatedAt
	}
	return nil
}

// Progress records a non-terminal status report.
func (j *Job) Progress(label string) error {
	if err := j.TransitionTo(StatusProcessing); err != nil {
		return err
	}
	j.Label = label
	return nil
}

// Succeed records the finished asset.
func (j *Job) Succeed(resultURL string, width, height int) error {
	if err := j.TransitionTo(StatusSuccess); err != nil {
		return err
	}
	j.ResultURL = resultURL
	j.Width = width
	j.Height = height
	return nil
}

// Fail transitions the job to FAILURE with an error message.
func (j *Job) Fail(errMsg string) error {
	if err := j.TransitionTo(StatusFailure); err != nil {
		return err
	}
	j.Error = errMsg
	return nil
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	return j.Status == StatusSuccess || j.Status == StatusFailure
}

// AssetName returns the last path segment of a result URL, the name the
// backend's download route expects.
func AssetName(resultURL string) (string, error) {
	u, err := url.Parse(resultURL)
	if err != nil {
		return "", fmt.Errorf("job: parse result URL: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("%w: %q", ErrNoAssetName, resultURL)
	}
	return name, nil
}

// DownloadPath returns the backend path that serves the asset named name.
func DownloadPath(name string) string {
	return DownloadPrefix + url.PathEscape(name)
}

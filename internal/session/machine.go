// Package session holds the interaction state of one conversion session as
// an explicit state machine. Reduce is a pure transition function; the
// Coordinator owns the model, runs the effects Reduce asks for and publishes
// View snapshots.
package session

import (
	"errors"

	"github.com/maauso/vid2gif/internal/crop"
	"github.com/maauso/vid2gif/internal/form"
	"github.com/maauso/vid2gif/internal/gifapi"
	"github.com/maauso/vid2gif/internal/history"
	"github.com/maauso/vid2gif/internal/intake"
	"github.com/maauso/vid2gif/internal/job"
)

// State is the submission state.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateConverting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSubmitting:
		return "SUBMITTING"
	case StateConverting:
		return "CONVERTING"
	case StateSucceeded:
		return "SUCCEEDED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Busy reports whether a submission is in flight.
func (s State) Busy() bool {
	return s == StateSubmitting || s == StateConverting
}

// User-facing texts.
const (
	LabelSubmit     = "Convert to GIF"
	LabelUploading  = "Uploading..."
	LabelConverting = "Converting..."

	MsgUploadingVideo = "Uploading video..."
	MsgProcessing     = "Processing..."

	MsgNoMedia           = "No video selected. Choose a file or enter a video URL."
	MsgResolvePending    = "The video URL is still loading."
	MsgUploadFailed      = "Upload failed."
	MsgNetworkError      = "A network error occurred during upload."
	MsgBackgroundFailure = "Conversion failed in the background."
	MsgStatusCheckFailed = "Error checking task status."
	MsgResolveFailed     = "A network error occurred while loading the video URL."
	MsgCropNotStarted    = "Start cropping before adjusting the region."
)

// Result is a finished conversion as shown to the user.
type Result struct {
	URL          string `json:"url"`
	AssetName    string `json:"asset_name"`
	DownloadPath string `json:"download_path"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

// Model is the whole interaction state. Reduce never mutates a Model it is
// given; pointer fields are replaced, not written through.
type Model struct {
	State State
	// Generation identifies the current submission; results carrying an
	// older generation are dropped.
	Generation   uint64
	SubmissionID string
	Job          *job.Job

	// MediaGen identifies the current media selection.
	MediaGen  uint64
	Media     *intake.Media
	Resolving bool
	Loading   bool
	// URLFailed blocks submission after a failed URL resolution until new
	// media is chosen.
	URLFailed bool

	Capturing bool
	FrameW    int
	FrameH    int
	Crop      *crop.Region

	Progress string
	Error    string
	Result   *Result

	History    []history.Entry
	HistorySeq uint64
}

// Event is an input to Reduce.
type Event interface{ isEvent() }

// FileSelected is a file chosen with the picker.
type FileSelected struct{ Path string }

// FilesDropped is a drag-and-drop of one or more files.
type FilesDropped struct{ Paths []string }

// URLEntered is a remote video URL typed by the user.
type URLEntered struct{ URL string }

// MediaLoaded reports intake success for MediaGen Gen.
type MediaLoaded struct {
	Gen   uint64
	Media intake.Media
}

// MediaFailed reports intake failure for MediaGen Gen.
type MediaFailed struct {
	Gen     uint64
	Message string
}

// CropStarted asks for a freeze-frame at the given preview offset.
type CropStarted struct{ AtSeconds float64 }

// FrameCaptured delivers the freeze-frame for MediaGen Gen.
type FrameCaptured struct {
	Gen   uint64
	Frame crop.Frame
}

// FrameFailed reports a failed freeze-frame capture.
type FrameFailed struct {
	Gen     uint64
	Message string
}

// CropAdjusted is a raw rectangle from the cropping widget.
type CropAdjusted struct{ Rect crop.Rect }

// CropChanged is a region settled by the selector.
type CropChanged struct{ Region crop.Region }

// CropRejected reports an adjustment the selector refused.
type CropRejected struct{ Message string }

// SubmitRequested is a form submission.
type SubmitRequested struct {
	SubmissionID string
	Options      form.Options
}

// SubmitAccepted reports a task ID for generation Gen.
type SubmitAccepted struct {
	Gen    uint64
	TaskID string
}

// SubmitFailed reports a failed submission for generation Gen.
type SubmitFailed struct {
	Gen     uint64
	Message string
}

// PollReported delivers one status response for generation Gen.
type PollReported struct {
	Gen      uint64
	Response gifapi.StatusResponse
}

// PollFailed reports a status check that produced no usable response.
type PollFailed struct{ Gen uint64 }

// HistoryLoaded delivers the persisted history as of sequence Seq.
type HistoryLoaded struct {
	Seq     uint64
	Entries []history.Entry
}

// HistoryCleared is the user clearing history.
type HistoryCleared struct{}

func (FileSelected) isEvent()    {}
func (FilesDropped) isEvent()    {}
func (URLEntered) isEvent()      {}
func (MediaLoaded) isEvent()     {}
func (MediaFailed) isEvent()     {}
func (CropStarted) isEvent()     {}
func (FrameCaptured) isEvent()   {}
func (FrameFailed) isEvent()     {}
func (CropAdjusted) isEvent()    {}
func (CropChanged) isEvent()     {}
func (CropRejected) isEvent()    {}
func (SubmitRequested) isEvent() {}
func (SubmitAccepted) isEvent()  {}
func (SubmitFailed) isEvent()    {}
func (PollReported) isEvent()    {}
func (PollFailed) isEvent()      {}
func (HistoryLoaded) isEvent()   {}
func (HistoryCleared) isEvent()  {}

// Effect is work Reduce asks the coordinator to perform.
type Effect interface{ isEffect() }

// OpenFile validates and probes a local file.
type OpenFile struct {
	Gen  uint64
	Path string
}

// OpenDrop validates and probes the first dropped file.
type OpenDrop struct {
	Gen   uint64
	Paths []string
}

// ResolveURL resolves a remote URL through the backend.
type ResolveURL struct {
	Gen uint64
	URL string
}

// ResetCrop unbinds the selector.
type ResetCrop struct{}

// CaptureFrame extracts a freeze-frame from the current media.
type CaptureFrame struct {
	Gen       uint64
	Location  string
	AtSeconds float64
}

// LoadFrame binds a captured frame to the selector.
type LoadFrame struct{ Frame crop.Frame }

// AdjustCrop forwards a widget rectangle to the selector.
type AdjustCrop struct{ Rect crop.Rect }

// CancelSubmission aborts the in-flight request and stops the poller.
type CancelSubmission struct{}

// Submit sends a conversion request.
type Submit struct {
	Gen        uint64
	Submission gifapi.Submission
}

// StartPolling begins polling a task.
type StartPolling struct {
	Gen    uint64
	TaskID string
}

// StopPolling stops the poller.
type StopPolling struct{}

// RecordHistory persists a finished conversion.
type RecordHistory struct{ Entry history.Entry }

// ClearHistory deletes the persisted history.
type ClearHistory struct{}

func (OpenFile) isEffect()         {}
func (OpenDrop) isEffect()         {}
func (ResolveURL) isEffect()       {}
func (ResetCrop) isEffect()        {}
func (CaptureFrame) isEffect()     {}
func (LoadFrame) isEffect()        {}
func (AdjustCrop) isEffect()       {}
func (CancelSubmission) isEffect() {}
func (Submit) isEffect()           {}
func (StartPolling) isEffect()     {}
func (StopPolling) isEffect()      {}
func (RecordHistory) isEffect()    {}
func (ClearHistory) isEffect()     {}

// Reduce applies ev to m and returns the next model and the effects to run.
func Reduce(m Model, ev Event) (Model, []Effect) {
	switch e := ev.(type) {
	case FileSelected:
		m = switchMedia(m)
		m.Loading = true
		return m, []Effect{ResetCrop{}, OpenFile{Gen: m.MediaGen, Path: e.Path}}

	case FilesDropped:
		m = switchMedia(m)
		m.Loading = true
		return m, []Effect{ResetCrop{}, OpenDrop{Gen: m.MediaGen, Paths: e.Paths}}

	case URLEntered:
		m = switchMedia(m)
		m.Resolving = true
		return m, []Effect{ResetCrop{}, ResolveURL{Gen: m.MediaGen, URL: e.URL}}

	case MediaLoaded:
		if e.Gen != m.MediaGen {
			return m, nil
		}
		media := e.Media
		m.Media = &media
		m.Loading = false
		m.Resolving = false
		return m, nil

	case MediaFailed:
		if e.Gen != m.MediaGen {
			return m, nil
		}
		m.URLFailed = m.Resolving
		m.Loading = false
		m.Resolving = false
		m.Error = e.Message
		return m, nil

	case CropStarted:
		if m.Media == nil || m.Resolving {
			m.Error = MsgNoMedia
			return m, nil
		}
		m.Error = ""
		m.Capturing = true
		return m, []Effect{CaptureFrame{Gen: m.MediaGen, Location: m.Media.Location, AtSeconds: e.AtSeconds}}

	case FrameCaptured:
		if e.Gen != m.MediaGen || !m.Capturing {
			return m, nil
		}
		m.Capturing = false
		m.FrameW = e.Frame.Width()
		m.FrameH = e.Frame.Height()
		return m, []Effect{LoadFrame{Frame: e.Frame}}

	case FrameFailed:
		if e.Gen != m.MediaGen {
			return m, nil
		}
		m.Capturing = false
		m.Error = e.Message
		return m, nil

	case CropAdjusted:
		if m.FrameW == 0 {
			m.Error = MsgCropNotStarted
			return m, nil
		}
		return m, []Effect{AdjustCrop{Rect: e.Rect}}

	case CropChanged:
		if m.FrameW == 0 {
			return m, nil
		}
		r := e.Region
		m.Crop = &r
		return m, nil

	case CropRejected:
		m.Error = e.Message
		return m, nil

	case SubmitRequested:
		return submit(m, e)

	case SubmitAccepted:
		if e.Gen != m.Generation || m.State != StateSubmitting {
			return m, nil
		}
		j, err := job.New(e.TaskID, m.SubmissionID)
		if err != nil {
			return fail(m, MsgUploadFailed), nil
		}
		m.Job = &j
		m.State = StateConverting
		return m, []Effect{StartPolling{Gen: m.Generation, TaskID: e.TaskID}}

	case SubmitFailed:
		if e.Gen != m.Generation || m.State != StateSubmitting {
			return m, nil
		}
		return fail(m, e.Message), nil

	case PollReported:
		if e.Gen != m.Generation || m.State != StateConverting {
			return m, nil
		}
		return pollReported(m, e.Response)

	case PollFailed:
		if e.Gen != m.Generation || m.State != StateConverting {
			return m, nil
		}
		m = failJob(m, MsgStatusCheckFailed)
		return m, []Effect{StopPolling{}}

	case HistoryLoaded:
		if e.Seq < m.HistorySeq {
			return m, nil
		}
		m.HistorySeq = e.Seq
		m.History = append([]history.Entry(nil), e.Entries...)
		return m, nil

	case HistoryCleared:
		m.History = nil
		return m, []Effect{ClearHistory{}}
	}
	return m, nil
}

// switchMedia invalidates everything derived from the previous media.
func switchMedia(m Model) Model {
	m.MediaGen++
	m.Media = nil
	m.Loading = false
	m.Resolving = false
	m.URLFailed = false
	m.Capturing = false
	m.FrameW, m.FrameH = 0, 0
	m.Crop = nil
	m.Result = nil
	m.Error = ""
	return m
}

func submit(m Model, e SubmitRequested) (Model, []Effect) {
	if m.URLFailed {
		// Submission stays blocked and the resolver's error stays visible.
		return m, nil
	}
	m.Error = ""
	switch {
	case m.Resolving:
		m.Error = MsgResolvePending
		return m, nil
	case m.Media == nil:
		m.Error = MsgNoMedia
		return m, nil
	}

	opts := e.Options
	opts.Crop = nil
	if m.Crop != nil {
		r := *m.Crop
		if err := r.Validate(m.FrameW, m.FrameH); err != nil {
			m.Error = err.Error()
			return m, nil
		}
		opts.Crop = &r
	}
	if err := opts.Validate(); err != nil {
		m.Error = err.Error()
		return m, nil
	}

	var effects []Effect
	if m.State.Busy() {
		effects = append(effects, CancelSubmission{})
	}

	sub := gifapi.Submission{Fields: opts.Fields()}
	if m.Media.Source.Kind() == intake.KindFile {
		sub.VideoPath = m.Media.Source.Path()
	} else {
		sub.PreviewURL = m.Media.Source.PreviewURL()
	}

	m.Generation++
	m.SubmissionID = e.SubmissionID
	m.State = StateSubmitting
	m.Job = nil
	m.Result = nil
	m.Progress = MsgUploadingVideo
	effects = append(effects, Submit{Gen: m.Generation, Submission: sub})
	return m, effects
}

func pollReported(m Model, resp gifapi.StatusResponse) (Model, []Effect) {
	switch {
	case resp.Succeeded():
		name, err := job.AssetName(resp.GIFURL)
		if err != nil {
			return failJob(m, MsgStatusCheckFailed), []Effect{StopPolling{}}
		}
		j := *m.Job
		if err := j.Succeed(resp.GIFURL, resp.Width, resp.Height); err != nil {
			return failJob(m, MsgStatusCheckFailed), []Effect{StopPolling{}}
		}
		m.Job = &j
		m.State = StateSucceeded
		m.Progress = ""
		m.Result = &Result{
			URL:          resp.GIFURL,
			AssetName:    name,
			DownloadPath: job.DownloadPath(name),
			Width:        resp.Width,
			Height:       resp.Height,
		}
		entry := history.Entry{URL: resp.GIFURL, Width: resp.Width, Height: resp.Height}
		return m, []Effect{StopPolling{}, RecordHistory{Entry: entry}}

	case resp.Failed():
		msg := resp.Error
		if msg == "" {
			msg = MsgBackgroundFailure
		}
		return failJob(m, msg), []Effect{StopPolling{}}

	default:
		label := resp.Status
		if label == "" {
			label = MsgProcessing
		}
		j := *m.Job
		_ = j.Progress(label)
		m.Job = &j
		m.Progress = label
		return m, nil
	}
}

// fail ends a submission that never produced a job.
func fail(m Model, msg string) Model {
	m.State = StateFailed
	m.Progress = ""
	m.Error = msg
	return m
}

// failJob ends a submission and records the failure on its job.
func failJob(m Model, msg string) Model {
	if m.Job != nil {
		j := *m.Job
		_ = j.Fail(msg)
		m.Job = &j
	}
	return fail(m, msg)
}

// SubmitMessage maps a submission error to its user-facing text.
func SubmitMessage(err error) string {
	if msg := gifapi.ServerMessage(err); msg != "" {
		return msg
	}
	if errors.Is(err, gifapi.ErrNetwork) {
		return MsgNetworkError
	}
	return MsgUploadFailed
}

// MediaMessage maps an intake error to its user-facing text.
func MediaMessage(err error) string {
	if msg := gifapi.ServerMessage(err); msg != "" {
		return msg
	}
	switch {
	case errors.Is(err, intake.ErrNoFile):
		return "No file selected."
	case errors.Is(err, intake.ErrUnsupportedType):
		return "File type not allowed."
	case errors.Is(err, intake.ErrTooLarge):
		return "The file is too large to upload."
	case errors.Is(err, intake.ErrNotRegular):
		return "That is not a video file."
	case errors.Is(err, intake.ErrUnreadable):
		return "The file could not be read as a video."
	case errors.Is(err, intake.ErrURLRequired), errors.Is(err, intake.ErrInvalidURL):
		return "Enter a valid http or https video URL."
	}
	return MsgResolveFailed
}

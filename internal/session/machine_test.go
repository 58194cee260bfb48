package session

import (
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/vid2gif/internal/crop"
	"github.com/maauso/vid2gif/internal/form"
	"github.com/maauso/vid2gif/internal/gifapi"
	"github.com/maauso/vid2gif/internal/history"
	"github.com/maauso/vid2gif/internal/intake"
	"github.com/maauso/vid2gif/internal/media"
)

func fileMedia(path string) intake.Media {
	return intake.Media{
		Source:     intake.FileSource(path),
		Name:       "clip.mp4",
		Location:   path,
		Info:       media.Info{Duration: 3.7, Width: 640, Height: 360},
		Probed:     true,
		TrimEnd:    3,
		HasTrimEnd: true,
	}
}

func testFrame(t *testing.T, w, h int) crop.Frame {
	t.Helper()
	return crop.Frame{Image: imaging.New(w, h, color.Black)}
}

// withMedia returns a model with a loaded file.
func withMedia(t *testing.T) Model {
	t.Helper()
	m, effects := Reduce(Model{}, FileSelected{Path: "/v/clip.mp4"})
	require.Len(t, effects, 2)
	m, _ = Reduce(m, MediaLoaded{Gen: m.MediaGen, Media: fileMedia("/v/clip.mp4")})
	require.NotNil(t, m.Media)
	return m
}

// converting returns a model polling task "abc".
func converting(t *testing.T) Model {
	t.Helper()
	m, _ := Reduce(withMedia(t), SubmitRequested{SubmissionID: "sub-1", Options: form.DefaultOptions()})
	m, effects := Reduce(m, SubmitAccepted{Gen: m.Generation, TaskID: "abc"})
	require.Equal(t, StateConverting, m.State)
	require.Equal(t, []Effect{StartPolling{Gen: m.Generation, TaskID: "abc"}}, effects)
	return m
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "IDLE", StateIdle.String())
	assert.Equal(t, "SUBMITTING", StateSubmitting.String())
	assert.Equal(t, "CONVERTING", StateConverting.String())
	assert.Equal(t, "SUCCEEDED", StateSucceeded.String())
	assert.Equal(t, "FAILED", StateFailed.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
	assert.True(t, StateSubmitting.Busy())
	assert.False(t, StateFailed.Busy())
}

func TestReduce_SubmitWithoutMedia(t *testing.T) {
	m, effects := Reduce(Model{}, SubmitRequested{Options: form.DefaultOptions()})

	assert.Empty(t, effects, "no network call without media")
	assert.Equal(t, StateIdle, m.State)
	assert.Equal(t, MsgNoMedia, m.Error)
	assert.Zero(t, m.Generation)
}

func TestReduce_SubmitWhileResolving(t *testing.T) {
	m, effects := Reduce(Model{}, URLEntered{URL: "http://ex.com/v.mp4"})
	require.Equal(t, []Effect{ResetCrop{}, ResolveURL{Gen: 1, URL: "http://ex.com/v.mp4"}}, effects)
	assert.False(t, m.View().SubmitEnabled)

	m, effects = Reduce(m, SubmitRequested{Options: form.DefaultOptions()})
	assert.Empty(t, effects)
	assert.Equal(t, MsgResolvePending, m.Error)
}

func TestReduce_ResolveFailureBlocksSubmit(t *testing.T) {
	m, _ := Reduce(Model{}, URLEntered{URL: "http://ex.com/v.mp4"})
	m, _ = Reduce(m, MediaFailed{Gen: m.MediaGen, Message: "unreachable"})

	v := m.View()
	assert.False(t, v.SubmitEnabled)
	assert.Equal(t, "unreachable", v.Error)

	m, effects := Reduce(m, SubmitRequested{Options: form.DefaultOptions()})
	assert.Empty(t, effects)
	assert.Equal(t, "unreachable", m.Error)

	// Choosing new media unblocks.
	m, _ = Reduce(m, FileSelected{Path: "/v/clip.mp4"})
	assert.True(t, m.View().SubmitEnabled)
	assert.Empty(t, m.Error)
}

func TestReduce_ResolvedURLSubmitsPreview(t *testing.T) {
	m, _ := Reduce(Model{}, URLEntered{URL: "http://ex.com/v.mp4"})
	m, _ = Reduce(m, MediaLoaded{Gen: m.MediaGen, Media: intake.Media{
		Source:   intake.URLSource("/static/previews/v.mp4"),
		Location: "http://localhost:5000/static/previews/v.mp4",
	}})

	m, effects := Reduce(m, SubmitRequested{SubmissionID: "sub-2", Options: form.DefaultOptions()})
	require.Len(t, effects, 1)
	sub := effects[0].(Submit).Submission
	assert.Equal(t, "/static/previews/v.mp4", sub.PreviewURL)
	assert.Empty(t, sub.VideoPath)
	assert.Equal(t, StateSubmitting, m.State)
}

func TestReduce_StaleMediaDropped(t *testing.T) {
	m, _ := Reduce(Model{}, FileSelected{Path: "/v/a.mp4"})
	stale := m.MediaGen
	m, _ = Reduce(m, FileSelected{Path: "/v/b.mp4"})

	m, _ = Reduce(m, MediaLoaded{Gen: stale, Media: fileMedia("/v/a.mp4")})
	assert.Nil(t, m.Media)
	assert.True(t, m.Loading)

	m, _ = Reduce(m, MediaLoaded{Gen: m.MediaGen, Media: fileMedia("/v/b.mp4")})
	require.NotNil(t, m.Media)
	assert.Equal(t, "/v/b.mp4", m.Media.Source.Path())
	assert.True(t, m.View().PreviewReady)
}

func TestReduce_SubmitFile(t *testing.T) {
	m, effects := Reduce(withMedia(t), SubmitRequested{SubmissionID: "sub-1", Options: form.DefaultOptions()})

	require.Len(t, effects, 1)
	sub, ok := effects[0].(Submit)
	require.True(t, ok)
	assert.Equal(t, m.Generation, sub.Gen)
	assert.Equal(t, "/v/clip.mp4", sub.Submission.VideoPath)
	assert.Empty(t, sub.Submission.PreviewURL)

	v := m.View()
	assert.Equal(t, "SUBMITTING", v.State)
	assert.False(t, v.SubmitEnabled)
	assert.Equal(t, LabelUploading, v.SubmitLabel)
	assert.True(t, v.ProgressVisible)
	assert.Equal(t, MsgUploadingVideo, v.Progress)
	assert.Equal(t, "sub-1", v.SubmissionID)
}

func TestReduce_SubmitInvalidOptions(t *testing.T) {
	opts := form.DefaultOptions()
	opts.FPS = 0
	m, effects := Reduce(withMedia(t), SubmitRequested{Options: opts})

	assert.Empty(t, effects)
	assert.Equal(t, StateIdle, m.State)
	assert.Contains(t, m.Error, "FPS")
}

func TestReduce_SubmitFailures(t *testing.T) {
	m, _ := Reduce(withMedia(t), SubmitRequested{Options: form.DefaultOptions()})

	failed, effects := Reduce(m, SubmitFailed{Gen: m.Generation, Message: MsgUploadFailed})
	assert.Empty(t, effects)
	v := failed.View()
	assert.Equal(t, "FAILED", v.State)
	assert.Equal(t, MsgUploadFailed, v.Error)
	assert.True(t, v.SubmitEnabled)
	assert.Equal(t, LabelSubmit, v.SubmitLabel)
	assert.False(t, v.ProgressVisible)

	// Results for an older generation are ignored.
	same, _ := Reduce(m, SubmitFailed{Gen: m.Generation - 1, Message: "old"})
	assert.Equal(t, StateSubmitting, same.State)
}

func TestReduce_AmbiguousPollStaysConverting(t *testing.T) {
	m := converting(t)

	for _, resp := range []gifapi.StatusResponse{
		{State: "PENDING", Status: "Pending..."},
		{Status: "Processing"},
		{},
		{State: "PROGRESS", GIFURL: "https://store/x/early.gif"},
	} {
		var effects []Effect
		m, effects = Reduce(m, PollReported{Gen: m.Generation, Response: resp})
		assert.Empty(t, effects)
		assert.Equal(t, StateConverting, m.State)
		if resp.Status != "" {
			assert.Equal(t, resp.Status, m.View().Progress)
		} else {
			assert.Equal(t, MsgProcessing, m.View().Progress)
		}
	}

	v := m.View()
	assert.Equal(t, LabelConverting, v.SubmitLabel)
	assert.Equal(t, "abc", v.TaskID)
	assert.Nil(t, v.Result)
}

func TestReduce_PollSuccess(t *testing.T) {
	m := converting(t)
	m, effects := Reduce(m, PollReported{Gen: m.Generation, Response: gifapi.StatusResponse{
		Status: "SUCCESS",
		GIFURL: "https://store/x/out123.gif",
		Width:  480,
		Height: 270,
	}})

	assert.Equal(t, []Effect{
		StopPolling{},
		RecordHistory{Entry: history.Entry{URL: "https://store/x/out123.gif", Width: 480, Height: 270}},
	}, effects)

	v := m.View()
	assert.Equal(t, "SUCCEEDED", v.State)
	require.NotNil(t, v.Result)
	assert.Equal(t, "out123.gif", v.Result.AssetName)
	assert.Equal(t, "/download_gif/out123.gif", v.Result.DownloadPath)
	assert.Equal(t, 480, v.Result.Width)
	assert.True(t, v.SubmitEnabled)
	assert.True(t, m.Job.IsTerminal())
}

func TestReduce_PollSuccessWithoutAssetName(t *testing.T) {
	m := converting(t)
	m, effects := Reduce(m, PollReported{Gen: m.Generation, Response: gifapi.StatusResponse{Status: "SUCCESS"}})

	assert.Equal(t, []Effect{StopPolling{}}, effects)
	assert.Equal(t, StateFailed, m.State)
	assert.Equal(t, MsgStatusCheckFailed, m.Error)
}

func TestReduce_PollFailureMarkers(t *testing.T) {
	tests := []struct {
		name string
		resp gifapi.StatusResponse
		want string
	}{
		{"state failure with error", gifapi.StatusResponse{State: "FAILURE", Status: "Task failed", Error: "boom"}, "boom"},
		{"state failure without error", gifapi.StatusResponse{State: "FAILURE"}, MsgBackgroundFailure},
		{"status failure", gifapi.StatusResponse{Status: "FAILURE", Error: "Video too short"}, "Video too short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := converting(t)
			m, effects := Reduce(m, PollReported{Gen: m.Generation, Response: tt.resp})
			assert.Equal(t, []Effect{StopPolling{}}, effects)
			assert.Equal(t, StateFailed, m.State)
			assert.Equal(t, tt.want, m.Error)
			assert.Equal(t, tt.want, m.Job.Error)
		})
	}
}

func TestReduce_PollNetworkFailure(t *testing.T) {
	m := converting(t)
	m, effects := Reduce(m, PollFailed{Gen: m.Generation})

	assert.Equal(t, []Effect{StopPolling{}}, effects)
	assert.Equal(t, StateFailed, m.State)
	assert.Equal(t, MsgStatusCheckFailed, m.Error)
}

func TestReduce_ResubmitCancelsAndDropsStale(t *testing.T) {
	m := converting(t)
	oldGen := m.Generation

	m, effects := Reduce(m, SubmitRequested{SubmissionID: "sub-2", Options: form.DefaultOptions()})
	require.Len(t, effects, 2)
	assert.Equal(t, CancelSubmission{}, effects[0])
	assert.IsType(t, Submit{}, effects[1])
	assert.Equal(t, oldGen+1, m.Generation)
	assert.Nil(t, m.Job)

	// A late response for the first job changes nothing.
	late := gifapi.StatusResponse{Status: "SUCCESS", GIFURL: "https://store/x/old.gif", Width: 1, Height: 1}
	after, effects := Reduce(m, PollReported{Gen: oldGen, Response: late})
	assert.Empty(t, effects)
	assert.Equal(t, m, after)

	after, effects = Reduce(m, SubmitAccepted{Gen: oldGen, TaskID: "old"})
	assert.Empty(t, effects)
	assert.Equal(t, m, after)
}

func TestReduce_PollIgnoredOutsideConverting(t *testing.T) {
	m, _ := Reduce(withMedia(t), SubmitRequested{Options: form.DefaultOptions()})
	after, effects := Reduce(m, PollReported{Gen: m.Generation, Response: gifapi.StatusResponse{Status: "SUCCESS"}})
	assert.Empty(t, effects)
	assert.Equal(t, StateSubmitting, after.State)
}

func TestReduce_CropFlow(t *testing.T) {
	m := withMedia(t)

	m, effects := Reduce(m, CropAdjusted{Rect: crop.Rect{Width: 10, Height: 10}})
	assert.Empty(t, effects)
	assert.Equal(t, MsgCropNotStarted, m.Error)

	m, effects = Reduce(m, CropStarted{AtSeconds: 1.5})
	assert.Equal(t, []Effect{CaptureFrame{Gen: m.MediaGen, Location: "/v/clip.mp4", AtSeconds: 1.5}}, effects)
	assert.True(t, m.View().Capturing)

	frame := testFrame(t, 640, 360)
	m, effects = Reduce(m, FrameCaptured{Gen: m.MediaGen, Frame: frame})
	require.Len(t, effects, 1)
	assert.IsType(t, LoadFrame{}, effects[0])
	assert.True(t, m.View().CropActive)

	m, _ = Reduce(m, CropChanged{Region: crop.Region{X: 64, Y: 36, Width: 512, Height: 288}})
	_, effects = Reduce(m, CropAdjusted{Rect: crop.Rect{X: 1, Y: 1, Width: 5, Height: 5}})
	assert.Equal(t, []Effect{AdjustCrop{Rect: crop.Rect{X: 1, Y: 1, Width: 5, Height: 5}}}, effects)

	m, effects = Reduce(m, SubmitRequested{Options: form.DefaultOptions()})
	require.Len(t, effects, 1)
	fields := map[string]string{}
	for _, f := range effects[0].(Submit).Submission.Fields {
		fields[f.Name] = f.Value
	}
	assert.Equal(t, "512", fields["crop_width"])
	assert.Equal(t, "64", fields["crop_x"])
	assert.Equal(t, StateSubmitting, m.State)
}

func TestReduce_CropStartWithoutMedia(t *testing.T) {
	m, effects := Reduce(Model{}, CropStarted{})
	assert.Empty(t, effects)
	assert.Equal(t, MsgNoMedia, m.Error)
}

func TestReduce_SwitchMediaResetsCrop(t *testing.T) {
	m := withMedia(t)
	m, _ = Reduce(m, CropStarted{})
	m, _ = Reduce(m, FrameCaptured{Gen: m.MediaGen, Frame: testFrame(t, 100, 100)})
	m, _ = Reduce(m, CropChanged{Region: crop.Region{X: 10, Y: 10, Width: 80, Height: 80}})
	m.Result = &Result{URL: "x"}
	m.Error = "old error"

	m, effects := Reduce(m, FilesDropped{Paths: []string{"/v/other.mp4"}})
	assert.Equal(t, []Effect{ResetCrop{}, OpenDrop{Gen: m.MediaGen, Paths: []string{"/v/other.mp4"}}}, effects)
	assert.Nil(t, m.Crop)
	assert.Nil(t, m.Result)
	assert.Empty(t, m.Error)
	assert.False(t, m.View().CropActive)

	// A frame for the previous media is dropped.
	m, effects = Reduce(m, FrameCaptured{Gen: m.MediaGen - 1, Frame: testFrame(t, 100, 100)})
	assert.Empty(t, effects)
	assert.Zero(t, m.FrameW)
}

func TestReduce_History(t *testing.T) {
	entries := []history.Entry{{URL: "b"}, {URL: "a"}}
	m, _ := Reduce(Model{}, HistoryLoaded{Seq: 2, Entries: entries})
	assert.Equal(t, entries, m.View().History)

	m, _ = Reduce(m, HistoryLoaded{Seq: 1, Entries: nil})
	assert.Len(t, m.History, 2, "older snapshot ignored")

	m, effects := Reduce(m, HistoryCleared{})
	assert.Equal(t, []Effect{ClearHistory{}}, effects)
	assert.Empty(t, m.View().History)
	assert.NotNil(t, m.View().History)
}

func TestSubmitMessage(t *testing.T) {
	assert.Equal(t, "queue full", SubmitMessage(&gifapi.APIError{StatusCode: 503, Message: "queue full"}))
	assert.Equal(t, MsgUploadFailed, SubmitMessage(&gifapi.APIError{StatusCode: 400}))
	assert.Equal(t, MsgUploadFailed, SubmitMessage(gifapi.ErrNoTaskIDReturned))
	assert.Equal(t, MsgNetworkError, SubmitMessage(gifapi.ErrNetwork))
}

func TestMediaMessage(t *testing.T) {
	assert.Equal(t, "unreachable", MediaMessage(&gifapi.APIError{StatusCode: 400, Message: "unreachable"}))
	assert.Equal(t, MsgResolveFailed, MediaMessage(gifapi.ErrNetwork))
	assert.Equal(t, "File type not allowed.", MediaMessage(intake.ErrUnsupportedType))
	assert.Equal(t, "Enter a valid http or https video URL.", MediaMessage(intake.ErrInvalidURL))
}

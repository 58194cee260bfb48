package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/vid2gif/internal/crop"
	"github.com/maauso/vid2gif/internal/history"
	"github.com/maauso/vid2gif/internal/session"
)

// fakeBackend serves /convert, /status and /download_gif like the
// conversion service.
type fakeBackend struct {
	mu       sync.Mutex
	fields   map[string]string
	hadFile  bool
	polls    int
	failWith string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/convert":
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, `{"error":"bad form"}`, http.StatusBadRequest)
			return
		}
		b.fields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			b.fields[k] = v[0]
		}
		_, b.hadFile = r.MultipartForm.File["video"]
		_ = json.NewEncoder(w).Encode(map[string]string{"task_id": "abc"})

	case r.Method == http.MethodGet && r.URL.Path == "/status/abc":
		b.polls++
		switch {
		case b.polls < 2:
			_ = json.NewEncoder(w).Encode(map[string]any{"state": "PROGRESS", "status": "Processing"})
		case b.failWith != "":
			_ = json.NewEncoder(w).Encode(map[string]any{"state": "FAILURE", "status": "Task failed", "error": b.failWith})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "SUCCESS", "gif_url": "https://store/x/out123.gif", "width": 480, "height": 270,
			})
		}

	case r.Method == http.MethodGet && r.URL.Path == "/download_gif/out123.gif":
		_, _ = w.Write([]byte("GIF89a"))

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	}
}

// testEnv points the configuration at backend and a scratch directory.
func testEnv(t *testing.T, backend http.Handler) string {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("GIF_API_URL", srv.URL)
	t.Setenv("POLL_INTERVAL", "10ms")
	t.Setenv("HTTP_MAX_RETRIES", "0")
	t.Setenv("HTTP_RATE_LIMIT", "0")
	t.Setenv("HISTORY_BACKEND", "local")
	t.Setenv("HISTORY_DIR", filepath.Join(dir, "history"))
	t.Setenv("HISTORY_KEY", "gifHistory")
	t.Setenv("TEMP_DIR", filepath.Join(dir, "tmp"))
	t.Setenv("FFMPEG_PATH", filepath.Join(dir, "no-ffmpeg"))
	t.Setenv("FFPROBE_PATH", filepath.Join(dir, "no-ffprobe"))
	t.Setenv("MAX_UPLOAD_MB", "1")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeVideo(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("not really a video"), 0600))
	return path
}

func TestConvert_EndToEnd(t *testing.T) {
	backend := &fakeBackend{}
	dir := testEnv(t, backend)
	video := writeVideo(t, dir)
	output := filepath.Join(dir, "out.gif")

	out, err := execute(t, "convert", video, "--fps", "12", "--no-background", "-o", output)
	require.NoError(t, err)

	assert.Contains(t, out, "https://store/x/out123.gif (480x270)")
	assert.Contains(t, out, "download: /download_gif/out123.gif")
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "GIF89a", string(data))

	backend.mu.Lock()
	assert.True(t, backend.hadFile)
	assert.Equal(t, "12", backend.fields["fps"])
	assert.Equal(t, "true", backend.fields["no_background"])
	assert.NotContains(t, backend.fields, "bg_color")
	backend.mu.Unlock()

	out, err = execute(t, "history", "list", "--json")
	require.NoError(t, err)
	var entries []history.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, history.Entry{URL: "https://store/x/out123.gif", Width: 480, Height: 270}, entries[0])

	out, err = execute(t, "history", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "History cleared.")

	out, err = execute(t, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No conversions yet.")
}

func TestConvert_JSONView(t *testing.T) {
	dir := testEnv(t, &fakeBackend{})
	video := writeVideo(t, dir)

	out, err := execute(t, "convert", video, "--json")
	require.NoError(t, err)

	var v session.View
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "SUCCEEDED", v.State)
	require.NotNil(t, v.Result)
	assert.Equal(t, "out123.gif", v.Result.AssetName)
	assert.Equal(t, "abc", v.TaskID)
}

func TestConvert_BackgroundFailure(t *testing.T) {
	dir := testEnv(t, &fakeBackend{failWith: "Video too short"})
	video := writeVideo(t, dir)

	_, err := execute(t, "convert", video)
	require.Error(t, err)
	assert.Equal(t, "Video too short", err.Error())

	out, err := execute(t, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No conversions yet.")
}

func TestConvert_RejectsInvalidFlags(t *testing.T) {
	backend := &fakeBackend{}
	dir := testEnv(t, backend)
	video := writeVideo(t, dir)

	_, err := execute(t, "convert", video, "--fps", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FPS")

	_, err = execute(t, "convert", video, "--bg-color", "blue")
	require.Error(t, err)

	_, err = execute(t, "convert", video, "--crop", "1,2,3")
	require.Error(t, err)

	backend.mu.Lock()
	assert.Nil(t, backend.fields, "no submission reached the backend")
	backend.mu.Unlock()
}

func TestConvert_UnsupportedFile(t *testing.T) {
	dir := testEnv(t, &fakeBackend{})
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	_, err := execute(t, "convert", path)
	require.Error(t, err)
	assert.Equal(t, "File type not allowed.", err.Error())
}

func TestConvert_CropNeedsMediaTools(t *testing.T) {
	dir := testEnv(t, &fakeBackend{})
	video := writeVideo(t, dir)

	_, err := execute(t, "convert", video, "--crop", "0,0,10,10")
	require.Error(t, err)
	assert.Equal(t, "Frame capture is not available.", err.Error())
}

func TestFrame_NeedsMediaTools(t *testing.T) {
	dir := testEnv(t, &fakeBackend{})
	video := writeVideo(t, dir)

	_, err := execute(t, "frame", video)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffmpeg")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "gifctl dev")
}

func TestParseRect(t *testing.T) {
	r, err := parseRect("10, 20.5,100,50")
	require.NoError(t, err)
	assert.Equal(t, crop.Rect{X: 10, Y: 20.5, Width: 100, Height: 50}, r)

	_, err = parseRect("a,b,c,d")
	assert.Error(t, err)
	_, err = parseRect("")
	assert.Error(t, err)
}

func TestIsRemote(t *testing.T) {
	assert.True(t, isRemote("https://ex.com/v.mp4"))
	assert.True(t, isRemote("HTTP://ex.com/v.mp4"))
	assert.False(t, isRemote("/videos/clip.mp4"))
	assert.False(t, isRemote("ftp://ex.com/v.mp4"))
}

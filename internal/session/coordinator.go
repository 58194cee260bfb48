package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maauso/vid2gif/internal/crop"
	"github.com/maauso/vid2gif/internal/form"
	"github.com/maauso/vid2gif/internal/gifapi"
	"github.com/maauso/vid2gif/internal/history"
	"github.com/maauso/vid2gif/internal/intake"
	"github.com/maauso/vid2gif/internal/job/id"
)

// DefaultPollInterval is the fixed delay between status checks.
const DefaultPollInterval = 2500 * time.Millisecond

var (
	// ErrStopped is returned when the coordinator loop is not running.
	ErrStopped = errors.New("session: coordinator stopped")
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("session: coordinator already running")
)

// Backend submits conversions and reports their status.
type Backend interface {
	Submit(ctx context.Context, sub gifapi.Submission) (taskID string, err error)
	Poll(ctx context.Context, taskID string) (gifapi.StatusResponse, error)
}

// Intake turns user media choices into Media.
type Intake interface {
	OpenFile(ctx context.Context, path string) (intake.Media, error)
	OpenDrop(ctx context.Context, paths []string) (intake.Media, error)
	ResolveURL(ctx context.Context, raw string) (intake.Media, error)
}

// FrameSource captures freeze-frames.
type FrameSource interface {
	ExtractFrame(ctx context.Context, src string, atSeconds float64) ([]byte, error)
}

// HistoryStore persists finished conversions.
type HistoryStore interface {
	Load(ctx context.Context) []history.Entry
	Record(ctx context.Context, e history.Entry) error
	Clear(ctx context.Context) error
}

type envelope struct {
	ev    Event
	reply chan View
}

// Coordinator runs the session event loop. All model changes happen on the
// goroutine running Run; async work reports back through events.
type Coordinator struct {
	backend  Backend
	intake   Intake
	frames   FrameSource
	history  HistoryStore
	interval time.Duration
	newID    func() string
	logger   *slog.Logger

	events  chan envelope
	done    chan struct{}
	running atomic.Bool

	mu      sync.RWMutex
	view    View
	subs    map[int]chan View
	nextSub int

	// Owned by the loop goroutine.
	model        Model
	pending      []Event
	selector     *crop.Selector
	loopCtx      context.Context
	submitCancel context.CancelFunc
	mediaCancel  context.CancelFunc
	frameCancel  context.CancelFunc
	poller       *Poller
	historySeq   uint64
	wg           sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithFrames enables freeze-frame capture for cropping.
func WithFrames(f FrameSource) Option {
	return func(c *Coordinator) { c.frames = f }
}

// WithHistory enables persisted history.
func WithHistory(h HistoryStore) Option {
	return func(c *Coordinator) { c.history = h }
}

// WithPollInterval overrides the status poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithIDGenerator overrides submission ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCoordinator creates a Coordinator. Call Run to start it.
func NewCoordinator(backend Backend, in Intake, opts ...Option) *Coordinator {
	c := &Coordinator{
		backend:  backend,
		intake:   in,
		interval: DefaultPollInterval,
		newID:    id.Generate,
		logger:   slog.Default(),
		events:   make(chan envelope, 64),
		done:     make(chan struct{}),
		subs:     make(map[int]chan View),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.selector = crop.NewSelector(func(r crop.Region) {
		c.pending = append(c.pending, CropChanged{Region: r})
	})
	c.view = c.model.View()
	return c
}

// Run processes events until ctx is cancelled. On return the poller and all
// in-flight work have stopped.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.loopCtx = loopCtx
	defer func() {
		cancel()
		c.poller.Stop()
		c.wg.Wait()
		close(c.done)
	}()

	c.logger.Info("session started", slog.Duration("poll_interval", c.interval))
	c.refreshHistory()

	for {
		select {
		case <-loopCtx.Done():
			c.logger.Info("session stopped")
			return nil
		case env := <-c.events:
			c.apply(env.ev)
			v := c.publish()
			if env.reply != nil {
				env.reply <- v
			}
		}
	}
}

// Do applies ev and returns the view right after it was reduced.
func (c *Coordinator) Do(ctx context.Context, ev Event) (View, error) {
	reply := make(chan View, 1)
	select {
	case c.events <- envelope{ev: ev, reply: reply}:
	case <-c.done:
		return View{}, ErrStopped
	case <-ctx.Done():
		return View{}, ctx.Err()
	}

	select {
	case v := <-reply:
		return v, nil
	case <-c.done:
		return View{}, ErrStopped
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// SelectFile starts intake of a picked file.
func (c *Coordinator) SelectFile(ctx context.Context, path string) (View, error) {
	return c.Do(ctx, FileSelected{Path: path})
}

// Drop starts intake of dropped files.
func (c *Coordinator) Drop(ctx context.Context, paths []string) (View, error) {
	return c.Do(ctx, FilesDropped{Paths: paths})
}

// EnterURL starts resolving a remote video URL.
func (c *Coordinator) EnterURL(ctx context.Context, rawURL string) (View, error) {
	return c.Do(ctx, URLEntered{URL: rawURL})
}

// StartCrop captures a freeze-frame at the given offset.
func (c *Coordinator) StartCrop(ctx context.Context, atSeconds float64) (View, error) {
	return c.Do(ctx, CropStarted{AtSeconds: atSeconds})
}

// AdjustCrop forwards a widget rectangle.
func (c *Coordinator) AdjustCrop(ctx context.Context, r crop.Rect) (View, error) {
	return c.Do(ctx, CropAdjusted{Rect: r})
}

// Submit submits the current media with opts.
func (c *Coordinator) Submit(ctx context.Context, opts form.Options) (View, error) {
	return c.Do(ctx, SubmitRequested{SubmissionID: c.newID(), Options: opts})
}

// ClearHistory clears the persisted history.
func (c *Coordinator) ClearHistory(ctx context.Context) (View, error) {
	return c.Do(ctx, HistoryCleared{})
}

// View returns the latest snapshot.
func (c *Coordinator) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view
}

// Frame returns the freeze-frame bound to the crop selector.
func (c *Coordinator) Frame() (crop.Frame, bool) {
	return c.selector.Frame()
}

// CropPreview renders the selected region as PNG.
func (c *Coordinator) CropPreview() ([]byte, error) {
	return c.selector.PreviewPNG()
}

// Subscribe returns a channel that always holds the newest view. The
// returned function unsubscribes and closes the channel.
func (c *Coordinator) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)

	c.mu.Lock()
	key := c.nextSub
	c.nextSub++
	c.subs[key] = ch
	ch <- c.view
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, key)
			close(ch)
			c.mu.Unlock()
		})
	}
}

// WaitFor blocks until a view satisfies pred.
func (c *Coordinator) WaitFor(ctx context.Context, pred func(View) bool) (View, error) {
	ch, unsubscribe := c.Subscribe()
	defer unsubscribe()

	for {
		select {
		case v := <-ch:
			if pred(v) {
				return v, nil
			}
		case <-c.done:
			return c.View(), ErrStopped
		case <-ctx.Done():
			return c.View(), ctx.Err()
		}
	}
}

func (c *Coordinator) apply(ev Event) {
	queue := []Event{ev}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		prev := c.model.State
		next, effects := Reduce(c.model, e)
		c.model = next

		if prev != next.State {
			attrs := []any{
				slog.String("from", prev.String()),
				slog.String("to", next.State.String()),
				slog.String("submission_id", next.SubmissionID),
			}
			if next.Job != nil {
				attrs = append(attrs, slog.String("task_id", next.Job.TaskID))
			}
			if next.Error != "" {
				attrs = append(attrs, slog.String("error", next.Error))
			}
			c.logger.Info("session state changed", attrs...)
		}

		for _, eff := range effects {
			c.execute(eff)
		}
		queue = append(queue, c.pending...)
		c.pending = nil
	}
}

func (c *Coordinator) publish() View {
	v := c.model.View()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = v
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
	return v
}

// post delivers an async result unless ctx was cancelled first.
func (c *Coordinator) post(ctx context.Context, ev Event) {
	select {
	case c.events <- envelope{ev: ev}:
	case <-ctx.Done():
	}
}

func (c *Coordinator) goAsync(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

func (c *Coordinator) execute(eff Effect) {
	switch e := eff.(type) {
	case OpenFile:
		c.startMedia(e.Gen, func(ctx context.Context) (intake.Media, error) {
			return c.intake.OpenFile(ctx, e.Path)
		})

	case OpenDrop:
		c.startMedia(e.Gen, func(ctx context.Context) (intake.Media, error) {
			return c.intake.OpenDrop(ctx, e.Paths)
		})

	case ResolveURL:
		c.startMedia(e.Gen, func(ctx context.Context) (intake.Media, error) {
			return c.intake.ResolveURL(ctx, e.URL)
		})

	case ResetCrop:
		if c.frameCancel != nil {
			c.frameCancel()
			c.frameCancel = nil
		}
		c.selector.Reset()

	case CaptureFrame:
		c.captureFrame(e)

	case LoadFrame:
		if _, err := c.selector.Load(e.Frame); err != nil {
			c.pending = append(c.pending, CropRejected{Message: err.Error()})
		}

	case AdjustCrop:
		if _, err := c.selector.Adjust(e.Rect); err != nil {
			c.pending = append(c.pending, CropRejected{Message: err.Error()})
		}

	case CancelSubmission:
		c.logger.Info("cancelling previous submission")
		c.cancelSubmit()
		c.poller.Stop()
		c.poller = nil

	case Submit:
		c.startSubmit(e)

	case StartPolling:
		c.cancelSubmit()
		c.poller.Stop()
		c.poller = StartPoller(c.loopCtx, c.interval, c.pollTick(e.Gen, e.TaskID))
		c.logger.Debug("polling started", slog.String("task_id", e.TaskID))

	case StopPolling:
		c.poller.Stop()
		c.poller = nil

	case RecordHistory:
		if c.history == nil {
			return
		}
		seq := c.bumpHistorySeq()
		ctx := c.loopCtx
		// Persisting outlives the loop so a result is never lost on shutdown.
		persist := context.WithoutCancel(ctx)
		c.goAsync(func() {
			if err := c.history.Record(persist, e.Entry); err != nil {
				c.logger.Warn("failed to record history", slog.String("error", err.Error()))
			}
			c.post(ctx, HistoryLoaded{Seq: seq, Entries: c.history.Load(persist)})
		})

	case ClearHistory:
		if c.history == nil {
			return
		}
		seq := c.bumpHistorySeq()
		ctx := c.loopCtx
		persist := context.WithoutCancel(ctx)
		c.goAsync(func() {
			if err := c.history.Clear(persist); err != nil {
				c.logger.Warn("failed to clear history", slog.String("error", err.Error()))
			}
			c.post(ctx, HistoryLoaded{Seq: seq, Entries: c.history.Load(persist)})
		})
	}
}

func (c *Coordinator) startMedia(gen uint64, open func(ctx context.Context) (intake.Media, error)) {
	if c.mediaCancel != nil {
		c.mediaCancel()
	}
	ctx, cancel := context.WithCancel(c.loopCtx)
	c.mediaCancel = cancel

	c.goAsync(func() {
		m, err := open(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Warn("media intake failed", slog.String("error", err.Error()))
			c.post(ctx, MediaFailed{Gen: gen, Message: MediaMessage(err)})
			return
		}
		c.post(ctx, MediaLoaded{Gen: gen, Media: m})
	})
}

func (c *Coordinator) captureFrame(e CaptureFrame) {
	if c.frames == nil {
		c.pending = append(c.pending, FrameFailed{Gen: e.Gen, Message: "Frame capture is not available."})
		return
	}
	if c.frameCancel != nil {
		c.frameCancel()
	}
	ctx, cancel := context.WithCancel(c.loopCtx)
	c.frameCancel = cancel

	c.goAsync(func() {
		data, err := c.frames.ExtractFrame(ctx, e.Location, e.AtSeconds)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Warn("frame capture failed", slog.String("error", err.Error()))
			c.post(ctx, FrameFailed{Gen: e.Gen, Message: "Could not capture a frame from the video."})
			return
		}
		frame, err := crop.DecodeFrame(data, e.AtSeconds)
		if err != nil {
			c.post(ctx, FrameFailed{Gen: e.Gen, Message: "Could not capture a frame from the video."})
			return
		}
		c.post(ctx, FrameCaptured{Gen: e.Gen, Frame: frame})
	})
}

func (c *Coordinator) startSubmit(e Submit) {
	c.cancelSubmit()
	ctx, cancel := context.WithCancel(c.loopCtx)
	c.submitCancel = cancel

	c.goAsync(func() {
		taskID, err := c.backend.Submit(ctx, e.Submission)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Warn("submission failed", slog.String("error", err.Error()))
			c.post(ctx, SubmitFailed{Gen: e.Gen, Message: SubmitMessage(err)})
			return
		}
		c.post(ctx, SubmitAccepted{Gen: e.Gen, TaskID: taskID})
	})
}

func (c *Coordinator) cancelSubmit() {
	if c.submitCancel != nil {
		c.submitCancel()
		c.submitCancel = nil
	}
}

func (c *Coordinator) pollTick(gen uint64, taskID string) TickFunc {
	return func(ctx context.Context) bool {
		resp, err := c.backend.Poll(ctx, taskID)
		if ctx.Err() != nil {
			return true
		}
		if err != nil {
			c.logger.Warn("status check failed", slog.String("task_id", taskID), slog.String("error", err.Error()))
			c.post(ctx, PollFailed{Gen: gen})
			return true
		}
		c.post(ctx, PollReported{Gen: gen, Response: resp})
		return resp.Terminal()
	}
}

func (c *Coordinator) bumpHistorySeq() uint64 {
	c.historySeq++
	return c.historySeq
}

func (c *Coordinator) refreshHistory() {
	if c.history == nil {
		return
	}
	seq := c.bumpHistorySeq()
	ctx := c.loopCtx
	c.goAsync(func() {
		c.post(ctx, HistoryLoaded{Seq: seq, Entries: c.history.Load(ctx)})
	})
}

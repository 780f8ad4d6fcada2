// Package recognition turns a stream of camera frames into presence updates
// and single-outcome authorization attempts.
package recognition

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/your-org/roomgate/internal/config"
	"github.com/your-org/roomgate/internal/match"
	"github.com/your-org/roomgate/internal/models"
	"github.com/your-org/roomgate/internal/observability"
)

// DefaultFrameInterval is the frame acquisition cadence.
const DefaultFrameInterval = 30 * time.Millisecond

// FrameSource yields the most recent camera frame. ok is false when no frame
// is available, which is treated as an empty tick.
type FrameSource interface {
	Frame() (img image.Image, ok bool)
}

// FaceAnalyzer finds the best face in an image. A nil face with a nil error
// means no face was found.
type FaceAnalyzer interface {
	DetectAndEmbed(img image.Image) (*models.Face, error)
}

// Classifier matches one embedding against the gallery.
type Classifier interface {
	Match(query []float32) (match.Verdict, error)
}

// AttendanceRecorder updates a person's last-seen timestamp.
type AttendanceRecorder interface {
	TouchAttendance(ctx context.Context, personID string, at time.Time) error
}

// AttendanceSink is notified of every attendance update in continuous mode.
type AttendanceSink interface {
	PublishAttendance(ctx context.Context, personID, room string, at time.Time) error
}

type EngineConfig struct {
	Mode          config.RecognitionMode
	Room          string
	FrameInterval time.Duration
}

// Engine runs the frame loop and a single matching worker. At most one frame
// is being matched at any time; frames that arrive meanwhile are dropped.
type Engine struct {
	cfg        EngineConfig
	frames     FrameSource
	analyzer   FaceAnalyzer
	matcher    Classifier
	attempt    *Attempt
	presence   *Presence
	attendance AttendanceRecorder
	sink       AttendanceSink
	now        func() time.Time

	mailbox  *Mailbox[frameJob]
	inFlight atomic.Bool
}

// frameJob is a frame tagged with the attempt that was scanning when it was
// captured. Its verdict only counts toward that attempt.
type frameJob struct {
	img     image.Image
	attempt string
}

type EngineDeps struct {
	Frames     FrameSource
	Analyzer   FaceAnalyzer
	Matcher    Classifier
	Attempt    *Attempt
	Presence   *Presence
	Attendance AttendanceRecorder
	Sink       AttendanceSink // optional
}

func NewEngine(cfg EngineConfig, deps EngineDeps) *Engine {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if cfg.Mode == "" {
		cfg.Mode = config.ModeAttempt
	}
	return &Engine{
		cfg:        cfg,
		frames:     deps.Frames,
		analyzer:   deps.Analyzer,
		matcher:    deps.Matcher,
		attempt:    deps.Attempt,
		presence:   deps.Presence,
		attendance: deps.Attendance,
		sink:       deps.Sink,
		now:        time.Now,
		mailbox:    NewMailbox[frameJob](),
	}
}

func (e *Engine) Attempt() *Attempt { return e.attempt }
func (e *Engine) Presence() *Presence { return e.presence }

// Run blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("recognition engine started",
		"mode", e.cfg.Mode,
		"room", e.cfg.Room,
		"frame_interval", e.cfg.FrameInterval,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e.worker(ctx)
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(e.cfg.FrameInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-ticker.C:
				e.tick(ctx, now)
			}
		}
	})
	err := g.Wait()

	slog.Info("recognition engine stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// tick is one iteration of the frame loop.
func (e *Engine) tick(ctx context.Context, now time.Time) {
	var attemptID string
	if e.cfg.Mode == config.ModeAttempt {
		e.attempt.Tick(ctx, now)
		id, scanning := e.attempt.ScanningID()
		if !scanning {
			return
		}
		attemptID = id
	}

	img, ok := e.frames.Frame()
	if !ok {
		return
	}
	if e.inFlight.Load() {
		observability.FramesDropped.Inc()
		return
	}
	if e.mailbox.Put(frameJob{img: img, attempt: attemptID}) {
		observability.FramesDropped.Inc()
	}
}

func (e *Engine) worker(ctx context.Context) {
	for {
		job, ok := e.mailbox.Take(ctx)
		if !ok {
			return
		}
		e.inFlight.Store(true)
		e.process(ctx, job)
		e.inFlight.Store(false)
	}
}

// process analyzes and matches one frame and routes the verdict.
func (e *Engine) process(ctx context.Context, job frameJob) {
	v, ok := e.classify(job.img)
	if !ok {
		return
	}
	observability.Verdicts.WithLabelValues(v.Kind.String()).Inc()

	if e.cfg.Mode == config.ModeContinuous {
		e.observePresence(ctx, v)
		return
	}
	e.attempt.ObserveFor(ctx, job.attempt, v)
}

func (e *Engine) classify(img image.Image) (match.Verdict, bool) {
	start := time.Now()
	face, err := e.analyzer.DetectAndEmbed(img)
	observability.InferenceDuration.WithLabelValues("analyze").Observe(time.Since(start).Seconds())
	if err != nil {
		observability.AnalyzerErrors.Inc()
		slog.Warn("analyze frame", "error", err)
		return match.NoFaceVerdict(), true
	}
	if face == nil || len(face.Embedding) == 0 {
		return match.NoFaceVerdict(), true
	}

	v, err := e.matcher.Match(face.Embedding)
	if err != nil {
		// a model/gallery dimension mismatch is a deployment bug, not a missing face
		slog.Error("match embedding", "error", err)
		return match.Verdict{}, false
	}
	return v, true
}

func (e *Engine) observePresence(ctx context.Context, v match.Verdict) {
	now := e.now()
	personID, update := e.presence.Observe(v, now)
	if !update {
		return
	}

	slog.Info("person present", "person", personID, "room", e.cfg.Room, "distance", v.Distance)
	if err := e.attendance.TouchAttendance(ctx, personID, now); err != nil {
		slog.Error("touch attendance", "error", err, "person", personID)
		return
	}
	observability.AttendanceUpdates.Inc()

	if e.sink != nil {
		if err := e.sink.PublishAttendance(ctx, personID, e.cfg.Room, now); err != nil {
			slog.Warn("publish attendance", "error", err, "person", personID)
		}
	}
}

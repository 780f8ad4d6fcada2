package recognition

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/roomgate/internal/access"
	"github.com/your-org/roomgate/internal/match"
	"github.com/your-org/roomgate/internal/models"
	"github.com/your-org/roomgate/internal/observability"
)

// DefaultAttemptTimeout bounds one authorization attempt.
const DefaultAttemptTimeout = 3 * time.Second

var ErrAttemptInProgress = errors.New("authorization attempt already in progress")

// Authorizer decides whether an identified person may enter a room.
type Authorizer interface {
	Authorize(ctx context.Context, personID, roomName string, at time.Time) access.Decision
}

// Recorder persists attempt side effects: the audit row and attendance.
type Recorder interface {
	RecordAccess(ctx context.Context, entry models.AccessLogEntry) error
	TouchAttendance(ctx context.Context, personID string, at time.Time) error
}

// OutcomeSink receives every terminal outcome after it has been recorded.
type OutcomeSink interface {
	PublishOutcome(ctx context.Context, o Outcome) error
}

type Phase int

const (
	Idle Phase = iota
	Scanning
	Deciding
	Done
)

func (p Phase) String() string {
	switch p {
	case Scanning:
		return "scanning"
	case Deciding:
		return "deciding"
	case Done:
		return "done"
	default:
		return "idle"
	}
}

// Outcome is the single terminal result of an attempt.
type Outcome struct {
	AttemptID string              `json:"attempt_id"`
	Room      string              `json:"room"`
	PersonID  string              `json:"person_id,omitempty"`
	Granted   bool                `json:"granted"`
	Result    models.AccessResult `json:"result"`
	Reason    access.Reason       `json:"reason"`
	Distance  *float64            `json:"distance,omitempty"`
	StartedAt time.Time           `json:"started_at"`
	DecidedAt time.Time           `json:"decided_at"`
}

// Err maps a denial onto the access error taxonomy; nil when granted.
func (o Outcome) Err() error {
	if o.Granted {
		return nil
	}
	return o.Reason.Err()
}

// Attempt is the bounded authorization state machine of one terminal:
// idle -> scanning -> deciding -> done. The scanning -> deciding transition
// is taken under the mutex by exactly one caller, which then owns producing
// the outcome. That is what makes the outcome and its log write unique.
type Attempt struct {
	auth    Authorizer
	rec     Recorder
	sink    OutcomeSink
	timeout time.Duration
	now     func() time.Time

	mu       sync.Mutex
	phase    Phase
	id       string
	room     string
	started  time.Time
	deadline time.Time
	result   chan Outcome
	last     *Outcome
}

type AttemptOption func(*Attempt)

func WithTimeout(d time.Duration) AttemptOption {
	return func(a *Attempt) { a.timeout = d }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) AttemptOption {
	return func(a *Attempt) { a.now = now }
}

// WithOutcomeSink forwards outcomes to sink, e.g. a message bus.
func WithOutcomeSink(sink OutcomeSink) AttemptOption {
	return func(a *Attempt) { a.sink = sink }
}

func NewAttempt(auth Authorizer, rec Recorder, opts ...AttemptOption) *Attempt {
	a := &Attempt{
		auth:    auth,
		rec:     rec,
		timeout: DefaultAttemptTimeout,
		now:     time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Start begins a fresh attempt for room. The returned channel receives the
// outcome exactly once.
func (a *Attempt) Start(room string) (<-chan Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.phase == Scanning || a.phase == Deciding {
		return nil, ErrAttemptInProgress
	}

	now := a.now()
	a.phase = Scanning
	a.id = uuid.NewString()
	a.room = room
	a.started = now
	a.deadline = now.Add(a.timeout)
	a.result = make(chan Outcome, 1)

	slog.Info("attempt started", "attempt", a.id, "room", room, "timeout", a.timeout)
	return a.result, nil
}

// Phase returns the current state.
func (a *Attempt) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// ScanningID returns the id of the attempt currently accepting frames.
func (a *Attempt) ScanningID() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.phase != Scanning {
		return "", false
	}
	return a.id, true
}

// Last returns the most recent terminal outcome, if any.
func (a *Attempt) Last() (Outcome, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		return Outcome{}, false
	}
	return *a.last, true
}

// Tick enforces the deadline. It is called on every frame tick whether or
// not a frame was available.
func (a *Attempt) Tick(ctx context.Context, now time.Time) {
	claim, ok := a.claimExpired(now)
	if !ok {
		return
	}
	a.finish(ctx, claim, Outcome{Result: models.AccessDenied, Reason: access.ReasonTimeout}, now)
}

// Observe feeds one frame verdict into the scanning attempt. The deadline is
// checked first so a late verdict can never beat the timeout.
func (a *Attempt) Observe(ctx context.Context, v match.Verdict) {
	a.ObserveFor(ctx, "", v)
}

// ObserveFor is Observe for a verdict computed from a frame captured during
// attempt attemptID. The verdict is ignored when another attempt is scanning
// by then. An empty attemptID matches any attempt.
func (a *Attempt) ObserveFor(ctx context.Context, attemptID string, v match.Verdict) {
	now := a.now()
	if claim, ok := a.claimExpired(now); ok {
		a.finish(ctx, claim, Outcome{Result: models.AccessDenied, Reason: access.ReasonTimeout}, now)
		return
	}
	if v.Kind == match.NoFace {
		return
	}

	claim, ok := a.claim(func() bool { return attemptID == "" || attemptID == a.id })
	if !ok {
		if attemptID != "" {
			slog.Debug("stale frame verdict ignored", "attempt", attemptID)
		}
		return
	}

	var o Outcome
	switch v.Kind {
	case match.Ambiguous:
		o = Outcome{Result: models.AccessUnknown, Reason: access.ReasonUnknownFace}
	case match.Matched:
		d := a.auth.Authorize(ctx, v.PersonID, claim.room, now)
		o = Outcome{PersonID: v.PersonID, Granted: d.Granted, Reason: d.Reason, Result: models.AccessDenied}
		if d.Granted {
			o.Result = models.AccessGranted
		}
	}
	if !math.IsInf(v.Distance, 0) && !math.IsNaN(v.Distance) {
		dist := v.Distance
		o.Distance = &dist
	}
	a.finish(ctx, claim, o, a.now())
}

// claimed identifies the attempt a caller won the right to finish.
type claimed struct {
	id      string
	room    string
	started time.Time
	result  chan Outcome
}

func (a *Attempt) claimExpired(now time.Time) (claimed, bool) {
	return a.claim(func() bool { return !now.Before(a.deadline) })
}

// claim moves scanning -> deciding when cond holds. cond runs under the lock.
func (a *Attempt) claim(cond func() bool) (claimed, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.phase != Scanning || !cond() {
		return claimed{}, false
	}
	a.phase = Deciding
	return claimed{id: a.id, room: a.room, started: a.started, result: a.result}, true
}

func (a *Attempt) finish(ctx context.Context, c claimed, o Outcome, now time.Time) {
	o.AttemptID = c.id
	o.Room = c.room
	o.StartedAt = c.started
	o.DecidedAt = now

	entry := models.AccessLogEntry{
		Timestamp: now,
		RoomName:  c.room,
		Result:    o.Result,
		Reason:    string(o.Reason),
		Distance:  o.Distance,
	}
	if o.PersonID != "" {
		pid := o.PersonID
		entry.PersonID = &pid
	}
	if err := a.rec.RecordAccess(ctx, entry); err != nil {
		slog.Error("record access", "error", err, "attempt", c.id)
	}
	if o.Granted {
		if err := a.rec.TouchAttendance(ctx, o.PersonID, now); err != nil {
			slog.Error("touch attendance", "error", err, "person", o.PersonID)
		} else {
			observability.AttendanceUpdates.Inc()
		}
	}
	observability.Attempts.WithLabelValues(string(o.Result), string(o.Reason)).Inc()

	a.mu.Lock()
	a.phase = Done
	a.last = &o
	a.mu.Unlock()

	c.result <- o

	slog.Info("attempt finished",
		"attempt", c.id,
		"room", c.room,
		"result", o.Result,
		"reason", o.Reason,
		"person", o.PersonID,
		"elapsed", now.Sub(c.started),
	)

	if a.sink != nil {
		if err := a.sink.PublishOutcome(ctx, o); err != nil {
			slog.Warn("publish outcome", "error", err, "attempt", c.id)
		}
	}
}

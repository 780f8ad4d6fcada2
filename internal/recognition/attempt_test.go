package recognition

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/roomgate/internal/access"
	"github.com/your-org/roomgate/internal/match"
	"github.com/your-org/roomgate/internal/models"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type stubAuthorizer struct {
	mu       sync.Mutex
	decision access.Decision
	calls    int
}

func (s *stubAuthorizer) Authorize(context.Context, string, string, time.Time) access.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.decision
}

type memRecorder struct {
	mu       sync.Mutex
	log      []models.AccessLogEntry
	touched  []string
	touchErr error
}

func (r *memRecorder) RecordAccess(_ context.Context, e models.AccessLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, e)
	return nil
}

func (r *memRecorder) TouchAttendance(_ context.Context, personID string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, personID)
	return r.touchErr
}

func (r *memRecorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.log), len(r.touched)
}

type memSink struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (s *memSink) PublishOutcome(_ context.Context, o Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
	return nil
}

func newTestAttempt(d access.Decision) (*Attempt, *fakeClock, *stubAuthorizer, *memRecorder) {
	clock := newFakeClock()
	auth := &stubAuthorizer{decision: d}
	rec := &memRecorder{}
	a := NewAttempt(auth, rec, WithClock(clock.Now))
	return a, clock, auth, rec
}

func receive(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(time.Second):
		t.Fatal("no outcome delivered")
		return Outcome{}
	}
}

func TestAttempt_TimeoutAfterNoFaceFrames(t *testing.T) {
	a, clock, auth, rec := newTestAttempt(access.Decision{Granted: true, Reason: access.ReasonInSchedule})
	ctx := context.Background()

	ch, err := a.Start("R1")
	require.NoError(t, err)

	for range 3 {
		clock.Advance(500 * time.Millisecond)
		a.Observe(ctx, match.NoFaceVerdict())
		a.Tick(ctx, clock.Now())
	}
	assert.Equal(t, Scanning, a.Phase())

	a.Tick(ctx, clock.Advance(1499*time.Millisecond))
	assert.Equal(t, Scanning, a.Phase())

	a.Tick(ctx, clock.Advance(time.Millisecond)) // exactly 3.0s
	o := receive(t, ch)
	assert.False(t, o.Granted)
	assert.Equal(t, access.ReasonTimeout, o.Reason)
	assert.Equal(t, models.AccessDenied, o.Result)
	assert.Empty(t, o.PersonID)
	assert.Nil(t, o.Distance)
	assert.Equal(t, 3*time.Second, o.DecidedAt.Sub(o.StartedAt))
	assert.ErrorIs(t, o.Err(), access.ErrTimeout)

	// later ticks and verdicts are ignored
	a.Tick(ctx, clock.Advance(time.Second))
	a.Observe(ctx, matched("p1"))

	logs, touches := rec.counts()
	assert.Equal(t, 1, logs)
	assert.Zero(t, touches)
	assert.Zero(t, auth.calls)
	assert.Equal(t, Done, a.Phase())
	require.Len(t, rec.log, 1)
	assert.Nil(t, rec.log[0].PersonID)
	assert.Equal(t, "timeout", rec.log[0].Reason)
}

func TestAttempt_MatchGrants(t *testing.T) {
	a, clock, auth, rec := newTestAttempt(access.Decision{Granted: true, Reason: access.ReasonInSchedule})
	ctx := context.Background()

	ch, err := a.Start("lab")
	require.NoError(t, err)

	a.Observe(ctx, match.NoFaceVerdict())
	a.Observe(ctx, match.NoFaceVerdict())
	clock.Advance(time.Second)
	a.Observe(ctx, matched("p1"))
	a.Observe(ctx, matched("p1"))
	a.Observe(ctx, ambiguous("p2"))

	o := receive(t, ch)
	assert.True(t, o.Granted)
	assert.Equal(t, models.AccessGranted, o.Result)
	assert.Equal(t, "p1", o.PersonID)
	require.NotNil(t, o.Distance)
	assert.InDelta(t, 0.3, *o.Distance, 1e-9)
	assert.NoError(t, o.Err())

	assert.Equal(t, 1, auth.calls)
	require.Len(t, rec.log, 1)
	assert.Equal(t, "p1", *rec.log[0].PersonID)
	assert.Equal(t, []string{"p1"}, rec.touched)
}

func TestAttempt_MatchDenied(t *testing.T) {
	a, _, _, rec := newTestAttempt(access.Decision{Granted: false, Reason: access.ReasonLevelTooLow})
	ctx := context.Background()

	ch, err := a.Start("R1")
	require.NoError(t, err)
	a.Observe(ctx, matched("P1"))

	o := receive(t, ch)
	assert.False(t, o.Granted)
	assert.Equal(t, models.AccessDenied, o.Result)
	assert.Equal(t, access.ReasonLevelTooLow, o.Reason)
	assert.ErrorIs(t, o.Err(), access.ErrLevelTooLow)
	assert.Empty(t, rec.touched)
	assert.Len(t, rec.log, 1)
}

func TestAttempt_AmbiguousIsUnknownFace(t *testing.T) {
	a, _, auth, rec := newTestAttempt(access.Decision{Granted: true, Reason: access.ReasonAdminOverride})
	ctx := context.Background()

	ch, err := a.Start("lab")
	require.NoError(t, err)
	a.Observe(ctx, ambiguous("admin"))

	o := receive(t, ch)
	assert.False(t, o.Granted)
	assert.Equal(t, models.AccessUnknown, o.Result)
	assert.Equal(t, access.ReasonUnknownFace, o.Reason)
	assert.Empty(t, o.PersonID, "a rejected candidate is never an identity")
	require.NotNil(t, o.Distance)

	assert.Zero(t, auth.calls)
	require.Len(t, rec.log, 1)
	assert.Nil(t, rec.log[0].PersonID)
	assert.Empty(t, rec.touched)
}

func TestAttempt_EmptyGalleryAmbiguousHasNoDistance(t *testing.T) {
	a, _, _, rec := newTestAttempt(access.Decision{})
	ch, err := a.Start("lab")
	require.NoError(t, err)

	a.Observe(context.Background(), match.Verdict{Kind: match.Ambiguous, Distance: math.Inf(1)})
	o := receive(t, ch)
	assert.Nil(t, o.Distance)
	assert.Len(t, rec.log, 1)
}

func TestAttempt_LateVerdictLosesToDeadline(t *testing.T) {
	a, clock, auth, rec := newTestAttempt(access.Decision{Granted: true, Reason: access.ReasonInSchedule})
	ch, err := a.Start("lab")
	require.NoError(t, err)

	clock.Advance(3 * time.Second)
	a.Observe(context.Background(), matched("p1"))

	o := receive(t, ch)
	assert.Equal(t, access.ReasonTimeout, o.Reason)
	assert.Zero(t, auth.calls)
	assert.Empty(t, rec.touched)
}

func TestAttempt_StartWhileScanningRejected(t *testing.T) {
	a, _, _, _ := newTestAttempt(access.Decision{Granted: true, Reason: access.ReasonInSchedule})

	_, err := a.Start("lab")
	require.NoError(t, err)
	_, err = a.Start("lab")
	assert.ErrorIs(t, err, ErrAttemptInProgress)
}

func TestAttempt_RestartAfterDone(t *testing.T) {
	a, clock, _, rec := newTestAttempt(access.Decision{Granted: true, Reason: access.ReasonInSchedule})
	ctx := context.Background()

	_, ok := a.Last()
	assert.False(t, ok)

	ch1, err := a.Start("lab")
	require.NoError(t, err)
	a.Tick(ctx, clock.Advance(5*time.Second))
	first := receive(t, ch1)

	ch2, err := a.Start("lab")
	require.NoError(t, err)
	assert.Equal(t, Scanning, a.Phase())
	a.Observe(ctx, matched("p1"))
	second := receive(t, ch2)

	assert.NotEqual(t, first.AttemptID, second.AttemptID)
	assert.Equal(t, access.ReasonTimeout, first.Reason)
	assert.True(t, second.Granted)

	last, ok := a.Last()
	require.True(t, ok)
	assert.Equal(t, second.AttemptID, last.AttemptID)
	assert.Len(t, rec.log, 2)
}

func TestAttempt_ExactlyOneOutcomeUnderContention(t *testing.T) {
	for range 50 {
		a, clock, auth, rec := newTestAttempt(access.Decision{Granted: true, Reason: access.ReasonInSchedule})
		sink := &memSink{}
		a.sink = sink
		ctx := context.Background()

		ch, err := a.Start("lab")
		require.NoError(t, err)
		deadline := clock.Now().Add(DefaultAttemptTimeout)

		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				switch i % 4 {
				case 0:
					a.Observe(ctx, matched("p1"))
				case 1:
					a.Observe(ctx, ambiguous("p2"))
				case 2:
					a.Observe(ctx, match.NoFaceVerdict())
				default:
					a.Tick(ctx, deadline)
				}
			}()
		}
		wg.Wait()

		receive(t, ch)
		select {
		case o := <-ch:
			t.Fatalf("second outcome delivered: %+v", o)
		default:
		}

		logs, touches := rec.counts()
		assert.Equal(t, 1, logs)
		assert.LessOrEqual(t, touches, 1)
		assert.LessOrEqual(t, auth.calls, 1)
		assert.Len(t, sink.outcomes, 1)
	}
}

func TestAttempt_AttendanceFailureStillLogsOnce(t *testing.T) {
	a, _, _, rec := newTestAttempt(access.Decision{Granted: true, Reason: access.ReasonAdminOverride})
	rec.touchErr = errors.New("db down")

	ch, err := a.Start("lab")
	require.NoError(t, err)
	a.Observe(context.Background(), matched("boss"))

	o := receive(t, ch)
	assert.True(t, o.Granted)
	assert.Len(t, rec.log, 1)
	assert.Len(t, rec.touched, 1)
}

func TestAttempt_OutcomeSink(t *testing.T) {
	sink := &memSink{}
	clock := newFakeClock()
	a := NewAttempt(&stubAuthorizer{}, &memRecorder{}, WithClock(clock.Now), WithOutcomeSink(sink), WithTimeout(time.Second))

	ch, err := a.Start("lab")
	require.NoError(t, err)
	a.Tick(context.Background(), clock.Advance(time.Second))
	o := receive(t, ch)

	require.Len(t, sink.outcomes, 1)
	assert.Equal(t, o, sink.outcomes[0])
}

func TestAttempt_ObserveForOtherAttemptIgnored(t *testing.T) {
	rec := &memRecorder{}
	auth := &stubAuthorizer{decision: access.Decision{Granted: true, Reason: access.ReasonInSchedule}}
	a := NewAttempt(auth, rec)
	ctx := context.Background()

	_, ok := a.ScanningID()
	assert.False(t, ok)

	ch, err := a.Start("lab")
	require.NoError(t, err)
	id, ok := a.ScanningID()
	require.True(t, ok)

	a.ObserveFor(ctx, "previous-attempt", matched("p1"))
	assert.Equal(t, Scanning, a.Phase())
	assert.Zero(t, auth.calls)

	a.ObserveFor(ctx, id, matched("p1"))
	o := receive(t, ch)
	assert.Equal(t, id, o.AttemptID)
	assert.True(t, o.Granted)
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/roomgate/internal/recognition"
)

const (
	AccessStreamName  = "ACCESS"
	AccessSubjectBase = "access"
	OutcomeSubject    = AccessSubjectBase + ".outcomes"
	AttendanceSubject = AccessSubjectBase + ".attendance"
)

// AttendanceEvent is published each time continuous recognition records a
// person entering a room.
type AttendanceEvent struct {
	PersonID string    `json:"person_id"`
	Room     string    `json:"room"`
	At       time.Time `json:"at"`
}

func connect(natsURL string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return nc, js, nil
}

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Producer{nc: nc, js: js}, nil
}

// EnsureStream creates the ACCESS stream if it doesn't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStream(ctx context.Context) error {
	cfg := jetstream.StreamConfig{
		Name:        AccessStreamName,
		Subjects:    []string{AccessSubjectBase + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		MaxMsgs:     1000000,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		Duplicates:  time.Minute,
		Description: "Access attempt outcomes and attendance updates",
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err == nil {
			slog.Info("ensured NATS stream", "name", cfg.Name)
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
		}
		slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// PublishOutcome publishes the terminal outcome of an attempt. The attempt
// id doubles as the JetStream dedup id.
func (p *Producer) PublishOutcome(ctx context.Context, o recognition.Outcome) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	_, err = p.js.Publish(ctx, RoomSubject(OutcomeSubject, o.Room), payload, jetstream.WithMsgID(o.AttemptID))
	if err != nil {
		return fmt.Errorf("publish outcome: %w", err)
	}
	return nil
}

// PublishAttendance publishes an attendance update.
func (p *Producer) PublishAttendance(ctx context.Context, personID, room string, at time.Time) error {
	payload, err := json.Marshal(AttendanceEvent{PersonID: personID, Room: room, At: at})
	if err != nil {
		return fmt.Errorf("marshal attendance: %w", err)
	}
	if _, err := p.js.Publish(ctx, RoomSubject(AttendanceSubject, room), payload); err != nil {
		return fmt.Errorf("publish attendance: %w", err)
	}
	return nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}

// RoomSubject appends room to base as a single subject token. Characters
// NATS treats as separators or wildcards become underscores.
func RoomSubject(base, room string) string {
	if room == "" {
		room = "_"
	}
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, room)
	return base + "." + token
}

// EventKind names the event type carried on subject: "outcome",
// "attendance", or "" for anything else.
func EventKind(subject string) string {
	switch {
	case strings.HasPrefix(subject, OutcomeSubject+"."):
		return "outcome"
	case strings.HasPrefix(subject, AttendanceSubject+"."):
		return "attendance"
	default:
		return ""
	}
}

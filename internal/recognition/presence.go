package recognition

import (
	"sync"
	"time"

	"github.com/your-org/roomgate/internal/match"
)

// DefaultCooldown is the quiet period after a person leaves during which a
// new arrival is not recorded.
const DefaultCooldown = 30 * time.Second

type PresenceState int

const (
	Absent PresenceState = iota
	Present
)

func (s PresenceState) String() string {
	if s == Present {
		return "present"
	}
	return "absent"
}

// PresenceSnapshot is a point-in-time view of the tracker.
type PresenceSnapshot struct {
	State       PresenceState `json:"-"`
	StateName   string        `json:"state"`
	PersonID    string        `json:"person_id,omitempty"`
	AbsentSince *time.Time    `json:"absent_since,omitempty"`
}

// Presence tracks who is in front of the camera in continuous mode. It never
// authorizes anyone; it only decides when a last-seen update is due.
type Presence struct {
	mu          sync.Mutex
	cooldown    time.Duration
	state       PresenceState
	personID    string
	absentSince time.Time // zero until the first departure
}

func NewPresence(cooldown time.Duration) *Presence {
	return &Presence{cooldown: cooldown}
}

// Observe applies one frame verdict at time now. It returns the person whose
// last-seen timestamp must be updated, and true, when the verdict moves the
// tracker into present for a new person.
func (p *Presence) Observe(v match.Verdict, now time.Time) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v.Kind != match.Matched {
		if p.state == Present {
			p.state = Absent
			p.personID = ""
			p.absentSince = now
		}
		return "", false
	}

	if p.state == Present && p.personID == v.PersonID {
		return "", false
	}
	if p.state == Absent && !p.absentSince.IsZero() && now.Sub(p.absentSince) < p.cooldown {
		return "", false
	}

	p.state = Present
	p.personID = v.PersonID
	p.absentSince = time.Time{}
	return v.PersonID, true
}

func (p *Presence) Snapshot() PresenceSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := PresenceSnapshot{State: p.state, StateName: p.state.String(), PersonID: p.personID}
	if !p.absentSince.IsZero() {
		t := p.absentSince
		s.AbsentSince = &t
	}
	return s
}

package access

import "errors"

// Denial taxonomy. Every non-grant Reason maps onto one of these through
// Reason.Err, so callers can use errors.Is on outcomes.
var (
	ErrUnknownPerson    = errors.New("unknown person")
	ErrUnknownRoom      = errors.New("unknown room")
	ErrLevelTooLow      = errors.New("access level too low")
	ErrOutOfSchedule    = errors.New("outside scheduled hours")
	ErrUnknownFace      = errors.New("face not recognized")
	ErrTimeout          = errors.New("no face recognized before timeout")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Reason explains a grant or denial. The string values are written to the
// access log as-is.
type Reason string

const (
	ReasonAdminOverride Reason = "admin-override"
	ReasonInSchedule    Reason = "in-schedule"

	ReasonUnknownPerson Reason = "unknown-person"
	ReasonUnknownRoom   Reason = "unknown-room"
	ReasonLevelTooLow   Reason = "level-too-low"
	ReasonOutOfSchedule Reason = "out-of-schedule"
	ReasonUnknownFace   Reason = "unknown-face"
	ReasonTimeout       Reason = "timeout"
	ReasonStoreError    Reason = "store-error"
)

var reasonErrors = map[Reason]error{
	ReasonUnknownPerson: ErrUnknownPerson,
	ReasonUnknownRoom:   ErrUnknownRoom,
	ReasonLevelTooLow:   ErrLevelTooLow,
	ReasonOutOfSchedule: ErrOutOfSchedule,
	ReasonUnknownFace:   ErrUnknownFace,
	ReasonTimeout:       ErrTimeout,
	ReasonStoreError:    ErrStoreUnavailable,
}

// Err returns the taxonomy error for a denial reason, nil for grants.
func (r Reason) Err() error {
	return reasonErrors[r]
}

// Decision is the result of one authorization evaluation.
type Decision struct {
	Granted bool   `json:"granted"`
	Reason  Reason `json:"reason"`
}

func grant(r Reason) Decision { return Decision{Granted: true, Reason: r} }
func deny(r Reason) Decision { return Decision{Granted: false, Reason: r} }

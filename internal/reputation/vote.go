package reputation

import (
	"errors"
	"time"
)

// Ledger validation errors.
var (
	// ErrSelfVote is returned when a voter targets themselves.
	ErrSelfVote = errors.New("self-vote rejected")

	// ErrCooldownActive is returned when the voter's account is younger than
	// the configured cooldown.
	ErrCooldownActive = errors.New("voter account is within the cooldown period")

	// ErrVoteNotFound is returned when revoking a vote that does not exist.
	ErrVoteNotFound = errors.New("vote not found")
)

// Vote is one weighted vote from a voter to a target owner. Exactly one vote
// exists per (voter, target) pair; a re-cast overwrites the weight class and
// keeps the original CreatedAt so re-voting cannot inflate recency.
type Vote struct {
	ID        string      `json:"id"`
	VoterID   string      `json:"voter_id"`
	TargetID  string      `json:"target_id"`
	Weight    WeightClass `json:"weight_class"`
	CreatedAt time.Time   `json:"created_at"`
}

// Summary is the derived reputation of an owner.
type Summary struct {
	Score int64 `json:"score"`
	Level int   `json:"level"`
}

// TransientError wraps a retryable storage failure. The ledger retries these
// with bounded backoff before surfacing them to the caller.
type TransientError struct {
	Err error
}

// Error implements error.
func (e *TransientError) Error() string {
	return "transient store error: " + e.Err.Error()
}

// Unwrap exposes the underlying error.
func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

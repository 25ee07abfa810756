package contestant

import (
	"errors"
	"time"
)

var ErrContestantNotFound = errors.New("contestant not found")

// Contestant is the public-facing entity votes are credited to. The payment
// pipeline only ever reads it and increments VoteTotal; it never decrements.
type Contestant struct {
	ID        string    `json:"id" db:"id"` // public contestant code, e.g. "C12"
	Name      string    `json:"name" db:"name"`
	EventSlug string    `json:"event_slug" db:"event_slug"`
	PhotoURL  *string   `json:"photo_url,omitempty" db:"photo_url"`
	VoteTotal int64     `json:"vote_total" db:"vote_total"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

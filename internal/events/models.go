package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is one tagged moment in a video.
type Event struct {
	ID         string    `json:"id"`
	TimestampS float64   `json:"timestamp_s"`
	Label      string    `json:"label"`
	Note       string    `json:"note"`
	MatchID    string    `json:"match_id"`
	Player     string    `json:"player"`
	Severity   int       `json:"severity"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewEvent carries the fields of a create request. TimestampS and Label are
// required; the rest default to their zero values.
type NewEvent struct {
	TimestampS float64
	Label      string
	Note       string
	MatchID    string
	Player     string
	Severity   int
}

// EventPatch is a partial update. A nil field is left untouched; a non-nil
// field is written as given. Unknown JSON keys are dropped by decoding into
// this closed struct.
type EventPatch struct {
	TimestampS *float64 `json:"timestamp_s"`
	Label      *string  `json:"label"`
	Note       *string  `json:"note"`
	MatchID    *string  `json:"match_id"`
	Player     *string  `json:"player"`
	Severity   *int     `json:"severity"`
}

// IsEmpty reports whether the patch carries no fields.
func (p EventPatch) IsEmpty() bool {
	return p.TimestampS == nil && p.Label == nil && p.Note == nil &&
		p.MatchID == nil && p.Player == nil && p.Severity == nil
}

// Well-known labels offered by the UI. The label column is free-form; these
// are not enforced by the store.
var KnownLabels = []string{"Tackle", "Fall", "Injury", "Other"}

func NewID() string {
	return uuid.NewString()
}

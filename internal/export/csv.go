// Package export renders the event log into downloadable byte streams.
// Both renderers are pure functions of the given slice; callers decide
// delivery.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/fieldside/tagd/internal/events"
)

// CSVHeader is the column order of the CSV export. time_hms is derived
// from timestamp_s for human readability; the remaining columns mirror the
// stored event fields.
var CSVHeader = []string{"id", "timestamp_s", "time_hms", "label", "note", "match_id", "player", "severity", "created_at"}

// ToCSV renders events in the given order as RFC 4180 CSV bytes. Zero
// events yields the header line only.
func ToCSV(evs []*events.Event) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(CSVHeader); err != nil {
		return nil, err
	}

	for _, e := range evs {
		record := []string{
			e.ID,
			FormatSeconds(e.TimestampS),
			TimeHMS(e.TimestampS),
			e.Label,
			e.Note,
			e.MatchID,
			e.Player,
			strconv.Itoa(e.Severity),
			e.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FormatSeconds renders a timestamp as decimal text without trailing
// zeros.
func FormatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

// TimeHMS formats whole seconds as HH:MM:SS, truncating fractions.
func TimeHMS(s float64) string {
	if s < 0 {
		s = 0
	}
	total := int(s)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

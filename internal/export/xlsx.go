package export

import (
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fieldside/tagd/internal/events"
)

const sheetName = "Events"

var xlsxHeader = []any{"id", "timestamp_s", "label", "note", "match_id", "player", "severity", "created_at"}

// ToXLSX renders events as a single-sheet workbook, one row per event in
// the given order plus a header row. Zero events yields the header only.
func ToXLSX(evs []*events.Event) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(sheetName, "A1", &xlsxHeader); err != nil {
		return nil, err
	}

	for i, e := range evs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{
			e.ID,
			e.TimestampS,
			e.Label,
			e.Note,
			e.MatchID,
			e.Player,
			e.Severity,
			e.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

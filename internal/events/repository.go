package events

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

type Repository interface {
	Create(ctx context.Context, event *Event) error
	Get(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context, filterLabel string) ([]*Event, error)
	Update(ctx context.Context, id string, patch EventPatch) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const eventColumns = "id, timestamp_s, label, note, match_id, player, severity, created_at"

func (r *SQLiteRepository) Create(ctx context.Context, e *Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events (id, timestamp_s, label, note, match_id, player, severity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.TimestampS, e.Label, e.Note, e.MatchID, e.Player, e.Severity, e.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Event, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM events WHERE id = ?
	`, id)
	return r.scanEvent(row)
}

func (r *SQLiteRepository) scanEvent(row *sql.Row) (*Event, error) {
	var e Event
	var createdAt string

	err := row.Scan(&e.ID, &e.TimestampS, &e.Label, &e.Note, &e.MatchID, &e.Player, &e.Severity, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	e.CreatedAt = parseStoredTime(createdAt)
	return &e, nil
}

// List returns events ordered by timestamp ascending; rowid breaks ties in
// insertion order. Each call is an independent read with no snapshot
// isolation across calls.
func (r *SQLiteRepository) List(ctx context.Context, filterLabel string) ([]*Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events ORDER BY timestamp_s ASC, rowid ASC
	`
	var args []any
	if filterLabel != "" {
		query = `
			SELECT ` + eventColumns + `
			FROM events WHERE label = ? ORDER BY timestamp_s ASC, rowid ASC
		`
		args = append(args, filterLabel)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*Event
	for rows.Next() {
		var e Event
		var createdAt string
		if err := rows.Scan(&e.ID, &e.TimestampS, &e.Label, &e.Note, &e.MatchID, &e.Player, &e.Severity, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = parseStoredTime(createdAt)
		list = append(list, &e)
	}
	return list, rows.Err()
}

// Update applies only the fields present in the patch, building the SET
// clause from the mutable field set. A patch with no fields is a no-op.
// created_at is never touched.
func (r *SQLiteRepository) Update(ctx context.Context, id string, patch EventPatch) error {
	var sets []string
	var args []any

	if patch.TimestampS != nil {
		sets = append(sets, "timestamp_s = ?")
		args = append(args, *patch.TimestampS)
	}
	if patch.Label != nil {
		sets = append(sets, "label = ?")
		args = append(args, *patch.Label)
	}
	if patch.Note != nil {
		sets = append(sets, "note = ?")
		args = append(args, *patch.Note)
	}
	if patch.MatchID != nil {
		sets = append(sets, "match_id = ?")
		args = append(args, *patch.MatchID)
	}
	if patch.Player != nil {
		sets = append(sets, "player = ?")
		args = append(args, *patch.Player)
	}
	if patch.Severity != nil {
		sets = append(sets, "severity = ?")
		args = append(args, *patch.Severity)
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	_, err := r.db.ExecContext(ctx, "UPDATE events SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	return err
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&count)
	return count, err
}

// parseStoredTime reads RFC3339 timestamps written by this tool and the
// "YYYY-MM-DD HH:MM:SS" form left behind by sqlite column defaults in
// databases written before create timestamps were set explicitly.
func parseStoredTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}

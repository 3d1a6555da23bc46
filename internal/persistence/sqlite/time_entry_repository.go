package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/timerecording/internal/persistence"
)

// TimeEntryRepository implements persistence.TimeEntryRepository. Clock
// times and breaks live in child tables keyed by position.
type TimeEntryRepository struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	mapper *ErrorMapper
}

// NewTimeEntryRepository creates a SQLite time entry repository.
func NewTimeEntryRepository(pool *ConnectionPool) *TimeEntryRepository {
	return &TimeEntryRepository{
		pool:   pool,
		retry:  NewRetryHelper(DefaultRetryConfig()),
		mapper: NewErrorMapper(),
	}
}

type timeEntryRow struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	EntryDate string         `db:"entry_date"`
	ProjectID sql.NullString `db:"project_id"`
	CreatedAt string         `db:"created_at"`
	UpdatedAt string         `db:"updated_at"`
}

type clockRow struct {
	EntryID  string `db:"entry_id"`
	Kind     string `db:"kind"`
	Position int    `db:"position"`
	Clock    string `db:"clock"`
}

type breakRow struct {
	EntryID   string `db:"entry_id"`
	Position  int    `db:"position"`
	StartTime string `db:"start_time"`
	EndTime   string `db:"end_time"`
}

const (
	timeEntryColumns = `id, user_id, entry_date, project_id, created_at, updated_at`

	clockKindStart = "start"
	clockKindEnd   = "end"
)

func (row timeEntryRow) toModel() (persistence.TimeEntry, error) {
	date, err := parseDate(row.EntryDate)
	if err != nil {
		return persistence.TimeEntry{}, err
	}
	created, err := parseTimestamp(row.CreatedAt)
	if err != nil {
		return persistence.TimeEntry{}, err
	}
	updated, err := parseTimestamp(row.UpdatedAt)
	if err != nil {
		return persistence.TimeEntry{}, err
	}
	return persistence.TimeEntry{
		ID:         row.ID,
		UserID:     row.UserID,
		Date:       date,
		StartTimes: []string{},
		EndTimes:   []string{},
		Breaks:     []persistence.Break{},
		ProjectID:  stringPtr(row.ProjectID),
		CreatedAt:  created,
		UpdatedAt:  updated,
	}, nil
}

// CreateTimeEntry inserts an entry with its clock times and breaks.
func (r *TimeEntryRepository) CreateTimeEntry(ctx context.Context, entry persistence.TimeEntry) error {
	if entry.ID == "" || entry.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO time_entries (`+timeEntryColumns+`)
				VALUES (?, ?, ?, ?, ?, ?)`,
				entry.ID, entry.UserID, formatDate(entry.Date), nullString(entry.ProjectID),
				formatTimestamp(entry.CreatedAt), formatTimestamp(entry.UpdatedAt),
			); err != nil {
				return err
			}
			return insertEntryDetails(ctx, tx, entry)
		})
	})
}

// UpdateTimeEntry replaces an entry's date, project and detail rows.
func (r *TimeEntryRepository) UpdateTimeEntry(ctx context.Context, entry persistence.TimeEntry) error {
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			result, err := tx.ExecContext(ctx, `
				UPDATE time_entries
				SET entry_date = ?, project_id = ?, updated_at = ?
				WHERE id = ?`,
				formatDate(entry.Date), nullString(entry.ProjectID), formatTimestamp(entry.UpdatedAt), entry.ID,
			)
			if err != nil {
				return err
			}
			n, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return persistence.ErrNotFound
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM time_entry_clocks WHERE entry_id = ?`, entry.ID); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM time_entry_breaks WHERE entry_id = ?`, entry.ID); err != nil {
				return err
			}
			return insertEntryDetails(ctx, tx, entry)
		})
	})
}

func insertEntryDetails(ctx context.Context, tx *sqlx.Tx, entry persistence.TimeEntry) error {
	insertClock := func(kind string, clocks []string) error {
		for i, clock := range clocks {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO time_entry_clocks (entry_id, kind, position, clock) VALUES (?, ?, ?, ?)`,
				entry.ID, kind, i, clock,
			); err != nil {
				return err
			}
		}
		return nil
	}
	if err := insertClock(clockKindStart, entry.StartTimes); err != nil {
		return err
	}
	if err := insertClock(clockKindEnd, entry.EndTimes); err != nil {
		return err
	}
	for i, b := range entry.Breaks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO time_entry_breaks (entry_id, position, start_time, end_time) VALUES (?, ?, ?, ?)`,
			entry.ID, i, b.Start, b.End,
		); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTimeEntry removes an entry. Detail rows cascade.
func (r *TimeEntryRepository) DeleteTimeEntry(ctx context.Context, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.db.ExecContext(ctx, `DELETE FROM time_entries WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// GetTimeEntry retrieves an entry by ID.
func (r *TimeEntryRepository) GetTimeEntry(ctx context.Context, id string) (persistence.TimeEntry, error) {
	return r.getOne(ctx, `SELECT `+timeEntryColumns+` FROM time_entries WHERE id = ?`, id)
}

// FindTimeEntryByUserAndDate returns the user's entry for the calendar day of date.
func (r *TimeEntryRepository) FindTimeEntryByUserAndDate(ctx context.Context, userID string, date time.Time) (persistence.TimeEntry, error) {
	return r.getOne(ctx, `SELECT `+timeEntryColumns+` FROM time_entries WHERE user_id = ? AND entry_date = ?`, userID, formatDate(date))
}

func (r *TimeEntryRepository) getOne(ctx context.Context, query string, args ...any) (persistence.TimeEntry, error) {
	var row timeEntryRow
	if err := r.pool.db.GetContext(ctx, &row, query, args...); err != nil {
		return persistence.TimeEntry{}, r.mapper.MapError(err)
	}
	entries, err := r.withDetails(ctx, []timeEntryRow{row})
	if err != nil {
		return persistence.TimeEntry{}, err
	}
	return entries[0], nil
}

// ListTimeEntriesByUser returns the user's entries, newest day first.
func (r *TimeEntryRepository) ListTimeEntriesByUser(ctx context.Context, userID string) ([]persistence.TimeEntry, error) {
	var rows []timeEntryRow
	if err := r.pool.db.SelectContext(ctx, &rows,
		`SELECT `+timeEntryColumns+` FROM time_entries WHERE user_id = ? ORDER BY entry_date DESC, id`, userID,
	); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return r.withDetails(ctx, rows)
}

func (r *TimeEntryRepository) withDetails(ctx context.Context, rows []timeEntryRow) ([]persistence.TimeEntry, error) {
	entries := make([]persistence.TimeEntry, 0, len(rows))
	if len(rows) == 0 {
		return entries, nil
	}
	index := make(map[string]int, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toModel()
		if err != nil {
			return nil, err
		}
		index[entry.ID] = len(entries)
		ids = append(ids, entry.ID)
		entries = append(entries, entry)
	}

	query, args, err := sqlx.In(`
		SELECT entry_id, kind, position, clock FROM time_entry_clocks
		WHERE entry_id IN (?) ORDER BY entry_id, kind, position`, ids)
	if err != nil {
		return nil, err
	}
	var clocks []clockRow
	if err := r.pool.db.SelectContext(ctx, &clocks, r.pool.db.Rebind(query), args...); err != nil {
		return nil, r.mapper.MapError(err)
	}
	for _, c := range clocks {
		e := &entries[index[c.EntryID]]
		switch c.Kind {
		case clockKindStart:
			e.StartTimes = append(e.StartTimes, c.Clock)
		case clockKindEnd:
			e.EndTimes = append(e.EndTimes, c.Clock)
		}
	}

	query, args, err = sqlx.In(`
		SELECT entry_id, position, start_time, end_time FROM time_entry_breaks
		WHERE entry_id IN (?) ORDER BY entry_id, position`, ids)
	if err != nil {
		return nil, err
	}
	var breaks []breakRow
	if err := r.pool.db.SelectContext(ctx, &breaks, r.pool.db.Rebind(query), args...); err != nil {
		return nil, r.mapper.MapError(err)
	}
	for _, b := range breaks {
		e := &entries[index[b.EntryID]]
		e.Breaks = append(e.Breaks, persistence.Break{Start: b.StartTime, End: b.EndTime})
	}
	return entries, nil
}

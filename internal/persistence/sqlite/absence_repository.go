package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/example/timerecording/internal/persistence"
)

// AbsenceRepository implements persistence.AbsenceRepository. A repository
// returned to a WithinTransaction callback runs every statement on that
// transaction and does not retry on its own.
type AbsenceRepository struct {
	pool   *ConnectionPool
	q      sqlx.ExtContext
	inTx   bool
	retry  *RetryHelper
	mapper *ErrorMapper
}

// NewAbsenceRepository creates a SQLite absence repository.
func NewAbsenceRepository(pool *ConnectionPool) *AbsenceRepository {
	return &AbsenceRepository{
		pool:   pool,
		q:      pool.db,
		retry:  NewRetryHelper(DefaultRetryConfig()),
		mapper: NewErrorMapper(),
	}
}

type absenceRow struct {
	ID         string         `db:"id"`
	UserID     string         `db:"user_id"`
	StartDate  string         `db:"start_date"`
	EndDate    string         `db:"end_date"`
	Type       string         `db:"type"`
	Status     string         `db:"status"`
	ApproverID sql.NullString `db:"approver_id"`
	ApprovedAt sql.NullString `db:"approved_at"`
	CreatedAt  string         `db:"created_at"`
	UpdatedAt  string         `db:"updated_at"`
}

const absenceColumns = `id, user_id, start_date, end_date, type, status, approver_id, approved_at, created_at, updated_at`

func (row absenceRow) toModel() (persistence.Absence, error) {
	start, err := parseDate(row.StartDate)
	if err != nil {
		return persistence.Absence{}, err
	}
	end, err := parseDate(row.EndDate)
	if err != nil {
		return persistence.Absence{}, err
	}
	approvedAt, err := timestampPtr(row.ApprovedAt)
	if err != nil {
		return persistence.Absence{}, err
	}
	created, err := parseTimestamp(row.CreatedAt)
	if err != nil {
		return persistence.Absence{}, err
	}
	updated, err := parseTimestamp(row.UpdatedAt)
	if err != nil {
		return persistence.Absence{}, err
	}
	return persistence.Absence{
		ID:         row.ID,
		UserID:     row.UserID,
		StartDate:  start,
		EndDate:    end,
		Type:       row.Type,
		Status:     row.Status,
		ApproverID: stringPtr(row.ApproverID),
		ApprovedAt: approvedAt,
		CreatedAt:  created,
		UpdatedAt:  updated,
	}, nil
}

// write runs fn with retries, or once when bound to a transaction.
func (r *AbsenceRepository) write(ctx context.Context, fn func() error) error {
	if r.inTx {
		return r.mapper.MapError(fn())
	}
	return r.retry.WithRetry(ctx, fn)
}

// WithinTransaction runs fn against a repository bound to a single
// transaction. The transaction commits when fn returns nil. Busy errors
// restart the whole callback.
func (r *AbsenceRepository) WithinTransaction(ctx context.Context, fn func(repo persistence.AbsenceRepository) error) error {
	if r.inTx {
		return fn(r)
	}
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			return fn(&AbsenceRepository{
				pool:   r.pool,
				q:      tx,
				inTx:   true,
				retry:  r.retry,
				mapper: r.mapper,
			})
		})
	})
}

// CreateAbsence inserts an absence.
func (r *AbsenceRepository) CreateAbsence(ctx context.Context, absence persistence.Absence) error {
	if absence.ID == "" || absence.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	return r.write(ctx, func() error {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO absences (`+absenceColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			absence.ID, absence.UserID, formatDate(absence.StartDate), formatDate(absence.EndDate),
			absence.Type, absence.Status, nullString(absence.ApproverID), nullTimestamp(absence.ApprovedAt),
			formatTimestamp(absence.CreatedAt), formatTimestamp(absence.UpdatedAt),
		)
		return err
	})
}

// UpdateAbsence replaces the mutable columns of an absence.
func (r *AbsenceRepository) UpdateAbsence(ctx context.Context, absence persistence.Absence) error {
	return r.write(ctx, func() error {
		result, err := r.q.ExecContext(ctx, `
			UPDATE absences
			SET start_date = ?, end_date = ?, type = ?, status = ?, approver_id = ?, approved_at = ?, updated_at = ?
			WHERE id = ?`,
			formatDate(absence.StartDate), formatDate(absence.EndDate), absence.Type, absence.Status,
			nullString(absence.ApproverID), nullTimestamp(absence.ApprovedAt), formatTimestamp(absence.UpdatedAt),
			absence.ID,
		)
		if err != nil {
			return err
		}
		return expectAffected(result)
	})
}

// DeleteAbsence removes an absence.
func (r *AbsenceRepository) DeleteAbsence(ctx context.Context, id string) error {
	return r.write(ctx, func() error {
		result, err := r.q.ExecContext(ctx, `DELETE FROM absences WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return expectAffected(result)
	})
}

// GetAbsence retrieves an absence by ID.
func (r *AbsenceRepository) GetAbsence(ctx context.Context, id string) (persistence.Absence, error) {
	var row absenceRow
	if err := sqlx.GetContext(ctx, r.q, &row, `SELECT `+absenceColumns+` FROM absences WHERE id = ?`, id); err != nil {
		return persistence.Absence{}, r.mapper.MapError(err)
	}
	return row.toModel()
}

// ListAbsences returns absences matching filter ordered by start date.
func (r *AbsenceRepository) ListAbsences(ctx context.Context, filter persistence.AbsenceFilter) ([]persistence.Absence, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN (?)")
		args = append(args, filter.Statuses)
	}
	if filter.EndsOnOrAfter != nil {
		where = append(where, "end_date >= ?")
		args = append(args, formatDate(*filter.EndsOnOrAfter))
	}

	query := `SELECT ` + absenceColumns + ` FROM absences`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_date, end_date, id"

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}
	var rows []absenceRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, r.q.Rebind(query), args...); err != nil {
		return nil, r.mapper.MapError(err)
	}
	absences := make([]persistence.Absence, 0, len(rows))
	for _, row := range rows {
		a, err := row.toModel()
		if err != nil {
			return nil, err
		}
		absences = append(absences, a)
	}
	return absences, nil
}

func expectAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

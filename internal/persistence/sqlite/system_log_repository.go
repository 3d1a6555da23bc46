package sqlite

import (
	"context"

	"github.com/example/timerecording/internal/persistence"
)

// SystemLogRepository implements persistence.SystemLogRepository.
type SystemLogRepository struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	mapper *ErrorMapper
}

// NewSystemLogRepository creates a SQLite audit log repository.
func NewSystemLogRepository(pool *ConnectionPool) *SystemLogRepository {
	return &SystemLogRepository{
		pool:   pool,
		retry:  NewRetryHelper(DefaultRetryConfig()),
		mapper: NewErrorMapper(),
	}
}

type systemLogRow struct {
	ID           string `db:"id"`
	Action       string `db:"action"`
	Details      string `db:"details"`
	UserID       string `db:"user_id"`
	UserEmail    string `db:"user_email"`
	TargetEntity string `db:"target_entity"`
	TargetID     string `db:"target_id"`
	CreatedAt    string `db:"created_at"`
}

// AppendSystemLog stores an audit record.
func (r *SystemLogRepository) AppendSystemLog(ctx context.Context, entry persistence.SystemLog) error {
	if entry.ID == "" || entry.Action == "" {
		return persistence.ErrConstraintViolation
	}
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.db.NamedExecContext(ctx, `
			INSERT INTO system_logs (id, action, details, user_id, user_email, target_entity, target_id, created_at)
			VALUES (:id, :action, :details, :user_id, :user_email, :target_entity, :target_id, :created_at)`,
			systemLogRow{
				ID:           entry.ID,
				Action:       entry.Action,
				Details:      entry.Details,
				UserID:       entry.UserID,
				UserEmail:    entry.UserEmail,
				TargetEntity: entry.TargetEntity,
				TargetID:     entry.TargetID,
				CreatedAt:    formatTimestamp(entry.CreatedAt),
			},
		)
		return err
	})
}

// ListSystemLogs returns the most recent records first. A non-positive limit
// returns every record.
func (r *SystemLogRepository) ListSystemLogs(ctx context.Context, limit int) ([]persistence.SystemLog, error) {
	if limit <= 0 {
		limit = -1
	}
	var rows []systemLogRow
	if err := r.pool.db.SelectContext(ctx, &rows, `
		SELECT id, action, details, user_id, user_email, target_entity, target_id, created_at
		FROM system_logs
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit,
	); err != nil {
		return nil, r.mapper.MapError(err)
	}
	logs := make([]persistence.SystemLog, 0, len(rows))
	for _, row := range rows {
		created, err := parseTimestamp(row.CreatedAt)
		if err != nil {
			return nil, err
		}
		logs = append(logs, persistence.SystemLog{
			ID:           row.ID,
			Action:       row.Action,
			Details:      row.Details,
			UserID:       row.UserID,
			UserEmail:    row.UserEmail,
			TargetEntity: row.TargetEntity,
			TargetID:     row.TargetID,
			CreatedAt:    created,
		})
	}
	return logs, nil
}

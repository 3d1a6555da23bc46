package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/timerecording/internal/persistence"
)

// RegistrationRepository implements persistence.RegistrationRepository.
type RegistrationRepository struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	mapper *ErrorMapper
}

// NewRegistrationRepository creates a SQLite registration request repository.
func NewRegistrationRepository(pool *ConnectionPool) *RegistrationRepository {
	return &RegistrationRepository{
		pool:   pool,
		retry:  NewRetryHelper(DefaultRetryConfig()),
		mapper: NewErrorMapper(),
	}
}

type registrationRow struct {
	ID            string         `db:"id"`
	FirstName     string         `db:"first_name"`
	LastName      string         `db:"last_name"`
	Email         string         `db:"email"`
	PasswordHash  string         `db:"password_hash"`
	RequestedRole string         `db:"requested_role"`
	ManagerID     sql.NullString `db:"manager_id"`
	Status        string         `db:"status"`
	DecidedBy     sql.NullString `db:"decided_by"`
	DecidedAt     sql.NullString `db:"decided_at"`
	CreatedAt     string         `db:"created_at"`
}

const registrationColumns = `id, first_name, last_name, email, password_hash, requested_role, manager_id, status, decided_by, decided_at, created_at`

func (row registrationRow) toModel() (persistence.RegistrationRequest, error) {
	decidedAt, err := timestampPtr(row.DecidedAt)
	if err != nil {
		return persistence.RegistrationRequest{}, err
	}
	created, err := parseTimestamp(row.CreatedAt)
	if err != nil {
		return persistence.RegistrationRequest{}, err
	}
	return persistence.RegistrationRequest{
		ID:            row.ID,
		FirstName:     row.FirstName,
		LastName:      row.LastName,
		Email:         row.Email,
		PasswordHash:  row.PasswordHash,
		RequestedRole: row.RequestedRole,
		ManagerID:     stringPtr(row.ManagerID),
		Status:        row.Status,
		DecidedBy:     stringPtr(row.DecidedBy),
		DecidedAt:     decidedAt,
		CreatedAt:     created,
	}, nil
}

// CreateRegistration inserts a request. A second open request for the same
// address fails with persistence.ErrDuplicate.
func (r *RegistrationRepository) CreateRegistration(ctx context.Context, request persistence.RegistrationRequest) error {
	if request.ID == "" || request.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.db.ExecContext(ctx, `
			INSERT INTO registration_requests (`+registrationColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			request.ID, request.FirstName, request.LastName, normalizeEmail(request.Email), request.PasswordHash,
			request.RequestedRole, nullString(request.ManagerID), request.Status,
			nullString(request.DecidedBy), nullTimestamp(request.DecidedAt), formatTimestamp(request.CreatedAt),
		)
		return err
	})
}

// UpdateRegistration stores the decision columns of a request.
func (r *RegistrationRepository) UpdateRegistration(ctx context.Context, request persistence.RegistrationRequest) error {
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.db.ExecContext(ctx, `
			UPDATE registration_requests
			SET status = ?, decided_by = ?, decided_at = ?
			WHERE id = ?`,
			request.Status, nullString(request.DecidedBy), nullTimestamp(request.DecidedAt), request.ID,
		)
		if err != nil {
			return err
		}
		return expectAffected(result)
	})
}

// DeleteRegistration removes a request.
func (r *RegistrationRepository) DeleteRegistration(ctx context.Context, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.db.ExecContext(ctx, `DELETE FROM registration_requests WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return expectAffected(result)
	})
}

// GetRegistration retrieves a request by ID.
func (r *RegistrationRepository) GetRegistration(ctx context.Context, id string) (persistence.RegistrationRequest, error) {
	var row registrationRow
	if err := r.pool.db.GetContext(ctx, &row, `SELECT `+registrationColumns+` FROM registration_requests WHERE id = ?`, id); err != nil {
		return persistence.RegistrationRequest{}, r.mapper.MapError(err)
	}
	return row.toModel()
}

// ListRegistrations returns requests in status ordered by submission time.
func (r *RegistrationRepository) ListRegistrations(ctx context.Context, status string) ([]persistence.RegistrationRequest, error) {
	query := `SELECT ` + registrationColumns + ` FROM registration_requests`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at, id`

	var rows []registrationRow
	if err := r.pool.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, r.mapper.MapError(err)
	}
	requests := make([]persistence.RegistrationRequest, 0, len(rows))
	for _, row := range rows {
		request, err := row.toModel()
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, nil
}

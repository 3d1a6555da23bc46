package sqlite

import (
	"context"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/example/timerecording/internal/persistence"
)

// UserRepository implements persistence.UserRepository.
type UserRepository struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	mapper *ErrorMapper
}

// NewUserRepository creates a SQLite user repository.
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{
		pool:   pool,
		retry:  NewRetryHelper(DefaultRetryConfig()),
		mapper: NewErrorMapper(),
	}
}

type userRow struct {
	ID                 string  `db:"id"`
	FirstName          string  `db:"first_name"`
	LastName           string  `db:"last_name"`
	Email              string  `db:"email"`
	PasswordHash       string  `db:"password_hash"`
	Active             bool    `db:"active"`
	Status             string  `db:"status"`
	PlannedHoursPerDay float64 `db:"planned_hours_per_day"`
	CreatedAt          string  `db:"created_at"`
	UpdatedAt          string  `db:"updated_at"`
}

const userColumns = `id, first_name, last_name, email, password_hash, active, status, planned_hours_per_day, created_at, updated_at`

func (row userRow) toModel(roles []string) (persistence.User, error) {
	created, err := parseTimestamp(row.CreatedAt)
	if err != nil {
		return persistence.User{}, err
	}
	updated, err := parseTimestamp(row.UpdatedAt)
	if err != nil {
		return persistence.User{}, err
	}
	return persistence.User{
		ID:                 row.ID,
		FirstName:          row.FirstName,
		LastName:           row.LastName,
		Email:              row.Email,
		PasswordHash:       row.PasswordHash,
		Active:             row.Active,
		Status:             row.Status,
		PlannedHoursPerDay: row.PlannedHoursPerDay,
		Roles:              roles,
		CreatedAt:          created,
		UpdatedAt:          updated,
	}, nil
}

// CreateUser inserts a user together with its roles.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO users (`+userColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				user.ID, user.FirstName, user.LastName, normalizeEmail(user.Email), user.PasswordHash,
				user.Active, user.Status, user.PlannedHoursPerDay,
				formatTimestamp(user.CreatedAt), formatTimestamp(user.UpdatedAt),
			)
			if err != nil {
				return err
			}
			return replaceRoles(ctx, tx, user.ID, user.Roles)
		})
	})
}

// UpdateUser replaces all mutable columns and the role set of a user.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			result, err := tx.ExecContext(ctx, `
				UPDATE users
				SET first_name = ?, last_name = ?, email = ?, password_hash = ?, active = ?,
				    status = ?, planned_hours_per_day = ?, updated_at = ?
				WHERE id = ?`,
				user.FirstName, user.LastName, normalizeEmail(user.Email), user.PasswordHash, user.Active,
				user.Status, user.PlannedHoursPerDay, formatTimestamp(user.UpdatedAt), user.ID,
			)
			if err != nil {
				return err
			}
			if n, err := result.RowsAffected(); err != nil {
				return err
			} else if n == 0 {
				return persistence.ErrNotFound
			}
			return replaceRoles(ctx, tx, user.ID, user.Roles)
		})
	})
}

func replaceRoles(ctx context.Context, tx *sqlx.Tx, userID string, roles []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = ?`, userID); err != nil {
		return err
	}
	for _, role := range uniqueStrings(roles) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO user_roles (user_id, role_name) VALUES (?, ?)`, userID, role); err != nil {
			return err
		}
	}
	return nil
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if id == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByEmail retrieves a user by case-insensitive email.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	normalized := normalizeEmail(email)
	if normalized == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalized)
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...any) (persistence.User, error) {
	var row userRow
	if err := r.pool.db.GetContext(ctx, &row, query, args...); err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}
	roles, err := r.loadRoles(ctx, []string{row.ID})
	if err != nil {
		return persistence.User{}, err
	}
	return row.toModel(roles[row.ID])
}

// ListUsers returns all users ordered by last and first name.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY last_name COLLATE NOCASE, first_name COLLATE NOCASE, id`)
}

// SearchUsers matches term against first name, last name, full name and email.
func (r *UserRepository) SearchUsers(ctx context.Context, term string) ([]persistence.User, error) {
	pattern := likePattern(term)
	return r.list(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE lower(first_name) LIKE ? ESCAPE '\'
		   OR lower(last_name) LIKE ? ESCAPE '\'
		   OR lower(first_name || ' ' || last_name) LIKE ? ESCAPE '\'
		   OR email LIKE ? ESCAPE '\'
		ORDER BY last_name COLLATE NOCASE, first_name COLLATE NOCASE, id`,
		pattern, pattern, pattern, pattern)
}

func (r *UserRepository) list(ctx context.Context, query string, args ...any) ([]persistence.User, error) {
	var rows []userRow
	if err := r.pool.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, r.mapper.MapError(err)
	}
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	roles, err := r.loadRoles(ctx, ids)
	if err != nil {
		return nil, err
	}
	users := make([]persistence.User, 0, len(rows))
	for _, row := range rows {
		user, err := row.toModel(roles[row.ID])
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// CountUsers returns the number of stored users.
func (r *UserRepository) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, r.mapper.MapError(err)
	}
	return n, nil
}

// ListRoles returns the known roles ordered by name.
func (r *UserRepository) ListRoles(ctx context.Context) ([]persistence.Role, error) {
	var rows []struct {
		Name        string `db:"name"`
		Description string `db:"description"`
	}
	if err := r.pool.db.SelectContext(ctx, &rows, `SELECT name, description FROM roles ORDER BY name`); err != nil {
		return nil, r.mapper.MapError(err)
	}
	roles := make([]persistence.Role, len(rows))
	for i, row := range rows {
		roles[i] = persistence.Role{Name: row.Name, Description: row.Description}
	}
	return roles, nil
}

func (r *UserRepository) loadRoles(ctx context.Context, userIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT user_id, role_name FROM user_roles WHERE user_id IN (?) ORDER BY user_id, role_name`, userIDs)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		UserID string `db:"user_id"`
		Role   string `db:"role_name"`
	}
	if err := r.pool.db.SelectContext(ctx, &rows, r.pool.db.Rebind(query), args...); err != nil {
		return nil, r.mapper.MapError(err)
	}
	for _, row := range rows {
		out[row.UserID] = append(out[row.UserID], row.Role)
	}
	for id := range out {
		sort.Strings(out[id])
	}
	return out, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func likePattern(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

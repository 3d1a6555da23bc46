package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/example/timerecording/internal/persistence"
)

// ProjectRepository implements persistence.ProjectRepository.
type ProjectRepository struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	mapper *ErrorMapper
}

// NewProjectRepository creates a SQLite project repository.
func NewProjectRepository(pool *ConnectionPool) *ProjectRepository {
	return &ProjectRepository{
		pool:   pool,
		retry:  NewRetryHelper(DefaultRetryConfig()),
		mapper: NewErrorMapper(),
	}
}

type projectRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	Active      bool           `db:"active"`
	ManagerID   sql.NullString `db:"manager_id"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

const projectColumns = `p.id, p.name, p.description, p.active, p.manager_id, p.created_at, p.updated_at`

func (row projectRow) toModel() (persistence.Project, error) {
	created, err := parseTimestamp(row.CreatedAt)
	if err != nil {
		return persistence.Project{}, err
	}
	updated, err := parseTimestamp(row.UpdatedAt)
	if err != nil {
		return persistence.Project{}, err
	}
	return persistence.Project{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Active:      row.Active,
		ManagerID:   stringPtr(row.ManagerID),
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

// CreateProject inserts a project.
func (r *ProjectRepository) CreateProject(ctx context.Context, project persistence.Project) error {
	if project.ID == "" {
		return persistence.ErrConstraintViolation
	}
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.db.ExecContext(ctx, `
			INSERT INTO projects (id, name, description, active, manager_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			project.ID, project.Name, project.Description, project.Active, nullString(project.ManagerID),
			formatTimestamp(project.CreatedAt), formatTimestamp(project.UpdatedAt),
		)
		return err
	})
}

// UpdateProject replaces the mutable columns of a project.
func (r *ProjectRepository) UpdateProject(ctx context.Context, project persistence.Project) error {
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.db.ExecContext(ctx, `
			UPDATE projects
			SET name = ?, description = ?, active = ?, manager_id = ?, updated_at = ?
			WHERE id = ?`,
			project.Name, project.Description, project.Active, nullString(project.ManagerID),
			formatTimestamp(project.UpdatedAt), project.ID,
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
		return nil
	})
}

// GetProject retrieves a project by ID.
func (r *ProjectRepository) GetProject(ctx context.Context, id string) (persistence.Project, error) {
	var row projectRow
	if err := r.pool.db.GetContext(ctx, &row, `SELECT `+projectColumns+` FROM projects p WHERE p.id = ?`, id); err != nil {
		return persistence.Project{}, r.mapper.MapError(err)
	}
	return row.toModel()
}

// ListProjects returns projects matching filter ordered by name.
func (r *ProjectRepository) ListProjects(ctx context.Context, filter persistence.ProjectFilter) ([]persistence.Project, error) {
	var (
		where []string
		args  []any
	)
	if filter.ActiveOnly {
		where = append(where, "p.active = 1")
	}
	if filter.ManagerID != "" {
		where = append(where, "p.manager_id = ?")
		args = append(args, filter.ManagerID)
	}
	if filter.MemberID != "" {
		where = append(where, "(p.manager_id = ? OR EXISTS (SELECT 1 FROM time_entries te WHERE te.project_id = p.id AND te.user_id = ?))")
		args = append(args, filter.MemberID, filter.MemberID)
	}
	if term := strings.TrimSpace(filter.Term); term != "" {
		pattern := likePattern(term)
		where = append(where, `(lower(p.name) LIKE ? ESCAPE '\' OR lower(p.description) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	query := `SELECT ` + projectColumns + ` FROM projects p`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.name COLLATE NOCASE, p.id"

	var rows []projectRow
	if err := r.pool.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, r.mapper.MapError(err)
	}
	projects := make([]persistence.Project, 0, len(rows))
	for _, row := range rows {
		p, err := row.toModel()
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

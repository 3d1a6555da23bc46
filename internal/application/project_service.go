package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/timerecording/internal/persistence"
)

const (
	msgManagerUnknown    = "manager does not exist"
	msgManagerRole       = "must hold the MANAGER or ADMIN role"
	maxProjectName       = 200
	maxProjectDescLength = 2000
)

// ProjectRepository captures the persistence operations needed by the project service.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project persistence.Project) error
	UpdateProject(ctx context.Context, project persistence.Project) error
	GetProject(ctx context.Context, id string) (persistence.Project, error)
	ListProjects(ctx context.Context, filter persistence.ProjectFilter) ([]persistence.Project, error)
}

// UserLookup resolves users referenced by other records.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (persistence.User, error)
}

// ProjectService manages projects and their managers.
type ProjectService struct {
	projects    ProjectRepository
	users       UserLookup
	audit       AuditRecorder
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewProjectService constructs a ProjectService.
func NewProjectService(projects ProjectRepository, users UserLookup, audit AuditRecorder, idGenerator func() string, now func() time.Time) *ProjectService {
	return NewProjectServiceWithLogger(projects, users, audit, idGenerator, now, nil)
}

// NewProjectServiceWithLogger constructs a ProjectService with a specified logger.
func NewProjectServiceWithLogger(projects ProjectRepository, users UserLookup, audit AuditRecorder, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ProjectService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ProjectService{
		projects:    projects,
		users:       users,
		audit:       audit,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *ProjectService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ProjectService", operation, attrs...)
}

func (s *ProjectService) ready() error {
	if s == nil {
		return fmt.Errorf("ProjectService is nil")
	}
	if s.projects == nil {
		return fmt.Errorf("project repository not configured")
	}
	return nil
}

// ListProjects returns every project to administrators.
func (s *ProjectService) ListProjects(ctx context.Context, principal Principal) ([]Project, error) {
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	return s.list(ctx, persistence.ProjectFilter{})
}

// ListActiveProjects returns the projects time can be booked on.
func (s *ProjectService) ListActiveProjects(ctx context.Context, principal Principal) ([]Project, error) {
	if principal.UserID == "" {
		return nil, ErrUnauthenticated
	}
	return s.list(ctx, persistence.ProjectFilter{ActiveOnly: true})
}

// SearchProjects matches term against project names and descriptions.
// Non-administrators only see active projects.
func (s *ProjectService) SearchProjects(ctx context.Context, principal Principal, term string) ([]Project, error) {
	if principal.UserID == "" {
		return nil, ErrUnauthenticated
	}
	return s.list(ctx, persistence.ProjectFilter{
		ActiveOnly: !principal.IsAdmin(),
		Term:       strings.TrimSpace(term),
	})
}

// ListProjectsByManager returns the projects led by managerID.
func (s *ProjectService) ListProjectsByManager(ctx context.Context, principal Principal, managerID string, activeOnly bool) ([]Project, error) {
	if !principal.canAccessUser(managerID) {
		return nil, ErrUnauthorized
	}
	return s.list(ctx, persistence.ProjectFilter{ManagerID: managerID, ActiveOnly: activeOnly})
}

// ListProjectsForUser returns the projects userID manages or has booked time on.
func (s *ProjectService) ListProjectsForUser(ctx context.Context, principal Principal, userID string, activeOnly bool) ([]Project, error) {
	if !principal.canAccessUser(userID) {
		return nil, ErrUnauthorized
	}
	return s.list(ctx, persistence.ProjectFilter{MemberID: userID, ActiveOnly: activeOnly})
}

func (s *ProjectService) list(ctx context.Context, filter persistence.ProjectFilter) ([]Project, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	stored, err := s.projects.ListProjects(ctx, filter)
	if err != nil {
		return nil, mapRepoError(err)
	}
	out := make([]Project, 0, len(stored))
	for _, p := range stored {
		out = append(out, toProject(p))
	}
	return out, nil
}

// GetProject returns a single project.
func (s *ProjectService) GetProject(ctx context.Context, principal Principal, projectID string) (Project, error) {
	if err := s.ready(); err != nil {
		return Project{}, err
	}
	if principal.UserID == "" {
		return Project{}, ErrUnauthenticated
	}
	stored, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return Project{}, mapRepoError(err)
	}
	return toProject(stored), nil
}

// CreateProject validates input and stores a new active project.
func (s *ProjectService) CreateProject(ctx context.Context, params CreateProjectParams) (project Project, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CreateProject", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "failed to create project")
			return
		}
		logger.With("project_id", project.ID).InfoContext(ctx, "project created")
	}()

	if !params.Principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	input := normalizeProjectInput(params.Input)
	vErr := validateProjectInput(input)
	vErr.merge(s.validateManager(ctx, input.ManagerID))
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	stored := persistence.Project{
		ID:          s.idGenerator(),
		Name:        input.Name,
		Description: input.Description,
		Active:      true,
		ManagerID:   input.ManagerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err = s.projects.CreateProject(ctx, stored); err != nil {
		err = mapRepoError(err)
		return
	}

	project = toProject(stored)
	recordAudit(ctx, s.audit, AuditEntry{
		Action:       ActionProjectCreated,
		Details:      project.Name,
		Actor:        params.Principal,
		TargetEntity: "Project",
		TargetID:     project.ID,
	})
	return
}

// UpdateProject changes name and description. Administrators and the
// project's manager may update; only administrators may change the manager.
func (s *ProjectService) UpdateProject(ctx context.Context, params UpdateProjectParams) (project Project, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateProject", "principal_id", params.Principal.UserID, "project_id", params.ProjectID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "failed to update project")
			return
		}
		logger.InfoContext(ctx, "project updated")
	}()

	var existing persistence.Project
	existing, err = s.projects.GetProject(ctx, params.ProjectID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	isManager := existing.ManagerID != nil && *existing.ManagerID == params.Principal.UserID
	if !params.Principal.IsAdmin() && !isManager {
		err = ErrUnauthorized
		return
	}

	input := normalizeProjectInput(params.Input)
	if !params.Principal.IsAdmin() {
		input.ManagerID = existing.ManagerID
	}
	vErr := validateProjectInput(input)
	if params.Principal.IsAdmin() {
		vErr.merge(s.validateManager(ctx, input.ManagerID))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	existing.Name = input.Name
	existing.Description = input.Description
	existing.ManagerID = input.ManagerID
	return s.save(ctx, params.Principal, existing)
}

// ActivateProject makes a project bookable again.
func (s *ProjectService) ActivateProject(ctx context.Context, principal Principal, projectID string) (Project, error) {
	return s.adminChange(ctx, principal, projectID, func(p *persistence.Project) error {
		p.Active = true
		return nil
	})
}

// DeactivateProject stops further bookings on a project.
func (s *ProjectService) DeactivateProject(ctx context.Context, principal Principal, projectID string) (Project, error) {
	return s.adminChange(ctx, principal, projectID, func(p *persistence.Project) error {
		p.Active = false
		return nil
	})
}

// AssignManager sets the project's manager.
func (s *ProjectService) AssignManager(ctx context.Context, principal Principal, projectID, managerID string) (Project, error) {
	managerID = strings.TrimSpace(managerID)
	if managerID == "" {
		return Project{}, newValidationError("managerId", msgRequired)
	}
	return s.adminChange(ctx, principal, projectID, func(p *persistence.Project) error {
		if vErr := s.validateManager(ctx, &managerID); vErr.HasErrors() {
			return vErr
		}
		p.ManagerID = &managerID
		return nil
	})
}

// RemoveManager clears the project's manager.
func (s *ProjectService) RemoveManager(ctx context.Context, principal Principal, projectID string) (Project, error) {
	return s.adminChange(ctx, principal, projectID, func(p *persistence.Project) error {
		p.ManagerID = nil
		return nil
	})
}

func (s *ProjectService) adminChange(ctx context.Context, principal Principal, projectID string, change func(*persistence.Project) error) (Project, error) {
	if err := s.ready(); err != nil {
		return Project{}, err
	}
	if !principal.IsAdmin() {
		return Project{}, ErrUnauthorized
	}
	stored, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return Project{}, mapRepoError(err)
	}
	if err := change(&stored); err != nil {
		return Project{}, err
	}
	return s.save(ctx, principal, stored)
}

func (s *ProjectService) save(ctx context.Context, principal Principal, stored persistence.Project) (Project, error) {
	stored.UpdatedAt = s.now()
	if err := s.projects.UpdateProject(ctx, stored); err != nil {
		return Project{}, mapRepoError(err)
	}
	project := toProject(stored)
	recordAudit(ctx, s.audit, AuditEntry{
		Action:       ActionProjectUpdated,
		Details:      project.Name,
		Actor:        principal,
		TargetEntity: "Project",
		TargetID:     project.ID,
	})
	return project, nil
}

func (s *ProjectService) validateManager(ctx context.Context, managerID *string) *ValidationError {
	vErr := &ValidationError{}
	if managerID == nil || s.users == nil {
		return vErr
	}
	stored, err := s.users.GetUser(ctx, *managerID)
	switch {
	case err != nil:
		vErr.add("managerId", msgManagerUnknown)
	case !isManagerUser(stored):
		vErr.add("managerId", msgManagerRole)
	}
	return vErr
}

func normalizeProjectInput(input ProjectInput) ProjectInput {
	out := ProjectInput{
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
	}
	if input.ManagerID != nil {
		if id := strings.TrimSpace(*input.ManagerID); id != "" {
			out.ManagerID = &id
		}
	}
	return out
}

func validateProjectInput(input ProjectInput) *ValidationError {
	vErr := &ValidationError{}
	switch {
	case input.Name == "":
		vErr.add("name", msgRequired)
	case len(input.Name) > maxProjectName:
		vErr.add("name", msgTooLong)
	}
	if len(input.Description) > maxProjectDescLength {
		vErr.add("description", msgTooLong)
	}
	return vErr
}

func toProject(stored persistence.Project) Project {
	return Project{
		ID:          stored.ID,
		Name:        stored.Name,
		Description: stored.Description,
		Active:      stored.Active,
		ManagerID:   copyStringPtr(stored.ManagerID),
		CreatedAt:   stored.CreatedAt,
		UpdatedAt:   stored.UpdatedAt,
	}
}

func copyStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

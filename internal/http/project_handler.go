package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/timerecording/internal/application"
)

type projectService interface {
	ListProjects(ctx context.Context, principal application.Principal) ([]application.Project, error)
	ListActiveProjects(ctx context.Context, principal application.Principal) ([]application.Project, error)
	SearchProjects(ctx context.Context, principal application.Principal, term string) ([]application.Project, error)
	ListProjectsByManager(ctx context.Context, principal application.Principal, managerID string, activeOnly bool) ([]application.Project, error)
	ListProjectsForUser(ctx context.Context, principal application.Principal, userID string, activeOnly bool) ([]application.Project, error)
	GetProject(ctx context.Context, principal application.Principal, projectID string) (application.Project, error)
	CreateProject(ctx context.Context, params application.CreateProjectParams) (application.Project, error)
	UpdateProject(ctx context.Context, params application.UpdateProjectParams) (application.Project, error)
	ActivateProject(ctx context.Context, principal application.Principal, projectID string) (application.Project, error)
	DeactivateProject(ctx context.Context, principal application.Principal, projectID string) (application.Project, error)
	AssignManager(ctx context.Context, principal application.Principal, projectID, managerID string) (application.Project, error)
	RemoveManager(ctx context.Context, principal application.Principal, projectID string) (application.Project, error)
}

// ProjectHandler serves the project catalog.
type ProjectHandler struct {
	service   projectService
	responder responder
	logger    *slog.Logger
}

func NewProjectHandler(service projectService, logger *slog.Logger) *ProjectHandler {
	base := defaultLogger(logger)
	return &ProjectHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ProjectHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ProjectHandler", operation, attrs...)
}

func (h *ProjectHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	projects, err := h.service.ListProjects(r.Context(), principal)
	h.renderList(w, r, "List", projects, err)
}

func (h *ProjectHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	projects, err := h.service.ListActiveProjects(r.Context(), principal)
	h.renderList(w, r, "ListActive", projects, err)
}

func (h *ProjectHandler) Search(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	projects, err := h.service.SearchProjects(r.Context(), principal, r.URL.Query().Get("term"))
	h.renderList(w, r, "Search", projects, err)
}

func (h *ProjectHandler) ListByManager(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	activeOnly, err := boolQuery(r, "active")
	if err != nil {
		badRequest(r, w, h.responder, h.log(r.Context(), "ListByManager"), err, errInvalidQueryValue)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	projects, err := h.service.ListProjectsByManager(r.Context(), principal, r.PathValue("userId"), activeOnly)
	h.renderList(w, r, "ListByManager", projects, err)
}

func (h *ProjectHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	activeOnly, err := boolQuery(r, "active")
	if err != nil {
		badRequest(r, w, h.responder, h.log(r.Context(), "ListForUser"), err, errInvalidQueryValue)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	projects, err := h.service.ListProjectsForUser(r.Context(), principal, r.PathValue("userId"), activeOnly)
	h.renderList(w, r, "ListForUser", projects, err)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	project, err := h.service.GetProject(r.Context(), principal, r.PathValue("id"))
	h.renderOne(w, r, "Get", http.StatusOK, project, err)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	var req projectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(r, w, h.responder, h.log(r.Context(), "Create", "principal_id", principal.UserID), err, errBadRequestBody)
		return
	}

	project, err := h.service.CreateProject(r.Context(), application.CreateProjectParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	h.renderOne(w, r, "Create", http.StatusCreated, project, err)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	var req projectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(r, w, h.responder, h.log(r.Context(), "Update", "principal_id", principal.UserID), err, errBadRequestBody)
		return
	}

	project, err := h.service.UpdateProject(r.Context(), application.UpdateProjectParams{
		Principal: principal,
		ProjectID: r.PathValue("id"),
		Input:     req.toInput(),
	})
	h.renderOne(w, r, "Update", http.StatusOK, project, err)
}

func (h *ProjectHandler) Activate(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	project, err := h.service.ActivateProject(r.Context(), principal, r.PathValue("id"))
	h.renderOne(w, r, "Activate", http.StatusOK, project, err)
}

func (h *ProjectHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	project, err := h.service.DeactivateProject(r.Context(), principal, r.PathValue("id"))
	h.renderOne(w, r, "Deactivate", http.StatusOK, project, err)
}

func (h *ProjectHandler) AssignManager(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	var req managerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(r, w, h.responder, h.log(r.Context(), "AssignManager", "principal_id", principal.UserID), err, errBadRequestBody)
		return
	}

	project, err := h.service.AssignManager(r.Context(), principal, r.PathValue("id"), strings.TrimSpace(req.ManagerID))
	h.renderOne(w, r, "AssignManager", http.StatusOK, project, err)
}

func (h *ProjectHandler) RemoveManager(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	project, err := h.service.RemoveManager(r.Context(), principal, r.PathValue("id"))
	h.renderOne(w, r, "RemoveManager", http.StatusOK, project, err)
}

func (h *ProjectHandler) renderOne(w http.ResponseWriter, r *http.Request, operation string, status int, project application.Project, err error) {
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID)
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "project request failed", err)
		return
	}
	if r.Method != http.MethodGet {
		logger.With("project_id", project.ID).InfoContext(r.Context(), "project changed")
	}
	h.responder.writeJSON(r.Context(), w, status, toProjectDTO(project))
}

func (h *ProjectHandler) renderList(w http.ResponseWriter, r *http.Request, operation string, projects []application.Project, err error) {
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID)
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "project list failed", err)
		return
	}
	out := make([]projectDTO, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectDTO(p))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

type projectRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ManagerID   *string `json:"managerId"`
}

func (r projectRequest) toInput() application.ProjectInput {
	input := application.ProjectInput{
		Name:        strings.TrimSpace(r.Name),
		Description: strings.TrimSpace(r.Description),
	}
	if r.ManagerID != nil {
		if id := strings.TrimSpace(*r.ManagerID); id != "" {
			input.ManagerID = &id
		}
	}
	return input
}

type managerRequest struct {
	ManagerID string `json:"managerId"`
}

type projectDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Active      bool    `json:"active"`
	ManagerID   *string `json:"managerId"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

func toProjectDTO(project application.Project) projectDTO {
	return projectDTO{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		Active:      project.Active,
		ManagerID:   project.ManagerID,
		CreatedAt:   formatTimestamp(project.CreatedAt),
		UpdatedAt:   formatTimestamp(project.UpdatedAt),
	}
}

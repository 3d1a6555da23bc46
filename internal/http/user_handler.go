package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/timerecording/internal/application"
)

type userService interface {
	ListUsers(ctx context.Context, principal application.Principal) ([]application.User, error)
	SearchUsers(ctx context.Context, principal application.Principal, term string) ([]application.User, error)
	GetUser(ctx context.Context, principal application.Principal, userID string) (application.User, error)
	CreateUser(ctx context.Context, params application.CreateUserParams) (application.CreateUserResult, error)
	UpdateUser(ctx context.Context, params application.UpdateUserParams) (application.User, error)
	ActivateUser(ctx context.Context, principal application.Principal, userID string) (application.User, error)
	DeactivateUser(ctx context.Context, principal application.Principal, userID string) (application.User, error)
	SetUserStatus(ctx context.Context, principal application.Principal, userID, status string) (application.User, error)
	AddRole(ctx context.Context, principal application.Principal, userID, role string) (application.User, error)
	RemoveRole(ctx context.Context, principal application.Principal, userID, role string) (application.User, error)
	ResetPassword(ctx context.Context, principal application.Principal, userID string) (string, error)
	ListRoles(ctx context.Context, principal application.Principal) ([]application.Role, error)
}

// UserHandler serves the administrator user management endpoints.
type UserHandler struct {
	service   userService
	responder responder
	logger    *slog.Logger
}

func NewUserHandler(service userService, logger *slog.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "UserHandler", operation, attrs...)
}

func (h *UserHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)
	users, err := h.service.ListUsers(r.Context(), principal)
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "user list failed", err)
		return
	}

	logger.With("result_count", len(users)).DebugContext(r.Context(), "users listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toUserDTOs(users))
}

func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	term := r.URL.Query().Get("term")
	logger := h.log(r.Context(), "Search", "principal_id", principal.UserID)
	users, err := h.service.SearchUsers(r.Context(), principal, term)
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "user search failed", err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toUserDTOs(users))
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	userID := r.PathValue("id")
	logger := h.log(r.Context(), "Get", "principal_id", principal.UserID, "user_id", userID)
	user, err := h.service.GetUser(r.Context(), principal, userID)
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "user lookup failed", err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toUserDTO(user))
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(r, w, h.responder, logger, err, errBadRequestBody)
		return
	}

	result, err := h.service.CreateUser(r.Context(), application.CreateUserParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "user creation failed", err)
		return
	}

	logger.With("user_id", result.User.ID).InfoContext(r.Context(), "user created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, createUserResponse{
		User:              toUserDTO(result.User),
		TemporaryPassword: result.TemporaryPassword,
	})
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	userID := r.PathValue("id")
	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "user_id", userID)

	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(r, w, h.responder, logger, err, errBadRequestBody)
		return
	}

	user, err := h.service.UpdateUser(r.Context(), application.UpdateUserParams{
		Principal: principal,
		UserID:    userID,
		Input:     req.toInput(),
	})
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "user update failed", err)
		return
	}

	logger.InfoContext(r.Context(), "user updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toUserDTO(user))
}

func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	h.transition(w, r, "Activate", h.service.ActivateUser)
}

func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	h.transition(w, r, "Deactivate", h.service.DeactivateUser)
}

func (h *UserHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	userID := r.PathValue("id")
	logger := h.log(r.Context(), "SetStatus", "principal_id", principal.UserID, "user_id", userID)

	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(r, w, h.responder, logger, err, errBadRequestBody)
		return
	}

	user, err := h.service.SetUserStatus(r.Context(), principal, userID, req.Status)
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "status change failed", err)
		return
	}

	logger.With("status", user.Status).InfoContext(r.Context(), "user status changed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toUserDTO(user))
}

func (h *UserHandler) AddRole(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	h.roleChange(w, r, "AddRole", h.service.AddRole)
}

func (h *UserHandler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	h.roleChange(w, r, "RemoveRole", h.service.RemoveRole)
}

func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	userID := r.PathValue("id")
	logger := h.log(r.Context(), "ResetPassword", "principal_id", principal.UserID, "user_id", userID)

	password, err := h.service.ResetPassword(r.Context(), principal, userID)
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "password reset failed", err)
		return
	}

	logger.InfoContext(r.Context(), "password reset")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resetPasswordResponse{TemporaryPassword: password})
}

func (h *UserHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "ListRoles", "principal_id", principal.UserID)
	roles, err := h.service.ListRoles(r.Context(), principal)
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "role list failed", err)
		return
	}

	out := make([]roleDTO, 0, len(roles))
	for _, role := range roles {
		out = append(out, roleDTO{Name: role.Name, Description: role.Description})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

func (h *UserHandler) transition(w http.ResponseWriter, r *http.Request, operation string, fn func(context.Context, application.Principal, string) (application.User, error)) {
	principal, _ := PrincipalFromContext(r.Context())
	userID := r.PathValue("id")
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID, "user_id", userID)

	user, err := fn(r.Context(), principal, userID)
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "user transition failed", err)
		return
	}

	logger.With("active", user.Active).InfoContext(r.Context(), "user transitioned")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toUserDTO(user))
}

func (h *UserHandler) roleChange(w http.ResponseWriter, r *http.Request, operation string, fn func(context.Context, application.Principal, string, string) (application.User, error)) {
	principal, _ := PrincipalFromContext(r.Context())
	userID := r.PathValue("id")
	role := strings.ToUpper(strings.TrimSpace(r.PathValue("role")))
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID, "user_id", userID, "role", role)

	user, err := fn(r.Context(), principal, userID, role)
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "role change failed", err)
		return
	}

	logger.InfoContext(r.Context(), "user roles changed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toUserDTO(user))
}

type userRequest struct {
	FirstName          string   `json:"firstName"`
	LastName           string   `json:"lastName"`
	Email              string   `json:"email"`
	PlannedHoursPerDay *float64 `json:"plannedHoursPerDay"`
	Roles              []string `json:"roles"`
	Password           string   `json:"password"`
}

func (r userRequest) toInput() application.UserInput {
	roles := make([]string, 0, len(r.Roles))
	for _, role := range r.Roles {
		roles = append(roles, strings.ToUpper(strings.TrimSpace(role)))
	}
	return application.UserInput{
		FirstName:          strings.TrimSpace(r.FirstName),
		LastName:           strings.TrimSpace(r.LastName),
		Email:              strings.TrimSpace(r.Email),
		PlannedHoursPerDay: r.PlannedHoursPerDay,
		Roles:              roles,
		Password:           r.Password,
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

type createUserResponse struct {
	User              userDTO `json:"user"`
	TemporaryPassword string  `json:"temporaryPassword,omitempty"`
}

type resetPasswordResponse struct {
	TemporaryPassword string `json:"temporaryPassword"`
}

type roleDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type userDTO struct {
	ID                 string   `json:"id"`
	FirstName          string   `json:"firstName"`
	LastName           string   `json:"lastName"`
	Email              string   `json:"email"`
	Active             bool     `json:"active"`
	Status             string   `json:"status"`
	PlannedHoursPerDay float64  `json:"plannedHoursPerDay"`
	Role               string   `json:"role"`
	Roles              []string `json:"roles"`
	CreatedAt          string   `json:"createdAt"`
	UpdatedAt          string   `json:"updatedAt"`
}

func toUserDTO(user application.User) userDTO {
	return userDTO{
		ID:                 user.ID,
		FirstName:          user.FirstName,
		LastName:           user.LastName,
		Email:              user.Email,
		Active:             user.Active,
		Status:             string(user.Status),
		PlannedHoursPerDay: user.PlannedHoursPerDay,
		Role:               user.PrimaryRole(),
		Roles:              nonNilStrings(user.Roles),
		CreatedAt:          formatTimestamp(user.CreatedAt),
		UpdatedAt:          formatTimestamp(user.UpdatedAt),
	}
}

func toUserDTOs(users []application.User) []userDTO {
	out := make([]userDTO, 0, len(users))
	for _, user := range users {
		out = append(out, toUserDTO(user))
	}
	return out
}

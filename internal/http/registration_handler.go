package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/timerecording/internal/application"
)

type registrationService interface {
	Submit(ctx context.Context, input application.RegistrationInput) (application.RegistrationRequest, error)
	ListPending(ctx context.Context, principal application.Principal) ([]application.RegistrationRequest, error)
	Approve(ctx context.Context, principal application.Principal, requestID string) (application.User, error)
	Reject(ctx context.Context, principal application.Principal, requestID string) error
}

// RegistrationHandler serves the public sign up and its administrator review.
type RegistrationHandler struct {
	service   registrationService
	responder responder
	logger    *slog.Logger
}

func NewRegistrationHandler(service registrationService, logger *slog.Logger) *RegistrationHandler {
	base := defaultLogger(logger)
	return &RegistrationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RegistrationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RegistrationHandler", operation, attrs...)
}

func (h *RegistrationHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

// Submit stores a registration request. It needs no access token.
func (h *RegistrationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	logger := h.log(r.Context(), "Submit")
	var req registrationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(r, w, h.responder, logger, err, errBadRequestBody)
		return
	}

	request, err := h.service.Submit(r.Context(), application.RegistrationInput{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Password:      req.Password,
		RequestedRole: req.RequestedRole,
		ManagerID:     req.ManagerID,
	})
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "registration failed", err)
		return
	}

	logger.With("registration_id", request.ID).InfoContext(r.Context(), "registration submitted")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toRegistrationDTO(request))
}

func (h *RegistrationHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "ListPending", "principal_id", principal.UserID)
	requests, err := h.service.ListPending(r.Context(), principal)
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "registration list failed", err)
		return
	}

	out := make([]registrationDTO, 0, len(requests))
	for _, request := range requests {
		out = append(out, toRegistrationDTO(request))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

func (h *RegistrationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	requestID := r.PathValue("id")
	logger := h.log(r.Context(), "Approve", "principal_id", principal.UserID, "registration_id", requestID)
	user, err := h.service.Approve(r.Context(), principal, requestID)
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "registration approval failed", err)
		return
	}

	logger.With("user_id", user.ID).InfoContext(r.Context(), "registration approved")
	created := toUserDTO(user)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, registrationDecisionResponse{
		Message: "Registrierungsanfrage genehmigt und Benutzer erstellt.",
		User:    &created,
	})
}

func (h *RegistrationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	requestID := r.PathValue("id")
	logger := h.log(r.Context(), "Reject", "principal_id", principal.UserID, "registration_id", requestID)
	if err := h.service.Reject(r.Context(), principal, requestID); err != nil {
		serviceFailure(r, w, h.responder, logger, "registration rejection failed", err)
		return
	}

	logger.InfoContext(r.Context(), "registration rejected")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, registrationDecisionResponse{
		Message: "Registrierungsanfrage wurde abgelehnt und entfernt. Die Person kann sich erneut registrieren.",
	})
}

type registrationRequest struct {
	FirstName     string  `json:"firstName"`
	LastName      string  `json:"lastName"`
	Email         string  `json:"email"`
	Password      string  `json:"password"`
	RequestedRole string  `json:"requestedRole"`
	ManagerID     *string `json:"managerId"`
}

type registrationDTO struct {
	ID            string  `json:"id"`
	FirstName     string  `json:"firstName"`
	LastName      string  `json:"lastName"`
	Email         string  `json:"email"`
	RequestedRole string  `json:"requestedRole"`
	ManagerID     *string `json:"managerId,omitempty"`
	ManagerName   string  `json:"managerName"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"createdAt"`
}

type registrationDecisionResponse struct {
	Message string   `json:"message"`
	User    *userDTO `json:"user,omitempty"`
}

func toRegistrationDTO(request application.RegistrationRequest) registrationDTO {
	managerName := request.ManagerName
	if managerName == "" {
		managerName = "N/A"
	}
	return registrationDTO{
		ID:            request.ID,
		FirstName:     request.FirstName,
		LastName:      request.LastName,
		Email:         request.Email,
		RequestedRole: request.RequestedRole,
		ManagerID:     request.ManagerID,
		ManagerName:   managerName,
		Status:        string(request.Status),
		CreatedAt:     formatTimestamp(request.CreatedAt),
	}
}

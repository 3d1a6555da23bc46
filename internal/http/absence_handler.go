package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/timerecording/internal/application"
)

type absenceService interface {
	CreateAbsence(ctx context.Context, params application.CreateAbsenceParams) (application.Absence, error)
	UpdateAbsence(ctx context.Context, params application.UpdateAbsenceParams) (application.Absence, error)
	DeleteAbsence(ctx context.Context, principal application.Principal, absenceID string) error
	ApproveAbsence(ctx context.Context, principal application.Principal, absenceID string) (application.Absence, error)
	RejectAbsence(ctx context.Context, principal application.Principal, absenceID string) (application.Absence, error)
	ListOwnAbsences(ctx context.Context, principal application.Principal) ([]application.Absence, error)
	ListAbsencesForUser(ctx context.Context, principal application.Principal, userID string) ([]application.Absence, error)
	ListPendingAbsences(ctx context.Context, principal application.Principal) ([]application.Absence, error)
	ListApprovedAbsences(ctx context.Context, principal application.Principal) ([]application.Absence, error)
	ListAbsencesByType(ctx context.Context, principal application.Principal, absenceType string) ([]application.Absence, error)
	ListUpcomingAbsences(ctx context.Context, principal application.Principal, userID string) ([]application.Absence, error)
	HasApprovedAbsenceOn(ctx context.Context, principal application.Principal, userID, date string) (bool, error)
	SumAbsenceDays(ctx context.Context, params application.SumAbsenceDaysParams) (int, error)
}

// AbsenceHandler serves absence requests, decisions and reports.
type AbsenceHandler struct {
	service   absenceService
	responder responder
	logger    *slog.Logger
}

func NewAbsenceHandler(service absenceService, logger *slog.Logger) *AbsenceHandler {
	base := defaultLogger(logger)
	return &AbsenceHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AbsenceHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AbsenceHandler", operation, attrs...)
}

func (h *AbsenceHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *AbsenceHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	absences, err := h.service.ListOwnAbsences(r.Context(), principal)
	h.renderList(w, r, "ListOwn", absences, err)
}

func (h *AbsenceHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	absences, err := h.service.ListAbsencesForUser(r.Context(), principal, r.PathValue("userId"))
	h.renderList(w, r, "ListForUser", absences, err)
}

func (h *AbsenceHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	absences, err := h.service.ListPendingAbsences(r.Context(), principal)
	h.renderList(w, r, "ListPending", absences, err)
}

func (h *AbsenceHandler) ListApproved(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	absences, err := h.service.ListApprovedAbsences(r.Context(), principal)
	h.renderList(w, r, "ListApproved", absences, err)
}

func (h *AbsenceHandler) ListByType(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	absenceType := strings.ToUpper(strings.TrimSpace(r.PathValue("type")))
	absences, err := h.service.ListAbsencesByType(r.Context(), principal, absenceType)
	h.renderList(w, r, "ListByType", absences, err)
}

func (h *AbsenceHandler) ListUpcoming(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	absences, err := h.service.ListUpcomingAbsences(r.Context(), principal, r.PathValue("userId"))
	h.renderList(w, r, "ListUpcoming", absences, err)
}

func (h *AbsenceHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	var req absenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(r, w, h.responder, h.log(r.Context(), "Create", "principal_id", principal.UserID), err, errBadRequestBody)
		return
	}

	absence, err := h.service.CreateAbsence(r.Context(), application.CreateAbsenceParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	h.renderOne(w, r, "Create", http.StatusCreated, absence, err)
}

func (h *AbsenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	var req absenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(r, w, h.responder, h.log(r.Context(), "Update", "principal_id", principal.UserID), err, errBadRequestBody)
		return
	}

	absence, err := h.service.UpdateAbsence(r.Context(), application.UpdateAbsenceParams{
		Principal: principal,
		AbsenceID: r.PathValue("id"),
		Input:     req.toInput(),
	})
	h.renderOne(w, r, "Update", http.StatusOK, absence, err)
}

func (h *AbsenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	absenceID := r.PathValue("id")
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "absence_id", absenceID)
	if err := h.service.DeleteAbsence(r.Context(), principal, absenceID); err != nil {
		serviceFailure(r, w, h.responder, logger, "absence delete failed", err)
		return
	}

	logger.InfoContext(r.Context(), "absence deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *AbsenceHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	absence, err := h.service.ApproveAbsence(r.Context(), principal, r.PathValue("id"))
	h.renderOne(w, r, "Approve", http.StatusOK, absence, err)
}

func (h *AbsenceHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	absence, err := h.service.RejectAbsence(r.Context(), principal, r.PathValue("id"))
	h.renderOne(w, r, "Reject", http.StatusOK, absence, err)
}

// Check answers whether a user has an approved absence on a day.
func (h *AbsenceHandler) Check(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()
	userID := strings.TrimSpace(query.Get("userId"))
	if userID == "" {
		userID = principal.UserID
	}
	logger := h.log(r.Context(), "Check", "principal_id", principal.UserID, "user_id", userID)

	absent, err := h.service.HasApprovedAbsenceOn(r.Context(), principal, userID, strings.TrimSpace(query.Get("date")))
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "absence check failed", err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, absenceCheckResponse{UserID: userID, Absent: absent})
}

// Days sums approved absence days of a user within an optional range.
func (h *AbsenceHandler) Days(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()
	params := application.SumAbsenceDaysParams{
		Principal: principal,
		UserID:    r.PathValue("userId"),
		Type:      strings.ToUpper(strings.TrimSpace(query.Get("type"))),
		From:      strings.TrimSpace(query.Get("from")),
		To:        strings.TrimSpace(query.Get("to")),
	}
	logger := h.log(r.Context(), "Days", "principal_id", principal.UserID, "user_id", params.UserID)

	days, err := h.service.SumAbsenceDays(r.Context(), params)
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "absence day sum failed", err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, absenceDaysResponse{
		UserID: params.UserID,
		Type:   params.Type,
		From:   params.From,
		To:     params.To,
		Days:   days,
	})
}

func (h *AbsenceHandler) renderOne(w http.ResponseWriter, r *http.Request, operation string, status int, absence application.Absence, err error) {
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID)
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "absence request failed", err)
		return
	}
	logger.With("absence_id", absence.ID, "status", absence.Status).InfoContext(r.Context(), "absence saved")
	h.responder.writeJSON(r.Context(), w, status, toAbsenceDTO(absence))
}

func (h *AbsenceHandler) renderList(w http.ResponseWriter, r *http.Request, operation string, absences []application.Absence, err error) {
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID)
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "absence list failed", err)
		return
	}
	out := make([]absenceDTO, 0, len(absences))
	for _, absence := range absences {
		out = append(out, toAbsenceDTO(absence))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

type absenceRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Type      string `json:"type"`
}

func (r absenceRequest) toInput() application.AbsenceInput {
	return application.AbsenceInput{
		StartDate: strings.TrimSpace(r.StartDate),
		EndDate:   strings.TrimSpace(r.EndDate),
		Type:      strings.ToUpper(strings.TrimSpace(r.Type)),
	}
}

type absenceCheckResponse struct {
	UserID string `json:"userId"`
	Absent bool   `json:"absent"`
}

type absenceDaysResponse struct {
	UserID string `json:"userId"`
	Type   string `json:"type,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Days   int    `json:"days"`
}

type absenceDTO struct {
	ID         string  `json:"id"`
	UserID     string  `json:"userId"`
	StartDate  string  `json:"startDate"`
	EndDate    string  `json:"endDate"`
	Type       string  `json:"type"`
	Status     string  `json:"status"`
	Days       int     `json:"days"`
	ApproverID *string `json:"approverId"`
	ApprovedAt *string `json:"approvedAt"`
	CreatedAt  string  `json:"createdAt"`
	UpdatedAt  string  `json:"updatedAt"`
}

func toAbsenceDTO(absence application.Absence) absenceDTO {
	return absenceDTO{
		ID:         absence.ID,
		UserID:     absence.UserID,
		StartDate:  formatDate(absence.StartDate),
		EndDate:    formatDate(absence.EndDate),
		Type:       string(absence.Type),
		Status:     string(absence.Status),
		Days:       absence.Days,
		ApproverID: absence.ApproverID,
		ApprovedAt: formatOptionalTimestamp(absence.ApprovedAt),
		CreatedAt:  formatTimestamp(absence.CreatedAt),
		UpdatedAt:  formatTimestamp(absence.UpdatedAt),
	}
}

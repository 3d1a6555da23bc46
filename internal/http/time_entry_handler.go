package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/timerecording/internal/application"
)

type timeEntryService interface {
	CreateTimeEntry(ctx context.Context, params application.CreateTimeEntryParams) (application.TimeEntry, error)
	UpdateTimeEntry(ctx context.Context, params application.UpdateTimeEntryParams) (application.TimeEntry, error)
	DeleteTimeEntry(ctx context.Context, principal application.Principal, entryID string) error
	ListOwnTimeEntries(ctx context.Context, principal application.Principal) ([]application.TimeEntry, error)
	ListTimeEntriesForUser(ctx context.Context, principal application.Principal, userID string) ([]application.TimeEntry, error)
	StartTracking(ctx context.Context, principal application.Principal) (application.TimeEntry, error)
	StopTracking(ctx context.Context, principal application.Principal, entryID string) (application.TimeEntry, error)
	AssignProject(ctx context.Context, principal application.Principal, entryID, projectID string) (application.TimeEntry, error)
}

// TimeEntryHandler serves working day records and clock in/out.
type TimeEntryHandler struct {
	service   timeEntryService
	responder responder
	logger    *slog.Logger
}

func NewTimeEntryHandler(service timeEntryService, logger *slog.Logger) *TimeEntryHandler {
	base := defaultLogger(logger)
	return &TimeEntryHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *TimeEntryHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "TimeEntryHandler", operation, attrs...)
}

func (h *TimeEntryHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *TimeEntryHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	entries, err := h.service.ListOwnTimeEntries(r.Context(), principal)
	h.renderList(w, r, "ListOwn", entries, err)
}

func (h *TimeEntryHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	entries, err := h.service.ListTimeEntriesForUser(r.Context(), principal, r.PathValue("userId"))
	h.renderList(w, r, "ListForUser", entries, err)
}

func (h *TimeEntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	var req timeEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(r, w, h.responder, h.log(r.Context(), "Create", "principal_id", principal.UserID), err, errBadRequestBody)
		return
	}

	entry, err := h.service.CreateTimeEntry(r.Context(), application.CreateTimeEntryParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	h.renderOne(w, r, "Create", http.StatusCreated, entry, err)
}

func (h *TimeEntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	var req timeEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(r, w, h.responder, h.log(r.Context(), "Update", "principal_id", principal.UserID), err, errBadRequestBody)
		return
	}

	entry, err := h.service.UpdateTimeEntry(r.Context(), application.UpdateTimeEntryParams{
		Principal: principal,
		EntryID:   r.PathValue("id"),
		Input:     req.toInput(),
	})
	h.renderOne(w, r, "Update", http.StatusOK, entry, err)
}

func (h *TimeEntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	entryID := r.PathValue("id")
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "entry_id", entryID)
	if err := h.service.DeleteTimeEntry(r.Context(), principal, entryID); err != nil {
		serviceFailure(r, w, h.responder, logger, "time entry delete failed", err)
		return
	}

	logger.InfoContext(r.Context(), "time entry deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *TimeEntryHandler) Start(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	entry, err := h.service.StartTracking(r.Context(), principal)
	h.renderOne(w, r, "Start", http.StatusOK, entry, err)
}

func (h *TimeEntryHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	entry, err := h.service.StopTracking(r.Context(), principal, r.PathValue("id"))
	h.renderOne(w, r, "Stop", http.StatusOK, entry, err)
}

func (h *TimeEntryHandler) AssignProject(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	var req assignProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(r, w, h.responder, h.log(r.Context(), "AssignProject", "principal_id", principal.UserID), err, errBadRequestBody)
		return
	}

	entry, err := h.service.AssignProject(r.Context(), principal, r.PathValue("id"), strings.TrimSpace(req.ProjectID))
	h.renderOne(w, r, "AssignProject", http.StatusOK, entry, err)
}

func (h *TimeEntryHandler) renderOne(w http.ResponseWriter, r *http.Request, operation string, status int, entry application.TimeEntry, err error) {
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID)
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "time entry request failed", err)
		return
	}
	logger.With("entry_id", entry.ID, "active", entry.Active).InfoContext(r.Context(), "time entry saved")
	h.responder.writeJSON(r.Context(), w, status, toTimeEntryDTO(entry))
}

func (h *TimeEntryHandler) renderList(w http.ResponseWriter, r *http.Request, operation string, entries []application.TimeEntry, err error) {
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID)
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "time entry list failed", err)
		return
	}
	out := make([]timeEntryDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toTimeEntryDTO(entry))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

type breakDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type timeEntryRequest struct {
	Date       string     `json:"date"`
	StartTimes []string   `json:"startTimes"`
	EndTimes   []string   `json:"endTimes"`
	Breaks     []breakDTO `json:"breaks"`
	ProjectID  *string    `json:"projectId"`
}

func (r timeEntryRequest) toInput() application.TimeEntryInput {
	input := application.TimeEntryInput{
		Date:       strings.TrimSpace(r.Date),
		StartTimes: trimAll(r.StartTimes),
		EndTimes:   trimAll(r.EndTimes),
	}
	for _, b := range r.Breaks {
		input.Breaks = append(input.Breaks, application.Break{
			Start: strings.TrimSpace(b.Start),
			End:   strings.TrimSpace(b.End),
		})
	}
	if r.ProjectID != nil {
		if id := strings.TrimSpace(*r.ProjectID); id != "" {
			input.ProjectID = &id
		}
	}
	return input
}

type assignProjectRequest struct {
	ProjectID string `json:"projectId"`
}

type timeEntryDTO struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	Date          string     `json:"date"`
	StartTimes    []string   `json:"startTimes"`
	EndTimes      []string   `json:"endTimes"`
	Breaks        []breakDTO `json:"breaks"`
	ProjectID     *string    `json:"projectId"`
	ActualMinutes int        `json:"actualMinutes"`
	ActualHours   string     `json:"actualHours"`
	PlannedHours  string     `json:"plannedHours"`
	Difference    string     `json:"difference"`
	Active        bool       `json:"active"`
	CreatedAt     string     `json:"createdAt"`
	UpdatedAt     string     `json:"updatedAt"`
}

func toTimeEntryDTO(entry application.TimeEntry) timeEntryDTO {
	breaks := make([]breakDTO, 0, len(entry.Breaks))
	for _, b := range entry.Breaks {
		breaks = append(breaks, breakDTO{Start: b.Start, End: b.End})
	}
	return timeEntryDTO{
		ID:            entry.ID,
		UserID:        entry.UserID,
		Date:          formatDate(entry.Date),
		StartTimes:    nonNilStrings(entry.StartTimes),
		EndTimes:      nonNilStrings(entry.EndTimes),
		Breaks:        breaks,
		ProjectID:     entry.ProjectID,
		ActualMinutes: entry.ActualMinutes,
		ActualHours:   entry.ActualHours,
		PlannedHours:  entry.PlannedHours,
		Difference:    entry.Difference,
		Active:        entry.Active,
		CreatedAt:     formatTimestamp(entry.CreatedAt),
		UpdatedAt:     formatTimestamp(entry.UpdatedAt),
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}

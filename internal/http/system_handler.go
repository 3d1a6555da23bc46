package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/timerecording/internal/application"
)

const defaultLogLimit = 100

type auditLogService interface {
	ListLogs(ctx context.Context, principal application.Principal, limit int) ([]application.SystemLog, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves the audit log and the health check.
type SystemHandler struct {
	logs      auditLogService
	db        Pinger
	responder responder
	logger    *slog.Logger
}

func NewSystemHandler(logs auditLogService, db Pinger, logger *slog.Logger) *SystemHandler {
	base := defaultLogger(logger)
	return &SystemHandler{logs: logs, db: db, responder: newResponder(base), logger: base}
}

func (h *SystemHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SystemHandler", operation, attrs...)
}

// ListLogs returns the newest audit records. limit defaults to 100.
func (h *SystemHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.logs == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "ListLogs", "principal_id", principal.UserID)

	limit := defaultLogLimit
	if value := strings.TrimSpace(r.URL.Query().Get("limit")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			badRequest(r, w, h.responder, logger, err, errInvalidQueryValue)
			return
		}
		limit = parsed
	}

	logs, err := h.logs.ListLogs(r.Context(), principal, limit)
	if err != nil {
		serviceFailure(r, w, h.responder, logger, "audit log list failed", err)
		return
	}

	out := make([]systemLogDTO, 0, len(logs))
	for _, entry := range logs {
		out = append(out, systemLogDTO{
			ID:           entry.ID,
			Action:       entry.Action,
			Details:      entry.Details,
			UserID:       entry.UserID,
			UserEmail:    entry.UserEmail,
			TargetEntity: entry.TargetEntity,
			TargetID:     entry.TargetID,
			Timestamp:    formatTimestamp(entry.CreatedAt),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

// Health pings the database. It is served without authentication.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if h.db == nil {
		h.responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		h.log(r.Context(), "Health").ErrorContext(r.Context(), "database unreachable", "error", err)
		h.responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Database: "down"})
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok", Database: "up"})
}

type systemLogDTO struct {
	ID           string `json:"id"`
	Action       string `json:"action"`
	Details      string `json:"details,omitempty"`
	UserID       string `json:"userId,omitempty"`
	UserEmail    string `json:"userEmail,omitempty"`
	TargetEntity string `json:"targetEntity,omitempty"`
	TargetID     string `json:"targetId,omitempty"`
	Timestamp    string `json:"timestamp"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

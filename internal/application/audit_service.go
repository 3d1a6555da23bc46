package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/timerecording/internal/persistence"
)

// DefaultLogLimit bounds audit listings when the caller gives no limit.
const DefaultLogLimit = 100

// SystemLogRepository persists the audit trail.
type SystemLogRepository interface {
	AppendSystemLog(ctx context.Context, entry persistence.SystemLog) error
	ListSystemLogs(ctx context.Context, limit int) ([]persistence.SystemLog, error)
}

// AuditRecorder appends audit records on behalf of other services.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditService writes and reads the audit trail.
type AuditService struct {
	logs        SystemLogRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAuditService constructs an AuditService.
func NewAuditService(logs SystemLogRepository, idGenerator func() string, now func() time.Time) *AuditService {
	return NewAuditServiceWithLogger(logs, idGenerator, now, nil)
}

// NewAuditServiceWithLogger constructs an AuditService with a specified logger.
func NewAuditServiceWithLogger(logs SystemLogRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AuditService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AuditService{logs: logs, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *AuditService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuditService", operation, attrs...)
}

// Record appends entry. A failed write is logged and otherwise ignored so that
// the business operation that triggered it still succeeds.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	if s == nil || s.logs == nil {
		return
	}
	record := persistence.SystemLog{
		ID:           s.idGenerator(),
		Action:       entry.Action,
		Details:      strings.TrimSpace(entry.Details),
		UserID:       entry.Actor.UserID,
		UserEmail:    entry.Actor.Email,
		TargetEntity: entry.TargetEntity,
		TargetID:     entry.TargetID,
		CreatedAt:    s.now(),
	}
	if err := s.logs.AppendSystemLog(ctx, record); err != nil {
		s.loggerWith(ctx, "Record", "action", entry.Action).
			ErrorContext(ctx, "failed to append audit record", "error", err)
	}
}

// ListLogs returns the newest audit records for administrators.
func (s *AuditService) ListLogs(ctx context.Context, principal Principal, limit int) ([]SystemLog, error) {
	if s == nil {
		return nil, fmt.Errorf("AuditService is nil")
	}
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if s.logs == nil {
		return []SystemLog{}, nil
	}
	if limit <= 0 {
		limit = DefaultLogLimit
	}

	records, err := s.logs.ListSystemLogs(ctx, limit)
	if err != nil {
		return nil, mapRepoError(err)
	}
	out := make([]SystemLog, 0, len(records))
	for _, r := range records {
		out = append(out, SystemLog{
			ID:           r.ID,
			Action:       r.Action,
			Details:      r.Details,
			UserID:       r.UserID,
			UserEmail:    r.UserEmail,
			TargetEntity: r.TargetEntity,
			TargetID:     r.TargetID,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out, nil
}

func recordAudit(ctx context.Context, audit AuditRecorder, entry AuditEntry) {
	if audit == nil {
		return
	}
	audit.Record(ctx, entry)
}

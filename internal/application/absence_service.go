package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/timerecording/internal/persistence"
	"github.com/example/timerecording/internal/worktime"
)

// MaxAbsenceDays is the longest absence, in inclusive calendar days, that can
// be requested at once.
const MaxAbsenceDays = 60

const (
	msgEndBeforeStart      = "must not be before start date"
	msgStartInPast         = "must not be in the past"
	msgAbsenceTooLong      = "must not exceed 60 days"
	msgUnknownAbsenceType  = "unknown absence type"
	absenceTargetEntity    = "Absence"
	absenceDetailsTemplate = "%s %s..%s"
)

// openStatuses are the statuses that block overlapping requests.
var openStatuses = []string{string(AbsencePending), string(AbsenceApproved)}

// AbsenceRepository captures the persistence operations needed by the absence service.
type AbsenceRepository interface {
	CreateAbsence(ctx context.Context, absence persistence.Absence) error
	UpdateAbsence(ctx context.Context, absence persistence.Absence) error
	DeleteAbsence(ctx context.Context, id string) error
	GetAbsence(ctx context.Context, id string) (persistence.Absence, error)
	ListAbsences(ctx context.Context, filter persistence.AbsenceFilter) ([]persistence.Absence, error)
	WithinTransaction(ctx context.Context, fn func(repo persistence.AbsenceRepository) error) error
}

// AbsenceService manages absence requests and their approval.
type AbsenceService struct {
	absences    AbsenceRepository
	audit       AuditRecorder
	calendar    *worktime.Calendar
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAbsenceService constructs an AbsenceService. A nil calendar uses UTC.
func NewAbsenceService(absences AbsenceRepository, audit AuditRecorder, calendar *worktime.Calendar, idGenerator func() string, now func() time.Time) *AbsenceService {
	return NewAbsenceServiceWithLogger(absences, audit, calendar, idGenerator, now, nil)
}

// NewAbsenceServiceWithLogger constructs an AbsenceService with a specified logger.
func NewAbsenceServiceWithLogger(absences AbsenceRepository, audit AuditRecorder, calendar *worktime.Calendar, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AbsenceService {
	if calendar == nil {
		calendar = worktime.NewCalendar(time.UTC)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AbsenceService{
		absences:    absences,
		audit:       audit,
		calendar:    calendar,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *AbsenceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AbsenceService", operation, attrs...)
}

func (s *AbsenceService) ready() error {
	if s == nil {
		return fmt.Errorf("AbsenceService is nil")
	}
	if s.absences == nil {
		return fmt.Errorf("absence repository not configured")
	}
	return nil
}

// CreateAbsence requests an absence for the principal. The request must not
// overlap the principal's pending or approved absences.
func (s *AbsenceService) CreateAbsence(ctx context.Context, params CreateAbsenceParams) (absence Absence, err error) {
	if err = s.ready(); err != nil {
		return
	}
	if params.Principal.UserID == "" {
		err = ErrUnauthenticated
		return
	}

	logger := s.loggerWith(ctx, "CreateAbsence",
		"user_id", params.Principal.UserID,
		"start_date", params.Input.StartDate,
		"end_date", params.Input.EndDate,
	)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "failed to create absence")
			return
		}
		logger.With("absence_id", absence.ID).InfoContext(ctx, "absence requested")
	}()

	now := s.now()
	var (
		period worktime.DateRange
		kind   AbsenceType
	)
	if period, kind, err = validateAbsenceInput(params.Input, s.calendar.Today(now)); err != nil {
		return
	}

	stored := persistence.Absence{
		ID:        s.idGenerator(),
		UserID:    params.Principal.UserID,
		StartDate: period.Start,
		EndDate:   period.End,
		Type:      string(kind),
		Status:    string(AbsencePending),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.absences.WithinTransaction(ctx, func(repo persistence.AbsenceRepository) error {
		if err := ensureNoOverlap(ctx, repo, stored.UserID, period, ""); err != nil {
			return err
		}
		return repo.CreateAbsence(ctx, stored)
	})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	absence = toAbsence(stored)
	s.record(ctx, params.Principal, ActionAbsenceCreated, absence)
	return
}

// UpdateAbsence changes the dates or type of a pending absence. Owners and
// administrators may update.
func (s *AbsenceService) UpdateAbsence(ctx context.Context, params UpdateAbsenceParams) (absence Absence, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateAbsence", "user_id", params.Principal.UserID, "absence_id", params.AbsenceID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "failed to update absence")
			return
		}
		logger.InfoContext(ctx, "absence updated")
	}()

	now := s.now()
	var (
		period worktime.DateRange
		kind   AbsenceType
	)
	if period, kind, err = validateAbsenceInput(params.Input, s.calendar.Today(now)); err != nil {
		return
	}

	var stored persistence.Absence
	err = s.absences.WithinTransaction(ctx, func(repo persistence.AbsenceRepository) error {
		var err error
		stored, err = repo.GetAbsence(ctx, params.AbsenceID)
		if err != nil {
			return err
		}
		if stored.UserID != params.Principal.UserID && !params.Principal.IsAdmin() {
			return ErrUnauthorized
		}
		if stored.Status != string(AbsencePending) {
			return ErrInvalidState
		}
		if err := ensureNoOverlap(ctx, repo, stored.UserID, period, stored.ID); err != nil {
			return err
		}
		stored.StartDate = period.Start
		stored.EndDate = period.End
		stored.Type = string(kind)
		stored.UpdatedAt = now
		return repo.UpdateAbsence(ctx, stored)
	})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	absence = toAbsence(stored)
	s.record(ctx, params.Principal, ActionAbsenceUpdated, absence)
	return
}

// DeleteAbsence removes an absence. Owners and administrators may delete.
func (s *AbsenceService) DeleteAbsence(ctx context.Context, principal Principal, absenceID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteAbsence", "user_id", principal.UserID, "absence_id", absenceID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "failed to delete absence")
			return
		}
		logger.InfoContext(ctx, "absence deleted")
	}()

	var stored persistence.Absence
	if stored, err = s.absences.GetAbsence(ctx, absenceID); err != nil {
		err = mapRepoError(err)
		return
	}
	if stored.UserID != principal.UserID && !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	if err = s.absences.DeleteAbsence(ctx, absenceID); err != nil {
		err = mapRepoError(err)
		return
	}
	s.record(ctx, principal, ActionAbsenceDeleted, toAbsence(stored))
	return
}

// ApproveAbsence approves a pending absence.
func (s *AbsenceService) ApproveAbsence(ctx context.Context, principal Principal, absenceID string) (Absence, error) {
	return s.decide(ctx, principal, absenceID, AbsenceApproved, ActionAbsenceApproved)
}

// RejectAbsence rejects a pending absence.
func (s *AbsenceService) RejectAbsence(ctx context.Context, principal Principal, absenceID string) (Absence, error) {
	return s.decide(ctx, principal, absenceID, AbsenceRejected, ActionAbsenceRejected)
}

// decide moves a pending absence to status. Managers and administrators
// decide, but never on their own absences.
func (s *AbsenceService) decide(ctx context.Context, principal Principal, absenceID string, status AbsenceStatus, action string) (absence Absence, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DecideAbsence", "principal_id", principal.UserID, "absence_id", absenceID, "status", string(status))
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "failed to decide absence")
			return
		}
		logger.InfoContext(ctx, "absence decided")
	}()

	if !principal.canSupervise() {
		err = ErrUnauthorized
		return
	}

	var stored persistence.Absence
	err = s.absences.WithinTransaction(ctx, func(repo persistence.AbsenceRepository) error {
		var err error
		stored, err = repo.GetAbsence(ctx, absenceID)
		if err != nil {
			return err
		}
		if stored.UserID == principal.UserID {
			return ErrUnauthorized
		}
		if stored.Status != string(AbsencePending) {
			return ErrInvalidState
		}
		now := s.now()
		approver := principal.UserID
		stored.Status = string(status)
		stored.ApproverID = &approver
		stored.ApprovedAt = &now
		stored.UpdatedAt = now
		return repo.UpdateAbsence(ctx, stored)
	})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	absence = toAbsence(stored)
	s.record(ctx, principal, action, absence)
	return
}

// ListOwnAbsences returns the principal's absences.
func (s *AbsenceService) ListOwnAbsences(ctx context.Context, principal Principal) ([]Absence, error) {
	if principal.UserID == "" {
		return nil, ErrUnauthenticated
	}
	return s.ListAbsencesForUser(ctx, principal, principal.UserID)
}

// ListAbsencesForUser returns userID's absences to the user, managers and administrators.
func (s *AbsenceService) ListAbsencesForUser(ctx context.Context, principal Principal, userID string) ([]Absence, error) {
	if !principal.canAccessUser(userID) {
		return nil, ErrUnauthorized
	}
	return s.list(ctx, persistence.AbsenceFilter{UserID: userID})
}

// ListPendingAbsences returns every absence awaiting a decision.
func (s *AbsenceService) ListPendingAbsences(ctx context.Context, principal Principal) ([]Absence, error) {
	if !principal.canSupervise() {
		return nil, ErrUnauthorized
	}
	return s.list(ctx, persistence.AbsenceFilter{Statuses: []string{string(AbsencePending)}})
}

// ListApprovedAbsences returns every approved absence.
func (s *AbsenceService) ListApprovedAbsences(ctx context.Context, principal Principal) ([]Absence, error) {
	if !principal.canSupervise() {
		return nil, ErrUnauthorized
	}
	return s.list(ctx, persistence.AbsenceFilter{Statuses: []string{string(AbsenceApproved)}})
}

// ListAbsencesByType returns every absence of the given type.
func (s *AbsenceService) ListAbsencesByType(ctx context.Context, principal Principal, absenceType string) ([]Absence, error) {
	if !principal.canSupervise() {
		return nil, ErrUnauthorized
	}
	kind, vErr := parseAbsenceType("type", absenceType)
	if vErr.HasErrors() {
		return nil, vErr
	}
	return s.list(ctx, persistence.AbsenceFilter{Type: string(kind)})
}

// ListUpcomingAbsences returns userID's pending and approved absences that
// have not ended before today.
func (s *AbsenceService) ListUpcomingAbsences(ctx context.Context, principal Principal, userID string) ([]Absence, error) {
	if !principal.canAccessUser(userID) {
		return nil, ErrUnauthorized
	}
	today := s.calendar.Today(s.now())
	return s.list(ctx, persistence.AbsenceFilter{UserID: userID, Statuses: openStatuses, EndsOnOrAfter: &today})
}

// HasApprovedAbsenceOn reports whether userID has an approved absence on date.
func (s *AbsenceService) HasApprovedAbsenceOn(ctx context.Context, principal Principal, userID, date string) (bool, error) {
	if !principal.canAccessUser(userID) {
		return false, ErrUnauthorized
	}
	day, vErr := parseRequiredDate("date", date)
	if vErr.HasErrors() {
		return false, vErr
	}
	approved, err := s.list(ctx, persistence.AbsenceFilter{
		UserID:        userID,
		Statuses:      []string{string(AbsenceApproved)},
		EndsOnOrAfter: &day,
	})
	if err != nil {
		return false, err
	}
	for _, a := range approved {
		if (worktime.DateRange{Start: a.StartDate, End: a.EndDate}).Contains(day) {
			return true, nil
		}
	}
	return false, nil
}

// SumAbsenceDays counts the approved absence days of a user within
// [From, To], optionally restricted to one type. Absences crossing the
// bounds count only their days inside.
func (s *AbsenceService) SumAbsenceDays(ctx context.Context, params SumAbsenceDaysParams) (int, error) {
	if !params.Principal.canAccessUser(params.UserID) {
		return 0, ErrUnauthorized
	}

	vErr := &ValidationError{}
	from, fromErr := parseRequiredDate("from", params.From)
	vErr.merge(fromErr)
	to, toErr := parseRequiredDate("to", params.To)
	vErr.merge(toErr)

	filter := persistence.AbsenceFilter{
		UserID:   params.UserID,
		Statuses: []string{string(AbsenceApproved)},
	}
	if strings.TrimSpace(params.Type) != "" {
		kind, typeErr := parseAbsenceType("type", params.Type)
		vErr.merge(typeErr)
		filter.Type = string(kind)
	}
	if vErr.HasErrors() {
		return 0, vErr
	}

	bounds, err := worktime.NewDateRange(from, to)
	if err != nil {
		return 0, newValidationError("to", msgEndBeforeStart)
	}
	filter.EndsOnOrAfter = &bounds.Start

	absences, err := s.list(ctx, filter)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, a := range absences {
		clipped, ok := (worktime.DateRange{Start: a.StartDate, End: a.EndDate}).Clip(bounds)
		if ok {
			total += clipped.Days()
		}
	}
	return total, nil
}

func (s *AbsenceService) list(ctx context.Context, filter persistence.AbsenceFilter) ([]Absence, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	stored, err := s.absences.ListAbsences(ctx, filter)
	if err != nil {
		return nil, mapRepoError(err)
	}
	out := make([]Absence, 0, len(stored))
	for _, a := range stored {
		out = append(out, toAbsence(a))
	}
	return out, nil
}

func (s *AbsenceService) record(ctx context.Context, principal Principal, action string, absence Absence) {
	recordAudit(ctx, s.audit, AuditEntry{
		Action: action,
		Details: fmt.Sprintf(absenceDetailsTemplate, absence.Type,
			worktime.FormatDate(absence.StartDate), worktime.FormatDate(absence.EndDate)),
		Actor:        principal,
		TargetEntity: absenceTargetEntity,
		TargetID:     absence.ID,
	})
}

// ensureNoOverlap rejects period when it overlaps one of userID's open
// absences other than excludeID.
func ensureNoOverlap(ctx context.Context, repo persistence.AbsenceRepository, userID string, period worktime.DateRange, excludeID string) error {
	existing, err := repo.ListAbsences(ctx, persistence.AbsenceFilter{
		UserID:        userID,
		Statuses:      openStatuses,
		EndsOnOrAfter: &period.Start,
	})
	if err != nil {
		return err
	}
	records := make([]worktime.RangeRecord, 0, len(existing))
	for _, a := range existing {
		records = append(records, worktime.RangeRecord{
			ID:    a.ID,
			Range: worktime.DateRange{Start: a.StartDate, End: a.EndDate},
		})
	}
	if worktime.HasOverlap(period, records, excludeID) {
		return ErrOverlap
	}
	return nil
}

// validateAbsenceInput checks an absence request against today.
func validateAbsenceInput(input AbsenceInput, today time.Time) (worktime.DateRange, AbsenceType, error) {
	vErr := &ValidationError{}
	start, startErr := parseRequiredDate("startDate", input.StartDate)
	vErr.merge(startErr)
	end, endErr := parseRequiredDate("endDate", input.EndDate)
	vErr.merge(endErr)
	kind, typeErr := parseAbsenceType("type", input.Type)
	vErr.merge(typeErr)

	var period worktime.DateRange
	if !startErr.HasErrors() && !endErr.HasErrors() {
		var err error
		period, err = worktime.NewDateRange(start, end)
		switch {
		case errors.Is(err, worktime.ErrInvertedRange):
			vErr.add("endDate", msgEndBeforeStart)
		case err != nil:
			return worktime.DateRange{}, "", err
		case period.Days() > MaxAbsenceDays:
			vErr.add("endDate", msgAbsenceTooLong)
		}
		if start.Before(today) {
			vErr.add("startDate", msgStartInPast)
		}
	}

	if vErr.HasErrors() {
		return worktime.DateRange{}, "", vErr
	}
	return period, kind, nil
}

func parseRequiredDate(field, value string) (time.Time, *ValidationError) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, newValidationError(field, msgRequired)
	}
	day, err := worktime.ParseDate(field, value)
	if err != nil {
		return time.Time{}, newValidationError(field, msgInvalidDate)
	}
	return day, nil
}

func parseAbsenceType(field, value string) (AbsenceType, *ValidationError) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return "", newValidationError(field, msgRequired)
	}
	kind := AbsenceType(value)
	if !kind.Valid() {
		return "", newValidationError(field, msgUnknownAbsenceType)
	}
	return kind, nil
}

func toAbsence(stored persistence.Absence) Absence {
	var approvedAt *time.Time
	if stored.ApprovedAt != nil {
		t := *stored.ApprovedAt
		approvedAt = &t
	}
	return Absence{
		ID:         stored.ID,
		UserID:     stored.UserID,
		StartDate:  stored.StartDate,
		EndDate:    stored.EndDate,
		Type:       AbsenceType(stored.Type),
		Status:     AbsenceStatus(stored.Status),
		ApproverID: copyStringPtr(stored.ApproverID),
		ApprovedAt: approvedAt,
		Days:       (worktime.DateRange{Start: stored.StartDate, End: stored.EndDate}).Days(),
		CreatedAt:  stored.CreatedAt,
		UpdatedAt:  stored.UpdatedAt,
	}
}

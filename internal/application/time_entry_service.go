package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/example/timerecording/internal/persistence"
	"github.com/example/timerecording/internal/worktime"
)

const (
	msgInvalidDate        = "must use YYYY-MM-DD"
	msgInvalidClock       = "must use HH:MM"
	msgStartRequired      = "at least one start time is required"
	msgTooManyEnds        = "must not outnumber start times"
	msgBreakOrder         = "must be after start"
	msgProjectUnknown     = "project does not exist"
	msgProjectInactive    = "project is inactive"
	maxClockTimesPerEntry = 24
)

// TimeEntryRepository captures the persistence operations needed by the time entry service.
type TimeEntryRepository interface {
	CreateTimeEntry(ctx context.Context, entry persistence.TimeEntry) error
	UpdateTimeEntry(ctx context.Context, entry persistence.TimeEntry) error
	DeleteTimeEntry(ctx context.Context, id string) error
	GetTimeEntry(ctx context.Context, id string) (persistence.TimeEntry, error)
	FindTimeEntryByUserAndDate(ctx context.Context, userID string, date time.Time) (persistence.TimeEntry, error)
	ListTimeEntriesByUser(ctx context.Context, userID string) ([]persistence.TimeEntry, error)
}

// ProjectLookup resolves projects referenced by time entries.
type ProjectLookup interface {
	GetProject(ctx context.Context, id string) (persistence.Project, error)
}

// TimeEntryService records working days and computes their hours.
type TimeEntryService struct {
	entries     TimeEntryRepository
	users       UserLookup
	projects    ProjectLookup
	calendar    *worktime.Calendar
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewTimeEntryService constructs a TimeEntryService. A nil calendar books in UTC.
func NewTimeEntryService(entries TimeEntryRepository, users UserLookup, projects ProjectLookup, calendar *worktime.Calendar, idGenerator func() string, now func() time.Time) *TimeEntryService {
	return NewTimeEntryServiceWithLogger(entries, users, projects, calendar, idGenerator, now, nil)
}

// NewTimeEntryServiceWithLogger constructs a TimeEntryService with a specified logger.
func NewTimeEntryServiceWithLogger(entries TimeEntryRepository, users UserLookup, projects ProjectLookup, calendar *worktime.Calendar, idGenerator func() string, now func() time.Time, logger *slog.Logger) *TimeEntryService {
	if calendar == nil {
		calendar = worktime.NewCalendar(time.UTC)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &TimeEntryService{
		entries:     entries,
		users:       users,
		projects:    projects,
		calendar:    calendar,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *TimeEntryService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "TimeEntryService", operation, attrs...)
}

func (s *TimeEntryService) ready() error {
	if s == nil {
		return fmt.Errorf("TimeEntryService is nil")
	}
	if s.entries == nil {
		return fmt.Errorf("time entry repository not configured")
	}
	return nil
}

// CreateTimeEntry records a working day for the principal.
func (s *TimeEntryService) CreateTimeEntry(ctx context.Context, params CreateTimeEntryParams) (entry TimeEntry, err error) {
	if err = s.ready(); err != nil {
		return
	}
	if params.Principal.UserID == "" {
		err = ErrUnauthenticated
		return
	}

	logger := s.loggerWith(ctx, "CreateTimeEntry", "user_id", params.Principal.UserID, "date", params.Input.Date)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "failed to create time entry")
			return
		}
		logger.With("entry_id", entry.ID).InfoContext(ctx, "time entry created")
	}()

	var parsed parsedTimeEntry
	if parsed, err = s.validate(ctx, params.Input); err != nil {
		return
	}

	if err = s.ensureDayIsFree(ctx, params.Principal.UserID, parsed.date, ""); err != nil {
		return
	}

	now := s.now()
	stored := persistence.TimeEntry{
		ID:         s.idGenerator(),
		UserID:     params.Principal.UserID,
		Date:       parsed.date,
		StartTimes: parsed.starts,
		EndTimes:   parsed.ends,
		Breaks:     parsed.breaks,
		ProjectID:  parsed.projectID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err = s.entries.CreateTimeEntry(ctx, stored); err != nil {
		err = mapRepoError(err)
		return
	}
	return s.present(ctx, stored, nil)
}

// UpdateTimeEntry replaces the recorded times of the principal's own entry.
func (s *TimeEntryService) UpdateTimeEntry(ctx context.Context, params UpdateTimeEntryParams) (entry TimeEntry, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateTimeEntry", "user_id", params.Principal.UserID, "entry_id", params.EntryID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "failed to update time entry")
			return
		}
		logger.InfoContext(ctx, "time entry updated")
	}()

	var stored persistence.TimeEntry
	if stored, err = s.owned(ctx, params.Principal, params.EntryID, false); err != nil {
		return
	}

	var parsed parsedTimeEntry
	if parsed, err = s.validate(ctx, params.Input); err != nil {
		return
	}
	if !parsed.date.Equal(stored.Date) {
		if err = s.ensureDayIsFree(ctx, stored.UserID, parsed.date, stored.ID); err != nil {
			return
		}
	}

	stored.Date = parsed.date
	stored.StartTimes = parsed.starts
	stored.EndTimes = parsed.ends
	stored.Breaks = parsed.breaks
	stored.ProjectID = parsed.projectID
	return s.save(ctx, stored)
}

// DeleteTimeEntry removes an entry. Owners and administrators may delete.
func (s *TimeEntryService) DeleteTimeEntry(ctx context.Context, principal Principal, entryID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteTimeEntry", "user_id", principal.UserID, "entry_id", entryID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "failed to delete time entry")
			return
		}
		logger.InfoContext(ctx, "time entry deleted")
	}()

	if _, err = s.owned(ctx, principal, entryID, true); err != nil {
		return
	}
	err = mapRepoError(s.entries.DeleteTimeEntry(ctx, entryID))
	return
}

// ListOwnTimeEntries returns the principal's entries, newest first.
func (s *TimeEntryService) ListOwnTimeEntries(ctx context.Context, principal Principal) ([]TimeEntry, error) {
	if principal.UserID == "" {
		return nil, ErrUnauthenticated
	}
	return s.ListTimeEntriesForUser(ctx, principal, principal.UserID)
}

// ListTimeEntriesForUser returns userID's entries to the user, managers and administrators.
func (s *TimeEntryService) ListTimeEntriesForUser(ctx context.Context, principal Principal, userID string) ([]TimeEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !principal.canAccessUser(userID) {
		return nil, ErrUnauthorized
	}

	stored, err := s.entries.ListTimeEntriesByUser(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	planned, err := s.plannedHours(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]TimeEntry, 0, len(stored))
	for _, e := range stored {
		entry, err := s.present(ctx, e, &planned)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// StartTracking clocks the principal in now. Today's entry is created when
// missing; a running entry yields ErrTrackingActive.
func (s *TimeEntryService) StartTracking(ctx context.Context, principal Principal) (entry TimeEntry, err error) {
	if err = s.ready(); err != nil {
		return
	}
	if principal.UserID == "" {
		err = ErrUnauthenticated
		return
	}

	now := s.now()
	today := s.calendar.Today(now)
	clock := s.calendar.Clock(now).String()

	logger := s.loggerWith(ctx, "StartTracking", "user_id", principal.UserID, "date", worktime.FormatDate(today), "clock", clock)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "failed to start tracking")
			return
		}
		logger.With("entry_id", entry.ID).InfoContext(ctx, "tracking started")
	}()

	stored, findErr := s.entries.FindTimeEntryByUserAndDate(ctx, principal.UserID, today)
	switch {
	case errors.Is(findErr, persistence.ErrNotFound):
		stored = persistence.TimeEntry{
			ID:         s.idGenerator(),
			UserID:     principal.UserID,
			Date:       today,
			StartTimes: []string{clock},
			EndTimes:   []string{},
			Breaks:     []persistence.Break{},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err = s.entries.CreateTimeEntry(ctx, stored); err != nil {
			err = mapRepoError(err)
			return
		}
		return s.present(ctx, stored, nil)
	case findErr != nil:
		err = mapRepoError(findErr)
		return
	}

	if isTracking(stored) {
		err = ErrTrackingActive
		return
	}
	stored.StartTimes = append(stored.StartTimes, clock)
	return s.save(ctx, stored)
}

// StopTracking clocks the principal out of a running entry.
func (s *TimeEntryService) StopTracking(ctx context.Context, principal Principal, entryID string) (entry TimeEntry, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "StopTracking", "user_id", principal.UserID, "entry_id", entryID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "failed to stop tracking")
			return
		}
		logger.InfoContext(ctx, "tracking stopped")
	}()

	var stored persistence.TimeEntry
	if stored, err = s.owned(ctx, principal, entryID, false); err != nil {
		return
	}
	if !isTracking(stored) {
		err = ErrTrackingInactive
		return
	}
	stored.EndTimes = append(stored.EndTimes, s.calendar.Clock(s.now()).String())
	return s.save(ctx, stored)
}

// AssignProject books an entry onto an active project.
func (s *TimeEntryService) AssignProject(ctx context.Context, principal Principal, entryID, projectID string) (TimeEntry, error) {
	if err := s.ready(); err != nil {
		return TimeEntry{}, err
	}
	stored, err := s.owned(ctx, principal, entryID, false)
	if err != nil {
		return TimeEntry{}, err
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return TimeEntry{}, newValidationError("projectId", msgRequired)
	}
	if vErr := s.validateProject(ctx, projectID); vErr.HasErrors() {
		return TimeEntry{}, vErr
	}
	stored.ProjectID = &projectID
	return s.save(ctx, stored)
}

// owned loads an entry the principal may modify.
func (s *TimeEntryService) owned(ctx context.Context, principal Principal, entryID string, adminAllowed bool) (persistence.TimeEntry, error) {
	if principal.UserID == "" {
		return persistence.TimeEntry{}, ErrUnauthenticated
	}
	stored, err := s.entries.GetTimeEntry(ctx, entryID)
	if err != nil {
		return persistence.TimeEntry{}, mapRepoError(err)
	}
	if stored.UserID != principal.UserID && !(adminAllowed && principal.IsAdmin()) {
		return persistence.TimeEntry{}, ErrUnauthorized
	}
	return stored, nil
}

func (s *TimeEntryService) save(ctx context.Context, stored persistence.TimeEntry) (TimeEntry, error) {
	stored.UpdatedAt = s.now()
	if err := s.entries.UpdateTimeEntry(ctx, stored); err != nil {
		return TimeEntry{}, mapRepoError(err)
	}
	return s.present(ctx, stored, nil)
}

func (s *TimeEntryService) ensureDayIsFree(ctx context.Context, userID string, date time.Time, excludeID string) error {
	existing, err := s.entries.FindTimeEntryByUserAndDate(ctx, userID, date)
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return nil
	case err != nil:
		return mapRepoError(err)
	case existing.ID == excludeID:
		return nil
	default:
		return ErrAlreadyExists
	}
}

func (s *TimeEntryService) plannedHours(ctx context.Context, userID string) (float64, error) {
	if s.users == nil {
		return defaultPlannedHours, nil
	}
	stored, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return 0, mapRepoError(err)
	}
	return stored.PlannedHoursPerDay, nil
}

// present converts a stored entry and computes its hours. planned is looked
// up from the owner when nil.
func (s *TimeEntryService) present(ctx context.Context, stored persistence.TimeEntry, planned *float64) (TimeEntry, error) {
	hours := 0.0
	if planned != nil {
		hours = *planned
	} else {
		var err error
		if hours, err = s.plannedHours(ctx, stored.UserID); err != nil {
			return TimeEntry{}, err
		}
	}
	return toTimeEntry(stored, hours)
}

type parsedTimeEntry struct {
	date      time.Time
	starts    []string
	ends      []string
	breaks    []persistence.Break
	projectID *string
}

func (s *TimeEntryService) validate(ctx context.Context, input TimeEntryInput) (parsedTimeEntry, error) {
	vErr := &ValidationError{}
	out := parsedTimeEntry{
		starts: trimAll(input.StartTimes),
		ends:   trimAll(input.EndTimes),
		breaks: make([]persistence.Break, 0, len(input.Breaks)),
	}

	date := strings.TrimSpace(input.Date)
	if date == "" {
		vErr.add("date", msgRequired)
	} else if d, err := worktime.ParseDate("date", date); err != nil {
		vErr.add("date", msgInvalidDate)
	} else {
		out.date = d
	}

	switch {
	case len(out.starts) == 0:
		vErr.add("startTimes", msgStartRequired)
	case len(out.starts) > maxClockTimesPerEntry:
		vErr.add("startTimes", msgTooLong)
	}
	if len(out.ends) > len(out.starts) {
		vErr.add("endTimes", msgTooManyEnds)
	}

	breakInputs := make([]worktime.BreakInput, 0, len(input.Breaks))
	for i, b := range input.Breaks {
		start, end := strings.TrimSpace(b.Start), strings.TrimSpace(b.End)
		if start == "" {
			vErr.add(fmt.Sprintf("breaks[%d].start", i), msgRequired)
		}
		if end == "" {
			vErr.add(fmt.Sprintf("breaks[%d].end", i), msgRequired)
		}
		breakInputs = append(breakInputs, worktime.BreakInput{Start: start, End: end})
		out.breaks = append(out.breaks, persistence.Break{Start: start, End: end})
	}

	if !vErr.HasErrors() {
		record, err := worktime.ParseDayWorkRecord(out.starts, out.ends, breakInputs, 0)
		var formatErr *worktime.FormatError
		switch {
		case errors.As(err, &formatErr):
			vErr.add(formatErr.Field, msgInvalidClock)
		case err != nil:
			return parsedTimeEntry{}, err
		default:
			for i, b := range record.Breaks {
				if b.End <= b.Start {
					vErr.add(fmt.Sprintf("breaks[%d].end", i), msgBreakOrder)
				}
			}
		}
	}

	if input.ProjectID != nil {
		if id := strings.TrimSpace(*input.ProjectID); id != "" {
			vErr.merge(s.validateProject(ctx, id))
			out.projectID = &id
		}
	}

	if vErr.HasErrors() {
		return parsedTimeEntry{}, vErr
	}
	return out, nil
}

func (s *TimeEntryService) validateProject(ctx context.Context, projectID string) *ValidationError {
	vErr := &ValidationError{}
	if s.projects == nil {
		return vErr
	}
	project, err := s.projects.GetProject(ctx, projectID)
	switch {
	case err != nil:
		vErr.add("projectId", msgProjectUnknown)
	case !project.Active:
		vErr.add("projectId", msgProjectInactive)
	}
	return vErr
}

func isTracking(stored persistence.TimeEntry) bool {
	return len(stored.StartTimes) > len(stored.EndTimes)
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}

// toTimeEntry computes the working hours of stored against plannedHours.
func toTimeEntry(stored persistence.TimeEntry, plannedHours float64) (TimeEntry, error) {
	breaks := make([]worktime.BreakInput, 0, len(stored.Breaks))
	appBreaks := make([]Break, 0, len(stored.Breaks))
	for _, b := range stored.Breaks {
		breaks = append(breaks, worktime.BreakInput{Start: b.Start, End: b.End})
		appBreaks = append(appBreaks, Break{Start: b.Start, End: b.End})
	}
	record, err := worktime.ParseDayWorkRecord(stored.StartTimes, stored.EndTimes, breaks, plannedHours)
	if err != nil {
		return TimeEntry{}, fmt.Errorf("time entry %s: %w", stored.ID, err)
	}
	hours := worktime.Calculate(record)

	return TimeEntry{
		ID:            stored.ID,
		UserID:        stored.UserID,
		Date:          stored.Date,
		StartTimes:    slices.Clone(stored.StartTimes),
		EndTimes:      slices.Clone(stored.EndTimes),
		Breaks:        appBreaks,
		ProjectID:     copyStringPtr(stored.ProjectID),
		ActualMinutes: hours.ActualMinutes,
		ActualHours:   hours.Actual,
		PlannedHours:  hours.Planned,
		Difference:    hours.Difference,
		Active:        isTracking(stored),
		CreatedAt:     stored.CreatedAt,
		UpdatedAt:     stored.UpdatedAt,
	}, nil
}

package persistence

import (
	"context"
	"time"
)

// UserRepository stores users and their role assignments.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SearchUsers(ctx context.Context, term string) ([]User, error)
	CountUsers(ctx context.Context) (int, error)
	ListRoles(ctx context.Context) ([]Role, error)
}

// ProjectFilter narrows project queries. Zero values do not filter.
type ProjectFilter struct {
	ActiveOnly bool
	ManagerID  string
	// MemberID matches projects the user manages or has booked time on.
	MemberID string
	Term     string
}

// ProjectRepository stores projects.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project Project) error
	UpdateProject(ctx context.Context, project Project) error
	GetProject(ctx context.Context, id string) (Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]Project, error)
}

// TimeEntryRepository stores time entries with their clock times and breaks.
type TimeEntryRepository interface {
	CreateTimeEntry(ctx context.Context, entry TimeEntry) error
	UpdateTimeEntry(ctx context.Context, entry TimeEntry) error
	DeleteTimeEntry(ctx context.Context, id string) error
	GetTimeEntry(ctx context.Context, id string) (TimeEntry, error)
	FindTimeEntryByUserAndDate(ctx context.Context, userID string, date time.Time) (TimeEntry, error)
	ListTimeEntriesByUser(ctx context.Context, userID string) ([]TimeEntry, error)
}

// AbsenceFilter narrows absence queries. Zero values do not filter.
type AbsenceFilter struct {
	UserID   string
	Type     string
	Statuses []string
	// EndsOnOrAfter keeps absences that have not ended before the given day.
	EndsOnOrAfter *time.Time
}

// AbsenceRepository stores absences.
type AbsenceRepository interface {
	CreateAbsence(ctx context.Context, absence Absence) error
	UpdateAbsence(ctx context.Context, absence Absence) error
	DeleteAbsence(ctx context.Context, id string) error
	GetAbsence(ctx context.Context, id string) (Absence, error)
	ListAbsences(ctx context.Context, filter AbsenceFilter) ([]Absence, error)
	// WithinTransaction runs fn against a repository bound to one transaction.
	WithinTransaction(ctx context.Context, fn func(repo AbsenceRepository) error) error
}

// RegistrationRepository stores self service registration requests.
type RegistrationRepository interface {
	CreateRegistration(ctx context.Context, request RegistrationRequest) error
	UpdateRegistration(ctx context.Context, request RegistrationRequest) error
	DeleteRegistration(ctx context.Context, id string) error
	GetRegistration(ctx context.Context, id string) (RegistrationRequest, error)
	// ListRegistrations returns requests in status, oldest first. An empty
	// status lists every request.
	ListRegistrations(ctx context.Context, status string) ([]RegistrationRequest, error)
}

// SystemLogRepository stores the audit trail.
type SystemLogRepository interface {
	AppendSystemLog(ctx context.Context, entry SystemLog) error
	ListSystemLogs(ctx context.Context, limit int) ([]SystemLog, error)
}

// RevokedTokenRepository stores logged out access tokens until they expire.
type RevokedTokenRepository interface {
	RevokeToken(ctx context.Context, token RevokedToken) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
	DeleteExpiredTokens(ctx context.Context, reference time.Time) error
}

package application

import (
	"slices"
	"strings"
	"time"
)

// Role names known to the system.
const (
	RoleAdmin    = "ADMIN"
	RoleManager  = "MANAGER"
	RoleEmployee = "EMPLOYEE"
)

// rolePriority orders roles from most to least privileged.
var rolePriority = []string{RoleAdmin, RoleManager, RoleEmployee}

// UserStatus describes the lifecycle state of an account.
type UserStatus string

const (
	UserStatusActive                UserStatus = "ACTIVE"
	UserStatusInactive              UserStatus = "INACTIVE"
	UserStatusLocked                UserStatus = "LOCKED"
	UserStatusVacation              UserStatus = "VACATION"
	UserStatusPasswordResetRequired UserStatus = "PASSWORD_RESET_REQUIRED"
)

// Valid reports whether s is a known status.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusLocked, UserStatusVacation, UserStatusPasswordResetRequired:
		return true
	}
	return false
}

// AbsenceType classifies an absence.
type AbsenceType string

const (
	AbsenceVacation      AbsenceType = "VACATION"
	AbsenceIllness       AbsenceType = "ILLNESS"
	AbsenceHomeOffice    AbsenceType = "HOME_OFFICE"
	AbsenceTraining      AbsenceType = "TRAINING"
	AbsencePublicHoliday AbsenceType = "PUBLIC_HOLIDAY"
	AbsenceUnpaidLeave   AbsenceType = "UNPAID_LEAVE"
	AbsenceSpecialLeave  AbsenceType = "SPECIAL_LEAVE"
	AbsenceOther         AbsenceType = "OTHER"
)

// Valid reports whether t is a known absence type.
func (t AbsenceType) Valid() bool {
	switch t {
	case AbsenceVacation, AbsenceIllness, AbsenceHomeOffice, AbsenceTraining,
		AbsencePublicHoliday, AbsenceUnpaidLeave, AbsenceSpecialLeave, AbsenceOther:
		return true
	}
	return false
}

// AbsenceStatus is the approval state of an absence.
type AbsenceStatus string

const (
	AbsencePending  AbsenceStatus = "PENDING"
	AbsenceApproved AbsenceStatus = "APPROVED"
	AbsenceRejected AbsenceStatus = "REJECTED"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Email  string
	Roles  []string
}

// HasRole reports whether the principal holds role.
func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// IsAdmin reports whether the principal holds the ADMIN role.
func (p Principal) IsAdmin() bool { return p.HasRole(RoleAdmin) }

// IsManager reports whether the principal holds the MANAGER role.
func (p Principal) IsManager() bool { return p.HasRole(RoleManager) }

// canSupervise reports whether the principal may act on other users' records.
func (p Principal) canSupervise() bool { return p.IsAdmin() || p.IsManager() }

// canAccessUser reports whether the principal may read userID's records.
func (p Principal) canAccessUser(userID string) bool {
	return p.UserID == userID || p.canSupervise()
}

// User is an account without its credentials.
type User struct {
	ID                 string
	FirstName          string
	LastName           string
	Email              string
	Active             bool
	Status             UserStatus
	PlannedHoursPerDay float64
	Roles              []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// PrimaryRole returns the most privileged role of the user.
func (u User) PrimaryRole() string {
	for _, role := range rolePriority {
		if slices.Contains(u.Roles, role) {
			return role
		}
	}
	if len(u.Roles) > 0 {
		return u.Roles[0]
	}
	return ""
}

// Principal returns the principal acting as u.
func (u User) Principal() Principal {
	return Principal{UserID: u.ID, Email: u.Email, Roles: slices.Clone(u.Roles)}
}

// Role is an authorization role with its description.
type Role struct {
	Name        string
	Description string
}

// UserInput captures administrator supplied user fields.
type UserInput struct {
	FirstName string
	LastName  string
	Email     string
	// PlannedHoursPerDay defaults to 8 when nil.
	PlannedHoursPerDay *float64
	// Roles defaults to EMPLOYEE when empty.
	Roles []string
	// Password is optional on creation; a temporary password is generated when empty.
	Password string
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// CreateUserResult returns the new user and, when generated, its temporary password.
type CreateUserResult struct {
	User              User
	TemporaryPassword string
}

// UpdateUserParams wraps the data required to update a user.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// ChangePasswordParams wraps a self service password change.
type ChangePasswordParams struct {
	Principal       Principal
	CurrentPassword string
	NewPassword     string
}

// RegistrationStatus is the decision state of a registration request.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "PENDING"
	RegistrationApproved RegistrationStatus = "APPROVED"
)

// RegistrationRequest is a sign up waiting for an administrator.
type RegistrationRequest struct {
	ID            string
	FirstName     string
	LastName      string
	Email         string
	RequestedRole string
	ManagerID     *string
	// ManagerName is empty when no manager was named or the manager is gone.
	ManagerName string
	Status      RegistrationStatus
	CreatedAt   time.Time
	DecidedAt   *time.Time
}

// RegistrationInput captures a self service sign up.
type RegistrationInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	// RequestedRole defaults to EMPLOYEE when empty.
	RequestedRole string
	ManagerID     *string
}

// Project is a bookable project.
type Project struct {
	ID          string
	Name        string
	Description string
	Active      bool
	ManagerID   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProjectInput captures caller provided project fields.
type ProjectInput struct {
	Name        string
	Description string
	ManagerID   *string
}

// CreateProjectParams wraps the data required to create a project.
type CreateProjectParams struct {
	Principal Principal
	Input     ProjectInput
}

// UpdateProjectParams wraps the data required to update a project.
type UpdateProjectParams struct {
	Principal Principal
	ProjectID string
	Input     ProjectInput
}

// Break is a pause within a working day, as HH:MM strings.
type Break struct {
	Start string
	End   string
}

// TimeEntry is a working day record together with its computed hours.
type TimeEntry struct {
	ID         string
	UserID     string
	Date       time.Time
	StartTimes []string
	EndTimes   []string
	Breaks     []Break
	ProjectID  *string

	ActualMinutes int
	ActualHours   string
	PlannedHours  string
	Difference    string
	// Active is true while more start times than end times are recorded.
	Active bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TimeEntryInput captures caller provided time entry fields. Date uses
// YYYY-MM-DD and times use HH:MM.
type TimeEntryInput struct {
	Date       string
	StartTimes []string
	EndTimes   []string
	Breaks     []Break
	ProjectID  *string
}

// CreateTimeEntryParams wraps the data required to create a time entry.
type CreateTimeEntryParams struct {
	Principal Principal
	Input     TimeEntryInput
}

// UpdateTimeEntryParams wraps the data required to update a time entry.
type UpdateTimeEntryParams struct {
	Principal Principal
	EntryID   string
	Input     TimeEntryInput
}

// Absence is a requested or decided period away from work.
type Absence struct {
	ID         string
	UserID     string
	StartDate  time.Time
	EndDate    time.Time
	Type       AbsenceType
	Status     AbsenceStatus
	ApproverID *string
	ApprovedAt *time.Time
	// Days is the inclusive number of calendar days covered.
	Days      int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AbsenceInput captures caller provided absence fields. Dates use YYYY-MM-DD.
type AbsenceInput struct {
	StartDate string
	EndDate   string
	Type      string
}

// CreateAbsenceParams wraps the data required to request an absence.
type CreateAbsenceParams struct {
	Principal Principal
	Input     AbsenceInput
}

// UpdateAbsenceParams wraps the data required to change a pending absence.
type UpdateAbsenceParams struct {
	Principal Principal
	AbsenceID string
	Input     AbsenceInput
}

// SumAbsenceDaysParams selects approved absence days to count.
type SumAbsenceDaysParams struct {
	Principal Principal
	UserID    string
	Type      string
	From      string
	To        string
}

// AuthenticateParams carries login credentials.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult carries the issued access token.
type AuthenticateResult struct {
	Token     string
	ExpiresAt time.Time
	User      User
}

// Audit actions.
const (
	ActionLoginSuccess      = "LOGIN_SUCCESS"
	ActionLoginFailed       = "LOGIN_FAILED"
	ActionLogout            = "LOGOUT"
	ActionUserCreated       = "USER_CREATED"
	ActionUserUpdated       = "USER_UPDATED"
	ActionUserActivated     = "USER_ACTIVATED"
	ActionUserDeactivated   = "USER_DEACTIVATED"
	ActionUserStatusChanged = "USER_STATUS_CHANGED"
	ActionRoleAdded         = "ROLE_ADDED"
	ActionRoleRemoved       = "ROLE_REMOVED"
	ActionPasswordReset     = "PASSWORD_RESET"
	ActionPasswordChanged   = "PASSWORD_CHANGED"
	ActionProjectCreated    = "PROJECT_CREATED"
	ActionProjectUpdated    = "PROJECT_UPDATED"
	ActionAbsenceCreated    = "ABSENCE_CREATED"
	ActionAbsenceUpdated    = "ABSENCE_UPDATED"
	ActionAbsenceDeleted    = "ABSENCE_DELETED"
	ActionAbsenceApproved   = "ABSENCE_APPROVED"
	ActionAbsenceRejected   = "ABSENCE_REJECTED"

	ActionRegistrationSubmitted = "REGISTRATION_SUBMITTED"
	ActionRegistrationApproved  = "REGISTRATION_APPROVED"
	ActionRegistrationRejected  = "REGISTRATION_REJECTED"
)

// SystemLog is an audit trail record.
type SystemLog struct {
	ID           string
	Action       string
	Details      string
	UserID       string
	UserEmail    string
	TargetEntity string
	TargetID     string
	CreatedAt    time.Time
}

// AuditEntry describes an event to append to the audit trail.
type AuditEntry struct {
	Action       string
	Details      string
	Actor        Principal
	TargetEntity string
	TargetID     string
}

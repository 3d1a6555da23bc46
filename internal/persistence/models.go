package persistence

import "time"

// User represents an employee account together with its credentials.
type User struct {
	ID                 string
	FirstName          string
	LastName           string
	Email              string
	PasswordHash       string
	Active             bool
	Status             string
	PlannedHoursPerDay float64
	Roles              []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Role is an authorization role users can hold.
type Role struct {
	Name        string
	Description string
}

// Project is a bookable project, optionally led by a manager.
type Project struct {
	ID          string
	Name        string
	Description string
	Active      bool
	ManagerID   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Break is a pause recorded on a time entry, as HH:MM strings.
type Break struct {
	Start string
	End   string
}

// TimeEntry is one user's record of a working day.
type TimeEntry struct {
	ID         string
	UserID     string
	Date       time.Time
	StartTimes []string
	EndTimes   []string
	Breaks     []Break
	ProjectID  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Absence is a requested or decided period away from work.
type Absence struct {
	ID         string
	UserID     string
	StartDate  time.Time
	EndDate    time.Time
	Type       string
	Status     string
	ApproverID *string
	ApprovedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RegistrationRequest is a self service sign up awaiting an administrator.
// The password is hashed when the request is submitted.
type RegistrationRequest struct {
	ID            string
	FirstName     string
	LastName      string
	Email         string
	PasswordHash  string
	RequestedRole string
	ManagerID     *string
	Status        string
	DecidedBy     *string
	DecidedAt     *time.Time
	CreatedAt     time.Time
}

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

// RevokedToken records a signed access token that was logged out before it expired.
type RevokedToken struct {
	TokenID   string
	UserID    string
	ExpiresAt time.Time
	RevokedAt time.Time
}

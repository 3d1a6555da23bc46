package testfixtures

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/timerecording/internal/application"
	"github.com/example/timerecording/internal/persistence"
)

// DefaultPassword is the plain text password of every user fixture unless
// overridden with WithUserPassword.
const DefaultPassword = "correct-horse-42"

var (
	userCounter    uint64
	projectCounter uint64
	entryCounter   uint64
	absenceCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Date parses a YYYY-MM-DD literal and panics on malformed input.
func Date(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}

// CheapArgon2 keeps password hashing fast in tests.
var CheapArgon2 = application.Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

var (
	defaultHashOnce sync.Once
	defaultHash     string
)

// HashPassword hashes password with CheapArgon2 and panics on failure.
func HashPassword(password string) string {
	hash, err := application.CreatePasswordHash(password, CheapArgon2)
	if err != nil {
		panic(err)
	}
	return hash
}

func defaultPasswordHash() string {
	defaultHashOnce.Do(func() { defaultHash = HashPassword(DefaultPassword) })
	return defaultHash
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record.
type UserFixture struct {
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

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns an active employee with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:                 id,
		FirstName:          "Test",
		LastName:           fmt.Sprintf("User %03d", idx),
		Email:              fmt.Sprintf("%s@example.com", id),
		PasswordHash:       defaultPasswordHash(),
		Active:             true,
		Status:             string(application.UserStatusActive),
		PlannedHoursPerDay: 8,
		Roles:              []string{application.RoleEmployee},
		CreatedAt:          created,
		UpdatedAt:          created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) { f.ID = id }
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) { f.Email = email }
}

// WithUserName overrides first and last name.
func WithUserName(first, last string) UserOption {
	return func(f *UserFixture) {
		f.FirstName = first
		f.LastName = last
	}
}

// WithUserPassword stores a hash of password.
func WithUserPassword(password string) UserOption {
	return func(f *UserFixture) { f.PasswordHash = HashPassword(password) }
}

// WithUserRoles replaces the roles of the fixture.
func WithUserRoles(roles ...string) UserOption {
	return func(f *UserFixture) { f.Roles = append([]string(nil), roles...) }
}

// WithUserPlannedHours overrides the planned hours per day.
func WithUserPlannedHours(hours float64) UserOption {
	return func(f *UserFixture) { f.PlannedHoursPerDay = hours }
}

// WithUserStatus sets the status; INACTIVE also clears the active flag.
func WithUserStatus(status application.UserStatus) UserOption {
	return func(f *UserFixture) {
		f.Status = string(status)
		f.Active = status != application.UserStatusInactive
	}
}

// AsAdmin grants the ADMIN role.
func AsAdmin() UserOption {
	return WithUserRoles(application.RoleAdmin)
}

// AsManager grants the MANAGER role.
func AsManager() UserOption {
	return WithUserRoles(application.RoleManager)
}

// Principal returns the principal acting as the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, Email: f.Email, Roles: append([]string(nil), f.Roles...)}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:                 f.ID,
		FirstName:          f.FirstName,
		LastName:           f.LastName,
		Email:              f.Email,
		PasswordHash:       f.PasswordHash,
		Active:             f.Active,
		Status:             f.Status,
		PlannedHoursPerDay: f.PlannedHoursPerDay,
		Roles:              append([]string(nil), f.Roles...),
		CreatedAt:          f.CreatedAt,
		UpdatedAt:          f.UpdatedAt,
	}
}

// Input returns the fixture as an application.UserInput.
func (f UserFixture) Input() application.UserInput {
	hours := f.PlannedHoursPerDay
	return application.UserInput{
		FirstName:          f.FirstName,
		LastName:           f.LastName,
		Email:              f.Email,
		PlannedHoursPerDay: &hours,
		Roles:              append([]string(nil), f.Roles...),
	}
}

// --------------------------- Project fixtures ----------------------------

// ProjectFixture represents a deterministic project record.
type ProjectFixture struct {
	ID          string
	Name        string
	Description string
	Active      bool
	ManagerID   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProjectOption configures the generated project fixture.
type ProjectOption func(*ProjectFixture)

// NewProjectFixture returns an active project without manager.
func NewProjectFixture(opts ...ProjectOption) ProjectFixture {
	idx := atomic.AddUint64(&projectCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := ProjectFixture{
		ID:          fmt.Sprintf("project-%03d", idx),
		Name:        fmt.Sprintf("Project %03d", idx),
		Description: "Fixture project",
		Active:      true,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithProjectID overrides the generated project ID.
func WithProjectID(id string) ProjectOption {
	return func(f *ProjectFixture) { f.ID = id }
}

// WithProjectName overrides the generated name.
func WithProjectName(name string) ProjectOption {
	return func(f *ProjectFixture) { f.Name = name }
}

// WithProjectManager sets the manager.
func WithProjectManager(managerID string) ProjectOption {
	return func(f *ProjectFixture) {
		id := managerID
		f.ManagerID = &id
	}
}

// InactiveProject clears the active flag.
func InactiveProject() ProjectOption {
	return func(f *ProjectFixture) { f.Active = false }
}

// Persistence returns the fixture as a persistence.Project value.
func (f ProjectFixture) Persistence() persistence.Project {
	return persistence.Project{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Active:      f.Active,
		ManagerID:   copyStringPtr(f.ManagerID),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// -------------------------- Time entry fixtures --------------------------

// TimeEntryFixture represents a deterministic working day.
type TimeEntryFixture struct {
	ID         string
	UserID     string
	Date       time.Time
	StartTimes []string
	EndTimes   []string
	Breaks     []persistence.Break
	ProjectID  *string
	CreatedAt  time.Time
}

// TimeEntryOption configures the generated time entry fixture.
type TimeEntryOption func(*TimeEntryFixture)

// NewTimeEntryFixture returns an 08:00-16:30 day with a 30 minute lunch break
// on the reference date.
func NewTimeEntryFixture(userID string, opts ...TimeEntryOption) TimeEntryFixture {
	idx := atomic.AddUint64(&entryCounter, 1)
	fixture := TimeEntryFixture{
		ID:         fmt.Sprintf("entry-%03d", idx),
		UserID:     userID,
		Date:       Date("2024-01-02"),
		StartTimes: []string{"08:00"},
		EndTimes:   []string{"16:30"},
		Breaks:     []persistence.Break{{Start: "12:00", End: "12:30"}},
		CreatedAt:  referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEntryDate overrides the date (YYYY-MM-DD).
func WithEntryDate(date string) TimeEntryOption {
	return func(f *TimeEntryFixture) { f.Date = Date(date) }
}

// WithEntryTimes replaces start and end times.
func WithEntryTimes(starts, ends []string) TimeEntryOption {
	return func(f *TimeEntryFixture) {
		f.StartTimes = append([]string{}, starts...)
		f.EndTimes = append([]string{}, ends...)
	}
}

// WithEntryBreaks replaces the breaks.
func WithEntryBreaks(breaks ...persistence.Break) TimeEntryOption {
	return func(f *TimeEntryFixture) { f.Breaks = append([]persistence.Break{}, breaks...) }
}

// WithEntryProject books the entry onto a project.
func WithEntryProject(projectID string) TimeEntryOption {
	return func(f *TimeEntryFixture) {
		id := projectID
		f.ProjectID = &id
	}
}

// Persistence returns the fixture as a persistence.TimeEntry value.
func (f TimeEntryFixture) Persistence() persistence.TimeEntry {
	return persistence.TimeEntry{
		ID:         f.ID,
		UserID:     f.UserID,
		Date:       f.Date,
		StartTimes: append([]string{}, f.StartTimes...),
		EndTimes:   append([]string{}, f.EndTimes...),
		Breaks:     append([]persistence.Break{}, f.Breaks...),
		ProjectID:  copyStringPtr(f.ProjectID),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.CreatedAt,
	}
}

// --------------------------- Absence fixtures ----------------------------

// AbsenceFixture represents a deterministic absence.
type AbsenceFixture struct {
	ID         string
	UserID     string
	StartDate  time.Time
	EndDate    time.Time
	Type       application.AbsenceType
	Status     application.AbsenceStatus
	ApproverID *string
	CreatedAt  time.Time
}

// AbsenceOption configures the generated absence fixture.
type AbsenceOption func(*AbsenceFixture)

// NewAbsenceFixture returns a pending vacation from 2024-02-05 to 2024-02-09.
func NewAbsenceFixture(userID string, opts ...AbsenceOption) AbsenceFixture {
	idx := atomic.AddUint64(&absenceCounter, 1)
	fixture := AbsenceFixture{
		ID:        fmt.Sprintf("absence-%03d", idx),
		UserID:    userID,
		StartDate: Date("2024-02-05"),
		EndDate:   Date("2024-02-09"),
		Type:      application.AbsenceVacation,
		Status:    application.AbsencePending,
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithAbsenceDates overrides the inclusive date range (YYYY-MM-DD).
func WithAbsenceDates(start, end string) AbsenceOption {
	return func(f *AbsenceFixture) {
		f.StartDate = Date(start)
		f.EndDate = Date(end)
	}
}

// WithAbsenceType overrides the type.
func WithAbsenceType(kind application.AbsenceType) AbsenceOption {
	return func(f *AbsenceFixture) { f.Type = kind }
}

// WithAbsenceStatus overrides the status.
func WithAbsenceStatus(status application.AbsenceStatus) AbsenceOption {
	return func(f *AbsenceFixture) { f.Status = status }
}

// Persistence returns the fixture as a persistence.Absence value.
func (f AbsenceFixture) Persistence() persistence.Absence {
	absence := persistence.Absence{
		ID:         f.ID,
		UserID:     f.UserID,
		StartDate:  f.StartDate,
		EndDate:    f.EndDate,
		Type:       string(f.Type),
		Status:     string(f.Status),
		ApproverID: copyStringPtr(f.ApproverID),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.CreatedAt,
	}
	if f.Status != application.AbsencePending {
		decided := f.CreatedAt
		absence.ApprovedAt = &decided
	}
	return absence
}

func copyStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

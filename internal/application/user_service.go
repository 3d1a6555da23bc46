package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/example/timerecording/internal/persistence"
)

// Validation messages shared by the services. The HTTP layer translates them.
const (
	msgRequired          = "is required"
	msgInvalidEmail      = "must be a valid email address"
	msgPlannedHoursRange = "must be between 0 and 24"
	msgUnknownRole       = "unknown role"
	msgUnknownStatus     = "unknown status"
	msgPasswordTooShort  = "must be at least 8 characters"
	msgPasswordIncorrect = "is incorrect"
	msgPasswordUnchanged = "must differ from the current password"
	msgLastRole          = "cannot remove the last role"
	msgDeactivateSelf    = "cannot deactivate yourself"
	msgTooLong           = "is too long"
)

const (
	defaultPlannedHours     = 8.0
	maxNameLength           = 100
	temporaryPasswordLength = 12
)

var knownRoles = []string{RoleAdmin, RoleManager, RoleEmployee}

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, user persistence.User) error
	UpdateUser(ctx context.Context, user persistence.User) error
	GetUser(ctx context.Context, id string) (persistence.User, error)
	GetUserByEmail(ctx context.Context, email string) (persistence.User, error)
	ListUsers(ctx context.Context) ([]persistence.User, error)
	SearchUsers(ctx context.Context, term string) ([]persistence.User, error)
	CountUsers(ctx context.Context) (int, error)
	ListRoles(ctx context.Context) ([]persistence.Role, error)
}

// UserService orchestrates validation, authorization, and persistence for users.
type UserService struct {
	users          UserRepository
	audit          AuditRecorder
	hashPassword   PasswordHasher
	verifyPassword PasswordVerifier
	idGenerator    func() string
	now            func() time.Time
	logger         *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, audit AuditRecorder, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, audit, nil, idGenerator, now, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a
// specified password hasher and logger. A nil hasher uses HashPassword.
func NewUserServiceWithLogger(users UserRepository, audit AuditRecorder, hasher PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if hasher == nil {
		hasher = HashPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:          users,
		audit:          audit,
		hashPassword:   hasher,
		verifyPassword: VerifyPassword,
		idGenerator:    idGenerator,
		now:            now,
		logger:         defaultLogger(logger),
	}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

func (s *UserService) ready() error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}
	return nil
}

// ListUsers returns all users for administrators.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	stored, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return toUsers(stored), nil
}

// SearchUsers returns users whose name or email contains term. An empty term
// lists every user.
func (s *UserService) SearchUsers(ctx context.Context, principal Principal, term string) ([]User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return s.ListUsers(ctx, principal)
	}
	stored, err := s.users.SearchUsers(ctx, term)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return toUsers(stored), nil
}

// GetUser returns a user to administrators or to the user themselves.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID string) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	if !principal.IsAdmin() && principal.UserID != userID {
		return User{}, ErrUnauthorized
	}
	stored, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, mapRepoError(err)
	}
	return toUser(stored), nil
}

// CreateUser validates input and persists a new user for administrators. When
// no password is supplied a temporary one is generated and returned once.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (result CreateUserResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CreateUser", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "failed to create user")
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "user created")
	}()

	if !params.Principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	input := normalizeUserInput(params.Input)
	vErr := validateUserInput(input)
	if input.Password != "" && len(input.Password) < MinPasswordLength {
		vErr.add("password", msgPasswordTooShort)
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	password := input.Password
	if password == "" {
		if password, err = GenerateTemporaryPassword(temporaryPasswordLength); err != nil {
			return
		}
		result.TemporaryPassword = password
	}
	var hash string
	if hash, err = s.hashPassword(password); err != nil {
		return
	}

	now := s.now()
	stored := persistence.User{
		ID:                 s.idGenerator(),
		FirstName:          input.FirstName,
		LastName:           input.LastName,
		Email:              input.Email,
		PasswordHash:       hash,
		Active:             true,
		Status:             string(UserStatusActive),
		PlannedHoursPerDay: *input.PlannedHoursPerDay,
		Roles:              input.Roles,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if result.TemporaryPassword != "" {
		stored.Status = string(UserStatusPasswordResetRequired)
	}

	if err = s.users.CreateUser(ctx, stored); err != nil {
		err = mapRepoError(err)
		return
	}

	result.User = toUser(stored)
	recordAudit(ctx, s.audit, AuditEntry{
		Action:       ActionUserCreated,
		Details:      "created " + stored.Email,
		Actor:        params.Principal,
		TargetEntity: "User",
		TargetID:     stored.ID,
	})
	return
}

// UpdateUser validates input and updates names, email, planned hours and,
// when given, roles. Passwords are not changed here.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (user User, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateUser", "principal_id", params.Principal.UserID, "user_id", params.UserID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "failed to update user")
			return
		}
		logger.InfoContext(ctx, "user updated")
	}()

	if !params.Principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	input := normalizeUserInput(params.Input)
	explicitRoles := len(params.Input.Roles) > 0
	explicitHours := params.Input.PlannedHoursPerDay != nil
	if vErr := validateUserInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	return s.mutate(ctx, params.Principal, params.UserID, ActionUserUpdated, func(stored *persistence.User) error {
		stored.FirstName = input.FirstName
		stored.LastName = input.LastName
		stored.Email = input.Email
		if explicitHours {
			stored.PlannedHoursPerDay = *input.PlannedHoursPerDay
		}
		if explicitRoles {
			stored.Roles = input.Roles
		}
		return nil
	})
}

// ActivateUser re-enables an account.
func (s *UserService) ActivateUser(ctx context.Context, principal Principal, userID string) (User, error) {
	return s.setStatus(ctx, principal, userID, UserStatusActive, ActionUserActivated)
}

// DeactivateUser disables an account. Administrators cannot deactivate themselves.
func (s *UserService) DeactivateUser(ctx context.Context, principal Principal, userID string) (User, error) {
	return s.setStatus(ctx, principal, userID, UserStatusInactive, ActionUserDeactivated)
}

// SetUserStatus moves an account to status. INACTIVE clears the active flag
// and ACTIVE sets it.
func (s *UserService) SetUserStatus(ctx context.Context, principal Principal, userID, status string) (User, error) {
	target := UserStatus(strings.ToUpper(strings.TrimSpace(status)))
	if !target.Valid() {
		return User{}, newValidationError("status", msgUnknownStatus)
	}
	return s.setStatus(ctx, principal, userID, target, ActionUserStatusChanged)
}

func (s *UserService) setStatus(ctx context.Context, principal Principal, userID string, status UserStatus, action string) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	if !principal.IsAdmin() {
		return User{}, ErrUnauthorized
	}
	if status == UserStatusInactive && principal.UserID == userID {
		return User{}, newValidationError("id", msgDeactivateSelf)
	}
	return s.mutate(ctx, principal, userID, action, func(stored *persistence.User) error {
		stored.Status = string(status)
		switch status {
		case UserStatusActive:
			stored.Active = true
		case UserStatusInactive:
			stored.Active = false
		}
		return nil
	})
}

// AddRole grants role to a user.
func (s *UserService) AddRole(ctx context.Context, principal Principal, userID, role string) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	if !principal.IsAdmin() {
		return User{}, ErrUnauthorized
	}
	role = strings.ToUpper(strings.TrimSpace(role))
	if !slices.Contains(knownRoles, role) {
		return User{}, newValidationError("role", msgUnknownRole)
	}
	return s.mutate(ctx, principal, userID, ActionRoleAdded, func(stored *persistence.User) error {
		if !slices.Contains(stored.Roles, role) {
			stored.Roles = append(stored.Roles, role)
		}
		return nil
	})
}

// RemoveRole revokes role from a user. The last remaining role cannot be removed.
func (s *UserService) RemoveRole(ctx context.Context, principal Principal, userID, role string) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	if !principal.IsAdmin() {
		return User{}, ErrUnauthorized
	}
	role = strings.ToUpper(strings.TrimSpace(role))
	if !slices.Contains(knownRoles, role) {
		return User{}, newValidationError("role", msgUnknownRole)
	}
	return s.mutate(ctx, principal, userID, ActionRoleRemoved, func(stored *persistence.User) error {
		remaining := slices.DeleteFunc(slices.Clone(stored.Roles), func(r string) bool { return r == role })
		if len(remaining) == 0 {
			return newValidationError("role", msgLastRole)
		}
		stored.Roles = remaining
		return nil
	})
}

// ResetPassword replaces a user's password with a generated temporary one,
// which is returned once, and requires the user to change it.
func (s *UserService) ResetPassword(ctx context.Context, principal Principal, userID string) (password string, err error) {
	if err = s.ready(); err != nil {
		return
	}
	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	if password, err = GenerateTemporaryPassword(temporaryPasswordLength); err != nil {
		return
	}
	var hash string
	if hash, err = s.hashPassword(password); err != nil {
		return
	}
	if _, err = s.mutate(ctx, principal, userID, ActionPasswordReset, func(stored *persistence.User) error {
		stored.PasswordHash = hash
		stored.Status = string(UserStatusPasswordResetRequired)
		return nil
	}); err != nil {
		password = ""
	}
	return
}

// ChangePassword lets the principal replace their own password.
func (s *UserService) ChangePassword(ctx context.Context, params ChangePasswordParams) error {
	if err := s.ready(); err != nil {
		return err
	}
	if params.Principal.UserID == "" {
		return ErrUnauthenticated
	}

	vErr := &ValidationError{}
	if params.CurrentPassword == "" {
		vErr.add("currentPassword", msgRequired)
	}
	switch {
	case params.NewPassword == "":
		vErr.add("newPassword", msgRequired)
	case len(params.NewPassword) < MinPasswordLength:
		vErr.add("newPassword", msgPasswordTooShort)
	case params.NewPassword == params.CurrentPassword:
		vErr.add("newPassword", msgPasswordUnchanged)
	}
	if vErr.HasErrors() {
		return vErr
	}

	hash, err := s.hashPassword(params.NewPassword)
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, params.Principal, params.Principal.UserID, ActionPasswordChanged, func(stored *persistence.User) error {
		if verifyErr := s.verifyPassword(stored.PasswordHash, params.CurrentPassword); verifyErr != nil {
			return newValidationError("currentPassword", msgPasswordIncorrect)
		}
		stored.PasswordHash = hash
		if stored.Status == string(UserStatusPasswordResetRequired) {
			stored.Status = string(UserStatusActive)
		}
		return nil
	})
	return err
}

// ListRoles returns the known roles.
func (s *UserService) ListRoles(ctx context.Context, principal Principal) ([]Role, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	stored, err := s.users.ListRoles(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	roles := make([]Role, 0, len(stored))
	for _, r := range stored {
		roles = append(roles, Role{Name: r.Name, Description: r.Description})
	}
	return roles, nil
}

// BootstrapAdmin creates an administrator when no user exists yet. It
// reports whether a user was created.
func (s *UserService) BootstrapAdmin(ctx context.Context, email, password string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	count, err := s.users.CountUsers(ctx)
	if err != nil {
		return false, mapRepoError(err)
	}
	if count > 0 {
		return false, nil
	}
	system := Principal{UserID: "system", Roles: []string{RoleAdmin}}
	_, err = s.CreateUser(ctx, CreateUserParams{
		Principal: system,
		Input: UserInput{
			FirstName: "System",
			LastName:  "Administrator",
			Email:     email,
			Roles:     []string{RoleAdmin},
			Password:  password,
		},
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// mutate loads a user, applies change and stores the result.
func (s *UserService) mutate(ctx context.Context, principal Principal, userID, action string, change func(*persistence.User) error) (User, error) {
	stored, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, mapRepoError(err)
	}
	if err := change(&stored); err != nil {
		return User{}, err
	}
	stored.UpdatedAt = s.now()
	if err := s.users.UpdateUser(ctx, stored); err != nil {
		return User{}, mapRepoError(err)
	}
	recordAudit(ctx, s.audit, AuditEntry{
		Action:       action,
		Details:      stored.Email,
		Actor:        principal,
		TargetEntity: "User",
		TargetID:     stored.ID,
	})
	return toUser(stored), nil
}

func normalizeUserInput(input UserInput) UserInput {
	out := UserInput{
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		Password:  input.Password,
	}
	hours := defaultPlannedHours
	if input.PlannedHoursPerDay != nil {
		hours = *input.PlannedHoursPerDay
	}
	out.PlannedHoursPerDay = &hours

	for _, role := range input.Roles {
		role = strings.ToUpper(strings.TrimSpace(role))
		if role != "" && !slices.Contains(out.Roles, role) {
			out.Roles = append(out.Roles, role)
		}
	}
	if len(out.Roles) == 0 {
		out.Roles = []string{RoleEmployee}
	}
	return out
}

func validateUserInput(input UserInput) *ValidationError {
	vErr := &ValidationError{}

	if input.FirstName == "" {
		vErr.add("firstName", msgRequired)
	} else if len(input.FirstName) > maxNameLength {
		vErr.add("firstName", msgTooLong)
	}
	if input.LastName == "" {
		vErr.add("lastName", msgRequired)
	} else if len(input.LastName) > maxNameLength {
		vErr.add("lastName", msgTooLong)
	}

	if input.Email == "" {
		vErr.add("email", msgRequired)
	} else if addr, err := mail.ParseAddress(input.Email); err != nil || addr.Address != input.Email {
		vErr.add("email", msgInvalidEmail)
	}

	if h := *input.PlannedHoursPerDay; h < 0 || h > 24 {
		vErr.add("plannedHoursPerDay", msgPlannedHoursRange)
	}

	for _, role := range input.Roles {
		if !slices.Contains(knownRoles, role) {
			vErr.add("roles", msgUnknownRole)
		}
	}
	return vErr
}

func toUser(stored persistence.User) User {
	return User{
		ID:                 stored.ID,
		FirstName:          stored.FirstName,
		LastName:           stored.LastName,
		Email:              stored.Email,
		Active:             stored.Active,
		Status:             UserStatus(stored.Status),
		PlannedHoursPerDay: stored.PlannedHoursPerDay,
		Roles:              slices.Clone(stored.Roles),
		CreatedAt:          stored.CreatedAt,
		UpdatedAt:          stored.UpdatedAt,
	}
}

func toUsers(stored []persistence.User) []User {
	out := make([]User, 0, len(stored))
	for _, u := range stored {
		out = append(out, toUser(u))
	}
	return out
}

// isManagerUser reports whether the stored user can lead projects.
func isManagerUser(stored persistence.User) bool {
	return slices.Contains(stored.Roles, RoleManager) || slices.Contains(stored.Roles, RoleAdmin)
}

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
)

const msgRoleNotRequestable = "cannot be requested"

// Roles a person may ask for when registering. ADMIN is granted by
// administrators only.
var requestableRoles = []string{RoleEmployee, RoleManager}

// RegistrationRepository captures the persistence operations needed by the
// registration service.
type RegistrationRepository interface {
	CreateRegistration(ctx context.Context, request persistence.RegistrationRequest) error
	UpdateRegistration(ctx context.Context, request persistence.RegistrationRequest) error
	DeleteRegistration(ctx context.Context, id string) error
	GetRegistration(ctx context.Context, id string) (persistence.RegistrationRequest, error)
	ListRegistrations(ctx context.Context, status string) ([]persistence.RegistrationRequest, error)
}

// RegistrationService handles self service sign ups. A request turns into
// an account only after an administrator approves it.
type RegistrationService struct {
	requests     RegistrationRepository
	users        UserRepository
	audit        AuditRecorder
	hashPassword PasswordHasher
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewRegistrationService wires dependencies for the registration service.
func NewRegistrationService(requests RegistrationRepository, users UserRepository, audit AuditRecorder, idGenerator func() string, now func() time.Time) *RegistrationService {
	return NewRegistrationServiceWithLogger(requests, users, audit, nil, idGenerator, now, nil)
}

// NewRegistrationServiceWithLogger wires dependencies with a specified
// password hasher and logger. A nil hasher uses HashPassword.
func NewRegistrationServiceWithLogger(requests RegistrationRepository, users UserRepository, audit AuditRecorder, hasher PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RegistrationService {
	if hasher == nil {
		hasher = HashPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RegistrationService{
		requests:     requests,
		users:        users,
		audit:        audit,
		hashPassword: hasher,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *RegistrationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RegistrationService", operation, attrs...)
}

func (s *RegistrationService) ready() error {
	if s == nil {
		return fmt.Errorf("RegistrationService is nil")
	}
	if s.requests == nil || s.users == nil {
		return fmt.Errorf("registration repositories not configured")
	}
	return nil
}

// Submit stores a pending request. Addresses that already belong to an
// account or to an open request are rejected with ErrAlreadyExists.
func (s *RegistrationService) Submit(ctx context.Context, input RegistrationInput) (request RegistrationRequest, err error) {
	if err = s.ready(); err != nil {
		return
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	logger := s.loggerWith(ctx, "Submit", "email", email)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "failed to submit registration")
			return
		}
		logger.With("registration_id", request.ID).InfoContext(ctx, "registration submitted")
	}()

	role := strings.ToUpper(strings.TrimSpace(input.RequestedRole))
	if role == "" {
		role = RoleEmployee
	}
	userInput := normalizeUserInput(UserInput{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		Roles:     []string{role},
	})
	vErr := validateUserInput(userInput)
	delete(vErr.FieldErrors, "roles")
	switch {
	case !slices.Contains(knownRoles, role):
		vErr.add("requestedRole", msgUnknownRole)
	case !slices.Contains(requestableRoles, role):
		vErr.add("requestedRole", msgRoleNotRequestable)
	}
	switch {
	case input.Password == "":
		vErr.add("password", msgRequired)
	case len(input.Password) < MinPasswordLength:
		vErr.add("password", msgPasswordTooShort)
	}
	var managerID *string
	if input.ManagerID != nil {
		if id := strings.TrimSpace(*input.ManagerID); id != "" {
			managerID = &id
		}
	}
	if managerID != nil {
		stored, lookupErr := s.users.GetUser(ctx, *managerID)
		switch {
		case lookupErr != nil:
			vErr.add("managerId", msgManagerUnknown)
		case !isManagerUser(stored):
			vErr.add("managerId", msgManagerRole)
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	_, lookupErr := s.users.GetUserByEmail(ctx, userInput.Email)
	switch {
	case lookupErr == nil:
		err = ErrAlreadyExists
		return
	case !errors.Is(lookupErr, persistence.ErrNotFound):
		err = mapRepoError(lookupErr)
		return
	}

	var hash string
	if hash, err = s.hashPassword(input.Password); err != nil {
		return
	}
	stored := persistence.RegistrationRequest{
		ID:            s.idGenerator(),
		FirstName:     userInput.FirstName,
		LastName:      userInput.LastName,
		Email:         userInput.Email,
		PasswordHash:  hash,
		RequestedRole: role,
		ManagerID:     managerID,
		Status:        string(RegistrationPending),
		CreatedAt:     s.now(),
	}
	if err = s.requests.CreateRegistration(ctx, stored); err != nil {
		err = mapRepoError(err)
		return
	}

	request = s.toRegistration(ctx, stored)
	recordAudit(ctx, s.audit, AuditEntry{
		Action:       ActionRegistrationSubmitted,
		Details:      "registration by " + stored.Email,
		Actor:        Principal{Email: stored.Email},
		TargetEntity: "RegistrationRequest",
		TargetID:     stored.ID,
	})
	return
}

// ListPending returns open requests, oldest first, to administrators.
func (s *RegistrationService) ListPending(ctx context.Context, principal Principal) ([]RegistrationRequest, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	stored, err := s.requests.ListRegistrations(ctx, string(RegistrationPending))
	if err != nil {
		return nil, mapRepoError(err)
	}
	out := make([]RegistrationRequest, 0, len(stored))
	for _, r := range stored {
		out = append(out, s.toRegistration(ctx, r))
	}
	return out, nil
}

// Approve creates the requested account with the password chosen at sign
// up and marks the request approved.
func (s *RegistrationService) Approve(ctx context.Context, principal Principal, requestID string) (user User, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Approve", "principal_id", principal.UserID, "registration_id", requestID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "failed to approve registration")
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "registration approved")
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	var stored persistence.RegistrationRequest
	if stored, err = s.pending(ctx, requestID); err != nil {
		return
	}

	now := s.now()
	account := persistence.User{
		ID:                 s.idGenerator(),
		FirstName:          stored.FirstName,
		LastName:           stored.LastName,
		Email:              stored.Email,
		PasswordHash:       stored.PasswordHash,
		Active:             true,
		Status:             string(UserStatusActive),
		PlannedHoursPerDay: defaultPlannedHours,
		Roles:              []string{stored.RequestedRole},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err = s.users.CreateUser(ctx, account); err != nil {
		err = mapRepoError(err)
		return
	}

	stored.Status = string(RegistrationApproved)
	stored.DecidedBy = &principal.UserID
	stored.DecidedAt = &now
	if err = s.requests.UpdateRegistration(ctx, stored); err != nil {
		err = mapRepoError(err)
		return
	}

	user = toUser(account)
	recordAudit(ctx, s.audit, AuditEntry{
		Action:       ActionRegistrationApproved,
		Details:      "approved " + stored.Email,
		Actor:        principal,
		TargetEntity: "User",
		TargetID:     account.ID,
	})
	return
}

// Reject deletes an open request so that the person can register again.
func (s *RegistrationService) Reject(ctx context.Context, principal Principal, requestID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Reject", "principal_id", principal.UserID, "registration_id", requestID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "failed to reject registration")
			return
		}
		logger.InfoContext(ctx, "registration rejected")
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	var stored persistence.RegistrationRequest
	if stored, err = s.pending(ctx, requestID); err != nil {
		return
	}
	if err = s.requests.DeleteRegistration(ctx, stored.ID); err != nil {
		err = mapRepoError(err)
		return
	}

	recordAudit(ctx, s.audit, AuditEntry{
		Action:       ActionRegistrationRejected,
		Details:      "rejected " + stored.Email,
		Actor:        principal,
		TargetEntity: "RegistrationRequest",
		TargetID:     stored.ID,
	})
	return
}

// pending loads a request that still awaits a decision.
func (s *RegistrationService) pending(ctx context.Context, requestID string) (persistence.RegistrationRequest, error) {
	stored, err := s.requests.GetRegistration(ctx, requestID)
	if err != nil {
		return persistence.RegistrationRequest{}, mapRepoError(err)
	}
	if stored.Status != string(RegistrationPending) {
		return persistence.RegistrationRequest{}, ErrInvalidState
	}
	return stored, nil
}

func (s *RegistrationService) toRegistration(ctx context.Context, stored persistence.RegistrationRequest) RegistrationRequest {
	out := RegistrationRequest{
		ID:            stored.ID,
		FirstName:     stored.FirstName,
		LastName:      stored.LastName,
		Email:         stored.Email,
		RequestedRole: stored.RequestedRole,
		ManagerID:     copyStringPtr(stored.ManagerID),
		Status:        RegistrationStatus(stored.Status),
		CreatedAt:     stored.CreatedAt,
		DecidedAt:     stored.DecidedAt,
	}
	if stored.ManagerID != nil {
		if manager, err := s.users.GetUser(ctx, *stored.ManagerID); err == nil {
			out.ManagerName = toUser(manager).FullName()
		}
	}
	return out
}

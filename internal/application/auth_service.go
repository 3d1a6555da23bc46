package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/timerecording/internal/persistence"
)

// CredentialStore exposes the user lookups required by the auth service.
type CredentialStore interface {
	GetUserByEmail(ctx context.Context, email string) (persistence.User, error)
	GetUser(ctx context.Context, id string) (persistence.User, error)
}

// AuthService coordinates login, token validation and logout.
type AuthService struct {
	credentials    CredentialStore
	tokens         *TokenIssuer
	denylist       *TokenDenylist
	audit          AuditRecorder
	verifyPassword PasswordVerifier
	now            func() time.Time
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, tokens *TokenIssuer, denylist *TokenDenylist, audit AuditRecorder, verify PasswordVerifier, now func() time.Time) *AuthService {
	return NewAuthServiceWithLogger(credentials, tokens, denylist, audit, verify, now, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(credentials CredentialStore, tokens *TokenIssuer, denylist *TokenDenylist, audit AuditRecorder, verify PasswordVerifier, now func() time.Time, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		credentials:    credentials,
		tokens:         tokens,
		denylist:       denylist,
		audit:          audit,
		verifyPassword: verify,
		now:            now,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate validates credentials and issues an access token.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil || s.tokens == nil {
		err = fmt.Errorf("auth service not configured")
		return
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	logger := s.loggerWith(ctx, "Authenticate", "email", email)

	var stored persistence.User
	defer func() {
		actor := Principal{UserID: stored.ID, Email: email}
		if err != nil {
			logOutcome(ctx, logger, err, "authentication failed")
			if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrAccountDisabled) {
				recordAudit(ctx, s.audit, AuditEntry{
					Action:       ActionLoginFailed,
					Details:      ErrorKind(err),
					Actor:        actor,
					TargetEntity: "User",
					TargetID:     stored.ID,
				})
			}
			return
		}
		recordAudit(ctx, s.audit, AuditEntry{Action: ActionLoginSuccess, Actor: actor, TargetEntity: "User", TargetID: stored.ID})
		logger.With("user_id", result.User.ID).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	stored, err = s.credentials.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrInvalidCredentials
			return
		}
		err = mapRepoError(err)
		return
	}

	if verifyErr := s.verifyPassword(stored.PasswordHash, params.Password); verifyErr != nil {
		err = ErrInvalidCredentials
		return
	}

	user := toUser(stored)
	if !canSignIn(user) {
		err = ErrAccountDisabled
		return
	}

	var issued IssuedToken
	issued, err = s.tokens.Issue(user)
	if err != nil {
		return
	}

	result = AuthenticateResult{Token: issued.Token, ExpiresAt: issued.ExpiresAt, User: user}
	return
}

// ValidateToken verifies an access token and returns the principal it
// represents. Roles come from the stored user, not from the token.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil || s.tokens == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}

	var claims *TokenClaims
	claims, err = s.tokens.Parse(token)
	if err != nil {
		return
	}

	var revoked bool
	revoked, err = s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if revoked {
		err = ErrSessionRevoked
		return
	}

	if s.credentials == nil {
		principal = Principal{UserID: claims.Subject, Email: claims.Email, Roles: claims.Roles}
		return
	}

	var stored persistence.User
	stored, err = s.credentials.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = fmt.Errorf("%w: user no longer exists", ErrUnauthenticated)
			return
		}
		err = mapRepoError(err)
		return
	}
	user := toUser(stored)
	if !canSignIn(user) {
		err = fmt.Errorf("%w: account disabled", ErrUnauthenticated)
		return
	}

	principal = user.Principal()
	return
}

// RevokeToken logs a token out until it expires. Tokens that already expired
// need no record and are accepted silently.
func (s *AuthService) RevokeToken(ctx context.Context, token string) (err error) {
	if s == nil || s.tokens == nil {
		return fmt.Errorf("AuthService is nil")
	}

	logger := s.loggerWith(ctx, "RevokeToken")
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "logout failed")
		}
	}()

	claims, parseErr := s.tokens.Parse(token)
	if errors.Is(parseErr, ErrSessionExpired) {
		return nil
	}
	if parseErr != nil {
		err = parseErr
		return
	}

	now := s.now()
	if err = s.denylist.Revoke(ctx, claims.ID, claims.Subject, claims.ExpiresAt.Time, now); err != nil {
		err = mapRepoError(err)
		return
	}

	recordAudit(ctx, s.audit, AuditEntry{
		Action:       ActionLogout,
		Actor:        Principal{UserID: claims.Subject, Email: claims.Email},
		TargetEntity: "User",
		TargetID:     claims.Subject,
	})
	logger.With("user_id", claims.Subject).InfoContext(ctx, "token revoked")
	return nil
}

func canSignIn(user User) bool {
	if !user.Active {
		return false
	}
	switch user.Status {
	case UserStatusInactive, UserStatusLocked:
		return false
	}
	return true
}

package application

import (
	"errors"
	"testing"
	"time"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTokenIssuer_IssueAndParse(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer([]byte("secret"), "timerecording", time.Hour, fixedNow(issuedAt))
	issuer.newID = func() string { return "token-1" }

	user := User{ID: "user-1", Email: "anna@example.com", Roles: []string{RoleManager}}
	issued, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if issued.ID != "token-1" {
		t.Fatalf("expected token id token-1, got %q", issued.ID)
	}
	if !issued.ExpiresAt.Equal(issuedAt.Add(time.Hour)) {
		t.Fatalf("expected expiry %v, got %v", issuedAt.Add(time.Hour), issued.ExpiresAt)
	}

	claims, err := issuer.Parse(issued.Token)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "anna@example.com" || claims.ID != "token-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != RoleManager {
		t.Fatalf("unexpected roles %v", claims.Roles)
	}
}

func TestTokenIssuer_ParseFailures(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	user := User{ID: "user-1", Email: "anna@example.com", Roles: []string{RoleEmployee}}

	issuer := NewTokenIssuer([]byte("secret"), "timerecording", time.Hour, fixedNow(issuedAt))
	issued, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	cases := []struct {
		name   string
		parser *TokenIssuer
		token  string
		want   error
	}{
		{
			name:   "expired",
			parser: NewTokenIssuer([]byte("secret"), "timerecording", time.Hour, fixedNow(issuedAt.Add(2*time.Hour))),
			token:  issued.Token,
			want:   ErrSessionExpired,
		},
		{
			name:   "wrong secret",
			parser: NewTokenIssuer([]byte("other"), "timerecording", time.Hour, fixedNow(issuedAt)),
			token:  issued.Token,
			want:   ErrUnauthenticated,
		},
		{
			name:   "wrong issuer",
			parser: NewTokenIssuer([]byte("secret"), "someone-else", time.Hour, fixedNow(issuedAt)),
			token:  issued.Token,
			want:   ErrUnauthenticated,
		},
		{
			name:   "garbage",
			parser: issuer,
			token:  "not-a-token",
			want:   ErrUnauthenticated,
		},
		{
			name:   "empty",
			parser: issuer,
			token:  "  ",
			want:   ErrUnauthenticated,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := tc.parser.Parse(tc.token); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNewTokenIssuer_DefaultTTL(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer([]byte("secret"), "", 0, nil)
	if issuer.TTL() != DefaultTokenTTL {
		t.Fatalf("expected default ttl %v, got %v", DefaultTokenTTL, issuer.TTL())
	}
}

package http

import (
	"net/http"
)

// Paths served without an access token.
const (
	LoginPath    = "/api/auth/login"
	RegisterPath = "/api/auth/register"
	HealthPath   = "/healthz"
)

// PublicPaths lists the routes RequireToken lets through.
var PublicPaths = []string{LoginPath, RegisterPath, HealthPath}

type RouterConfig struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Registrations *RegistrationHandler
	Projects      *ProjectHandler
	TimeEntries   *TimeEntryHandler
	Absences      *AbsenceHandler
	System        *SystemHandler
	Middleware    []func(http.Handler) http.Handler
}

// NewRouter registers every configured handler. Middleware wraps the mux in
// the given order, the first entry being outermost.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Auth != nil {
		mux.HandleFunc("POST "+LoginPath, cfg.Auth.Login)
		mux.HandleFunc("POST /api/auth/logout", cfg.Auth.Logout)
		mux.HandleFunc("PUT /api/users/change-password", cfg.Auth.ChangePassword)
	}

	if u := cfg.Users; u != nil {
		mux.HandleFunc("GET /api/admin/users", u.List)
		mux.HandleFunc("POST /api/admin/users", u.Create)
		mux.HandleFunc("GET /api/admin/users/search", u.Search)
		mux.HandleFunc("GET /api/admin/users/{id}", u.Get)
		mux.HandleFunc("PUT /api/admin/users/{id}", u.Update)
		mux.HandleFunc("PATCH /api/admin/users/{id}/activate", u.Activate)
		mux.HandleFunc("PATCH /api/admin/users/{id}/deactivate", u.Deactivate)
		mux.HandleFunc("PATCH /api/admin/users/{id}/status", u.SetStatus)
		mux.HandleFunc("POST /api/admin/users/{id}/roles/{role}", u.AddRole)
		mux.HandleFunc("DELETE /api/admin/users/{id}/roles/{role}", u.RemoveRole)
		mux.HandleFunc("POST /api/admin/users/{id}/reset-password", u.ResetPassword)
		mux.HandleFunc("GET /api/admin/roles", u.ListRoles)
	}

	if reg := cfg.Registrations; reg != nil {
		mux.HandleFunc("POST "+RegisterPath, reg.Submit)
		mux.HandleFunc("GET /api/admin/registration-requests/pending", reg.ListPending)
		mux.HandleFunc("PATCH /api/admin/registration-requests/{id}/approve", reg.Approve)
		mux.HandleFunc("PATCH /api/admin/registration-requests/{id}/reject", reg.Reject)
	}

	if p := cfg.Projects; p != nil {
		mux.HandleFunc("GET /api/projects", p.List)
		mux.HandleFunc("POST /api/projects", p.Create)
		mux.HandleFunc("GET /api/projects/active", p.ListActive)
		mux.HandleFunc("GET /api/projects/search", p.Search)
		mux.HandleFunc("GET /api/projects/manager/{userId}", p.ListByManager)
		mux.HandleFunc("GET /api/projects/user/{userId}", p.ListForUser)
		mux.HandleFunc("GET /api/projects/{id}", p.Get)
		mux.HandleFunc("PUT /api/projects/{id}", p.Update)
		mux.HandleFunc("PATCH /api/projects/{id}/activate", p.Activate)
		mux.HandleFunc("PATCH /api/projects/{id}/deactivate", p.Deactivate)
		mux.HandleFunc("PUT /api/projects/{id}/manager", p.AssignManager)
		mux.HandleFunc("DELETE /api/projects/{id}/manager", p.RemoveManager)
	}

	if t := cfg.TimeEntries; t != nil {
		mux.HandleFunc("GET /api/time-entries", t.ListOwn)
		mux.HandleFunc("POST /api/time-entries", t.Create)
		mux.HandleFunc("POST /api/time-entries/start", t.Start)
		mux.HandleFunc("GET /api/time-entries/user/{userId}", t.ListForUser)
		mux.HandleFunc("PUT /api/time-entries/{id}", t.Update)
		mux.HandleFunc("DELETE /api/time-entries/{id}", t.Delete)
		mux.HandleFunc("POST /api/time-entries/{id}/stop", t.Stop)
		mux.HandleFunc("POST /api/time-entries/{id}/assign-project", t.AssignProject)
	}

	if a := cfg.Absences; a != nil {
		mux.HandleFunc("GET /api/absences", a.ListOwn)
		mux.HandleFunc("POST /api/absences", a.Create)
		mux.HandleFunc("GET /api/absences/pending", a.ListPending)
		mux.HandleFunc("GET /api/absences/approved", a.ListApproved)
		mux.HandleFunc("GET /api/absences/check", a.Check)
		mux.HandleFunc("GET /api/absences/type/{type}", a.ListByType)
		mux.HandleFunc("GET /api/absences/user/{userId}", a.ListForUser)
		mux.HandleFunc("GET /api/absences/user/{userId}/upcoming", a.ListUpcoming)
		mux.HandleFunc("GET /api/absences/user/{userId}/days", a.Days)
		mux.HandleFunc("PUT /api/absences/{id}", a.Update)
		mux.HandleFunc("DELETE /api/absences/{id}", a.Delete)
		mux.HandleFunc("POST /api/absences/{id}/approve", a.Approve)
		mux.HandleFunc("POST /api/absences/{id}/reject", a.Reject)
	}

	if s := cfg.System; s != nil {
		mux.HandleFunc("GET /api/admin/logs", s.ListLogs)
		mux.HandleFunc("GET "+HealthPath, s.Health)
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}

package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/timerecording/internal/testfixtures"
)

type testServer struct {
	handler http.Handler
	harness *testfixtures.SQLiteHarness
	admin   testfixtures.UserFixture
	manager testfixtures.UserFixture
	worker  testfixtures.UserFixture
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	harness := testfixtures.NewSQLiteHarness(t)
	services := testfixtures.NewServiceFactory().NewServices(harness)
	logger := discardLogger()

	srv := &testServer{
		harness: harness,
		admin:   harness.SeedUser(t, testfixtures.NewUserFixture(testfixtures.AsAdmin(), testfixtures.WithUserEmail("admin@example.com"))),
		manager: harness.SeedUser(t, testfixtures.NewUserFixture(testfixtures.AsManager(), testfixtures.WithUserEmail("manager@example.com"))),
		worker:  harness.SeedUser(t, testfixtures.NewUserFixture(testfixtures.WithUserEmail("worker@example.com"), testfixtures.WithUserName("Erika", "Muster"))),
	}

	srv.handler = NewRouter(RouterConfig{
		Auth:          NewAuthHandler(services.Auth, services.Users, logger),
		Users:         NewUserHandler(services.Users, logger),
		Registrations: NewRegistrationHandler(services.Registrations, logger),
		Projects:      NewProjectHandler(services.Projects, logger),
		TimeEntries:   NewTimeEntryHandler(services.TimeEntries, logger),
		Absences:      NewAbsenceHandler(services.Absences, logger),
		System:        NewSystemHandler(services.Audit, harness, logger),
		Middleware: []func(http.Handler) http.Handler{
			RequestLogger(logger),
			RequireToken(services.Auth, logger, PublicPaths...),
		},
	})
	return srv
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()

	rec := s.do(t, http.MethodPost, LoginPath, "", map[string]string{"email": email, "password": testfixtures.DefaultPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", email, rec.Code, rec.Body.String())
	}
	var resp loginResponse
	decodeBody(t, rec, &resp)
	if resp.Token == "" {
		t.Fatal("expected token in login response")
	}
	return resp.Token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func TestAuthFlow(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, LoginPath, "", map[string]string{"email": "WORKER@example.com", "password": testfixtures.DefaultPassword})
	expectStatus(t, rec, http.StatusOK)
	var login loginResponse
	decodeBody(t, rec, &login)
	if login.User.Email != "worker@example.com" || login.User.Role != "EMPLOYEE" || login.User.FirstName != "Erika" {
		t.Fatalf("unexpected login user %+v", login.User)
	}
	if login.ExpiresAt == "" {
		t.Fatal("expected expiry timestamp")
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != accessTokenCookie || !cookies[0].HttpOnly || !cookies[0].Secure {
		t.Fatalf("expected secure http-only token cookie, got %+v", cookies)
	}

	rec = srv.do(t, http.MethodPost, LoginPath, "", map[string]string{"email": "worker@example.com", "password": "wrong-password"})
	expectStatus(t, rec, http.StatusUnauthorized)
	if body := decodeError(t, rec); body.ErrorCode != codeInvalidCredentials || body.Message != "Ungültige Login-Daten." {
		t.Fatalf("unexpected error body %+v", body)
	}

	rec = srv.do(t, http.MethodGet, "/api/time-entries", "", nil)
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = srv.do(t, http.MethodGet, "/api/time-entries", login.Token, nil)
	expectStatus(t, rec, http.StatusOK)

	rec = srv.do(t, http.MethodPost, "/api/auth/logout", login.Token, nil)
	expectStatus(t, rec, http.StatusNoContent)

	rec = srv.do(t, http.MethodGet, "/api/time-entries", login.Token, nil)
	expectStatus(t, rec, http.StatusUnauthorized)
	if body := decodeError(t, rec); body.ErrorCode != codeSessionRevoked {
		t.Fatalf("expected revoked session, got %+v", body)
	}
}

func TestRegistrationWorkflow(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	adminToken := srv.login(t, "admin@example.com")
	workerToken := srv.login(t, "worker@example.com")

	register := func(email string) *httptest.ResponseRecorder {
		return srv.do(t, http.MethodPost, RegisterPath, "", map[string]any{
			"firstName":     "Lena",
			"lastName":      "Fischer",
			"email":         email,
			"password":      "sunny-meadow-9",
			"requestedRole": "EMPLOYEE",
			"managerId":     srv.manager.ID,
		})
	}

	rec := register("lena.fischer@example.com")
	expectStatus(t, rec, http.StatusCreated)
	var submitted registrationDTO
	decodeBody(t, rec, &submitted)
	if submitted.Status != "PENDING" || submitted.ManagerID == nil || *submitted.ManagerID != srv.manager.ID {
		t.Fatalf("unexpected registration %+v", submitted)
	}

	rec = register("lena.fischer@example.com")
	expectStatus(t, rec, http.StatusConflict)

	rec = srv.do(t, http.MethodPost, RegisterPath, "", map[string]any{"firstName": "Lena", "lastName": "Fischer", "email": "x@example.com", "password": "kurz"})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	if body := decodeError(t, rec); body.Errors["password"] != "Passwort muss mindestens 8 Zeichen lang sein." {
		t.Fatalf("unexpected validation errors %v", body.Errors)
	}

	// No account exists before approval.
	rec = srv.do(t, http.MethodPost, LoginPath, "", map[string]string{"email": "lena.fischer@example.com", "password": "sunny-meadow-9"})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = srv.do(t, http.MethodGet, "/api/admin/registration-requests/pending", workerToken, nil)
	expectStatus(t, rec, http.StatusForbidden)

	rec = srv.do(t, http.MethodGet, "/api/admin/registration-requests/pending", adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	var pending []registrationDTO
	decodeBody(t, rec, &pending)
	if len(pending) != 1 || pending[0].ID != submitted.ID || pending[0].ManagerName == "N/A" {
		t.Fatalf("unexpected pending requests %+v", pending)
	}

	rec = srv.do(t, http.MethodPatch, "/api/admin/registration-requests/"+submitted.ID+"/approve", adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	var approved registrationDecisionResponse
	decodeBody(t, rec, &approved)
	if approved.User == nil || approved.User.Email != "lena.fischer@example.com" || approved.User.Status != "ACTIVE" || approved.User.Role != "EMPLOYEE" {
		t.Fatalf("unexpected approval response %+v", approved)
	}

	rec = srv.do(t, http.MethodPost, LoginPath, "", map[string]string{"email": "lena.fischer@example.com", "password": "sunny-meadow-9"})
	expectStatus(t, rec, http.StatusOK)

	rec = srv.do(t, http.MethodPatch, "/api/admin/registration-requests/"+submitted.ID+"/reject", adminToken, nil)
	expectStatus(t, rec, http.StatusConflict)
	if body := decodeError(t, rec); body.ErrorCode != codeInvalidState {
		t.Fatalf("expected %s, got %+v", codeInvalidState, body)
	}

	rec = register("jonas.weber@example.com")
	expectStatus(t, rec, http.StatusCreated)
	decodeBody(t, rec, &submitted)
	rec = srv.do(t, http.MethodPatch, "/api/admin/registration-requests/"+submitted.ID+"/reject", adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	rec = srv.do(t, http.MethodPatch, "/api/admin/registration-requests/"+submitted.ID+"/approve", adminToken, nil)
	expectStatus(t, rec, http.StatusNotFound)

	// A rejected person can register again.
	rec = register("jonas.weber@example.com")
	expectStatus(t, rec, http.StatusCreated)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	token := srv.login(t, "worker@example.com")

	rec := srv.do(t, http.MethodPut, "/api/users/change-password", token, map[string]string{
		"currentPassword": "not-my-password",
		"newPassword":     "battery-staple-7",
	})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = srv.do(t, http.MethodPut, "/api/users/change-password", token, map[string]string{
		"currentPassword": testfixtures.DefaultPassword,
		"newPassword":     "battery-staple-7",
	})
	expectStatus(t, rec, http.StatusNoContent)

	rec = srv.do(t, http.MethodPost, LoginPath, "", map[string]string{"email": "worker@example.com", "password": "battery-staple-7"})
	expectStatus(t, rec, http.StatusOK)
}

func TestUserAdministration(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	adminToken := srv.login(t, "admin@example.com")
	workerToken := srv.login(t, "worker@example.com")

	t.Run("validation errors are localized", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/api/admin/users", adminToken, map[string]any{})
		expectStatus(t, rec, http.StatusUnprocessableEntity)
		body := decodeError(t, rec)
		if body.ErrorCode != codeValidation {
			t.Fatalf("unexpected code %q", body.ErrorCode)
		}
		if got := body.Errors["email"]; got != "E-Mail-Adresse ist erforderlich." {
			t.Fatalf("unexpected email message %q", got)
		}
		if got := body.Errors["firstName"]; got != "Vorname ist erforderlich." {
			t.Fatalf("unexpected first name message %q", got)
		}
	})

	t.Run("creates a user with a temporary password", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/api/admin/users", adminToken, map[string]any{
			"firstName": "Jonas",
			"lastName":  "Becker",
			"email":     "Jonas.Becker@Example.com",
			"roles":     []string{"EMPLOYEE"},
		})
		expectStatus(t, rec, http.StatusCreated)
		var created createUserResponse
		decodeBody(t, rec, &created)
		if created.User.Email != "jonas.becker@example.com" || created.User.Status != "PASSWORD_RESET_REQUIRED" {
			t.Fatalf("unexpected created user %+v", created.User)
		}
		if len(created.TemporaryPassword) < 8 {
			t.Fatalf("expected temporary password, got %q", created.TemporaryPassword)
		}

		rec = srv.do(t, http.MethodPost, LoginPath, "", map[string]string{"email": "jonas.becker@example.com", "password": created.TemporaryPassword})
		expectStatus(t, rec, http.StatusOK)

		rec = srv.do(t, http.MethodGet, "/api/admin/users/"+created.User.ID, adminToken, nil)
		expectStatus(t, rec, http.StatusOK)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/api/admin/users", adminToken, map[string]any{
			"firstName": "Erika",
			"lastName":  "Doppelt",
			"email":     "worker@example.com",
		})
		expectStatus(t, rec, http.StatusConflict)
		if body := decodeError(t, rec); body.ErrorCode != codeAlreadyExists {
			t.Fatalf("unexpected error %+v", body)
		}
	})

	t.Run("employees cannot administrate users", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/api/admin/users", workerToken, nil)
		expectStatus(t, rec, http.StatusForbidden)
		if body := decodeError(t, rec); body.ErrorCode != codeForbidden {
			t.Fatalf("unexpected error %+v", body)
		}
	})

	t.Run("unknown users are not found", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/api/admin/users/does-not-exist", adminToken, nil)
		expectStatus(t, rec, http.StatusNotFound)
	})

	t.Run("search and roles", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/api/admin/users/search?term=muster", adminToken, nil)
		expectStatus(t, rec, http.StatusOK)
		var found []userDTO
		decodeBody(t, rec, &found)
		if len(found) != 1 || found[0].ID != srv.worker.ID {
			t.Fatalf("unexpected search result %+v", found)
		}

		rec = srv.do(t, http.MethodPost, "/api/admin/users/"+srv.worker.ID+"/roles/manager", adminToken, nil)
		expectStatus(t, rec, http.StatusOK)
		var updated userDTO
		decodeBody(t, rec, &updated)
		if len(updated.Roles) != 2 {
			t.Fatalf("expected two roles, got %v", updated.Roles)
		}

		rec = srv.do(t, http.MethodGet, "/api/admin/logs", adminToken, nil)
		expectStatus(t, rec, http.StatusOK)
		var logs []systemLogDTO
		decodeBody(t, rec, &logs)
		if len(logs) == 0 {
			t.Fatal("expected audit entries for administrative changes")
		}

		rec = srv.do(t, http.MethodGet, "/api/admin/logs?limit=abc", adminToken, nil)
		expectStatus(t, rec, http.StatusBadRequest)
	})
}

func TestTimeEntryEndpoints(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	token := srv.login(t, "worker@example.com")

	day := map[string]any{
		"date":       "2024-01-02",
		"startTimes": []string{"08:00"},
		"endTimes":   []string{"16:30"},
		"breaks":     []map[string]string{{"start": "12:00", "end": "12:30"}},
	}

	rec := srv.do(t, http.MethodPost, "/api/time-entries", token, day)
	expectStatus(t, rec, http.StatusCreated)
	var entry timeEntryDTO
	decodeBody(t, rec, &entry)
	if entry.ActualHours != "08:00" || entry.Difference != "+00:00" || entry.ActualMinutes != 480 {
		t.Fatalf("unexpected computed hours %+v", entry)
	}
	if entry.UserID != srv.worker.ID || entry.Date != "2024-01-02" {
		t.Fatalf("unexpected entry %+v", entry)
	}

	rec = srv.do(t, http.MethodPost, "/api/time-entries", token, day)
	expectStatus(t, rec, http.StatusConflict)

	rec = srv.do(t, http.MethodPost, "/api/time-entries", token, map[string]any{
		"date":       "2024-01-03",
		"startTimes": []string{"8 Uhr"},
	})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	body := decodeError(t, rec)
	if got := body.Errors["startTimes[0]"]; got != "Ungültiges Format für Startzeit 1, erwartet wird HH:MM." {
		t.Fatalf("unexpected field error %q in %+v", got, body.Errors)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/time-entries", strings.NewReader("not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusBadRequest)
	if body := decodeError(t, rec); body.ErrorCode != codeBadRequest {
		t.Fatalf("unexpected error %+v", body)
	}

	rec = srv.do(t, http.MethodGet, "/api/time-entries", token, nil)
	expectStatus(t, rec, http.StatusOK)
	var entries []timeEntryDTO
	decodeBody(t, rec, &entries)
	if len(entries) != 1 || entries[0].ID != entry.ID {
		t.Fatalf("unexpected entries %+v", entries)
	}

	otherToken := srv.login(t, "manager@example.com")
	rec = srv.do(t, http.MethodDelete, "/api/time-entries/"+entry.ID, otherToken, nil)
	if rec.Code != http.StatusForbidden && rec.Code != http.StatusNotFound {
		t.Fatalf("expected foreign delete to be rejected, got %d", rec.Code)
	}

	rec = srv.do(t, http.MethodDelete, "/api/time-entries/"+entry.ID, token, nil)
	expectStatus(t, rec, http.StatusNoContent)
}

func TestAbsenceEndpoints(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	workerToken := srv.login(t, "worker@example.com")
	managerToken := srv.login(t, "manager@example.com")

	rec := srv.do(t, http.MethodPost, "/api/absences", workerToken, map[string]string{
		"startDate": "2024-02-05",
		"endDate":   "2024-02-09",
		"type":      "VACATION",
	})
	expectStatus(t, rec, http.StatusCreated)
	var absence absenceDTO
	decodeBody(t, rec, &absence)
	if absence.Status != "PENDING" || absence.Days != 5 || absence.ApproverID != nil {
		t.Fatalf("unexpected absence %+v", absence)
	}

	rec = srv.do(t, http.MethodPost, "/api/absences", workerToken, map[string]string{
		"startDate": "2024-02-08",
		"endDate":   "2024-02-12",
		"type":      "ILLNESS",
	})
	expectStatus(t, rec, http.StatusConflict)
	if body := decodeError(t, rec); body.ErrorCode != codeOverlap {
		t.Fatalf("unexpected error %+v", body)
	}

	rec = srv.do(t, http.MethodPost, "/api/absences/"+absence.ID+"/approve", workerToken, nil)
	expectStatus(t, rec, http.StatusForbidden)

	rec = srv.do(t, http.MethodGet, "/api/absences/pending", managerToken, nil)
	expectStatus(t, rec, http.StatusOK)
	var pending []absenceDTO
	decodeBody(t, rec, &pending)
	if len(pending) != 1 || pending[0].ID != absence.ID {
		t.Fatalf("unexpected pending list %+v", pending)
	}

	rec = srv.do(t, http.MethodPost, "/api/absences/"+absence.ID+"/approve", managerToken, nil)
	expectStatus(t, rec, http.StatusOK)
	var approved absenceDTO
	decodeBody(t, rec, &approved)
	if approved.Status != "APPROVED" || approved.ApproverID == nil || *approved.ApproverID != srv.manager.ID || approved.ApprovedAt == nil {
		t.Fatalf("unexpected approval %+v", approved)
	}

	rec = srv.do(t, http.MethodPost, "/api/absences/"+absence.ID+"/reject", managerToken, nil)
	expectStatus(t, rec, http.StatusConflict)

	rec = srv.do(t, http.MethodGet, "/api/absences/check?date=2024-02-07", workerToken, nil)
	expectStatus(t, rec, http.StatusOK)
	var check absenceCheckResponse
	decodeBody(t, rec, &check)
	if !check.Absent || check.UserID != srv.worker.ID {
		t.Fatalf("unexpected check result %+v", check)
	}

	rec = srv.do(t, http.MethodGet, "/api/absences/user/"+srv.worker.ID+"/days?from=2024-02-01&to=2024-02-07", workerToken, nil)
	expectStatus(t, rec, http.StatusOK)
	var days absenceDaysResponse
	decodeBody(t, rec, &days)
	if days.Days != 3 {
		t.Fatalf("expected 3 days inside the range, got %+v", days)
	}

	rec = srv.do(t, http.MethodGet, "/api/absences/user/"+srv.manager.ID, workerToken, nil)
	expectStatus(t, rec, http.StatusForbidden)
}

func TestProjectEndpoints(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	adminToken := srv.login(t, "admin@example.com")
	workerToken := srv.login(t, "worker@example.com")

	rec := srv.do(t, http.MethodPost, "/api/projects", adminToken, map[string]any{
		"name":        "Website Relaunch",
		"description": "Neue Firmenwebseite",
		"managerId":   srv.manager.ID,
	})
	expectStatus(t, rec, http.StatusCreated)
	var project projectDTO
	decodeBody(t, rec, &project)
	if !project.Active || project.ManagerID == nil || *project.ManagerID != srv.manager.ID {
		t.Fatalf("unexpected project %+v", project)
	}

	rec = srv.do(t, http.MethodPost, "/api/projects", workerToken, map[string]any{"name": "Schatten"})
	expectStatus(t, rec, http.StatusForbidden)

	rec = srv.do(t, http.MethodGet, "/api/projects/manager/"+srv.manager.ID+"?active=true", adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	var managed []projectDTO
	decodeBody(t, rec, &managed)
	if len(managed) != 1 || managed[0].ID != project.ID {
		t.Fatalf("unexpected managed projects %+v", managed)
	}

	rec = srv.do(t, http.MethodGet, "/api/projects/manager/"+srv.manager.ID+"?active=vielleicht", adminToken, nil)
	expectStatus(t, rec, http.StatusBadRequest)

	rec = srv.do(t, http.MethodPatch, "/api/projects/"+project.ID+"/deactivate", adminToken, nil)
	expectStatus(t, rec, http.StatusOK)

	rec = srv.do(t, http.MethodGet, "/api/projects/active", workerToken, nil)
	expectStatus(t, rec, http.StatusOK)
	var active []projectDTO
	decodeBody(t, rec, &active)
	if len(active) != 0 {
		t.Fatalf("expected no active projects, got %+v", active)
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := srv.do(t, http.MethodGet, HealthPath, "", nil)
	expectStatus(t, rec, http.StatusOK)
	var health healthResponse
	decodeBody(t, rec, &health)
	if health.Status != "ok" || health.Database != "up" {
		t.Fatalf("unexpected health %+v", health)
	}
}

// Package http exposes the time recording services as a JSON API.
//
// All routes live below /api and, except for POST /api/auth/login and
// GET /healthz, require a bearer token issued by the login endpoint. The token
// may also be sent as the access_token cookie set on login.
//
//   - /api/auth: login and logout.
//   - /api/users/change-password: self service password change.
//   - /api/admin/users, /api/admin/roles, /api/admin/logs: administration,
//     restricted to the ADMIN role by the application services.
//   - /api/projects: project catalog and manager assignment.
//   - /api/time-entries: working day records, clock in and clock out.
//   - /api/absences: absence requests, decisions and reporting queries.
//
// Request and response bodies use camelCase JSON. Dates are YYYY-MM-DD,
// clock times HH:MM and timestamps RFC 3339. Errors share one shape,
// {"errorCode","message","errors"}, where errors maps request fields to
// German messages. DTOs live next to the handler that uses them.
package http

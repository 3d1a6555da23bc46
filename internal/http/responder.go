package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/example/timerecording/internal/application"
)

var (
	errBadRequestBody    = errors.New("Ungültiges Anfrageformat.")
	errMissingToken      = errors.New("Bitte melden Sie sich an.")
	errInvalidQueryValue = errors.New("Ungültiger Abfrageparameter.")
)

// Stable machine readable error codes.
const (
	codeBadRequest         = "BAD_REQUEST"
	codeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	codeAccountDisabled    = "AUTH_ACCOUNT_DISABLED"
	codeUnauthenticated    = "AUTH_UNAUTHENTICATED"
	codeSessionExpired     = "AUTH_SESSION_EXPIRED"
	codeSessionRevoked     = "AUTH_SESSION_REVOKED"
	codeForbidden          = "AUTH_FORBIDDEN"
	codeNotFound           = "NOT_FOUND"
	codeAlreadyExists      = "ALREADY_EXISTS"
	codeOverlap            = "ABSENCE_OVERLAP"
	codeInvalidState       = "INVALID_STATE"
	codeTrackingActive     = "TRACKING_ACTIVE"
	codeTrackingInactive   = "TRACKING_INACTIVE"
	codeValidation         = "VALIDATION_FAILED"
	codeInternal           = "INTERNAL_ERROR"
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
	}
	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: statusCode(status), Message: message})
}

// handleServiceError maps application errors to status codes and the shared
// error body. Handlers log the failure themselves.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	status, body := errorResponseFor(err)
	if status == http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
	}
	r.writeJSON(ctx, w, status, body)
}

func errorResponseFor(err error) (int, errorResponse) {
	var vErr *application.ValidationError
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorResponse{ErrorCode: codeInternal, Message: localizedStatusMessage(http.StatusInternalServerError)}
	case errors.As(err, &vErr):
		return http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: codeValidation,
			Message:   "Die Eingaben sind ungültig.",
			Errors:    localizeValidationErrors(vErr),
		}
	case errors.Is(err, application.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{ErrorCode: codeInvalidCredentials, Message: "Ungültige Login-Daten."}
	case errors.Is(err, application.ErrAccountDisabled):
		return http.StatusForbidden, errorResponse{ErrorCode: codeAccountDisabled, Message: "Das Benutzerkonto ist deaktiviert oder gesperrt."}
	case errors.Is(err, application.ErrSessionExpired):
		return http.StatusUnauthorized, errorResponse{ErrorCode: codeSessionExpired, Message: "Die Sitzung ist abgelaufen. Bitte melden Sie sich erneut an."}
	case errors.Is(err, application.ErrSessionRevoked):
		return http.StatusUnauthorized, errorResponse{ErrorCode: codeSessionRevoked, Message: "Die Sitzung wurde beendet. Bitte melden Sie sich erneut an."}
	case errors.Is(err, application.ErrUnauthenticated):
		return http.StatusUnauthorized, errorResponse{ErrorCode: codeUnauthenticated, Message: localizedStatusMessage(http.StatusUnauthorized)}
	case errors.Is(err, application.ErrUnauthorized):
		return http.StatusForbidden, errorResponse{ErrorCode: codeForbidden, Message: localizedStatusMessage(http.StatusForbidden)}
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound, errorResponse{ErrorCode: codeNotFound, Message: localizedStatusMessage(http.StatusNotFound)}
	case errors.Is(err, application.ErrAlreadyExists):
		return http.StatusConflict, errorResponse{ErrorCode: codeAlreadyExists, Message: "Der Datensatz existiert bereits."}
	case errors.Is(err, application.ErrOverlap):
		return http.StatusConflict, errorResponse{ErrorCode: codeOverlap, Message: "Die Abwesenheit überschneidet sich mit einer bestehenden Abwesenheit."}
	case errors.Is(err, application.ErrInvalidState):
		return http.StatusConflict, errorResponse{ErrorCode: codeInvalidState, Message: "Der Antrag wurde bereits bearbeitet."}
	case errors.Is(err, application.ErrTrackingActive):
		return http.StatusConflict, errorResponse{ErrorCode: codeTrackingActive, Message: "Die Zeiterfassung läuft bereits."}
	case errors.Is(err, application.ErrTrackingInactive):
		return http.StatusConflict, errorResponse{ErrorCode: codeTrackingInactive, Message: "Die Zeiterfassung ist nicht aktiv."}
	default:
		return http.StatusInternalServerError, errorResponse{ErrorCode: codeInternal, Message: localizedStatusMessage(http.StatusInternalServerError)}
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return codeBadRequest
	case http.StatusUnauthorized:
		return codeUnauthenticated
	case http.StatusForbidden:
		return codeForbidden
	case http.StatusNotFound:
		return codeNotFound
	case http.StatusConflict:
		return codeAlreadyExists
	case http.StatusUnprocessableEntity:
		return codeValidation
	default:
		return codeInternal
	}
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Die Anfrage ist ungültig."
	case http.StatusUnauthorized:
		return "Anmeldung erforderlich."
	case http.StatusForbidden:
		return "Sie haben keine Berechtigung für diese Aktion."
	case http.StatusNotFound:
		return "Die angeforderte Ressource wurde nicht gefunden."
	case http.StatusConflict:
		return "Die Anfrage steht im Konflikt mit dem aktuellen Zustand."
	case http.StatusUnprocessableEntity:
		return "Die Eingaben sind ungültig."
	default:
		return "Ein interner Serverfehler ist aufgetreten."
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(field, msg)
	}
	return translated
}

var fieldLabels = map[string]string{
	"firstName":          "Vorname",
	"lastName":           "Nachname",
	"email":              "E-Mail-Adresse",
	"plannedHoursPerDay": "Soll-Stunden pro Tag",
	"roles":              "Rollen",
	"role":               "Rolle",
	"requestedRole":      "Gewünschte Rolle",
	"password":           "Passwort",
	"currentPassword":    "Aktuelles Passwort",
	"newPassword":        "Neues Passwort",
	"status":             "Status",
	"id":                 "ID",
	"name":               "Name",
	"description":        "Beschreibung",
	"managerId":          "Manager",
	"date":               "Datum",
	"startTimes":         "Startzeiten",
	"endTimes":           "Endzeiten",
	"projectId":          "Projekt",
	"startDate":          "Startdatum",
	"endDate":            "Enddatum",
	"type":               "Abwesenheitsart",
	"from":               "Von-Datum",
	"to":                 "Bis-Datum",
}

var indexedField = regexp.MustCompile(`^(startTimes|endTimes|breaks)\[(\d+)\](?:\.(start|end))?$`)

// fieldLabel names a request field in German. Indexed fields are numbered
// from one.
func fieldLabel(field string) string {
	if label, ok := fieldLabels[field]; ok {
		return label
	}
	match := indexedField.FindStringSubmatch(field)
	if match == nil {
		return field
	}
	index, _ := strconv.Atoi(match[2])
	switch {
	case match[1] == "startTimes":
		return fmt.Sprintf("Startzeit %d", index+1)
	case match[1] == "endTimes":
		return fmt.Sprintf("Endzeit %d", index+1)
	case match[3] == "start":
		return fmt.Sprintf("Pausenbeginn %d", index+1)
	default:
		return fmt.Sprintf("Pausenende %d", index+1)
	}
}

func translateValidationMessage(field, message string) string {
	label := fieldLabel(field)
	switch message {
	case "is required":
		return label + " ist erforderlich."
	case "must be a valid email address":
		return "Bitte eine gültige E-Mail-Adresse angeben."
	case "must be between 0 and 24":
		return label + " muss zwischen 0 und 24 liegen."
	case "unknown role":
		return "Unbekannte Rolle."
	case "cannot be requested":
		return label + " kann nicht beantragt werden."
	case "unknown status":
		return "Unbekannter Status."
	case "must be at least 8 characters":
		return label + " muss mindestens 8 Zeichen lang sein."
	case "is incorrect":
		return label + " ist falsch."
	case "must differ from the current password":
		return "Das neue Passwort muss sich vom aktuellen Passwort unterscheiden."
	case "cannot remove the last role":
		return "Die letzte Rolle kann nicht entfernt werden."
	case "cannot deactivate yourself":
		return "Sie können sich nicht selbst deaktivieren."
	case "is too long":
		return label + " ist zu lang."
	case "manager does not exist":
		return "Manager nicht gefunden."
	case "must hold the MANAGER or ADMIN role":
		return "Der Manager benötigt die Rolle MANAGER oder ADMIN."
	case "must use YYYY-MM-DD":
		return label + " muss im Format JJJJ-MM-TT angegeben werden."
	case "must use HH:MM":
		return "Ungültiges Format für " + label + ", erwartet wird HH:MM."
	case "at least one start time is required":
		return "Mindestens eine Startzeit ist erforderlich."
	case "must not outnumber start times":
		return "Ungültige Anzahl von Endzeiten."
	case "must be after start":
		return label + " muss nach dem Pausenbeginn liegen."
	case "project does not exist":
		return "Projekt nicht gefunden."
	case "project is inactive":
		return "Das Projekt ist nicht aktiv."
	case "must not be before start date":
		return label + " darf nicht vor dem Startdatum liegen."
	case "must not be in the past":
		return label + " darf nicht in der Vergangenheit liegen."
	case "must not exceed 60 days":
		return "Eine Abwesenheit darf höchstens 60 Tage umfassen."
	case "unknown absence type":
		return "Unbekannte Abwesenheitsart."
	default:
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"errorCode,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/parkwise/reservation-api/internal/domain"
)

const (
	codeMethodNotAllowed    = "method_not_allowed"
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeValidation          = "validation_error"
	codeSpotNotFound        = "spot_not_found"
	codeReservationNotFound = "reservation_not_found"
	codeSpotNumberTaken     = "spot_number_taken"
	codeConflict            = "conflict"
	codeSpotInactive        = "spot_inactive"
	codeReservationOverlap  = "reservation_overlap"
	codeUnavailable         = "service_unavailable"
	codeInvalidCredentials  = "invalid_credentials"
	codeUnauthorized        = "unauthorized"
	codeForbidden           = "forbidden"
	codeInternalError       = "internal_error"
)

// retryAfterSeconds is sent with 503 responses.
const retryAfterSeconds = 1

type errorResponse struct {
	Error    string            `json:"error"`
	Code     string            `json:"code"`
	Field    string            `json:"field,omitempty"`
	Conflict *conflictResponse `json:"conflict,omitempty"`
}

type conflictResponse struct {
	ID        string    `json:"id,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorBody(w, status, errorResponse{Error: msg, Code: code})
}

func writeErrorBody(w http.ResponseWriter, status int, body errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(body)
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeServiceError maps a service error onto a stable status and code.
func writeServiceError(w http.ResponseWriter, err error) {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		body := errorResponse{Error: err.Error(), Code: codeValidation}
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			body.Field = validationErr.Field
		}
		writeErrorBody(w, http.StatusBadRequest, body)
	case domain.KindNotFound:
		code := codeNotFound
		switch {
		case errors.Is(err, domain.ErrSpotNotFound):
			code = codeSpotNotFound
		case errors.Is(err, domain.ErrReservationNotFound):
			code = codeReservationNotFound
		}
		writeError(w, http.StatusNotFound, code, err.Error())
	case domain.KindConflict:
		code := codeConflict
		if errors.Is(err, domain.ErrSpotNumberTaken) {
			code = codeSpotNumberTaken
		}
		writeError(w, http.StatusConflict, code, err.Error())
	case domain.KindInactiveSpot:
		writeError(w, http.StatusBadRequest, codeSpotInactive, err.Error())
	case domain.KindOverlap:
		body := errorResponse{Error: domain.ErrOverlap.Error(), Code: codeReservationOverlap}
		var overlapErr *domain.OverlapError
		if errors.As(err, &overlapErr) && overlapErr.Conflict != nil {
			body.Conflict = &conflictResponse{
				ID:        overlapErr.Conflict.ID,
				StartTime: overlapErr.Conflict.StartTime,
				EndTime:   overlapErr.Conflict.EndTime,
			}
		}
		writeErrorBody(w, http.StatusConflict, body)
	case domain.KindUnavailable:
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "service temporarily unavailable")
	case domain.KindUnauthorized:
		code := codeUnauthorized
		if errors.Is(err, domain.ErrInvalidCredentials) {
			code = codeInvalidCredentials
		}
		writeError(w, http.StatusUnauthorized, code, err.Error())
	case domain.KindForbidden:
		writeError(w, http.StatusForbidden, codeForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes a single JSON object, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
)

type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusOf maps a domain error class to its HTTP status.
func StatusOf(err error) int {
	switch bracket.ClassOf(err) {
	case bracket.ErrNotFound:
		return http.StatusNotFound
	case bracket.ErrConflict:
		return http.StatusConflict
	case bracket.ErrInvalidState:
		return http.StatusUnprocessableEntity
	case bracket.ErrInvalidInput, bracket.ErrUpstreamEmpty:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("failed to write response")
	}
}

// WriteError writes err as {"error": code, "message": msg}. Errors outside
// the domain taxonomy are logged, reported to Sentry and hidden behind a
// generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		InternalServerError(w, r, "request failed", err)
		return
	}

	zerolog.Ctx(r.Context()).Debug().Err(err).Int("status", status).Msg("request rejected")
	WriteJSON(w, r, status, ErrorBody{Error: bracket.CodeOf(err), Message: err.Error()})
}

func InternalServerError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	zerolog.Ctx(r.Context()).Error().Err(err).Msg(msg)
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}
	WriteJSON(w, r, http.StatusInternalServerError, ErrorBody{Error: "internal_error", Message: "Internal Server Error"})
}

func BadRequest(w http.ResponseWriter, r *http.Request, msg string, err error) {
	event := zerolog.Ctx(r.Context()).Debug().Str("message", msg)
	if err != nil {
		event = event.Err(err)
	}
	event.Msg("bad request")
	WriteJSON(w, r, http.StatusBadRequest, ErrorBody{Error: "bad_request", Message: msg})
}

func Unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	WriteJSON(w, r, http.StatusUnauthorized, ErrorBody{Error: "unauthorized", Message: msg})
}

func Forbidden(w http.ResponseWriter, r *http.Request, msg string) {
	WriteJSON(w, r, http.StatusForbidden, ErrorBody{Error: "forbidden", Message: msg})
}

func TooManyRequests(w http.ResponseWriter, r *http.Request, msg string) {
	WriteJSON(w, r, http.StatusTooManyRequests, ErrorBody{Error: "rate_limited", Message: msg})
}

// DecodeJSON reads a single JSON object from the request body into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

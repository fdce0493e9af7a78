package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/ariefcatur/go-appliance-care/internal/apperr"
	"github.com/go-chi/chi/v5/middleware"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, envelope{Success: true, Data: data})
}

// okList adds the element count next to the data.
func okList(w http.ResponseWriter, data any) {
	n := 0
	if v := reflect.ValueOf(data); v.Kind() == reflect.Slice {
		n = v.Len()
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Count: &n})
}

func okMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: msg})
}

func fail(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, envelope{Success: false, Message: msg})
}

func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto the error envelope. Server-side failures are
// logged with the request id; their cause never reaches the client.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		log.Error("request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", code,
			"error", err)
	}
	fail(w, code, apperr.Message(err))
}

const maxBody = 1 << 20

// decode reads a JSON body into v. Malformed JSON and fields v does not
// declare are validation errors.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		if field, found := strings.CutPrefix(err.Error(), "json: unknown field "); found {
			return apperr.Validation("unknown field " + field)
		}
		return apperr.Validation("invalid JSON body")
	}
	return nil
}

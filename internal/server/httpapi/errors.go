package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/svieira1985/gpt-webassist-sam/internal/server/service"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeError maps service errors to status codes. Anything unrecognised is a
// 500 with a generic detail; the cause is logged.
func (r *Router) writeError(w http.ResponseWriter, req *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrDomainNotAllowed),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrTokenInvalidOrExpired),
		errors.Is(err, service.ErrTokenEmailMismatch),
		errors.Is(err, service.ErrEmptyMessage):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredential):
		writeDetail(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeDetail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrGenerationFailed):
		writeDetail(w, http.StatusInternalServerError, err.Error())
	default:
		r.logger.ErrorContext(req.Context(), "request failed", "path", req.URL.Path, "error", err)
		writeDetail(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads a size-limited JSON body into v and writes the error
// response itself when it returns false.
func (r *Router) decodeJSON(w http.ResponseWriter, req *http.Request, v any) bool {
	if r.opts.MaxRequestBytes > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, r.opts.MaxRequestBytes)
	}
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeDetail(w, http.StatusRequestEntityTooLarge, "request entity too large")
		case errors.Is(err, io.EOF):
			writeDetail(w, http.StatusBadRequest, "empty body")
		default:
			writeDetail(w, http.StatusBadRequest, "invalid json")
		}
		return false
	}
	return true
}

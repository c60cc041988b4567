package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"

	"github.com/vbonduro/shelfinv/internal/domain"
	"github.com/vbonduro/shelfinv/internal/inventory"
	"github.com/vbonduro/shelfinv/internal/library"
	"github.com/vbonduro/shelfinv/internal/resource"
	"github.com/vbonduro/shelfinv/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error  string `json:"error"`
	Prompt string `json:"prompt,omitempty"`
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

// statusFor maps an error to its HTTP status and client-facing message.
func statusFor(err error) (int, string) {
	var (
		loadErr  *library.LoadError
		validErr *inventory.ValidationError
	)
	switch {
	case errors.As(err, &validErr):
		return http.StatusBadRequest, validErr.Err.Error()
	case errors.Is(err, inventory.ErrUnauthenticated):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, session.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, inventory.ErrUnknownRow):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, inventory.ErrNotEditing), errors.Is(err, inventory.ErrNotConfirmed),
		errors.Is(err, inventory.ErrRowPending):
		return http.StatusConflict, err.Error()
	case errors.As(err, &loadErr):
		return http.StatusBadGateway, "failed to load data"
	case errors.Is(err, session.ErrSignInFailed):
		return http.StatusBadGateway, session.ErrSignInFailed.Error()
	case errors.Is(err, resource.ErrNetwork):
		return http.StatusBadGateway, "upstream request failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"status", status,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	respond(w, status, errorResponse{Error: msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	respond(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// pathID parses a chi URL parameter as an ID.
func pathID(r *http.Request, name string) (domain.ID, error) {
	return domain.ParseID(chi.URLParam(r, name))
}

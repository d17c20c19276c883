package api

import (
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/bookmatch/internal/app"
	"github.com/okian/bookmatch/internal/domain/matching"
	"github.com/okian/bookmatch/internal/domain/model"
)

type matchRequest struct {
	UserID string            `json:"user_id"`
	Book   *model.SourceBook `json:"book"`
}

type passRequest struct {
	UserID string              `json:"user_id"`
	Books  []*model.SourceBook `json:"books"`
}

// MatchHandler serves single-book resolution and sync passes.
type MatchHandler struct {
	deps Dependencies
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(deps Dependencies) *MatchHandler {
	return &MatchHandler{deps: deps}
}

// HandleMatch handles POST /match requests.
func (h *MatchHandler) HandleMatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.match"
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodDenied)
		return
	}
	var req matchRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Book == nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, matching.ErrNilBook))
		return
	}

	out, err := h.deps.Match(r.Context(), req.UserID, req.Book)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandlePass handles POST /passes requests.
func (h *MatchHandler) HandlePass(w http.ResponseWriter, r *http.Request) {
	const op = "api.pass"
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodDenied)
		return
	}
	var req passRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}

	report, err := h.deps.SyncPass(r.Context(), req.UserID, req.Books)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrMissingUser), errors.Is(err, matching.ErrNilBook):
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", wrapKind(op, ErrUnavailable, err))
	case errors.Is(err, service.ErrLibraryUnavailable):
		writeError(w, http.StatusBadGateway, "upstream", wrapKind(op, ErrUpstream, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}

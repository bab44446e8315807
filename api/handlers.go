/*
handlers.go - HTTP API handlers for hostel exit requests

PURPOSE:
  Exposes the exit request lifecycle via REST. Handles HTTP
  request/response and JSON, and delegates everything else to
  exitreq.Service. The caller's identity comes from the bearer token
  middleware (see server.go).

ENDPOINTS:
  POST   /api/hostel-exit               Submit free text, returns the derived record
  GET    /api/hostel-exit/my            Caller's own requests
  GET    /api/hostel-exit?status=       All requests (admin), optional status filter
  GET    /api/hostel-exit/{id}          One request (owner or admin)
  POST   /api/hostel-exit/{id}/approve  Approve (admin)
  POST   /api/hostel-exit/{id}/reject   Reject (admin)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Text too short, dates not understood, inverted range, bad filter
  - 413: Submit body over MaxSubmitBodyBytes
  - 401: Missing or invalid token
  - 403: Not an admin / not the owner
  - 404: Request not found
  - 409: Already decided the other way
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - exitreq/errors.go: Error taxonomy
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/exit-engine/auth"
	"github.com/warp/exit-engine/exitreq"
	"github.com/warp/exit-engine/logger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *exitreq.Service
	Verifier *auth.Verifier
}

// NewHandler creates a new handler.
func NewHandler(svc *exitreq.Service, verifier *auth.Verifier) *Handler {
	return &Handler{Service: svc, Verifier: verifier}
}

// =============================================================================
// EXIT REQUEST ENDPOINTS
// =============================================================================

// MaxSubmitBodyBytes caps the submit body; the text ends up in the
// extraction prompt.
const MaxSubmitBodyBytes = 16 << 10

// SubmitExitRequest derives and stores a request from free text.
// POST /api/hostel-exit
func (h *Handler) SubmitExitRequest(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, MaxSubmitBodyBytes)

	var req SubmitExitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", err)
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	created, err := h.Service.Submit(r.Context(), who, req.RawText())
	if err != nil {
		writeServiceError(w, r, "Failed to submit exit request", err)
		return
	}

	writeJSON(w, http.StatusCreated, toExitRequestDTO(created))
}

// ListMyExitRequests lists the caller's requests.
// GET /api/hostel-exit/my
func (h *Handler) ListMyExitRequests(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, exitreq.ScopeOwn)
}

// ListExitRequests lists every request, optionally filtered by ?status=.
// GET /api/hostel-exit
func (h *Handler) ListExitRequests(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, exitreq.ScopeAll)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, scope exitreq.Scope) {
	who, _ := auth.FromContext(r.Context())
	status := exitreq.Status(r.URL.Query().Get("status"))

	reqs, err := h.Service.List(r.Context(), who, scope, status)
	if err != nil {
		writeServiceError(w, r, "Failed to list exit requests", err)
		return
	}

	writeJSON(w, http.StatusOK, toExitRequestDTOs(reqs))
}

// GetExitRequest returns one request.
// GET /api/hostel-exit/{id}
func (h *Handler) GetExitRequest(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.FromContext(r.Context())

	req, err := h.Service.Get(r.Context(), who, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "Failed to get exit request", err)
		return
	}

	writeJSON(w, http.StatusOK, toExitRequestDTO(req))
}

// ApproveExitRequest approves a pending request.
// POST /api/hostel-exit/{id}/approve
func (h *Handler) ApproveExitRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, exitreq.StatusApproved)
}

// RejectExitRequest rejects a pending request.
// POST /api/hostel-exit/{id}/reject
func (h *Handler) RejectExitRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, exitreq.StatusRejected)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, decision exitreq.Decision) {
	who, _ := auth.FromContext(r.Context())

	req, err := h.Service.Decide(r.Context(), who, chi.URLParam(r, "id"), decision)
	if err != nil {
		writeServiceError(w, r, "Failed to decide exit request", err)
		return
	}

	writeJSON(w, http.StatusOK, toExitRequestDTO(req))
}

// Health reports liveness.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps exitreq errors onto status codes. Client errors
// carry the service message verbatim since it tells the student how to
// rephrase.
func writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	var dateErr *exitreq.UnparseableDateError

	switch {
	case errors.As(err, &dateErr):
		if exitreq.IsExtractionFailure(err) {
			logger.WarnContext(r.Context(), "date resolution failed after extraction failure", "error", err)
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "unparseable_date",
			Details: DateErrorDetails{
				Side:    string(dateErr.Side),
				Phrase:  dateErr.Phrase,
				Example: dateErr.Example,
			},
		})
	case exitreq.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: clientErrorCode(err)})
	case exitreq.IsForbidden(err):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: err.Error(), Code: "forbidden"})
	case exitreq.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Exit request not found", nil)
	case exitreq.IsConflict(err):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "already_decided"})
	default:
		logger.ErrorContext(r.Context(), message, "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func clientErrorCode(err error) string {
	switch {
	case errors.Is(err, exitreq.ErrTooShort):
		return "too_short"
	case errors.Is(err, exitreq.ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, exitreq.ErrInvalidStatus):
		return "invalid_status"
	default:
		return "invalid_request"
	}
}

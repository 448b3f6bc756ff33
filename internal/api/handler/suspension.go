// internal/api/handler/suspension.go
package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"traderiser/internal/domain"
	"traderiser/internal/service"
	"traderiser/internal/util"
)

// maxEvidenceUpload bounds the multipart body of an appeal submission.
const maxEvidenceUpload = 10 << 20 // 10 MiB

// SuspensionHandler handles the admin suspension surface and the
// user-facing appeal flow.
type SuspensionHandler struct {
	service service.SuspensionService
	logger  *slog.Logger
}

// NewSuspensionHandler creates a new SuspensionHandler.
func NewSuspensionHandler(svc service.SuspensionService, logger *slog.Logger) *SuspensionHandler {
	return &SuspensionHandler{
		service: svc,
		logger:  logger,
	}
}

// SuspendRequest represents the admin request to suspend a user.
type SuspendRequest struct {
	Type         string `json:"type"`
	Reason       string `json:"reason"`
	DurationDays int    `json:"duration_days"`
}

// Suspend places a user under suspension. Admin only.
// POST /admin/users/{userID}/suspend
func (h *SuspensionHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	admin, _ := UserFromContext(r.Context())
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	var req SuspendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}

	err = h.service.Suspend(r.Context(), userID, domain.SuspensionType(req.Type), req.Reason, req.DurationDays, admin)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]string{"message": "User suspended"})
}

// Unsuspend lifts a suspension. Admin only.
// POST /admin/users/{userID}/unsuspend
func (h *SuspensionHandler) Unsuspend(w http.ResponseWriter, r *http.Request) {
	admin, _ := UserFromContext(r.Context())
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	if err := h.service.Unsuspend(r.Context(), userID, admin); err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]string{"message": "User unsuspended"})
}

// SubmitAppeal files the evidence backing an appeal. Multipart form with a
// "description" field and an optional "evidence" file.
// POST /appeals
func (h *SuspensionHandler) SubmitAppeal(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(h.logger, w, util.ErrInvalidCredentials)
		return
	}
	if err := r.ParseMultipartForm(maxEvidenceUpload); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	description := r.FormValue("description")

	var fileData []byte
	var fileName string
	file, header, err := r.FormFile("evidence")
	if err == nil {
		defer file.Close()
		fileName = header.Filename
		fileData, err = io.ReadAll(io.LimitReader(file, maxEvidenceUpload))
		if err != nil {
			respondWithError(h.logger, w, util.ErrInvalidInput)
			return
		}
	}

	evidence, err := h.service.SubmitAppeal(r.Context(), user, description, fileName, fileData)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusCreated, evidence)
}

// AppealStatus returns the caller's most recent appeal artifact.
// GET /appeals/status
func (h *SuspensionHandler) AppealStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(h.logger, w, util.ErrInvalidCredentials)
		return
	}
	evidence, err := h.service.LatestEvidence(r.Context(), user.ID)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, evidence)
}

// ReviewRequest represents the admin decision on an appeal.
type ReviewRequest struct {
	Approve bool `json:"approve"`
}

// ReviewEvidence decides a pending appeal. Admin only.
// POST /admin/evidence/{evidenceID}/review
func (h *SuspensionHandler) ReviewEvidence(w http.ResponseWriter, r *http.Request) {
	reviewer, _ := UserFromContext(r.Context())
	evidenceID, err := strconv.ParseInt(chi.URLParam(r, "evidenceID"), 10, 64)
	if err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}

	if err := h.service.ReviewEvidence(r.Context(), evidenceID, req.Approve, reviewer); err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]string{"message": "Evidence reviewed"})
}

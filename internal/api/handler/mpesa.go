// internal/api/handler/mpesa.go
package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"traderiser/internal/service"
	"traderiser/internal/util"
)

// maxPhotoUpload bounds a profile photo upload.
const maxPhotoUpload = 5 << 20 // 5 MiB

// MpesaHandler handles the external-ledger simulator surface.
type MpesaHandler struct {
	service service.MpesaService
	auth    service.AuthService
	logger  *slog.Logger
}

// NewMpesaHandler creates a new MpesaHandler.
func NewMpesaHandler(svc service.MpesaService, auth service.AuthService, logger *slog.Logger) *MpesaHandler {
	return &MpesaHandler{
		service: svc,
		auth:    auth,
		logger:  logger,
	}
}

// Connect creates or updates the caller's profile. Multipart form with
// "real_name", "phone_number", "pin" fields and an optional "photo" file.
// POST /mpesa/connect
func (h *MpesaHandler) Connect(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(h.logger, w, util.ErrInvalidCredentials)
		return
	}
	if err := r.ParseMultipartForm(maxPhotoUpload); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}

	var photoData []byte
	var photoName string
	file, header, err := r.FormFile("photo")
	if err == nil {
		defer file.Close()
		photoName = header.Filename
		photoData, err = io.ReadAll(io.LimitReader(file, maxPhotoUpload))
		if err != nil {
			respondWithError(h.logger, w, util.ErrInvalidInput)
			return
		}
	}

	profile, err := h.service.Connect(r.Context(), user,
		r.FormValue("real_name"), r.FormValue("phone_number"), r.FormValue("pin"),
		photoData, photoName)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusCreated, profile)
}

// MpesaLoginRequest represents the simulator login body.
type MpesaLoginRequest struct {
	PhoneNumber string `json:"phone_number"`
	PIN         string `json:"pin"`
}

// Login authenticates a profile by phone number and PIN and returns platform
// tokens for its owner.
// POST /mpesa/login
func (h *MpesaHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req MpesaLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PhoneNumber == "" || req.PIN == "" {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}

	profile, err := h.service.Login(r.Context(), req.PhoneNumber, req.PIN)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	access, refresh, err := h.auth.IssueTokens(profile.UserID)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]interface{}{
		"access":  access,
		"refresh": refresh,
		"profile": profile,
	})
}

// Profile returns the caller's profile.
// GET /mpesa/profile
func (h *MpesaHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(h.logger, w, util.ErrInvalidCredentials)
		return
	}
	profile, err := h.service.Profile(r.Context(), user.ID)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, profile)
}

// Balance returns the caller's simulator balance.
// GET /mpesa/balance
func (h *MpesaHandler) Balance(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(h.logger, w, util.ErrInvalidCredentials)
		return
	}
	profile, err := h.service.Profile(r.Context(), user.ID)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]interface{}{
		"balance": profile.Balance,
		"fuliza":  profile.Fuliza,
	})
}

// Transactions returns the caller's recent simulator records.
// GET /mpesa/transactions
func (h *MpesaHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(h.logger, w, util.ErrInvalidCredentials)
		return
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	txs, err := h.service.Transactions(r.Context(), user.ID, limit)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]interface{}{"data": txs})
}

// Transaction returns one simulator record.
// GET /mpesa/transactions/{txID}
func (h *MpesaHandler) Transaction(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(h.logger, w, util.ErrInvalidCredentials)
		return
	}
	txID, err := strconv.ParseInt(chi.URLParam(r, "txID"), 10, 64)
	if err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	record, err := h.service.Transaction(r.Context(), user.ID, txID)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, record)
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go-donate/internal/database"
	"go-donate/internal/middleware"
	"go-donate/internal/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Login handles admin authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	user, err := h.DB.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			h.logger.Error("Failed to load user", zap.Error(err))
		}
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	now := h.now()
	if err := h.DB.TouchLastLogin(r.Context(), user.ID, now); err != nil {
		h.logger.Warn("Failed to record login", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	token, err := middleware.IssueToken(h.Config.JWTSecret, user, now)
	if err != nil {
		h.logger.Error("Failed to sign token", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to create token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   token,
		"user": map[string]string{
			"username": user.Username,
			"role":     user.Role,
		},
	})
}

// GetAuditLogs returns the gateway call log, newest first
func (h *Handler) GetAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := getQueryInt(r, "limit", 50)
	if limit == 0 || limit > 500 {
		limit = 50
	}
	offset := getQueryInt(r, "offset", 0)

	logs, total, err := h.DB.GetAPILogs(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to get audit logs", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get audit logs")
		return
	}
	if logs == nil {
		logs = []*models.APILog{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":   logs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetTransactions lists gateway sessions with an optional status filter
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch models.TransactionStatus(status) {
	case "", "all", models.TransactionInitiated, models.TransactionCompleted, models.TransactionFailed:
	default:
		respondError(w, http.StatusBadRequest, "Invalid status filter")
		return
	}

	limit := getQueryInt(r, "limit", 50)
	if limit == 0 || limit > 500 {
		limit = 50
	}
	offset := getQueryInt(r, "offset", 0)

	transactions, total, err := h.DB.GetTransactions(r.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error("Failed to get transactions", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get transactions")
		return
	}
	if transactions == nil {
		transactions = []*models.Transaction{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":   transactions,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

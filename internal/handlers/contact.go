package handlers

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"

	"go-donate/internal/mailer"

	"go.uber.org/zap"
)

// GetInTouch forwards a contact form message and acknowledges it to the sender
func (h *Handler) GetInTouch(w http.ResponseWriter, r *http.Request) {
	var msg mailer.ContactMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg.Name = strings.TrimSpace(msg.Name)
	msg.Subject = strings.TrimSpace(msg.Subject)
	if msg.Name == "" || msg.Subject == "" || strings.TrimSpace(msg.Message) == "" {
		respondError(w, http.StatusBadRequest, "name, subject and msg are required")
		return
	}
	if _, err := mail.ParseAddress(msg.Email); err != nil {
		respondError(w, http.StatusBadRequest, "email is invalid")
		return
	}

	if err := h.Mailer.SendContactMessage(r.Context(), msg); err != nil {
		h.logger.Warn("Failed to send contact message", zap.String("email", msg.Email), zap.Error(err))
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondData(w, nil, "email sent")
}

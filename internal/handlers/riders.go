package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"go-donate/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxAvatarBytes = 5 << 20

// riderRequest is the body of a rider registration
type riderRequest struct {
	Name    string          `json:"rider_name"`
	Email   string          `json:"rider_email"`
	PhoneNo string          `json:"rider_phone_no"`
	Goal    decimal.Decimal `json:"rider_goal"`
	Image   string          `json:"rider_img"`
}

// GetRidersList returns every rider with its pledge total
func (h *Handler) GetRidersList(w http.ResponseWriter, r *http.Request) {
	riders, err := h.DB.ListRiders(r.Context())
	if err != nil {
		h.logger.Error("Failed to list riders", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get riders")
		return
	}
	if riders == nil {
		riders = []*models.Rider{}
	}
	respondData(w, riders, "All Rider List")
}

// CreateNewRider registers a rider and stores the avatar sent as a data URL
func (h *Handler) CreateNewRider(w http.ResponseWriter, r *http.Request) {
	var req riderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAvatarBytes*2)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "rider_name is required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondError(w, http.StatusBadRequest, "rider_email is invalid")
		return
	}
	if req.Goal.IsNegative() {
		respondError(w, http.StatusBadRequest, "rider_goal must not be negative")
		return
	}

	image, err := decodeDataURL(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	imageName, err := h.saveAvatar(image)
	if err != nil {
		h.logger.Error("Failed to save rider avatar", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to save rider image")
		return
	}

	rider, err := h.DB.CreateRider(r.Context(), &models.Rider{
		Name:     req.Name,
		Email:    req.Email,
		MobileNo: strings.TrimSpace(req.PhoneNo),
		Goal:     req.Goal,
		Raise:    decimal.Zero,
		Image:    imageName,
	})
	if err != nil {
		os.Remove(filepath.Join(h.Config.AvatarDir, imageName))
		h.logger.Error("Failed to create rider", zap.Error(err))
		respondError(w, http.StatusBadRequest, "Failed to create rider")
		return
	}

	h.logger.Info("Rider created", zap.Int64("rider_id", rider.ID), zap.String("image", imageName))
	respondData(w, rider, "Successfully created new rider")
}

// decodeDataURL extracts the payload of a base64 data URL such as data:image/png;base64,...
func decodeDataURL(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("rider_img is required")
	}
	idx := strings.Index(s, "base64,")
	if idx < 0 {
		return nil, errors.New("rider_img is not a valid base64-encoded image")
	}
	data, err := base64.StdEncoding.DecodeString(s[idx+len("base64,"):])
	if err != nil {
		return nil, errors.New("rider_img is not a valid base64-encoded image")
	}
	if len(data) == 0 || len(data) > maxAvatarBytes {
		return nil, errors.New("rider_img is empty or too large")
	}
	return data, nil
}

// saveAvatar writes the image under a fresh four digit name and returns the name
func (h *Handler) saveAvatar(data []byte) (string, error) {
	if err := os.MkdirAll(h.Config.AvatarDir, 0755); err != nil {
		return "", err
	}
	for attempt := 0; attempt < 10; attempt++ {
		n, err := rand.Int(rand.Reader, big.NewInt(9000))
		if err != nil {
			return "", err
		}
		name := fmt.Sprintf("%04d.jpg", n.Int64()+1000)
		f, err := os.OpenFile(filepath.Join(h.Config.AvatarDir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", err
		}
		return name, f.Close()
	}
	return "", errors.New("no free avatar name")
}

package handlers

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"go-donate/internal/config"
	"go-donate/internal/database"
	"go-donate/internal/donation"
	"go-donate/internal/mailer"
	"go-donate/internal/websocket"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// Handler holds dependencies for HTTP handlers
type Handler struct {
	DB         *database.DB
	Donations  *donation.Service
	Reconciler *donation.Reconciler
	Mailer     *mailer.Mailer
	WSHub      *websocket.Hub
	Config     *config.Config
	logger     *zap.Logger
	tmpl       *template.Template
	now        func() time.Time
}

// NewHandler creates a new Handler
func NewHandler(db *database.DB, donations *donation.Service, reconciler *donation.Reconciler, m *mailer.Mailer, wsHub *websocket.Hub, cfg *config.Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl := template.Must(template.ParseFS(templateFS, "templates/*.html"))

	return &Handler{
		DB:         db,
		Donations:  donations,
		Reconciler: reconciler,
		Mailer:     m,
		WSHub:      wsHub,
		Config:     cfg,
		logger:     logger,
		tmpl:       tmpl,
		now:        time.Now,
	}
}

// Health reports liveness and a few counters
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.DB.PingContext(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	clients := 0
	if h.WSHub != nil {
		clients = h.WSHub.ClientCount()
	}
	respondJSON(w, code, map[string]interface{}{
		"status":            status,
		"time":              h.now().UTC(),
		"websocket_clients": clients,
	})
}

// ============== Helpers ==============

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondData wraps data in the success envelope
func respondData(w http.ResponseWriter, data interface{}, message string) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"message":     message,
		"data":        data,
		"status_code": http.StatusOK,
	})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"success":     false,
		"message":     message,
		"status_code": status,
	})
}

// respondServiceError maps a donation error to its status; anything else is a 500
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var e *donation.Error
	if errors.As(err, &e) {
		status := e.HTTPStatus()
		if status >= http.StatusInternalServerError {
			h.logger.Error("Request failed", zap.String("kind", e.Kind.String()), zap.Error(err))
		}
		respondError(w, status, e.Error())
		return
	}
	h.logger.Error("Request failed", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "Internal server error")
}

func getPathInt64(r *http.Request, key string) (int64, bool) {
	vars := mux.Vars(r)
	val, err := strconv.ParseInt(vars[key], 10, 64)
	if err != nil || val <= 0 {
		return 0, false
	}
	return val, true
}

func getQueryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	intVal, err := strconv.Atoi(val)
	if err != nil || intVal < 0 {
		return defaultVal
	}
	return intVal
}

package handlers

import (
	"net/http"

	"go-donate/internal/config"
	"go-donate/internal/middleware"
	"go-donate/internal/models"
	"go-donate/internal/websocket"

	"github.com/gorilla/mux"
)

// NewRouter wires every route to its handler
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RequestLogger(h.logger))

	adminOnly := func(next http.HandlerFunc) http.Handler {
		return middleware.AuthMiddleware(h.Config.JWTSecret)(
			middleware.RequireRole(models.RoleAdmin)(next))
	}

	// Serve static files
	router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(h.Config.StaticDir))))
	router.PathPrefix("/images/avatars/").Handler(http.StripPrefix("/images/avatars/", http.FileServer(http.Dir(h.Config.AvatarDir))))

	router.HandleFunc("/health", h.Health).Methods("GET")

	// Public donation API
	donate := router.PathPrefix(config.RoutePrefix).Subrouter()
	donate.HandleFunc("/send-donation", h.SendDonation).Methods("POST")
	donate.HandleFunc("/get-currency-list", h.GetCurrencyList).Methods("GET")
	donate.HandleFunc("/get-donation-types", h.GetDonationTypes).Methods("GET")
	donate.HandleFunc("/get-total-general-donations", h.GetTotalGeneralDonations).Methods("GET")
	donate.HandleFunc("/payment-page/{donation_id:[0-9]+}", h.PaymentPage).Methods("GET")
	donate.HandleFunc("/payment_callback", h.PaymentCallback).Methods("GET")
	donate.HandleFunc("/get-riders-list", h.GetRidersList).Methods("GET")
	donate.HandleFunc("/get-in-touch", h.GetInTouch).Methods("POST")
	donate.Handle("/create-new-rider", adminOnly(h.CreateNewRider)).Methods("POST")

	// Admin API
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", h.Login).Methods("POST")
	api.Handle("/admin/audit-logs", adminOnly(h.GetAuditLogs)).Methods("GET")
	api.Handle("/admin/transactions", adminOnly(h.GetTransactions)).Methods("GET")
	api.Handle("/admin/riders", adminOnly(h.CreateNewRider)).Methods("POST")

	// WebSocket
	router.HandleFunc("/ws/donations", func(w http.ResponseWriter, r *http.Request) {
		websocket.HandleWebSocket(h.WSHub, w, r)
	})

	return router
}

package handlers

import (
	"encoding/json"
	"net/http"

	"go-donate/internal/donation"
	"go-donate/internal/models"

	"go.uber.org/zap"
)

// SendDonation records a donation and returns where the donor pays for it
func (h *Handler) SendDonation(w http.ResponseWriter, r *http.Request) {
	var req donation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.Donations.CreateDonation(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetCurrencyList returns all currencies
func (h *Handler) GetCurrencyList(w http.ResponseWriter, r *http.Request) {
	currencies, err := h.Donations.Currencies(r.Context())
	if err != nil {
		h.logger.Error("Failed to list currencies", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get currencies")
		return
	}
	if currencies == nil {
		currencies = []*models.Currency{}
	}
	respondData(w, currencies, "All currency list")
}

// GetDonationTypes returns all donation categories
func (h *Handler) GetDonationTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Donations.DonationTypes(r.Context())
	if err != nil {
		h.logger.Error("Failed to list donation types", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get donation types")
		return
	}
	if types == nil {
		types = []*models.DonationType{}
	}
	respondData(w, types, "All donation types")
}

// GetTotalGeneralDonations returns the sum of general donations
func (h *Handler) GetTotalGeneralDonations(w http.ResponseWriter, r *http.Request) {
	total, err := h.Donations.TotalGeneralDonations(r.Context())
	if err != nil {
		h.logger.Error("Failed to sum donations", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get total donations")
		return
	}
	respondData(w, total, "sum of general donations")
}

type paymentPageData struct {
	SessionID      string
	CheckoutScript string
	MerchantName   string
	DonorName      string
	Amount         string
	Currency       string
	Completed      bool
	Failed         bool
	SuccessURL     string
}

// PaymentPage renders the page that opens the hosted checkout for a donation
func (h *Handler) PaymentPage(w http.ResponseWriter, r *http.Request) {
	id, ok := getPathInt64(r, "donation_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid donation id")
		return
	}

	page, err := h.Donations.PaymentPage(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	data := paymentPageData{
		SessionID:      page.Transaction.SessionID,
		CheckoutScript: h.Config.MPGSCheckoutScript,
		MerchantName:   h.Config.MPGSMerchantName,
		DonorName:      page.Donation.DonorName(),
		Amount:         page.Transaction.Amount.StringFixed(2),
		Currency:       page.Transaction.Currency,
		Completed:      page.Transaction.Status == models.TransactionCompleted,
		Failed:         page.Transaction.Status == models.TransactionFailed,
		SuccessURL:     h.Config.PaymentSuccessURL,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.tmpl.ExecuteTemplate(w, "payment_page.html", data); err != nil {
		h.logger.Error("Failed to render payment page", zap.Int64("donation_id", id), zap.Error(err))
	}
}

// PaymentCallback is where the hosted checkout returns the browser
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	target := h.Reconciler.HandleCallback(r.Context(), r.URL.Query())
	http.Redirect(w, r, target, http.StatusSeeOther)
}

package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"waterbills-backend/lib/waterbill"
	"waterbills-backend/services/waterbilling"
)

type Api struct {
	service *waterbilling.Service
}

type scrapeRequest struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

type serviceBody struct {
	ExternalID    string  `json:"external_id"`
	DisplayName   string  `json:"display_name,omitempty"`
	Address       string  `json:"address"`
	CutoffDate    string  `json:"cutoff_date,omitempty"`
	Amount        float64 `json:"amount"`
	RawStatus     string  `json:"raw_status,omitempty"`
	BillingPeriod string  `json:"billing_period,omitempty"`
	HasDocument   bool    `json:"has_document"`
}

type failureBody struct {
	ExternalID string `json:"external_id"`
	Error      string `json:"error"`
}

type scrapeResponse struct {
	Services []serviceBody `json:"services"`
	Failures []failureBody `json:"failures,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Warn("failed to write response body", "err", err)
	}
}

func (a Api) HandleSiapa(w http.ResponseWriter, r *http.Request) {
	a.handleScrape(w, r, waterbill.ProviderSIAPA)
}

func (a Api) HandleSadm(w http.ResponseWriter, r *http.Request) {
	a.handleScrape(w, r, waterbill.ProviderSADM)
}

func (a Api) handleScrape(w http.ResponseWriter, r *http.Request, provider waterbill.Provider) {
	var req scrapeRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeJson(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.User == "" || req.Password == "" {
		writeJson(w, http.StatusBadRequest, errorResponse{Error: "user and password are required"})
		return
	}

	result, err := a.service.ListAccountsWithBills(r.Context(), waterbill.Credential{
		Provider: provider,
		Username: req.User,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, waterbill.ErrBadPassword) || errors.Is(err, waterbill.ErrUnknownUser):
			writeJson(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		default:
			// provider unavailable, transport failure, markup drift:
			// nothing the caller's input can fix
			slog.ErrorContext(r.Context(), "scrape failed",
				"provider", provider, "user", req.User, "err", err)
			writeJson(w, http.StatusBadGateway, errorResponse{Error: "provider unavailable"})
		}
		return
	}

	res := scrapeResponse{Services: []serviceBody{}}
	for _, s := range result.Services {
		body := serviceBody{
			ExternalID:  s.ExternalID,
			DisplayName: s.Names,
			Address:     s.Address,
			CutoffDate:  s.CutoffDate,
			Amount:      s.Amount,
			RawStatus:   s.RawStatus,
			HasDocument: s.Document != nil,
		}
		if s.Document != nil {
			body.BillingPeriod = s.Document.BillingPeriod
		}
		res.Services = append(res.Services, body)
	}
	for _, f := range result.Failures {
		res.Failures = append(res.Failures, failureBody{
			ExternalID: f.ExternalID,
			Error:      f.Err.Error(),
		})
	}
	writeJson(w, http.StatusOK, res)
}

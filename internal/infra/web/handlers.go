package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/oklog/ulid/v2"

	"mobilemoney-subscription/internal/domain"
	"mobilemoney-subscription/internal/infra/logging"
	"mobilemoney-subscription/internal/infra/metrics"
	"mobilemoney-subscription/internal/infra/payment"
	"mobilemoney-subscription/internal/usecase"
)

type initiateRequest struct {
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PhoneNumber   string `json:"phoneNumber"`
	Correspondent string `json:"correspondent"`
	Provider      string `json:"provider"` // legacy alias for correspondent
	PlanID        string `json:"planId"`
	UserID        string `json:"userId"`
}

type initiateResponse struct {
	Success   bool   `json:"success"`
	DepositID string `json:"depositId"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	USSDCode  string `json:"ussdCode,omitempty"`
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(r, s.jwtSecret)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ctx := logging.WithUserID(r.Context(), userID)

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// The authenticated identity wins; a mismatching body userId is rejected.
	if req.UserID != "" && req.UserID != userID {
		writeError(w, http.StatusForbidden, "user mismatch")
		return
	}
	correspondent := req.Correspondent
	if correspondent == "" {
		correspondent = req.Provider
	}

	d, ussd, err := s.paymentUC.Initiate(ctx, usecase.InitiateArgs{
		UserID:        userID,
		PlanID:        req.PlanID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		PhoneNumber:   req.PhoneNumber,
		Correspondent: correspondent,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidPhoneNumber),
			errors.Is(err, domain.ErrUnknownPlan),
			errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, domain.ErrGatewayUnavailable):
			writeError(w, http.StatusBadGateway, "payment provider unavailable, please try again")
		default:
			writeError(w, http.StatusInternalServerError, "failed to initiate payment")
		}
		return
	}

	writeJSON(w, http.StatusOK, initiateResponse{
		Success:   true,
		DepositID: d.DepositID,
		Status:    string(d.Status),
		Message:   "Deposit initiated. Confirm the prompt on your phone.",
		USSDCode:  ussd,
	})
}

type statusRequest struct {
	DepositID string `json:"depositId"`
}

type statusResponse struct {
	DepositID     string  `json:"depositId"`
	Status        string  `json:"status"`
	Amount        int64   `json:"amount,omitempty"`
	FailureReason *string `json:"failureReason,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(r, s.jwtSecret)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ctx := logging.WithUserID(r.Context(), userID)

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DepositID == "" {
		writeError(w, http.StatusBadRequest, "depositId is required")
		return
	}

	d, err := s.paymentUC.CheckStatus(logging.WithDepositID(ctx, req.DepositID), req.DepositID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDepositNotFound), errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "deposit not found")
		case errors.Is(err, domain.ErrGatewayUnavailable):
			// Transient: the client simply polls again next interval.
			writeError(w, http.StatusBadGateway, "provider unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "status query failed")
		}
		return
	}
	if d.UserID != userID {
		writeError(w, http.StatusNotFound, "deposit not found")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		DepositID:     d.DepositID,
		Status:        string(d.Status),
		Amount:        d.Amount,
		FailureReason: d.FailureReason,
	})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	if _, ok := authenticate(r, s.jwtSecret); !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cs, err := s.paymentUC.ListCorrespondents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list providers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"correspondents": cs,
	})
}

// handleCallback is the provider-pushed confirmation path. Once the payload
// is authenticated and maps to a known deposit, the response is 200
// {received:true} no matter what happens internally: the PSP must stop
// retrying, and activation gaps are replayed out of band.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	eventID := ulid.Make().String()
	l := logging.With(r.Context(), s.log)

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	// Peek the idempotency token to find the deposit and its provider.
	var peek struct {
		DepositID string `json:"depositId"`
		Reference string `json:"reference"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		metrics.IncCallback("invalid")
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	depositID := peek.DepositID
	if depositID == "" {
		depositID = peek.Reference
	}
	if depositID == "" {
		metrics.IncCallback("invalid")
		writeError(w, http.StatusBadRequest, "missing deposit reference")
		return
	}

	d, err := s.paymentUC.CheckStored(r.Context(), depositID)
	if err != nil {
		// A webhook never creates a deposit.
		metrics.IncCallback("unknown")
		l.Warn().Str("event_id", eventID).Str("deposit_id", depositID).Msg("callback for unknown deposit")
		writeError(w, http.StatusNotFound, "deposit not found")
		return
	}

	gw, ok := s.paymentUC.GatewayFor(d)
	if !ok {
		metrics.IncCallback("invalid")
		writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	secret := s.webhookSecrets[d.Provider]
	signature := r.Header.Get("X-Signature")
	if !payment.VerifySignature(secret, body, signature) {
		metrics.IncCallback("invalid")
		l.Warn().Str("event_id", eventID).Str("deposit_id", depositID).Msg("callback signature rejected")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	ev, err := gw.ParseCallback(body)
	if err != nil {
		metrics.IncCallback("invalid")
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if _, err := s.paymentUC.HandleCallback(logging.WithDepositID(r.Context(), depositID), ev); err != nil {
		// Internal trouble is logged for reconciliation, never surfaced: a
		// non-200 here would trigger a provider retry storm.
		l.Error().Err(err).Str("event_id", eventID).Str("deposit_id", depositID).Msg("callback processing failed")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": msg})
}

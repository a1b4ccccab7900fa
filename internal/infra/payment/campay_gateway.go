package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"mobilemoney-subscription/internal/domain"
	"mobilemoney-subscription/internal/domain/model"
	"mobilemoney-subscription/internal/domain/ports/adapter"
	"mobilemoney-subscription/internal/infra/metrics"
)

// CampayGateway implements MobileMoneyGateway against the Campay collect API.
// Campay assigns its own reference (used as the idempotency token) and
// confirms via a sync USSD prompt plus polling.
type CampayGateway struct {
	apiToken string
	baseURL  string
	client   *http.Client
}

func NewCampayGateway(baseURL, apiToken string) *CampayGateway {
	if baseURL == "" {
		baseURL = "https://api.campay.net/api"
	}
	return &CampayGateway{
		apiToken: apiToken,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *CampayGateway) Name() string { return "campay" }

var campayStatusMap = map[string]model.DepositStatus{
	"PENDING":    model.DepositStatusPending,
	"SUCCESSFUL": model.DepositStatusCompleted,
	"FAILED":     model.DepositStatusFailed,
}

func mapCampayStatus(s string) (model.DepositStatus, error) {
	st, ok := campayStatusMap[s]
	if !ok {
		return "", fmt.Errorf("campay status %q: %w", s, domain.ErrUnmappedProviderStatus)
	}
	return st, nil
}

type campayCollectResponse struct {
	Reference string `json:"reference"`
	USSDCode  string `json:"ussd_code"`
	Status    string `json:"status"`
}

func (g *CampayGateway) InitiateDeposit(ctx context.Context, req adapter.InitiateRequest) (*adapter.InitiateResult, error) {
	payload := map[string]interface{}{
		"amount":      fmt.Sprintf("%d", req.Amount),
		"currency":    req.Currency,
		"from":        "237" + req.PhoneNumber[len(req.PhoneNumber)-9:],
		"description": req.Description,
		// external_reference lets the status webhook carry our token back
		"external_reference": req.DepositID,
	}

	var out campayCollectResponse
	if err := g.call(ctx, http.MethodPost, "/collect/", payload, &out, "initiate"); err != nil {
		return nil, err
	}
	if out.Reference == "" {
		return nil, fmt.Errorf("campay: empty collect reference")
	}

	// Campay answers PENDING immediately; the payer still has to confirm the
	// USSD prompt, so the canonical initial status is ACCEPTED.
	status := model.DepositStatusAccepted
	if out.Status != "" {
		mapped, err := mapCampayStatus(out.Status)
		if err != nil {
			return nil, err
		}
		if mapped.Terminal() {
			status = mapped
		}
	}
	return &adapter.InitiateResult{DepositID: out.Reference, Status: status, USSDCode: out.USSDCode}, nil
}

type campayTransactionResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
}

func (g *CampayGateway) QueryStatus(ctx context.Context, depositID string) (model.DepositStatus, *string, error) {
	var out campayTransactionResponse
	if err := g.call(ctx, http.MethodGet, "/transaction/"+depositID+"/", nil, &out, "status"); err != nil {
		return "", nil, err
	}
	status, err := mapCampayStatus(out.Status)
	if err != nil {
		return "", nil, err
	}
	var reason *string
	if out.Reason != "" {
		reason = &out.Reason
	}
	return status, reason, nil
}

func (g *CampayGateway) ParseCallback(body []byte) (*adapter.CallbackEvent, error) {
	var cb campayTransactionResponse
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("parse campay callback: %w", err)
	}
	if cb.Reference == "" {
		return nil, domain.ErrInvalidArgument
	}
	status, err := mapCampayStatus(cb.Status)
	if err != nil {
		return nil, err
	}
	ev := &adapter.CallbackEvent{DepositID: cb.Reference, Status: status}
	if cb.Reason != "" {
		ev.FailureReason = &cb.Reason
	}
	return ev, nil
}

// Campay has no discovery endpoint; the catalog is static.
var campayCorrespondents = []adapter.Correspondent{
	{ID: "MTN_MOMO_CMR", Country: "CMR", Currency: "XAF", OperatorName: "MTN Mobile Money"},
	{ID: "ORANGE_CMR", Country: "CMR", Currency: "XAF", OperatorName: "Orange Money"},
}

func (g *CampayGateway) ListCorrespondents(ctx context.Context) ([]adapter.Correspondent, error) {
	return campayCorrespondents, nil
}

func (g *CampayGateway) call(ctx context.Context, method, path string, payload, out interface{}, label string) error {
	start := time.Now()
	defer func() { metrics.ObserveGatewayRequest(g.Name(), label, time.Since(start).Seconds()) }()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request data: %w", err)
		}
		body = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+g.apiToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("campay error: status %d, body: %s", resp.StatusCode, string(raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(raw))
		}
	}
	return nil
}

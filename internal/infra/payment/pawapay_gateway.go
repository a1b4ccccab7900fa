package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"mobilemoney-subscription/internal/domain"
	"mobilemoney-subscription/internal/domain/model"
	"mobilemoney-subscription/internal/domain/ports/adapter"
	"mobilemoney-subscription/internal/infra/metrics"
)

// PawaPayGateway implements MobileMoneyGateway against the pawaPay v1 deposits
// API. Confirmation is webhook + poll; the idempotency token is a client-side
// UUID v4 sent as the depositId.
type PawaPayGateway struct {
	apiToken string
	baseURL  string
	client   *http.Client
}

func NewPawaPayGateway(baseURL, apiToken string) *PawaPayGateway {
	if baseURL == "" {
		baseURL = "https://api.pawapay.cloud"
	}
	return &PawaPayGateway{
		apiToken: apiToken,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *PawaPayGateway) Name() string { return "pawapay" }

// pawaPayStatusMap is the explicit, total canonical mapping. Any status not
// present here is an error, never silently pending.
var pawaPayStatusMap = map[string]model.DepositStatus{
	"ACCEPTED":  model.DepositStatusAccepted,
	"ENQUEUED":  model.DepositStatusPending,
	"SUBMITTED": model.DepositStatusPending,
	"COMPLETED": model.DepositStatusCompleted,
	"FAILED":    model.DepositStatusFailed,
	"REJECTED":  model.DepositStatusFailed,
}

func mapPawaPayStatus(s string) (model.DepositStatus, error) {
	st, ok := pawaPayStatusMap[s]
	if !ok {
		return "", fmt.Errorf("pawapay status %q: %w", s, domain.ErrUnmappedProviderStatus)
	}
	return st, nil
}

type pawaPayDepositResponse struct {
	DepositID     string `json:"depositId"`
	Status        string `json:"status"`
	RejectionReason *struct {
		RejectionMessage string `json:"rejectionMessage"`
	} `json:"rejectionReason,omitempty"`
}

func (g *PawaPayGateway) InitiateDeposit(ctx context.Context, req adapter.InitiateRequest) (*adapter.InitiateResult, error) {
	depositID := req.DepositID
	if depositID == "" {
		depositID = uuid.NewString()
	}

	payload := map[string]interface{}{
		"depositId":     depositID,
		"amount":        fmt.Sprintf("%d", req.Amount),
		"currency":      req.Currency,
		"correspondent": req.Correspondent,
		"payer": map[string]interface{}{
			"type":    "MSISDN",
			"address": map[string]string{"value": req.PhoneNumber},
		},
		"statementDescription": req.Description,
	}

	var out pawaPayDepositResponse
	if err := g.call(ctx, http.MethodPost, "/deposits", payload, &out, "initiate"); err != nil {
		// Fail closed: the caller creates no Deposit row on error.
		return nil, err
	}

	status, err := mapPawaPayStatus(out.Status)
	if err != nil {
		return nil, err
	}
	return &adapter.InitiateResult{DepositID: depositID, Status: status}, nil
}

func (g *PawaPayGateway) QueryStatus(ctx context.Context, depositID string) (model.DepositStatus, *string, error) {
	var out []pawaPayDepositResponse
	if err := g.call(ctx, http.MethodGet, "/deposits/"+depositID, nil, &out, "status"); err != nil {
		return "", nil, err
	}
	if len(out) == 0 {
		return "", nil, domain.ErrDepositNotFound
	}
	status, err := mapPawaPayStatus(out[0].Status)
	if err != nil {
		return "", nil, err
	}
	var reason *string
	if out[0].RejectionReason != nil && out[0].RejectionReason.RejectionMessage != "" {
		reason = &out[0].RejectionReason.RejectionMessage
	}
	return status, reason, nil
}

type pawaPayCallback struct {
	DepositID     string `json:"depositId"`
	Status        string `json:"status"`
	FailureReason *struct {
		FailureMessage string `json:"failureMessage"`
	} `json:"failureReason,omitempty"`
}

func (g *PawaPayGateway) ParseCallback(body []byte) (*adapter.CallbackEvent, error) {
	var cb pawaPayCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("parse pawapay callback: %w", err)
	}
	if cb.DepositID == "" {
		return nil, domain.ErrInvalidArgument
	}
	status, err := mapPawaPayStatus(cb.Status)
	if err != nil {
		return nil, err
	}
	ev := &adapter.CallbackEvent{DepositID: cb.DepositID, Status: status}
	if cb.FailureReason != nil && cb.FailureReason.FailureMessage != "" {
		ev.FailureReason = &cb.FailureReason.FailureMessage
	}
	return ev, nil
}

// defaultPawaPayCorrespondents is used when provider discovery fails.
var defaultPawaPayCorrespondents = []adapter.Correspondent{
	{ID: "MTN_MOMO_CMR", Country: "CMR", Currency: "XAF", OperatorName: "MTN Mobile Money"},
	{ID: "ORANGE_CMR", Country: "CMR", Currency: "XAF", OperatorName: "Orange Money"},
	{ID: "MTN_MOMO_CIV", Country: "CIV", Currency: "XOF", OperatorName: "MTN Mobile Money"},
	{ID: "ORANGE_CIV", Country: "CIV", Currency: "XOF", OperatorName: "Orange Money"},
}

func (g *PawaPayGateway) ListCorrespondents(ctx context.Context) ([]adapter.Correspondent, error) {
	var out []struct {
		Country        string `json:"country"`
		Correspondents []struct {
			Correspondent string `json:"correspondent"`
			Currency      string `json:"currency"`
			OperatorName  string `json:"operatorName"`
		} `json:"correspondents"`
	}
	if err := g.call(ctx, http.MethodGet, "/active-conf", nil, &out, "correspondents"); err != nil {
		// Discovery must never block initiation.
		return defaultPawaPayCorrespondents, nil
	}

	var cs []adapter.Correspondent
	for _, country := range out {
		for _, c := range country.Correspondents {
			cs = append(cs, adapter.Correspondent{
				ID:           c.Correspondent,
				Country:      country.Country,
				Currency:     c.Currency,
				OperatorName: c.OperatorName,
			})
		}
	}
	if len(cs) == 0 {
		return defaultPawaPayCorrespondents, nil
	}
	return cs, nil
}

func (g *PawaPayGateway) call(ctx context.Context, method, path string, payload, out interface{}, label string) error {
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
	req.Header.Set("Authorization", "Bearer "+g.apiToken)
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
		return fmt.Errorf("pawapay error: status %d, body: %s", resp.StatusCode, string(raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(raw))
		}
	}
	return nil
}

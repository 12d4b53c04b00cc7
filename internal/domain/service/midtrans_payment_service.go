package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"pasarmarket/pkg/logger"
)

const (
	midtransSandboxURL    = "https://api.sandbox.midtrans.com"
	midtransProductionURL = "https://api.midtrans.com"
)

// MidtransPaymentGateway captures and refunds through the Midtrans Core API.
type MidtransPaymentGateway struct {
	serverKey string
	baseURL   string
	client    *http.Client
}

func NewMidtransPaymentGateway(serverKey string, isProduction bool) *MidtransPaymentGateway {
	baseURL := midtransSandboxURL
	if isProduction {
		baseURL = midtransProductionURL
	}
	return NewMidtransPaymentGatewayWithURL(serverKey, baseURL)
}

func NewMidtransPaymentGatewayWithURL(serverKey, baseURL string) *MidtransPaymentGateway {
	return &MidtransPaymentGateway{
		serverKey: serverKey,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type midtransTransactionDetails struct {
	OrderID     string      `json:"order_id"`
	GrossAmount json.Number `json:"gross_amount"`
}

type midtransChargeRequest struct {
	PaymentType        string                     `json:"payment_type"`
	TransactionDetails midtransTransactionDetails `json:"transaction_details"`
	CustomerDetails    map[string]string          `json:"customer_details,omitempty"`
}

type midtransChargeResponse struct {
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message"`
	TransactionID     string `json:"transaction_id"`
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
}

type midtransRefundRequest struct {
	RefundKey string      `json:"refund_key"`
	Amount    json.Number `json:"amount"`
	Reason    string      `json:"reason"`
}

func (g *MidtransPaymentGateway) Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	logger.Info("Creating Midtrans charge for order: %s, amount: %s", req.OrderID, req.Amount.StringFixed(2))

	body := midtransChargeRequest{
		PaymentType: req.Method,
		TransactionDetails: midtransTransactionDetails{
			OrderID:     req.OrderID,
			GrossAmount: json.Number(req.Amount.StringFixed(2)),
		},
		CustomerDetails: map[string]string{"customer_id": req.BuyerID},
	}

	var resp midtransChargeResponse
	if err := g.post(ctx, "/v2/charge", body, &resp); err != nil {
		return nil, err
	}

	switch resp.TransactionStatus {
	case "capture", "settlement":
		return &CaptureResult{Reference: req.OrderID, Status: resp.TransactionStatus}, nil
	default:
		return nil, fmt.Errorf("midtrans charge for %s not captured: %s (%s)", req.OrderID, resp.TransactionStatus, resp.StatusMessage)
	}
}

// Refund uses the payment reference, which is the Midtrans order id.
func (g *MidtransPaymentGateway) Refund(ctx context.Context, reference string, amount decimal.Decimal, reason string) error {
	logger.Info("Requesting Midtrans refund for %s, amount: %s", reference, amount.StringFixed(2))

	body := midtransRefundRequest{
		RefundKey: reference + "-refund",
		Amount:    json.Number(amount.StringFixed(2)),
		Reason:    reason,
	}

	var resp midtransChargeResponse
	if err := g.post(ctx, "/v2/"+reference+"/refund", body, &resp); err != nil {
		return err
	}
	if resp.StatusCode != "200" {
		return fmt.Errorf("midtrans refund for %s failed: %s", reference, resp.StatusMessage)
	}
	return nil
}

func (g *MidtransPaymentGateway) post(ctx context.Context, path string, payload, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	authHeader := base64.StdEncoding.EncodeToString([]byte(g.serverKey + ":"))
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Basic "+authHeader)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn("Midtrans API error on %s: status=%d body=%s", path, resp.StatusCode, string(respBody))
		return fmt.Errorf("midtrans API error: status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

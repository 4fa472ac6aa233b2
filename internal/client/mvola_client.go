package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// MVolaClient initiates merchant-pay transactions against the MVola gateway.
// Confirmation arrives out of band through the payment callback bridge; this
// client never decides that a payment is trusted.
type MVolaClient struct {
	baseURL        string
	merchantNumber string
	apiKey         string
	httpClient     *http.Client
}

// NewMVolaClient creates a new payment gateway client.
func NewMVolaClient(baseURL, merchantNumber, apiKey string) *MVolaClient {
	return &MVolaClient{
		baseURL:        baseURL,
		merchantNumber: merchantNumber,
		apiKey:         apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// InitiatePaymentRequest starts a merchant-pay transaction.
type InitiatePaymentRequest struct {
	AmountAr    int64  `json:"amount"`
	DebitPhone  string `json:"debit_msisdn"`
	CreditPhone string `json:"credit_msisdn"`
	Reference   string `json:"requesting_organisation_transaction_reference"`
	Description string `json:"description_text"`
}

// InitiatePaymentResponse acknowledges the initiation.
type InitiatePaymentResponse struct {
	ServerCorrelationID string `json:"server_correlation_id"`
	Status              string `json:"status"`
}

// InitiatePayment asks the gateway to push a payment prompt to the buyer's
// phone. The returned correlation ID ties the later confirmation back to our
// request_ref.
func (c *MVolaClient) InitiatePayment(ctx context.Context, req *InitiatePaymentRequest) (*InitiatePaymentResponse, error) {
	if req.CreditPhone == "" {
		req.CreditPhone = c.merchantNumber
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	u := fmt.Sprintf("%s/mvola/mm/transactions/type/merchantpay/1.0.0", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("mvola returned status %d", resp.StatusCode)
	}

	var result InitiatePaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	log.Printf("[MVolaClient] Payment initiated: ref=%s correlation=%s", req.Reference, result.ServerCorrelationID)
	return &result, nil
}

// TransactionStatus is the gateway-side state of an initiated payment.
type TransactionStatus struct {
	Status string `json:"status"` // pending, completed, failed
}

// GetTransactionStatus polls the gateway for a transaction's state.
func (c *MVolaClient) GetTransactionStatus(ctx context.Context, serverCorrelationID string) (*TransactionStatus, error) {
	u := fmt.Sprintf("%s/mvola/mm/transactions/type/merchantpay/1.0.0/status/%s", c.baseURL, serverCorrelationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("mvola returned status %d", resp.StatusCode)
	}

	var result TransactionStatus
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

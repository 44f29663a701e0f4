package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"school_portal_echo/internal/config"
	"school_portal_echo/internal/payments"
)

// PaystackService talks to the Paystack REST API
type PaystackService struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewPaystackService(cfg config.PaystackConfig) *PaystackService {
	return &PaystackService{
		baseURL:   cfg.BaseURL,
		secretKey: cfg.SecretKey,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *PaystackService) makeRequest(ctx context.Context, method, endpoint string, dest interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s%s", s.baseURL, endpoint), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.secretKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return resp.StatusCode, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return resp.StatusCode, nil
}

// VerifyTransaction calls GET /transaction/verify/:reference. Paystack answers
// unknown or failed references with a 4xx and status false, which is returned
// as a normal response. 5xx answers and transport problems are errors.
func (s *PaystackService) VerifyTransaction(ctx context.Context, reference string) (*payments.GatewayVerification, error) {
	var out payments.GatewayVerification
	status, err := s.makeRequest(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), &out)
	if err != nil {
		return nil, err
	}
	if status >= http.StatusInternalServerError {
		return nil, fmt.Errorf("paystack returned status %d: %s", status, out.Message)
	}
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

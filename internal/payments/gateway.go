package payments

import (
	"context"
	"encoding/json"
)

const GatewayStatusSuccess = "success"

// Gateway is the payment provider's verify-transaction endpoint
type Gateway interface {
	VerifyTransaction(ctx context.Context, reference string) (*GatewayVerification, error)
}

// GatewayVerification is the envelope returned by GET /transaction/verify/:reference
type GatewayVerification struct {
	Status  bool               `json:"status"`
	Message string             `json:"message"`
	Data    GatewayTransaction `json:"data"`
}

// Succeeded reports whether the gateway confirmed the charge
func (v *GatewayVerification) Succeeded() bool {
	return v != nil && v.Status && v.Data.Status == GatewayStatusSuccess
}

type GatewayTransaction struct {
	ID              int64           `json:"id"`
	Status          string          `json:"status"`
	Reference       string          `json:"reference"`
	Amount          int64           `json:"amount"` // minor units
	Currency        string          `json:"currency"`
	Channel         string          `json:"channel"`
	GatewayResponse string          `json:"gateway_response"`
	PaidAt          string          `json:"paid_at"`
	Metadata        json.RawMessage `json:"metadata"`
	Customer        GatewayCustomer `json:"customer"`
}

type GatewayCustomer struct {
	ID           int64  `json:"id,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	CustomerCode string `json:"customer_code,omitempty"`
}

// GatewayFunc adapts a function to the Gateway interface
type GatewayFunc func(ctx context.Context, reference string) (*GatewayVerification, error)

func (f GatewayFunc) VerifyTransaction(ctx context.Context, reference string) (*GatewayVerification, error) {
	return f(ctx, reference)
}

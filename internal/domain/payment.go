/**
 * @description
 * This file defines the payment-event domain models: the normalized event the
 * settlement service consumes, and the raw webhook payload shapes sent by the
 * Paystack and Flutterwave gateways. Gateway payloads are untrusted input and
 * are never persisted verbatim; only their effects reach the ledger.
 */

package domain

import "encoding/json"

// Payment gateways supported for wallet funding. The admin-configured
// active_payment_gateway setting holds one of these, or GatewayBoth when
// either gateway may be used for checkout.
const (
	GatewayPaystack    = "paystack"
	GatewayFlutterwave = "flutterwave"
	GatewayBoth        = "both"
)

// Success event types per gateway.
const (
	PaystackChargeSuccess      = "charge.success"
	FlutterwaveChargeCompleted = "charge.completed"
)

// PaymentEvent is the normalized, gateway-agnostic settlement input.
// Amount is in the gateway's minor unit (kobo for NGN).
type PaymentEvent struct {
	Gateway       string `json:"gateway"`
	EventType     string `json:"event_type"`
	Reference     string `json:"reference"`
	Amount        int64  `json:"amount"` // minor units
	Currency      string `json:"currency"`
	CustomerEmail string `json:"customer_email,omitempty"`
	// MetadataUserID is the internal user id carried in checkout metadata.
	MetadataUserID string `json:"metadata_user_id,omitempty"`
	// ClientUserID is supplied by the calling client on manual verification.
	ClientUserID string `json:"client_user_id,omitempty"`
}

// PaystackWebhookPayload mirrors the body Paystack posts to the webhook endpoint.
type PaystackWebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"` // in kobo
		Currency  string `json:"currency"`
		Status    string `json:"status"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
		Metadata json.RawMessage `json:"metadata"`
		// UserID is set by the client on manual verification calls.
		UserID string `json:"userId,omitempty"`
	} `json:"data"`
}

// PaystackMetadata is the structured metadata attached at checkout time.
type PaystackMetadata struct {
	UserID        string  `json:"user_id,omitempty"`
	DepositAmount float64 `json:"deposit_amount,omitempty"`
}

// MetadataUserID extracts the internal user id from the payload metadata, if any.
func (p *PaystackWebhookPayload) MetadataUserID() string {
	if len(p.Data.Metadata) == 0 {
		return ""
	}
	var meta PaystackMetadata
	if err := json.Unmarshal(p.Data.Metadata, &meta); err != nil {
		return ""
	}
	return meta.UserID
}

// FlutterwaveWebhookPayload mirrors the body Flutterwave posts for charge events.
// Flutterwave reports amounts in naira for NGN charges.
type FlutterwaveWebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		TxRef    string  `json:"tx_ref"`
		FlwRef   string  `json:"flw_ref"`
		Amount   float64 `json:"amount"` // in naira
		Currency string  `json:"currency"`
		Status   string  `json:"status"`
		Customer struct {
			Email string `json:"email"`
		} `json:"customer"`
		Meta map[string]interface{} `json:"meta"`
	} `json:"data"`
}

// MetadataUserID extracts the internal user id from the charge meta, if any.
func (p *FlutterwaveWebhookPayload) MetadataUserID() string {
	if p.Data.Meta == nil {
		return ""
	}
	if v, ok := p.Data.Meta["user_id"].(string); ok {
		return v
	}
	return ""
}

// SettlementOutcome is the result of running a payment event through settlement.
type SettlementOutcome struct {
	Handled          bool  `json:"handled"`
	AlreadyProcessed bool  `json:"already_processed"`
	NewBalance       int64 `json:"new_balance"` // in kobo
}

// InitiateDepositRequest is the DTO for starting a hosted-checkout session.
// Amount is expressed in naira as entered by the user.
type InitiateDepositRequest struct {
	Amount    float64 `json:"amount"`
	Reference string  `json:"reference,omitempty"`
}

// InitiateDepositResponse carries the hosted-checkout handoff details.
type InitiateDepositResponse struct {
	AuthorizationURL string  `json:"authorization_url"`
	AccessCode       string  `json:"access_code"`
	Reference        string  `json:"reference"`
	Amount           float64 `json:"amount"` // wallet credit amount in naira
	Charge           float64 `json:"charge"` // funding charge in naira
}

// VerifyDepositRequest is the DTO for client-triggered settlement verification.
type VerifyDepositRequest struct {
	Reference string `json:"reference"`
}

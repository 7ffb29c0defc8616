/**
 * @description
 * This file defines the user-profile domain models for the wallet service.
 * A profile owns exactly one wallet balance; every balance mutation flows
 * through the store layer, never through handlers directly.
 *
 * @notes
 * - Amounts are stored as `int64` to represent the value in the smallest currency
 *   unit (kobo), which avoids floating-point inaccuracies with financial data.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Profile represents a user profile and its wallet.
// This struct maps directly to the `profiles` table in the database.
type Profile struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	FullName      *string    `json:"full_name,omitempty"`
	WalletBalance int64      `json:"wallet_balance"` // in kobo
	ReferralCode  string     `json:"referral_code"`
	ReferredBy    *uuid.UUID `json:"referred_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// WalletBalanceResponse is the API view of a wallet, amounts in naira.
type WalletBalanceResponse struct {
	Balance     float64 `json:"balance"`
	BalanceKobo int64   `json:"balance_kobo"`
	Currency    string  `json:"currency"`
}

// VirtualAccount represents a dedicated bank account provisioned for a user
// so inbound transfers can fund the wallet directly.
type VirtualAccount struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	AccountNumber    string    `json:"account_number"`
	BankName         string    `json:"bank_name"`
	Currency         string    `json:"currency"`
	GatewayReference string    `json:"gateway_reference"`
	Status           string    `json:"status"` // e.g., 'active', 'pending'
	CreatedAt        time.Time `json:"created_at"`
}

// CreateVirtualAccountRequest is the DTO for provisioning a virtual account.
// BVN is required by the CBN for dedicated virtual account creation.
type CreateVirtualAccountRequest struct {
	BVN string `json:"bvn"`
}

// NairaFromKobo converts a kobo amount to naira for API responses.
func NairaFromKobo(amount int64) float64 {
	return float64(amount) / 100.0
}

/**
 * @description
 * This file defines the transaction-ledger domain models. Transactions are
 * append-only: rows are inserted once and never updated or deleted. The
 * `gateway_reference` column carries the external payment reference and is
 * the idempotency key for wallet funding: at most one row per reference.
 *
 * @notes
 * - Amounts are stored as `int64` kobo.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction direction values.
const (
	TransactionTypeCredit = "credit"
	TransactionTypeDebit  = "debit"
)

// Transaction categories.
const (
	CategoryWalletFunding  = "wallet_funding"
	CategoryWalletTransfer = "wallet_transfer"
	CategoryPlanPurchase   = "plan_purchase"
	CategoryReferralReward = "referral_reward"
)

// Transaction represents a single ledger entry for any wallet movement.
// This struct maps directly to the `transactions` table in the database.
type Transaction struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	Type             string    `json:"type"`     // 'credit' or 'debit'
	Category         string    `json:"category"` // e.g., 'wallet_funding'
	Amount           int64     `json:"amount"`   // in kobo
	Description      string    `json:"description"`
	Status           string    `json:"status"` // e.g., 'completed'
	GatewayReference *string   `json:"gateway_reference,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// WalletTransferRequest is the DTO for wallet-to-wallet transfer API requests.
type WalletTransferRequest struct {
	RecipientEmail string `json:"recipient_email"`
	Amount         int64  `json:"amount"` // in kobo
	Description    string `json:"description"`
}

// WalletTransferResult summarizes a completed internal transfer.
type WalletTransferResult struct {
	TransactionID    uuid.UUID `json:"transaction_id"`
	Amount           int64     `json:"amount"`
	Charge           int64     `json:"charge"`
	SenderNewBalance int64     `json:"sender_new_balance"`
}

// TransactionListOptions controls pagination for transaction history.
type TransactionListOptions struct {
	Limit  int
	Offset int
}

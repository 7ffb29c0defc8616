/**
 * @description
 * Message payloads published to RabbitMQ after money movement completes.
 * Consumers (notification fan-out, analytics) are decoupled from the wallet
 * service; publish failures are logged and never fail the movement itself.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// WalletCreditedEvent is published after a funding settlement credits a wallet.
type WalletCreditedEvent struct {
	UserID     uuid.UUID `json:"user_id"`
	Amount     int64     `json:"amount"` // in kobo
	Reference  string    `json:"reference"`
	Gateway    string    `json:"gateway"`
	NewBalance int64     `json:"new_balance"`
	Timestamp  time.Time `json:"timestamp"`
}

// WalletTransferCompletedEvent is published after an internal transfer settles.
type WalletTransferCompletedEvent struct {
	SenderID    uuid.UUID `json:"sender_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	Amount      int64     `json:"amount"`
	Charge      int64     `json:"charge"`
	Timestamp   time.Time `json:"timestamp"`
}

// PlanPurchasedEvent is published after a data plan purchase is debited.
type PlanPurchasedEvent struct {
	UserID         uuid.UUID `json:"user_id"`
	PlanID         uuid.UUID `json:"plan_id"`
	Amount         int64     `json:"amount"`
	ReferralReward int64     `json:"referral_reward"`
	Timestamp      time.Time `json:"timestamp"`
}

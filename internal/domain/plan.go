/**
 * @description
 * This file defines the data-plan domain models. Plans are the purchasable
 * inventory of the hotspot reseller: fixed-price data bundles debited from
 * the wallet balance.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// DataPlan represents a purchasable data bundle.
// This struct maps directly to the `data_plans` table in the database.
type DataPlan struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description,omitempty"`
	Price        int64     `json:"price"` // in kobo
	DataSizeMB   int       `json:"data_size_mb"`
	ValidityDays int       `json:"validity_days"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// PurchaseResult summarizes a completed plan purchase.
type PurchaseResult struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	PlanID        uuid.UUID `json:"plan_id"`
	Amount        int64     `json:"amount"` // in kobo
	NewBalance    int64     `json:"new_balance"`
	// ReferralReward is the kobo amount credited to the buyer's referrer,
	// zero when no reward applied.
	ReferralReward int64 `json:"referral_reward"`
}

/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the wallet service needs. The interface decouples business logic from
 * the PostgreSQL implementation and lets tests substitute stub repositories.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/deepmindfx/izyconnect/internal/domain"
	"github.com/google/uuid"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Profile methods
	FindProfileByID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	FindProfileByEmail(ctx context.Context, email string) (*domain.Profile, error)

	// Settlement. Applies the funding credit and the ledger insert in one
	// database transaction keyed on the unique gateway reference. Safe under
	// concurrent invocation with the same reference: exactly one call mutates,
	// the rest observe alreadyProcessed=true.
	SettleWalletFunding(ctx context.Context, userID uuid.UUID, amount int64, reference, description string) (newBalance int64, alreadyProcessed bool, err error)

	// Ledger methods
	FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	ListTransactionsByUserID(ctx context.Context, userID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error)

	// Internal transfer between two wallets: debit sender (amount + charge),
	// credit recipient, insert the paired ledger rows, all in one transaction.
	TransferBetweenWallets(ctx context.Context, senderID, recipientID uuid.UUID, amount, charge int64, description string) (*domain.WalletTransferResult, error)

	// Plan methods
	ListActivePlans(ctx context.Context) ([]domain.DataPlan, error)
	FindPlanByID(ctx context.Context, planID uuid.UUID) (*domain.DataPlan, error)
	// Debits the plan price from the buyer's wallet and inserts the purchase
	// ledger row in one transaction.
	PurchasePlanAtomic(ctx context.Context, userID uuid.UUID, plan *domain.DataPlan) (txID uuid.UUID, newBalance int64, err error)
	// Credits a referral reward outside the purchase transaction; a failure
	// here never unwinds the purchase.
	CreditReferralReward(ctx context.Context, referrerID uuid.UUID, amount int64, description string) error

	// Virtual account methods
	FindVirtualAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.VirtualAccount, error)
	CreateVirtualAccount(ctx context.Context, account *domain.VirtualAccount) error

	// Admin settings
	GetSettings(ctx context.Context) (domain.Settings, error)
	ListRawSettings(ctx context.Context) (map[string]string, error)
	UpdateSettings(ctx context.Context, values map[string]string) error
}

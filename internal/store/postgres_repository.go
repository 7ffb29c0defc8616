/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the SQL needed for profiles, the transaction ledger, admin
 * settings, virtual accounts, and data plans.
 *
 * The settlement path (`SettleWalletFunding`) is the only place a funding credit
 * can happen. The ledger insert and the balance update run inside one database
 * transaction, and the partial unique index on `transactions.gateway_reference`
 * turns a concurrent double-fire into a unique violation that is reported as a
 * no-op replay rather than a second credit.
 *
 * @dependencies
 * - context, errors, strconv: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deepmindfx/izyconnect/internal/domain"
)

var (
	ErrProfileNotFound        = errors.New("profile not found")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrPlanNotFound           = errors.New("data plan not found")
	ErrVirtualAccountNotFound = errors.New("virtual account not found")
	ErrVirtualAccountExists   = errors.New("virtual account already exists")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindProfileByID retrieves a profile by its internal id.
func (r *PostgresRepository) FindProfileByID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	var p domain.Profile
	query := `SELECT id, email, full_name, wallet_balance, referral_code, referred_by, created_at FROM profiles WHERE id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&p.ID, &p.Email, &p.FullName, &p.WalletBalance, &p.ReferralCode, &p.ReferredBy, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &p, nil
}

// FindProfileByEmail retrieves a profile by its stored email. Emails are unique
// per profile (enforced by index), so the identity fallback during settlement
// cannot mis-credit a second profile sharing the address.
func (r *PostgresRepository) FindProfileByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	var p domain.Profile
	query := `SELECT id, email, full_name, wallet_balance, referral_code, referred_by, created_at FROM profiles WHERE lower(email) = lower(btrim($1))`
	err := r.db.QueryRow(ctx, query, email).Scan(&p.ID, &p.Email, &p.FullName, &p.WalletBalance, &p.ReferralCode, &p.ReferredBy, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &p, nil
}

// SettleWalletFunding applies a funding credit exactly once per gateway reference.
func (r *PostgresRepository) SettleWalletFunding(ctx context.Context, userID uuid.UUID, amount int64, reference, description string) (int64, bool, error) {
	// Fast path: a committed ledger row means a prior invocation already
	// settled this reference.
	if existing, err := r.FindTransactionByReference(ctx, reference); err == nil && existing != nil {
		balance, err := r.currentBalance(ctx, existing.UserID)
		if err != nil {
			return 0, true, err
		}
		return balance, true, nil
	} else if err != nil && !errors.Is(err, ErrTransactionNotFound) {
		return 0, false, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback(ctx)

	// Lock the profile row so concurrent settlements for the same user
	// serialize; the ledger insert below is the per-reference guard.
	var balance int64
	err = tx.QueryRow(ctx, "SELECT wallet_balance FROM profiles WHERE id = $1 FOR UPDATE", userID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, false, ErrProfileNotFound
		}
		return 0, false, err
	}

	insertQuery := `
		INSERT INTO transactions (id, user_id, type, category, amount, description, status, gateway_reference)
		VALUES ($1, $2, $3, $4, $5, $6, 'completed', $7)
	`
	_, err = tx.Exec(ctx, insertQuery,
		uuid.New(), userID, domain.TransactionTypeCredit, domain.CategoryWalletFunding,
		amount, description, reference,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Lost the race: another invocation committed this reference
			// between our fast-path check and the insert. Discard the credit.
			replayBalance, balErr := r.currentBalance(ctx, userID)
			if balErr != nil {
				return 0, true, balErr
			}
			return replayBalance, true, nil
		}
		return 0, false, err
	}

	newBalance := balance + amount
	tag, err := tx.Exec(ctx, "UPDATE profiles SET wallet_balance = $1 WHERE id = $2", newBalance, userID)
	if err != nil {
		return 0, false, err
	}
	if tag.RowsAffected() == 0 {
		return 0, false, ErrProfileNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, err
	}
	return newBalance, false, nil
}

func (r *PostgresRepository) currentBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx, "SELECT wallet_balance FROM profiles WHERE id = $1", userID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrProfileNotFound
		}
		return 0, err
	}
	return balance, nil
}

// FindTransactionByReference looks up a ledger row by its gateway reference.
func (r *PostgresRepository) FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	var t domain.Transaction
	query := `
		SELECT id, user_id, type, category, amount, description, status, gateway_reference, created_at
		FROM transactions
		WHERE gateway_reference = $1
	`
	err := r.db.QueryRow(ctx, query, reference).Scan(
		&t.ID, &t.UserID, &t.Type, &t.Category, &t.Amount, &t.Description, &t.Status, &t.GatewayReference, &t.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListTransactionsByUserID returns a user's ledger entries, newest first.
func (r *PostgresRepository) ListTransactionsByUserID(ctx context.Context, userID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, user_id, type, category, amount, description, status, gateway_reference, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Category, &t.Amount, &t.Description, &t.Status, &t.GatewayReference, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TransferBetweenWallets moves funds between two internal wallets atomically.
func (r *PostgresRepository) TransferBetweenWallets(ctx context.Context, senderID, recipientID uuid.UUID, amount, charge int64, description string) (*domain.WalletTransferResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Lock both profile rows in deterministic id order to avoid deadlocks
	// between opposing transfers.
	first, second := senderID, recipientID
	if strings.Compare(second.String(), first.String()) < 0 {
		first, second = second, first
	}
	balances := map[uuid.UUID]int64{}
	for _, id := range []uuid.UUID{first, second} {
		var balance int64
		if err := tx.QueryRow(ctx, "SELECT wallet_balance FROM profiles WHERE id = $1 FOR UPDATE", id).Scan(&balance); err != nil {
			if err == pgx.ErrNoRows {
				return nil, ErrProfileNotFound
			}
			return nil, err
		}
		balances[id] = balance
	}

	total := amount + charge
	if balances[senderID] < total {
		return nil, ErrInsufficientFunds
	}
	senderNewBalance := balances[senderID] - total

	if _, err := tx.Exec(ctx, "UPDATE profiles SET wallet_balance = wallet_balance - $1 WHERE id = $2", total, senderID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, "UPDATE profiles SET wallet_balance = wallet_balance + $1 WHERE id = $2", amount, recipientID); err != nil {
		return nil, err
	}

	debitID := uuid.New()
	insertQuery := `
		INSERT INTO transactions (id, user_id, type, category, amount, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'completed')
	`
	if _, err := tx.Exec(ctx, insertQuery, debitID, senderID, domain.TransactionTypeDebit, domain.CategoryWalletTransfer, total, description); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, insertQuery, uuid.New(), recipientID, domain.TransactionTypeCredit, domain.CategoryWalletTransfer, amount, description); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &domain.WalletTransferResult{
		TransactionID:    debitID,
		Amount:           amount,
		Charge:           charge,
		SenderNewBalance: senderNewBalance,
	}, nil
}

// ListActivePlans returns the purchasable data plans, cheapest first.
func (r *PostgresRepository) ListActivePlans(ctx context.Context) ([]domain.DataPlan, error) {
	query := `
		SELECT id, name, description, price, data_size_mb, validity_days, active, created_at
		FROM data_plans
		WHERE active = TRUE
		ORDER BY price ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []domain.DataPlan
	for rows.Next() {
		var p domain.DataPlan
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.DataSizeMB, &p.ValidityDays, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// FindPlanByID retrieves a single data plan.
func (r *PostgresRepository) FindPlanByID(ctx context.Context, planID uuid.UUID) (*domain.DataPlan, error) {
	var p domain.DataPlan
	query := `SELECT id, name, description, price, data_size_mb, validity_days, active, created_at FROM data_plans WHERE id = $1`
	err := r.db.QueryRow(ctx, query, planID).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.DataSizeMB, &p.ValidityDays, &p.Active, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &p, nil
}

// PurchasePlanAtomic debits the plan price and writes the purchase ledger row
// in one transaction.
func (r *PostgresRepository) PurchasePlanAtomic(ctx context.Context, userID uuid.UUID, plan *domain.DataPlan) (uuid.UUID, int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, 0, err
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, "SELECT wallet_balance FROM profiles WHERE id = $1 FOR UPDATE", userID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, 0, ErrProfileNotFound
		}
		return uuid.Nil, 0, err
	}
	if balance < plan.Price {
		return uuid.Nil, 0, ErrInsufficientFunds
	}

	newBalance := balance - plan.Price
	if _, err := tx.Exec(ctx, "UPDATE profiles SET wallet_balance = $1 WHERE id = $2", newBalance, userID); err != nil {
		return uuid.Nil, 0, err
	}

	txID := uuid.New()
	insertQuery := `
		INSERT INTO transactions (id, user_id, type, category, amount, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'completed')
	`
	description := fmt.Sprintf("Data plan purchase: %s", plan.Name)
	if _, err := tx.Exec(ctx, insertQuery, txID, userID, domain.TransactionTypeDebit, domain.CategoryPlanPurchase, plan.Price, description); err != nil {
		return uuid.Nil, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, 0, err
	}
	return txID, newBalance, nil
}

// CreditReferralReward credits a referrer's wallet and records the reward.
func (r *PostgresRepository) CreditReferralReward(ctx context.Context, referrerID uuid.UUID, amount int64, description string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, "UPDATE profiles SET wallet_balance = wallet_balance + $1 WHERE id = $2", amount, referrerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}

	insertQuery := `
		INSERT INTO transactions (id, user_id, type, category, amount, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'completed')
	`
	if _, err := tx.Exec(ctx, insertQuery, uuid.New(), referrerID, domain.TransactionTypeCredit, domain.CategoryReferralReward, amount, description); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// FindVirtualAccountByUserID retrieves the dedicated account for a user, if any.
func (r *PostgresRepository) FindVirtualAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.VirtualAccount, error) {
	var v domain.VirtualAccount
	query := `
		SELECT id, user_id, account_number, bank_name, currency, gateway_reference, status, created_at
		FROM virtual_accounts
		WHERE user_id = $1
	`
	err := r.db.QueryRow(ctx, query, userID).Scan(&v.ID, &v.UserID, &v.AccountNumber, &v.BankName, &v.Currency, &v.GatewayReference, &v.Status, &v.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrVirtualAccountNotFound
		}
		return nil, err
	}
	return &v, nil
}

// CreateVirtualAccount persists a provisioned virtual account.
func (r *PostgresRepository) CreateVirtualAccount(ctx context.Context, account *domain.VirtualAccount) error {
	query := `
		INSERT INTO virtual_accounts (id, user_id, account_number, bank_name, currency, gateway_reference, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query, account.ID, account.UserID, account.AccountNumber, account.BankName, account.Currency, account.GatewayReference, account.Status)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrVirtualAccountExists
		}
		return err
	}
	return nil
}

// GetSettings loads the admin configuration snapshot, applying defaults for
// anything the admin panel has not set yet.
func (r *PostgresRepository) GetSettings(ctx context.Context) (domain.Settings, error) {
	raw, err := r.ListRawSettings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	return settingsFromRaw(raw), nil
}

// ListRawSettings returns the admin_settings rows as a key/value map.
func (r *PostgresRepository) ListRawSettings(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.Query(ctx, "SELECT key, value FROM admin_settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// UpdateSettings upserts the given admin_settings rows.
func (r *PostgresRepository) UpdateSettings(ctx context.Context, values map[string]string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO admin_settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	for k, v := range values {
		if _, err := tx.Exec(ctx, query, k, v); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func settingsFromRaw(raw map[string]string) domain.Settings {
	s := domain.Settings{
		ActiveGateway:         domain.GatewayFlutterwave,
		FundingChargeType:     domain.ChargeTypePercentage,
		FundingMinDeposit:     10000, // 100 NGN
		TransferMinAmount:     10000,
		TransferMaxAmount:     1000000,
		TransferChargeType:    domain.ChargeTypePercentage,
		TransferChargeValue:   1,
		ReferralRewardPercent: 10,
		ReferralMinPurchase:   10000,
		ReferralMinPayout:     50000,
	}

	if v, ok := raw[domain.SettingActiveGateway]; ok && v != "" {
		s.ActiveGateway = v
	}
	s.PaystackPublicKey = raw[domain.SettingPaystackPublicKey]
	s.PaystackSecretKey = raw[domain.SettingPaystackSecretKey]
	s.FlutterwavePublicKey = raw[domain.SettingFlutterwavePublicKey]
	s.FlutterwaveSecretKey = raw[domain.SettingFlutterwaveSecretKey]

	s.FundingChargeEnabled = raw[domain.SettingFundingChargeEnabled] == "true"
	if v, ok := raw[domain.SettingFundingChargeType]; ok && v != "" {
		s.FundingChargeType = v
	}
	s.FundingChargeValue = parseFloatSetting(raw, domain.SettingFundingChargeValue, 0)
	s.FundingMinDeposit = parseKoboSetting(raw, domain.SettingFundingMinDeposit, s.FundingMinDeposit)
	s.FundingMaxDeposit = parseKoboSetting(raw, domain.SettingFundingMaxDeposit, 0)

	s.TransferEnabled = raw[domain.SettingTransferEnabled] == "true"
	s.TransferMinAmount = parseKoboSetting(raw, domain.SettingTransferMinAmount, s.TransferMinAmount)
	s.TransferMaxAmount = parseKoboSetting(raw, domain.SettingTransferMaxAmount, s.TransferMaxAmount)
	s.TransferChargeEnabled = raw[domain.SettingTransferChargeEnabled] == "true"
	if v, ok := raw[domain.SettingTransferChargeType]; ok && v != "" {
		s.TransferChargeType = v
	}
	s.TransferChargeValue = parseFloatSetting(raw, domain.SettingTransferChargeValue, s.TransferChargeValue)

	s.ReferralEnabled = raw[domain.SettingReferralEnabled] == "true"
	s.ReferralRewardPercent = parseFloatSetting(raw, domain.SettingReferralRewardPercent, s.ReferralRewardPercent)
	s.ReferralMinPurchase = parseKoboSetting(raw, domain.SettingReferralMinPurchase, s.ReferralMinPurchase)
	s.ReferralMinPayout = parseKoboSetting(raw, domain.SettingReferralMinPayout, s.ReferralMinPayout)

	return s
}

func parseFloatSetting(raw map[string]string, key string, fallback float64) float64 {
	v, ok := raw[key]
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback
	}
	return f
}

// parseKoboSetting reads a naira-denominated setting value and converts to kobo.
func parseKoboSetting(raw map[string]string, key string, fallback int64) int64 {
	v, ok := raw[key]
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback
	}
	return int64(math.Round(f * 100))
}

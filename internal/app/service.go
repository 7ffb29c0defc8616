/**
 * @description
 * This file contains the core business logic for the wallet service. The
 * `Service` struct orchestrates wallet operations, coordinating between the
 * database repository, the payment gateway clients, and the message broker.
 *
 * Key features:
 * - Wallet-to-wallet transfers gated by admin-configured limits and charges.
 * - Data plan purchases with referral reward crediting.
 * - Virtual account provisioning via the Flutterwave API.
 * - Settlement of gateway payment events lives in settlement.go.
 *
 * Admin settings are fetched as a snapshot at the start of each operation and
 * passed down explicitly; nothing here reads mutable global state.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/paystackclient, pkg/flutterwaveclient, pkg/rabbitmq: External services.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deepmindfx/izyconnect/internal/domain"
	"github.com/deepmindfx/izyconnect/internal/store"
	"github.com/deepmindfx/izyconnect/pkg/flutterwaveclient"
	"github.com/deepmindfx/izyconnect/pkg/paystackclient"
	"github.com/deepmindfx/izyconnect/pkg/rabbitmq"
)

var (
	ErrGatewayNotConfigured = errors.New("payment provider is not configured")
	ErrGatewayInactive      = errors.New("payment gateway is not active for checkout")
	ErrUserNotResolved      = errors.New("user not found for payment")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrTransfersDisabled    = errors.New("wallet transfers are disabled")
	ErrTransferOutOfRange   = errors.New("transfer amount is outside the allowed range")
	ErrSelfTransfer         = errors.New("cannot transfer to your own wallet")
	ErrPlanInactive         = errors.New("data plan is not available")
	ErrVerificationPending  = errors.New("payment verification is still pending")
	ErrInvalidBVN           = errors.New("a valid 11-digit BVN is required")
)

var bvnPattern = regexp.MustCompile(`^\d{11}$`)

// Service provides the core business logic for the wallet service.
type Service struct {
	repo          store.Repository
	paystack      *paystackclient.Client
	flutterwave   *flutterwaveclient.Client
	eventProducer rabbitmq.Publisher
	eventExchange string

	// Boot-time fallbacks for gateway credentials; the admin_settings table
	// takes precedence when populated.
	fallbackPaystackSecret    string
	fallbackFlutterwaveSecret string

	verifyTimeout   time.Duration
	verifyLimiter   RateLimiter
	verifyRateLimit int
}

// RateLimitError reports a throttled request and how long the caller should
// wait before retrying.
type RateLimitError struct {
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %ds", e.RetryAfterSeconds)
}

// NewService creates a new wallet service instance.
func NewService(
	repo store.Repository,
	paystack *paystackclient.Client,
	flutterwave *flutterwaveclient.Client,
	producer rabbitmq.Publisher,
	eventExchange string,
	fallbackPaystackSecret string,
	fallbackFlutterwaveSecret string,
	verifyTimeout time.Duration,
) *Service {
	if verifyTimeout <= 0 {
		verifyTimeout = 20 * time.Second
	}
	return &Service{
		repo:                      repo,
		paystack:                  paystack,
		flutterwave:               flutterwave,
		eventProducer:             producer,
		eventExchange:             eventExchange,
		fallbackPaystackSecret:    fallbackPaystackSecret,
		fallbackFlutterwaveSecret: fallbackFlutterwaveSecret,
		verifyTimeout:             verifyTimeout,
	}
}

// SetVerifyRateLimiter installs a distributed rate limiter for the manual
// verification endpoint. Optional; without it verification is unthrottled.
func (s *Service) SetVerifyRateLimiter(limiter RateLimiter, perMinute int) {
	s.verifyLimiter = limiter
	s.verifyRateLimit = perMinute
}

// GetProfile returns the profile for an authenticated user.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	return s.repo.FindProfileByID(ctx, userID)
}

// ListTransactions returns a user's ledger history, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error) {
	return s.repo.ListTransactionsByUserID(ctx, userID, opts)
}

// ListPlans returns the purchasable data plans.
func (s *Service) ListPlans(ctx context.Context) ([]domain.DataPlan, error) {
	return s.repo.ListActivePlans(ctx)
}

// TransferWallet moves funds from the sender's wallet to another user's wallet,
// applying the admin-configured limits and charge schedule.
func (s *Service) TransferWallet(ctx context.Context, senderID uuid.UUID, req domain.WalletTransferRequest) (*domain.WalletTransferResult, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if !settings.TransferEnabled {
		return nil, ErrTransfersDisabled
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.Amount < settings.TransferMinAmount || (settings.TransferMaxAmount > 0 && req.Amount > settings.TransferMaxAmount) {
		return nil, ErrTransferOutOfRange
	}

	recipient, err := s.repo.FindProfileByEmail(ctx, req.RecipientEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to find recipient: %w", err)
	}
	if recipient.ID == senderID {
		return nil, ErrSelfTransfer
	}

	charge := settings.TransferCharge(req.Amount)
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = fmt.Sprintf("Wallet transfer to %s", recipient.Email)
	}

	result, err := s.repo.TransferBetweenWallets(ctx, senderID, recipient.ID, req.Amount, charge, description)
	if err != nil {
		return nil, err
	}

	if s.eventProducer != nil {
		event := domain.WalletTransferCompletedEvent{
			SenderID:    senderID,
			RecipientID: recipient.ID,
			Amount:      req.Amount,
			Charge:      charge,
			Timestamp:   time.Now().UTC(),
		}
		if err := s.eventProducer.Publish(ctx, s.eventExchange, "wallet.transfer.completed", event); err != nil {
			log.Printf("level=warn component=app msg=\"transfer event publish failed\" sender_id=%s err=%v", senderID, err)
		}
	}

	return result, nil
}

// PurchasePlan debits the plan price from the buyer's wallet and credits the
// buyer's referrer when the referral program applies.
func (s *Service) PurchasePlan(ctx context.Context, userID uuid.UUID, planID uuid.UUID) (*domain.PurchaseResult, error) {
	plan, err := s.repo.FindPlanByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, ErrPlanInactive
	}

	buyer, err := s.repo.FindProfileByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	txID, newBalance, err := s.repo.PurchasePlanAtomic(ctx, userID, plan)
	if err != nil {
		return nil, err
	}

	result := &domain.PurchaseResult{
		TransactionID: txID,
		PlanID:        plan.ID,
		Amount:        plan.Price,
		NewBalance:    newBalance,
	}

	// Referral rewards ride on completed purchases. A reward failure is an
	// inconsistency to investigate, never a reason to unwind the purchase.
	if settings.ReferralEnabled && buyer.ReferredBy != nil && plan.Price >= settings.ReferralMinPurchase && settings.ReferralRewardPercent > 0 {
		reward := int64(float64(plan.Price) * settings.ReferralRewardPercent / 100.0)
		if reward > 0 {
			description := fmt.Sprintf("Referral reward: %s purchased %s", buyer.Email, plan.Name)
			if err := s.repo.CreditReferralReward(ctx, *buyer.ReferredBy, reward, description); err != nil {
				log.Printf("level=error component=app msg=\"referral reward credit failed\" referrer_id=%s buyer_id=%s amount=%d err=%v", *buyer.ReferredBy, userID, reward, err)
			} else {
				result.ReferralReward = reward
			}
		}
	}

	if s.eventProducer != nil {
		event := domain.PlanPurchasedEvent{
			UserID:         userID,
			PlanID:         plan.ID,
			Amount:         plan.Price,
			ReferralReward: result.ReferralReward,
			Timestamp:      time.Now().UTC(),
		}
		if err := s.eventProducer.Publish(ctx, s.eventExchange, "plan.purchased", event); err != nil {
			log.Printf("level=warn component=app msg=\"purchase event publish failed\" user_id=%s err=%v", userID, err)
		}
	}

	return result, nil
}

// GetVirtualAccount returns the user's dedicated virtual account.
func (s *Service) GetVirtualAccount(ctx context.Context, userID uuid.UUID) (*domain.VirtualAccount, error) {
	return s.repo.FindVirtualAccountByUserID(ctx, userID)
}

// CreateVirtualAccount provisions a dedicated NGN account number for the user
// via Flutterwave. Idempotent: an existing account is returned as-is.
func (s *Service) CreateVirtualAccount(ctx context.Context, userID uuid.UUID, bvn string) (*domain.VirtualAccount, error) {
	if existing, err := s.repo.FindVirtualAccountByUserID(ctx, userID); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrVirtualAccountNotFound) {
		return nil, err
	}

	if !bvnPattern.MatchString(strings.TrimSpace(bvn)) {
		return nil, ErrInvalidBVN
	}

	profile, err := s.repo.FindProfileByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	secret := settings.FlutterwaveSecretKey
	if secret == "" {
		secret = s.fallbackFlutterwaveSecret
	}
	if secret == "" {
		return nil, ErrGatewayNotConfigured
	}

	txRef := fmt.Sprintf("VA-%d-%s", time.Now().UnixMilli(), shortRef())
	resp, err := s.flutterwave.CreateVirtualAccount(ctx, secret, flutterwaveclient.CreateVirtualAccountRequest{
		Email:       profile.Email,
		BVN:         strings.TrimSpace(bvn),
		IsPermanent: true,
		TxRef:       txRef,
		Narration:   "IzyConnect wallet funding",
	})
	if err != nil {
		return nil, fmt.Errorf("virtual account provisioning failed: %w", err)
	}

	account := &domain.VirtualAccount{
		ID:               uuid.New(),
		UserID:           userID,
		AccountNumber:    resp.Data.AccountNumber,
		BankName:         resp.Data.BankName,
		Currency:         "NGN",
		GatewayReference: resp.Data.OrderRef,
		Status:           "active",
	}
	if err := s.repo.CreateVirtualAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrVirtualAccountExists) {
			// Concurrent provisioning; the committed row wins.
			return s.repo.FindVirtualAccountByUserID(ctx, userID)
		}
		return nil, err
	}
	return account, nil
}

// GetSettings returns the admin settings snapshot.
func (s *Service) GetSettings(ctx context.Context) (domain.Settings, error) {
	return s.repo.GetSettings(ctx)
}

// ListRawSettings returns the raw admin_settings rows for the admin panel.
func (s *Service) ListRawSettings(ctx context.Context) (map[string]string, error) {
	return s.repo.ListRawSettings(ctx)
}

// UpdateSettings upserts admin settings values.
func (s *Service) UpdateSettings(ctx context.Context, values map[string]string) error {
	return s.repo.UpdateSettings(ctx, values)
}

func shortRef() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

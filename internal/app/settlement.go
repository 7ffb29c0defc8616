/**
 * @description
 * Settlement of payment gateway events into wallet credits. This is the
 * money-moving half of the funding flow: webhooks and manual verification
 * both funnel into SettleFunding, which resolves the payment to a user and
 * applies an idempotent, atomic credit keyed on the gateway reference.
 *
 * Key features:
 * - Idempotency: replays of the same gateway reference are acknowledged
 *   without a second credit, regardless of delivery path or ordering.
 * - Identity resolution: metadata user_id, then the client-supplied user id,
 *   then the customer email, in that order.
 * - Amount fidelity: gateway-reported minor units are credited verbatim;
 *   client-supplied amounts are never trusted.
 *
 * @dependencies
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/paystackclient: Transaction initialization and verification.
 */

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deepmindfx/izyconnect/internal/domain"
	"github.com/deepmindfx/izyconnect/internal/store"
	"github.com/deepmindfx/izyconnect/pkg/paystackclient"
)

var ErrInvalidPaymentEvent = errors.New("payment event is missing a reference or a positive amount")

// SettleFunding applies a successful gateway payment to the matching user's
// wallet. Non-success events are acknowledged without side effects. The
// returned outcome distinguishes a fresh credit from an idempotent replay.
func (s *Service) SettleFunding(ctx context.Context, event domain.PaymentEvent) (*domain.SettlementOutcome, error) {
	if !isSuccessEvent(event) {
		log.Printf("level=info component=app msg=\"ignoring non-success payment event\" gateway=%s event_type=%s reference=%s", event.Gateway, event.EventType, event.Reference)
		return &domain.SettlementOutcome{Handled: false}, nil
	}
	if strings.TrimSpace(event.Reference) == "" || event.Amount <= 0 {
		return nil, ErrInvalidPaymentEvent
	}

	userID, err := s.resolveUser(ctx, event)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Wallet funding via %s", gatewayLabel(event.Gateway))
	newBalance, alreadyProcessed, err := s.repo.SettleWalletFunding(ctx, userID, event.Amount, event.Reference, description)
	if err != nil {
		return nil, err
	}

	if alreadyProcessed {
		log.Printf("level=info component=app msg=\"payment already settled\" reference=%s user_id=%s", event.Reference, userID)
	} else {
		log.Printf("level=info component=app msg=\"wallet credited\" reference=%s user_id=%s amount=%d new_balance=%d", event.Reference, userID, event.Amount, newBalance)
		if s.eventProducer != nil {
			credited := domain.WalletCreditedEvent{
				UserID:     userID,
				Amount:     event.Amount,
				Reference:  event.Reference,
				Gateway:    event.Gateway,
				NewBalance: newBalance,
				Timestamp:  time.Now().UTC(),
			}
			if err := s.eventProducer.Publish(ctx, s.eventExchange, "wallet.credited", credited); err != nil {
				log.Printf("level=warn component=app msg=\"credit event publish failed\" reference=%s err=%v", event.Reference, err)
			}
		}
	}

	return &domain.SettlementOutcome{
		Handled:          true,
		AlreadyProcessed: alreadyProcessed,
		NewBalance:       newBalance,
	}, nil
}

// resolveUser maps a payment event to a profile ID. Precedence: gateway
// metadata user_id, then the client-supplied user id, then the customer email.
func (s *Service) resolveUser(ctx context.Context, event domain.PaymentEvent) (uuid.UUID, error) {
	for _, candidate := range []string{event.MetadataUserID, event.ClientUserID} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		id, err := uuid.Parse(candidate)
		if err != nil {
			log.Printf("level=warn component=app msg=\"malformed user id on payment event\" reference=%s user_id=%q", event.Reference, candidate)
			continue
		}
		if _, err := s.repo.FindProfileByID(ctx, id); err != nil {
			return uuid.Nil, err
		}
		return id, nil
	}

	email := strings.TrimSpace(event.CustomerEmail)
	if email == "" {
		return uuid.Nil, ErrUserNotResolved
	}
	profile, err := s.repo.FindProfileByEmail(ctx, email)
	if err != nil {
		return uuid.Nil, err
	}
	return profile.ID, nil
}

// InitiateDeposit creates a Paystack checkout session for a wallet top-up and
// records the reference the settlement path will later match on.
func (s *Service) InitiateDeposit(ctx context.Context, user *domain.Profile, req domain.InitiateDepositRequest) (*domain.InitiateDepositResponse, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if settings.ActiveGateway != domain.GatewayPaystack && settings.ActiveGateway != domain.GatewayBoth {
		return nil, ErrGatewayInactive
	}
	secret := settings.PaystackSecretKey
	if secret == "" {
		secret = s.fallbackPaystackSecret
	}
	if secret == "" {
		return nil, ErrGatewayNotConfigured
	}

	amountKobo := int64(math.Round(req.Amount * 100))
	if amountKobo <= 0 {
		return nil, ErrInvalidAmount
	}
	if amountKobo < settings.FundingMinDeposit || (settings.FundingMaxDeposit > 0 && amountKobo > settings.FundingMaxDeposit) {
		return nil, ErrInvalidAmount
	}
	// The gateway is charged the deposit amount only. Any funding charge is
	// quoted for display; the credited balance always equals the deposit.
	charge := settings.FundingCharge(amountKobo)

	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		reference = fmt.Sprintf("PS-%d-%s", time.Now().UnixMilli(), shortRef())
	}

	metadata, err := json.Marshal(map[string]any{
		"user_id":        user.ID.String(),
		"deposit_amount": domain.NairaFromKobo(amountKobo),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	resp, err := s.paystack.InitializeTransaction(ctx, secret, paystackclient.InitializeRequest{
		Email:     user.Email,
		Amount:    amountKobo,
		Reference: reference,
		Currency:  "NGN",
		Metadata:  metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout initialization failed: %w", err)
	}

	return &domain.InitiateDepositResponse{
		AuthorizationURL: resp.Data.AuthorizationURL,
		AccessCode:       resp.Data.AccessCode,
		Reference:        reference,
		Amount:           domain.NairaFromKobo(amountKobo),
		Charge:           domain.NairaFromKobo(charge),
	}, nil
}

// VerifyDeposit re-checks a payment's status directly with Paystack and
// settles it when the gateway reports success. Used as a client-initiated
// fallback when the webhook is delayed or lost.
func (s *Service) VerifyDeposit(ctx context.Context, user *domain.Profile, reference string) (*domain.SettlementOutcome, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrInvalidPaymentEvent
	}

	if s.verifyLimiter != nil && user != nil {
		count, retryAfter, err := s.verifyLimiter.ConsumeRateLimit(ctx, "verify_deposit", user.ID.String(), s.verifyRateLimit, time.Minute)
		if err != nil {
			log.Printf("level=warn component=app msg=\"rate limiter unavailable, allowing request\" user_id=%s err=%v", user.ID, err)
		} else if s.verifyRateLimit > 0 && count > s.verifyRateLimit {
			return nil, &RateLimitError{RetryAfterSeconds: retryAfter}
		}
	}

	// Replays short-circuit before the gateway round trip.
	if tx, err := s.repo.FindTransactionByReference(ctx, reference); err == nil {
		profile, perr := s.repo.FindProfileByID(ctx, tx.UserID)
		if perr != nil {
			return nil, perr
		}
		return &domain.SettlementOutcome{Handled: true, AlreadyProcessed: true, NewBalance: profile.WalletBalance}, nil
	} else if !errors.Is(err, store.ErrTransactionNotFound) {
		return nil, err
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	secret := settings.PaystackSecretKey
	if secret == "" {
		secret = s.fallbackPaystackSecret
	}
	if secret == "" {
		return nil, ErrGatewayNotConfigured
	}

	verifyCtx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	defer cancel()
	resp, err := s.paystack.VerifyTransaction(verifyCtx, secret, reference)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrVerificationPending
		}
		return nil, fmt.Errorf("verification request failed: %w", err)
	}
	if !strings.EqualFold(resp.Data.Status, "success") {
		log.Printf("level=info component=app msg=\"verified payment not successful\" reference=%s status=%s", reference, resp.Data.Status)
		return &domain.SettlementOutcome{Handled: false}, nil
	}

	event := domain.PaymentEvent{
		Gateway:       domain.GatewayPaystack,
		EventType:     domain.PaystackChargeSuccess,
		Reference:     reference,
		Amount:        resp.Data.Amount,
		Currency:      resp.Data.Currency,
		CustomerEmail: resp.Data.Customer.Email,
	}
	if user != nil {
		event.ClientUserID = user.ID.String()
	}
	if id := resp.MetadataUserID(); id != "" {
		event.MetadataUserID = id
	}
	return s.SettleFunding(ctx, event)
}

func isSuccessEvent(event domain.PaymentEvent) bool {
	switch event.Gateway {
	case domain.GatewayPaystack:
		return event.EventType == domain.PaystackChargeSuccess
	case domain.GatewayFlutterwave:
		return event.EventType == domain.FlutterwaveChargeCompleted
	default:
		return false
	}
}

func gatewayLabel(g string) string {
	switch g {
	case domain.GatewayPaystack:
		return "Paystack"
	case domain.GatewayFlutterwave:
		return "Flutterwave"
	default:
		return g
	}
}

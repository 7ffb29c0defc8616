package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/deepmindfx/izyconnect/internal/domain"
	"github.com/deepmindfx/izyconnect/internal/store"
)

// walletRepoStub is an in-memory repository that mirrors the settlement
// semantics of the Postgres implementation: one credit per gateway reference,
// replays observe the current balance.
type walletRepoStub struct {
	store.Repository

	mu          sync.Mutex
	profiles    map[uuid.UUID]*domain.Profile
	byEmail     map[string]uuid.UUID
	txByRef     map[string]*domain.Transaction
	settings    domain.Settings
	settleCalls int
}

func newWalletRepoStub() *walletRepoStub {
	return &walletRepoStub{
		profiles: make(map[uuid.UUID]*domain.Profile),
		byEmail:  make(map[string]uuid.UUID),
		txByRef:  make(map[string]*domain.Transaction),
	}
}

func (s *walletRepoStub) addProfile(email string, balance int64) *domain.Profile {
	p := &domain.Profile{ID: uuid.New(), Email: email, WalletBalance: balance}
	s.profiles[p.ID] = p
	s.byEmail[email] = p.ID
	return p
}

func (s *walletRepoStub) FindProfileByID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, store.ErrProfileNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *walletRepoStub) FindProfileByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, store.ErrProfileNotFound
	}
	copied := *s.profiles[id]
	return &copied, nil
}

func (s *walletRepoStub) SettleWalletFunding(ctx context.Context, userID uuid.UUID, amount int64, reference, description string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleCalls++

	p, ok := s.profiles[userID]
	if !ok {
		return 0, false, store.ErrProfileNotFound
	}
	if existing, dup := s.txByRef[reference]; dup {
		return s.profiles[existing.UserID].WalletBalance, true, nil
	}
	p.WalletBalance += amount
	ref := reference
	s.txByRef[reference] = &domain.Transaction{
		ID:               uuid.New(),
		UserID:           userID,
		Type:             domain.TransactionTypeCredit,
		Category:         domain.CategoryWalletFunding,
		Amount:           amount,
		Description:      description,
		Status:           "completed",
		GatewayReference: &ref,
	}
	return p.WalletBalance, false, nil
}

func (s *walletRepoStub) FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txByRef[reference]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	copied := *tx
	return &copied, nil
}

func (s *walletRepoStub) GetSettings(ctx context.Context) (domain.Settings, error) {
	return s.settings, nil
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *capturePublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, routingKey)
	return nil
}

func (p *capturePublisher) Close() {}

func newTestService(repo *walletRepoStub) (*Service, *capturePublisher) {
	producer := &capturePublisher{}
	svc := NewService(repo, nil, nil, producer, "wallet.events", "", "", 0)
	return svc, producer
}

func TestSettleFundingCreditsWallet(t *testing.T) {
	repo := newWalletRepoStub()
	user := repo.addProfile("ada@example.com", 0)
	svc, producer := newTestService(repo)

	outcome, err := svc.SettleFunding(context.Background(), domain.PaymentEvent{
		Gateway:        domain.GatewayPaystack,
		EventType:      domain.PaystackChargeSuccess,
		Reference:      "PS-100",
		Amount:         150000,
		Currency:       "NGN",
		MetadataUserID: user.ID.String(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Handled || outcome.AlreadyProcessed {
		t.Fatalf("expected fresh settlement, got %+v", outcome)
	}
	if outcome.NewBalance != 150000 {
		t.Fatalf("expected new balance 150000, got %d", outcome.NewBalance)
	}
	if got := domain.NairaFromKobo(outcome.NewBalance); got != 1500.00 {
		t.Fatalf("expected 1500.00 naira, got %.2f", got)
	}
	if len(producer.events) != 1 || producer.events[0] != "wallet.credited" {
		t.Fatalf("expected a wallet.credited event, got %v", producer.events)
	}
}

func TestSettleFundingReplayIsNoOp(t *testing.T) {
	repo := newWalletRepoStub()
	user := repo.addProfile("ada@example.com", 0)
	svc, producer := newTestService(repo)

	event := domain.PaymentEvent{
		Gateway:        domain.GatewayPaystack,
		EventType:      domain.PaystackChargeSuccess,
		Reference:      "PS-200",
		Amount:         100000,
		MetadataUserID: user.ID.String(),
	}

	first, err := svc.SettleFunding(context.Background(), event)
	if err != nil {
		t.Fatalf("unexpected error on first delivery: %v", err)
	}
	second, err := svc.SettleFunding(context.Background(), event)
	if err != nil {
		t.Fatalf("unexpected error on replay: %v", err)
	}

	if first.AlreadyProcessed {
		t.Fatal("first delivery should not be a replay")
	}
	if !second.AlreadyProcessed {
		t.Fatal("second delivery should be reported as already processed")
	}
	if second.NewBalance != 100000 {
		t.Fatalf("replay should observe balance 100000, got %d", second.NewBalance)
	}
	if len(producer.events) != 1 {
		t.Fatalf("replay must not publish a second event, got %v", producer.events)
	}
}

func TestSettleFundingIgnoresNonSuccessEvents(t *testing.T) {
	repo := newWalletRepoStub()
	user := repo.addProfile("ada@example.com", 0)
	svc, _ := newTestService(repo)

	tests := []struct {
		name      string
		gateway   string
		eventType string
	}{
		{"paystack failed charge", domain.GatewayPaystack, "charge.failed"},
		{"paystack unrelated event", domain.GatewayPaystack, "transfer.success"},
		{"flutterwave failed charge", domain.GatewayFlutterwave, "charge.failed"},
		{"unknown gateway", "stripe", "charge.success"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := svc.SettleFunding(context.Background(), domain.PaymentEvent{
				Gateway:        tt.gateway,
				EventType:      tt.eventType,
				Reference:      "PS-300",
				Amount:         50000,
				MetadataUserID: user.ID.String(),
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if outcome.Handled {
				t.Fatal("non-success event must not be handled")
			}
		})
	}

	if repo.settleCalls != 0 {
		t.Fatalf("no settlement should have been attempted, got %d calls", repo.settleCalls)
	}
}

func TestSettleFundingIdentityResolutionOrder(t *testing.T) {
	repo := newWalletRepoStub()
	metaUser := repo.addProfile("meta@example.com", 0)
	clientUser := repo.addProfile("client@example.com", 0)
	emailUser := repo.addProfile("email@example.com", 0)
	svc, _ := newTestService(repo)

	tests := []struct {
		name     string
		event    domain.PaymentEvent
		wantUser uuid.UUID
	}{
		{
			name: "metadata user id wins",
			event: domain.PaymentEvent{
				MetadataUserID: metaUser.ID.String(),
				ClientUserID:   clientUser.ID.String(),
				CustomerEmail:  "email@example.com",
			},
			wantUser: metaUser.ID,
		},
		{
			name: "client user id when metadata absent",
			event: domain.PaymentEvent{
				ClientUserID:  clientUser.ID.String(),
				CustomerEmail: "email@example.com",
			},
			wantUser: clientUser.ID,
		},
		{
			name: "malformed metadata id falls through",
			event: domain.PaymentEvent{
				MetadataUserID: "not-a-uuid",
				ClientUserID:   clientUser.ID.String(),
			},
			wantUser: clientUser.ID,
		},
		{
			name: "customer email as last resort",
			event: domain.PaymentEvent{
				CustomerEmail: "email@example.com",
			},
			wantUser: emailUser.ID,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.event.Gateway = domain.GatewayPaystack
			tt.event.EventType = domain.PaystackChargeSuccess
			tt.event.Reference = "PS-order-" + uuid.NewString()
			tt.event.Amount = 10000

			before, _ := repo.FindProfileByID(context.Background(), tt.wantUser)
			outcome, err := svc.SettleFunding(context.Background(), tt.event)
			if err != nil {
				t.Fatalf("case %d: unexpected error: %v", i, err)
			}
			if !outcome.Handled {
				t.Fatalf("case %d: expected handled outcome", i)
			}
			after, _ := repo.FindProfileByID(context.Background(), tt.wantUser)
			if after.WalletBalance != before.WalletBalance+10000 {
				t.Fatalf("case %d: expected credit on %s", i, tt.wantUser)
			}
		})
	}
}

func TestSettleFundingUnresolvableUser(t *testing.T) {
	repo := newWalletRepoStub()
	svc, _ := newTestService(repo)

	_, err := svc.SettleFunding(context.Background(), domain.PaymentEvent{
		Gateway:   domain.GatewayPaystack,
		EventType: domain.PaystackChargeSuccess,
		Reference: "PS-400",
		Amount:    10000,
	})
	if !errors.Is(err, ErrUserNotResolved) {
		t.Fatalf("expected ErrUserNotResolved, got %v", err)
	}

	_, err = svc.SettleFunding(context.Background(), domain.PaymentEvent{
		Gateway:       domain.GatewayPaystack,
		EventType:     domain.PaystackChargeSuccess,
		Reference:     "PS-401",
		Amount:        10000,
		CustomerEmail: "nobody@example.com",
	})
	if !errors.Is(err, store.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound for unknown email, got %v", err)
	}
}

func TestSettleFundingRejectsInvalidEvents(t *testing.T) {
	repo := newWalletRepoStub()
	user := repo.addProfile("ada@example.com", 0)
	svc, _ := newTestService(repo)

	tests := []struct {
		name      string
		reference string
		amount    int64
	}{
		{"missing reference", "", 10000},
		{"zero amount", "PS-500", 0},
		{"negative amount", "PS-501", -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SettleFunding(context.Background(), domain.PaymentEvent{
				Gateway:        domain.GatewayPaystack,
				EventType:      domain.PaystackChargeSuccess,
				Reference:      tt.reference,
				Amount:         tt.amount,
				MetadataUserID: user.ID.String(),
			})
			if !errors.Is(err, ErrInvalidPaymentEvent) {
				t.Fatalf("expected ErrInvalidPaymentEvent, got %v", err)
			}
		})
	}
}

func TestSettleFundingConcurrentDoubleDelivery(t *testing.T) {
	repo := newWalletRepoStub()
	user := repo.addProfile("ada@example.com", 0)
	svc, producer := newTestService(repo)

	events := []domain.PaymentEvent{
		{Gateway: domain.GatewayPaystack, EventType: domain.PaystackChargeSuccess, Reference: "PS-A", Amount: 100000, MetadataUserID: user.ID.String()},
		{Gateway: domain.GatewayPaystack, EventType: domain.PaystackChargeSuccess, Reference: "PS-B", Amount: 50000, MetadataUserID: user.ID.String()},
	}

	// Each event delivered twice, all four deliveries racing.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		for _, ev := range events {
			wg.Add(1)
			go func(ev domain.PaymentEvent) {
				defer wg.Done()
				if _, err := svc.SettleFunding(context.Background(), ev); err != nil {
					t.Errorf("settlement failed: %v", err)
				}
			}(ev)
		}
	}
	wg.Wait()

	final, err := repo.FindProfileByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.WalletBalance != 150000 {
		t.Fatalf("expected final balance 150000, got %d", final.WalletBalance)
	}
	if len(producer.events) != 2 {
		t.Fatalf("expected exactly two credit events, got %d", len(producer.events))
	}
}

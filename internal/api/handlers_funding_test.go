package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/deepmindfx/izyconnect/internal/app"
	"github.com/deepmindfx/izyconnect/internal/domain"
	"github.com/deepmindfx/izyconnect/pkg/paystackclient"
)

// fundingRepoStub reuses the webhook stub; the funding handlers exercise the
// same repository surface plus admin settings.
type fundingRepoStub struct {
	*webhookRepoStub
	settings domain.Settings
}

func (s *fundingRepoStub) GetSettings(ctx context.Context) (domain.Settings, error) {
	return s.settings, nil
}

func authedRequest(method, target string, body []byte, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), userIDKey, userID)
	return req.WithContext(ctx)
}

func newFundingFixture(t *testing.T, gatewayURL string, settings domain.Settings, timeout time.Duration) (*fundingRepoStub, *WalletHandlers) {
	t.Helper()
	repo := &fundingRepoStub{webhookRepoStub: newWebhookRepoStub(), settings: settings}
	service := app.NewService(repo, paystackclient.NewClient(gatewayURL), nil, nil, "wallet.events", "", "", timeout)
	return repo, NewWalletHandlers(service)
}

func TestInitiateDepositHandler(t *testing.T) {
	var gotInit struct {
		Email    string          `json:"email"`
		Amount   int64           `json:"amount"`
		Metadata json.RawMessage `json:"metadata"`
	}
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/initialize" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotInit); err != nil {
			t.Errorf("bad initialize body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":true,"data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"PS-1"}}`))
	}))
	defer gateway.Close()

	settings := domain.Settings{
		ActiveGateway:     domain.GatewayPaystack,
		PaystackSecretKey: "sk_test_x",
		FundingMinDeposit: 10000,
	}
	repo, handlers := newFundingFixture(t, gateway.URL, settings, 0)
	user := repo.addProfile("ada@example.com")

	body := []byte(`{"amount":1500}`)
	rec := httptest.NewRecorder()
	handlers.InitiateDepositHandler(rec, authedRequest(http.MethodPost, "/api/v1/wallet/fund/initiate", body, user.ID))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotInit.Email != user.Email {
		t.Fatalf("checkout must use the profile email, got %q", gotInit.Email)
	}
	if gotInit.Amount != 150000 {
		t.Fatalf("expected 150000 kobo sent to the gateway, got %d", gotInit.Amount)
	}
	if !strings.Contains(string(gotInit.Metadata), user.ID.String()) {
		t.Fatalf("checkout metadata must carry the user id, got %s", gotInit.Metadata)
	}

	var resp domain.InitiateDepositResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.AuthorizationURL == "" || resp.Reference == "" {
		t.Fatalf("response must carry checkout handoff details, got %+v", resp)
	}
}

func TestInitiateDepositHandlerGatewayNotConfigured(t *testing.T) {
	repo, handlers := newFundingFixture(t, "http://127.0.0.1:0", domain.Settings{ActiveGateway: domain.GatewayPaystack}, 0)
	user := repo.addProfile("ada@example.com")

	rec := httptest.NewRecorder()
	handlers.InitiateDepositHandler(rec, authedRequest(http.MethodPost, "/api/v1/wallet/fund/initiate", []byte(`{"amount":1500}`), user.ID))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without gateway keys, got %d", rec.Code)
	}
}

func TestInitiateDepositHandlerRejectsOutOfRangeAmount(t *testing.T) {
	settings := domain.Settings{
		ActiveGateway:     domain.GatewayPaystack,
		PaystackSecretKey: "sk_test_x",
		FundingMinDeposit: 100000, // 1000 naira minimum
	}
	repo, handlers := newFundingFixture(t, "http://127.0.0.1:0", settings, 0)
	user := repo.addProfile("ada@example.com")

	rec := httptest.NewRecorder()
	handlers.InitiateDepositHandler(rec, authedRequest(http.MethodPost, "/api/v1/wallet/fund/initiate", []byte(`{"amount":500}`), user.ID))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 below the minimum deposit, got %d", rec.Code)
	}
}

// A configured funding charge is quoted to the caller but never added to the
// gateway checkout total, so the credited balance always equals the quoted
// deposit.
func TestInitiateDepositHandlerChargeNotAddedToCheckout(t *testing.T) {
	var gotInit struct {
		Amount int64 `json:"amount"`
	}
	var userID string
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/transaction/initialize" {
			if err := json.NewDecoder(r.Body).Decode(&gotInit); err != nil {
				t.Errorf("bad initialize body: %v", err)
			}
			w.Write([]byte(`{"status":true,"data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"PS-900"}}`))
			return
		}
		w.Write([]byte(`{"status":true,"data":{"status":"success","reference":"PS-900","amount":150000,"currency":"NGN","customer":{"email":"ada@example.com"},"metadata":{"user_id":"` + userID + `"}}}`))
	}))
	defer gateway.Close()

	settings := domain.Settings{
		ActiveGateway:        domain.GatewayPaystack,
		PaystackSecretKey:    "sk_test_x",
		FundingMinDeposit:    10000,
		FundingChargeEnabled: true,
		FundingChargeType:    "fixed",
		FundingChargeValue:   100, // 100 naira
	}
	repo, handlers := newFundingFixture(t, gateway.URL, settings, 0)
	user := repo.addProfile("ada@example.com")
	userID = user.ID.String()

	rec := httptest.NewRecorder()
	handlers.InitiateDepositHandler(rec, authedRequest(http.MethodPost, "/api/v1/wallet/fund/initiate", []byte(`{"amount":1500,"reference":"PS-900"}`), user.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotInit.Amount != 150000 {
		t.Fatalf("gateway must be charged the deposit only, got %d kobo", gotInit.Amount)
	}

	var quote domain.InitiateDepositResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &quote); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if quote.Amount != 1500.00 || quote.Charge != 100.00 {
		t.Fatalf("expected quote of 1500.00 with a 100.00 charge, got %+v", quote)
	}

	rec = httptest.NewRecorder()
	handlers.VerifyDepositHandler(rec, authedRequest(http.MethodPost, "/api/v1/wallet/fund/verify", []byte(`{"reference":"PS-900"}`), user.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("verification failed: %d: %s", rec.Code, rec.Body.String())
	}
	final, _ := repo.FindProfileByID(context.Background(), user.ID)
	if domain.NairaFromKobo(final.WalletBalance) != quote.Amount {
		t.Fatalf("credited balance %d kobo must equal the quoted deposit of %.2f naira", final.WalletBalance, quote.Amount)
	}
}

func TestInitiateDepositHandlerHonorsActiveGateway(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":true,"data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"PS-1"}}`))
	}))
	defer gateway.Close()

	tests := []struct {
		name          string
		activeGateway string
		wantCode      int
	}{
		{"flutterwave only", domain.GatewayFlutterwave, http.StatusServiceUnavailable},
		{"unset", "", http.StatusServiceUnavailable},
		{"paystack", domain.GatewayPaystack, http.StatusOK},
		{"both", domain.GatewayBoth, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			settings := domain.Settings{
				ActiveGateway:     tc.activeGateway,
				PaystackSecretKey: "sk_test_x",
			}
			repo, handlers := newFundingFixture(t, gateway.URL, settings, 0)
			user := repo.addProfile("ada@example.com")

			rec := httptest.NewRecorder()
			handlers.InitiateDepositHandler(rec, authedRequest(http.MethodPost, "/api/v1/wallet/fund/initiate", []byte(`{"amount":1500}`), user.ID))
			if rec.Code != tc.wantCode {
				t.Fatalf("active_payment_gateway=%q: expected %d, got %d: %s", tc.activeGateway, tc.wantCode, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestVerifyDepositHandlerSettlesSuccessfulPayment(t *testing.T) {
	repoHolder := &struct{ userID string }{}
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/transaction/verify/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":true,"data":{"status":"success","reference":"PS-700","amount":150000,"currency":"NGN","customer":{"email":"ada@example.com"},"metadata":{"user_id":"` + repoHolder.userID + `"}}}`))
	}))
	defer gateway.Close()

	settings := domain.Settings{PaystackSecretKey: "sk_test_x"}
	repo, handlers := newFundingFixture(t, gateway.URL, settings, 0)
	user := repo.addProfile("ada@example.com")
	repoHolder.userID = user.ID.String()

	rec := httptest.NewRecorder()
	handlers.VerifyDepositHandler(rec, authedRequest(http.MethodPost, "/api/v1/wallet/fund/verify", []byte(`{"reference":"PS-700"}`), user.ID))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success    bool    `json:"success"`
		NewBalance float64 `json:"new_balance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if !resp.Success || resp.NewBalance != 1500.00 {
		t.Fatalf("expected credited balance of 1500.00, got %+v", resp)
	}

	// A second verification is an idempotent replay.
	rec = httptest.NewRecorder()
	handlers.VerifyDepositHandler(rec, authedRequest(http.MethodPost, "/api/v1/wallet/fund/verify", []byte(`{"reference":"PS-700"}`), user.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("replay verification must return 200, got %d", rec.Code)
	}
	final, _ := repo.FindProfileByID(context.Background(), user.ID)
	if final.WalletBalance != 150000 {
		t.Fatalf("replay must not double-credit, balance is %d", final.WalletBalance)
	}
}

func TestVerifyDepositHandlerPendingOnSlowGateway(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"status":true,"data":{"status":"success"}}`))
	}))
	defer gateway.Close()

	settings := domain.Settings{PaystackSecretKey: "sk_test_x"}
	repo, handlers := newFundingFixture(t, gateway.URL, settings, 50*time.Millisecond)
	user := repo.addProfile("ada@example.com")

	rec := httptest.NewRecorder()
	handlers.VerifyDepositHandler(rec, authedRequest(http.MethodPost, "/api/v1/wallet/fund/verify", []byte(`{"reference":"PS-701"}`), user.ID))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 when verification times out, got %d: %s", rec.Code, rec.Body.String())
	}
	final, _ := repo.FindProfileByID(context.Background(), user.ID)
	if final.WalletBalance != 0 {
		t.Fatalf("pending verification must not credit, balance is %d", final.WalletBalance)
	}
}

func TestVerifyDepositHandlerNonSuccessfulPayment(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"data":{"status":"abandoned","reference":"PS-702","amount":150000}}`))
	}))
	defer gateway.Close()

	settings := domain.Settings{PaystackSecretKey: "sk_test_x"}
	repo, handlers := newFundingFixture(t, gateway.URL, settings, 0)
	user := repo.addProfile("ada@example.com")

	rec := httptest.NewRecorder()
	handlers.VerifyDepositHandler(rec, authedRequest(http.MethodPost, "/api/v1/wallet/fund/verify", []byte(`{"reference":"PS-702"}`), user.ID))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Status != "not_successful" {
		t.Fatalf("expected not_successful status, got %q", resp.Status)
	}
	final, _ := repo.FindProfileByID(context.Background(), user.ID)
	if final.WalletBalance != 0 {
		t.Fatalf("abandoned payment must not credit, balance is %d", final.WalletBalance)
	}
}

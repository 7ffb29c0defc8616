package store

import (
	"testing"

	"github.com/deepmindfx/izyconnect/internal/domain"
)

func TestSettingsFromRaw(t *testing.T) {
	raw := map[string]string{
		domain.SettingActiveGateway:         "paystack",
		domain.SettingPaystackSecretKey:     "sk_live_abc",
		domain.SettingFundingChargeEnabled:  "true",
		domain.SettingFundingChargeType:     "fixed",
		domain.SettingFundingChargeValue:    "50",
		domain.SettingFundingMinDeposit:     "500",
		domain.SettingTransferEnabled:       "true",
		domain.SettingTransferMinAmount:     "100",
		domain.SettingTransferMaxAmount:     "50000",
		domain.SettingReferralEnabled:       "true",
		domain.SettingReferralRewardPercent: "7.5",
	}

	s := settingsFromRaw(raw)

	if s.ActiveGateway != domain.GatewayPaystack {
		t.Errorf("unexpected active gateway %q", s.ActiveGateway)
	}
	if s.PaystackSecretKey != "sk_live_abc" {
		t.Errorf("unexpected secret key %q", s.PaystackSecretKey)
	}
	if !s.FundingChargeEnabled || s.FundingChargeType != domain.ChargeTypeFixed || s.FundingChargeValue != 50 {
		t.Errorf("funding charge parsed wrong: %+v", s)
	}
	// Monetary thresholds are stored in naira and held in kobo.
	if s.FundingMinDeposit != 50000 {
		t.Errorf("expected min deposit 50000 kobo, got %d", s.FundingMinDeposit)
	}
	if s.TransferMinAmount != 10000 || s.TransferMaxAmount != 5000000 {
		t.Errorf("transfer bounds parsed wrong: min=%d max=%d", s.TransferMinAmount, s.TransferMaxAmount)
	}
	if !s.ReferralEnabled || s.ReferralRewardPercent != 7.5 {
		t.Errorf("referral settings parsed wrong: %+v", s)
	}
}

// Naira values with kobo fractions must round, not truncate: float64("100.35")
// times 100 is 10034.999..., which int64 conversion alone would clip to 10034.
func TestSettingsFromRawRoundsKoboFractions(t *testing.T) {
	tests := []struct {
		value string
		want  int64
	}{
		{"100.35", 10035},
		{"0.01", 1},
		{"999.99", 99999},
		{"100", 10000},
	}
	for _, tc := range tests {
		s := settingsFromRaw(map[string]string{domain.SettingFundingMinDeposit: tc.value})
		if s.FundingMinDeposit != tc.want {
			t.Errorf("min deposit %q: expected %d kobo, got %d", tc.value, tc.want, s.FundingMinDeposit)
		}
	}
}

func TestSettingsFromRawDefaults(t *testing.T) {
	s := settingsFromRaw(map[string]string{})

	if s.ActiveGateway != domain.GatewayFlutterwave {
		t.Errorf("unexpected default gateway %q", s.ActiveGateway)
	}
	if s.FundingChargeEnabled || s.TransferEnabled || s.ReferralEnabled {
		t.Error("feature toggles must default to off")
	}
	if s.FundingMinDeposit != 10000 {
		t.Errorf("expected default min deposit 10000 kobo, got %d", s.FundingMinDeposit)
	}
	if s.TransferChargeType != domain.ChargeTypePercentage || s.TransferChargeValue != 1 {
		t.Errorf("unexpected default transfer charge: %+v", s)
	}
}

func TestSettingsFromRawIgnoresMalformedNumbers(t *testing.T) {
	raw := map[string]string{
		domain.SettingFundingMinDeposit:   "not-a-number",
		domain.SettingTransferChargeValue: "",
	}
	s := settingsFromRaw(raw)
	if s.FundingMinDeposit != 10000 {
		t.Errorf("malformed value must keep the default, got %d", s.FundingMinDeposit)
	}
	if s.TransferChargeValue != 1 {
		t.Errorf("empty value must keep the default, got %v", s.TransferChargeValue)
	}
}

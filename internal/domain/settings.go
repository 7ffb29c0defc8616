/**
 * @description
 * This file defines the admin-configured settings model. Settings live in the
 * `admin_settings` key/value table and are loaded as an immutable snapshot once
 * per operation, then passed explicitly, so settlement and transfer logic stay a
 * function of (input, balance, settings) with no ambient global state.
 */

package domain

import "math"

// Admin settings keys.
const (
	SettingActiveGateway         = "active_payment_gateway"
	SettingPaystackPublicKey     = "paystack_public_key"
	SettingPaystackSecretKey     = "paystack_secret_key"
	SettingFlutterwavePublicKey  = "flutterwave_public_key"
	SettingFlutterwaveSecretKey  = "flutterwave_secret_key"
	SettingFundingChargeEnabled  = "funding_charge_enabled"
	SettingFundingChargeType     = "funding_charge_type"
	SettingFundingChargeValue    = "funding_charge_value"
	SettingFundingMinDeposit     = "funding_charge_min_deposit"
	SettingFundingMaxDeposit     = "funding_charge_max_deposit"
	SettingTransferEnabled       = "transfer_enabled"
	SettingTransferMinAmount     = "transfer_min_amount"
	SettingTransferMaxAmount     = "transfer_max_amount"
	SettingTransferChargeEnabled = "transfer_charge_enabled"
	SettingTransferChargeType    = "transfer_charge_type"
	SettingTransferChargeValue   = "transfer_charge_value"
	SettingReferralEnabled       = "referral_enabled"
	SettingReferralRewardPercent = "referral_reward_percentage"
	SettingReferralMinPurchase   = "referral_minimum_purchase"
	SettingReferralMinPayout     = "referral_min_payout"
)

// Charge schedule types.
const (
	ChargeTypePercentage = "percentage"
	ChargeTypeFixed      = "fixed"
)

// Settings is a point-in-time snapshot of the admin configuration. Monetary
// thresholds are kobo; percentages are plain percent values (10 = 10%).
type Settings struct {
	ActiveGateway string

	PaystackPublicKey    string
	PaystackSecretKey    string
	FlutterwavePublicKey string
	FlutterwaveSecretKey string

	FundingChargeEnabled bool
	FundingChargeType    string
	FundingChargeValue   float64 // percent, or naira when fixed
	FundingMinDeposit    int64
	FundingMaxDeposit    int64 // 0 = no cap

	TransferEnabled       bool
	TransferMinAmount     int64
	TransferMaxAmount     int64
	TransferChargeEnabled bool
	TransferChargeType    string
	TransferChargeValue   float64

	ReferralEnabled       bool
	ReferralRewardPercent float64
	ReferralMinPurchase   int64
	ReferralMinPayout     int64
}

// FundingCharge computes the funding charge in kobo for a deposit amount.
func (s Settings) FundingCharge(amount int64) int64 {
	if !s.FundingChargeEnabled {
		return 0
	}
	return chargeFor(amount, s.FundingChargeType, s.FundingChargeValue)
}

// TransferCharge computes the transfer charge in kobo for a transfer amount.
func (s Settings) TransferCharge(amount int64) int64 {
	if !s.TransferChargeEnabled {
		return 0
	}
	return chargeFor(amount, s.TransferChargeType, s.TransferChargeValue)
}

func chargeFor(amount int64, chargeType string, value float64) int64 {
	if value <= 0 {
		return 0
	}
	if chargeType == ChargeTypeFixed {
		// Fixed charges are configured in naira.
		return int64(math.Round(value * 100))
	}
	return int64(math.Round(float64(amount) * value / 100.0))
}

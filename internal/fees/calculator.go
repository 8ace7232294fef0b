// Package fees computes the platform fee, buyer total and net platform revenue
// for a purchase. All amounts are integer cents; rates are exact decimals so a
// breakdown can be reproduced later from the rate snapshot stored on a record.
package fees

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/systems-marketplace-payments/internal/config"
)

// MaxAmountCents is the largest single charge the processor accepts
const MaxAmountCents int64 = 99_999_999

var hundred = decimal.NewFromInt(100)

// ErrAmountOutOfRange is returned for amounts that cannot be charged
var ErrAmountOutOfRange = errors.New("amount exceeds the maximum chargeable amount")

// Rates is the pricing configuration in effect for new purchases
type Rates struct {
	PlatformFeePercent   decimal.Decimal
	ProcessingFeePercent decimal.Decimal
	ProcessingFixedCents int64
}

// RatesFromConfig parses the decimal strings held in configuration
func RatesFromConfig(cfg *config.FeesConfig) (Rates, error) {
	platform, err := decimal.NewFromString(cfg.PlatformFeePercent)
	if err != nil {
		return Rates{}, fmt.Errorf("invalid platform fee percent %q: %w", cfg.PlatformFeePercent, err)
	}
	processing, err := decimal.NewFromString(cfg.ProcessingFeePercent)
	if err != nil {
		return Rates{}, fmt.Errorf("invalid processing fee percent %q: %w", cfg.ProcessingFeePercent, err)
	}
	return Rates{
		PlatformFeePercent:   platform,
		ProcessingFeePercent: processing,
		ProcessingFixedCents: cfg.ProcessingFeeFixedCents,
	}, nil
}

// Breakdown is the fee split of one purchase
type Breakdown struct {
	PriceCents         int64
	PlatformFeeCents   int64
	TotalCents         int64
	CreatorPayoutCents int64
	FeePercent         decimal.Decimal
}

// Calculator is stateless apart from the rates it was built with
type Calculator struct {
	rates Rates
}

func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Quote prices a purchase at the current platform rate
func (c *Calculator) Quote(priceCents int64) Breakdown {
	return QuoteAt(priceCents, c.rates.PlatformFeePercent)
}

// QuoteAt prices a purchase at an explicit rate, typically a stored snapshot
func QuoteAt(priceCents int64, rate decimal.Decimal) Breakdown {
	fee := PlatformFee(priceCents, rate)
	return Breakdown{
		PriceCents:         priceCents,
		PlatformFeeCents:   fee,
		TotalCents:         priceCents + fee,
		CreatorPayoutCents: priceCents,
		FeePercent:         rate,
	}
}

// PlatformFee is round-half-up(priceCents * rate) on the cent value
func PlatformFee(priceCents int64, rate decimal.Decimal) int64 {
	// Round is half away from zero, identical to half-up for non-negative input
	return decimal.NewFromInt(priceCents).Mul(rate).Round(0).IntPart()
}

// ProcessingFee estimates the processor's cost for a charge of totalCents.
// The result is in cents and may be fractional; it never alters what the
// buyer pays or what the creator receives.
func (c *Calculator) ProcessingFee(totalCents int64) decimal.Decimal {
	return decimal.NewFromInt(totalCents).
		Mul(c.rates.ProcessingFeePercent).
		Add(decimal.NewFromInt(c.rates.ProcessingFixedCents))
}

// NetRevenue is what the platform keeps after the processor's cost, in cents
func (c *Calculator) NetRevenue(platformFeeCents, totalCents int64) decimal.Decimal {
	return decimal.NewFromInt(platformFeeCents).Sub(c.ProcessingFee(totalCents))
}

// ToMinorUnits converts a dollar amount to cents, rounding half-up. Amounts
// whose magnitude is above MaxAmountCents return ErrAmountOutOfRange instead
// of wrapping around int64.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	cents := amount.Mul(hundred).Round(0)
	if cents.Abs().GreaterThan(decimal.NewFromInt(MaxAmountCents)) {
		return 0, ErrAmountOutOfRange
	}
	return cents.IntPart(), nil
}

// FromMinorUnits converts cents to a dollar amount
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

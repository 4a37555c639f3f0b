// Package amount implements the settlement arithmetic: commission and royalty
// deduction with the legacy two-stage rounding (ceiling to the nearest cent,
// then flooring to whole units). The ordering of the two roundings is a wire
// compatibility requirement and must not change.
package amount

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/models"
)

// DefaultCommissionPercent applies when an owner carries no override for the
// gateway.
const DefaultCommissionPercent = 8

var oneHundred = decimal.NewFromInt(100)

// CommissionPercent returns the owner's commission for the gateway in whole
// percents (8 means 8%).
func CommissionPercent(owner *models.Owner, gatewayKey string) decimal.Decimal {
	if owner != nil && owner.Percents != nil {
		if p, ok := owner.Percents[gatewayKey]; ok {
			return decimal.NewFromFloat(p)
		}
	}
	return decimal.NewFromInt(DefaultCommissionPercent)
}

// MajorUnits converts a gateway amount in minor units (kopecks) to major units.
func MajorUnits(minor decimal.Decimal) decimal.Decimal {
	return minor.Div(oneHundred)
}

// SubtractCommission removes the commission from sum and rounds the result up
// to the nearest cent. percent is fractional (0.08 for 8%). When the
// commission is included in the price the gross-up formula applies:
// sum - sum*percent/(1+percent); otherwise plainly sum - sum*percent.
// extra is an additional flat deduction applied before rounding.
func SubtractCommission(sum, percent decimal.Decimal, commissionIncluded bool, extra decimal.Decimal) decimal.Decimal {
	var out decimal.Decimal
	if commissionIncluded {
		out = sum.Sub(sum.Mul(percent).Div(decimal.NewFromInt(1).Add(percent)))
	} else {
		out = sum.Sub(sum.Mul(percent))
	}
	return out.Sub(extra).RoundCeil(2)
}

// FinalAmount floors the commission-subtracted amount to whole units and
// subtracts the royalty, but only when the royalty value is a whole number.
// A royalty that does not parse or is fractional is ignored.
func FinalAmount(subtracted decimal.Decimal, royalty string) decimal.Decimal {
	out := subtracted.Floor()
	r, err := strconv.ParseFloat(royalty, 64)
	if err != nil {
		return out
	}
	d := decimal.NewFromFloat(r)
	if !d.IsInteger() {
		return out
	}
	return out.Sub(d)
}

// Package voucher computes checkout discounts from discount codes.
package voucher

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Discount validates v against the subtotal and the current date and returns
// the amount to take off. The result never exceeds the subtotal.
func Discount(v domain.Voucher, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if dateOf(now).After(dateOf(v.ExpiryDate)) {
		return decimal.Zero, fmt.Errorf("%w: %s expired on %s", domain.ErrVoucherExpired, v.Code, v.ExpiryDate.Format(time.DateOnly))
	}

	if subtotal.LessThan(v.MinSpend) {
		return decimal.Zero, fmt.Errorf("%w: minimum spend of %s required for this voucher", domain.ErrMinimumSpendNotMet, v.MinSpend.StringFixed(2))
	}

	var discount decimal.Decimal
	switch v.Type {
	case domain.VoucherTypePercent:
		// Round is half away from zero, which is half-up for non-negative amounts.
		discount = subtotal.Mul(v.Value).Div(hundred).Round(2)
	case domain.VoucherTypeFixed:
		discount = v.Value
	default:
		return decimal.Zero, fmt.Errorf("voucher %s has unknown type %q", v.Code, v.Type)
	}

	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	return discount, nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

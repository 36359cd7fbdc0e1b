package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type VoucherType string

const (
	VoucherTypePercent VoucherType = "PERCENT"
	VoucherTypeFixed   VoucherType = "FIXED"
)

type Voucher struct {
	ID         int64           `json:"id"`
	Code       string          `json:"code"`
	Type       VoucherType     `json:"type"`
	Value      decimal.Decimal `json:"value"`
	MinSpend   decimal.Decimal `json:"min_spend"`
	ExpiryDate time.Time       `json:"expiry_date"`
}

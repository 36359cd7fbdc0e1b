package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrBadRequest         = errors.New("bad request")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrVoucherExpired     = errors.New("voucher has expired")
	ErrMinimumSpendNotMet = errors.New("minimum spend not met")
)

// InsufficientStockError is a BadRequest that carries the ledger figures at the time of the failure.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for '%s'. requested: %d, available: %d", e.ProductName, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock || target == ErrBadRequest
}

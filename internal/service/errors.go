package service

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrSelfPurchase       = errors.New("cannot buy own product")
	ErrNotFound           = errors.New("cart line not found")
	ErrStorage            = errors.New("storage failure")
)

// IsProductNotAvailable reports the cases shown to the buyer as "not available".
func IsProductNotAvailable(err error) bool {
	return errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrProductUnavailable)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrPersistence          = errors.New("persistence error")
	ErrImport               = errors.New("import error")
)

// Kind classifies an error returned by the ledger, the order engine or the
// snapshot codec.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindInsufficientFunds
	KindInsufficientHoldings
	KindImport
	KindPersistence
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindValidation:
		return "ValidationError"
	case KindInsufficientFunds:
		return "InsufficientFunds"
	case KindInsufficientHoldings:
		return "InsufficientHoldings"
	case KindImport:
		return "ImportError"
	case KindPersistence:
		return "PersistenceError"
	}
	return "Unknown"
}

// KindOf reports which taxonomy bucket err belongs to.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrInsufficientHoldings):
		return KindInsufficientHoldings
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	case errors.Is(err, ErrImport):
		return KindImport
	}
	return KindUnknown
}

func persistence(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

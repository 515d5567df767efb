package domain

import (
	"errors"
	"fmt"
)

// ProgramError is a declared swap failure with a stable numeric code.
type ProgramError struct {
	Code uint32
	Name string
	Msg  string
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

// Declared error kinds. Codes start at the framework's user error offset.
var (
	ErrSwapTokensCannotMatch = &ProgramError{
		Code: 300,
		Name: "SwapTokensCannotMatch",
		Msg:  "The tokens being swapped must have different mints",
	}
	ErrSlippageExceeded = &ProgramError{
		Code: 301,
		Name: "SlippageExceeded",
		Msg:  "Slippage tolerance exceeded",
	}
	ErrZeroSwap = &ProgramError{
		Code: 302,
		Name: "ZeroSwap",
		Msg:  "No tokens received when swapping",
	}
)

// ErrArithmetic is the trap raised by checked arithmetic: overflow,
// underflow or division by zero. It is not a declared error kind; it aborts
// the swap unconditionally.
var ErrArithmetic = errors.New("arithmetic trap")

// ErrEmptyWallet is returned when a wallet account is the placeholder
// associated token account of the default pubkey.
var ErrEmptyWallet = errors.New("wallet must not be the empty token account")

// ErrInvalidExchangeRate is returned by ExchangeRate.Validate.
var ErrInvalidExchangeRate = errors.New("invalid exchange rate")

// ProgramErrorCode extracts the declared code from err, if any.
func ProgramErrorCode(err error) (uint32, bool) {
	var pe *ProgramError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}

// Trap wraps ErrArithmetic with the failing operation.
func Trap(op string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrArithmetic, fmt.Sprintf(op, args...))
}

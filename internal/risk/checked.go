package risk

import (
	"lukechampine.com/uint128"

	"serum-swap/internal/domain"
)

var ten = uint128.From64(10)

// checked runs fn and converts the library's overflow, underflow and
// divide-by-zero panics into domain.ErrArithmetic.
func checked(op string, fn func() uint128.Uint128) (v uint128.Uint128, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.Trap("%s: %v", op, r)
		}
	}()
	return fn(), nil
}

// pow10 returns 10^exp, trapping once the result no longer fits 128 bits.
func pow10(exp uint8) (uint128.Uint128, error) {
	return checked("pow10", func() uint128.Uint128 {
		v := uint128.From64(1)
		for i := uint8(0); i < exp; i++ {
			v = v.Mul(ten)
		}
		return v
	})
}

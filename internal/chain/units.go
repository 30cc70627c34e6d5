package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
)

// TokenDecimals is the fixed-point precision of outcome tokens.
const TokenDecimals = 18

// MaxApproval returns 2^256-1, the allowance granted so later redemptions of
// the same token skip the approve step.
func MaxApproval() *big.Int {
	return new(big.Int).Set(math.MaxBig256)
}

// FormatUnits renders a native integer amount as a decimal string.
func FormatUnits(v *big.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}

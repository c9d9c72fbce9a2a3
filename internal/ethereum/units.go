package ethereum

import (
	"math"
	"math/big"
)

// Conversions between smallest units and display units. Exact integer
// amounts stay in big.Int; display values are float64 like the rest of
// the reporting surface.

func ToWei(eth float64) *big.Int {
	f := new(big.Float).Mul(new(big.Float).SetFloat64(eth), new(big.Float).SetFloat64(1e18))
	i, _ := f.Int(nil)
	return i
}

func FromWei(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), new(big.Float).SetFloat64(1e18)).Float64()
	return f
}

// ToTokenUnits converts a display token amount into raw units for a token
// with the given decimals.
func ToTokenUnits(amount float64, decimals int) *big.Int {
	f := new(big.Float).Mul(
		new(big.Float).SetFloat64(amount),
		new(big.Float).SetFloat64(math.Pow10(decimals)),
	)
	i, _ := f.Int(nil)
	return i
}

// FromTokenUnits converts raw token units into a display amount.
func FromTokenUnits(units *big.Int, decimals int) float64 {
	if units == nil {
		return 0
	}
	divisor := math.Pow10(decimals)
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(units), new(big.Float).SetFloat64(divisor)).Float64()
	return f
}

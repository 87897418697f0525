// Package wei converts decimal quantities into the integer and string forms the
// exchange accepts for order prices and sizes.
package wei

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// PriceWeiDecimals is the maximum price precision for spot instruments.
	PriceWeiDecimals uint8 = 8
	PriceSigFigs     uint8 = 5
)

var ErrEncoding = errors.New("encoding error")

// Spec fixes how a quantity is scaled, aligned and clamped before rendering.
// SigFigs of zero disables the significant-figure clamp.
type Spec struct {
	WeiDecimals  uint8
	StepDecimals uint8
	SigFigs      uint8
}

// PriceSpec aligns to the instrument tick and clamps to five significant figures.
func PriceSpec(szDecimals uint8) Spec {
	return Spec{WeiDecimals: PriceWeiDecimals, StepDecimals: szDecimals, SigFigs: PriceSigFigs}
}

// SizeSpec truncates to the instrument lot size.
func SizeSpec(szDecimals uint8) Spec {
	return Spec{WeiDecimals: szDecimals}
}

func (s Spec) Format(value float64) (string, error) {
	amount, err := ToWei(value, s.WeiDecimals)
	if err != nil {
		return "", err
	}
	if s.StepDecimals > 0 {
		amount = AlignToStep(amount, s.StepDecimals)
	}
	if s.SigFigs > 0 {
		amount, err = ClampSigFigs(amount, s.SigFigs)
		if err != nil {
			return "", err
		}
	}
	return Render(amount, s.WeiDecimals), nil
}

func PriceToOrderString(price float64, szDecimals uint8) (string, error) {
	out, err := PriceSpec(szDecimals).Format(price)
	if err != nil {
		return "", fmt.Errorf("price: %w", err)
	}
	return out, nil
}

func SizeToOrderString(size float64, szDecimals uint8) (string, error) {
	out, err := SizeSpec(szDecimals).Format(size)
	if err != nil {
		return "", fmt.Errorf("size: %w", err)
	}
	return out, nil
}

// ToWei returns floor(value * 10^weiDecimals). The float is read as its
// shortest round-trip decimal, so 0.29 scales to exactly 29 at two decimals.
func ToWei(value float64, weiDecimals uint8) (*big.Int, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("%w: non-finite value %v", ErrEncoding, value)
	}
	if value < 0 {
		return nil, fmt.Errorf("%w: negative value %v", ErrEncoding, value)
	}
	scaled := decimal.NewFromFloat(value).Shift(int32(weiDecimals)).Floor()
	return scaled.BigInt(), nil
}

// AlignToStep zeroes the lowest keepDecimals digits, truncating toward zero.
func AlignToStep(amount *big.Int, keepDecimals uint8) *big.Int {
	pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(keepDecimals)), nil)
	out := new(big.Int).Quo(amount, pow)
	return out.Mul(out, pow)
}

// ClampSigFigs keeps the leading sigFigs digits of amount and zero-fills the
// rest. It works on the digit string, so negative amounts are rejected.
func ClampSigFigs(amount *big.Int, sigFigs uint8) (*big.Int, error) {
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: significant-figure clamp on negative amount %s", ErrEncoding, amount)
	}
	if sigFigs == 0 {
		return nil, fmt.Errorf("%w: significant figures must be > 0", ErrEncoding)
	}
	digits := amount.String()
	if len(digits) <= int(sigFigs) {
		return new(big.Int).Set(amount), nil
	}
	clamped := digits[:sigFigs] + strings.Repeat("0", len(digits)-int(sigFigs))
	out, ok := new(big.Int).SetString(clamped, 10)
	if !ok {
		return nil, fmt.Errorf("%w: clamp produced %q", ErrEncoding, clamped)
	}
	return out, nil
}

// Render prints amount as a decimal with weiDecimals fractional digits, then
// drops trailing fractional zeros and a bare decimal point.
func Render(amount *big.Int, weiDecimals uint8) string {
	digits := amount.String()
	if weiDecimals == 0 {
		return digits
	}
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	dec := int(weiDecimals)
	var out string
	if len(digits) > dec {
		dp := len(digits) - dec
		out = digits[:dp] + "." + digits[dp:]
	} else {
		out = "0." + strings.Repeat("0", dec-len(digits)) + digits
	}
	out = strings.TrimRight(out, "0")
	out = strings.TrimSuffix(out, ".")
	return sign + out
}

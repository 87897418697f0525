package exchange

import (
	"errors"
	"fmt"

	"hl-action-kit/internal/hl/wei"
)

// LimitOrderWire renders price and size with the instrument's szDecimals:
// the price is aligned to the tick and clamped to five significant figures,
// the size is truncated to the lot size.
func LimitOrderWire(asset int, isBuy bool, size, limit float64, szDecimals uint8, reduceOnly bool, tif Tif, cloid string) (OrderWire, error) {
	if tif == "" {
		return OrderWire{}, errors.New("tif is required")
	}
	if cloid != "" && !validCloid(cloid) {
		return OrderWire{}, fmt.Errorf("invalid cloid %q", cloid)
	}
	price, err := wei.PriceToOrderString(limit, szDecimals)
	if err != nil {
		return OrderWire{}, fmt.Errorf("limit price: %w", err)
	}
	sizeWire, err := wei.SizeToOrderString(size, szDecimals)
	if err != nil {
		return OrderWire{}, fmt.Errorf("size: %w", err)
	}
	if sizeWire == "0" {
		return OrderWire{}, fmt.Errorf("size %v rounds to zero at %d decimals", size, szDecimals)
	}
	return OrderWire{
		Asset:      asset,
		IsBuy:      isBuy,
		Price:      price,
		Size:       sizeWire,
		ReduceOnly: reduceOnly,
		OrderType:  OrderTypeWire{Limit: &LimitOrderType{Tif: tif}},
		Cloid:      cloid,
	}, nil
}

// validCloid accepts a 128-bit client order id as 0x-prefixed hex.
func validCloid(cloid string) bool {
	if len(cloid) != 34 || cloid[:2] != "0x" {
		return false
	}
	for i := 2; i < len(cloid); i++ {
		c := cloid[i]
		if !('0' <= c && c <= '9') && !('a' <= c && c <= 'f') && !('A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}

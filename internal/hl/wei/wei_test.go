package wei

import (
	"errors"
	"math"
	"math/big"
	"math/rand"
	"strconv"
	"strings"
	"testing"
)

func TestPriceToOrderString(t *testing.T) {
	cases := []struct {
		price      float64
		szDecimals uint8
		out        string
	}{
		{price: 1234.5678, szDecimals: 2, out: "1234.5"},
		{price: 0.00012345678, szDecimals: 0, out: "0.00012345"},
		{price: 100, szDecimals: 0, out: "100"},
		{price: 99999.99, szDecimals: 2, out: "99999"},
		{price: 123456.78, szDecimals: 2, out: "123450"},
		{price: 1.5, szDecimals: 3, out: "1.5"},
		{price: 0, szDecimals: 2, out: "0"},
		{price: 0.000000019, szDecimals: 0, out: "0.00000001"},
		{price: 0.000000019, szDecimals: 1, out: "0"},
	}
	for _, tc := range cases {
		got, err := PriceToOrderString(tc.price, tc.szDecimals)
		if err != nil {
			t.Fatalf("unexpected error for %v: %v", tc.price, err)
		}
		if got != tc.out {
			t.Fatalf("price %v sz %d: expected %s, got %s", tc.price, tc.szDecimals, tc.out, got)
		}
	}
}

func TestSizeToOrderString(t *testing.T) {
	cases := []struct {
		size       float64
		szDecimals uint8
		out        string
	}{
		{size: 0.123456, szDecimals: 4, out: "0.1234"},
		{size: 0.129, szDecimals: 2, out: "0.12"},
		{size: 0.29, szDecimals: 2, out: "0.29"},
		{size: 12.5, szDecimals: 0, out: "12"},
		{size: 1.10, szDecimals: 3, out: "1.1"},
		{size: 0.0001, szDecimals: 2, out: "0"},
		{size: 5, szDecimals: 2, out: "5"},
	}
	for _, tc := range cases {
		got, err := SizeToOrderString(tc.size, tc.szDecimals)
		if err != nil {
			t.Fatalf("unexpected error for %v: %v", tc.size, err)
		}
		if got != tc.out {
			t.Fatalf("size %v sz %d: expected %s, got %s", tc.size, tc.szDecimals, tc.out, got)
		}
	}
}

func TestToWeiRejectsInvalidInput(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -0.5} {
		if _, err := ToWei(v, 8); !errors.Is(err, ErrEncoding) {
			t.Fatalf("expected ErrEncoding for %v, got %v", v, err)
		}
	}
	if _, err := PriceToOrderString(-1, 2); !errors.Is(err, ErrEncoding) {
		t.Fatalf("expected ErrEncoding from price pipeline, got %v", err)
	}
	if _, err := SizeToOrderString(math.NaN(), 2); !errors.Is(err, ErrEncoding) {
		t.Fatalf("expected ErrEncoding from size pipeline, got %v", err)
	}
	got, err := ToWei(math.Copysign(0, -1), 4)
	if err != nil || got.Sign() != 0 {
		t.Fatalf("expected negative zero to encode as 0, got %v %v", got, err)
	}
}

func TestAlignToStep(t *testing.T) {
	cases := []struct {
		in   int64
		keep uint8
		out  int64
	}{
		{in: 123456789, keep: 2, out: 123456700},
		{in: 123456789, keep: 0, out: 123456789},
		{in: 99, keep: 3, out: 0},
		{in: 1000, keep: 3, out: 1000},
	}
	for _, tc := range cases {
		got := AlignToStep(big.NewInt(tc.in), tc.keep)
		if got.Int64() != tc.out {
			t.Fatalf("align %d keep %d: expected %d, got %d", tc.in, tc.keep, tc.out, got.Int64())
		}
	}
}

func TestClampSigFigs(t *testing.T) {
	got, err := ClampSigFigs(big.NewInt(123456789), 5)
	if err != nil {
		t.Fatalf("clamp: %v", err)
	}
	if got.Int64() != 123450000 {
		t.Fatalf("expected 123450000, got %s", got)
	}
	short := big.NewInt(123)
	got, err = ClampSigFigs(short, 5)
	if err != nil {
		t.Fatalf("clamp: %v", err)
	}
	if got.Cmp(short) != 0 {
		t.Fatalf("expected no-op for short value, got %s", got)
	}
	if _, err := ClampSigFigs(big.NewInt(-123456), 5); !errors.Is(err, ErrEncoding) {
		t.Fatalf("expected ErrEncoding for negative amount, got %v", err)
	}
	if _, err := ClampSigFigs(big.NewInt(1), 0); !errors.Is(err, ErrEncoding) {
		t.Fatalf("expected ErrEncoding for zero sig figs, got %v", err)
	}
}

func TestRender(t *testing.T) {
	cases := []struct {
		in       string
		decimals uint8
		out      string
	}{
		{in: "0", decimals: 8, out: "0"},
		{in: "1", decimals: 8, out: "0.00000001"},
		{in: "12345678", decimals: 8, out: "0.12345678"},
		{in: "123450000000", decimals: 8, out: "1234.5"},
		{in: "100000000", decimals: 8, out: "1"},
		{in: "1200", decimals: 2, out: "12"},
		{in: "1200", decimals: 0, out: "1200"},
	}
	for _, tc := range cases {
		amount, _ := new(big.Int).SetString(tc.in, 10)
		if got := Render(amount, tc.decimals); got != tc.out {
			t.Fatalf("render %s/%d: expected %s, got %s", tc.in, tc.decimals, tc.out, got)
		}
	}
}

func TestRenderIntegerUnchanged(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		n := new(big.Int).Rand(rng, new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil))
		if got := Render(n, 0); got != n.String() {
			t.Fatalf("expected %s, got %s", n, got)
		}
	}
}

func TestRenderRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		d := uint8(rng.Intn(9))
		x := rng.Float64() * math.Pow10(rng.Intn(7))
		amount, err := ToWei(x, d)
		if err != nil {
			t.Fatalf("to wei %v: %v", x, err)
		}
		out := Render(amount, d)
		assertMinimal(t, out)
		parsed, err := strconv.ParseFloat(out, 64)
		if err != nil {
			t.Fatalf("parse %q: %v", out, err)
		}
		step := math.Pow10(-int(d))
		slack := 1e-12 * math.Max(1, x)
		if diff := x - parsed; diff < -slack || diff > step+slack {
			t.Fatalf("x=%v d=%d rendered %s, off by %v", x, d, out, diff)
		}
	}
}

func TestRenderExactForRepresentableValues(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 2000; i++ {
		d := uint8(rng.Intn(9))
		k := rng.Int63n(1_000_000_000_000)
		x := float64(k) / math.Pow10(int(d))
		amount, err := ToWei(x, d)
		if err != nil {
			t.Fatalf("to wei %v: %v", x, err)
		}
		if amount.Int64() != k {
			t.Fatalf("x=%v d=%d: expected wei %d, got %s", x, d, k, amount)
		}
	}
}

func TestPriceToOrderStringShape(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		price := rng.Float64() * math.Pow10(rng.Intn(9)-3)
		sz := uint8(rng.Intn(6))
		out, err := PriceToOrderString(price, sz)
		if err != nil {
			t.Fatalf("price %v: %v", price, err)
		}
		assertMinimal(t, out)
		if n := significantDigits(out); n > 5 {
			t.Fatalf("price %v sz %d: %s has %d significant digits", price, sz, out, n)
		}
	}
}

func assertMinimal(t *testing.T, out string) {
	t.Helper()
	if strings.HasSuffix(out, ".") {
		t.Fatalf("dangling decimal point in %q", out)
	}
	if strings.Contains(out, ".") && strings.HasSuffix(out, "0") {
		t.Fatalf("trailing fractional zero in %q", out)
	}
	if len(out) > 1 && out[0] == '0' && out[1] != '.' {
		t.Fatalf("leading zero padding in %q", out)
	}
}

func significantDigits(s string) int {
	digits := strings.TrimLeft(strings.ReplaceAll(s, ".", ""), "0")
	digits = strings.TrimRight(digits, "0")
	return len(digits)
}

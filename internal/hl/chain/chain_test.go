package chain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateAddress(t *testing.T) {
	valid := []string{
		"0x" + strings.Repeat("a", 40),
		"0x" + strings.Repeat("F", 40),
		"0x8Ba1f109551bD432803012645Ac136ddd64DBA72",
	}
	for _, addr := range valid {
		if err := ValidateAddress(addr); err != nil {
			t.Fatalf("expected %q to be valid, got %v", addr, err)
		}
	}
	invalid := []string{
		"",
		"0x",
		"0x" + strings.Repeat("a", 39),
		"0x" + strings.Repeat("a", 41),
		"0x" + strings.Repeat("g", 40),
		"0X" + strings.Repeat("a", 40),
		"1x" + strings.Repeat("a", 40),
		strings.Repeat("a", 42),
		"0x" + strings.Repeat("a", 39) + " ",
	}
	for _, addr := range invalid {
		err := ValidateAddress(addr)
		if err == nil {
			t.Fatalf("expected %q to be rejected", addr)
		}
		if !errors.Is(err, ErrInvalidAddress) {
			t.Fatalf("expected ErrInvalidAddress for %q, got %v", addr, err)
		}
	}
}

func TestNetworkTable(t *testing.T) {
	main := ForFlag(true)
	if main.APIURL != MainnetAPIURL || main.WSURL != MainnetWSURL {
		t.Fatalf("unexpected mainnet urls: %+v", main)
	}
	if main.Source() != "a" || main.HyperliquidChain() != "Mainnet" {
		t.Fatalf("unexpected mainnet tags: %s %s", main.Source(), main.HyperliquidChain())
	}
	if main.SignatureChainIDHex() != "0xa4b1" {
		t.Fatalf("expected 0xa4b1, got %s", main.SignatureChainIDHex())
	}
	test := ForFlag(false)
	if test.APIURL != TestnetAPIURL || test.WSURL != TestnetWSURL {
		t.Fatalf("unexpected testnet urls: %+v", test)
	}
	if test.Source() != "b" || test.HyperliquidChain() != "Testnet" {
		t.Fatalf("unexpected testnet tags: %s %s", test.Source(), test.HyperliquidChain())
	}
	if test.SignatureChainIDHex() != "0x66eee" {
		t.Fatalf("expected 0x66eee, got %s", test.SignatureChainIDHex())
	}
	if main.AgentChainID != 1337 || test.AgentChainID != 1337 {
		t.Fatalf("expected agent chain id 1337")
	}
}

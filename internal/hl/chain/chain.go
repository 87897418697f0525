package chain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	MainnetAPIURL = "https://api.hyperliquid.xyz"
	MainnetWSURL  = "wss://api.hyperliquid.xyz/ws"
	TestnetAPIURL = "https://api.hyperliquid-testnet.xyz"
	TestnetWSURL  = "wss://api.hyperliquid-testnet.xyz/ws"

	// DefaultAgentChainID is the chain id of the phantom "Exchange" domain used
	// for agent signatures.
	DefaultAgentChainID uint64 = 1337

	mainnetSignatureChainID uint64 = 42161
	testnetSignatureChainID uint64 = 421614
)

var ErrInvalidAddress = errors.New("invalid address")

// Network binds a network flag to the ids and endpoints embedded in requests
// and signing domains. It is passed explicitly; nothing in this module reads a
// global network setting.
type Network struct {
	Mainnet          bool
	APIURL           string
	WSURL            string
	SignatureChainID uint64
	AgentChainID     uint64
}

func Mainnet() Network {
	return Network{
		Mainnet:          true,
		APIURL:           MainnetAPIURL,
		WSURL:            MainnetWSURL,
		SignatureChainID: mainnetSignatureChainID,
		AgentChainID:     DefaultAgentChainID,
	}
}

func Testnet() Network {
	return Network{
		Mainnet:          false,
		APIURL:           TestnetAPIURL,
		WSURL:            TestnetWSURL,
		SignatureChainID: testnetSignatureChainID,
		AgentChainID:     DefaultAgentChainID,
	}
}

func ForFlag(isMainnet bool) Network {
	if isMainnet {
		return Mainnet()
	}
	return Testnet()
}

// Source is the one-character tag placed in agent messages.
func (n Network) Source() string {
	if n.Mainnet {
		return "a"
	}
	return "b"
}

func (n Network) HyperliquidChain() string {
	if n.Mainnet {
		return "Mainnet"
	}
	return "Testnet"
}

func (n Network) SignatureChainIDHex() string {
	return "0x" + strconv.FormatUint(n.SignatureChainID, 16)
}

func (n Network) String() string {
	return strings.ToLower(n.HyperliquidChain())
}

// ValidateAddress accepts exactly "0x" followed by 40 hex digits in any case.
func ValidateAddress(address string) error {
	if len(address) != 42 || address[0] != '0' || address[1] != 'x' {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	for i := 2; i < len(address); i++ {
		if !isHex(address[i]) {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
		}
	}
	return nil
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

package exchange

import (
	"strconv"
	"strings"

	"hl-action-kit/internal/hl/chain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

func NewApproveAgentAction(network chain.Network, agent common.Address, agentName string, nonce uint64) ApproveAgentAction {
	return ApproveAgentAction{
		Type:             ActionApproveAgent,
		HyperliquidChain: network.HyperliquidChain(),
		SignatureChainId: network.SignatureChainIDHex(),
		AgentAddress:     strings.ToLower(agent.Hex()),
		AgentName:        agentName,
		Nonce:            nonce,
	}
}

func (a ApproveAgentAction) ActionType() string     { return a.Type }
func (a ApproveAgentAction) SigningChainID() string { return a.SignatureChainId }
func (a ApproveAgentAction) PrimaryType() string {
	return "HyperliquidTransaction:ApproveAgent"
}

func (a ApproveAgentAction) SignTypes() []apitypes.Type {
	return []apitypes.Type{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "agentAddress", Type: "address"},
		{Name: "agentName", Type: "string"},
		{Name: "nonce", Type: "uint64"},
	}
}

func (a ApproveAgentAction) SignMessage() apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"hyperliquidChain": a.HyperliquidChain,
		"agentAddress":     a.AgentAddress,
		"agentName":        a.AgentName,
		"nonce":            strconv.FormatUint(a.Nonce, 10),
	}
}

// NewSpotSendAction transfers amount of token (NAME:0xTOKENID) to destination.
// The send time doubles as the nonce.
func NewSpotSendAction(network chain.Network, destination, token, amount string, time uint64) SpotSendAction {
	return SpotSendAction{
		Type:             ActionSpotSend,
		HyperliquidChain: network.HyperliquidChain(),
		SignatureChainId: network.SignatureChainIDHex(),
		Destination:      strings.ToLower(destination),
		Token:            token,
		Amount:           amount,
		Time:             time,
	}
}

func (a SpotSendAction) ActionType() string     { return a.Type }
func (a SpotSendAction) SigningChainID() string { return a.SignatureChainId }
func (a SpotSendAction) PrimaryType() string    { return "HyperliquidTransaction:SpotSend" }

func (a SpotSendAction) SignTypes() []apitypes.Type {
	return []apitypes.Type{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "destination", Type: "string"},
		{Name: "token", Type: "string"},
		{Name: "amount", Type: "string"},
		{Name: "time", Type: "uint64"},
	}
}

func (a SpotSendAction) SignMessage() apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"hyperliquidChain": a.HyperliquidChain,
		"destination":      a.Destination,
		"token":            a.Token,
		"amount":           a.Amount,
		"time":             strconv.FormatUint(a.Time, 10),
	}
}

func NewUSDClassTransferAction(network chain.Network, amount string, toPerp bool, nonce uint64) USDClassTransferAction {
	return USDClassTransferAction{
		Type:             ActionUSDClassTransfer,
		HyperliquidChain: network.HyperliquidChain(),
		SignatureChainId: network.SignatureChainIDHex(),
		Amount:           amount,
		ToPerp:           toPerp,
		Nonce:            nonce,
	}
}

func (a USDClassTransferAction) ActionType() string     { return a.Type }
func (a USDClassTransferAction) SigningChainID() string { return a.SignatureChainId }
func (a USDClassTransferAction) PrimaryType() string {
	return "HyperliquidTransaction:UsdClassTransfer"
}

func (a USDClassTransferAction) SignTypes() []apitypes.Type {
	return []apitypes.Type{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "amount", Type: "string"},
		{Name: "toPerp", Type: "bool"},
		{Name: "nonce", Type: "uint64"},
	}
}

func (a USDClassTransferAction) SignMessage() apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"hyperliquidChain": a.HyperliquidChain,
		"amount":           a.Amount,
		"toPerp":           a.ToPerp,
		"nonce":            strconv.FormatUint(a.Nonce, 10),
	}
}

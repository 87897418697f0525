package exchange

import (
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	ActionOrder            = "order"
	ActionCancel           = "cancel"
	ActionCancelByCloid    = "cancelByCloid"
	ActionSetReferrer      = "setReferrer"
	ActionSpotDeploy       = "spotDeploy"
	ActionApproveAgent     = "approveAgent"
	ActionSpotSend         = "spotSend"
	ActionUSDClassTransfer = "usdClassTransfer"
)

type Action interface {
	ActionType() string
}

// L1Action is authorized by signing its hash under the agent scheme. Its
// msgpack encoding is the hashed byte stream.
type L1Action interface {
	Action
	msgpack.CustomEncoder
}

// UserSignedAction is signed directly by the user's wallet as typed data.
type UserSignedAction interface {
	Action
	SigningChainID() string
	PrimaryType() string
	SignTypes() []apitypes.Type
	SignMessage() apitypes.TypedDataMessage
}

type Tif string

const (
	TifAlo Tif = "Alo"
	TifIoc Tif = "Ioc"
	TifGtc Tif = "Gtc"
)

type Grouping string

const (
	GroupingNA           Grouping = "na"
	GroupingNormalTpsl   Grouping = "normalTpsl"
	GroupingPositionTpsl Grouping = "positionTpsl"
)

type LimitOrderType struct {
	Tif Tif `json:"tif"`
}

type OrderTypeWire struct {
	Limit *LimitOrderType `json:"limit,omitempty"`
}

type OrderWire struct {
	Asset      int           `json:"a"`
	IsBuy      bool          `json:"b"`
	Price      string        `json:"p"`
	Size       string        `json:"s"`
	ReduceOnly bool          `json:"r"`
	OrderType  OrderTypeWire `json:"t"`
	Cloid      string        `json:"c,omitempty"`
}

type BuilderInfo struct {
	Builder string `json:"b"`
	Fee     int    `json:"f"`
}

// NewBuilderInfo lowercases the builder address so the posted JSON and the
// hashed bytes agree. fee is in tenths of a basis point.
func NewBuilderInfo(builder string, fee int) *BuilderInfo {
	return &BuilderInfo{Builder: strings.ToLower(strings.TrimSpace(builder)), Fee: fee}
}

type OrderAction struct {
	Type     string       `json:"type"`
	Orders   []OrderWire  `json:"orders"`
	Grouping Grouping     `json:"grouping"`
	Builder  *BuilderInfo `json:"builder,omitempty"`
}

func NewOrderAction(grouping Grouping, orders ...OrderWire) OrderAction {
	if grouping == "" {
		grouping = GroupingNA
	}
	return OrderAction{Type: ActionOrder, Orders: orders, Grouping: grouping}
}

func (a OrderAction) ActionType() string { return a.Type }

type CancelWire struct {
	Asset   int   `json:"a"`
	OrderID int64 `json:"o"`
}

type CancelAction struct {
	Type    string       `json:"type"`
	Cancels []CancelWire `json:"cancels"`
}

func (a CancelAction) ActionType() string { return a.Type }

type CancelByCloidWire struct {
	Asset int    `json:"asset"`
	Cloid string `json:"cloid"`
}

type CancelByCloidAction struct {
	Type    string              `json:"type"`
	Cancels []CancelByCloidWire `json:"cancels"`
}

func (a CancelByCloidAction) ActionType() string { return a.Type }

type SetReferrerAction struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

func (a SetReferrerAction) ActionType() string { return a.Type }

type TokenSpec struct {
	Name        string `json:"name"`
	SzDecimals  int    `json:"szDecimals"`
	WeiDecimals int    `json:"weiDecimals"`
}

type RegisterToken2 struct {
	Spec     TokenSpec `json:"spec"`
	MaxGas   int64     `json:"maxGas"`
	FullName string    `json:"fullName,omitempty"`
}

// UserWei is a [user, wei] pair.
type UserWei struct {
	User string
	Wei  string
}

func (u UserWei) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{u.User, u.Wei})
}

// TokenWei is a [token, wei] pair.
type TokenWei struct {
	Token int
	Wei   string
}

func (t TokenWei) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{t.Token, t.Wei})
}

type UserGenesis struct {
	Token               int        `json:"token"`
	UserAndWei          []UserWei  `json:"userAndWei"`
	ExistingTokenAndWei []TokenWei `json:"existingTokenAndWei"`
}

type RegisterSpot struct {
	Tokens [2]int `json:"tokens"`
}

type Genesis struct {
	Token            int    `json:"token"`
	MaxSupply        string `json:"maxSupply"`
	NoHyperliquidity bool   `json:"noHyperliquidity,omitempty"`
}

type RegisterHyperliquidity struct {
	Spot          int    `json:"spot"`
	StartPx       string `json:"startPx"`
	OrderSz       string `json:"orderSz"`
	NOrders       int    `json:"nOrders"`
	NSeededLevels *int   `json:"nSeededLevels,omitempty"`
}

// SpotDeployAction carries exactly one deployment step.
type SpotDeployAction struct {
	Type                   string                  `json:"type"`
	RegisterToken2         *RegisterToken2         `json:"registerToken2,omitempty"`
	UserGenesis            *UserGenesis            `json:"userGenesis,omitempty"`
	RegisterSpot           *RegisterSpot           `json:"registerSpot,omitempty"`
	Genesis                *Genesis                `json:"genesis,omitempty"`
	RegisterHyperliquidity *RegisterHyperliquidity `json:"registerHyperliquidity,omitempty"`
}

func (a SpotDeployAction) ActionType() string { return a.Type }

func RegisterTokenAction(spec TokenSpec, maxGasE6 int64, fullName string) SpotDeployAction {
	return SpotDeployAction{Type: ActionSpotDeploy, RegisterToken2: &RegisterToken2{Spec: spec, MaxGas: maxGasE6, FullName: fullName}}
}

func UserGenesisAction(token int, users []UserWei, anchors []TokenWei) SpotDeployAction {
	normalized := make([]UserWei, 0, len(users))
	for _, uw := range users {
		normalized = append(normalized, UserWei{User: strings.ToLower(uw.User), Wei: uw.Wei})
	}
	if anchors == nil {
		anchors = []TokenWei{}
	}
	return SpotDeployAction{Type: ActionSpotDeploy, UserGenesis: &UserGenesis{Token: token, UserAndWei: normalized, ExistingTokenAndWei: anchors}}
}

func RegisterSpotAction(baseToken, quoteToken int) SpotDeployAction {
	return SpotDeployAction{Type: ActionSpotDeploy, RegisterSpot: &RegisterSpot{Tokens: [2]int{baseToken, quoteToken}}}
}

func GenesisAction(token int, maxSupply string, noHyperliquidity bool) SpotDeployAction {
	return SpotDeployAction{Type: ActionSpotDeploy, Genesis: &Genesis{Token: token, MaxSupply: maxSupply, NoHyperliquidity: noHyperliquidity}}
}

func RegisterHyperliquidityAction(spot int, startPx, orderSz string, nOrders int, nSeededLevels *int) SpotDeployAction {
	return SpotDeployAction{Type: ActionSpotDeploy, RegisterHyperliquidity: &RegisterHyperliquidity{
		Spot:          spot,
		StartPx:       startPx,
		OrderSz:       orderSz,
		NOrders:       nOrders,
		NSeededLevels: nSeededLevels,
	}}
}

type ApproveAgentAction struct {
	Type             string `json:"type"`
	HyperliquidChain string `json:"hyperliquidChain"`
	SignatureChainId string `json:"signatureChainId"`
	AgentAddress     string `json:"agentAddress"`
	AgentName        string `json:"agentName"`
	Nonce            uint64 `json:"nonce"`
}

type SpotSendAction struct {
	Type             string `json:"type"`
	HyperliquidChain string `json:"hyperliquidChain"`
	SignatureChainId string `json:"signatureChainId"`
	Destination      string `json:"destination"`
	Token            string `json:"token"`
	Amount           string `json:"amount"`
	Time             uint64 `json:"time"`
}

type USDClassTransferAction struct {
	Type             string `json:"type"`
	HyperliquidChain string `json:"hyperliquidChain"`
	SignatureChainId string `json:"signatureChainId"`
	Amount           string `json:"amount"`
	ToPerp           bool   `json:"toPerp"`
	Nonce            uint64 `json:"nonce"`
}

type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

type SignedAction struct {
	Action       Action    `json:"action"`
	Nonce        uint64    `json:"nonce"`
	Signature    Signature `json:"signature"`
	VaultAddress *string   `json:"vaultAddress,omitempty"`
}

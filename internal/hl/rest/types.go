package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimal holds a numeric field that the API may send either as a JSON
// string or as a bare number. The text is kept as sent for display; Value
// gives the parsed amount.
type Decimal string

func (d *Decimal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = ""
		return nil
	}
	var v decimal.Decimal
	if err := v.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("decimal: %w", err)
	}
	*d = Decimal(strings.Trim(string(data), `"`))
	return nil
}

func (d Decimal) String() string {
	return string(d)
}

// Value parses d. Empty or malformed text is zero.
func (d Decimal) Value() decimal.Decimal {
	if d == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(string(d))
	if err != nil {
		return decimal.Zero
	}
	return v
}

type SpotToken struct {
	Name        string  `json:"name"`
	SzDecimals  int     `json:"szDecimals"`
	WeiDecimals int     `json:"weiDecimals"`
	Index       int     `json:"index"`
	TokenID     string  `json:"tokenId"`
	IsCanonical bool    `json:"isCanonical"`
	FullName    *string `json:"fullName"`
}

type SpotPair struct {
	Name        string `json:"name"`
	Tokens      []int  `json:"tokens"`
	Index       int    `json:"index"`
	IsCanonical bool   `json:"isCanonical"`
}

type SpotMeta struct {
	Tokens   []SpotToken `json:"tokens"`
	Universe []SpotPair  `json:"universe"`
}

// Token returns the token with the given name.
func (m SpotMeta) Token(name string) (SpotToken, bool) {
	for _, token := range m.Tokens {
		if token.Name == name {
			return token, true
		}
	}
	return SpotToken{}, false
}

type SpotBalance struct {
	Coin     string  `json:"coin"`
	Token    int     `json:"token"`
	Total    Decimal `json:"total"`
	Hold     Decimal `json:"hold"`
	EntryNtl Decimal `json:"entryNtl"`
}

type SpotClearinghouseState struct {
	Balances []SpotBalance `json:"balances"`
}

type ReferredBy struct {
	Referrer string `json:"referrer"`
	Code     string `json:"code"`
}

type ReferralState struct {
	User                         string  `json:"user"`
	TimeJoined                   int64   `json:"timeJoined"`
	CumVlm                       Decimal `json:"cumVlm"`
	CumRewardedFeesSinceReferred Decimal `json:"cumRewardedFeesSinceReferred"`
	CumFeesRewardedToReferrer    Decimal `json:"cumFeesRewardedToReferrer"`
}

type ReferrerData struct {
	Code           string          `json:"code"`
	ReferralStates []ReferralState `json:"referralStates"`
}

type ReferrerState struct {
	Stage string        `json:"stage"`
	Data  *ReferrerData `json:"data"`
}

type Referral struct {
	ReferredBy       *ReferredBy   `json:"referredBy"`
	CumVlm           Decimal       `json:"cumVlm"`
	UnclaimedRewards Decimal       `json:"unclaimedRewards"`
	ClaimedRewards   Decimal       `json:"claimedRewards"`
	BuilderRewards   Decimal       `json:"builderRewards"`
	ReferrerState    ReferrerState `json:"referrerState"`
}

type UserRateLimit struct {
	CumVlm        Decimal `json:"cumVlm"`
	NRequestsUsed int64   `json:"nRequestsUsed"`
	NRequestsCap  int64   `json:"nRequestsCap"`
}

func (u UserRateLimit) Remaining() int64 {
	return u.NRequestsCap - u.NRequestsUsed
}

// Balance is a [holder, wei] pair. The holder is an address for user
// balances and a token index for existing-token balances.
type Balance struct {
	Holder string
	Wei    Decimal
}

func (b *Balance) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("balance: expected 2 elements, got %d", len(pair))
	}
	holder := bytes.TrimSpace(pair[0])
	if len(holder) > 0 && holder[0] == '"' {
		if err := json.Unmarshal(holder, &b.Holder); err != nil {
			return fmt.Errorf("balance holder: %w", err)
		}
	} else {
		b.Holder = string(holder)
	}
	return json.Unmarshal(pair[1], &b.Wei)
}

type DeployTokenSpec struct {
	Name        string `json:"name"`
	SzDecimals  int    `json:"szDecimals"`
	WeiDecimals int    `json:"weiDecimals"`
}

type DeployState struct {
	Token                        int             `json:"token"`
	Spec                         DeployTokenSpec `json:"spec"`
	FullName                     string          `json:"fullName"`
	Spots                        []int           `json:"spots"`
	MaxSupply                    Decimal         `json:"maxSupply"`
	HyperliquidityGenesisBalance Decimal         `json:"hyperliquidityGenesisBalance"`
	TotalGenesisBalanceWei       Decimal         `json:"totalGenesisBalanceWei"`
	UserGenesisBalances          []Balance       `json:"userGenesisBalances"`
	ExistingTokenGenesisBalances []Balance       `json:"existingTokenGenesisBalances"`
}

type GasAuction struct {
	StartTimeSeconds int64   `json:"startTimeSeconds"`
	DurationSeconds  int64   `json:"durationSeconds"`
	StartGas         Decimal `json:"startGas"`
	CurrentGas       Decimal `json:"currentGas"`
	EndGas           Decimal `json:"endGas"`
}

type SpotDeployState struct {
	States     []DeployState `json:"states"`
	GasAuction GasAuction    `json:"gasAuction"`
}

type HistoricalOrderDetail struct {
	Coin      string  `json:"coin"`
	Side      string  `json:"side"`
	LimitPx   Decimal `json:"limitPx"`
	Sz        Decimal `json:"sz"`
	OrigSz    Decimal `json:"origSz"`
	Oid       int64   `json:"oid"`
	Timestamp int64   `json:"timestamp"`
	OrderType string  `json:"orderType"`
	Tif       string  `json:"tif"`
	Cloid     *string `json:"cloid"`
}

type HistoricalOrder struct {
	Order           HistoricalOrderDetail `json:"order"`
	Status          string                `json:"status"`
	StatusTimestamp int64                 `json:"statusTimestamp"`
}

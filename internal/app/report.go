package app

import (
	"fmt"
	"strings"
	"time"

	"hl-action-kit/internal/hl/rest"
)

func ReferralReport(address string, r rest.Referral) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Address:\t\t%s\n", address)
	fmt.Fprintf(&b, "Cumulative Volume:\t%s\n", r.CumVlm)
	referrer, code := "none", "N/A"
	if r.ReferredBy != nil {
		if r.ReferredBy.Referrer != "" {
			referrer = r.ReferredBy.Referrer
		}
		if r.ReferredBy.Code != "" {
			code = r.ReferredBy.Code
		}
	}
	fmt.Fprintf(&b, "Referred By:\t\t%s (code %s)\n\n", referrer, code)
	ownCode := ""
	if r.ReferrerState.Data != nil {
		ownCode = r.ReferrerState.Data.Code
	}
	fmt.Fprintf(&b, "Referral Code:\t\t%s\n", ownCode)
	fmt.Fprintf(&b, "%-42s | %-24s | %-15s | %-15s | %-15s\n", "Referred", "Joined", "Volume", "Fees Paid", "Rewards")
	b.WriteString(strings.Repeat("=", 42+24+15*3+3*4))
	b.WriteString("\n")
	if r.ReferrerState.Data != nil {
		for _, s := range r.ReferrerState.Data.ReferralStates {
			joined := time.UnixMilli(s.TimeJoined).UTC().Format("2006-01-02T15:04:05.000Z")
			fmt.Fprintf(&b, "%s | %s | %15s | %15s | %15s\n", s.User, joined, s.CumVlm, s.CumRewardedFeesSinceReferred, s.CumFeesRewardedToReferrer)
		}
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Unclaimed Rewards:\t%s\n", r.UnclaimedRewards)
	fmt.Fprintf(&b, "Claimed Rewards:\t%s\n", r.ClaimedRewards)
	fmt.Fprintf(&b, "Builder Rewards:\t%s\n", r.BuilderRewards)
	return b.String()
}

func RateLimitReport(address string, l rest.UserRateLimit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Address:\t\t%s\n", address)
	fmt.Fprintf(&b, "Cumulative Volume:\t%s\n\n", l.CumVlm)
	fmt.Fprintf(&b, "Requests Used:\t%d\n", l.NRequestsUsed)
	fmt.Fprintf(&b, "Requests Cap:\t%d\n", l.NRequestsCap)
	fmt.Fprintf(&b, "Requests Left:\t%d\n", l.Remaining())
	return b.String()
}

func DeployStateReport(address string, s rest.SpotDeployState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Address:\t\t%s\n", address)
	if len(s.States) == 0 {
		b.WriteString("No pending deployment\n")
	}
	for _, state := range s.States {
		fmt.Fprintf(&b, "\nName:\t\t\t%s\n", state.Spec.Name)
		fmt.Fprintf(&b, "Full Name:\t\t%s\n", state.FullName)
		fmt.Fprintf(&b, "Index:\t\t\t%d\n", state.Token)
		fmt.Fprintf(&b, "Size Decimals:\t\t%d\n", state.Spec.SzDecimals)
		fmt.Fprintf(&b, "Wei Decimals:\t\t%d\n\n", state.Spec.WeiDecimals)
		b.WriteString("User Genesis:\n")
		for _, bal := range state.UserGenesisBalances {
			fmt.Fprintf(&b, "%s: %s\n", bal.Holder, bal.Wei)
		}
		b.WriteString("Token Genesis:\n")
		for _, bal := range state.ExistingTokenGenesisBalances {
			fmt.Fprintf(&b, "%s: %s\n", bal.Holder, bal.Wei)
		}
		fmt.Fprintf(&b, "Total Genesis Wei:\t%s\n\n", state.TotalGenesisBalanceWei)
		fmt.Fprintf(&b, "Spots:\t\t\t%v\n", state.Spots)
		fmt.Fprintf(&b, "HIP2:\t\t\t%s\n", state.HyperliquidityGenesisBalance)
		fmt.Fprintf(&b, "Max Supply:\t\t%s\n", state.MaxSupply)
	}
	if s.GasAuction.CurrentGas != "" {
		fmt.Fprintf(&b, "\nCurrent Gas:\t\t%s\n", s.GasAuction.CurrentGas)
	}
	return b.String()
}

func SpotBalancesReport(address string, s rest.SpotClearinghouseState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Address:\t\t%s\n", address)
	fmt.Fprintf(&b, "%-12s | %-8s | %-20s | %-20s | %-20s\n", "Coin", "Token", "Total", "Hold", "Available")
	for _, bal := range s.Balances {
		available := bal.Total.Value().Sub(bal.Hold.Value())
		fmt.Fprintf(&b, "%-12s | %-8d | %-20s | %-20s | %-20s\n", bal.Coin, bal.Token, bal.Total, bal.Hold, available.String())
	}
	return b.String()
}

func HistoricalOrdersReport(address string, orders []rest.HistoricalOrder) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Address:\t\t%s\n", address)
	fmt.Fprintf(&b, "%-24s | %-10s | %-4s | %-14s | %-14s | %-10s | %s\n", "Time", "Coin", "Side", "Limit Px", "Orig Size", "Status", "Oid")
	for _, o := range orders {
		ts := time.UnixMilli(o.StatusTimestamp).UTC().Format("2006-01-02T15:04:05.000Z")
		fmt.Fprintf(&b, "%-24s | %-10s | %-4s | %-14s | %-14s | %-10s | %d\n", ts, o.Order.Coin, o.Order.Side, o.Order.LimitPx, o.Order.OrigSz, o.Status, o.Order.Oid)
	}
	return b.String()
}

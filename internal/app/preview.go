package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"hl-action-kit/internal/hl/chain"
	"hl-action-kit/internal/hl/exchange"
)

// PreviewL1 signs action with the primary signer and returns the request body
// without posting it.
func (a *App) PreviewL1(ctx context.Context, action exchange.L1Action) (exchange.SignedAction, error) {
	signer, err := a.Signer(ctx)
	if err != nil {
		return exchange.SignedAction{}, err
	}
	return exchange.NewBuilder(a.network).L1Payload(ctx, signer, action, uint64(time.Now().UnixMilli()), nil)
}

// PreviewSpotSend applies the same checks as a real send before signing.
func (a *App) PreviewSpotSend(ctx context.Context, destination, token, amount string) (exchange.SignedAction, error) {
	if err := validateSend(destination, token, amount); err != nil {
		return exchange.SignedAction{}, err
	}
	signer, err := a.Signer(ctx)
	if err != nil {
		return exchange.SignedAction{}, err
	}
	nonce := uint64(time.Now().UnixMilli())
	action := exchange.NewSpotSendAction(a.network, destination, token, amount, nonce)
	return exchange.NewBuilder(a.network).WalletPayload(ctx, signer, action, nonce)
}

func validateSend(destination, token, amount string) error {
	if err := chain.ValidateAddress(destination); err != nil {
		return err
	}
	if !strings.Contains(token, ":") {
		return errors.New("token must be NAME:0xTOKENID")
	}
	if strings.TrimSpace(amount) == "" {
		return errors.New("amount is required")
	}
	return nil
}

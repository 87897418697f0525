package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"hl-action-kit/internal/hl/ws"

	"go.uber.org/zap"
)

// PostInfo sends an info request over the websocket post endpoint and waits
// for the matching response. The connection is closed before returning.
func (a *App) PostInfo(ctx context.Context, request any) (json.RawMessage, error) {
	if err := a.ws.Connect(ctx); err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.ws.Run(runCtx, nil)
	}()
	defer func() {
		cancel()
		<-done
	}()

	resp, err := a.ws.Request(ctx, "info", request)
	if err != nil {
		return nil, err
	}
	if resp.Type == "error" {
		return nil, fmt.Errorf("ws post: %s", string(resp.Payload))
	}
	if len(resp.Payload) == 0 {
		return nil, errors.New("ws post: empty response")
	}
	return resp.Payload, nil
}

// Stream subscribes and hands every pushed message to fn until ctx is done.
// Reconnects replay the subscription.
func (a *App) Stream(ctx context.Context, sub ws.Subscription, fn func(json.RawMessage)) error {
	if err := a.ws.Subscribe(ctx, sub); err != nil {
		return err
	}
	a.log.Info("ws stream started", zap.String("subscription", sub.Type), zap.String("user", sub.User))
	err := a.ws.Run(ctx, fn)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

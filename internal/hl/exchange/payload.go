package exchange

import (
	"context"
	"errors"
	"fmt"

	"hl-action-kit/internal/hl/chain"

	"github.com/ethereum/go-ethereum/common"
)

// Builder assembles signed envelopes for one network.
type Builder struct {
	network chain.Network
}

func NewBuilder(network chain.Network) *Builder {
	return &Builder{network: network}
}

func (b *Builder) Network() chain.Network {
	return b.network
}

// L1Payload hashes the action with nonce and active pool and signs the hash
// under the agent scheme. activePool is echoed as vaultAddress.
func (b *Builder) L1Payload(ctx context.Context, signer TypedDataSigner, action L1Action, nonce uint64, activePool *common.Address) (SignedAction, error) {
	if signer == nil {
		return SignedAction{}, fmt.Errorf("%w: signer is required", ErrSigning)
	}
	hash, err := ActionHash(action, nonce, activePool)
	if err != nil {
		return SignedAction{}, err
	}
	sig, err := signer.SignTypedData(ctx, AgentTypedData(hash, b.network))
	if err != nil {
		return SignedAction{}, signingError(err)
	}
	payload := SignedAction{Action: action, Nonce: nonce, Signature: sig}
	if activePool != nil {
		addr := activePool.Hex()
		payload.VaultAddress = &addr
	}
	return payload, nil
}

// WalletPayload signs the action itself under the wallet scheme. Wallet
// actions never carry a vault address.
func (b *Builder) WalletPayload(ctx context.Context, signer TypedDataSigner, action UserSignedAction, nonce uint64) (SignedAction, error) {
	if signer == nil {
		return SignedAction{}, fmt.Errorf("%w: signer is required", ErrSigning)
	}
	if action == nil {
		return SignedAction{}, errors.New("action is required")
	}
	typedData, err := UserTypedData(action)
	if err != nil {
		return SignedAction{}, err
	}
	sig, err := signer.SignTypedData(ctx, typedData)
	if err != nil {
		return SignedAction{}, signingError(err)
	}
	return SignedAction{Action: action, Nonce: nonce, Signature: sig}, nil
}

func signingError(err error) error {
	if errors.Is(err, ErrSigning) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrSigning, err)
}

package exchange

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"hl-action-kit/internal/hl/chain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

var ErrSigning = errors.New("signing failed")

const zeroAddress = "0x0000000000000000000000000000000000000000"

var eip712DomainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// TypedDataSigner is the signing contract shared by the agent and wallet
// schemes. Implementations may block on user interaction.
type TypedDataSigner interface {
	Address() common.Address
	SignTypedData(ctx context.Context, data apitypes.TypedData) (Signature, error)
}

// KeySigner signs with a local secp256k1 key.
type KeySigner struct {
	privKey *ecdsa.PrivateKey
	address common.Address
}

func NewKeySigner(hexKey string) (*KeySigner, error) {
	clean := strings.TrimSpace(hexKey)
	if clean == "" {
		return nil, errors.New("private key is required")
	}
	clean = strings.TrimPrefix(clean, "0x")
	key, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, err
	}
	return &KeySigner{privKey: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// NewAgentKeySigner generates a throwaway key for a delegated agent. The key
// lives only as long as the returned signer.
func NewAgentKeySigner() (*KeySigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &KeySigner{privKey: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *KeySigner) Address() common.Address {
	return s.address
}

func (s *KeySigner) SignTypedData(_ context.Context, data apitypes.TypedData) (Signature, error) {
	digest, err := typedDataDigest(data)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	sig, err := crypto.Sign(digest, s.privKey)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signatureFromBytes(sig)
}

// ActionHash binds an action to its nonce and optional active pool:
// keccak256(msgpack(action) || nonce BE64 || 0x00) or
// keccak256(msgpack(action) || nonce BE64 || 0x01 || pool).
func ActionHash(action L1Action, nonce uint64, activePool *common.Address) (common.Hash, error) {
	payload, err := EncodeAction(action)
	if err != nil {
		return common.Hash{}, err
	}
	return actionHash(payload, nonce, activePool), nil
}

func actionHash(action []byte, nonce uint64, activePool *common.Address) common.Hash {
	buf := bytes.NewBuffer(action)
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)
	buf.Write(nonceBytes[:])
	if activePool == nil {
		buf.WriteByte(0x00)
	} else {
		buf.WriteByte(0x01)
		buf.Write(activePool.Bytes())
	}
	return crypto.Keccak256Hash(buf.Bytes())
}

// AgentTypedData wraps an action hash in the phantom "Exchange" domain.
func AgentTypedData(hash common.Hash, network chain.Network) apitypes.TypedData {
	chainID := network.AgentChainID
	if chainID == 0 {
		chainID = chain.DefaultAgentChainID
	}
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": eip712DomainType,
			"Agent": {
				{Name: "source", Type: "string"},
				{Name: "connectionId", Type: "bytes32"},
			},
		},
		PrimaryType: "Agent",
		Domain: apitypes.TypedDataDomain{
			Name:              "Exchange",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(int64(chainID)),
			VerifyingContract: zeroAddress,
		},
		Message: apitypes.TypedDataMessage{
			"source":       network.Source(),
			"connectionId": hexutil.Encode(hash.Bytes()),
		},
	}
}

// UserTypedData builds the wallet-visible typed data for a user-signed action.
// The domain chain id is the action's own signatureChainId.
func UserTypedData(action UserSignedAction) (apitypes.TypedData, error) {
	var chainID math.HexOrDecimal256
	if err := chainID.UnmarshalText([]byte(action.SigningChainID())); err != nil {
		return apitypes.TypedData{}, fmt.Errorf("signature chain id %q: %w", action.SigningChainID(), err)
	}
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain":       eip712DomainType,
			action.PrimaryType(): action.SignTypes(),
		},
		PrimaryType: action.PrimaryType(),
		Domain: apitypes.TypedDataDomain{
			Name:              "HyperliquidSignTransaction",
			Version:           "1",
			ChainId:           &chainID,
			VerifyingContract: zeroAddress,
		},
		Message: action.SignMessage(),
	}, nil
}

func typedDataDigest(typedData apitypes.TypedData) ([]byte, error) {
	domainHash, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, err
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256([]byte("\x19\x01"), domainHash, messageHash), nil
}

// RecoverSigner returns the address that produced sig over typedData.
func RecoverSigner(typedData apitypes.TypedData, sig Signature) (common.Address, error) {
	digest, err := typedDataDigest(typedData)
	if err != nil {
		return common.Address{}, err
	}
	raw, err := signatureBytes(sig)
	if err != nil {
		return common.Address{}, err
	}
	pub, err := crypto.SigToPub(digest, raw)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// signatureFromBytes converts a 65-byte [R || S || V] signature with V in
// {0, 1} or {27, 28}.
func signatureFromBytes(sig []byte) (Signature, error) {
	if len(sig) != 65 {
		return Signature{}, fmt.Errorf("%w: unexpected signature length %d", ErrSigning, len(sig))
	}
	v := int(sig[64])
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return Signature{}, fmt.Errorf("%w: unexpected signature v %d", ErrSigning, v)
	}
	return Signature{R: hexutil.Encode(sig[:32]), S: hexutil.Encode(sig[32:64]), V: v}, nil
}

func signatureBytes(sig Signature) ([]byte, error) {
	r, err := hexutil.Decode(sig.R)
	if err != nil {
		return nil, err
	}
	s, err := hexutil.Decode(sig.S)
	if err != nil {
		return nil, err
	}
	if len(r) != 32 || len(s) != 32 {
		return nil, errors.New("unexpected signature length")
	}
	v := sig.V - 27
	if v < 0 || v > 1 {
		return nil, errors.New("unexpected signature v")
	}
	out := append(append([]byte{}, r...), s...)
	return append(out, byte(v)), nil
}

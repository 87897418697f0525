package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// RPCSigner asks an external wallet to sign typed data through
// eth_signTypedData_v4. Each call is a single request; a rejection in the
// wallet surfaces as ErrSigning.
type RPCSigner struct {
	client  *rpc.Client
	address common.Address
}

func DialRPCSigner(ctx context.Context, url string, address common.Address) (*RPCSigner, error) {
	if url == "" {
		return nil, errors.New("wallet rpc url is required")
	}
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: dial wallet: %v", ErrSigning, err)
	}
	return &RPCSigner{client: client, address: address}, nil
}

func (s *RPCSigner) Address() common.Address {
	return s.address
}

func (s *RPCSigner) SignTypedData(ctx context.Context, data apitypes.TypedData) (Signature, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	var raw hexutil.Bytes
	if err := s.client.CallContext(ctx, &raw, "eth_signTypedData_v4", s.address, string(payload)); err != nil {
		return Signature{}, fmt.Errorf("%w: wallet: %v", ErrSigning, err)
	}
	return signatureFromBytes(raw)
}

func (s *RPCSigner) Close() {
	s.client.Close()
}

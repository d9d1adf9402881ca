package protocols

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/telosbridge/lzbridge/bridge/chain"
	"github.com/telosbridge/lzbridge/bridge/codec"
	"github.com/telosbridge/lzbridge/bridge/router"
)

// WrappedBridge speaks the LayerZero V1 wrapped token bridge. The Telos peer holds the bridge
// contract and the wrapped token; remote peers hold the destination token.
type WrappedBridge struct {
	adapterParams []byte
	fallback      FeeFallbackPolicy
}

// NewWrappedBridge creates the V1 bridge client.
func NewWrappedBridge() *WrappedBridge {
	return &WrappedBridge{
		adapterParams: codec.AdapterParamsV1(codec.DefaultLzReceiveGas),
		fallback:      NewFeeFallbackPolicy(LayerZeroV1WrappedProfile),
	}
}

func (b *WrappedBridge) Mechanism() router.Mechanism {
	return router.MechanismWrappedBridge
}

func (b *WrappedBridge) FallbackPolicy() FeeFallbackPolicy {
	return b.fallback
}

func dstChainIdV1(route *router.RouteClassification) (uint16, error) {
	id := route.Destination.ProtocolChainId
	if id == 0 || id > 0xffff {
		return 0, fmt.Errorf("invalid LayerZero V1 chain id %d", id)
	}
	return uint16(id), nil
}

// QuoteFee calls estimateBridgeFee(dstChainId, false, adapterParams).
func (b *WrappedBridge) QuoteFee(ctx context.Context, reader chain.Reader, params SendParams) (*big.Int, error) {
	if params.Route == nil {
		return nil, fmt.Errorf("route is required")
	}
	dst, err := dstChainIdV1(params.Route)
	if err != nil {
		return nil, err
	}
	data, err := WrappedBridgeABI.Pack("estimateBridgeFee", dst, false, b.adapterParams)
	if err != nil {
		return nil, fmt.Errorf("failed to pack estimateBridgeFee: %w", err)
	}
	out, err := reader.CallContract(ctx, params.Route.Source.Peer.Contract, data)
	if err != nil {
		return nil, err
	}
	vals, err := WrappedBridgeABI.Unpack("estimateBridgeFee", out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack estimateBridgeFee: %w", err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("empty estimateBridgeFee response")
	}
	fee, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected estimateBridgeFee type")
	}
	return fee, nil
}

// QuoteReceivable is the sent amount; wrapped tokens unlock 1:1.
func (b *WrappedBridge) QuoteReceivable(_ context.Context, _ chain.Reader, params SendParams) (*big.Int, error) {
	return new(big.Int).Set(params.Amount), nil
}

// SourceAsset is the wrapped token, approved to the bridge.
func (b *WrappedBridge) SourceAsset(_ context.Context, _ chain.Reader, route *router.RouteClassification) (SourceAsset, error) {
	peer := route.Source.Peer
	if peer.Token == (common.Address{}) {
		return SourceAsset{}, fmt.Errorf("wrapped bridge peer on chain %d has no token", route.Source.Chain)
	}
	return SourceAsset{Token: peer.Token, Spender: peer.Contract}, nil
}

// PackSend encodes bridge(token, dstChainId, amount, to, false, callParams, adapterParams).
func (b *WrappedBridge) PackSend(params SendParams, _ *big.Int) ([]byte, error) {
	if params.Route == nil {
		return nil, fmt.Errorf("route is required")
	}
	dst, err := dstChainIdV1(params.Route)
	if err != nil {
		return nil, err
	}
	return WrappedBridgeABI.Pack(
		"bridge",
		params.Route.Source.Peer.Token,
		dst,
		params.Amount,
		params.Recipient,
		false,
		CallParams{RefundAddress: params.Refund},
		b.adapterParams,
	)
}

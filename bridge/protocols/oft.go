package protocols

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/telosbridge/lzbridge/bridge/chain"
	"github.com/telosbridge/lzbridge/bridge/codec"
	"github.com/telosbridge/lzbridge/bridge/router"
)

// OFTOptions selects the variant behavior of a LayerZero V2 OFT mechanism.
type OFTOptions struct {
	// ExtraOptions attaches an executor lzReceive gas option instead of relying on enforced options.
	ExtraOptions bool
	// QuoteOFT reads the pool's net receivable before quoting the fee.
	QuoteOFT bool
}

// OFTBridge speaks the LayerZero V2 OFT interface: native OFT adapters, plain OFTs and
// Stargate V2 pools.
type OFTBridge struct {
	mechanism router.Mechanism
	options   OFTOptions
	fallback  FeeFallbackPolicy
}

// NewOFTBridge creates a V2 bridge for mechanism.
func NewOFTBridge(mechanism router.Mechanism, options OFTOptions) *OFTBridge {
	return &OFTBridge{
		mechanism: mechanism,
		options:   options,
		fallback:  NewFeeFallbackPolicy(LayerZeroV2Profile),
	}
}

func (b *OFTBridge) Mechanism() router.Mechanism {
	return b.mechanism
}

func (b *OFTBridge) FallbackPolicy() FeeFallbackPolicy {
	return b.fallback
}

func (b *OFTBridge) sendParam(params SendParams) (SendParam, error) {
	if params.Route == nil {
		return SendParam{}, fmt.Errorf("route is required")
	}
	if params.Amount == nil {
		return SendParam{}, fmt.Errorf("amount is required")
	}
	minAmount := params.MinAmount
	if minAmount == nil {
		minAmount = new(big.Int).Set(params.Amount)
	}

	sp := SendParam{
		DstEid:       uint32(params.Route.Destination.ProtocolChainId),
		To:           codec.AddressToBytes32(params.Recipient),
		AmountLD:     params.Amount,
		MinAmountLD:  minAmount,
		ExtraOptions: []byte{},
		ComposeMsg:   []byte{},
		OftCmd:       []byte{},
	}
	if b.options.ExtraOptions {
		sp.ExtraOptions = codec.ExecutorLzReceiveOption(codec.DefaultLzReceiveGas, nil)
	}
	return sp, nil
}

// QuoteFee calls quoteSend on the source contract.
func (b *OFTBridge) QuoteFee(ctx context.Context, reader chain.Reader, params SendParams) (*big.Int, error) {
	sp, err := b.sendParam(params)
	if err != nil {
		return nil, err
	}
	data, err := OFTABI.Pack("quoteSend", sp, false)
	if err != nil {
		return nil, fmt.Errorf("failed to pack quoteSend: %w", err)
	}
	out, err := reader.CallContract(ctx, params.Route.Source.Peer.Contract, data)
	if err != nil {
		return nil, err
	}
	vals, err := OFTABI.Unpack("quoteSend", out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack quoteSend: %w", err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("empty quoteSend response")
	}
	fee := *abi.ConvertType(vals[0], new(MessagingFee)).(*MessagingFee)
	if fee.NativeFee == nil {
		return nil, fmt.Errorf("quoteSend returned no native fee")
	}
	return fee.NativeFee, nil
}

// QuoteReceivable calls quoteOFT for pools and returns the amount unchanged for pure adapters.
func (b *OFTBridge) QuoteReceivable(ctx context.Context, reader chain.Reader, params SendParams) (*big.Int, error) {
	if !b.options.QuoteOFT {
		return new(big.Int).Set(params.Amount), nil
	}

	sp, err := b.sendParam(params)
	if err != nil {
		return nil, err
	}
	data, err := OFTABI.Pack("quoteOFT", sp)
	if err != nil {
		return nil, fmt.Errorf("failed to pack quoteOFT: %w", err)
	}
	out, err := reader.CallContract(ctx, params.Route.Source.Peer.Contract, data)
	if err != nil {
		return nil, err
	}
	vals, err := OFTABI.Unpack("quoteOFT", out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack quoteOFT: %w", err)
	}
	if len(vals) < 3 {
		return nil, fmt.Errorf("unexpected quoteOFT response length %d", len(vals))
	}
	receipt := *abi.ConvertType(vals[2], new(OFTReceipt)).(*OFTReceipt)
	if receipt.AmountReceivedLD == nil || receipt.AmountReceivedLD.Sign() <= 0 {
		return nil, fmt.Errorf("quoteOFT returned no receivable amount")
	}
	if receipt.AmountReceivedLD.Cmp(params.Amount) > 0 {
		return nil, fmt.Errorf("quoteOFT receivable %s exceeds sent amount %s", receipt.AmountReceivedLD, params.Amount)
	}
	return receipt.AmountReceivedLD, nil
}

// SourceAsset resolves approval for the source peer. Pool peers read their token from token();
// a zero token there marks a native pool.
func (b *OFTBridge) SourceAsset(ctx context.Context, reader chain.Reader, route *router.RouteClassification) (SourceAsset, error) {
	peer := route.Source.Peer
	switch {
	case peer.Native:
		return SourceAsset{Native: true}, nil
	case peer.ResolvePoolToken:
		token, err := PoolToken(ctx, reader, peer.Contract)
		if err != nil {
			return SourceAsset{}, fmt.Errorf("failed to resolve pool token of %s: %w", peer.Contract.Hex(), err)
		}
		if token == (common.Address{}) {
			log.Debug().
				Str("pool", peer.Contract.Hex()).
				Uint64("chain", uint64(route.Source.Chain)).
				Msg("Pool has no token, sending native value")
			return SourceAsset{Native: true}, nil
		}
		return SourceAsset{Token: token, Spender: peer.Contract}, nil
	case peer.Token != (common.Address{}):
		return SourceAsset{Token: peer.Token, Spender: peer.Contract}, nil
	default:
		return SourceAsset{}, nil
	}
}

// PackSend encodes send(sendParam, fee, refund).
func (b *OFTBridge) PackSend(params SendParams, fee *big.Int) ([]byte, error) {
	sp, err := b.sendParam(params)
	if err != nil {
		return nil, err
	}
	return OFTABI.Pack("send", sp, MessagingFee{NativeFee: fee, LzTokenFee: new(big.Int)}, params.Refund)
}

// PoolToken reads token() from an OFT or Stargate pool.
func PoolToken(ctx context.Context, reader chain.Reader, contract common.Address) (common.Address, error) {
	data, err := OFTABI.Pack("token")
	if err != nil {
		return common.Address{}, err
	}
	out, err := reader.CallContract(ctx, contract, data)
	if err != nil {
		return common.Address{}, err
	}
	vals, err := OFTABI.Unpack("token", out)
	if err != nil {
		return common.Address{}, err
	}
	if len(vals) == 0 {
		return common.Address{}, fmt.Errorf("empty token response")
	}
	token, ok := vals[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected token type")
	}
	return token, nil
}

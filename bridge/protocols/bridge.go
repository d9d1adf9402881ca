// Package protocols binds each transfer mechanism to its contract ABI: fee quoting, send
// packing, approval resolution and the static fee fallback used when a quote read fails.
package protocols

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/telosbridge/lzbridge/bridge/chain"
	"github.com/telosbridge/lzbridge/bridge/router"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "protocols").Logger()
}

const (
	// SendGasLimit is the fixed gas ceiling for every transfer transaction.
	SendGasLimit uint64 = 500000
	// ApproveGasLimit is the gas ceiling for ERC-20 approvals.
	ApproveGasLimit uint64 = 100000
	// FeeBufferPercent is added on top of the quoted fee before sending.
	FeeBufferPercent int64 = 10
	// DefaultSlippageBps is used when the caller does not set a tolerance.
	DefaultSlippageBps uint32 = 50
	// LayerZeroScanURL is the explorer prefix for tracking delivery.
	LayerZeroScanURL = "https://layerzeroscan.com/tx/"
)

// SendParams is the resolved input of one quote or send.
type SendParams struct {
	Route     *router.RouteClassification
	Amount    *big.Int // source base units
	MinAmount *big.Int
	Recipient common.Address
	Refund    common.Address
}

// SourceAsset is how the sent asset leaves the sender's account.
type SourceAsset struct {
	// Native assets travel in the transaction value.
	Native bool
	// Token is the ERC-20 to approve to Spender. Zero when no approval applies.
	Token   common.Address
	Spender common.Address
}

// NeedsApproval reports whether an allowance check applies.
func (a SourceAsset) NeedsApproval() bool {
	return !a.Native && a.Token != (common.Address{})
}

// Bridge is one mechanism's contract client.
type Bridge interface {
	Mechanism() router.Mechanism
	FallbackPolicy() FeeFallbackPolicy
	// QuoteFee reads the messaging fee in native base units.
	QuoteFee(ctx context.Context, reader chain.Reader, params SendParams) (*big.Int, error)
	// QuoteReceivable returns the destination amount. Pure adapters return params.Amount without I/O.
	QuoteReceivable(ctx context.Context, reader chain.Reader, params SendParams) (*big.Int, error)
	// SourceAsset resolves the approval token and value semantics on the source chain.
	SourceAsset(ctx context.Context, reader chain.Reader, route *router.RouteClassification) (SourceAsset, error)
	// PackSend encodes the transfer call paying fee.
	PackSend(params SendParams, fee *big.Int) ([]byte, error)
}

// SendValue is the transaction value of a transfer: amount plus fee for native assets, the fee
// alone otherwise.
func SendValue(asset SourceAsset, amount, fee *big.Int) *big.Int {
	if asset.Native {
		return new(big.Int).Add(amount, fee)
	}
	return new(big.Int).Set(fee)
}

// Set resolves the Bridge of each mechanism.
type Set map[router.Mechanism]Bridge

// DefaultSet binds every mechanism of the default registry.
func DefaultSet() Set {
	return Set{
		router.MechanismNativeOFT:     NewOFTBridge(router.MechanismNativeOFT, OFTOptions{ExtraOptions: true}),
		router.MechanismOFTAdapter:    NewOFTBridge(router.MechanismOFTAdapter, OFTOptions{}),
		router.MechanismStargatePool:  NewOFTBridge(router.MechanismStargatePool, OFTOptions{QuoteOFT: true}),
		router.MechanismWrappedBridge: NewWrappedBridge(),
	}
}

// Get returns the Bridge for mechanism.
func (s Set) Get(mechanism router.Mechanism) (Bridge, error) {
	bridge, ok := s[mechanism]
	if !ok {
		return nil, fmt.Errorf("no bridge bound for mechanism %s", mechanism)
	}
	return bridge, nil
}

// Allowance reads token.allowance(owner, spender).
func Allowance(ctx context.Context, reader chain.Reader, token, owner, spender common.Address) (*big.Int, error) {
	data, err := ERC20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	out, err := reader.CallContract(ctx, token, data)
	if err != nil {
		return nil, err
	}
	vals, err := ERC20ABI.Unpack("allowance", out)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("empty allowance response")
	}
	allowance, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected allowance type")
	}
	return allowance, nil
}

// PackApprove encodes approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return ERC20ABI.Pack("approve", spender, amount)
}

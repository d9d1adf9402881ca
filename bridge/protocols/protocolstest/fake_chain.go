// Package protocolstest provides an in-memory chain that answers the mechanism ABIs, for tests of
// the quote engine and orchestrator.
package protocolstest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/telosbridge/lzbridge/bridge/chain"
	"github.com/telosbridge/lzbridge/bridge/protocols"
	"github.com/telosbridge/lzbridge/bridge/router"
)

// ErrReadReverted is what FakeChain returns for failing reads.
var ErrReadReverted = errors.New("execution reverted")

// Submitted is one transaction the fake received.
type Submitted struct {
	Hash    common.Hash
	Method  string
	Request chain.TxRequest
}

// FakeChain implements chain.Reader, chain.Writer and chain.NetworkSwitcher.
type FakeChain struct {
	mu sync.Mutex

	Chain     router.ChainId
	Connected router.ChainId
	Sender    common.Address

	NativeFee *big.Int
	// Received overrides the quoteOFT receivable. Nil echoes the sent amount.
	Received    *big.Int
	PoolToken   common.Address
	QuoteErr    error
	QuoteOFTErr error

	SendErr   error
	SwitchErr error
	// RevertMethod makes the receipt of that method's transaction fail.
	RevertMethod string
	// BeforeSend runs before a transaction is recorded.
	BeforeSend func(method string)

	allowances map[common.Address]*big.Int
	pending    map[common.Hash]Submitted
	Reads      []string
	Sent       []Submitted
	Events     []string
}

// NewFakeChain creates a fake bound to chainID with sender connected to it.
func NewFakeChain(chainID router.ChainId, sender common.Address) *FakeChain {
	return &FakeChain{
		Chain:      chainID,
		Connected:  chainID,
		Sender:     sender,
		NativeFee:  big.NewInt(0),
		allowances: make(map[common.Address]*big.Int),
		pending:    make(map[common.Hash]Submitted),
	}
}

// SetAllowance sets the sender's allowance on token.
func (f *FakeChain) SetAllowance(token common.Address, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowances[token] = new(big.Int).Set(amount)
}

// Allowance returns the sender's allowance on token.
func (f *FakeChain) Allowance(token common.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allowanceLocked(token)
}

func (f *FakeChain) allowanceLocked(token common.Address) *big.Int {
	if allowance, ok := f.allowances[token]; ok {
		return new(big.Int).Set(allowance)
	}
	return new(big.Int)
}

// Transactions returns a copy of the submitted transactions.
func (f *FakeChain) Transactions() []Submitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Submitted(nil), f.Sent...)
}

// Log returns a copy of the ordered send/wait events.
func (f *FakeChain) Log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Events...)
}

func lookupMethod(data []byte) (*abi.Method, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("calldata too short")
	}
	for _, parsed := range []abi.ABI{protocols.OFTABI, protocols.ERC20ABI, protocols.WrappedBridgeABI} {
		if method, err := parsed.MethodById(data[:4]); err == nil {
			return method, nil
		}
	}
	return nil, fmt.Errorf("unknown selector %x", data[:4])
}

func (f *FakeChain) ChainID() router.ChainId {
	return f.Chain
}

func (f *FakeChain) CallContract(_ context.Context, to common.Address, data []byte) ([]byte, error) {
	method, err := lookupMethod(data)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads = append(f.Reads, method.Name)

	switch method.Name {
	case "quoteSend":
		if f.QuoteErr != nil {
			return nil, f.QuoteErr
		}
		return method.Outputs.Pack(protocols.MessagingFee{NativeFee: f.NativeFee, LzTokenFee: new(big.Int)})
	case "estimateBridgeFee":
		if f.QuoteErr != nil {
			return nil, f.QuoteErr
		}
		return method.Outputs.Pack(f.NativeFee, new(big.Int))
	case "quoteOFT":
		if f.QuoteOFTErr != nil {
			return nil, f.QuoteOFTErr
		}
		args, err := method.Inputs.Unpack(data[4:])
		if err != nil {
			return nil, err
		}
		sp := *abi.ConvertType(args[0], new(protocols.SendParam)).(*protocols.SendParam)
		received := sp.AmountLD
		if f.Received != nil {
			received = f.Received
		}
		return method.Outputs.Pack(
			protocols.OFTLimit{MinAmountLD: new(big.Int), MaxAmountLD: new(big.Int).Lsh(big.NewInt(1), 128)},
			[]protocols.OFTFeeDetail{},
			protocols.OFTReceipt{AmountSentLD: sp.AmountLD, AmountReceivedLD: received},
		)
	case "token":
		return method.Outputs.Pack(f.PoolToken)
	case "allowance":
		return method.Outputs.Pack(f.allowanceLocked(to))
	}
	return nil, ErrReadReverted
}

func (f *FakeChain) From() common.Address {
	return f.Sender
}

func (f *FakeChain) ChainIDOf() router.ChainId {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// SwitchToChain implements chain.NetworkSwitcher.
func (f *FakeChain) SwitchToChain(_ context.Context, target router.ChainId) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = append(f.Events, fmt.Sprintf("switch:%d", target))
	if f.SwitchErr != nil {
		return f.SwitchErr
	}
	f.Connected = target
	return nil
}

// Writer returns the chain.Writer view of the fake.
func (f *FakeChain) Writer() chain.Writer {
	return fakeWriter{f}
}

type fakeWriter struct {
	*FakeChain
}

func (w fakeWriter) ChainID(context.Context) (router.ChainId, error) {
	return w.ChainIDOf(), nil
}

func (w fakeWriter) SendTransaction(_ context.Context, req chain.TxRequest) (common.Hash, error) {
	method, err := lookupMethod(req.Data)
	if err != nil {
		return common.Hash{}, chain.ClassifyTxError("send", err)
	}
	if w.BeforeSend != nil {
		w.BeforeSend(method.Name)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.SendErr != nil {
		return common.Hash{}, chain.ClassifyTxError("send", w.SendErr)
	}

	hash := common.BigToHash(big.NewInt(int64(len(w.Sent) + 1)))
	submitted := Submitted{Hash: hash, Method: method.Name, Request: req}
	w.Sent = append(w.Sent, submitted)
	w.pending[hash] = submitted
	w.Events = append(w.Events, "send:"+method.Name)
	return hash, nil
}

func (w fakeWriter) WaitForReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	submitted, ok := w.pending[hash]
	if !ok {
		return nil, chain.NewTxError("wait", chain.TxErrorNetwork, fmt.Errorf("unknown transaction %s", hash.Hex()))
	}
	delete(w.pending, hash)
	w.Events = append(w.Events, "wait:"+submitted.Method)

	if submitted.Method == w.RevertMethod {
		txErr := chain.NewTxError("wait", chain.TxErrorReverted, chain.ErrTransactionReverted)
		txErr.Hash = hash
		return &types.Receipt{TxHash: hash, Status: types.ReceiptStatusFailed}, txErr
	}

	if submitted.Method == "approve" {
		method, _ := lookupMethod(submitted.Request.Data)
		args, err := method.Inputs.Unpack(submitted.Request.Data[4:])
		if err == nil && len(args) == 2 {
			w.allowances[submitted.Request.To] = args[1].(*big.Int)
		}
	}
	return &types.Receipt{TxHash: hash, Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1)}, nil
}

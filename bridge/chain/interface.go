// Package chain holds the narrow client ports the quote engine and orchestrator talk to and
// their go-ethereum backed implementations.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/telosbridge/lzbridge/bridge/router"
)

// Reader performs read-only contract calls against one chain.
type Reader interface {
	ChainID() router.ChainId
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// ReaderProvider resolves the Reader for a chain.
type ReaderProvider interface {
	Reader(chain router.ChainId) (Reader, error)
}

// TxRequest is a contract call to sign and submit.
type TxRequest struct {
	To       common.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64
}

// Writer submits transactions for one account. Failures are returned as *TxError.
type Writer interface {
	From() common.Address
	// ChainID is the chain the signer is currently connected to.
	ChainID(ctx context.Context) (router.ChainId, error)
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
	// WaitForReceipt blocks until the transaction is mined. A reverted transaction returns its
	// receipt together with a TxErrorReverted error.
	WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// NetworkSwitcher asks the wallet to move to another chain.
type NetworkSwitcher interface {
	SwitchToChain(ctx context.Context, chain router.ChainId) error
}

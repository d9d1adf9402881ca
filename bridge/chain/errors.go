package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

// TxErrorKind tags why a write-side call failed.
type TxErrorKind int

const (
	// TxErrorNetwork covers transport, RPC node and timeout failures.
	TxErrorNetwork TxErrorKind = iota
	// TxErrorUserRejected means the signer declined to sign.
	TxErrorUserRejected
	// TxErrorReverted means the transaction or its simulation reverted on chain.
	TxErrorReverted
)

func (k TxErrorKind) String() string {
	switch k {
	case TxErrorUserRejected:
		return "user_rejected"
	case TxErrorReverted:
		return "reverted"
	default:
		return "network"
	}
}

// JSON-RPC error codes used to tag failures.
const (
	// codeUserRejected is the EIP-1193 "user rejected request" provider error.
	codeUserRejected = 4001
	// codeExecutionReverted is returned by geth-compatible nodes for reverted calls.
	codeExecutionReverted = 3
)

var (
	// ErrSignatureRejected is returned by signers that decline to sign.
	ErrSignatureRejected = errors.New("signature rejected")
	// ErrTransactionReverted marks a mined transaction with a failed status.
	ErrTransactionReverted = errors.New("transaction reverted")
)

// TxError is the tagged error every Writer returns.
type TxError struct {
	Kind TxErrorKind
	Op   string
	Hash common.Hash
	Err  error
}

func (e *TxError) Error() string {
	if e.Hash != (common.Hash{}) {
		return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Kind, e.Hash.Hex(), e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// NewTxError tags err with kind.
func NewTxError(op string, kind TxErrorKind, err error) *TxError {
	return &TxError{Kind: kind, Op: op, Err: err}
}

// ClassifyTxError tags a raw client error at the point it happened. Already tagged errors pass
// through unchanged.
func ClassifyTxError(op string, err error) error {
	if err == nil {
		return nil
	}

	var txErr *TxError
	if errors.As(err, &txErr) {
		return err
	}

	return NewTxError(op, kindOf(err), err)
}

func kindOf(err error) TxErrorKind {
	if errors.Is(err, ErrSignatureRejected) {
		return TxErrorUserRejected
	}
	if errors.Is(err, ErrTransactionReverted) {
		return TxErrorReverted
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return TxErrorNetwork
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeUserRejected:
			return TxErrorUserRejected
		case codeExecutionReverted:
			return TxErrorReverted
		}
	}
	return TxErrorNetwork
}

// KindOf returns the tag of a TxError, and false for untagged errors.
func KindOf(err error) (TxErrorKind, bool) {
	var txErr *TxError
	if errors.As(err, &txErr) {
		return txErr.Kind, true
	}
	return TxErrorNetwork, false
}

package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/telosbridge/lzbridge/bridge/router"
)

const defaultReceiptPollInterval = 2 * time.Second

// SignerBackend is the slice of ethclient a KeySigner needs.
type SignerBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// KeySigner is a Writer that signs locally with a private key.
type KeySigner struct {
	key          *ecdsa.PrivateKey
	from         common.Address
	backend      SignerBackend
	pollInterval time.Duration
}

// NewKeySigner parses a hex private key (with or without 0x) and binds it to a backend.
func NewKeySigner(hexKey string, backend SignerBackend) (*KeySigner, error) {
	if backend == nil {
		return nil, fmt.Errorf("signer backend is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &KeySigner{
		key:          key,
		from:         crypto.PubkeyToAddress(key.PublicKey),
		backend:      backend,
		pollInterval: defaultReceiptPollInterval,
	}, nil
}

// WithPollInterval overrides how often WaitForReceipt polls.
func (s *KeySigner) WithPollInterval(interval time.Duration) *KeySigner {
	if interval > 0 {
		s.pollInterval = interval
	}
	return s
}

// From returns the signing account.
func (s *KeySigner) From() common.Address {
	return s.from
}

// ChainID returns the chain the backend is connected to.
func (s *KeySigner) ChainID(ctx context.Context) (router.ChainId, error) {
	id, err := s.backend.ChainID(ctx)
	if err != nil {
		return 0, ClassifyTxError("chain_id", err)
	}
	return router.ChainId(id.Uint64()), nil
}

// SendTransaction builds, signs and submits req. London chains get a dynamic fee transaction,
// others a legacy one.
func (s *KeySigner) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	chainID, err := s.backend.ChainID(ctx)
	if err != nil {
		return common.Hash{}, ClassifyTxError("send", err)
	}
	nonce, err := s.backend.PendingNonceAt(ctx, s.from)
	if err != nil {
		return common.Hash{}, ClassifyTxError("send", fmt.Errorf("failed to get nonce: %w", err))
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To

	txData, err := s.buildTxData(ctx, chainID, nonce, &to, value, req.GasLimit, req.Data)
	if err != nil {
		return common.Hash{}, ClassifyTxError("send", err)
	}

	signed, err := types.SignNewTx(s.key, types.LatestSignerForChainID(chainID), txData)
	if err != nil {
		return common.Hash{}, NewTxError("send", TxErrorUserRejected, errors.Join(ErrSignatureRejected, err))
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, ClassifyTxError("send", err)
	}

	log.Info().
		Str("from", s.from.Hex()).
		Str("to", to.Hex()).
		Str("value", value.String()).
		Str("tx", signed.Hash().Hex()).
		Msg("Transaction submitted")
	return signed.Hash(), nil
}

func (s *KeySigner) buildTxData(ctx context.Context, chainID *big.Int, nonce uint64, to *common.Address, value *big.Int, gas uint64, data []byte) (types.TxData, error) {
	head, err := s.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}

	if head.BaseFee != nil {
		tip, err := s.backend.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to suggest gas tip: %w", err)
		}
		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		return &types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        to,
			Value:     value,
			Data:      data,
		}, nil
	}

	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}
	return &types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       to,
		Value:    value,
		Data:     data,
	}, nil
}

// WaitForReceipt polls until the transaction is mined or ctx is done.
func (s *KeySigner) WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == types.ReceiptStatusFailed {
				txErr := NewTxError("wait", TxErrorReverted, ErrTransactionReverted)
				txErr.Hash = hash
				return receipt, txErr
			}
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			txErr := NewTxError("wait", kindOf(err), err)
			txErr.Hash = hash
			return nil, txErr
		}

		select {
		case <-ctx.Done():
			txErr := NewTxError("wait", TxErrorNetwork, ctx.Err())
			txErr.Hash = hash
			return nil, txErr
		case <-ticker.C:
		}
	}
}

package chain_test

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/telosbridge/lzbridge/bridge/chain"
	"github.com/telosbridge/lzbridge/bridge/router"
	"github.com/zeebo/assert"
)

type codedError struct {
	code int
	msg  string
}

func (e codedError) Error() string  { return e.msg }
func (e codedError) ErrorCode() int { return e.code }

func TestClassifyTxError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want chain.TxErrorKind
	}{
		{"user rejected code", codedError{code: 4001, msg: "User rejected the request."}, chain.TxErrorUserRejected},
		{"execution reverted code", codedError{code: 3, msg: "execution reverted"}, chain.TxErrorReverted},
		{"other rpc code", codedError{code: -32000, msg: "nonce too low"}, chain.TxErrorNetwork},
		{"signature sentinel", fmt.Errorf("wallet: %w", chain.ErrSignatureRejected), chain.TxErrorUserRejected},
		{"revert sentinel", chain.ErrTransactionReverted, chain.TxErrorReverted},
		{"timeout", context.DeadlineExceeded, chain.TxErrorNetwork},
		{"transport", errors.New("dial tcp: connection refused"), chain.TxErrorNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := chain.ClassifyTxError("send", tt.err)
			kind, ok := chain.KindOf(err)
			assert.True(t, ok)
			assert.Equal(t, kind, tt.want)
			assert.True(t, errors.Is(err, tt.err))
		})
	}
}

func TestClassifyTxErrorPassesTaggedErrors(t *testing.T) {
	tagged := chain.NewTxError("approve", chain.TxErrorReverted, errors.New("boom"))
	assert.Equal(t, chain.ClassifyTxError("send", tagged), error(tagged))
	assert.Nil(t, chain.ClassifyTxError("send", nil))

	_, ok := chain.KindOf(errors.New("plain"))
	assert.False(t, ok)
}

type fakeBackend struct {
	mu         sync.Mutex
	chainID    int64
	baseFee    *big.Int
	sent       []*types.Transaction
	sendErr    error
	notFound   int
	status     uint64
	receiptErr error
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(f.chainID), nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(500_000_000_000), nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(100), BaseFee: f.baseFee}, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	if f.notFound > 0 {
		f.notFound--
		return nil, ethereum.NotFound
	}
	return &types.Receipt{TxHash: hash, Status: f.status, BlockNumber: big.NewInt(101)}, nil
}

func newTestSigner(t *testing.T, backend *fakeBackend) *chain.KeySigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	assert.NoError(t, err)

	signer, err := chain.NewKeySigner("0x"+hex.EncodeToString(crypto.FromECDSA(key)), backend)
	assert.NoError(t, err)
	assert.Equal(t, signer.From(), crypto.PubkeyToAddress(key.PublicKey))
	return signer.WithPollInterval(time.Millisecond)
}

func TestKeySignerDynamicFeeTx(t *testing.T) {
	backend := &fakeBackend{chainID: 40, baseFee: big.NewInt(10_000_000_000), status: types.ReceiptStatusSuccessful}
	signer := newTestSigner(t, backend)

	to := common.HexToAddress("0x9c5ebcbe8a6e5f3ab6a4c6e2a3c37e5f8e7d1d76")
	hash, err := signer.SendTransaction(context.Background(), chain.TxRequest{
		To:       to,
		Data:     []byte{0x01, 0x02},
		Value:    big.NewInt(1234),
		GasLimit: 500000,
	})
	assert.NoError(t, err)
	assert.Equal(t, len(backend.sent), 1)

	tx := backend.sent[0]
	assert.Equal(t, tx.Hash(), hash)
	assert.Equal(t, tx.Type(), uint8(types.DynamicFeeTxType))
	assert.Equal(t, tx.Gas(), uint64(500000))
	assert.Equal(t, tx.Value().String(), "1234")
	assert.Equal(t, *tx.To(), to)
	assert.Equal(t, tx.GasFeeCap().String(), "21000000000")

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(40)), tx)
	assert.NoError(t, err)
	assert.Equal(t, sender, signer.From())

	chainID, err := signer.ChainID(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, chainID, router.TelosChainId)
}

func TestKeySignerLegacyTx(t *testing.T) {
	backend := &fakeBackend{chainID: 40}
	signer := newTestSigner(t, backend)

	_, err := signer.SendTransaction(context.Background(), chain.TxRequest{To: common.HexToAddress("0x01"), GasLimit: 21000})
	assert.NoError(t, err)
	assert.Equal(t, backend.sent[0].Type(), uint8(types.LegacyTxType))
	assert.Equal(t, backend.sent[0].GasPrice().String(), "500000000000")
	assert.Equal(t, backend.sent[0].Value().Sign(), 0)
}

func TestKeySignerSendErrorIsTagged(t *testing.T) {
	backend := &fakeBackend{chainID: 40, sendErr: codedError{code: 3, msg: "execution reverted"}}
	signer := newTestSigner(t, backend)

	_, err := signer.SendTransaction(context.Background(), chain.TxRequest{To: common.HexToAddress("0x01")})
	kind, ok := chain.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, kind, chain.TxErrorReverted)
}

func TestKeySignerRejectsBadKey(t *testing.T) {
	_, err := chain.NewKeySigner("not-a-key", &fakeBackend{})
	assert.Error(t, err)

	_, err = chain.NewKeySigner("0x01", nil)
	assert.Error(t, err)
}

func TestWaitForReceipt(t *testing.T) {
	backend := &fakeBackend{chainID: 40, notFound: 3, status: types.ReceiptStatusSuccessful}
	signer := newTestSigner(t, backend)

	hash := common.HexToHash("0xabc")
	receipt, err := signer.WaitForReceipt(context.Background(), hash)
	assert.NoError(t, err)
	assert.Equal(t, receipt.TxHash, hash)
	assert.Equal(t, backend.notFound, 0)
}

func TestWaitForReceiptReverted(t *testing.T) {
	backend := &fakeBackend{chainID: 40, status: types.ReceiptStatusFailed}
	signer := newTestSigner(t, backend)

	receipt, err := signer.WaitForReceipt(context.Background(), common.HexToHash("0xdef"))
	assert.NotNil(t, receipt)
	assert.True(t, errors.Is(err, chain.ErrTransactionReverted))

	var txErr *chain.TxError
	assert.True(t, errors.As(err, &txErr))
	assert.Equal(t, txErr.Kind, chain.TxErrorReverted)
	assert.Equal(t, txErr.Hash, common.HexToHash("0xdef"))
}

func TestWaitForReceiptContextDone(t *testing.T) {
	backend := &fakeBackend{chainID: 40, notFound: 1 << 30}
	signer := newTestSigner(t, backend)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := signer.WaitForReceipt(ctx, common.HexToHash("0x01"))
	kind, ok := chain.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, kind, chain.TxErrorNetwork)
}

func TestStaticSwitcher(t *testing.T) {
	signer := newTestSigner(t, &fakeBackend{chainID: 40})
	switcher := chain.NewStaticSwitcher(signer)

	assert.NoError(t, switcher.SwitchToChain(context.Background(), router.TelosChainId))
	assert.Error(t, switcher.SwitchToChain(context.Background(), 1))
}

func TestProviderUnknownChain(t *testing.T) {
	provider := chain.NewProvider([]chain.Endpoint{{Chain: 40, PrimaryURL: "http://127.0.0.1:0"}}, time.Millisecond, time.Millisecond)
	defer provider.Close()

	_, err := provider.Reader(1)
	assert.Error(t, err)
	assert.Equal(t, len(provider.Chains()), 1)
}

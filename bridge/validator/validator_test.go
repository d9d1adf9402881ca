package validator_test

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/telosbridge/lzbridge/bridge/chain"
	"github.com/telosbridge/lzbridge/bridge/router"
	"github.com/telosbridge/lzbridge/bridge/validator"
	"github.com/zeebo/assert"
)

type fakeNode struct {
	chainID uint64
	height  uint64
	// fork changes the hash of every block the node serves
	fork    string
	dialErr error
}

func (n *fakeNode) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).SetUint64(n.chainID), nil
}

func (n *fakeNode) BlockNumber(context.Context) (uint64, error) {
	return n.height, nil
}

func (n *fakeNode) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	if number.Uint64() > n.height {
		return nil, errors.New("not found")
	}
	return &types.Header{
		Number:     new(big.Int).Set(number),
		Difficulty: big.NewInt(0),
		Extra:      []byte(n.fork),
	}, nil
}

func (n *fakeNode) Close() {}

func dialer(nodes map[string]*fakeNode) validator.DialFunc {
	return func(_ context.Context, rpcURL string) (validator.Prober, error) {
		node, ok := nodes[rpcURL]
		if !ok {
			return nil, errors.New("connection refused")
		}
		if node.dialErr != nil {
			return nil, node.dialErr
		}
		return node, nil
	}
}

func fixedHeights(heights ...uint64) validator.Option {
	return validator.WithSampleHeights(func(uint64) []uint64 { return heights })
}

func newValidator(nodes map[string]*fakeNode) *validator.Validator {
	return validator.New(dialer(nodes), time.Second,
		validator.WithRetry(0, 0),
		fixedHeights(900, 901, 902, 903, 904),
	)
}

func TestValidateChainAllAgree(t *testing.T) {
	nodes := map[string]*fakeNode{
		"https://a": {chainID: 40, height: 1000},
		"https://b": {chainID: 40, height: 1000},
		"https://c": {chainID: 40, height: 990},
	}

	result := newValidator(nodes).ValidateChain(context.Background(), 40, []string{"https://a", "https://b", "https://c"})
	assert.Equal(t, len(result), 3)
	for _, ep := range result {
		assert.True(t, ep.Valid)
		assert.Equal(t, ep.Points, 100)
		assert.Equal(t, ep.ChainId, router.ChainId(40))
		assert.Equal(t, ep.Reason, "")
	}
	assert.Equal(t, result[2].URL, "https://c")
	assert.Equal(t, result[2].Height, uint64(990))
}

func TestValidateChainRejectsWrongChain(t *testing.T) {
	nodes := map[string]*fakeNode{
		"https://telos":    {chainID: 40, height: 1000},
		"https://ethereum": {chainID: 1, height: 1000},
	}

	result := newValidator(nodes).ValidateChain(context.Background(), 40, []string{"https://telos", "https://ethereum"})
	assert.True(t, result[0].Valid)
	assert.False(t, result[1].Valid)
	assert.True(t, strings.Contains(result[1].Reason, "serves chain 1"))
}

func TestValidateChainRejectsUnreachable(t *testing.T) {
	nodes := map[string]*fakeNode{
		"https://a": {chainID: 40, height: 1000},
	}

	result := newValidator(nodes).ValidateChain(context.Background(), 40, []string{"https://a", "https://down"})
	assert.True(t, result[0].Valid)
	assert.False(t, result[1].Valid)
	assert.True(t, strings.Contains(result[1].Reason, "connection refused"))
}

func TestValidateChainPenalizesMinorityFork(t *testing.T) {
	nodes := map[string]*fakeNode{
		"https://a":    {chainID: 40, height: 1000},
		"https://b":    {chainID: 40, height: 1000},
		"https://fork": {chainID: 40, height: 1000, fork: "other"},
	}

	result := newValidator(nodes).ValidateChain(context.Background(), 40, []string{"https://a", "https://b", "https://fork"})
	assert.True(t, result[0].Valid)
	assert.True(t, result[1].Valid)
	assert.Equal(t, result[0].Points, 100)

	fork := result[2]
	assert.Equal(t, fork.Points, 50)
	assert.False(t, fork.Valid)
	assert.True(t, strings.Contains(fork.Reason, "below 60"))
}

func TestValidateChainPenalizesLag(t *testing.T) {
	nodes := map[string]*fakeNode{
		"https://a":    {chainID: 40, height: 1000},
		"https://slow": {chainID: 40, height: 902},
	}

	result := newValidator(nodes).ValidateChain(context.Background(), 40, []string{"https://a", "https://slow"})
	assert.Equal(t, result[0].Points, 100)

	// 98 blocks behind and missing blocks 903 and 904
	slow := result[1]
	assert.Equal(t, slow.Points, 60)
	assert.True(t, slow.Valid)
}

func TestValidateChainSingleEndpoint(t *testing.T) {
	nodes := map[string]*fakeNode{"https://a": {chainID: 40, height: 10}}

	result := validator.New(dialer(nodes), time.Second, validator.WithRetry(0, 0)).
		ValidateChain(context.Background(), 40, []string{"https://a"})
	assert.True(t, result[0].Valid)
	assert.Equal(t, result[0].Points, 100)
}

func TestFilterEndpoints(t *testing.T) {
	nodes := map[string]*fakeNode{
		"https://telos-wrong": {chainID: 41, height: 1000},
		"https://telos-a":     {chainID: 40, height: 1000},
		"https://telos-b":     {chainID: 40, height: 1000},
		"https://base":        {chainID: 8453, height: 1000},
	}
	endpoints := []chain.Endpoint{
		{Chain: 40, Name: "Telos", PrimaryURL: "https://telos-wrong", FallbackURLs: []string{"https://telos-a", "https://telos-b"}},
		{Chain: 1, Name: "Ethereum", PrimaryURL: "https://eth-down"},
		{Chain: 8453, Name: "Base", PrimaryURL: "https://base"},
	}

	filtered, reports := newValidator(nodes).FilterEndpoints(context.Background(), endpoints)

	assert.Equal(t, len(filtered), 2)
	assert.Equal(t, filtered[0].Chain, router.ChainId(40))
	assert.Equal(t, filtered[0].PrimaryURL, "https://telos-a")
	assert.DeepEqual(t, filtered[0].FallbackURLs, []string{"https://telos-b"})
	assert.Equal(t, filtered[1].Chain, router.ChainId(8453))
	assert.Equal(t, len(filtered[1].FallbackURLs), 0)

	assert.Equal(t, len(reports), 3)
	assert.True(t, reports[0].Healthy())
	assert.False(t, reports[1].Healthy())
	assert.Equal(t, reports[1].Name, "Ethereum")
	assert.True(t, reports[2].Healthy())
}

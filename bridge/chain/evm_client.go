package chain

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/telosbridge/lzbridge/bridge/router"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "chain").Logger()
}

const (
	defaultConnectionTimeout = 10 * time.Second
	defaultCallTimeout       = 15 * time.Second
)

// Endpoint describes how to reach one chain.
type Endpoint struct {
	Chain        router.ChainId
	Name         string
	PrimaryURL   string
	FallbackURLs []string
}

// EVMClient is an ethclient-backed Reader. It also exposes the calls KeySigner needs.
type EVMClient struct {
	eth         *ethclient.Client
	endpoint    Endpoint
	rpcURL      string
	callTimeout time.Duration
}

// NewEVMClient dials the primary RPC and then each fallback until one answers with the
// expected chain id.
func NewEVMClient(ctx context.Context, endpoint Endpoint, connectionTimeout, callTimeout time.Duration) (*EVMClient, error) {
	if connectionTimeout <= 0 {
		connectionTimeout = defaultConnectionTimeout
	}
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}

	rpcURLs := append([]string{endpoint.PrimaryURL}, endpoint.FallbackURLs...)
	var lastErr error

	for _, rpcURL := range rpcURLs {
		if rpcURL == "" {
			continue
		}
		dialCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
		client, err := ethclient.DialContext(dialCtx, rpcURL)
		if err != nil {
			cancel()
			lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
			continue
		}

		chainID, err := client.ChainID(dialCtx)
		cancel()
		if err != nil {
			client.Close()
			lastErr = fmt.Errorf("failed to verify chain id on %s: %w", rpcURL, err)
			continue
		}
		if chainID.Uint64() != uint64(endpoint.Chain) {
			client.Close()
			lastErr = fmt.Errorf("chain id mismatch on %s: expected %d, got %s", rpcURL, endpoint.Chain, chainID)
			continue
		}

		log.Debug().
			Uint64("chain", uint64(endpoint.Chain)).
			Str("rpc", rpcURL).
			Msg("Connected EVM client")
		return &EVMClient{
			eth:         client,
			endpoint:    endpoint,
			rpcURL:      rpcURL,
			callTimeout: callTimeout,
		}, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no RPC URL configured")
	}
	return nil, fmt.Errorf("all RPC connection attempts failed for chain %d: %w", endpoint.Chain, lastErr)
}

// ChainID returns the chain the client was verified against.
func (c *EVMClient) ChainID() router.ChainId {
	return c.endpoint.Chain
}

// URL returns the RPC the client is connected to.
func (c *EVMClient) URL() string {
	return c.rpcURL
}

// CallContract runs eth_call against the latest block.
func (c *EVMClient) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	out, err := c.eth.CallContract(callCtx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("eth_call to %s on chain %d: %w", to.Hex(), c.endpoint.Chain, err)
	}
	return out, nil
}

// Backend exposes the underlying client for signers.
func (c *EVMClient) Backend() SignerBackend {
	return c.eth
}

// BalanceAt returns the native balance of an account.
func (c *EVMClient) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return c.eth.BalanceAt(callCtx, account, nil)
}

// TransactionReceipt fetches a receipt without waiting.
func (c *EVMClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return c.eth.TransactionReceipt(callCtx, hash)
}

// Close releases the RPC connection.
func (c *EVMClient) Close() {
	c.eth.Close()
}

package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/telosbridge/lzbridge/bridge/router"
)

// Provider lazily dials and caches one EVMClient per chain.
type Provider struct {
	endpoints         map[router.ChainId]Endpoint
	clients           map[router.ChainId]*EVMClient
	mu                sync.Mutex
	connectionTimeout time.Duration
	callTimeout       time.Duration
}

// NewProvider creates a provider for the given endpoints.
func NewProvider(endpoints []Endpoint, connectionTimeout, callTimeout time.Duration) *Provider {
	byChain := make(map[router.ChainId]Endpoint, len(endpoints))
	for _, endpoint := range endpoints {
		byChain[endpoint.Chain] = endpoint
	}
	return &Provider{
		endpoints:         byChain,
		clients:           make(map[router.ChainId]*EVMClient),
		connectionTimeout: connectionTimeout,
		callTimeout:       callTimeout,
	}
}

// Reader implements ReaderProvider.
func (p *Provider) Reader(chain router.ChainId) (Reader, error) {
	client, err := p.Client(context.Background(), chain)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Client returns the cached client for a chain, dialing it on first use.
func (p *Provider) Client(ctx context.Context, chain router.ChainId) (*EVMClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, exists := p.clients[chain]; exists {
		return client, nil
	}

	endpoint, ok := p.endpoints[chain]
	if !ok {
		return nil, fmt.Errorf("no RPC endpoint configured for chain %d", chain)
	}

	log.Info().
		Uint64("chain", uint64(chain)).
		Str("rpc_primary", endpoint.PrimaryURL).
		Msg("Creating new EVM client")
	client, err := NewEVMClient(ctx, endpoint, p.connectionTimeout, p.callTimeout)
	if err != nil {
		log.Error().Err(err).Uint64("chain", uint64(chain)).Msg("Failed to create EVM client")
		return nil, fmt.Errorf("failed to create EVM client for chain %d: %w", chain, err)
	}

	p.clients[chain] = client
	return client, nil
}

// Chains returns the chains with a configured endpoint.
func (p *Provider) Chains() []router.ChainId {
	out := make([]router.ChainId, 0, len(p.endpoints))
	for chain := range p.endpoints {
		out = append(out, chain)
	}
	return out
}

// Close closes every dialed client.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for chain, client := range p.clients {
		client.Close()
		delete(p.clients, chain)
	}
}

package chain

import (
	"context"
	"fmt"

	"github.com/telosbridge/lzbridge/bridge/router"
)

// ChainIDer reports the chain a signer is bound to.
type ChainIDer interface {
	ChainID(ctx context.Context) (router.ChainId, error)
}

// StaticSwitcher is the NetworkSwitcher for signers bound to a single RPC. It succeeds only when
// the signer is already on the requested chain.
type StaticSwitcher struct {
	signer ChainIDer
}

// NewStaticSwitcher wraps signer.
func NewStaticSwitcher(signer ChainIDer) *StaticSwitcher {
	return &StaticSwitcher{signer: signer}
}

// SwitchToChain returns an error unless the signer is already on chain.
func (s *StaticSwitcher) SwitchToChain(ctx context.Context, chain router.ChainId) error {
	current, err := s.signer.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read signer chain: %w", err)
	}
	if current != chain {
		return fmt.Errorf("signer is bound to chain %d and cannot switch to %d", current, chain)
	}
	return nil
}

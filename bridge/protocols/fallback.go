package protocols

import (
	"math/big"

	"github.com/telosbridge/lzbridge/bridge/codec"
	"github.com/telosbridge/lzbridge/bridge/router"
)

// CostProfile is the historical fee shape of one messaging protocol generation. Units are whole
// TLOS, the native currency of every send leaving Telos.
type CostProfile struct {
	Name string
	// SourceFees replace the TLOS units when the send leaves another chain. Values are human
	// decimal amounts of that chain's native currency.
	SourceFees map[router.ChainId]string
	// ExpensiveChains override every tier when either side of the route is one of them.
	ExpensiveChains []router.ChainId
	ExpensiveUnits  int64
	// Tiers are keyed by destination protocol chain id.
	Tiers        map[router.ProtocolChainId]int64
	DefaultUnits int64
}

// FeeFallbackPolicy substitutes a conservative static fee when the live quote is unavailable.
// Values are over-estimates; the protocol refunds the excess.
type FeeFallbackPolicy struct {
	profile CostProfile
}

// NewFeeFallbackPolicy builds a policy for profile.
func NewFeeFallbackPolicy(profile CostProfile) FeeFallbackPolicy {
	return FeeFallbackPolicy{profile: profile}
}

// LayerZeroV2Profile covers OFT and Stargate V2 sends.
var LayerZeroV2Profile = CostProfile{
	Name:            "layerzero_v2",
	ExpensiveChains: []router.ChainId{1},
	ExpensiveUnits:  300,
	DefaultUnits:    20,
	SourceFees: map[router.ChainId]string{
		1:     "0.05", // ETH
		10:    "0.01", // ETH
		56:    "0.05", // BNB
		137:   "100",  // POL
		8453:  "0.01", // ETH
		42161: "0.01", // ETH
		43114: "2",    // AVAX
		59144: "0.01", // ETH
	},
}

// LayerZeroV1WrappedProfile covers the V1 wrapped bridge leaving Telos.
var LayerZeroV1WrappedProfile = CostProfile{
	Name: "layerzero_v1_wrapped",
	Tiers: map[router.ProtocolChainId]int64{
		184: 10,  // Base
		110: 49,  // Arbitrum
		102: 49,  // BSC
		109: 49,  // Polygon
		106: 48,  // Avalanche
		101: 227, // Ethereum
	},
	DefaultUnits: 50,
}

// Profile returns the configured cost profile.
func (p FeeFallbackPolicy) Profile() CostProfile {
	return p.profile
}

// Fallback returns the static fee in native base units (18 decimals) of srcChain.
func (p FeeFallbackPolicy) Fallback(srcChain, dstChain router.ChainId, dstProtocolId router.ProtocolChainId) *big.Int {
	if fee, ok := p.profile.SourceFees[srcChain]; ok {
		if wei, err := codec.HumanToBaseUnits(fee, 18); err == nil {
			return wei
		}
	}
	for _, expensive := range p.profile.ExpensiveChains {
		if srcChain == expensive || dstChain == expensive {
			return codec.NativeUnits(p.profile.ExpensiveUnits)
		}
	}
	if units, ok := p.profile.Tiers[dstProtocolId]; ok {
		return codec.NativeUnits(units)
	}
	return codec.NativeUnits(p.profile.DefaultUnits)
}

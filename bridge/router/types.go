package router

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// ChainId is a public EVM chain id (1, 40, 8453, ...).
type ChainId uint64

// TelosChainId is the home chain of every mechanism in the default registry.
const TelosChainId ChainId = 40

func (c ChainId) String() string {
	if name, ok := ChainNames[c]; ok {
		return name
	}
	return strconv.FormatUint(uint64(c), 10)
}

// ProtocolChainId is a chain id in a messaging protocol's own numbering
// (LayerZero V2 endpoint ids, LayerZero V1 chain ids).
type ProtocolChainId uint32

// ProtocolTable maps public chain ids to one protocol generation's chain ids.
type ProtocolTable map[ChainId]ProtocolChainId

// Mechanism names one cross-chain transfer contract generation.
type Mechanism string

const (
	// MechanismNativeOFT moves the chain's native asset through a LayerZero V2 native OFT adapter.
	MechanismNativeOFT Mechanism = "native_oft"
	// MechanismOFTAdapter moves an ERC-20 through plain LayerZero V2 OFT contracts (1:1).
	MechanismOFTAdapter Mechanism = "oft_adapter"
	// MechanismStargatePool moves an ERC-20 through Stargate V2 pools (pooled liquidity).
	MechanismStargatePool Mechanism = "stargate_pool"
	// MechanismWrappedBridge moves wrapped tokens out of Telos through the LayerZero V1 wrapped bridge.
	MechanismWrappedBridge Mechanism = "wrapped_bridge"
)

// MechanismPriority is the order the classifier evaluates mechanisms in. The first mechanism
// whose registry can carry a (token, from, to) triple wins. New mechanism generations are
// inserted here.
var MechanismPriority = []Mechanism{
	MechanismNativeOFT,
	MechanismOFTAdapter,
	MechanismStargatePool,
	MechanismWrappedBridge,
}

// Direction restricts which peer pairs of a token config form a route.
type Direction int

const (
	// DirectionAny allows any two chains with peers.
	DirectionAny Direction = iota
	// DirectionViaHome requires one side of the route to be the home chain.
	DirectionViaHome
	// DirectionFromHome only allows routes leaving the home chain.
	DirectionFromHome
)

// Peer is the per-chain deployment of a token route.
type Peer struct {
	// Contract is called to quote and send on this chain.
	Contract common.Address
	// Token is the ERC-20 the sender approves to Contract before sending. Zero when the
	// contract moves the sender's balance itself (OFT burn) or the asset is native.
	Token common.Address
	// Native marks peers where the asset travels in the transaction value.
	Native bool
	// ResolvePoolToken marks pool peers whose approval token is read from Contract.token().
	ResolvePoolToken bool
}

// NeedsApproval reports whether sending from this peer may need an ERC-20 approval step.
func (p Peer) NeedsApproval() bool {
	if p.Native {
		return false
	}
	return p.ResolvePoolToken || p.Token != (common.Address{})
}

// TokenRouteConfig describes one token within one mechanism.
type TokenRouteConfig struct {
	Mechanism Mechanism
	Symbol    string
	Decimals  uint8
	// SharedDecimals is the precision an OFT carries across chains. Zero disables dust removal.
	SharedDecimals uint8
	// Pooled marks liquidity pool routes with independent fees and slippage.
	Pooled    bool
	HomeChain ChainId
	Direction Direction
	Peers     map[ChainId]Peer
}

// MechanismConfig is the build input for one mechanism generation.
type MechanismConfig struct {
	Mechanism Mechanism
	Protocol  ProtocolTable
	Tokens    []TokenRouteConfig
}

// Endpoint is one resolved side of a route.
type Endpoint struct {
	Chain           ChainId
	ProtocolChainId ProtocolChainId
	Peer            Peer
}

// RouteClassification is the resolved mechanism for a (token, from, to) triple.
type RouteClassification struct {
	Mechanism   Mechanism
	Token       TokenRouteConfig
	Source      Endpoint
	Destination Endpoint
}

// Pooled reports whether the route goes through a liquidity pool.
func (rc *RouteClassification) Pooled() bool {
	return rc.Token.Pooled
}

// SourceIsNative reports whether the sent asset is the source chain's native currency.
func (rc *RouteClassification) SourceIsNative() bool {
	return rc.Source.Peer.Native
}

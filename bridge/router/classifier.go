package router

import (
	"slices"
)

// Classifier resolves which mechanism, if any, carries a (token, from, to) triple.
// It never performs I/O: all answers come from the injected registry.
type Classifier struct {
	registry *RouteRegistry
	priority []Mechanism
}

// NewClassifier creates a classifier that evaluates mechanisms in MechanismPriority order.
func NewClassifier(registry *RouteRegistry) *Classifier {
	return NewClassifierWithPriority(registry, MechanismPriority)
}

// NewClassifierWithPriority creates a classifier with a custom evaluation order.
func NewClassifierWithPriority(registry *RouteRegistry, priority []Mechanism) *Classifier {
	return &Classifier{
		registry: registry,
		priority: slices.Clone(priority),
	}
}

// Registry returns the registry the classifier reads from.
func (c *Classifier) Registry() *RouteRegistry {
	return c.registry
}

// Priority returns the evaluation order.
func (c *Classifier) Priority() []Mechanism {
	return slices.Clone(c.priority)
}

// Classify returns the first mechanism in priority order able to move token from one chain to
// the other, or nil when no direct mechanism applies.
func (c *Classifier) Classify(token string, fromChain, toChain ChainId) *RouteClassification {
	if c == nil || c.registry == nil || fromChain == toChain {
		return nil
	}

	for _, mechanism := range c.priority {
		if rc := c.classifyWith(mechanism, token, fromChain, toChain); rc != nil {
			return rc
		}
	}
	return nil
}

// Candidates returns every mechanism able to carry the triple, in priority order.
// Classify always picks the first one.
func (c *Classifier) Candidates(token string, fromChain, toChain ChainId) []Mechanism {
	if c == nil || c.registry == nil || fromChain == toChain {
		return nil
	}

	var out []Mechanism
	for _, mechanism := range c.priority {
		if c.classifyWith(mechanism, token, fromChain, toChain) != nil {
			out = append(out, mechanism)
		}
	}
	return out
}

// Routes enumerates every chain pair the token can be bridged on with a direct mechanism,
// sorted by source then destination chain.
func (c *Classifier) Routes(token string) []RouteClassification {
	if c == nil || c.registry == nil {
		return nil
	}

	chains := c.registry.TokenChains(token)
	var out []RouteClassification
	for _, from := range chains {
		for _, to := range chains {
			if rc := c.Classify(token, from, to); rc != nil {
				out = append(out, *rc)
			}
		}
	}
	return out
}

func (c *Classifier) classifyWith(mechanism Mechanism, token string, fromChain, toChain ChainId) *RouteClassification {
	config, ok := c.registry.Token(mechanism, token)
	if !ok {
		return nil
	}

	sourcePeer, ok := config.Peers[fromChain]
	if !ok {
		return nil
	}
	destinationPeer, ok := config.Peers[toChain]
	if !ok {
		return nil
	}
	if !directionAllows(config, fromChain, toChain) {
		return nil
	}

	sourceId, ok := c.registry.ProtocolChainId(mechanism, fromChain)
	if !ok {
		return nil
	}
	destinationId, ok := c.registry.ProtocolChainId(mechanism, toChain)
	if !ok {
		return nil
	}

	return &RouteClassification{
		Mechanism: mechanism,
		Token:     config,
		Source: Endpoint{
			Chain:           fromChain,
			ProtocolChainId: sourceId,
			Peer:            sourcePeer,
		},
		Destination: Endpoint{
			Chain:           toChain,
			ProtocolChainId: destinationId,
			Peer:            destinationPeer,
		},
	}
}

func directionAllows(config TokenRouteConfig, fromChain, toChain ChainId) bool {
	switch config.Direction {
	case DirectionViaHome:
		return fromChain == config.HomeChain || toChain == config.HomeChain
	case DirectionFromHome:
		return fromChain == config.HomeChain
	default:
		return true
	}
}

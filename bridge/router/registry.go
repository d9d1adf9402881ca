package router

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

var registryLog zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	registryLog = zerolog.New(out).With().Timestamp().Str("component", "registry").Logger()
}

// maxDecimals bounds token decimals to what fits the codec and on-chain uint8.
const maxDecimals = 36

// RouteRegistry holds every mechanism's token peers and protocol chain ids.
// It is built once and read-only afterwards, so it can be shared between goroutines.
type RouteRegistry struct {
	mechanisms map[Mechanism]*mechanismEntry
}

type mechanismEntry struct {
	protocol ProtocolTable
	tokens   map[string]*TokenRouteConfig // upper-case symbol -> config
}

// NewRouteRegistry creates an empty registry.
func NewRouteRegistry() *RouteRegistry {
	return &RouteRegistry{
		mechanisms: make(map[Mechanism]*mechanismEntry),
	}
}

// BuildRegistry validates and indexes the given mechanism configs.
func (r *RouteRegistry) BuildRegistry(configs []MechanismConfig) error {
	if len(configs) == 0 {
		return fmt.Errorf("no mechanisms to build registry for")
	}

	for _, mc := range configs {
		if mc.Mechanism == "" {
			return fmt.Errorf("mechanism name is required")
		}
		if _, exists := r.mechanisms[mc.Mechanism]; exists {
			return fmt.Errorf("mechanism %s registered twice", mc.Mechanism)
		}
		if len(mc.Protocol) == 0 {
			return fmt.Errorf("mechanism %s has no protocol chain ids", mc.Mechanism)
		}

		entry := &mechanismEntry{
			protocol: maps.Clone(mc.Protocol),
			tokens:   make(map[string]*TokenRouteConfig, len(mc.Tokens)),
		}

		for _, token := range mc.Tokens {
			if err := validateToken(mc.Mechanism, entry.protocol, token); err != nil {
				return err
			}
			key := normalizeSymbol(token.Symbol)
			if _, exists := entry.tokens[key]; exists {
				return fmt.Errorf("mechanism %s: token %s registered twice", mc.Mechanism, token.Symbol)
			}

			tokenCopy := token
			tokenCopy.Mechanism = mc.Mechanism
			tokenCopy.Peers = maps.Clone(token.Peers)
			entry.tokens[key] = &tokenCopy
		}

		r.mechanisms[mc.Mechanism] = entry
		registryLog.Debug().
			Str("mechanism", string(mc.Mechanism)).
			Int("tokens", len(entry.tokens)).
			Int("chains", len(entry.protocol)).
			Msg("Registered mechanism")
	}

	return nil
}

func validateToken(mechanism Mechanism, protocol ProtocolTable, token TokenRouteConfig) error {
	if strings.TrimSpace(token.Symbol) == "" {
		return fmt.Errorf("mechanism %s: token symbol is required", mechanism)
	}
	if token.Decimals > maxDecimals {
		return fmt.Errorf("mechanism %s: token %s decimals %d out of range", mechanism, token.Symbol, token.Decimals)
	}
	if token.SharedDecimals > token.Decimals {
		return fmt.Errorf("mechanism %s: token %s shared decimals exceed decimals", mechanism, token.Symbol)
	}
	if len(token.Peers) < 2 {
		return fmt.Errorf("mechanism %s: token %s needs peers on at least two chains", mechanism, token.Symbol)
	}
	if token.Direction != DirectionAny {
		if _, ok := token.Peers[token.HomeChain]; !ok {
			return fmt.Errorf("mechanism %s: token %s has no peer on home chain %d", mechanism, token.Symbol, token.HomeChain)
		}
	}

	for chain, peer := range token.Peers {
		if peer.Contract == (common.Address{}) {
			return fmt.Errorf("mechanism %s: token %s has a zero contract on chain %d", mechanism, token.Symbol, chain)
		}
		if _, ok := protocol[chain]; !ok {
			return fmt.Errorf("mechanism %s: token %s peer on chain %d has no protocol chain id", mechanism, token.Symbol, chain)
		}
	}
	return nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Mechanisms returns the registered mechanisms in priority order followed by any others sorted by name.
func (r *RouteRegistry) Mechanisms() []Mechanism {
	out := make([]Mechanism, 0, len(r.mechanisms))
	for _, m := range MechanismPriority {
		if _, ok := r.mechanisms[m]; ok {
			out = append(out, m)
		}
	}
	var rest []Mechanism
	for m := range r.mechanisms {
		if !slices.Contains(MechanismPriority, m) {
			rest = append(rest, m)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

// Token returns a copy of the route config of a token symbol for one mechanism.
func (r *RouteRegistry) Token(mechanism Mechanism, symbol string) (TokenRouteConfig, bool) {
	entry, ok := r.mechanisms[mechanism]
	if !ok {
		return TokenRouteConfig{}, false
	}
	token, ok := entry.tokens[normalizeSymbol(symbol)]
	if !ok {
		return TokenRouteConfig{}, false
	}
	out := *token
	out.Peers = maps.Clone(token.Peers)
	return out, true
}

// ProtocolChainId translates a public chain id into the mechanism's protocol numbering.
func (r *RouteRegistry) ProtocolChainId(mechanism Mechanism, chain ChainId) (ProtocolChainId, bool) {
	entry, ok := r.mechanisms[mechanism]
	if !ok {
		return 0, false
	}
	id, ok := entry.protocol[chain]
	return id, ok
}

// HasPeer reports whether the mechanism can reach the token on the given chain.
func (r *RouteRegistry) HasPeer(mechanism Mechanism, symbol string, chain ChainId) bool {
	entry, ok := r.mechanisms[mechanism]
	if !ok {
		return false
	}
	token, ok := entry.tokens[normalizeSymbol(symbol)]
	if !ok {
		return false
	}
	_, ok = token.Peers[chain]
	return ok
}

// Tokens returns the sorted token symbols of a mechanism.
func (r *RouteRegistry) Tokens(mechanism Mechanism) []string {
	entry, ok := r.mechanisms[mechanism]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(entry.tokens))
	for _, token := range entry.tokens {
		out = append(out, token.Symbol)
	}
	slices.Sort(out)
	return out
}

// Chains returns the sorted chains that have a protocol chain id for the mechanism.
func (r *RouteRegistry) Chains(mechanism Mechanism) []ChainId {
	entry, ok := r.mechanisms[mechanism]
	if !ok {
		return nil
	}
	out := make([]ChainId, 0, len(entry.protocol))
	for chain := range entry.protocol {
		out = append(out, chain)
	}
	slices.Sort(out)
	return out
}

// TokenChains returns the sorted chains where any mechanism has a peer for the symbol.
func (r *RouteRegistry) TokenChains(symbol string) []ChainId {
	seen := make(map[ChainId]bool)
	for _, entry := range r.mechanisms {
		token, ok := entry.tokens[normalizeSymbol(symbol)]
		if !ok {
			continue
		}
		for chain := range token.Peers {
			seen[chain] = true
		}
	}
	out := make([]ChainId, 0, len(seen))
	for chain := range seen {
		out = append(out, chain)
	}
	slices.Sort(out)
	return out
}

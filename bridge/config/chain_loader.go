package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pelletier/go-toml/v2"
	"github.com/telosbridge/lzbridge/bridge/chain"
	"github.com/telosbridge/lzbridge/bridge/router"
)

// ChainConfigLoader loads chain configurations and turns them into RPC endpoints and a route
// registry.
type ChainConfigLoader struct{}

// NewChainConfigLoader creates a new chain config loader.
func NewChainConfigLoader() *ChainConfigLoader {
	return &ChainConfigLoader{}
}

// LoadFromFile loads a chains config from a .toml or .json file.
func (l *ChainConfigLoader) LoadFromFile(filePath string) (*ChainsConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain config file: %w", err)
	}

	var config ChainsConfig
	if strings.HasSuffix(filePath, ".json") {
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	} else {
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	}

	if err := l.Validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks chain ids, RPC URLs and override addresses.
func (l *ChainConfigLoader) Validate(config *ChainsConfig) error {
	if config == nil || len(config.Chains) == 0 {
		return fmt.Errorf("no chains in config")
	}

	seen := make(map[uint64]bool, len(config.Chains))
	for _, c := range config.Chains {
		if c.Id == 0 {
			return fmt.Errorf("chain %q: id is required", c.Name)
		}
		if seen[c.Id] {
			return fmt.Errorf("chain %d listed twice", c.Id)
		}
		seen[c.Id] = true
		if len(c.RPCURLs) == 0 {
			return fmt.Errorf("chain %d: rpc_urls is required", c.Id)
		}
		for _, u := range c.RPCURLs {
			if u == "" {
				return fmt.Errorf("chain %d: rpc_urls must not contain empty entries", c.Id)
			}
		}
	}

	for i, o := range config.Overrides {
		if o.Mechanism == "" || o.Token == "" || o.Chain == 0 {
			return fmt.Errorf("override %d: mechanism, token and chain are required", i)
		}
		if !common.IsHexAddress(o.Contract) {
			return fmt.Errorf("override %d: contract %q is not an address", i, o.Contract)
		}
		if o.TokenAddress != "" && !common.IsHexAddress(o.TokenAddress) {
			return fmt.Errorf("override %d: token_address %q is not an address", i, o.TokenAddress)
		}
	}
	return nil
}

// Endpoints converts the chain list to chain.Endpoint values for a chain.Provider.
func (l *ChainConfigLoader) Endpoints(config *ChainsConfig) []chain.Endpoint {
	endpoints := make([]chain.Endpoint, 0, len(config.Chains))
	for _, c := range config.Chains {
		name := c.Name
		if name == "" {
			name = router.ChainId(c.Id).String()
		}
		endpoints = append(endpoints, chain.Endpoint{
			Chain:        router.ChainId(c.Id),
			Name:         name,
			PrimaryURL:   c.RPCURLs[0],
			FallbackURLs: append([]string(nil), c.RPCURLs[1:]...),
		})
	}
	return endpoints
}

// MechanismConfigs returns the built-in mechanism configs with the overrides applied.
func (l *ChainConfigLoader) MechanismConfigs(config *ChainsConfig) ([]router.MechanismConfig, error) {
	configs := router.DefaultMechanismConfigs()
	if config == nil {
		return configs, nil
	}

	for i, o := range config.Overrides {
		if err := applyOverride(configs, o); err != nil {
			return nil, fmt.Errorf("override %d: %w", i, err)
		}
	}
	return configs, nil
}

func applyOverride(configs []router.MechanismConfig, o PeerOverride) error {
	for m := range configs {
		mc := &configs[m]
		if mc.Mechanism != router.Mechanism(o.Mechanism) {
			continue
		}

		for t := range mc.Tokens {
			token := &mc.Tokens[t]
			if !strings.EqualFold(token.Symbol, o.Token) {
				continue
			}

			chainID := router.ChainId(o.Chain)
			if _, ok := mc.Protocol[chainID]; !ok && o.ProtocolChainId == 0 {
				return fmt.Errorf("chain %d has no protocol chain id for %s", o.Chain, o.Mechanism)
			}
			// the default tables are shared package state
			if o.ProtocolChainId != 0 {
				protocol := maps.Clone(mc.Protocol)
				protocol[chainID] = router.ProtocolChainId(o.ProtocolChainId)
				mc.Protocol = protocol
			}

			peers := maps.Clone(token.Peers)
			peer := router.Peer{
				Contract:         common.HexToAddress(o.Contract),
				Native:           o.Native,
				ResolvePoolToken: o.ResolvePoolToken,
			}
			if o.TokenAddress != "" {
				peer.Token = common.HexToAddress(o.TokenAddress)
			}
			peers[chainID] = peer
			token.Peers = peers
			return nil
		}
		return fmt.Errorf("token %s not found in %s", o.Token, o.Mechanism)
	}
	return fmt.Errorf("unknown mechanism %q", o.Mechanism)
}

// BuildRegistry builds the route registry from the built-in tables plus overrides.
func (l *ChainConfigLoader) BuildRegistry(config *ChainsConfig) (*router.RouteRegistry, error) {
	configs, err := l.MechanismConfigs(config)
	if err != nil {
		return nil, fmt.Errorf("failed to apply registry overrides: %w", err)
	}

	registry := router.NewRouteRegistry()
	if err := registry.BuildRegistry(configs); err != nil {
		return nil, fmt.Errorf("failed to build route registry: %w", err)
	}
	return registry, nil
}

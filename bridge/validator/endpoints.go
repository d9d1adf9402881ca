package validator

import (
	"context"

	"github.com/telosbridge/lzbridge/bridge/chain"
	"github.com/telosbridge/lzbridge/bridge/router"
)

// ChainReport is the validation outcome of one chain
type ChainReport struct {
	Chain     router.ChainId
	Name      string
	Endpoints []EndpointValidity
}

// Healthy reports whether at least one endpoint of the chain is valid
func (r ChainReport) Healthy() bool {
	for _, ep := range r.Endpoints {
		if ep.Valid {
			return true
		}
	}
	return false
}

// FilterEndpoints validates every chain and returns the endpoints with only their valid URLs,
// in configured order. Chains without a valid URL are left out.
func (v *Validator) FilterEndpoints(ctx context.Context, endpoints []chain.Endpoint) ([]chain.Endpoint, []ChainReport) {
	filtered := make([]chain.Endpoint, 0, len(endpoints))
	reports := make([]ChainReport, 0, len(endpoints))

	for _, endpoint := range endpoints {
		urls := append([]string{endpoint.PrimaryURL}, endpoint.FallbackURLs...)
		report := ChainReport{
			Chain:     endpoint.Chain,
			Name:      endpoint.Name,
			Endpoints: v.ValidateChain(ctx, endpoint.Chain, urls),
		}
		reports = append(reports, report)

		var valid []string
		for _, ep := range report.Endpoints {
			if ep.Valid {
				valid = append(valid, ep.URL)
			}
		}
		if len(valid) == 0 {
			log.Error().
				Uint64("chain", uint64(endpoint.Chain)).
				Str("name", endpoint.Name).
				Msg("No valid RPC endpoint, chain disabled")
			continue
		}

		filtered = append(filtered, chain.Endpoint{
			Chain:        endpoint.Chain,
			Name:         endpoint.Name,
			PrimaryURL:   valid[0],
			FallbackURLs: valid[1:],
		})
		log.Info().
			Uint64("chain", uint64(endpoint.Chain)).
			Str("name", endpoint.Name).
			Int("valid", len(valid)).
			Int("configured", len(urls)).
			Msg("Validated chain endpoints")
	}

	return filtered, reports
}

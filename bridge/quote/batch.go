package quote

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/telosbridge/lzbridge/bridge/router"
	"golang.org/x/sync/errgroup"
)

// maxParallelQuotes bounds concurrent RPC reads of QuoteAll.
const maxParallelQuotes = 8

// RouteQuote is the quote of one route, or the error that prevented it.
type RouteQuote struct {
	Route router.RouteClassification
	Quote *FeeQuote
	Err   error
}

// QuoteAll quotes every route in parallel. Results keep the order of routes; a failing route
// does not cancel the others.
func (e *Engine) QuoteAll(ctx context.Context, routes []router.RouteClassification, amountHuman string, recipient common.Address, slippageBps uint32) []RouteQuote {
	results := make([]RouteQuote, len(routes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelQuotes)
	for i := range routes {
		results[i].Route = routes[i]
		g.Go(func() error {
			route := routes[i]
			q, err := e.Quote(gctx, &route, amountHuman, recipient, slippageBps)
			results[i].Quote = q
			results[i].Err = err
			return nil
		})
	}
	_ = g.Wait()

	return results
}

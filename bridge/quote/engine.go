// Package quote computes the protocol fee and receivable amount of a classified route.
package quote

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/telosbridge/lzbridge/bridge/chain"
	"github.com/telosbridge/lzbridge/bridge/codec"
	"github.com/telosbridge/lzbridge/bridge/models"
	"github.com/telosbridge/lzbridge/bridge/protocols"
	"github.com/telosbridge/lzbridge/bridge/router"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "quote").Logger()
}

// DefaultCacheTTL is how long the HTTP surface reuses a quote.
const DefaultCacheTTL = 15 * time.Second

var quotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bridge_fee_quotes_total",
	Help: "Fee quotes served, by mechanism and whether the fee is a static estimate.",
}, []string{"mechanism", "estimated"})

// FeeQuote is the fee and amounts of one route for one amount. Amounts are in source base units;
// every mechanism in the registry keeps the same decimals on both sides.
type FeeQuote struct {
	Mechanism        router.Mechanism
	ProtocolFee      *big.Int // native base units
	AmountSent       *big.Int
	AmountReceivable *big.Int
	MinAmount        *big.Int
	// IsFeeEstimated marks a static fallback fee. It is an over-estimate; the excess is refunded.
	IsFeeEstimated bool
}

func (q *FeeQuote) clone() *FeeQuote {
	out := *q
	out.ProtocolFee = cloneInt(q.ProtocolFee)
	out.AmountSent = cloneInt(q.AmountSent)
	out.AmountReceivable = cloneInt(q.AmountReceivable)
	out.MinAmount = cloneInt(q.MinAmount)
	return &out
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

// Engine quotes classified routes. It only reads chain state.
type Engine struct {
	bridges protocols.Set
	readers chain.ReaderProvider
	cache   *cache.Cache
	tracer  trace.Tracer
}

// NewEngine creates an engine resolving readers through readers. readers may be nil when every
// call goes through QuoteWith.
func NewEngine(bridges protocols.Set, readers chain.ReaderProvider) *Engine {
	return &Engine{
		bridges: bridges,
		readers: readers,
		tracer:  otel.Tracer("github.com/telosbridge/lzbridge/bridge/quote"),
	}
}

// WithCache enables a short lived quote cache for Quote. QuoteWith is never cached.
func (e *Engine) WithCache(ttl time.Duration) *Engine {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	e.cache = cache.New(ttl, 2*ttl)
	return e
}

// Quote resolves the source chain reader and quotes, serving repeated requests from the cache.
func (e *Engine) Quote(ctx context.Context, route *router.RouteClassification, amountHuman string, recipient common.Address, slippageBps uint32) (*FeeQuote, error) {
	if route == nil {
		return nil, models.ErrNoRouteAvailable
	}
	if e.readers == nil {
		return nil, models.ErrRpc.WithDetails("no reader provider configured")
	}

	key := cacheKey(route, amountHuman, recipient, slippageBps)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			return cached.(*FeeQuote).clone(), nil
		}
	}

	reader, err := e.readers.Reader(route.Source.Chain)
	if err != nil {
		return nil, models.ErrRpc.Wrap(err)
	}

	q, err := e.QuoteWith(ctx, reader, route, amountHuman, recipient, slippageBps)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, q.clone(), cache.DefaultExpiration)
	}
	return q, nil
}

// QuoteWith quotes route against reader. Read failures never fail the quote: the mechanism's
// fallback fee is substituted and IsFeeEstimated is set. Errors are returned for invalid input only.
func (e *Engine) QuoteWith(ctx context.Context, reader chain.Reader, route *router.RouteClassification, amountHuman string, recipient common.Address, slippageBps uint32) (*FeeQuote, error) {
	if route == nil {
		return nil, models.ErrNoRouteAvailable
	}
	if reader == nil {
		return nil, models.ErrInvalidIntent.WithDetails("reader is required")
	}
	if slippageBps > codec.MaxSlippageBps {
		return nil, models.ErrInvalidIntent.WithDetails("slippage %d bps above %d", slippageBps, codec.MaxSlippageBps)
	}

	bridge, err := e.bridges.Get(route.Mechanism)
	if err != nil {
		return nil, models.ErrNoRouteAvailable.Wrap(err)
	}

	amount, err := codec.HumanToBaseUnits(amountHuman, route.Token.Decimals)
	if err != nil {
		return nil, models.ErrInvalidIntent.Wrap(err)
	}
	amount = codec.RemoveDust(amount, route.Token.Decimals, route.Token.SharedDecimals)
	if amount.Sign() == 0 {
		return nil, models.ErrInvalidIntent.WithDetails("amount %s is zero in base units", amountHuman)
	}

	ctx, span := e.tracer.Start(ctx, "quote.Quote", trace.WithAttributes(
		attribute.String("mechanism", string(route.Mechanism)),
		attribute.String("token", route.Token.Symbol),
		attribute.Int64("chain_from", int64(route.Source.Chain)),
		attribute.Int64("chain_to", int64(route.Destination.Chain)),
	))
	defer span.End()

	minAmount, err := codec.CalculateMinAmount(amount, slippageBps)
	if err != nil {
		return nil, models.ErrInvalidIntent.Wrap(err)
	}

	params := protocols.SendParams{
		Route:     route,
		Amount:    amount,
		MinAmount: minAmount,
		Recipient: recipient,
		Refund:    recipient,
	}

	q := &FeeQuote{
		Mechanism:        route.Mechanism,
		AmountSent:       amount,
		AmountReceivable: new(big.Int).Set(amount),
		MinAmount:        minAmount,
	}

	if route.Pooled() {
		received, err := bridge.QuoteReceivable(ctx, reader, params)
		if err != nil {
			log.Warn().
				Err(err).
				Str("mechanism", string(route.Mechanism)).
				Str("token", route.Token.Symbol).
				Msg("Pool receivable quote failed, assuming full amount")
		} else {
			q.AmountReceivable = received
			if q.MinAmount, err = codec.CalculateMinAmount(received, slippageBps); err != nil {
				return nil, models.ErrInvalidIntent.Wrap(err)
			}
			params.MinAmount = q.MinAmount
		}
	}

	fee, err := bridge.QuoteFee(ctx, reader, params)
	if err != nil || fee == nil || fee.Sign() <= 0 {
		if err == nil {
			err = fmt.Errorf("fee read returned %v", fee)
		}
		fee = bridge.FallbackPolicy().Fallback(route.Source.Chain, route.Destination.Chain, route.Destination.ProtocolChainId)
		q.IsFeeEstimated = true
		span.SetStatus(codes.Error, "fee read failed")
		span.RecordError(err)
		log.Warn().
			Err(models.ErrFeeQuoteUnavailable.Wrap(err)).
			Str("mechanism", string(route.Mechanism)).
			Str("token", route.Token.Symbol).
			Uint64("chain_from", uint64(route.Source.Chain)).
			Uint64("chain_to", uint64(route.Destination.Chain)).
			Str("fallback_fee", fee.String()).
			Msg("Using static fallback fee")
	}
	q.ProtocolFee = fee

	span.SetAttributes(attribute.Bool("fee_estimated", q.IsFeeEstimated))
	quotesTotal.WithLabelValues(string(route.Mechanism), fmt.Sprintf("%t", q.IsFeeEstimated)).Inc()

	log.Debug().
		Str("mechanism", string(route.Mechanism)).
		Str("token", route.Token.Symbol).
		Str("amount", amount.String()).
		Str("receivable", q.AmountReceivable.String()).
		Str("fee", fee.String()).
		Bool("estimated", q.IsFeeEstimated).
		Msg("Quoted route")

	return q, nil
}

func cacheKey(route *router.RouteClassification, amountHuman string, recipient common.Address, slippageBps uint32) string {
	return strings.Join([]string{
		string(route.Mechanism),
		strings.ToUpper(route.Token.Symbol),
		fmt.Sprint(uint64(route.Source.Chain)),
		fmt.Sprint(uint64(route.Destination.Chain)),
		strings.TrimSpace(amountHuman),
		recipient.Hex(),
		fmt.Sprint(slippageBps),
	}, "|")
}

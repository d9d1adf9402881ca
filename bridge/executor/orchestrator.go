// Package executor drives a classified transfer on chain: network switch, ERC-20 approval, fresh
// fee quote, submission and confirmation.
package executor

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/telosbridge/lzbridge/bridge/chain"
	"github.com/telosbridge/lzbridge/bridge/codec"
	"github.com/telosbridge/lzbridge/bridge/models"
	"github.com/telosbridge/lzbridge/bridge/protocols"
	"github.com/telosbridge/lzbridge/bridge/quote"
	"github.com/telosbridge/lzbridge/bridge/router"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "executor").Logger()
}

var (
	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_executions_total",
		Help: "Transfer executions, by mechanism and error code (\"ok\" on success).",
	}, []string{"mechanism", "result"})

	executionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bridge_execution_duration_seconds",
		Help:    "Time from PREPARING to CONFIRMED or failure.",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	}, []string{"mechanism"})
)

// Orchestrator executes transfers. It is safe for concurrent use; a second Execute for the same
// sender and mechanism is rejected while the first is in flight.
type Orchestrator struct {
	engine  *quote.Engine
	bridges protocols.Set
	tracer  trace.Tracer

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewOrchestrator creates an orchestrator quoting through engine.
func NewOrchestrator(engine *quote.Engine, bridges protocols.Set) *Orchestrator {
	return &Orchestrator{
		engine:   engine,
		bridges:  bridges,
		tracer:   otel.Tracer("github.com/telosbridge/lzbridge/bridge/executor"),
		inFlight: make(map[string]struct{}),
	}
}

func (o *Orchestrator) acquire(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[key]; busy {
		return false
	}
	o.inFlight[key] = struct{}{}
	return true
}

func (o *Orchestrator) release(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, key)
}

// Execute runs the transfer described by intent. Any failure aborts the sequence and is returned
// as a coded *models.ErrorResponse; nothing is retried.
func (o *Orchestrator) Execute(
	ctx context.Context,
	intent TransferIntent,
	signer chain.Writer,
	reader chain.Reader,
	switcher chain.NetworkSwitcher,
	onStatus StatusFunc,
) (receipt *TransferReceipt, err error) {
	if onStatus == nil {
		onStatus = func(StatusEvent) {}
	}
	emit := func(state State, hash common.Hash, format string, args ...any) {
		onStatus(StatusEvent{State: state, Message: fmt.Sprintf(format, args...), TxHash: hash})
	}

	emit(StatePreparing, common.Hash{}, "Preparing transfer...")
	if err := validateIntent(intent, signer, reader); err != nil {
		return nil, err
	}
	route := intent.Classification

	key := strings.ToLower(intent.Sender.Hex()) + "|" + string(route.Mechanism)
	if !o.acquire(key) {
		return nil, models.ErrExecutionInFlight.WithDetails("sender %s mechanism %s", intent.Sender.Hex(), route.Mechanism)
	}
	defer o.release(key)

	bridge, err := o.bridges.Get(route.Mechanism)
	if err != nil {
		return nil, models.ErrNoRouteAvailable.Wrap(err)
	}

	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "executor.Execute", trace.WithAttributes(
		attribute.String("mechanism", string(route.Mechanism)),
		attribute.String("token", route.Token.Symbol),
		attribute.Int64("chain_from", int64(route.Source.Chain)),
		attribute.Int64("chain_to", int64(route.Destination.Chain)),
	))
	defer func() {
		result := "ok"
		if err != nil {
			result = string(models.CodeOf(err))
			span.SetStatus(codes.Error, err.Error())
			log.Error().
				Err(err).
				Str("mechanism", string(route.Mechanism)).
				Str("token", route.Token.Symbol).
				Str("sender", intent.Sender.Hex()).
				Msg("Transfer failed")
		}
		executionsTotal.WithLabelValues(string(route.Mechanism), result).Inc()
		executionDuration.WithLabelValues(string(route.Mechanism)).Observe(time.Since(start).Seconds())
		span.End()
	}()

	slippageBps := protocols.DefaultSlippageBps
	if intent.MaxSlippageBps != nil {
		slippageBps = *intent.MaxSlippageBps
	}

	amount, err := codec.HumanToBaseUnits(intent.Amount, route.Token.Decimals)
	if err != nil {
		return nil, models.ErrInvalidIntent.Wrap(err)
	}
	amount = codec.RemoveDust(amount, route.Token.Decimals, route.Token.SharedDecimals)
	if amount.Sign() == 0 {
		return nil, models.ErrInvalidIntent.WithDetails("amount %s is zero in base units", intent.Amount)
	}

	if err := o.ensureNetwork(ctx, route.Source.Chain, signer, switcher, emit); err != nil {
		return nil, err
	}

	if route.Pooled() {
		if err := o.checkPoolSlippage(ctx, bridge, reader, route, amount, intent.Recipient, slippageBps); err != nil {
			return nil, err
		}
	}

	asset, err := bridge.SourceAsset(ctx, reader, route)
	if err != nil {
		return nil, models.ErrRpc.Wrap(err)
	}

	var approvalHash common.Hash
	if asset.NeedsApproval() {
		approvalHash, err = o.ensureAllowance(ctx, signer, reader, asset, route.Token.Symbol, amount, emit)
		if err != nil {
			return nil, err
		}
	}

	emit(StateQuotingFee, common.Hash{}, "Getting fee quote...")
	q, err := o.engine.QuoteWith(ctx, reader, route, intent.Amount, intent.Recipient, slippageBps)
	if err != nil {
		return nil, err
	}
	if q.IsFeeEstimated {
		emit(StateQuotingFee, common.Hash{}, "Using estimated fee (excess refunded)...")
	}
	if route.Pooled() && !codec.WithinTolerance(q.AmountSent, q.AmountReceivable, slippageBps) {
		return nil, models.ErrSlippageExceeded.WithDetails("receivable %s of %s exceeds %d bps", q.AmountReceivable, q.AmountSent, slippageBps)
	}
	fee := codec.ApplyBuffer(q.ProtocolFee, protocols.FeeBufferPercent)

	data, err := bridge.PackSend(protocols.SendParams{
		Route:     route,
		Amount:    q.AmountSent,
		MinAmount: q.MinAmount,
		Recipient: intent.Recipient,
		Refund:    intent.Sender,
	}, fee)
	if err != nil {
		return nil, models.ErrInvalidIntent.Wrap(err)
	}
	value := protocols.SendValue(asset, q.AmountSent, fee)

	emit(StateAwaitingSignature, common.Hash{}, "Confirm bridge in wallet...")
	hash, err := signer.SendTransaction(ctx, chain.TxRequest{
		To:       route.Source.Peer.Contract,
		Data:     data,
		Value:    value,
		GasLimit: protocols.SendGasLimit,
	})
	if err != nil {
		return nil, classifyFailure("send", err)
	}
	span.SetAttributes(attribute.String("tx_hash", hash.Hex()))

	emit(StateSubmitted, hash, "Transaction submitted, waiting for confirmation...")
	txReceipt, err := signer.WaitForReceipt(ctx, hash)
	if err != nil {
		return nil, classifyFailure("wait", err)
	}

	trackingURL := protocols.LayerZeroScanURL + hash.Hex()
	emit(StateConfirmed, hash, "%s bridged! Track at %s", route.Token.Symbol, trackingURL)

	receipt = &TransferReceipt{
		TransactionHash:  hash,
		ApprovalHash:     approvalHash,
		Mechanism:        route.Mechanism,
		AmountSent:       q.AmountSent,
		AmountReceivable: q.AmountReceivable,
		ProtocolFee:      fee,
		Value:            value,
		FeeEstimated:     q.IsFeeEstimated,
		TrackingURL:      trackingURL,
	}
	if txReceipt != nil && txReceipt.BlockNumber != nil {
		receipt.BlockNumber = txReceipt.BlockNumber.Uint64()
	}

	log.Info().
		Str("mechanism", string(route.Mechanism)).
		Str("token", route.Token.Symbol).
		Uint64("chain_from", uint64(route.Source.Chain)).
		Uint64("chain_to", uint64(route.Destination.Chain)).
		Str("tx", hash.Hex()).
		Str("value", value.String()).
		Bool("fee_estimated", q.IsFeeEstimated).
		Msg("Transfer confirmed")
	return receipt, nil
}

func validateIntent(intent TransferIntent, signer chain.Writer, reader chain.Reader) error {
	route := intent.Classification
	switch {
	case route == nil:
		return models.ErrNoRouteAvailable
	case signer == nil || reader == nil:
		return models.ErrInvalidIntent.WithDetails("signer and reader are required")
	case strings.TrimSpace(intent.Amount) == "":
		return models.ErrInvalidIntent.WithDetails("amount is required")
	case intent.Sender == (common.Address{}):
		return models.ErrInvalidIntent.WithDetails("sender is required")
	case intent.Recipient == (common.Address{}):
		return models.ErrInvalidIntent.WithDetails("recipient is required")
	case signer.From() != intent.Sender:
		return models.ErrInvalidIntent.WithDetails("signer %s is not sender %s", signer.From().Hex(), intent.Sender.Hex())
	case reader.ChainID() != route.Source.Chain:
		return models.ErrInvalidIntent.WithDetails("reader is bound to chain %d, route starts on %d", reader.ChainID(), route.Source.Chain)
	case intent.MaxSlippageBps != nil && *intent.MaxSlippageBps > codec.MaxSlippageBps:
		return models.ErrInvalidIntent.WithDetails("slippage %d bps above %d", *intent.MaxSlippageBps, codec.MaxSlippageBps)
	}
	return nil
}

func (o *Orchestrator) ensureNetwork(
	ctx context.Context,
	target router.ChainId,
	signer chain.Writer,
	switcher chain.NetworkSwitcher,
	emit func(State, common.Hash, string, ...any),
) error {
	current, err := signer.ChainID(ctx)
	if err != nil {
		return classifyFailure("chain_id", err)
	}
	if current == target {
		return nil
	}

	emit(StateSwitchingNetwork, common.Hash{}, "Switching network to %s...", target)
	if switcher == nil {
		return models.ErrNetworkSwitchFailed.WithDetails("no network switcher for chain %d", target)
	}
	if err := switcher.SwitchToChain(ctx, target); err != nil {
		return models.ErrNetworkSwitchFailed.Wrap(err)
	}

	current, err = signer.ChainID(ctx)
	if err != nil {
		return classifyFailure("chain_id", err)
	}
	if current != target {
		return models.ErrNetworkSwitchFailed.WithDetails("signer still on chain %d", current)
	}
	return nil
}

// checkPoolSlippage aborts before any transaction when the pool's current terms fall outside
// the caller's tolerance. An unavailable pool quote is left to the fee step.
func (o *Orchestrator) checkPoolSlippage(
	ctx context.Context,
	bridge protocols.Bridge,
	reader chain.Reader,
	route *router.RouteClassification,
	amount *big.Int,
	recipient common.Address,
	slippageBps uint32,
) error {
	received, err := bridge.QuoteReceivable(ctx, reader, protocols.SendParams{
		Route:     route,
		Amount:    amount,
		MinAmount: amount,
		Recipient: recipient,
	})
	if err != nil {
		log.Warn().Err(err).Str("token", route.Token.Symbol).Msg("Pool receivable unavailable before approval")
		return nil
	}
	if !codec.WithinTolerance(amount, received, slippageBps) {
		return models.ErrSlippageExceeded.WithDetails("receivable %s of %s exceeds %d bps", received, amount, slippageBps)
	}
	return nil
}

func (o *Orchestrator) ensureAllowance(
	ctx context.Context,
	signer chain.Writer,
	reader chain.Reader,
	asset protocols.SourceAsset,
	symbol string,
	amount *big.Int,
	emit func(State, common.Hash, string, ...any),
) (common.Hash, error) {
	emit(StateCheckingApproval, common.Hash{}, "Checking token approval...")
	allowance, err := protocols.Allowance(ctx, reader, asset.Token, signer.From(), asset.Spender)
	if err != nil {
		return common.Hash{}, models.ErrRpc.Wrap(err)
	}
	if allowance.Cmp(amount) >= 0 {
		return common.Hash{}, nil
	}

	log.Debug().
		Str("token", asset.Token.Hex()).
		Str("spender", asset.Spender.Hex()).
		Str("allowance", allowance.String()).
		Str("amount", amount.String()).
		Msg("Allowance below amount, approving")

	data, err := protocols.PackApprove(asset.Spender, amount)
	if err != nil {
		return common.Hash{}, models.ErrInvalidIntent.Wrap(err)
	}

	emit(StateApproving, common.Hash{}, "Approve %s spend...", symbol)
	hash, err := signer.SendTransaction(ctx, chain.TxRequest{
		To:       asset.Token,
		Data:     data,
		Value:    new(big.Int),
		GasLimit: protocols.ApproveGasLimit,
	})
	if err != nil {
		return common.Hash{}, classifyFailure("approve", err)
	}
	if _, err := signer.WaitForReceipt(ctx, hash); err != nil {
		return common.Hash{}, classifyFailure("approve", err)
	}

	allowance, err = protocols.Allowance(ctx, reader, asset.Token, signer.From(), asset.Spender)
	if err != nil {
		return common.Hash{}, models.ErrRpc.Wrap(err)
	}
	if allowance.Cmp(amount) < 0 {
		return common.Hash{}, models.ErrInsufficientAllowance.WithDetails("allowance %s below %s after approval", allowance, amount)
	}

	emit(StateApproving, hash, "Approved! Sending bridge...")
	return hash, nil
}

package rpc

import (
	"math"

	"github.com/telosbridge/lzbridge/bridge/aggregator"
	"github.com/telosbridge/lzbridge/bridge/codec"
	"github.com/telosbridge/lzbridge/bridge/models"
	"github.com/telosbridge/lzbridge/bridge/quote"
	"github.com/telosbridge/lzbridge/bridge/router"
)

// nativeDecimals is the precision of every supported chain's gas currency
const nativeDecimals = 18

const aggregatorProvider = "lifi"

func toRouteInfo(route *router.RouteClassification) *models.RouteInfo {
	if route == nil {
		return nil
	}
	return &models.RouteInfo{
		Mechanism:             string(route.Mechanism),
		Token:                 route.Token.Symbol,
		Decimals:              route.Token.Decimals,
		ChainFrom:             uint64(route.Source.Chain),
		ChainTo:               uint64(route.Destination.Chain),
		SourceContract:        route.Source.Peer.Contract.Hex(),
		DestinationContract:   route.Destination.Peer.Contract.Hex(),
		SourceProtocolId:      uint32(route.Source.ProtocolChainId),
		DestinationProtocolId: uint32(route.Destination.ProtocolChainId),
		Pooled:                route.Pooled(),
		Native:                route.SourceIsNative(),
	}
}

func toFeeQuoteInfo(route *router.RouteClassification, q *quote.FeeQuote) *models.FeeQuoteInfo {
	if q == nil {
		return nil
	}
	info := &models.FeeQuoteInfo{
		ProtocolFee:           q.ProtocolFee.String(),
		ProtocolFeeHuman:      codec.BaseUnitsToHuman(q.ProtocolFee, nativeDecimals),
		AmountSent:            q.AmountSent.String(),
		AmountReceivable:      q.AmountReceivable.String(),
		AmountReceivableHuman: codec.BaseUnitsToHuman(q.AmountReceivable, route.Token.Decimals),
		MinAmount:             q.MinAmount.String(),
		IsFeeEstimated:        q.IsFeeEstimated,
	}
	if q.IsFeeEstimated {
		info.Notice = models.EstimatedFeeNotice
	}
	return info
}

func toAggregatorQuoteInfo(q *aggregator.Quote) *models.AggregatorQuoteInfo {
	info := &models.AggregatorQuoteInfo{
		Provider:          aggregatorProvider,
		Tool:              q.ToolName(),
		FromAmount:        q.Estimate.FromAmount,
		ToAmount:          q.Estimate.ToAmount,
		ToAmountMin:       q.Estimate.ToAmountMin,
		ExecutionDuration: int64(math.Round(q.Estimate.ExecutionDuration)),
	}
	if gas := q.GasCostUSD(); !gas.IsZero() {
		info.GasCostUSD = gas.StringFixed(2)
	}
	if q.TransactionRequest != nil {
		info.TransactionRequest = q.TransactionRequest
	}
	return info
}

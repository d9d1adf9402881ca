package models

// ClassifyRequest - POST /v1/classify body
type ClassifyRequest struct {
	Token     string `json:"token"`      // e.g., "USDC"
	ChainFrom uint64 `json:"chain_from"` // public chain id, e.g., 40
	ChainTo   uint64 `json:"chain_to"`   // public chain id, e.g., 1
}

// RouteInfo describes one resolved direct route
type RouteInfo struct {
	Mechanism             string `json:"mechanism"` // "native_oft" | "oft_adapter" | "stargate_pool" | "wrapped_bridge"
	Token                 string `json:"token"`
	Decimals              uint8  `json:"decimals"`
	ChainFrom             uint64 `json:"chain_from"`
	ChainTo               uint64 `json:"chain_to"`
	SourceContract        string `json:"source_contract"`
	DestinationContract   string `json:"destination_contract"`
	SourceProtocolId      uint32 `json:"source_protocol_id"`      // LayerZero endpoint or chain id of the source
	DestinationProtocolId uint32 `json:"destination_protocol_id"` // LayerZero endpoint or chain id of the destination
	Pooled                bool   `json:"pooled"`
	Native                bool   `json:"native"` // asset moves in the transaction value
}

// ClassifyResponse - result of POST /v1/classify
type ClassifyResponse struct {
	Success      bool       `json:"success"`
	Route        *RouteInfo `json:"route,omitempty"`
	ErrorCode    string     `json:"error_code,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// QuoteRequest - POST /v1/quote body
type QuoteRequest struct {
	Token       string  `json:"token"`
	ChainFrom   uint64  `json:"chain_from"`
	ChainTo     uint64  `json:"chain_to"`
	Amount      string  `json:"amount"`                 // human decimal, e.g., "1.5"
	Recipient   string  `json:"recipient"`              // 0x address on the destination chain
	Sender      string  `json:"sender,omitempty"`       // needed for aggregator quotes
	SlippageBps *uint32 `json:"slippage_bps,omitempty"` // if nil the default of 50 (0.5%) is used
}

// FeeQuoteInfo is the serialized FeeQuote. All amounts are base units unless suffixed Human.
type FeeQuoteInfo struct {
	ProtocolFee           string `json:"protocol_fee"`
	ProtocolFeeHuman      string `json:"protocol_fee_human"`
	AmountSent            string `json:"amount_sent"`
	AmountReceivable      string `json:"amount_receivable"`
	AmountReceivableHuman string `json:"amount_receivable_human"`
	MinAmount             string `json:"min_amount"`
	IsFeeEstimated        bool   `json:"is_fee_estimated"`
	Notice                string `json:"notice,omitempty"` // shown when the fee is a static estimate
}

// AggregatorQuoteInfo is the opaque external quote used when no direct route exists
type AggregatorQuoteInfo struct {
	Provider          string `json:"provider"` // e.g., "lifi"
	Tool              string `json:"tool"`
	FromAmount        string `json:"from_amount"`
	ToAmount          string `json:"to_amount"`
	ToAmountMin       string `json:"to_amount_min"`
	ExecutionDuration int64  `json:"execution_duration_seconds"`
	GasCostUSD        string `json:"gas_cost_usd,omitempty"`
	// Ready-to-sign transaction returned by the aggregator
	TransactionRequest any `json:"transaction_request,omitempty"`
}

// QuoteResponse - unified response for direct and aggregator quotes
type QuoteResponse struct {
	Success      bool                 `json:"success"`
	RouteType    string               `json:"route_type"` // "direct" | "aggregator" | "impossible"
	ErrorCode    string               `json:"error_code,omitempty"`
	ErrorMessage string               `json:"error_message,omitempty"`
	Route        *RouteInfo           `json:"route,omitempty"`
	Quote        *FeeQuoteInfo        `json:"quote,omitempty"`
	Aggregator   *AggregatorQuoteInfo `json:"aggregator,omitempty"`
}

// RouteSummary is one entry of GET /v1/routes/{token}
type RouteSummary struct {
	Route *RouteInfo    `json:"route"`
	Quote *FeeQuoteInfo `json:"quote,omitempty"`
	Error string        `json:"error,omitempty"`
}

// RoutesResponse - result of GET /v1/routes/{token}
type RoutesResponse struct {
	Token  string          `json:"token"`
	Amount string          `json:"amount,omitempty"`
	Routes []*RouteSummary `json:"routes"`
}

// Route types
const (
	RouteTypeDirect     = "direct"
	RouteTypeAggregator = "aggregator"
	RouteTypeImpossible = "impossible"
)

// EstimatedFeeNotice is attached to quotes whose fee is a static fallback.
const EstimatedFeeNotice = "Fee is an estimate; any excess is refunded by the protocol."

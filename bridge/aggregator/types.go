package aggregator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// QuoteRequest - parameters of GET /v1/quote. Tokens are addresses, the amount is base units.
type QuoteRequest struct {
	FromChain   uint64
	ToChain     uint64
	FromToken   string
	ToToken     string
	FromAmount  string
	FromAddress string
	ToAddress   string // defaults to FromAddress on the aggregator side when empty
	SlippageBps uint32
}

// SymbolQuoteRequest asks for a quote by token symbol and human amount
type SymbolQuoteRequest struct {
	FromChain   uint64
	ToChain     uint64
	FromSymbol  string
	ToSymbol    string
	Amount      string // human decimal, e.g., "1.5"
	FromAddress string
	ToAddress   string
	SlippageBps uint32
}

// Chain - one entry of GET /v1/chains
type Chain struct {
	Id        uint64 `json:"id"`
	Key       string `json:"key"`
	Name      string `json:"name"`
	ChainType string `json:"chainType"` // "EVM", "SVM", ...
	Mainnet   bool   `json:"mainnet"`
}

// ChainsResponse - GET /v1/chains
type ChainsResponse struct {
	Chains []Chain `json:"chains"`
}

// Token as listed by the aggregator
type Token struct {
	Address  string `json:"address"`
	ChainId  uint64 `json:"chainId"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Name     string `json:"name"`
	PriceUSD string `json:"priceUSD,omitempty"`
}

// TokensResponse - GET /v1/tokens, keyed by chain id as a string
type TokensResponse struct {
	Tokens map[string][]Token `json:"tokens"`
}

// GasCost - one gas line of an estimate
type GasCost struct {
	Type      string `json:"type"` // "SEND", "APPROVE", ...
	Amount    string `json:"amount"`
	AmountUSD string `json:"amountUSD"`
	Token     Token  `json:"token"`
}

// FeeCost - one protocol fee line of an estimate
type FeeCost struct {
	Name      string `json:"name"`
	Amount    string `json:"amount"`
	AmountUSD string `json:"amountUSD"`
	Included  bool   `json:"included"`
	Token     Token  `json:"token"`
}

// Estimate of what the route will deliver
type Estimate struct {
	Tool              string    `json:"tool"`
	FromAmount        string    `json:"fromAmount"`
	ToAmount          string    `json:"toAmount"`
	ToAmountMin       string    `json:"toAmountMin"`
	ApprovalAddress   string    `json:"approvalAddress"`
	ExecutionDuration float64   `json:"executionDuration"` // seconds
	GasCosts          []GasCost `json:"gasCosts"`
	FeeCosts          []FeeCost `json:"feeCosts"`
}

// Action is the transfer the quote performs
type Action struct {
	FromChainId uint64  `json:"fromChainId"`
	ToChainId   uint64  `json:"toChainId"`
	FromToken   Token   `json:"fromToken"`
	ToToken     Token   `json:"toToken"`
	FromAmount  string  `json:"fromAmount"`
	Slippage    float64 `json:"slippage"` // fraction, 0.005 = 0.5%
	FromAddress string  `json:"fromAddress"`
	ToAddress   string  `json:"toAddress"`
}

// ToolDetails names the bridge or DEX the aggregator picked
type ToolDetails struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	LogoURI string `json:"logoURI,omitempty"`
}

// TransactionRequest is the ready-to-sign execution handle. Values are hex quantities.
type TransactionRequest struct {
	ChainId  uint64 `json:"chainId"`
	From     string `json:"from"`
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	GasLimit string `json:"gasLimit,omitempty"`
	GasPrice string `json:"gasPrice,omitempty"`
}

// Quote - GET /v1/quote
type Quote struct {
	Id                 string              `json:"id"`
	Type               string              `json:"type"`
	Tool               string              `json:"tool"`
	ToolDetails        *ToolDetails        `json:"toolDetails,omitempty"`
	Action             Action              `json:"action"`
	Estimate           Estimate            `json:"estimate"`
	TransactionRequest *TransactionRequest `json:"transactionRequest,omitempty"`
}

// ToolName is the display name of the chosen tool
func (q *Quote) ToolName() string {
	if q.ToolDetails != nil && q.ToolDetails.Name != "" {
		return q.ToolDetails.Name
	}
	if q.Tool != "" {
		return q.Tool
	}
	return "Unknown"
}

// GasCostUSD sums the USD value of all gas lines. Lines without a USD value are skipped.
func (q *Quote) GasCostUSD() decimal.Decimal {
	total := decimal.Zero
	for _, cost := range q.Estimate.GasCosts {
		if cost.AmountUSD == "" {
			continue
		}
		amount, err := decimal.NewFromString(cost.AmountUSD)
		if err != nil {
			log.Debug().Err(err).Str("amount_usd", cost.AmountUSD).Msg("Skipping unparsable gas cost")
			continue
		}
		total = total.Add(amount)
	}
	return total
}

// APIError is a non-retryable error answer from the aggregator
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("aggregator HTTP %d (code %d): %s", e.Status, e.Code, e.Message)
}

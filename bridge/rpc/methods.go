package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/telosbridge/lzbridge/bridge/aggregator"
	"github.com/telosbridge/lzbridge/bridge/codec"
	"github.com/telosbridge/lzbridge/bridge/models"
	"github.com/telosbridge/lzbridge/bridge/protocols"
	"github.com/telosbridge/lzbridge/bridge/quote"
	"github.com/telosbridge/lzbridge/bridge/router"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 16

// Aggregator quotes transfers that have no direct route
type Aggregator interface {
	QuoteBySymbol(ctx context.Context, req aggregator.SymbolQuoteRequest) (*aggregator.Quote, error)
}

// BridgeServer serves the route, classify and quote endpoints
type BridgeServer struct {
	classifier *router.Classifier
	engine     *quote.Engine
	aggregator Aggregator
}

// NewBridgeServer creates a BridgeServer. agg may be nil, which disables the aggregator fallback.
func NewBridgeServer(classifier *router.Classifier, engine *quote.Engine, agg Aggregator) *BridgeServer {
	return &BridgeServer{
		classifier: classifier,
		engine:     engine,
		aggregator: agg,
	}
}

// Ready reports ready once the registry has mechanisms to classify against
func (s *BridgeServer) Ready(w http.ResponseWriter, r *http.Request) {
	if s.classifier == nil || s.engine == nil || len(s.classifier.Registry().Mechanisms()) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Classify resolves the direct mechanism for a token and chain pair.
//
// Returns:
// - 400 Bad Request: malformed body or missing fields
// - 200 OK with success=false: valid query but no direct route
// - 200 OK with success=true: route found
func (s *BridgeServer) Classify(w http.ResponseWriter, r *http.Request) {
	var req models.ClassifyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Token) == "" || req.ChainFrom == 0 || req.ChainTo == 0 {
		writeError(w, http.StatusBadRequest, models.ErrInvalidIntent.WithDetails("token, chain_from and chain_to are required"))
		return
	}

	route := s.classifier.Classify(req.Token, router.ChainId(req.ChainFrom), router.ChainId(req.ChainTo))
	if route == nil {
		writeJSON(w, http.StatusOK, models.ClassifyResponse{
			Success:      false,
			ErrorCode:    string(models.ErrNoRouteAvailable.Code),
			ErrorMessage: noRouteMessage(req.Token, req.ChainFrom, req.ChainTo),
		})
		return
	}

	writeJSON(w, http.StatusOK, models.ClassifyResponse{
		Success: true,
		Route:   toRouteInfo(route),
	})
}

// Quote prices a transfer over its direct route, falling back to the aggregator when there is
// none.
//
// Returns:
// - 400 Bad Request: invalid amount, address or slippage
// - 200 OK with route_type=impossible: no direct route and no aggregator quote
// - 502 Bad Gateway: the chain could not be read
func (s *BridgeServer) Quote(w http.ResponseWriter, r *http.Request) {
	var req models.QuoteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	recipient, slippageBps, err := validateQuoteRequest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	route := s.classifier.Classify(req.Token, router.ChainId(req.ChainFrom), router.ChainId(req.ChainTo))
	if route == nil {
		s.aggregatorQuote(w, r, &req, slippageBps)
		return
	}

	q, err := s.engine.Quote(r.Context(), route, req.Amount, recipient, slippageBps)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, models.QuoteResponse{
		Success:   true,
		RouteType: models.RouteTypeDirect,
		Route:     toRouteInfo(route),
		Quote:     toFeeQuoteInfo(route, q),
	})
}

func (s *BridgeServer) aggregatorQuote(w http.ResponseWriter, r *http.Request, req *models.QuoteRequest, slippageBps uint32) {
	impossible := models.QuoteResponse{
		Success:      false,
		RouteType:    models.RouteTypeImpossible,
		ErrorCode:    string(models.ErrNoRouteAvailable.Code),
		ErrorMessage: noRouteMessage(req.Token, req.ChainFrom, req.ChainTo),
	}
	if s.aggregator == nil {
		writeJSON(w, http.StatusOK, impossible)
		return
	}

	aq, err := s.aggregator.QuoteBySymbol(r.Context(), aggregator.SymbolQuoteRequest{
		FromChain:   req.ChainFrom,
		ToChain:     req.ChainTo,
		FromSymbol:  req.Token,
		ToSymbol:    req.Token,
		Amount:      req.Amount,
		FromAddress: req.Sender,
		ToAddress:   req.Recipient,
		SlippageBps: slippageBps,
	})
	if err != nil {
		Logger.Warn().
			Err(err).
			Str("token", req.Token).
			Uint64("chain_from", req.ChainFrom).
			Uint64("chain_to", req.ChainTo).
			Msg("Aggregator quote failed")
		impossible.ErrorMessage = fmt.Sprintf("%s; aggregator: %v", impossible.ErrorMessage, err)
		writeJSON(w, http.StatusOK, impossible)
		return
	}

	writeJSON(w, http.StatusOK, models.QuoteResponse{
		Success:    true,
		RouteType:  models.RouteTypeAggregator,
		Aggregator: toAggregatorQuoteInfo(aq),
	})
}

// Routes lists every direct route of a token. With ?amount= each route is also quoted.
func (s *BridgeServer) Routes(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	routes := s.classifier.Routes(token)
	if len(routes) == 0 {
		writeError(w, http.StatusNotFound, models.ErrNoRouteAvailable.WithDetails("unknown token %s", token))
		return
	}

	amount := r.URL.Query().Get("amount")
	resp := models.RoutesResponse{
		Token:  routes[0].Token.Symbol,
		Amount: amount,
		Routes: make([]*models.RouteSummary, 0, len(routes)),
	}

	if amount == "" {
		for i := range routes {
			resp.Routes = append(resp.Routes, &models.RouteSummary{Route: toRouteInfo(&routes[i])})
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	var recipient common.Address
	if raw := r.URL.Query().Get("recipient"); raw != "" {
		if !common.IsHexAddress(raw) {
			writeError(w, http.StatusBadRequest, models.ErrInvalidIntent.WithDetails("recipient %q is not an address", raw))
			return
		}
		recipient = common.HexToAddress(raw)
	}

	for _, result := range s.engine.QuoteAll(r.Context(), routes, amount, recipient, protocols.DefaultSlippageBps) {
		summary := &models.RouteSummary{Route: toRouteInfo(&result.Route)}
		if result.Err != nil {
			summary.Error = errorDetails(result.Err)
		} else {
			summary.Quote = toFeeQuoteInfo(&result.Route, result.Quote)
		}
		resp.Routes = append(resp.Routes, summary)
	}
	writeJSON(w, http.StatusOK, resp)
}

func validateQuoteRequest(req *models.QuoteRequest) (common.Address, uint32, error) {
	var recipient common.Address
	if strings.TrimSpace(req.Token) == "" || req.ChainFrom == 0 || req.ChainTo == 0 {
		return recipient, 0, models.ErrInvalidIntent.WithDetails("token, chain_from and chain_to are required")
	}
	if strings.TrimSpace(req.Amount) == "" {
		return recipient, 0, models.ErrInvalidIntent.WithDetails("amount is required")
	}
	if req.Recipient != "" {
		if !common.IsHexAddress(req.Recipient) {
			return recipient, 0, models.ErrInvalidIntent.WithDetails("recipient %q is not an address", req.Recipient)
		}
		recipient = common.HexToAddress(req.Recipient)
	}
	if req.Sender != "" && !common.IsHexAddress(req.Sender) {
		return recipient, 0, models.ErrInvalidIntent.WithDetails("sender %q is not an address", req.Sender)
	}

	slippageBps := protocols.DefaultSlippageBps
	if req.SlippageBps != nil {
		slippageBps = *req.SlippageBps
	}
	if slippageBps > codec.MaxSlippageBps {
		return recipient, 0, models.ErrInvalidIntent.WithDetails("slippage %d bps above %d", slippageBps, codec.MaxSlippageBps)
	}
	return recipient, slippageBps, nil
}

func noRouteMessage(token string, from, to uint64) string {
	return fmt.Sprintf("no direct route for %s from %s to %s", token, router.ChainId(from), router.ChainId(to))
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return models.ErrInvalidIntent.WithDetails("invalid request body: %v", err)
	}
	return nil
}

// statusFor maps a coded error to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidIntent):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNoRouteAvailable):
		return http.StatusNotFound
	case errors.Is(err, models.ErrRpc):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorDetails(err error) string {
	var errResp *models.ErrorResponse
	if errors.As(err, &errResp) {
		return errResp.Details
	}
	return err.Error()
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, models.CreateErrorResponseFromError(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// Package validator scores the RPC endpoints of each configured chain against each other before
// they are handed to the chain provider.
//
// Every endpoint starts with 100 points. An endpoint that cannot be reached, or that answers for
// another chain, is invalid outright. The rest lose points for lagging behind the highest block
// seen and for every sampled block whose hash disagrees with the majority. Anything below 60
// points is invalid.
//
// A node that disagrees with the majority is penalized, not dropped, until its score falls
// below the threshold.
package validator

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/telosbridge/lzbridge/bridge/router"
	"golang.org/x/sync/errgroup"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "validator").Logger()
}

const (
	startingPoints  = 100
	minPoints       = 60
	mismatchPenalty = 10
	lagPenalty      = 20

	// maxBlockLag is how many blocks an endpoint may trail the highest one seen
	maxBlockLag = 50
	// sampleBlocks blocks between maxBlockLag and sampleDepth below the tip are compared
	sampleBlocks = 7
	sampleDepth  = 2000

	maxParallelProbes = 8
)

// Prober is the slice of ethclient the validator reads through
type Prober interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	Close()
}

// DialFunc opens a Prober for one RPC URL
type DialFunc func(ctx context.Context, rpcURL string) (Prober, error)

// DialEthClient dials rpcURL with go-ethereum's ethclient
func DialEthClient(ctx context.Context, rpcURL string) (Prober, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// EndpointValidity is the verdict on one RPC URL
type EndpointValidity struct {
	URL     string
	Points  int
	Valid   bool
	ChainId router.ChainId
	Height  uint64
	// Reason explains why the endpoint was marked invalid
	Reason string

	hashes map[uint64]*common.Hash
}

func (e *EndpointValidity) invalidate(format string, args ...any) {
	e.Valid = false
	e.Reason = fmt.Sprintf(format, args...)
}

func (e *EndpointValidity) penalize(points int, format string, args ...any) {
	e.Points -= points
	log.Debug().
		Str("url", e.URL).
		Int("penalty", points).
		Int("points", e.Points).
		Msgf(format, args...)
	if e.Valid && e.Points < minPoints {
		e.invalidate("score %d below %d", e.Points, minPoints)
	}
}

// Validator probes and scores endpoints
type Validator struct {
	dial          DialFunc
	timeout       time.Duration
	retryAttempts int
	retryDelay    time.Duration
	sampleHeights func(maxHeight uint64) []uint64
}

// Option configures a Validator
type Option func(*Validator)

// WithRetry sets how often a failed probe is retried and the delay between attempts
func WithRetry(attempts int, delay time.Duration) Option {
	return func(v *Validator) {
		v.retryAttempts = attempts
		v.retryDelay = delay
	}
}

// WithSampleHeights replaces the random block sampling
func WithSampleHeights(sample func(maxHeight uint64) []uint64) Option {
	return func(v *Validator) {
		v.sampleHeights = sample
	}
}

// New creates a Validator. A nil dial uses DialEthClient.
func New(dial DialFunc, timeout time.Duration, opts ...Option) *Validator {
	if dial == nil {
		dial = DialEthClient
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	v := &Validator{
		dial:          dial,
		timeout:       timeout,
		retryAttempts: 2,
		retryDelay:    500 * time.Millisecond,
		sampleHeights: randomHeights,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateChain scores every URL of one chain. The result keeps the order of urls.
func (v *Validator) ValidateChain(ctx context.Context, expected router.ChainId, urls []string) []EndpointValidity {
	validities := make([]EndpointValidity, len(urls))
	probers := make([]Prober, len(urls))
	defer func() {
		for _, p := range probers {
			if p != nil {
				p.Close()
			}
		}
	}()

	// Step 1: chain id and height from every endpoint
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelProbes)
	for i, url := range urls {
		validities[i] = EndpointValidity{
			URL:    url,
			Points: startingPoints,
			Valid:  true,
			hashes: make(map[uint64]*common.Hash),
		}
		g.Go(func() error {
			probers[i] = v.probeBasics(gctx, expected, &validities[i])
			return nil
		})
	}
	_ = g.Wait()

	// Step 2: penalize endpoints trailing the highest block
	var maxHeight uint64
	for i := range validities {
		if validities[i].Valid && validities[i].Height > maxHeight {
			maxHeight = validities[i].Height
		}
	}
	for i := range validities {
		ep := &validities[i]
		if ep.Valid && maxHeight-ep.Height > maxBlockLag {
			ep.penalize(lagPenalty, "endpoint is %d blocks behind", maxHeight-ep.Height)
		}
	}

	// Step 3: fetch the sampled block hashes
	heights := v.sampleHeights(maxHeight)
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(maxParallelProbes)
	for i := range validities {
		if !validities[i].Valid {
			continue
		}
		g.Go(func() error {
			v.fetchHashes(gctx, probers[i], &validities[i], heights)
			return nil
		})
	}
	_ = g.Wait()

	// Step 4: compare against the majority
	validateBlockHashes(validities, heights)

	for _, ep := range validities {
		event := log.Debug()
		if !ep.Valid {
			event = log.Warn()
		}
		event.
			Uint64("chain", uint64(expected)).
			Str("url", ep.URL).
			Int("points", ep.Points).
			Bool("valid", ep.Valid).
			Str("reason", ep.Reason).
			Msg("Validated endpoint")
	}
	return validities
}

func (v *Validator) probeBasics(ctx context.Context, expected router.ChainId, ep *EndpointValidity) Prober {
	var prober Prober
	err := v.retry(ctx, func(ctx context.Context) error {
		var err error
		prober, err = v.dial(ctx, ep.URL)
		return err
	})
	if err != nil {
		ep.invalidate("dial failed: %v", err)
		return nil
	}

	var chainID *big.Int
	if err := v.retry(ctx, func(ctx context.Context) error {
		var err error
		chainID, err = prober.ChainID(ctx)
		return err
	}); err != nil {
		ep.invalidate("eth_chainId failed: %v", err)
		return prober
	}
	ep.ChainId = router.ChainId(chainID.Uint64())
	if ep.ChainId != expected {
		ep.invalidate("endpoint serves chain %d, expected %d", ep.ChainId, expected)
		return prober
	}

	if err := v.retry(ctx, func(ctx context.Context) error {
		var err error
		ep.Height, err = prober.BlockNumber(ctx)
		return err
	}); err != nil {
		ep.invalidate("eth_blockNumber failed: %v", err)
	}
	return prober
}

func (v *Validator) fetchHashes(ctx context.Context, prober Prober, ep *EndpointValidity, heights []uint64) {
	for _, height := range heights {
		var header *types.Header
		err := v.retry(ctx, func(ctx context.Context) error {
			var err error
			header, err = prober.HeaderByNumber(ctx, new(big.Int).SetUint64(height))
			return err
		})
		if err != nil || header == nil {
			ep.hashes[height] = nil
			continue
		}
		hash := header.Hash()
		ep.hashes[height] = &hash
	}
}

func (v *Validator) retry(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= v.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(v.retryDelay):
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, v.timeout)
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
	}
	return err
}

// validateBlockHashes penalizes every endpoint whose hash at a sampled height is missing or
// differs from the most common one
func validateBlockHashes(validities []EndpointValidity, heights []uint64) {
	for _, height := range heights {
		counts := make(map[common.Hash]int)
		for i := range validities {
			if !validities[i].Valid {
				continue
			}
			if hash := validities[i].hashes[height]; hash != nil {
				counts[*hash]++
			}
		}
		if len(counts) == 0 {
			continue
		}
		consensus := getMostCommonValue(counts)

		for i := range validities {
			ep := &validities[i]
			if !ep.Valid {
				continue
			}
			hash := ep.hashes[height]
			switch {
			case hash == nil:
				ep.penalize(mismatchPenalty, "missing block %d", height)
			case *hash != consensus:
				ep.penalize(mismatchPenalty, "block %d hash %s differs from majority %s", height, hash.Hex(), consensus.Hex())
			}
		}
	}
}

// getMostCommonValue returns the key with the highest count in the map
func getMostCommonValue[T comparable](counts map[T]int) T {
	maxCount := 0
	var mostCommon T
	for key, count := range counts {
		if count > maxCount {
			maxCount = count
			mostCommon = key
		}
	}
	return mostCommon
}

// randomHeights picks sampleBlocks heights that every endpoint within maxBlockLag has
func randomHeights(maxHeight uint64) []uint64 {
	if maxHeight <= maxBlockLag {
		return []uint64{0}
	}
	top := maxHeight - maxBlockLag
	span := uint64(sampleDepth)
	if top < span {
		span = top
	}

	seen := make(map[uint64]bool, sampleBlocks)
	heights := make([]uint64, 0, sampleBlocks)
	for i := 0; i < sampleBlocks; i++ {
		offset, err := rand.Int(rand.Reader, new(big.Int).SetUint64(span+1))
		if err != nil {
			log.Error().Err(err).Msg("Failed to sample block height")
			continue
		}
		height := top - offset.Uint64()
		if seen[height] {
			continue
		}
		seen[height] = true
		heights = append(heights, height)
	}
	return heights
}

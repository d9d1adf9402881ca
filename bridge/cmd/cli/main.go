// Command cli classifies, quotes and executes a single bridge transfer from the command line,
// signing with a local private key.
//
// Usage:
//
//	BRIDGE_PRIVATE_KEY=0x... go run ./bridge/cmd/cli send \
//	  --chain-config ./chains.toml \
//	  --token USDC --from 40 --to 137 --amount 25
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/telosbridge/lzbridge/bridge/chain"
	"github.com/telosbridge/lzbridge/bridge/codec"
	"github.com/telosbridge/lzbridge/bridge/config"
	"github.com/telosbridge/lzbridge/bridge/executor"
	"github.com/telosbridge/lzbridge/bridge/protocols"
	"github.com/telosbridge/lzbridge/bridge/quote"
	"github.com/telosbridge/lzbridge/bridge/router"
	"github.com/telosbridge/lzbridge/bridge/validator"
)

const (
	connectionTimeout = 10 * time.Second
	callTimeout       = 15 * time.Second
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Logger()
}

type transferFlags struct {
	chainConfig string
	configDir   string
	token       string
	from        uint64
	to          uint64
	amount      string
	recipient   string
	slippageBps uint32
	keyEnv      string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &transferFlags{}

	root := &cobra.Command{
		Use:           "lzbridge",
		Short:         "Bridge tokens to and from Telos EVM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.chainConfig, "chain-config", "./chains.toml", "chain config: local path or go-getter source")
	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", os.TempDir(), "where remote chain configs are downloaded to")

	root.AddCommand(newRoutesCmd(flags), newQuoteCmd(flags), newSendCmd(flags), newValidateCmd(flags))
	return root
}

func addTransferFlags(cmd *cobra.Command, flags *transferFlags) {
	cmd.Flags().StringVar(&flags.token, "token", "", "token symbol, e.g. USDC")
	cmd.Flags().Uint64Var(&flags.from, "from", uint64(router.TelosChainId), "source chain id")
	cmd.Flags().Uint64Var(&flags.to, "to", 0, "destination chain id")
	cmd.Flags().StringVar(&flags.amount, "amount", "", "amount in whole tokens, e.g. 1.5")
	cmd.Flags().StringVar(&flags.recipient, "recipient", "", "destination address (defaults to the sender)")
	cmd.Flags().Uint32Var(&flags.slippageBps, "slippage-bps", protocols.DefaultSlippageBps, "pool slippage tolerance in basis points")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
}

func newRoutesCmd(flags *transferFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "routes [token]",
		Short: "List every direct route of a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			classifier, provider, err := loadChains(cmd.Context(), flags)
			if err != nil {
				return err
			}
			provider.Close()

			routes := classifier.Routes(args[0])
			if len(routes) == 0 {
				return fmt.Errorf("no direct routes for %s", args[0])
			}
			for _, route := range routes {
				fmt.Printf("%-10s %-12s -> %-12s %s\n",
					route.Token.Symbol, route.Source.Chain, route.Destination.Chain, route.Mechanism)
			}
			return nil
		},
	}
}

func newQuoteCmd(flags *transferFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a transfer without sending it",
		RunE: func(cmd *cobra.Command, args []string) error {
			classifier, provider, err := loadChains(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer provider.Close()

			route, err := classify(classifier, flags)
			if err != nil {
				return err
			}
			recipient := common.Address{}
			if flags.recipient != "" {
				if !common.IsHexAddress(flags.recipient) {
					return fmt.Errorf("recipient %q is not an address", flags.recipient)
				}
				recipient = common.HexToAddress(flags.recipient)
			}

			q, err := quote.NewEngine(protocols.DefaultSet(), provider).
				Quote(cmd.Context(), route, flags.amount, recipient, flags.slippageBps)
			if err != nil {
				return err
			}

			printRoute(route)
			fmt.Printf("Amount sent:      %s %s\n", codec.BaseUnitsToHuman(q.AmountSent, route.Token.Decimals), route.Token.Symbol)
			fmt.Printf("Receivable:       %s %s\n", codec.BaseUnitsToHuman(q.AmountReceivable, route.Token.Decimals), route.Token.Symbol)
			fmt.Printf("Minimum received: %s %s\n", codec.BaseUnitsToHuman(q.MinAmount, route.Token.Decimals), route.Token.Symbol)
			fmt.Printf("Protocol fee:     %s (native)\n", codec.BaseUnitsToHuman(q.ProtocolFee, 18))
			if q.IsFeeEstimated {
				fmt.Println("Fee is an estimate; any excess is refunded by the protocol.")
			}
			return nil
		},
	}
	addTransferFlags(cmd, flags)
	return cmd
}

func newSendCmd(flags *transferFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Execute a transfer, approving the token first when needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			key := os.Getenv(flags.keyEnv)
			if key == "" {
				return fmt.Errorf("%s is not set", flags.keyEnv)
			}

			classifier, provider, err := loadChains(ctx, flags)
			if err != nil {
				return err
			}
			defer provider.Close()

			route, err := classify(classifier, flags)
			if err != nil {
				return err
			}

			client, err := provider.Client(ctx, route.Source.Chain)
			if err != nil {
				return err
			}
			signer, err := chain.NewKeySigner(key, client.Backend())
			if err != nil {
				return err
			}

			recipient := signer.From()
			if flags.recipient != "" {
				if !common.IsHexAddress(flags.recipient) {
					return fmt.Errorf("recipient %q is not an address", flags.recipient)
				}
				recipient = common.HexToAddress(flags.recipient)
			}

			printRoute(route)
			log.Info().
				Str("sender", signer.From().Hex()).
				Str("recipient", recipient.Hex()).
				Str("amount", flags.amount).
				Msg("Sending transfer")

			bridges := protocols.DefaultSet()
			orchestrator := executor.NewOrchestrator(quote.NewEngine(bridges, provider), bridges)
			receipt, err := orchestrator.Execute(ctx, executor.TransferIntent{
				Classification: route,
				Amount:         flags.amount,
				Sender:         signer.From(),
				Recipient:      recipient,
				MaxSlippageBps: &flags.slippageBps,
			}, signer, client, chain.NewStaticSwitcher(signer), printStatus)
			if err != nil {
				return err
			}

			fmt.Println()
			fmt.Printf("Transaction: %s (block %d)\n", receipt.TransactionHash.Hex(), receipt.BlockNumber)
			if receipt.ApprovalHash != (common.Hash{}) {
				fmt.Printf("Approval:    %s\n", receipt.ApprovalHash.Hex())
			}
			fmt.Printf("Fee paid:    %s (native)\n", codec.BaseUnitsToHuman(receipt.ProtocolFee, 18))
			fmt.Printf("Receivable:  %s %s\n", codec.BaseUnitsToHuman(receipt.AmountReceivable, route.Token.Decimals), route.Token.Symbol)
			if receipt.TrackingURL != "" {
				fmt.Printf("Track:       %s\n", receipt.TrackingURL)
			}
			return nil
		},
	}
	addTransferFlags(cmd, flags)
	cmd.Flags().StringVar(&flags.keyEnv, "key-env", "BRIDGE_PRIVATE_KEY", "environment variable holding the hex private key")
	return cmd
}

func newValidateCmd(flags *transferFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Score every configured RPC endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ResolveChainConfig(cmd.Context(), flags.chainConfig, flags.configDir)
			if err != nil {
				return err
			}
			loader := config.NewChainConfigLoader()
			chains, err := loader.LoadFromFile(path)
			if err != nil {
				return err
			}

			_, reports := validator.New(nil, callTimeout).FilterEndpoints(cmd.Context(), loader.Endpoints(chains))
			unhealthy := 0
			for _, report := range reports {
				fmt.Printf("%s (%d)\n", report.Name, report.Chain)
				for _, ep := range report.Endpoints {
					status := "ok"
					if !ep.Valid {
						status = "INVALID: " + ep.Reason
					}
					fmt.Printf("\t%-50s %3d points  %s\n", ep.URL, ep.Points, status)
				}
				if !report.Healthy() {
					unhealthy++
				}
			}
			if unhealthy > 0 {
				return fmt.Errorf("%d chains have no valid RPC endpoint", unhealthy)
			}
			return nil
		},
	}
}

func loadChains(ctx context.Context, flags *transferFlags) (*router.Classifier, *chain.Provider, error) {
	path, err := config.ResolveChainConfig(ctx, flags.chainConfig, flags.configDir)
	if err != nil {
		return nil, nil, err
	}

	loader := config.NewChainConfigLoader()
	chains, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, nil, err
	}
	registry, err := loader.BuildRegistry(chains)
	if err != nil {
		return nil, nil, err
	}

	provider := chain.NewProvider(loader.Endpoints(chains), connectionTimeout, callTimeout)
	return router.NewClassifier(registry), provider, nil
}

func classify(classifier *router.Classifier, flags *transferFlags) (*router.RouteClassification, error) {
	route := classifier.Classify(flags.token, router.ChainId(flags.from), router.ChainId(flags.to))
	if route == nil {
		return nil, fmt.Errorf("no direct route for %s from %s to %s",
			flags.token, router.ChainId(flags.from), router.ChainId(flags.to))
	}
	return route, nil
}

func printRoute(route *router.RouteClassification) {
	fmt.Printf("Route: %s %s -> %s via %s\n",
		route.Token.Symbol, route.Source.Chain, route.Destination.Chain, route.Mechanism)
}

func printStatus(event executor.StatusEvent) {
	if event.TxHash != (common.Hash{}) {
		fmt.Printf("[%s] %s %s\n", event.State, event.Message, event.TxHash.Hex())
		return
	}
	fmt.Printf("[%s] %s\n", event.State, event.Message)
}

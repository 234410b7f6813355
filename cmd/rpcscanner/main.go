package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rpc-scanner/internal/adapter/report"
	"rpc-scanner/internal/adapter/storage/nodelist"
	"rpc-scanner/internal/bootstrap"
	"rpc-scanner/internal/logger"
)

var (
	overrides bootstrap.Overrides
	sortBy    string
	reverse   bool
)

var rootCmd = &cobra.Command{
	Use:   "rpcscanner [node_file]",
	Short: color.GreenString("Hive / Steem RPC scanner"),
	Long: `Scan RPC nodes from a list of URLs to determine their last block, version, reliability,
response time and supported APIs, then print a colour coded table ranked by health.

The node list is read from the argument, NODE_FILE, or stdin when "-" is given.
Lines starting with # are comments.

Sorting options (--sort):
  score (default), server, status, head_block, block_time, version, network,
  res_time, avg_retries, api_tests

Status and network sorts accept a preferred value, e.g. --sort dead or --sort hive.
score, status, head_block, block_time, version and api_tests are reversed by default
since higher values mean better health; --reverse sorts those forwards.

Aliases: ` + strings.Join(report.SortNames(), ", "),
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runScan,
}

func init() {
	overrides.Register(rootCmd)
	rootCmd.Flags().StringVarP(&sortBy, "sort", "s", "default", "sort nodes by this column / sorting method")
	rootCmd.Flags().BoolVarP(&reverse, "reverse", "r", false, "reverse the sorting order")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	ordering, err := report.ParseOrdering(sortBy)
	if err != nil {
		return err
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	overrides.Apply(cmd, cfg)
	if len(args) == 1 {
		cfg.Nodes.File = args[0]
	}

	appLogger, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	if !overrides.Verbose && !overrides.Quiet {
		fmt.Fprintln(os.Stderr, "For more verbose logging (such as detailed scanning actions), use `rpcscanner -v`")
		fmt.Fprintln(os.Stderr, "For less output, use -q for quiet mode (display only critical errors)")
	}

	engine, err := bootstrap.NewEngine(cfg, appLogger, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	endpoints, err := nodelist.NewRepository(cfg.Nodes, appLogger).ListEndpoints(ctx)
	if err != nil {
		return err
	}

	appLogger.Info("Scanning nodes", zap.Int("count", len(endpoints)), zap.String("nodeFile", cfg.Nodes.File))
	results := engine.Fleet.Scan(ctx, endpoints)

	// Exit status never depends on scan outcomes.
	sorted := report.Sort(results, ordering, reverse)
	return report.WriteTable(cmd.OutOrStdout(), sorted, engine.Options.TestPlugins)
}

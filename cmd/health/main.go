package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rpc-scanner/internal/adapter/report"
	"rpc-scanner/internal/bootstrap"
	"rpc-scanner/internal/config"
	"rpc-scanner/internal/logger"
)

// exitCodeError ends the process with a specific code after output has been written.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

var (
	overrides bootstrap.Overrides
	output    string
	minScore  int
)

var rootCmd = &cobra.Command{
	Use:   "health",
	Short: color.GreenString("Hive / Steem RPC node health checks"),
	Long: `Scan a single RPC node or a node list and report health with UNIX style exit codes.

  health scan https://api.hive.blog          structured report, exits GOOD_RETURN_CODE or BAD_RETURN_CODE
  health list [-d]                           print working nodes from NODE_FILE
  health test-method <node> <method>         test one API method
  health test-methods <node> [methods...]    test several API methods (default: every capability probe)`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	overrides.Register(rootCmd)
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	rootCmd.PersistentFlags().IntVar(&minScore, "min-score", -1, "minimum score for a GOOD result (default MIN_SCORE)")

	rootCmd.AddCommand(scanCmd, listCmd, testMethodCmd, testMethodsCmd)
}

func main() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.code)
	}
	fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
	os.Exit(1)
}

// session is the per-invocation state built from configuration and flags.
type session struct {
	cfg    *config.Config
	logger *zap.Logger
	engine *bootstrap.Engine
	format report.Format
}

func newSession(cmd *cobra.Command) (*session, error) {
	format, err := report.ParseFormat(output)
	if err != nil {
		return nil, err
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	overrides.Apply(cmd, cfg)
	if cmd.Flags().Changed("min-score") {
		cfg.Health.MinScore = minScore
	}

	appLogger, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return nil, err
	}

	engine, err := bootstrap.NewEngine(cfg, appLogger, nil)
	if err != nil {
		return nil, err
	}

	return &session{cfg: cfg, logger: appLogger, engine: engine, format: format}, nil
}

// exit maps a health verdict to the configured return code.
func (s *session) exit(good bool) error {
	code := s.cfg.Health.BadReturnCode
	if good {
		code = s.cfg.Health.GoodReturnCode
	}
	if code == 0 {
		return nil
	}
	return &exitCodeError{code: code}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

package bootstrap

import (
	"github.com/spf13/cobra"

	"rpc-scanner/internal/config"
	"rpc-scanner/internal/logger"
)

// Overrides are the command line flags shared by the CLI entry points. They win over config and environment.
type Overrides struct {
	Account  string
	SkipAPIs []string
	Plugins  bool
	Verbose  bool
	Quiet    bool
}

// Register binds the shared flags to cmd's persistent flag set.
func (o *Overrides) Register(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&o.Account, "account", "", "Hive/Steem username used for tests requiring an account to lookup")
	flags.StringSliceVar(&o.SkipAPIs, "skip-apis", nil, "capability methods to skip (comma separated)")
	flags.BoolVar(&o.Plugins, "plugins", true, "run the capability stages")
	flags.BoolVarP(&o.Verbose, "verbose", "v", false, "debug logging")
	flags.BoolVarP(&o.Quiet, "quiet", "q", false, "only log errors")
}

// Apply copies the flags that were set on cmd into cfg.
func (o *Overrides) Apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("account") && o.Account != "" {
		cfg.Scanner.TestAccount = o.Account
	}
	if flags.Changed("skip-apis") {
		cfg.Scanner.SkipAPIs = append(cfg.Scanner.SkipAPIs, o.SkipAPIs...)
	}
	if flags.Changed("plugins") {
		cfg.Scanner.Plugins = o.Plugins
	}
	cfg.Logger = logger.WithVerbosity(cfg.Logger, o.Verbose, o.Quiet)
}

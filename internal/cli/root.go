// Package cli implements the nftminter command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nftstudio/nft-minter/internal/config"
	"github.com/nftstudio/nft-minter/internal/logging"
	"github.com/nftstudio/nft-minter/pkg/version"
)

type rootOptions struct {
	envFile  string
	logLevel string
	logFile  string
	quiet    bool

	app *app
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "nftminter",
		Short: "Mint NFTs from a wallet and browse the NFTs an address owns",
		Long: `nftminter pins NFT metadata to IPFS, asks a connected wallet to sign
the mint transaction and waits for it to be mined. It also lists the NFTs
an address owns through a hosted indexer.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			return opts.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.app != nil {
				opts.app.close()
				_ = opts.app.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "load environment variables from this file (default .env when present)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")
	root.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "override LOG_FILE")
	root.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "only log to the log file")

	root.AddCommand(
		newMintCommand(opts),
		newGalleryCommand(opts),
		newWalletCommand(opts),
		newPendingCommand(opts),
		newServeCommand(opts),
		newVersionCommand(),
	)
	return root
}

func (o *rootOptions) setup(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if o.envFile != "" {
		cfg, err = config.Load(o.envFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFile != "" {
		cfg.LogFile = o.logFile
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var console io.Writer = cmd.ErrOrStderr()
	if o.quiet {
		console = io.Discard
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Console: console})
	if err != nil {
		return err
	}
	logger.Debug("configuration loaded",
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("alchemy_network", cfg.AlchemyNetwork),
		zap.Bool("redis_guard", cfg.RedisURL != ""))

	o.app = newApp(cfg, logger)
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			pterm.Fprintln(cmd.OutOrStdout(), version.GetFullVersionString())
		},
	}
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}

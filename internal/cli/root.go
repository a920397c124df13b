// Package cli implements the x1wallet administration commands. The browser
// extension talks to the native host; this tool manages the same data
// directory from a terminal while the host is not running.
//
// Command state lives in package globals, initialized in PersistentPreRunE
// and released in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/x1wallet/walletcore/internal/config"
	"github.com/x1wallet/walletcore/internal/output"
	"github.com/x1wallet/walletcore/internal/walletcrypto"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

var (
	// Global flags
	homeDir      string
	outputFormat string
	verbose      bool

	// Initialized in PersistentPreRunE
	formatter *output.Formatter
	logCloser io.Closer
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "x1wallet",
	Short: "Manage the X1 wallet data directory",
	Long: `x1wallet manages the wallets, password, backups and network settings
the browser extension's native host uses.

Stop the browser before running commands that change the vault; the host
holds the storage lock while it runs.

Example:
  x1wallet status
  x1wallet wallet create --name main
  x1wallet backup create`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initGlobals(cmd)
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		format := output.FormatText
		if formatter != nil {
			format = formatter.Format()
		}
		_ = output.FormatError(os.Stderr, err, format)
	}
	return err
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	return walleterr.ExitCode(err)
}

// initGlobals resolves configuration and logging and attaches the command
// context.
func initGlobals(cmd *cobra.Command) error {
	cfg, err := config.Resolve(homeDir)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	// The CLI logs to stderr at most; stdout carries results.
	if cfg.Logging.File == "" && !verbose {
		cfg.Logging.Level = config.LevelOff
	}
	logCloser, err = config.Configure(log.StandardLogger(), cfg.Logging)
	if err != nil {
		return err
	}
	walletcrypto.SetIterations(cfg.Security.PBKDF2Iterations)

	w := cmd.OutOrStdout()
	formatter = output.NewFormatter(output.DetectFormat(w, output.ParseFormat(outputFormat)), w)
	SetCmdContext(cmd, &CommandContext{Cfg: cfg, Fmt: formatter})
	return nil
}

func cleanup() {
	if logCloser != nil {
		_ = logCloser.Close()
		logCloser = nil
	}
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "data directory (default: ~/.x1wallet)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
}

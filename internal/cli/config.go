package cli

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/x1wallet/walletcore/internal/config"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or write the configuration file",
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults and environment overrides
(X1WALLET_HOME, X1WALLET_NETWORK, X1WALLET_LOG_LEVEL, X1WALLET_LOG_FILE).`,
	RunE: runConfigShow,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE:  runConfigInit,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configNetworkCmd = &cobra.Command{
	Use:   "network <name>",
	Short: "Select the network the host connects to",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigNetwork,
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	c := GetCmdContext(cmd)
	w := cmd.OutOrStdout()
	if c.Fmt.IsJSON() {
		return writeJSON(w, c.Cfg)
	}
	data, err := yaml.Marshal(c.Cfg)
	if err != nil {
		return walleterr.Wrap(err, "encoding config")
	}
	out(w, "# %s\n%s", config.Path(c.Cfg.Home), data)
	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	c := GetCmdContext(cmd)
	path := config.Path(c.Cfg.Home)
	if _, err := os.Stat(path); err == nil && !configForce {
		return walleterr.WithSuggestion(
			walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"path": path, "reason": "exists"}),
			"use --force to overwrite")
	}
	cfg := config.Defaults()
	cfg.Home = c.Cfg.Home
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	return printSuccess(cmd, "Wrote "+path)
}

// runConfigNetwork rewrites the file as loaded, without environment
// overrides, with the network replaced.
func runConfigNetwork(cmd *cobra.Command, args []string) error {
	c := GetCmdContext(cmd)
	path := config.Path(c.Cfg.Home)
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg.Home = c.Cfg.Home
	cfg.Network = args[0]
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	return printSuccess(cmd, "Network: "+args[0])
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd, configNetworkCmd)
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
}

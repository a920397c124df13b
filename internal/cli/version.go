package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/x1wallet/walletcore/internal/version"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := version.Current()
		if GetCmdContext(cmd).Fmt.IsJSON() {
			return writeJSON(cmd.OutOrStdout(), info)
		}
		outln(cmd.OutOrStdout(), formatVersion(info))
		return nil
	},
}

// formatVersion renders info on one line, filling unknown fields.
func formatVersion(info version.Info) string {
	v, commit, date := info.Version, info.Commit, info.Date
	if v == "" {
		v = "dev"
	}
	if commit == "" {
		commit = "unknown"
	}
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("x1wallet %s (commit: %s, built: %s, %s)", v, commit, date, info.Go)
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(versionCmd)
}

package cli

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/x1wallet/walletcore/internal/config"
	"github.com/x1wallet/walletcore/internal/output"
	"github.com/x1wallet/walletcore/internal/storage"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var rpcName string

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var rpcCmd = &cobra.Command{
	Use:   "rpc",
	Short: "Manage custom RPC endpoints",
	Long: `A custom endpoint replaces the configured RPC URL of its network for
both the host and this tool.`,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var rpcListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List custom endpoints",
	Aliases: []string{"ls"},
	RunE:    runRPCList,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var rpcSetCmd = &cobra.Command{
	Use:   "set <network> <url>",
	Short: "Use a custom endpoint for a network",
	Args:  cobra.ExactArgs(2),
	RunE:  runRPCSet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var rpcClearCmd = &cobra.Command{
	Use:   "clear <network>",
	Short: "Return a network to its configured endpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runRPCClear,
}

func withStore(cmd *cobra.Command, fn func(*storage.Store) error) error {
	store, err := storage.Open(cmd.Context(), GetCmdContext(cmd).Cfg.DataDir())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(store)
}

func runRPCList(cmd *cobra.Command, _ []string) error {
	var list []storage.CustomRPC
	err := withStore(cmd, func(s *storage.Store) error {
		var err error
		list, err = s.CustomRPCs(cmd.Context())
		return err
	})
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if GetCmdContext(cmd).Fmt.IsJSON() {
		if list == nil {
			list = []storage.CustomRPC{}
		}
		return writeJSON(w, list)
	}
	if len(list) == 0 {
		outln(w, "No custom endpoints.")
		return nil
	}
	tbl := output.NewTable("NETWORK", "NAME", "URL")
	for _, r := range list {
		tbl.AddRow(r.Network, r.Name, r.URL)
	}
	return tbl.Render(w)
}

func runRPCSet(cmd *cobra.Command, args []string) error {
	network, url := args[0], args[1]
	if _, ok := GetCmdContext(cmd).Cfg.Networks[network]; !ok {
		return walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"network": network, "reason": "unknown network"})
	}
	if err := config.ValidateURL(url); err != nil {
		return walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"url": url, "reason": err.Error()})
	}
	err := withStore(cmd, func(s *storage.Store) error {
		list, err := s.CustomRPCs(cmd.Context())
		if err != nil {
			return err
		}
		list = slices.DeleteFunc(list, func(r storage.CustomRPC) bool { return r.Network == network })
		list = append(list, storage.CustomRPC{Name: rpcName, Network: network, URL: url})
		return s.SetCustomRPCs(cmd.Context(), list)
	})
	if err != nil {
		return err
	}
	return printSuccess(cmd, network+" uses "+url)
}

func runRPCClear(cmd *cobra.Command, args []string) error {
	network := args[0]
	err := withStore(cmd, func(s *storage.Store) error {
		list, err := s.CustomRPCs(cmd.Context())
		if err != nil {
			return err
		}
		return s.SetCustomRPCs(cmd.Context(), slices.DeleteFunc(list, func(r storage.CustomRPC) bool { return r.Network == network }))
	})
	if err != nil {
		return err
	}
	return printSuccess(cmd, network+" uses its configured endpoint")
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(rpcCmd)
	rpcCmd.AddCommand(rpcListCmd, rpcSetCmd, rpcClearCmd)
	rpcSetCmd.Flags().StringVar(&rpcName, "name", "custom", "label for the endpoint")
}

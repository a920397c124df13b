package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/x1wallet/walletcore/internal/storage"
)

// StatusResponse describes the vault.
type StatusResponse struct {
	State           string `json:"state"`
	HasPassword     bool   `json:"has_password"`
	AutoLockMinutes int    `json:"auto_lock_minutes"`
	Wallets         int    `json:"wallets"`
	ActiveAddress   string `json:"active_address,omitempty"`
	Network         string `json:"network"`
	DataDir         string `json:"data_dir"`
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the vault state",
	Long: `Show whether the vault is empty, locked or open, its password and
auto-lock settings, and the active address when it is known.

A protected vault reports locked: this tool never caches the password.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	c := GetCmdContext(cmd)
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	resp := StatusResponse{
		State:           s.vault.State().String(),
		HasPassword:     s.vault.HasPassword(),
		AutoLockMinutes: s.vault.AutoLockMinutes(),
		Network:         c.Cfg.Network,
		DataDir:         c.Cfg.DataDir(),
	}
	if view, err := s.vault.PublicView(); err == nil {
		resp.Wallets = view.Len()
		if pub, err := view.ActivePublicKey(); err == nil {
			resp.ActiveAddress = pub.String()
		}
	}

	w := cmd.OutOrStdout()
	if c.Fmt.IsJSON() {
		return writeJSON(w, resp)
	}
	autoLock := strconv.Itoa(resp.AutoLockMinutes) + " min"
	if resp.AutoLockMinutes == storage.AutoLockNever || resp.AutoLockMinutes == 0 {
		autoLock = "never"
	}
	out(w, "Vault:     %s\n", resp.State)
	out(w, "Password:  %t\n", resp.HasPassword)
	out(w, "Auto-lock: %s\n", autoLock)
	if resp.State != "locked" {
		out(w, "Wallets:   %d\n", resp.Wallets)
	}
	if resp.ActiveAddress != "" {
		out(w, "Active:    %s\n", resp.ActiveAddress)
	}
	out(w, "Network:   %s\n", resp.Network)
	out(w, "Data:      %s\n", resp.DataDir)
	return nil
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(statusCmd)
}

package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/x1wallet/walletcore/internal/storage"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Manage vault password protection",
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var passwordSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Protect an unprotected vault with a password",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withOpenVault(cmd, "Password protection enabled.", func(s *session, _ string) error {
			next, err := promptNew("new password", false)
			if err != nil {
				return err
			}
			return s.vault.SetPassword(cmd.Context(), next)
		})
	},
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var passwordChangeCmd = &cobra.Command{
	Use:   "change",
	Short: "Change the vault password",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withOpenVault(cmd, "Password changed.", func(s *session, current string) error {
			if current == "" {
				return walleterr.ErrNoPassword
			}
			next, err := promptNew("new password", false)
			if err != nil {
				return err
			}
			return s.vault.ChangePassword(cmd.Context(), current, next)
		})
	},
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var passwordClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove password protection",
	Long: `Remove password protection. The wallet set is stored unencrypted
afterwards; anyone with access to the data directory can read it.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withOpenVault(cmd, "Password protection removed.", func(s *session, current string) error {
			return s.vault.ClearPassword(cmd.Context(), current)
		})
	},
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var autoLockCmd = &cobra.Command{
	Use:   "autolock <minutes|never>",
	Short: "Set the idle time before the vault locks",
	Args:  cobra.ExactArgs(1),
	RunE:  runAutoLock,
}

// withOpenVault unlocks the vault, runs fn with the password entered, and
// prints msg on success.
func withOpenVault(cmd *cobra.Command, msg string, fn func(s *session, password string) error) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	password, err := s.unlock(cmd.Context())
	if err != nil {
		return err
	}
	if err := fn(s, password); err != nil {
		return err
	}
	return printSuccess(cmd, msg)
}

// parseAutoLock accepts a non-negative minute count or "never".
func parseAutoLock(arg string) (int, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	if arg == "never" {
		return storage.AutoLockNever, nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 {
		return 0, walleterr.WithSuggestion(
			walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"autolock": arg}),
			"use a number of minutes or \"never\"")
	}
	return n, nil
}

func runAutoLock(cmd *cobra.Command, args []string) error {
	minutes, err := parseAutoLock(args[0])
	if err != nil {
		return err
	}
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.vault.SetAutoLock(cmd.Context(), minutes); err != nil {
		return err
	}
	msg := "Auto-lock disabled."
	if minutes > 0 {
		msg = "Auto-lock after " + strconv.Itoa(minutes) + " idle minutes."
	}
	return printSuccess(cmd, msg)
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(passwordCmd, autoLockCmd)
	passwordCmd.AddCommand(passwordSetCmd, passwordChangeCmd, passwordClearCmd)
}

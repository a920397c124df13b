package cli

import (
	"github.com/spf13/cobra"

	"github.com/x1wallet/walletcore/internal/backup"
	"github.com/x1wallet/walletcore/internal/vault"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	// backupInput is the path to a backup file for restore/verify.
	backupInput string
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage encrypted backups",
	Long:  `Create, verify, restore and list encrypted backups of the whole wallet set.`,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Back up every wallet",
	Long: `Write every wallet, secrets included, to a timestamped file in the
backups directory, encrypted with a passphrase you choose now.

Example:
  x1wallet backup create`,
	RunE: runBackupCreate,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var backupVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a backup file's integrity",
	Long: `Check the structure and checksum of a backup without decrypting it.

Example:
  x1wallet backup verify --input ~/.x1wallet/backups/x1wallet-2026-01-15-120000.x1backup`,
	RunE: runBackupVerify,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var backupRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore wallets from a backup",
	Long: `Add every wallet of a backup that the vault does not hold yet.
Wallets already present are left untouched.

Example:
  x1wallet backup restore --input backup.x1backup`,
	RunE: runBackupRestore,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var backupListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List backups",
	Aliases: []string{"ls"},
	RunE:    runBackupList,
}

// BackupCreateResponse reports a written backup.
type BackupCreateResponse struct {
	Path     string          `json:"path"`
	Manifest backup.Manifest `json:"manifest"`
	Checksum string          `json:"checksum"`
}

// BackupRestoreResponse reports a restore.
type BackupRestoreResponse struct {
	Restored int `json:"restored"`
}

func backupService(cmd *cobra.Command) *backup.Service {
	return backup.NewService(GetCmdContext(cmd).Cfg.BackupDir())
}

func runBackupCreate(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	password, err := s.unlock(cmd.Context())
	if err != nil {
		return err
	}
	passphrase, err := promptNew("backup passphrase", false)
	if err != nil {
		return err
	}
	b, path, err := backupService(cmd).Create(s.vault, password, passphrase)
	if err != nil {
		return err
	}

	resp := BackupCreateResponse{Path: path, Manifest: b.Manifest, Checksum: b.Checksum}
	w := cmd.OutOrStdout()
	if GetCmdContext(cmd).Fmt.IsJSON() {
		return writeJSON(w, resp)
	}
	outln(w, "Backup created.")
	outln(w)
	out(w, "  File:     %s\n", path)
	out(w, "  Wallets:  %d (%d addresses)\n", b.Manifest.WalletCount, b.Manifest.AddressCount)
	out(w, "  Checksum: %s...\n", b.Checksum[:16])
	outln(w)
	outln(w, "Store the file and the passphrase separately. Both are needed to restore.")
	return nil
}

func runBackupVerify(cmd *cobra.Command, _ []string) error {
	m, err := backupService(cmd).Verify(backupInput)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if GetCmdContext(cmd).Fmt.IsJSON() {
		return writeJSON(w, m)
	}
	outln(w, "Backup verified.")
	outln(w)
	out(w, "  Created:    %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"))
	out(w, "  Wallets:    %d\n", m.WalletCount)
	out(w, "  Addresses:  %d\n", m.AddressCount)
	out(w, "  Encryption: %s\n", m.EncryptionMethod)
	return nil
}

func runBackupRestore(cmd *cobra.Command, _ []string) error {
	svc := backupService(cmd)
	if _, err := svc.Verify(backupInput); err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	var password string
	if s.vault.State() == vault.StateEmpty {
		outln(cmd.ErrOrStderr(), "Choose a vault password, or press Enter to leave the vault unprotected.")
		password, err = promptNew("password", true)
	} else {
		password, err = s.unlock(cmd.Context())
	}
	if err != nil {
		return err
	}
	passphrase, err := promptPassword("Backup passphrase: ")
	if err != nil {
		return err
	}

	n, err := svc.Restore(cmd.Context(), s.vault, backupInput, passphrase, password)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if GetCmdContext(cmd).Fmt.IsJSON() {
		return writeJSON(w, BackupRestoreResponse{Restored: n})
	}
	out(w, "Restored %d wallet(s).\n", n)
	return nil
}

func runBackupList(cmd *cobra.Command, _ []string) error {
	names, err := backupService(cmd).List()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if GetCmdContext(cmd).Fmt.IsJSON() {
		if names == nil {
			names = []string{}
		}
		return writeJSON(w, names)
	}
	if len(names) == 0 {
		outln(w, "No backups found.")
		outln(w, "Create one with: x1wallet backup create")
		return nil
	}
	outln(w, "Backups:")
	for _, n := range names {
		out(w, "  %s\n", n)
	}
	outln(w)
	out(w, "Backup directory: %s\n", GetCmdContext(cmd).Cfg.BackupDir())
	return nil
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupCreateCmd, backupVerifyCmd, backupRestoreCmd, backupListCmd)

	for _, c := range []*cobra.Command{backupVerifyCmd, backupRestoreCmd} {
		c.Flags().StringVar(&backupInput, "input", "", "path to backup file (required)")
		_ = c.MarkFlagRequired("input")
	}
}

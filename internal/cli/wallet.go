package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/x1wallet/walletcore/internal/output"
	"github.com/x1wallet/walletcore/internal/vault"
	"github.com/x1wallet/walletcore/internal/wallet"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	// walletName is the display name of a created or imported wallet.
	walletName string
	// createWords is the number of words for mnemonic generation.
	createWords int
	// createAccounts is the number of addresses derived up front.
	createAccounts int
)

// WalletEntry is one wallet in list output.
type WalletEntry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Address string `json:"address"`
	Active  bool   `json:"active"`
}

// CreateResponse reports a created wallet. Mnemonic is shown once.
type CreateResponse struct {
	WalletEntry

	Mnemonic string `json:"mnemonic,omitempty"`
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage wallets",
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List wallets",
	Aliases: []string{"ls"},
	RunE:    runWalletList,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a wallet from a new recovery phrase",
	Long: `Generate a recovery phrase and add a wallet derived from it.

The phrase is printed once. Write it down: it is the only way to recover
the wallet without a backup. The first wallet in an empty vault may be
protected with a password.

Example:
  x1wallet wallet create --name main --words 24`,
	RunE: runWalletCreate,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a recovery phrase or private key",
	Long: `Import a wallet. The input is read without echo and may be a
recovery phrase, a base58 secret key, or a JSON byte array.

Example:
  x1wallet wallet import --name trading`,
	RunE: runWalletImport,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletUseCmd = &cobra.Command{
	Use:   "use <id-or-name>",
	Short: "Select the active wallet",
	Args:  cobra.ExactArgs(1),
	RunE:  runWalletUse,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletRemoveCmd = &cobra.Command{
	Use:   "remove <id-or-name>",
	Short: "Remove a wallet and erase its secrets",
	Args:  cobra.ExactArgs(1),
	RunE:  runWalletRemove,
}

func entryOf(r wallet.Record, activeID string) WalletEntry {
	e := WalletEntry{ID: r.Meta().ID, Name: r.Meta().Name, Kind: string(r.Kind()), Active: r.Meta().ID == activeID}
	if a, ok := wallet.ActiveAddress(r); ok {
		e.Address = a.PublicKey.String()
	}
	return e
}

func runWalletList(cmd *cobra.Command, _ []string) error {
	c := GetCmdContext(cmd)
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	entries := []WalletEntry{}
	view, err := s.vault.PublicView()
	if err != nil && !walleterr.Is(err, walleterr.ErrVaultLocked) {
		return err
	}
	if err != nil {
		if _, err := s.unlock(cmd.Context()); err != nil {
			return err
		}
		if view, err = s.vault.PublicView(); err != nil {
			return err
		}
	}
	for _, r := range view.Records() {
		entries = append(entries, entryOf(r, view.ActiveID()))
	}

	w := cmd.OutOrStdout()
	if c.Fmt.IsJSON() {
		return writeJSON(w, entries)
	}
	if len(entries) == 0 {
		outln(w, "No wallets found.")
		outln(w, "Create one with: x1wallet wallet create --name <name>")
		return nil
	}
	tbl := output.NewTable("", "NAME", "KIND", "ADDRESS", "ID")
	for _, e := range entries {
		marker := ""
		if e.Active {
			marker = "*"
		}
		tbl.AddRow(marker, e.Name, e.Kind, e.Address, e.ID)
	}
	return tbl.Render(w)
}

func runWalletCreate(cmd *cobra.Command, _ []string) error {
	strength := wallet.Strength128
	switch createWords {
	case 12:
	case 24:
		strength = wallet.Strength256
	default:
		return walleterr.WithSuggestion(walleterr.ErrInvalidStrength, "use --words 12 or --words 24")
	}
	phrase, err := wallet.GenerateMnemonic(strength)
	if err != nil {
		return err
	}
	w, err := wallet.NewSeedWallet(walletName, phrase, createAccounts)
	if err != nil {
		return err
	}
	entry, err := addWallet(cmd, w)
	if err != nil {
		return err
	}
	resp := CreateResponse{WalletEntry: entry, Mnemonic: phrase}

	dst := cmd.OutOrStdout()
	if GetCmdContext(cmd).Fmt.IsJSON() {
		return writeJSON(dst, resp)
	}
	outln(dst, "Wallet created.")
	outln(dst)
	out(dst, "  Name:    %s\n", resp.Name)
	out(dst, "  Address: %s\n", resp.Address)
	outln(dst)
	outln(dst, "Recovery phrase (shown once):")
	outln(dst)
	for i, word := range strings.Fields(phrase) {
		out(dst, "  %2d. %s\n", i+1, word)
	}
	return nil
}

func runWalletImport(cmd *cobra.Command, _ []string) error {
	input, err := promptPassword("Recovery phrase or private key: ")
	if err != nil {
		return err
	}

	var r wallet.Record
	switch format := wallet.DetectInputFormat(input); format {
	case wallet.FormatMnemonic:
		r, err = wallet.NewSeedWallet(walletName, wallet.NormalizeMnemonicInput(input), createAccounts)
	case wallet.FormatBase58Key, wallet.FormatByteArray:
		r, err = wallet.ImportPrivateKey(walletName, input)
	default:
		err = walleterr.WithSuggestion(walleterr.ErrInvalidInput, "expected a recovery phrase, a base58 secret key or a JSON byte array")
	}
	if err != nil {
		return err
	}
	entry, err := addWallet(cmd, r)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if GetCmdContext(cmd).Fmt.IsJSON() {
		return writeJSON(w, entry)
	}
	out(w, "Imported %s wallet %q: %s\n", entry.Kind, entry.Name, entry.Address)
	return nil
}

// addWallet hands r to the vault, asking for a password when the vault is
// empty and unlocking it when protected.
func addWallet(cmd *cobra.Command, r wallet.Record) (WalletEntry, error) {
	s, err := openSession(cmd)
	if err != nil {
		return WalletEntry{}, err
	}
	defer s.Close()

	password := ""
	if s.vault.State() == vault.StateEmpty {
		outln(cmd.ErrOrStderr(), "Choose a vault password, or press Enter to leave the vault unprotected.")
		if password, err = promptNew("password", true); err != nil {
			return WalletEntry{}, err
		}
	} else if password, err = s.unlock(cmd.Context()); err != nil {
		return WalletEntry{}, err
	}

	id := r.Meta().ID
	if err := s.vault.CreateWallet(cmd.Context(), r, password); err != nil {
		return WalletEntry{}, err
	}
	view, err := s.vault.PublicView()
	if err != nil {
		return WalletEntry{}, err
	}
	added, err := view.Get(id)
	if err != nil {
		return WalletEntry{}, err
	}
	return entryOf(added, view.ActiveID()), nil
}

// findWallet resolves an ID or a unique name.
func findWallet(set *wallet.Set, ref string) (string, error) {
	if _, err := set.Get(ref); err == nil {
		return ref, nil
	}
	var match string
	for _, r := range set.Records() {
		if r.Meta().Name != ref {
			continue
		}
		if match != "" {
			return "", walleterr.WithSuggestion(walleterr.ErrInvalidInput, "several wallets are named "+ref+"; use the ID")
		}
		match = r.Meta().ID
	}
	if match == "" {
		return "", walleterr.WithDetails(walleterr.ErrWalletNotFound, map[string]string{"wallet": ref})
	}
	return match, nil
}

func mutateWallet(cmd *cobra.Command, ref string, fn func(*wallet.Set, string) error) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	if _, err := s.unlock(cmd.Context()); err != nil {
		return err
	}
	return s.vault.Mutate(cmd.Context(), func(set *wallet.Set) error {
		id, err := findWallet(set, ref)
		if err != nil {
			return err
		}
		return fn(set, id)
	})
}

func runWalletUse(cmd *cobra.Command, args []string) error {
	err := mutateWallet(cmd, args[0], func(set *wallet.Set, id string) error {
		return set.SetActive(id)
	})
	if err != nil {
		return err
	}
	return printSuccess(cmd, "Active wallet: "+args[0])
}

func runWalletRemove(cmd *cobra.Command, args []string) error {
	err := mutateWallet(cmd, args[0], func(set *wallet.Set, id string) error {
		return set.Remove(id)
	})
	if err != nil {
		return err
	}
	return printSuccess(cmd, "Removed wallet: "+args[0])
}

func printSuccess(cmd *cobra.Command, msg string) error {
	return output.FormatSuccess(cmd.OutOrStdout(), msg, GetCmdContext(cmd).Fmt.Format())
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletListCmd, walletCreateCmd, walletImportCmd, walletUseCmd, walletRemoveCmd)

	for _, c := range []*cobra.Command{walletCreateCmd, walletImportCmd} {
		c.Flags().StringVar(&walletName, "name", "", "wallet name (required)")
		c.Flags().IntVar(&createAccounts, "accounts", 1, "addresses to derive from a recovery phrase")
		_ = c.MarkFlagRequired("name")
	}
	walletCreateCmd.Flags().IntVar(&createWords, "words", 12, "recovery phrase length: 12 or 24")
}

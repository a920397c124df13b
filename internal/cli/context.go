package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/x1wallet/walletcore/internal/config"
	"github.com/x1wallet/walletcore/internal/output"
	"github.com/x1wallet/walletcore/internal/storage"
	"github.com/x1wallet/walletcore/internal/vault"
)

// CommandContext holds the dependencies of a command run.
type CommandContext struct {
	Cfg *config.Config
	Fmt *output.Formatter
}

type cmdContextKey struct{}

// SetCmdContext attaches c to cmd.
func SetCmdContext(cmd *cobra.Command, c *CommandContext) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cmdContextKey{}, c))
}

// GetCmdContext returns the context attached by SetCmdContext.
func GetCmdContext(cmd *cobra.Command) *CommandContext {
	if ctx := cmd.Context(); ctx != nil {
		if c, ok := ctx.Value(cmdContextKey{}).(*CommandContext); ok {
			return c
		}
	}
	return nil
}

// session is an opened data directory.
type session struct {
	store *storage.Store
	vault *vault.Vault
}

func (s *session) Close() {
	s.vault.Close()
	_ = s.store.Close()
}

// openSession opens storage and resumes the vault. The caller closes it.
func openSession(cmd *cobra.Command) (*session, error) {
	c := GetCmdContext(cmd)
	store, err := storage.Open(cmd.Context(), c.Cfg.DataDir())
	if err != nil {
		return nil, err
	}
	v, err := vault.New(cmd.Context(), store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &session{store: store, vault: v}, nil
}

// unlock prompts for the password when the vault is locked and returns
// it; an unprotected vault yields an empty password.
func (s *session) unlock(ctx context.Context) (string, error) {
	if !s.vault.HasPassword() {
		return "", nil
	}
	password, err := promptPassword("Vault password: ")
	if err != nil {
		return "", err
	}
	if s.vault.State() == vault.StateLocked {
		if err := s.vault.Unlock(ctx, password); err != nil {
			return "", err
		}
		return password, nil
	}
	if err := s.vault.VerifyPassword(password); err != nil {
		return "", err
	}
	return password, nil
}

package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/x1wallet/walletcore/internal/fileutil"
	"github.com/x1wallet/walletcore/internal/vault"
	"github.com/x1wallet/walletcore/internal/wallet"
	"github.com/x1wallet/walletcore/internal/walletcrypto"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// Extension is the file extension of backups.
const Extension = ".x1backup"

//nolint:gochecknoglobals // Sentinel errors
var (
	ErrBackupNotFound   = walleterr.New(walleterr.KindInvalidInput, "BACKUP_NOT_FOUND", "backup file not found")
	ErrDecryptionFailed = walleterr.New(walleterr.KindAuthFailure, "BACKUP_DECRYPT_FAILED", "backup decryption failed")
	ErrInvalidFormat    = walleterr.New(walleterr.KindInvalidInput, "BACKUP_INVALID_FORMAT", "invalid backup format")
)

// Export encrypts the plaintext wallet set to passphrase.
func Export(plain []byte, passphrase string, now time.Time) (*Backup, error) {
	if passphrase == "" {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"reason": "empty passphrase"})
	}
	set, err := wallet.ParseSet(plain)
	if err != nil {
		return nil, err
	}
	defer set.Wipe()

	encrypted, err := walletcrypto.Encrypt(plain, passphrase)
	if err != nil {
		return nil, walleterr.Wrap(err, "encrypting backup")
	}
	return NewBackup(NewManifest(set, now), encrypted), nil
}

// Import validates b and decrypts the wallet set it holds.
func Import(b *Backup, passphrase string) (*wallet.Set, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	plain, err := walletcrypto.Decrypt(b.EncryptedData, passphrase)
	if err != nil {
		return nil, walleterr.WrapAs(ErrDecryptionFailed, err)
	}
	defer walletcrypto.Zero(plain)
	return wallet.ParseSet(plain)
}

// Service reads and writes backups under a directory.
type Service struct {
	dir    string
	now    func() time.Time
	logger *log.Entry
}

// NewService returns a service storing backups in dir.
func NewService(dir string) *Service {
	return &Service{
		dir:    dir,
		now:    time.Now,
		logger: log.WithFields(log.Fields{"prefix": "backup"}),
	}
}

// Create exports the vault's wallet set after confirming password and
// writes it encrypted to passphrase. It returns the file path.
func (s *Service) Create(v *vault.Vault, password, passphrase string) (*Backup, string, error) {
	plain, err := v.ExportSet(password)
	if err != nil {
		return nil, "", err
	}
	defer walletcrypto.Zero(plain)

	b, err := Export(plain, passphrase, s.now())
	if err != nil {
		return nil, "", err
	}
	path := filepath.Join(s.dir, "x1wallet-"+b.Manifest.CreatedAt.Format("2006-01-02-150405")+Extension)
	if err := fileutil.WriteJSON(path, b); err != nil {
		return nil, "", walleterr.Wrap(err, "writing backup")
	}
	s.logger.WithFields(log.Fields{"path": path, "wallets": b.Manifest.WalletCount}).Info("backup written")
	return b, path, nil
}

// Read loads a backup file.
func (s *Service) Read(path string) (*Backup, error) {
	var b Backup
	found, err := fileutil.ReadJSON(path, &b)
	if err != nil {
		return nil, walleterr.WrapAs(ErrInvalidFormat, err)
	}
	if !found {
		return nil, walleterr.WithDetails(ErrBackupNotFound, map[string]string{"path": path})
	}
	return &b, nil
}

// Verify checks a backup file's integrity without decrypting.
func (s *Service) Verify(path string) (*Manifest, error) {
	b, err := s.Read(path)
	if err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b.Manifest, nil
}

// Restore adds every wallet of the backup at path that the vault does not
// already hold. password protects a vault created by the restore. It
// returns the number of wallets added.
func (s *Service) Restore(ctx context.Context, v *vault.Vault, path, passphrase, password string) (int, error) {
	b, err := s.Read(path)
	if err != nil {
		return 0, err
	}
	set, err := Import(b, passphrase)
	if err != nil {
		return 0, err
	}

	var existing []string
	if view, err := v.PublicView(); err == nil {
		for _, r := range view.Records() {
			existing = append(existing, r.Meta().ID)
		}
	} else {
		set.Wipe()
		return 0, err
	}

	// Records handed to the vault are owned by it; the rest are wiped here.
	records := set.Records()
	added := 0
	for i, r := range records {
		id := r.Meta().ID
		if slices.Contains(existing, id) {
			_ = set.Remove(id)
			continue
		}
		if err := v.CreateWallet(ctx, r, password); err != nil {
			for _, rest := range records[i:] {
				_ = set.Remove(rest.Meta().ID)
			}
			return added, err
		}
		added++
	}
	s.logger.WithField("wallets", added).Info("backup restored")
	return added, nil
}

// List returns the backup file names in the directory.
func (s *Service) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, walleterr.Wrap(err, "reading backup directory")
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == Extension {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

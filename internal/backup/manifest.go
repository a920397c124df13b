// Package backup provides user-initiated encrypted export and restore of the
// wallet set.
package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/x1wallet/walletcore/internal/wallet"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// BackupVersion is the current backup format version.
const BackupVersion = 1

// EncryptionMethod names the cipher of EncryptedData.
const EncryptionMethod = "age-scrypt"

// Backup is a complete exported wallet set.
type Backup struct {
	Version       int      `json:"version"`
	Manifest      Manifest `json:"manifest"`
	EncryptedData []byte   `json:"encrypted_data"`

	// Checksum is the hex SHA-256 of EncryptedData.
	Checksum string `json:"checksum"`
}

// Manifest describes a backup without decrypting it.
type Manifest struct {
	CreatedAt        time.Time      `json:"created_at"`
	WalletCount      int            `json:"wallet_count"`
	Kinds            map[string]int `json:"kinds"`
	AddressCount     int            `json:"address_count"`
	EncryptionMethod string         `json:"encryption_method"`
}

// NewManifest summarizes set.
func NewManifest(set *wallet.Set, now time.Time) Manifest {
	m := Manifest{
		CreatedAt:        now.UTC(),
		Kinds:            map[string]int{},
		EncryptionMethod: EncryptionMethod,
	}
	for _, r := range set.Records() {
		m.WalletCount++
		m.Kinds[string(r.Kind())]++
		m.AddressCount += len(r.Addresses())
	}
	return m
}

// CalculateChecksum computes the SHA256 checksum of data.
func CalculateChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// VerifyChecksum verifies that data matches the expected checksum.
func VerifyChecksum(data []byte, expected string) error {
	actual := CalculateChecksum(data)
	if actual != expected {
		return walleterr.WithDetails(walleterr.ErrBackupCorrupted, map[string]string{"expected": expected, "actual": actual})
	}
	return nil
}

// NewBackup wraps encrypted data with its manifest and checksum.
func NewBackup(manifest Manifest, encryptedData []byte) *Backup {
	return &Backup{
		Version:       BackupVersion,
		Manifest:      manifest,
		EncryptedData: encryptedData,
		Checksum:      CalculateChecksum(encryptedData),
	}
}

// Validate checks the backup for consistency.
func (b *Backup) Validate() error {
	if b.Version != BackupVersion {
		return walleterr.WithDetails(ErrInvalidFormat, map[string]string{"reason": "unsupported version"})
	}
	if b.Manifest.WalletCount == 0 {
		return walleterr.WithDetails(ErrInvalidFormat, map[string]string{"reason": "no wallets"})
	}
	if len(b.EncryptedData) == 0 {
		return walleterr.WithDetails(ErrInvalidFormat, map[string]string{"reason": "no encrypted data"})
	}
	return VerifyChecksum(b.EncryptedData, b.Checksum)
}

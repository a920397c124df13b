// Package wallet implements BIP-39 mnemonics, SLIP-0010 Ed25519 key
// derivation, and the tagged wallet records that make up a wallet set.
package wallet

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/text/unicode/norm"

	"github.com/x1wallet/walletcore/internal/walletcrypto"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// Supported entropy strengths in bits.
const (
	Strength128 = 128
	Strength256 = 256
)

var (
	// whitespaceRegex matches one or more whitespace characters.
	whitespaceRegex = regexp.MustCompile(`\s+`)

	// numberedListRegex matches numbered list prefixes like "1." "2)" "3:"
	numberedListRegex = regexp.MustCompile(`(?m)^\s*\d+[\.\)\:]\s*`)

	// bulletListRegex matches bullet prefixes like "- " "* " "• "
	bulletListRegex = regexp.MustCompile(`(?m)^\s*[-*•]\s*`)
)

// GenerateMnemonic draws strength bits of entropy from the host random
// source and encodes them as a phrase.
func GenerateMnemonic(strength int) (string, error) {
	if strength != Strength128 && strength != Strength256 {
		return "", walleterr.ErrInvalidStrength
	}

	entropy, err := walletcrypto.RandomBytes(strength / 8)
	if err != nil {
		return "", walleterr.Wrap(err, "drawing entropy")
	}
	defer walletcrypto.Zero(entropy)

	return MnemonicFromEntropy(entropy)
}

// MnemonicFromEntropy encodes 16 or 32 bytes of entropy. It is deterministic.
func MnemonicFromEntropy(entropy []byte) (string, error) {
	if len(entropy) != Strength128/8 && len(entropy) != Strength256/8 {
		return "", walleterr.ErrInvalidStrength
	}
	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", walleterr.WrapAs(walleterr.ErrInvalidStrength, err)
	}
	return phrase, nil
}

// ValidateMnemonic reports the first problem with phrase: ErrWrongWordCount,
// ErrUnknownWord (with a 1-based position and a suggestion when one is
// close enough), or ErrBadChecksum.
func ValidateMnemonic(phrase string) error {
	words := strings.Fields(NormalizeMnemonicInput(phrase))
	if len(words) != 12 && len(words) != 24 {
		return walleterr.WithDetails(walleterr.ErrWrongWordCount, map[string]string{
			"words": strconv.Itoa(len(words)),
		})
	}

	for i, w := range words {
		if _, ok := bip39.GetWordIndex(w); ok {
			continue
		}
		err := walleterr.WithDetails(walleterr.ErrUnknownWord, map[string]string{
			"position": strconv.Itoa(i + 1),
		})
		if s := SuggestWord(w); s != "" {
			err = walleterr.WithSuggestion(err, "did you mean '"+s+"'?")
		}
		return err
	}

	if _, err := bip39.EntropyFromMnemonic(strings.Join(words, " ")); err != nil {
		if errors.Is(err, bip39.ErrChecksumIncorrect) {
			return walleterr.ErrBadChecksum
		}
		return walleterr.WrapAs(walleterr.ErrInvalidInput, err)
	}
	return nil
}

// NormalizeMnemonicInput applies NFKD and lowercase, strips numbered list
// and bullet prefixes and commas, and collapses whitespace to single spaces.
func NormalizeMnemonicInput(input string) string {
	input = norm.NFKD.String(input)
	input = strings.ToLower(input)
	input = numberedListRegex.ReplaceAllString(input, " ")
	input = bulletListRegex.ReplaceAllString(input, " ")
	input = strings.ReplaceAll(input, ",", " ")
	input = whitespaceRegex.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// MnemonicToSeed validates phrase and expands it to the 64-byte BIP-39 seed
// with PBKDF2-HMAC-SHA512, 2048 rounds, salt "mnemonic" || passphrase.
// The caller should zero the seed after use.
func MnemonicToSeed(phrase, passphrase string) ([]byte, error) {
	if err := ValidateMnemonic(phrase); err != nil {
		return nil, err
	}
	return bip39.NewSeed(NormalizeMnemonicInput(phrase), norm.NFKD.String(passphrase)), nil
}

// EntropyFromMnemonic recovers the entropy a valid phrase encodes.
func EntropyFromMnemonic(phrase string) ([]byte, error) {
	if err := ValidateMnemonic(phrase); err != nil {
		return nil, err
	}
	return bip39.EntropyFromMnemonic(NormalizeMnemonicInput(phrase))
}

// IsValidWord checks if a word is in the BIP39 word list.
func IsValidWord(word string) bool {
	_, ok := bip39.GetWordIndex(strings.ToLower(word))
	return ok
}

// MaxTypoDistance is the maximum Levenshtein distance to consider a suggestion.
const MaxTypoDistance = 2

// SuggestWord finds the closest BIP39 word to the input using Levenshtein distance.
// Returns empty string if no word is close enough.
func SuggestWord(input string) string {
	input = strings.ToLower(input)

	minDist := math.MaxInt
	var suggestion string

	for _, word := range bip39.GetWordList() {
		dist := levenshtein.ComputeDistance(input, word)
		if dist == 0 {
			return word
		}
		if dist < minDist {
			minDist = dist
			suggestion = word
		}
	}

	if minDist <= MaxTypoDistance {
		return suggestion
	}
	return ""
}

package cli

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/x1wallet/walletcore/internal/walletcrypto"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// readSecret reads one line from the terminal without echo.
//
//nolint:gochecknoglobals // replaced in tests
var readSecret = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd())) //nolint:gosec // G115: Fd fits in int
}

// promptPassword writes prompt to stderr and reads hidden input.
func promptPassword(prompt string) (string, error) {
	out(os.Stderr, "%s", prompt)
	b, err := readSecret()
	outln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	defer walletcrypto.Zero(b)
	return strings.TrimRight(string(b), "\r\n"), nil
}

// promptNew reads a value twice and requires both entries to match. An
// empty first entry is returned as is when allowEmpty is set.
func promptNew(label string, allowEmpty bool) (string, error) {
	first, err := promptPassword("Enter " + label + ": ")
	if err != nil {
		return "", err
	}
	if first == "" {
		if allowEmpty {
			return "", nil
		}
		return "", walleterr.WithSuggestion(walleterr.ErrInvalidInput, label+" must not be empty")
	}
	again, err := promptPassword("Confirm " + label + ": ")
	if err != nil {
		return "", err
	}
	if first != again {
		return "", walleterr.WithSuggestion(walleterr.ErrInvalidInput, label+"s do not match")
	}
	return first, nil
}

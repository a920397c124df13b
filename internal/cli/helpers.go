package cli

import (
	"fmt"
	"io"

	"github.com/x1wallet/walletcore/internal/output"
)

// out is a helper for CLI output.
//
//nolint:errcheck // CLI output writes are intentionally unchecked
func out(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}

// outln is a helper for CLI output with newline.
//
//nolint:errcheck // CLI output writes are intentionally unchecked
func outln(w io.Writer, args ...any) {
	fmt.Fprintln(w, args...)
}

func writeJSON(w io.Writer, v any) error {
	return output.WriteJSON(w, v)
}

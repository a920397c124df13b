package output

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// ErrorOutput is the JSON shape of a failed command.
type ErrorOutput struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one error.
type ErrorDetail struct {
	Kind       string            `json:"kind"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	ExitCode   int               `json:"exit_code"`
	Provider   int               `json:"provider_code"`
}

// Detail converts err for display.
func Detail(err error) ErrorDetail {
	d := ErrorDetail{
		Kind:     string(walleterr.KindOf(err)),
		Code:     walleterr.Code(err),
		Message:  err.Error(),
		ExitCode: walleterr.ExitCode(err),
		Provider: walleterr.ProviderCode(err),
	}
	var we *walleterr.WalletError
	if errors.As(err, &we) {
		d.Message = we.Message
		if we.Cause != nil {
			d.Message = fmt.Sprintf("%s: %v", we.Message, we.Cause)
		}
		d.Details = we.Details
		d.Suggestion = we.Suggestion
	}
	return d
}

// FormatError writes err in format. A nil err writes nothing.
func FormatError(w io.Writer, err error, format Format) error {
	if err == nil {
		return nil
	}
	d := Detail(err)
	if format == FormatJSON {
		return WriteJSON(w, ErrorOutput{Error: d})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", d.Message)
	if len(d.Details) > 0 {
		keys := make([]string, 0, len(d.Details))
		for k := range d.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("\nDetails:\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %s\n", k, d.Details[k])
		}
	}
	if d.Suggestion != "" {
		fmt.Fprintf(&sb, "\nSuggestion: %s\n", d.Suggestion)
	}
	_, err = io.WriteString(w, sb.String())
	return err
}

// FormatSuccess writes a one-line confirmation.
func FormatSuccess(w io.Writer, message string, format Format) error {
	if format == FormatJSON {
		return WriteJSON(w, map[string]string{"status": "success", "message": message})
	}
	_, err := fmt.Fprintln(w, message)
	return err
}

package output_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x1wallet/walletcore/internal/output"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

var errPlain = errors.New("something went wrong")

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errPlain }

func TestFormatter_Print(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	f := output.NewFormatter(output.FormatJSON, &buf)
	require.NoError(t, f.Print(map[string]int{"a": 1}))
	assert.JSONEq(t, `{"a":1}`, buf.String())
	assert.True(t, f.IsJSON())

	buf.Reset()
	f = output.NewFormatter(output.FormatText, &buf)
	require.NoError(t, f.Print("hello"))
	require.NoError(t, f.Print(42))
	assert.Equal(t, "hello\n42\n", buf.String())
	assert.Equal(t, output.FormatText, f.Format())
	assert.Same(t, &buf, f.Writer())
}

func TestParseFormat(t *testing.T) {
	t.Parallel()
	tests := map[string]output.Format{
		"json":    output.FormatJSON,
		" JSON ":  output.FormatJSON,
		"text":    output.FormatText,
		"auto":    output.FormatAuto,
		"":        output.FormatAuto,
		"unknown": output.FormatAuto,
	}
	for in, want := range tests {
		assert.Equal(t, want, output.ParseFormat(in), in)
	}
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	assert.Equal(t, output.FormatText, output.DetectFormat(&buf, output.FormatText))
	assert.Equal(t, output.FormatJSON, output.DetectFormat(&buf, output.FormatAuto))
}

func TestTable(t *testing.T) {
	t.Parallel()

	tbl := output.NewTable("NAME", "ADDRESS")
	tbl.AddRow("main", "9xQe")
	tbl.AddRow("trading-desk")
	assert.Equal(t,
		"NAME          ADDRESS\n"+
			"------------  -------\n"+
			"main          9xQe\n"+
			"trading-desk\n",
		tbl.String())

	bare := output.NewTable()
	bare.SetSeparator(" | ")
	bare.AddRow("é", "b")
	bare.AddRow("cc", "d")
	assert.Equal(t, "é  | b\ncc | d\n", bare.String())

	assert.Empty(t, output.NewTable().String())
}

func TestFormatError(t *testing.T) {
	t.Parallel()

	werr := walleterr.WithSuggestion(
		walleterr.WithDetails(walleterr.ErrVaultLocked, map[string]string{"b": "2", "a": "1"}),
		"unlock first")

	t.Run("json wallet error", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		require.NoError(t, output.FormatError(&buf, werr, output.FormatJSON))
		var got output.ErrorOutput
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "VAULT_LOCKED", got.Error.Code)
		assert.Equal(t, "auth_failure", got.Error.Kind)
		assert.Equal(t, "vault is locked", got.Error.Message)
		assert.Equal(t, "unlock first", got.Error.Suggestion)
		assert.Equal(t, walleterr.ExitAuth, got.Error.ExitCode)
		assert.Equal(t, walleterr.CodeUnauthorized, got.Error.Provider)
		assert.Len(t, got.Error.Details, 2)
	})

	t.Run("text wallet error", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		require.NoError(t, output.FormatError(&buf, werr, output.FormatText))
		assert.Equal(t,
			"Error: vault is locked\n\nDetails:\n  a: 1\n  b: 2\n\nSuggestion: unlock first\n",
			buf.String())
	})

	t.Run("plain error", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		require.NoError(t, output.FormatError(&buf, errPlain, output.FormatJSON))
		var got output.ErrorOutput
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "INTERNAL", got.Error.Code)
		assert.Equal(t, errPlain.Error(), got.Error.Message)
		assert.Equal(t, walleterr.ExitGeneral, got.Error.ExitCode)
	})

	t.Run("nil and failing writer", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		require.NoError(t, output.FormatError(&buf, nil, output.FormatText))
		assert.Empty(t, buf.String())
		require.Error(t, output.FormatError(failingWriter{}, errPlain, output.FormatText))
	})
}

func TestFormatSuccess(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, output.FormatSuccess(&buf, "done", output.FormatJSON))
	assert.JSONEq(t, `{"status":"success","message":"done"}`, buf.String())

	buf.Reset()
	require.NoError(t, output.FormatSuccess(&buf, "done", output.FormatText))
	assert.Equal(t, "done\n", buf.String())
}

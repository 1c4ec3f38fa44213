package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_ErrorCodes(t *testing.T) {
	tests := []struct {
		code    string
		message string
	}{
		{ErrCodeConfig, "rateIntervalSeconds must be positive"},
		{ErrCodeReadFile, "open walletcore.yaml: no such file"},
		{ErrCodeJournal, "journal.db: unsupported format 2"},
		{ErrCodeReplay, "replayed digest differs from checkpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			var buf bytes.Buffer
			f := &OutputFormatter{Format: "json", Writer: &buf}
			require.NoError(t, f.Error(tt.code, tt.message, nil))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.message, resp.Error.Message)
			assert.Nil(t, resp.Data)
		})
	}
}

func TestCLIResponse_EnvelopeKeys(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}
	require.NoError(t, f.Success(map[string]int{"scenarios": 3}))

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Len(t, raw, 2, "status and data only: %s", buf.String())
	assert.JSONEq(t, `"ok"`, string(raw["status"]))
	assert.JSONEq(t, `{"scenarios":3}`, string(raw["data"]))

	buf.Reset()
	require.NoError(t, f.Error(ErrCodeReplay, "digest mismatch", []string{"seq 12"}))
	assert.JSONEq(t,
		`{"status":"error","error":{"code":"E202","message":"digest mismatch","details":["seq 12"]}}`,
		buf.String())
}

func TestOutputFormatter_Text(t *testing.T) {
	details := map[string]string{"path": "journal.db"}

	t.Run("success", func(t *testing.T) {
		var buf bytes.Buffer
		f := &OutputFormatter{Format: "text", Writer: &buf}
		require.NoError(t, f.Success("config ok"))
		assert.Equal(t, "config ok\n", buf.String())
	})

	t.Run("error hides details", func(t *testing.T) {
		var buf bytes.Buffer
		f := &OutputFormatter{Format: "text", Writer: &buf}
		require.NoError(t, f.Error(ErrCodeJournal, "journal unreadable", details))
		assert.Equal(t, "Error [E201]: journal unreadable\n", buf.String())
	})

	t.Run("verbose error shows details", func(t *testing.T) {
		var buf bytes.Buffer
		f := &OutputFormatter{Format: "text", Writer: &buf, Verbose: true}
		require.NoError(t, f.Error(ErrCodeJournal, "journal unreadable", details))
		assert.Contains(t, buf.String(), "Error [E201]: journal unreadable\n")
		assert.Contains(t, buf.String(), "Details: map[path:journal.db]")
	})
}

func TestOutputFormatter_VerboseLogKeepsJSONClean(t *testing.T) {
	var out, diag bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &diag, Verbose: true}

	f.VerboseLog("replaying %d actions", 40)
	require.NoError(t, f.Success("done"))

	assert.Equal(t, "replaying 40 actions\n", diag.String())
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp), "stdout must stay parseable")
	assert.Equal(t, "done", resp.Data)

	quiet := &OutputFormatter{Format: "text", Writer: &out}
	out.Reset()
	quiet.VerboseLog("never shown")
	assert.Empty(t, out.String())
	assert.Same(t, &out, quiet.GetErrWriter())
}

func TestExitError(t *testing.T) {
	cause := errors.New("database is locked")
	wrapped := WrapExitError(ExitCommandError, "open journal", cause)

	assert.Equal(t, "open journal: database is locked", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("replay: %w", wrapped)))

	plain := NewExitError(ExitFailure, "2 scenarios failed")
	assert.Equal(t, "2 scenarios failed", plain.Error())
	assert.Nil(t, plain.Unwrap())
	assert.Equal(t, ExitFailure, GetExitCode(plain))

	assert.Equal(t, ExitFailure, GetExitCode(cause), "unclassified errors fail")
}

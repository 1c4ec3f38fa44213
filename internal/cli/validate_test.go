package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "walletcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runValidateCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidate_ValidConfig(t *testing.T) {
	path := writeConfig(t, "apiKey: k1\nappId: edge\nsyncInterval: 10s\n")

	out, err := runValidateCmd(t, "text", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "sync interval: 10s")
	assert.Contains(t, out, "rate pairs:    4")
}

func TestValidate_ValidConfigJSON(t *testing.T) {
	path := writeConfig(t, "apiKey: k1\nplugins: [bitcoin]\n")

	out, err := runValidateCmd(t, "json", path)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []string{"bitcoin"}, resp.Data.Plugins)
	assert.Equal(t, "30s", resp.Data.SyncInterval)
}

func TestValidate_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "appId: x\n")

	out, err := runValidateCmd(t, "json", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "apiKey")
}

func TestValidate_UnknownField(t *testing.T) {
	path := writeConfig(t, "apiKey: k1\napikey: typo\n")

	out, err := runValidateCmd(t, "text", path)
	require.Error(t, err)
	assert.Contains(t, out, "Error ["+ErrCodeConfig+"]")
}

func TestValidate_MissingFile(t *testing.T) {
	_, err := runValidateCmd(t, "text", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidate_RequiresArg(t *testing.T) {
	_, err := runValidateCmd(t, "text")
	require.Error(t, err)
}

package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "s.yaml", `
name: logout
description: "Logout removes the account"
actions:
  - type: LOGIN
    payload: { accountId: a }
  - type: LOGOUT
    payload: { accountId: a }
expect:
  - len(accounts) == 0
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "logout", s.Name)
	require.Len(t, s.Actions, 2)
	assert.Equal(t, "LOGIN", s.Actions[0].Type)
	assert.Equal(t, "a", s.Actions[0].Payload["accountId"])
	assert.Equal(t, []string{"len(accounts) == 0"}, s.Expect)
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "unknown field",
			content: "name: x\ndescription: d\nactions: [{type: LOGOUT}]\nexpect: [\"true\"]\nassertions: []\n",
			want:    "field assertions not found",
		},
		{
			name:    "missing name",
			content: "description: d\nactions: [{type: LOGOUT}]\nexpect: [\"true\"]\n",
			want:    "name is required",
		},
		{
			name:    "missing description",
			content: "name: x\nactions: [{type: LOGOUT}]\nexpect: [\"true\"]\n",
			want:    "description is required",
		},
		{
			name:    "no actions",
			content: "name: x\ndescription: d\nexpect: [\"true\"]\n",
			want:    "actions list is required",
		},
		{
			name:    "no expect",
			content: "name: x\ndescription: d\nactions: [{type: LOGOUT}]\n",
			want:    "expect list is required",
		},
		{
			name:    "unknown action",
			content: "name: x\ndescription: d\nactions: [{type: TELEPORT}]\nexpect: [\"true\"]\n",
			want:    `unknown action type "TELEPORT"`,
		},
		{
			name:    "missing type",
			content: "name: x\ndescription: d\nactions: [{payload: {}}]\nexpect: [\"true\"]\n",
			want:    "actions[0]: type is required",
		},
		{
			name:    "blank expression",
			content: "name: x\ndescription: d\nactions: [{type: LOGOUT}]\nexpect: [\"  \"]\n",
			want:    "expect[0]: expression is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), "s.yaml", tt.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestLoadDir_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	body := "description: d\nactions: [{type: LOGOUT}]\nexpect: [\"true\"]\n"
	writeScenario(t, dir, "b.yaml", "name: second\n"+body)
	writeScenario(t, dir, "a.yml", "name: first\n"+body)
	writeScenario(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	scenarios, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "first", scenarios[0].Name)
	assert.Equal(t, "second", scenarios[1].Name)
}

func TestLoadDir_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	body := "name: same\ndescription: d\nactions: [{type: LOGOUT}]\nexpect: [\"true\"]\n"
	writeScenario(t, dir, "a.yaml", body)
	writeScenario(t, dir, "b.yaml", body)

	_, err := LoadDir(dir)
	assert.ErrorContains(t, err, `scenario name "same" already used by a.yaml`)
}

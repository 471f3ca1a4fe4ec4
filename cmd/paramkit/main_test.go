package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginSchema = `version: "1.0"
parameters:
  - kind: Text
    key: user
    metadata: {label: User name}
    flags: [REQUIRED]
    validation:
      - {type: MinLength, value: 3}
  - kind: Text
    key: password
    flags: [SENSITIVE]
  - kind: Boolean
    key: debug
    flags: [SKIP_SAVE]
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "login.yaml", loginSchema)
	bad := writeFile(t, dir, "bad.yaml", "version: \"1.0\"\nparameters:\n  - {kind: Text, key: a}\n  - {kind: Text, key: a}\n")

	out, err := run(t, "", "check", good)
	require.NoError(t, err)
	assert.Contains(t, out, "login.yaml (version 1.0, 3 paths)")

	out, err = run(t, "", "check", good, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 schemas failed")
	assert.Contains(t, out, "duplicate path")
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "login.yaml", loginSchema)

	tests := []struct {
		name    string
		values  string
		args    []string
		wantErr error
		want    []string
	}{
		{
			name:   "valid",
			values: `{"user":"alice","password":"hunter22"}`,
			want:   []string{"Valid: 3 paths checked."},
		},
		{
			name:    "invalid",
			values:  `{"user":"al"}`,
			wantErr: errInvalid,
			want:    []string{"Invalid: 1 of 3 paths failed.", "MinLength"},
		},
		{
			name:   "states redact sensitive",
			values: `{"user":"alice","password":"hunter22"}`,
			args:   []string{"--states"},
			want:   []string{"********", "user (User name)"},
		},
		{
			name:   "json output",
			values: `{"user":"alice"}`,
			args:   []string{"-o", "json"},
			want:   []string{`"valid": true`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"validate", "-s", schema, "-"}, tt.args...)
			out, err := run(t, tt.values, args...)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "err = %v", err)
			} else {
				require.NoError(t, err)
			}
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			assert.NotContains(t, out, "hunter22")
		})
	}
}

func TestValidate_Rejected(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "login.yaml", loginSchema)

	_, err := run(t, `{"nope":"x"}`, "validate", "-s", schema, "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown path")

	_, err = run(t, `{}`, "validate", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")

	_, err = run(t, `{}`, "validate", "-s", schema, "-o", "xml", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "login.yaml", loginSchema)
	values := writeFile(t, dir, "values.json", `{"user":"alice","password":"hunter22","debug":true}`)

	decode := func(t *testing.T, out string) map[string]any {
		t.Helper()
		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &doc))
		return doc
	}

	out, err := run(t, "", "export", "-s", schema, values)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"user": "alice", "password": "hunter22", "debug": true}, decode(t, out))

	out, err = run(t, "", "export", "-s", schema, values, "--persistable")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"user": "alice", "password": "hunter22"}, decode(t, out))

	out, err = run(t, "", "export", "-s", schema, values, "--persistable", "--exclude-sensitive")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"user": "alice"}, decode(t, out))

	out, err = run(t, "", "export", "-s", schema, values, "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "user:")
	assert.NotContains(t, out, "hunter22")
}

func TestServe_NoConfig(t *testing.T) {
	t.Setenv("PARAMKIT_SCHEMAS_DIR", "")

	out, err := run(t, "", "serve", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "No configuration found.")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "paramkit dev")
}

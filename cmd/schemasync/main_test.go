package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemasync/internal/config"
)

const libraryYAML = `
library:
  book:
    columns:
      id: {type: serial, size: "10", allowNull: "no", defaultValue: ""}
      title: {type: varchar, size: "100", allowNull: "yes", defaultValue: "NULL"}
    keys:
      PRIMARY: {type: pk, columns: [id]}
`

// isolate keeps the test away from the caller's environment and any .env in
// the working directory.
func isolate(t *testing.T) string {
	t.Helper()
	for _, key := range []string{config.EnvDatabaseURL, config.EnvIgnoredSchemas, config.EnvExclusiveSchema, config.EnvLogLevel, config.EnvLogFormat} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := newRootCommand()
	for _, name := range []string{"dump", "export", "apply", "drop-table", "version"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := newRootCommand()
	for _, name := range []string{"db-url", "env-file", "ignore", "exclusive", "log-level", "log-format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "info", cmd.PersistentFlags().Lookup("log-level").DefValue)
}

func TestVersion(t *testing.T) {
	isolate(t)

	out, err := execute(t, "version", "--db-url", "memory://")
	require.NoError(t, err)
	assert.Equal(t, "memory 8.0.36-memory\n", out)
}

func TestDatabaseURLFromEnvFile(t *testing.T) {
	dir := isolate(t)
	envFile := filepath.Join(dir, "schemasync.env")
	require.NoError(t, os.WriteFile(envFile, []byte(config.EnvDatabaseURL+"=memory://\n"), 0o600))

	out, err := execute(t, "version", "--env-file", envFile)
	require.NoError(t, err)
	assert.Equal(t, "memory 8.0.36-memory\n", out)
}

func TestMissingDatabaseURL(t *testing.T) {
	isolate(t)

	_, err := execute(t, "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--db-url")
}

func TestApply(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "library.yaml")
	require.NoError(t, os.WriteFile(path, []byte(libraryYAML), 0o600))

	out, err := execute(t, "apply", path, "--db-url", "memory://")
	require.NoError(t, err)
	assert.Equal(t, "applied "+path+"\n", out)
}

func TestApplyDryRun(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "library.yaml")
	require.NoError(t, os.WriteFile(path, []byte(libraryYAML), 0o600))

	out, err := execute(t, "apply", path, "--db-url", "memory://", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "CREATE DATABASE `library`;\n")
	assert.Contains(t, out, "CREATE TABLE `library`.`book`")
	assert.NotContains(t, out, "applied")
}

func TestApplyMissingDocument(t *testing.T) {
	dir := isolate(t)

	_, err := execute(t, "apply", filepath.Join(dir, "missing.json"), "--db-url", "memory://")
	assert.Error(t, err)
}

func TestDropTableMissing(t *testing.T) {
	isolate(t)

	_, err := execute(t, "drop-table", "library", "book", "--db-url", "memory://")
	assert.Error(t, err)
}

func TestDumpFlagValidation(t *testing.T) {
	isolate(t)

	_, err := execute(t, "dump", "--db-url", "memory://", "--format", "html")
	assert.Error(t, err)

	_, err = execute(t, "dump", "--db-url", "memory://", "-o", "out.txt", "-d", "out")
	assert.Error(t, err)
}

func TestDocumentFormat(t *testing.T) {
	tests := []struct {
		name   string
		format string
		path   string
		want   string
	}{
		{name: "explicit", format: "yaml", path: "out.json", want: "yaml"},
		{name: "from extension", path: "out.yml", want: "yaml"},
		{name: "stdout", want: "json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := documentFormat(tt.format, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	_, err := documentFormat("xml", "")
	assert.Error(t, err)
}

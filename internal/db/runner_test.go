package db

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemasync/internal/schema"
)

var errBoom = errors.New("boom")

func TestRunnerExec(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := newRunner("test", nil, []Option{WithLogger(logger)})

	var ran []string
	err := r.exec(context.Background(), "create table", "CREATE TABLE t (a INT)", func(_ context.Context, stmt string) error {
		ran = append(ran, stmt)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"CREATE TABLE t (a INT)"}, ran)
	assert.Contains(t, logs.String(), "engine=test")
	assert.Contains(t, logs.String(), `statement="CREATE TABLE t (a INT)"`)
}

func TestRunnerWrapsFailures(t *testing.T) {
	classify := func(err error) error { return errors.Join(schema.ErrAlreadyExists, err) }
	r := newRunner("test", classify, nil)

	err := r.exec(context.Background(), "create namespace", "CREATE DATABASE x", func(context.Context, string) error {
		return errBoom
	})
	require.Error(t, err)

	var de *schema.DriverError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "create namespace", de.Op)
	assert.Equal(t, "CREATE DATABASE x", de.Statement)
	assert.True(t, errors.Is(err, schema.ErrDriver))
	assert.True(t, errors.Is(err, schema.ErrAlreadyExists))
	assert.True(t, errors.Is(err, errBoom))
}

func TestRunnerExecAllStopsAtFirstFailure(t *testing.T) {
	r := newRunner("test", nil, nil)
	var ran []string
	err := r.execAll(context.Background(), "alter table", []string{"a", "b", "c"}, func(_ context.Context, stmt string) error {
		ran = append(ran, stmt)
		if stmt == "b" {
			return errBoom
		}
		return nil
	})
	assert.True(t, errors.Is(err, errBoom))
	assert.Equal(t, []string{"a", "b"}, ran)
}

func TestRunnerDryRun(t *testing.T) {
	var out strings.Builder
	r := newRunner("test", nil, []Option{WithDryRun(&out)})

	err := r.execAll(context.Background(), "create table", []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a (x)"}, func(context.Context, string) error {
		t.Fatal("dry-run must not execute")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE a (x INT);\nCREATE INDEX i ON a (x);\n", out.String())

	plan := &schema.TablePlan{Namespace: "s", Table: "a", Indexes: []schema.IndexChange{
		{Index: schema.IndexDefinition{Name: "i", Columns: []string{"x"}}},
	}}
	r.remember(plan)
	defs, ok := r.recall("s", "a")
	require.True(t, ok)
	assert.Equal(t, []schema.IndexDefinition{{Name: "i", Columns: []string{"x"}}}, defs)

	_, ok = r.recall("s", "b")
	assert.False(t, ok)
}

func TestRunnerRemembersOnlyInDryRun(t *testing.T) {
	r := newRunner("test", nil, nil)
	r.remember(&schema.TablePlan{Namespace: "s", Table: "a"})
	_, ok := r.recall("s", "a")
	assert.False(t, ok)
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, "`we``ird`", quoteMySQL("we`ird"))
	assert.Equal(t, `"we""ird"`, quotePostgres(`we"ird`))
	assert.Equal(t, `"we""ird"`, quoteSQLite(`we"ird`))
	assert.Equal(t, "'o''clock'", quoteLiteral("o'clock"))
	assert.Equal(t, "`a`, `b`", joinQuoted([]string{"a", "b"}, quoteMySQL))
}

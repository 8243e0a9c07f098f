package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseFlags(t *testing.T) {
	t.Setenv("SQLWORKER_SEED", "/tmp/seed.db")
	t.Setenv("SQLWORKER_EXTENSIONS", "false")
	cfg := parseFlags(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-dir", "/data", "-debug"})
	assert.Equal(t, "/data", cfg.dir)
	assert.Equal(t, "/tmp/seed.db", cfg.seed)
	assert.True(t, cfg.debug)
	assert.False(t, cfg.extensions)
}

func TestRun_SeedAndSave(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	snap := filepath.Join(dir, "snap.db")
	cfg := settings{dir: dir, save: snap, extensions: true}

	var out bytes.Buffer
	input := `{"id":1,"action":"exec","sql":"CREATE TABLE t(v); INSERT INTO t VALUES ('kept');"}` + "\n"
	require.NoError(t, run(ctx, cfg, strings.NewReader(input), &out, zap.NewNop()))
	assert.Equal(t, `{"id":1,"results":[]}`+"\n", out.String())

	cfg = settings{dir: dir, seed: snap, extensions: true}
	out.Reset()
	input = `{"id":2,"action":"exec","sql":"SELECT reverse(v) AS v FROM t"}` + "\n"
	require.NoError(t, run(ctx, cfg, strings.NewReader(input), &out, zap.NewNop()))
	assert.Equal(t, `{"id":2,"results":[{"columns":["v"],"values":[["tpek"]]}]}`+"\n", out.String())
}

func TestRun_SaveWithoutDatabase(t *testing.T) {
	dir := t.TempDir()
	cfg := settings{dir: dir, save: filepath.Join(dir, "snap.db")}
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, strings.NewReader(""), &out, zap.NewNop()))
	assert.Empty(t, out.String())
}

func TestRun_SavesOnInterrupt(t *testing.T) {
	dir := t.TempDir()
	snap := filepath.Join(dir, "snap.db")
	cfg := settings{dir: dir, save: snap}

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	t.Cleanup(func() {
		_ = inW.Close()
		_ = outR.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, inR, outW, zap.NewNop()) }()

	_, err := io.WriteString(inW, `{"id":1,"action":"exec","sql":"CREATE TABLE t(v)"}`+"\n")
	require.NoError(t, err)
	line, err := bufio.NewReader(outR).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"results":[]}`+"\n", line)

	cancel()
	require.NoError(t, <-done)
	info, err := os.Stat(snap)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestRun_SkipsSaveAfterClose(t *testing.T) {
	dir := t.TempDir()
	snap := filepath.Join(dir, "snap.db")
	cfg := settings{dir: dir, save: snap}
	var out bytes.Buffer
	input := `{"id":1,"action":"open"}` + "\n" + `{"id":2,"action":"close"}` + "\n"
	require.NoError(t, run(context.Background(), cfg, strings.NewReader(input), &out, zap.NewNop()))
	_, err := os.Stat(snap)
	assert.True(t, os.IsNotExist(err))
}

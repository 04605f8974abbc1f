package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/QuenKar/databend/conf"
	"github.com/QuenKar/databend/memkv"
)

func TestBuilderForConfig(t *testing.T) {
	builder, err := builderForConfig(conf.Config{Engine: conf.EngineMem})
	require.NoError(t, err)
	require.NotNil(t, builder)

	builder, err = builderForConfig(conf.Config{Engine: conf.EnginePebble, DataDir: t.TempDir()})
	require.NoError(t, err)
	require.NotNil(t, builder)

	_, err = builderForConfig(conf.Config{Engine: "bogus"})
	require.Error(t, err)
}

func TestExecCommands(t *testing.T) {
	store := memkv.NewStore()
	ctx := context.Background()

	out := &bytes.Buffer{}
	r := &runner{out: out}

	require.NoError(t, r.execCommand(ctx, store, "put", []string{"user/1", "alice"}))
	require.Equal(t, "seq:1\n", out.String())

	out.Reset()
	require.NoError(t, r.execCommand(ctx, store, "get", []string{"user/1"}))
	require.Equal(t, "seq:1 alice\n", out.String())

	out.Reset()
	require.NoError(t, r.execCommand(ctx, store, "get", []string{"user/2"}))
	require.Equal(t, "(not found)\n", out.String())

	require.NoError(t, r.execCommand(ctx, store, "put", []string{"user/2", "bob"}))
	require.NoError(t, r.execCommand(ctx, store, "put", []string{"users", "all"}))

	out.Reset()
	require.NoError(t, r.execCommand(ctx, store, "list", []string{"user/"}))
	require.Equal(t, "user/1 seq:1 alice\nuser/2 seq:2 bob\n", out.String())

	out.Reset()
	require.NoError(t, r.execCommand(ctx, store, "delete", []string{"user/1"}))
	require.Equal(t, "deleted\n", out.String())

	require.Error(t, r.execCommand(ctx, store, "frobnicate", nil))
}

func TestRunWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	confPath := filepath.Join(dir, "conf.json")
	content := `{
  // leveldb engine persists between invocations
  "engine": "leveldb",
  "data_dir": "` + filepath.ToSlash(filepath.Join(dir, "data")) + `"
}`
	require.NoError(t, os.WriteFile(confPath, []byte(content), 0o644))

	out := &bytes.Buffer{}
	r := &runner{out: out}
	require.NoError(t, r.run([]string{"-conf", confPath, "-node", "0", "put", "k", "v"}))

	out.Reset()
	require.NoError(t, r.run([]string{"-conf", confPath, "-node", "0", "get", "k"}))
	require.Equal(t, "seq:1 v\n", out.String())

	require.Error(t, r.run([]string{"-conf", confPath}))
}

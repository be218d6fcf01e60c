package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vengi-voxel/vengi-sub015/internal/command"
	"github.com/vengi-voxel/vengi-sub015/internal/config"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.ConfigEnvVar, filepath.Join(dir, "config"))

	for _, args := range [][]string{nil, {"help"}, {"--help"}, {"-h"}, {"help", "run"}} {
		var stdout, stderr bytes.Buffer
		require.NoError(t, run(context.Background(), args, &stdout, &stderr), args)
		require.Contains(t, stdout.String(), "simpleai", args)
	}

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"version"}, &stdout, &stdout))
	require.Equal(t, "simpleai version "+version+"\n", stdout.String())

	require.ErrorIs(t, run(context.Background(), []string{"nope"}, &stdout, &stdout), command.ErrUnknownCommand)
}

func TestRunInitThenConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config")
	t.Setenv(config.ConfigEnvVar, path)
	t.Setenv("SIMPLEAI_TICK_INTERVAL", "")
	os.Unsetenv("SIMPLEAI_TICK_INTERVAL")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"init"}, &out, &out))
	require.FileExists(t, path)

	require.NoError(t, run(context.Background(), []string{"config", "tick.interval", "25ms"}, &out, &out))
	out.Reset()
	require.NoError(t, run(context.Background(), []string{"config", "tick.interval"}, &out, &out))
	require.Equal(t, "tick.interval: 25ms\n", out.String())

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"config", "validate"}, &out, &out))
	require.Equal(t, "Configuration is valid.\n", out.String())
}

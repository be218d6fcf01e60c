package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `# global
log.level debug
tick.interval 50ms
debug.enabled yes

[run]
tick.interval 20ms
metrics.enabled on

[check]
color never
`

func TestLoadFromReader(t *testing.T) {
	t.Parallel()
	c, err := LoadFromReader(strings.NewReader(sampleConfig))
	require.NoError(t, err)
	require.False(t, c.HasWarnings(), c.Warnings)

	v, ok := c.GetGlobalOption("log.level")
	require.True(t, ok)
	require.Equal(t, "debug", v)

	v, ok = c.GetCommandOption("run", "tick.interval")
	require.True(t, ok)
	require.Equal(t, "20ms", v)

	v, ok = c.GetCommandOption("check", "tick.interval")
	require.True(t, ok)
	require.Equal(t, "50ms", v, "falls back to the global value")

	_, ok = c.GetCommandOption("run", "missing")
	require.False(t, ok)
}

func TestLoadFromReaderWarnings(t *testing.T) {
	t.Parallel()
	c, err := LoadFromReader(strings.NewReader("bogus 1\ntick.interval soon\n[check]\ncolor purple\n"))
	require.NoError(t, err)
	require.Len(t, c.Warnings, 3)
	require.Contains(t, c.Warnings[0], `"tick.interval"`)
	require.Contains(t, c.Warnings[1], "[check]")
	require.Contains(t, c.Warnings[2], "unknown global option")

	_, err = LoadFromReader(strings.NewReader("[]\n"))
	require.ErrorIs(t, err, ErrSyntax)
}

func TestLoadFromReaderSyntax(t *testing.T) {
	t.Parallel()
	c, err := LoadFromReader(strings.NewReader("debug.enabled\nlog.level\twarn\n[run]\nmetrics.enabled\n"))
	require.NoError(t, err)
	require.False(t, c.HasWarnings(), c.Warnings)
	require.Equal(t, "true", c.Global["debug.enabled"], "a bare boolean is switched on")
	require.Equal(t, "warn", c.Global["log.level"])
	require.Equal(t, "true", c.Commands["run"]["metrics.enabled"])

	c, err = LoadFromReader(strings.NewReader("log.level info\nlog.level warn\n[run]\ntick.interval 1s\ntick.interval 2s\n"))
	require.NoError(t, err)
	require.Equal(t, []string{
		`line 2: "log.level" repeats line 1, the later value wins`,
		`line 5: "tick.interval" in [run] repeats line 4, the later value wins`,
	}, c.Warnings)
	require.Equal(t, "warn", c.Global["log.level"])

	for _, bad := range []string{"[run\n", "[a b]\n", "x 1\n[]\n"} {
		_, err := LoadFromReader(strings.NewReader(bad))
		require.ErrorIs(t, err, ErrSyntax, bad)
	}
	_, err = LoadFromReader(strings.NewReader("x 1\n[]\n"))
	require.ErrorContains(t, err, "line 2")
}

func TestLoadFromPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	c, err := LoadFromPath(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	require.Empty(t, c.Global)

	path := filepath.Join(dir, "config")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))
	c, err = LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, "yes", c.Global["debug.enabled"])

	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(path, link))
	_, err = LoadFromPath(link)
	require.ErrorContains(t, err, "symlink")
}

func TestSettings(t *testing.T) {
	c, err := LoadFromReader(strings.NewReader(sampleConfig))
	require.NoError(t, err)
	t.Setenv("SIMPLEAI_LOG_FORMAT", "JSON")
	t.Setenv("SIMPLEAI_DEBUG_ADDR", "")

	s, err := DefaultSchema().Settings(c, "run")
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, s.LogLevel)
	require.Equal(t, "json", s.LogFormat)
	require.Equal(t, 20*time.Millisecond, s.TickInterval)
	require.True(t, s.DebugEnabled)
	require.True(t, s.MetricsEnabled)
	require.Empty(t, s.DebugAddr, "an empty env var still overrides")
	require.Equal(t, 10, s.LogMaxSizeMB)
	require.Equal(t, 5, s.LogMaxFiles)

	s, err = DefaultSchema().Settings(NewConfig(), "")
	require.NoError(t, err)
	require.Equal(t, slog.LevelInfo, s.LogLevel)
	require.Equal(t, 100*time.Millisecond, s.TickInterval)
	require.False(t, s.MetricsEnabled)
}

func TestSettingsInvalid(t *testing.T) {
	t.Parallel()
	c := NewConfig()
	c.SetGlobalOption("log.max-files", "many")
	c.SetCommandOption("run", "debug.enabled", "perhaps")
	c.SetGlobalOption("tick.interval", "-1s")

	_, err := DefaultSchema().Settings(c, "run")
	require.ErrorIs(t, err, ErrInvalidOption)
	for _, key := range []string{"log.max-files", "debug.enabled", "tick.interval"} {
		require.ErrorContains(t, err, key)
	}
}

func TestSchemaRegisterReplaces(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.Register(ConfigOption{Key: "a", Default: "1"})
	s.Register(ConfigOption{Key: "a", Default: "2"})
	s.Register(ConfigOption{Key: "b", Section: "run"})
	require.Len(t, s.Options(""), 1)
	require.Equal(t, "2", s.Lookup("", "a").Default)
	require.True(t, s.IsKnown("run", "a"))
	require.True(t, s.IsKnown("run", "b"))
	require.False(t, s.IsKnown("", "b"))
	require.Equal(t, []string{"run"}, s.Sections())
}

func TestFormatHelp(t *testing.T) {
	t.Parallel()
	help := DefaultSchema().FormatHelp()
	require.Contains(t, help, "Global Options:")
	require.Contains(t, help, "[check] Options:")
	require.Contains(t, help, "env: SIMPLEAI_TICK_INTERVAL")
	require.Contains(t, help, "one of: debug|info|warn|error")
}

func TestSetKeyInFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "config")
	require.NoError(t, SetKeyInFile(path, "debug.enabled", "true"))
	require.NoError(t, os.WriteFile(path, []byte("# header\nlog.level info\n\n[check]\nlog.level warn\n"), 0o644))

	require.NoError(t, SetKeyInFile(path, "log.level", "debug"))
	require.NoError(t, SetKeyInFile(path, "world.file", "world.yaml"))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "# header\nlog.level debug\n\nworld.file world.yaml\n[check]\nlog.level warn\n", string(b))
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(ConfigEnvVar, "/tmp/custom-config")
	got, err := GetConfigPath()
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom-config", got)

	home := t.TempDir()
	t.Setenv(ConfigEnvVar, "")
	t.Setenv("HOME", home)
	got, err = GetConfigPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".simpleai", "config"), got)

	require.NoError(t, EnsureConfigDir())
	fi, err := os.Stat(filepath.Join(home, ".simpleai"))
	require.NoError(t, err)
	require.True(t, fi.IsDir())
}

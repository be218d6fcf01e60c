package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidOption is wrapped by every resolution failure of Settings.
var ErrInvalidOption = errors.New("invalid option")

// Settings are the typed, resolved options of one command invocation.
type Settings struct {
	LogLevel     slog.Level
	LogFormat    string
	LogFile      string
	LogMaxSizeMB int
	LogMaxFiles  int

	TickInterval  time.Duration
	WorldFile     string
	ScriptPaths   []string
	ScriptTimeout time.Duration

	DebugEnabled     bool
	DebugAddr        string
	DebugAllowRemote bool
	DebugRecord      string
	MetricsEnabled   bool

	// CheckColor and CheckParams are only resolved for the check command.
	CheckColor  string
	CheckParams bool
}

type resolver struct {
	schema  *ConfigSchema
	config  *Config
	command string
	errs    []error
}

func (r *resolver) str(key string) string {
	return strings.TrimSpace(r.schema.Resolve(r.config, r.command, key))
}

func (r *resolver) fail(key, value string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%w %s %q: %v", ErrInvalidOption, key, value, err))
}

func (r *resolver) boolean(key string) bool {
	v := r.str(key)
	if v == "" {
		return false
	}
	b, err := parseBool(v)
	if err != nil {
		r.fail(key, v, err)
	}
	return b
}

func (r *resolver) integer(key string) int {
	v := r.str(key)
	if v == "" {
		return 0
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
	}
	return i
}

func (r *resolver) duration(key string) time.Duration {
	v := r.str(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
	}
	return d
}

func (r *resolver) enum(key string) string {
	v := strings.ToLower(r.str(key))
	if opt := r.schema.lookupCommand(r.command, key); opt != nil {
		if err := opt.validate(v); err != nil {
			r.fail(key, v, err)
			return strings.ToLower(opt.Default)
		}
	}
	return v
}

func (r *resolver) paths(key string) []string {
	v := r.str(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range filepath.SplitList(v) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, expandHome(p))
		}
	}
	return out
}

// Settings reads the typed settings of command from c, applying environment
// overrides and defaults. Malformed values are joined into the error.
func (s *ConfigSchema) Settings(c *Config, command string) (Settings, error) {
	r := &resolver{schema: s, config: c, command: command}
	out := Settings{
		LogFormat:    r.enum("log.format"),
		LogFile:      expandHome(r.str("log.file")),
		LogMaxSizeMB: r.integer("log.max-size-mb"),
		LogMaxFiles:  r.integer("log.max-files"),

		TickInterval:  r.duration("tick.interval"),
		WorldFile:     expandHome(r.str("world.file")),
		ScriptPaths:   r.paths("script.paths"),
		ScriptTimeout: r.duration("script.timeout"),

		DebugEnabled:     r.boolean("debug.enabled"),
		DebugAddr:        r.str("debug.addr"),
		DebugAllowRemote: r.boolean("debug.allow-remote"),
		DebugRecord:      expandHome(r.str("debug.record")),
		MetricsEnabled:   r.boolean("metrics.enabled"),
	}
	if command == "check" {
		out.CheckColor = r.enum("color")
		out.CheckParams = r.boolean("params")
	}
	if err := out.LogLevel.UnmarshalText([]byte(r.enum("log.level"))); err != nil {
		r.fail("log.level", r.str("log.level"), err)
	}
	if out.TickInterval < 0 {
		r.fail("tick.interval", out.TickInterval.String(), errors.New("must not be negative"))
	}
	return out, errors.Join(r.errs...)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

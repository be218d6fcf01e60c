package config

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OptionType represents the expected type of a configuration option value.
type OptionType string

const (
	TypeString OptionType = "string"
	// TypeBool accepts true/false/yes/no/1/0/on/off.
	TypeBool OptionType = "bool"
	TypeInt  OptionType = "int"
	// TypeDuration is a Go time.Duration value (e.g. "100ms", "5s").
	TypeDuration OptionType = "duration"
	// TypeEnum restricts the value to ConfigOption.Choices.
	TypeEnum OptionType = "enum"
	// TypePathList is a list of paths separated by os.PathListSeparator.
	TypePathList OptionType = "path-list"
)

// ConfigOption declares a single configuration option.
type ConfigOption struct {
	// Key is the option name as it appears in the config file.
	Key  string
	Type OptionType
	// Default is the default value as a string, or "" for no default.
	Default     string
	Description string
	// Section is "" for global options, or a command name.
	Section string
	// EnvVar overrides the file value when set, even to "".
	EnvVar  string
	Choices []string
}

// ConfigSchema declares the known options, their types, defaults and
// environment overrides.
type ConfigSchema struct {
	options   []*ConfigOption
	byKey     map[string]*ConfigOption
	bySection map[string]map[string]*ConfigOption
}

func NewSchema() *ConfigSchema {
	return &ConfigSchema{
		byKey:     make(map[string]*ConfigOption),
		bySection: make(map[string]map[string]*ConfigOption),
	}
}

// Register adds opt. A later registration of the same key in the same
// section replaces the earlier one.
func (s *ConfigSchema) Register(opt ConfigOption) {
	ref := new(ConfigOption)
	*ref = opt
	if opt.Section == "" {
		if old := s.byKey[opt.Key]; old != nil {
			s.options = slices.DeleteFunc(s.options, func(o *ConfigOption) bool { return o == old })
		}
		s.byKey[opt.Key] = ref
	} else {
		if s.bySection[opt.Section] == nil {
			s.bySection[opt.Section] = make(map[string]*ConfigOption)
		}
		if old := s.bySection[opt.Section][opt.Key]; old != nil {
			s.options = slices.DeleteFunc(s.options, func(o *ConfigOption) bool { return o == old })
		}
		s.bySection[opt.Section][opt.Key] = ref
	}
	s.options = append(s.options, ref)
}

func (s *ConfigSchema) RegisterAll(opts []ConfigOption) {
	for _, opt := range opts {
		s.Register(opt)
	}
}

// Lookup returns the option for key in section ("" for global), or nil.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	if section == "" {
		return s.byKey[key]
	}
	if sec, ok := s.bySection[section]; ok {
		return sec[key]
	}
	return nil
}

// lookupCommand returns the section option for key, falling back to the
// global option.
func (s *ConfigSchema) lookupCommand(section, key string) *ConfigOption {
	if opt := s.Lookup(section, key); opt != nil {
		return opt
	}
	return s.byKey[key]
}

// IsKnown reports whether key may appear in section. Global keys may appear
// in any command section.
func (s *ConfigSchema) IsKnown(section, key string) bool {
	return s.lookupCommand(section, key) != nil
}

// Options returns every option of section ("" for global) in registration
// order.
func (s *ConfigSchema) Options(section string) []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, *o)
		}
	}
	return out
}

// Sections returns the sorted names of the command sections.
func (s *ConfigSchema) Sections() []string {
	out := make([]string, 0, len(s.bySection))
	for sec := range s.bySection {
		out = append(out, sec)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the effective value of key for command ("" for global)
// by checking the declared environment variable, the command section, the
// global section and finally the schema default.
func (s *ConfigSchema) Resolve(c *Config, command, key string) string {
	opt := s.lookupCommand(command, key)
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	if c != nil {
		if v, ok := c.GetCommandOption(command, key); ok {
			return v
		}
	}
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ValidateConfig checks c against s and returns sorted, human-readable
// issues: unknown options and values that do not match the declared type.
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string
	for key, value := range c.Global {
		opt := s.Lookup("", key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := opt.validate(value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}
	for section, opts := range c.Commands {
		for key, value := range opts {
			opt := s.lookupCommand(section, key)
			if opt == nil {
				issues = append(issues, fmt.Sprintf("unknown option for command %q: %q (value: %q)", section, key, value))
				continue
			}
			if err := opt.validate(value); err != nil {
				issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
			}
		}
	}
	sort.Strings(issues)
	return issues
}

func (o *ConfigOption) validate(value string) error {
	switch o.Type {
	case TypeString, TypePathList, "":
		return nil
	case TypeBool:
		if _, err := parseBool(value); err != nil {
			return fmt.Errorf("expected bool, got %q", value)
		}
	case TypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected int, got %q", value)
		}
	case TypeDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("expected duration, got %q", value)
		}
	case TypeEnum:
		if !slices.Contains(o.Choices, strings.ToLower(value)) {
			return fmt.Errorf("expected one of %s, got %q", strings.Join(o.Choices, ", "), value)
		}
	default:
		return fmt.Errorf("unknown option type %q", o.Type)
	}
	return nil
}

// FormatHelp returns a reference of every option, global options first.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder
	if globals := s.Options(""); len(globals) > 0 {
		b.WriteString("Global Options:\n")
		for _, o := range globals {
			writeOptionHelp(&b, o)
		}
	}
	for _, sec := range s.Sections() {
		opts := s.Options(sec)
		if len(opts) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n[%s] Options:\n", sec)
		for _, o := range opts {
			writeOptionHelp(&b, o)
		}
	}
	return b.String()
}

func writeOptionHelp(b *strings.Builder, o ConfigOption) {
	fmt.Fprintf(b, "  %-22s %s", o.Key, o.Description)
	parts := make([]string, 0, 3)
	switch o.Type {
	case TypeString, "":
	case TypeEnum:
		parts = append(parts, "one of: "+strings.Join(o.Choices, "|"))
	default:
		parts = append(parts, fmt.Sprintf("type: %s", o.Type))
	}
	if o.Default != "" {
		parts = append(parts, fmt.Sprintf("default: %s", o.Default))
	}
	if o.EnvVar != "" {
		parts = append(parts, fmt.Sprintf("env: %s", o.EnvVar))
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
}

// DefaultSchema returns the schema of every simpleai option.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.RegisterAll(defaultGlobalOptions())
	s.RegisterAll(defaultCommandOptions())
	return s
}

func defaultGlobalOptions() []ConfigOption {
	return []ConfigOption{
		{Key: "log.level", Type: TypeEnum, Default: "info", Choices: []string{"debug", "info", "warn", "error"}, Description: "Minimum log level", EnvVar: "SIMPLEAI_LOG_LEVEL"},
		{Key: "log.format", Type: TypeEnum, Default: "text", Choices: []string{"text", "json"}, Description: "Log output format", EnvVar: "SIMPLEAI_LOG_FORMAT"},
		{Key: "log.file", Type: TypeString, Description: "Log file path; logs go to stderr when empty", EnvVar: "SIMPLEAI_LOG_FILE"},
		{Key: "log.max-size-mb", Type: TypeInt, Default: "10", Description: "Log file size in MB before rotation"},
		{Key: "log.max-files", Type: TypeInt, Default: "5", Description: "Rotated log files to keep"},

		{Key: "tick.interval", Type: TypeDuration, Default: "100ms", Description: "Interval between zone updates", EnvVar: "SIMPLEAI_TICK_INTERVAL"},
		{Key: "world.file", Type: TypeString, Description: "World file describing zones and spawns", EnvVar: "SIMPLEAI_WORLD"},
		{Key: "script.paths", Type: TypePathList, Description: "Extra script files loaded before the world scripts"},
		{Key: "script.timeout", Type: TypeDuration, Description: "Max wait for a script call; unbounded when empty"},

		{Key: "debug.enabled", Type: TypeBool, Default: "false", Description: "Serve the remote debugger", EnvVar: "SIMPLEAI_DEBUG"},
		{Key: "debug.addr", Type: TypeString, Default: "127.0.0.1:12345", Description: "Listen address of the HTTP endpoint", EnvVar: "SIMPLEAI_DEBUG_ADDR"},
		{Key: "debug.allow-remote", Type: TypeBool, Default: "false", Description: "Accept debugger connections from non-loopback peers"},
		{Key: "debug.record", Type: TypeString, Description: "Record debugger broadcasts to this file (JSONL, zstd)"},
		{Key: "metrics.enabled", Type: TypeBool, Default: "false", Description: "Serve Prometheus metrics on /metrics"},
	}
}

func defaultCommandOptions() []ConfigOption {
	return []ConfigOption{
		{Key: "color", Section: "check", Type: TypeEnum, Default: "auto", Choices: []string{"auto", "always", "never"}, Description: "Styled tree output"},
		{Key: "params", Section: "check", Type: TypeBool, Default: "true", Description: "Show node and condition parameters"},
	}
}

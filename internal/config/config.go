// Package config reads the simpleai configuration file.
//
// The file holds one "key value" pair per line. Lines before the first
// "[command]" header set global options; a header starts a section whose
// options apply to that command only. A boolean option written alone on a
// line is switched on. Blank lines and lines starting with "#" are skipped.
//
//	log.level debug
//	debug.enabled
//
//	[run]
//	tick.interval 20ms
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// ErrSyntax marks a line that cannot be parsed.
var ErrSyntax = errors.New("config syntax error")

// Config holds the raw option values of a config file.
type Config struct {
	// Global options apply to every command.
	Global map[string]string
	// Commands holds [command] sections, which override global options.
	Commands map[string]map[string]string
	// Warnings lists the problems found while loading, in file order for
	// repeated keys followed by the schema violations.
	Warnings []string
}

func NewConfig() *Config {
	return &Config{
		Global:   make(map[string]string),
		Commands: make(map[string]map[string]string),
	}
}

// Load reads the file named by SIMPLEAI_CONFIG, or the one in the user's
// home directory.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads path. A missing file is an empty configuration and a
// symlink is refused.
func LoadFromPath(path string) (*Config, error) {
	fi, err := os.Lstat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return NewConfig(), nil
	case err != nil:
		return nil, fmt.Errorf("config %s: %w", path, err)
	case fi.Mode()&os.ModeSymlink != 0:
		return nil, fmt.Errorf("config %s: symlink not allowed", path)
	case !fi.Mode().IsRegular():
		return nil, fmt.Errorf("config %s: not a regular file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	defer f.Close()

	c, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// LoadFromReader parses r and validates it against DefaultSchema. Schema
// violations are warnings, malformed lines are errors.
func LoadFromReader(r io.Reader) (*Config, error) {
	p := parser{config: NewConfig(), schema: DefaultSchema(), seen: make(map[string]int)}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.line++
		if err := p.parseLine(strings.TrimSpace(scanner.Text())); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	for _, issue := range ValidateConfig(p.config, p.schema) {
		p.config.warn(issue)
	}
	return p.config, nil
}

type parser struct {
	config  *Config
	schema  *ConfigSchema
	section string
	line    int
	// seen maps "section\x00key" to the line that first set it.
	seen map[string]int
}

func (p *parser) parseLine(line string) error {
	if line == "" || line[0] == '#' {
		return nil
	}
	if line[0] == '[' {
		name, ok := strings.CutSuffix(line[1:], "]")
		name = strings.TrimSpace(name)
		if !ok || name == "" || strings.ContainsAny(name, "[] \t") {
			return fmt.Errorf("%w: line %d: bad section header %q", ErrSyntax, p.line, line)
		}
		p.section = name
		if p.config.Commands[name] == nil {
			p.config.Commands[name] = make(map[string]string)
		}
		return nil
	}

	key, value := line, ""
	i := strings.IndexAny(line, " \t")
	if i >= 0 {
		key, value = line[:i], strings.TrimSpace(line[i+1:])
	} else if opt := p.schema.lookupCommand(p.section, key); opt != nil && opt.Type == TypeBool {
		value = "true"
	}

	id := p.section + "\x00" + key
	if first, ok := p.seen[id]; ok {
		p.config.warn(fmt.Sprintf("line %d: %s repeats line %d, the later value wins", p.line, p.describe(key), first))
	} else {
		p.seen[id] = p.line
	}
	if p.section == "" {
		p.config.Global[key] = value
	} else {
		p.config.Commands[p.section][key] = value
	}
	return nil
}

func (p *parser) describe(key string) string {
	if p.section == "" {
		return strconv.Quote(key)
	}
	return fmt.Sprintf("%q in [%s]", key, p.section)
}

func (c *Config) warn(msg string) {
	c.Warnings = append(c.Warnings, msg)
	slog.Warn("config issue", "issue", msg)
}

// parseBool accepts the strconv forms plus yes, no, on and off.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
	return b, nil
}

// GetGlobalOption returns the global value of name.
func (c *Config) GetGlobalOption(name string) (string, bool) {
	v, ok := c.Global[name]
	return v, ok
}

// GetCommandOption returns the value of name in the command section,
// falling back to the global value.
func (c *Config) GetCommandOption(command, name string) (string, bool) {
	if v, ok := c.Commands[command][name]; ok {
		return v, true
	}
	return c.GetGlobalOption(name)
}

func (c *Config) SetGlobalOption(name, value string) { c.Global[name] = value }

func (c *Config) SetCommandOption(command, name, value string) {
	section := c.Commands[command]
	if section == nil {
		section = make(map[string]string)
		c.Commands[command] = section
	}
	section[name] = value
}

// HasWarnings reports whether loading produced any warning.
func (c *Config) HasWarnings() bool { return len(c.Warnings) > 0 }

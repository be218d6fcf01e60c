package command

import (
	"flag"
	"io"
	"log/slog"

	"github.com/vengi-voxel/vengi-sub015/internal/config"
	"github.com/vengi-voxel/vengi-sub015/internal/logging"
)

// logFlags are the logging overrides shared by the long-running commands.
type logFlags struct {
	level  string
	file   string
	format string
}

func (f *logFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.level, "log-level", "", "Log level: debug, info, warn, error (overrides log.level)")
	fs.StringVar(&f.file, "log-file", "", "Log file path (overrides log.file)")
	fs.StringVar(&f.format, "log-format", "", "Log format: text, json (overrides log.format)")
}

// resolveLogging builds the logger from the resolved settings and the flag
// overrides. Logs go to stderr unless a log file is configured. The caller
// closes the returned closer.
func (f *logFlags) resolveLogging(s config.Settings, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	opts := logging.FromSettings(s)
	if f.level != "" {
		if err := opts.Level.UnmarshalText([]byte(f.level)); err != nil {
			return nil, nil, err
		}
	}
	if f.file != "" {
		opts.File = f.file
	}
	if f.format != "" {
		opts.Format = f.format
	}
	return logging.New(opts, stderr)
}

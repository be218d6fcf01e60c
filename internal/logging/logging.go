package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vengi-voxel/vengi-sub015/internal/config"
)

// Options selects the handler built by New.
type Options struct {
	Level slog.Level
	// Format is "text" or "json".
	Format string
	// File, if set, receives the log instead of the fallback writer.
	File      string
	MaxSizeMB int
	MaxFiles  int
	AddSource bool
}

// FromSettings maps resolved config settings onto Options.
func FromSettings(s config.Settings) Options {
	return Options{
		Level:     s.LogLevel,
		Format:    s.LogFormat,
		File:      s.LogFile,
		MaxSizeMB: s.LogMaxSizeMB,
		MaxFiles:  s.LogMaxFiles,
	}
}

// New builds a logger writing to opts.File, or to fallback when no file is
// set. The returned closer releases the file and is never nil.
func New(opts Options, fallback io.Writer) (*slog.Logger, io.Closer, error) {
	w := fallback
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rw, err := NewRotatingFileWriter(opts.File, opts.MaxSizeMB, opts.MaxFiles)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		w, closer = rw, rw
	}
	hopts := &slog.HandlerOptions{Level: opts.Level, AddSource: opts.AddSource}
	var h slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		h = slog.NewTextHandler(w, hopts)
	case "json":
		h = slog.NewJSONHandler(w, hopts)
	default:
		_ = closer.Close()
		return nil, nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	return slog.New(h), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

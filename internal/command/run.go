package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/vengi-voxel/vengi-sub015/internal/ai"
	"github.com/vengi-voxel/vengi-sub015/internal/config"
	"github.com/vengi-voxel/vengi-sub015/internal/metrics"
	"github.com/vengi-voxel/vengi-sub015/internal/runner"
	"github.com/vengi-voxel/vengi-sub015/internal/world"
)

var errNoWorld = errors.New("no world file: pass -world or set world.file")

// RunCommand loads a world and ticks its zones until interrupted.
type RunCommand struct {
	*BaseCommand
	config *config.Config
	flags  *flag.FlagSet
	log    logFlags

	worldFile   string
	tick        time.Duration
	debug       bool
	addr        string
	allowRemote bool
	record      string
	metrics     bool
}

func NewRunCommand(cfg *config.Config) *RunCommand {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &RunCommand{
		BaseCommand: NewBaseCommand("run", "Run the zones of a world file", "run [options]"),
		config:      cfg,
	}
}

func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	c.flags = fs
	c.log.register(fs)
	fs.StringVar(&c.worldFile, "world", "", "World file (overrides world.file)")
	fs.DurationVar(&c.tick, "tick", 0, "Interval between zone updates (overrides tick.interval)")
	fs.BoolVar(&c.debug, "debug", false, "Serve the remote debugger (overrides debug.enabled)")
	fs.StringVar(&c.addr, "addr", "", "HTTP listen address (overrides debug.addr)")
	fs.BoolVar(&c.allowRemote, "allow-remote", false, "Accept non-loopback debugger clients (overrides debug.allow-remote)")
	fs.StringVar(&c.record, "record", "", "Record debugger broadcasts to a file (overrides debug.record)")
	fs.BoolVar(&c.metrics, "metrics", false, "Serve Prometheus metrics (overrides metrics.enabled)")
}

// settings resolves the config for this command and applies the flags that
// were set explicitly.
func (c *RunCommand) settings() (config.Settings, error) {
	s, err := config.DefaultSchema().Settings(c.config, c.Name())
	if err != nil {
		return s, err
	}
	if c.flags == nil {
		return s, nil
	}
	c.flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "world":
			s.WorldFile = c.worldFile
		case "tick":
			s.TickInterval = c.tick
		case "debug":
			s.DebugEnabled = c.debug
		case "addr":
			s.DebugAddr = c.addr
		case "allow-remote":
			s.DebugAllowRemote = c.allowRemote
		case "record":
			s.DebugRecord = c.record
		case "metrics":
			s.MetricsEnabled = c.metrics
		}
	})
	return s, nil
}

func (c *RunCommand) Execute(ctx context.Context, args []string, _, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return errUnexpectedArgs
	}
	s, err := c.settings()
	if err != nil {
		return err
	}
	logger, closer, err := c.log.resolveLogging(s, stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	if s.WorldFile == "" {
		return errNoWorld
	}
	w, err := world.Load(s.WorldFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sc := newScenario(ctx, logger, s.ScriptTimeout, dirsOf(s.WorldFile)...)
	defer sc.Close()
	if err := sc.load(append(s.ScriptPaths, w.Scripts...), w.Trees); err != nil {
		return err
	}

	zoneOpts := []ai.ZoneOption{ai.WithLogger(logger)}
	var m *metrics.Metrics
	if s.MetricsEnabled {
		m = metrics.New()
		zoneOpts = append(zoneOpts, ai.WithObserver(m))
	}
	zones, err := w.Build(sc.trees, zoneOpts...)
	if err != nil {
		return err
	}

	cfg := runner.Config{
		TickInterval: s.TickInterval,
		Debug:        s.DebugEnabled,
		AllowRemote:  s.DebugAllowRemote,
		RecordPath:   s.DebugRecord,
	}
	if s.DebugEnabled || s.MetricsEnabled {
		cfg.Addr = s.DebugAddr
	}
	r, err := runner.New(cfg, sc.registry, zones, runner.WithLogger(logger), runner.WithMetrics(m))
	if err != nil {
		for _, z := range zones {
			z.Shutdown()
		}
		return err
	}
	logger.Info("world loaded", "file", s.WorldFile, "zones", len(zones), "behaviours", len(sc.trees.Names()))
	return r.Run(ctx)
}

package command

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"

	"github.com/vengi-voxel/vengi-sub015/internal/ai"
	"github.com/vengi-voxel/vengi-sub015/internal/script"
)

// scenario owns the registry, the tree loader and the script runtime that
// extends them.
type scenario struct {
	registry *ai.Registry
	trees    *ai.TreeLoader
	loop     *eventloop.EventLoop
	bridge   *script.Bridge
}

// newScenario starts an event loop whose require() resolves bare module
// names against folders.
func newScenario(ctx context.Context, logger *slog.Logger, timeout time.Duration, folders ...string) *scenario {
	registry := ai.NewDefaultRegistry()
	trees := ai.NewTreeLoader(registry)
	req := require.NewRegistry(require.WithGlobalFolders(folders...))
	loop := eventloop.NewEventLoop(eventloop.WithRegistry(req), eventloop.EnableConsole(true))
	loop.Start()
	bridge := script.NewBridge(ctx, loop, req, registry, trees, script.WithLogger(logger), script.WithTimeout(timeout))
	return &scenario{registry: registry, trees: trees, loop: loop, bridge: bridge}
}

// load runs the scripts, then parses the tree files, so trees may use node
// types the scripts registered.
func (s *scenario) load(scripts, trees []string) error {
	for _, p := range scripts {
		if err := s.bridge.LoadFile(p); err != nil {
			return err
		}
	}
	for _, p := range trees {
		if err := s.trees.LoadFile(p); err != nil {
			return err
		}
	}
	return nil
}

func (s *scenario) Close() {
	s.bridge.Stop()
	s.loop.Stop()
}

func dirsOf(paths ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if d := filepath.Dir(p); !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"testing"

	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
)

// NewEventLoop starts an event loop with console and require enabled. The
// loop is stopped when the test ends.
func NewEventLoop(t testing.TB) (*eventloop.EventLoop, *require.Registry) {
	t.Helper()
	registry := require.NewRegistry()
	loop := eventloop.NewEventLoop(
		eventloop.WithRegistry(registry),
		eventloop.EnableConsole(true),
	)
	loop.Start()
	t.Cleanup(func() { loop.Stop() })
	return loop, registry
}

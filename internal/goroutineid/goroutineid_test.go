package goroutineid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()
	require.Equal(t, int64(123), parse([]byte("goroutine 123 [running]:\n")))
	require.Zero(t, parse([]byte("something else\n")))
	require.Zero(t, parse([]byte("goroutine x [running]")))
}

func TestGetDiffersPerGoroutine(t *testing.T) {
	t.Parallel()
	self := Get()
	require.Positive(t, self)
	other := make(chan int64)
	go func() { other <- Get() }()
	require.NotEqual(t, self, <-other)
}

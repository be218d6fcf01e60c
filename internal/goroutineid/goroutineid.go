// Package goroutineid reads the id of the calling goroutine. The script
// bridge uses it to detect calls made from the event loop goroutine.
package goroutineid

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

var bufPool = sync.Pool{
	New: func() any { return new([64]byte) },
}

// Get returns the id of the calling goroutine, or 0 if it cannot be read.
func Get() int64 {
	buf := bufPool.Get().(*[64]byte)
	defer bufPool.Put(buf)
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

// parse reads the id from the "goroutine N [state]:" stack header.
func parse(stack []byte) int64 {
	rest, ok := bytes.CutPrefix(stack, []byte("goroutine "))
	if !ok {
		return 0
	}
	if i := bytes.IndexByte(rest, ' '); i >= 0 {
		rest = rest[:i]
	}
	id, err := strconv.ParseInt(string(rest), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

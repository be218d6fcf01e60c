package debug

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vengi-voxel/vengi-sub015/internal/ai"
)

func readAll(t *testing.T, b []byte) []RecordEntry {
	t.Helper()
	var out []RecordEntry
	require.NoError(t, ReadRecording(bytes.NewReader(b), func(e RecordEntry) error {
		out = append(out, e)
		return nil
	}))
	return out
}

func TestRecorderRoundTrip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	r, err := NewRecorder(&buf)
	require.NoError(t, err)
	require.NoError(t, r.Record([]byte(`{"type":"names","success":true,"names":["a"]}`)))
	require.NoError(t, r.Record([]byte(`{"type":"pause","success":true,"pause":true}`)))
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	require.ErrorIs(t, r.Record([]byte(`{}`)), os.ErrClosed)

	entries := readAll(t, buf.Bytes())
	require.Len(t, entries, 2)
	require.EqualValues(t, 1, entries[0].Seq)
	require.EqualValues(t, 2, entries[1].Seq)
	require.Equal(t, r.Session(), entries[1].Session)
	require.JSONEq(t, `{"type":"pause","success":true,"pause":true}`, string(entries[1].Message))
}

func TestServerRecordsBroadcasts(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "rec", "debug.jsonl.zst")
	rec, err := CreateRecorder(path)
	require.NoError(t, err)

	s := NewServer(nil, &fakeNetwork{}, WithRecorder(rec))
	z := ai.NewZone("recorded")
	t.Cleanup(z.Shutdown)
	s.AddZone(z)
	s.Update(0)
	require.NoError(t, rec.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	entries := readAll(t, b)
	require.Len(t, entries, 1)
	require.JSONEq(t, `{"type":"names","success":true,"names":["recorded"]}`, string(entries[0].Message))
}

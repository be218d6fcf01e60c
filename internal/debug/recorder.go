package debug

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// RecordEntry is one line of a recording.
type RecordEntry struct {
	Session string          `json:"session"`
	Seq     uint64          `json:"seq"`
	Time    time.Time       `json:"time"`
	Message json.RawMessage `json:"message"`
}

// Recorder appends every broadcast message to a zstd compressed JSONL
// stream, one RecordEntry per line.
type Recorder struct {
	session string

	mu     sync.Mutex
	closer io.Closer
	enc    *zstd.Encoder
	w      *bufio.Writer
	seq    uint64
	now    func() time.Time
}

// NewRecorder records into w. Close flushes the stream but leaves w open.
func NewRecorder(w io.Writer) (*Recorder, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	return &Recorder{
		session: uuid.NewString(),
		enc:     enc,
		w:       bufio.NewWriterSize(enc, 64*1024),
		now:     time.Now,
	}, nil
}

// CreateRecorder records into a new file at path, creating parent
// directories as needed.
func CreateRecorder(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	r, err := NewRecorder(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Session returns the id stamped on every entry of this recording.
func (r *Recorder) Session() string { return r.session }

// Record appends one encoded message.
func (r *Recorder) Record(msg []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return os.ErrClosed
	}
	r.seq++
	b, err := json.Marshal(RecordEntry{Session: r.session, Seq: r.seq, Time: r.now().UTC(), Message: msg})
	if err != nil {
		return err
	}
	if _, err := r.w.Write(b); err != nil {
		return err
	}
	return r.w.WriteByte('\n')
}

// Close flushes and finishes the stream.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	err := r.w.Flush()
	err = errors.Join(err, r.enc.Close())
	if r.closer != nil {
		err = errors.Join(err, r.closer.Close())
	}
	r.w, r.enc, r.closer = nil, nil, nil
	return err
}

// ReadRecording decodes a recording, calling fn for every entry in order.
func ReadRecording(rd io.Reader, fn func(RecordEntry) error) error {
	dec, err := zstd.NewReader(rd)
	if err != nil {
		return err
	}
	defer dec.Close()
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e RecordEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}

// Package capture tees played audio chunks into a zstd-compressed raw PCM file.
package capture

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// Submitter receives output chunks in playback order.
type Submitter interface {
	Submit(chunk []byte)
}

// Tee forwards every chunk to next and writes a copy to a compressed stream.
// A write failure disables the capture; playback is never interrupted.
type Tee struct {
	log  *zap.Logger
	next Submitter

	mutex   sync.Mutex
	out     io.WriteCloser
	enc     *zstd.Encoder
	failed  bool
	written uint64
}

func NewTee(next Submitter, out io.WriteCloser, log *zap.Logger) (*Tee, error) {
	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("capture: creating zstd encoder failed: %w", err)
	}

	return &Tee{
		log:  log,
		next: next,
		out:  out,
		enc:  enc,
	}, nil
}

// Create opens path and returns a Tee writing into it.
func Create(path string, next Submitter, log *zap.Logger) (*Tee, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("capture: creating %s failed: %w", path, err)
	}

	t, err := NewTee(next, f, log)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return t, nil
}

func (t *Tee) Submit(chunk []byte) {
	t.mutex.Lock()
	if !t.failed {
		if _, err := t.enc.Write(chunk); err != nil {
			t.failed = true
			t.log.Warn("audio capture disabled", zap.Error(err))
		} else {
			t.written += uint64(len(chunk))
		}
	}
	t.mutex.Unlock()

	t.next.Submit(chunk)
}

// Written returns the number of uncompressed bytes captured so far.
func (t *Tee) Written() uint64 {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.written
}

func (t *Tee) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if err := t.enc.Close(); err != nil {
		_ = t.out.Close()
		return fmt.Errorf("capture: flushing encoder failed: %w", err)
	}
	if err := t.out.Close(); err != nil {
		return fmt.Errorf("capture: closing output failed: %w", err)
	}
	return nil
}

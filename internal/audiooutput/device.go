package audiooutput

import (
	"sync"

	"go.uber.org/zap"
)

// Stats is a point-in-time snapshot of the device counters.
type Stats struct {
	SubmittedChunks uint64
	SubmittedBytes  uint64
	DeliveredBytes  uint64
	SilenceBytes    uint64
}

type Option func(*Device)

func WithLogger(log *zap.Logger) Option {
	return func(d *Device) {
		d.log = log
	}
}

// Device is an ordered queue of output chunks served to a pull sink.
//
// Read always answers the full request: with queued data while playing, or with
// silence once the device is stopped. The queue is unbounded; producers that need
// bounded memory throttle on QueuedBytes.
type Device struct {
	log *zap.Logger

	mutex sync.Mutex
	cond  *sync.Cond

	chunks [][]byte
	offset int
	bytes  uint64
	quit   bool
	closed bool

	// readers currently parked in cond.Wait
	waiting int

	stats Stats
}

func New(opts ...Option) *Device {
	d := &Device{
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.cond = sync.NewCond(&d.mutex)
	return d
}

// Submit appends chunk to the tail of the queue. The device owns chunk afterwards.
func (d *Device) Submit(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	d.mutex.Lock()
	if d.closed {
		d.mutex.Unlock()
		d.log.Debug("dropping chunk submitted after close", zap.Int("size", len(chunk)))
		return
	}
	d.chunks = append(d.chunks, chunk)
	d.bytes += uint64(len(chunk))
	d.stats.SubmittedChunks++
	d.stats.SubmittedBytes += uint64(len(chunk))
	d.mutex.Unlock()

	d.cond.Broadcast()
}

// Write copies p into a new chunk and submits it.
func (d *Device) Write(p []byte) (int, error) {
	chunk := make([]byte, len(p))
	copy(chunk, p)
	d.Submit(chunk)
	return len(p), nil
}

// Read fills p completely. It blocks while the queue is empty and the device is
// playing. After Stop the unfilled remainder of p is zeroed.
func (d *Device) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	written := 0
	for written < len(p) && !d.quit {
		if len(d.chunks) == 0 {
			d.waiting++
			d.cond.Wait()
			d.waiting--
			if d.quit || len(d.chunks) == 0 {
				continue
			}
		}

		front := d.chunks[0]
		n := copy(p[written:], front[d.offset:])
		written += n
		d.offset += n
		d.bytes -= uint64(n)
		d.stats.DeliveredBytes += uint64(n)

		if d.offset >= len(front) {
			d.chunks[0] = nil
			d.chunks = d.chunks[1:]
			d.offset = 0
		}
	}

	if written < len(p) {
		clear(p[written:])
		d.stats.SilenceBytes += uint64(len(p) - written)
	}

	return len(p), nil
}

// Start resumes buffered playback.
func (d *Device) Start() {
	d.mutex.Lock()
	if d.closed {
		d.mutex.Unlock()
		return
	}
	d.quit = false
	d.mutex.Unlock()

	d.log.Debug("audio output started")
	d.cond.Broadcast()
}

// Stop switches every pending and future Read onto silence. Buffered chunks are
// kept until Start or Close.
func (d *Device) Stop() {
	d.mutex.Lock()
	d.quit = true
	d.mutex.Unlock()

	d.log.Debug("audio output stopped")
	d.cond.Broadcast()
}

// Close stops the device and discards everything still queued.
func (d *Device) Close() error {
	d.mutex.Lock()
	d.quit = true
	d.closed = true
	discarded := d.bytes
	d.chunks = nil
	d.offset = 0
	d.bytes = 0
	d.mutex.Unlock()

	d.cond.Broadcast()
	d.log.Debug("audio output closed", zap.Uint64("discarded", discarded))
	return nil
}

func (d *Device) QueuedBytes() uint64 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.bytes
}

func (d *Device) blockedReaders() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.waiting
}

func (d *Device) Stats() Stats {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.stats
}

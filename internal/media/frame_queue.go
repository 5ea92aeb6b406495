package media

import (
	"sync"

	"github.com/GoldenFealla/AVOutputGo/internal/hwdevice"
)

// FrameQueue is a bounded ring of decoded video frames between the decoder and
// the surface. Write blocks while the ring is full; Read blocks while it is empty.
type FrameQueue struct {
	frames []*hwdevice.VideoFrame
	max    int

	head, tail, count int

	mutex  sync.Mutex
	cond   *sync.Cond
	closed bool
}

func NewFrameQueue(max int) *FrameQueue {
	fq := &FrameQueue{
		frames: make([]*hwdevice.VideoFrame, max),
		max:    max,
	}

	fq.cond = sync.NewCond(&fq.mutex)
	return fq
}

// Write appends f. It returns false, and frees f, if the queue is closed.
func (fq *FrameQueue) Write(f *hwdevice.VideoFrame) bool {
	fq.mutex.Lock()
	defer fq.mutex.Unlock()

	for fq.count >= fq.max && !fq.closed {
		fq.cond.Wait()
	}

	if fq.closed {
		f.Free()
		return false
	}

	fq.frames[fq.tail] = f
	fq.tail = (fq.tail + 1) % fq.max
	fq.count += 1

	fq.cond.Broadcast()
	return true
}

// Read removes the oldest frame. It returns nil once the queue is closed and empty.
func (fq *FrameQueue) Read() *hwdevice.VideoFrame {
	fq.mutex.Lock()
	defer fq.mutex.Unlock()

	for fq.count == 0 && !fq.closed {
		fq.cond.Wait()
	}

	if fq.count == 0 {
		return nil
	}

	return fq.pop()
}

// TryRead is the non-blocking Read.
func (fq *FrameQueue) TryRead() *hwdevice.VideoFrame {
	fq.mutex.Lock()
	defer fq.mutex.Unlock()

	if fq.count == 0 {
		return nil
	}
	return fq.pop()
}

func (fq *FrameQueue) pop() *hwdevice.VideoFrame {
	f := fq.frames[fq.head]
	fq.frames[fq.head] = nil

	fq.head = (fq.head + 1) % fq.max
	fq.count -= 1

	fq.cond.Broadcast()
	return f
}

func (fq *FrameQueue) Len() int {
	fq.mutex.Lock()
	defer fq.mutex.Unlock()
	return fq.count
}

// CurrentFramePTS returns the pts of the oldest frame, or -1 if empty.
func (fq *FrameQueue) CurrentFramePTS() int64 {
	fq.mutex.Lock()
	defer fq.mutex.Unlock()

	if fq.count == 0 {
		return -1
	}
	return fq.frames[fq.head].Pts
}

// Close releases blocked readers and writers. Frames still queued stay readable.
func (fq *FrameQueue) Close() {
	fq.mutex.Lock()
	fq.closed = true
	fq.mutex.Unlock()

	fq.cond.Broadcast()
}

// Drain frees every frame still queued.
func (fq *FrameQueue) Drain() {
	fq.mutex.Lock()
	defer fq.mutex.Unlock()

	for fq.count > 0 {
		fq.pop().Free()
	}
}

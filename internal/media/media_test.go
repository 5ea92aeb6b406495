package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GoldenFealla/AVOutputGo/internal/decoder"
	"github.com/GoldenFealla/AVOutputGo/internal/hwdevice"
)

func newTestMedia(t *testing.T, maxQueued uint64) *Media {
	t.Helper()

	m := NewMedia(Options{
		SampleRate:     44100,
		Channels:       2,
		FrameQueueSize: 2,
		MaxQueued:      maxQueued,
	}, zap.NewNop())
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func returned(ch <-chan error) func() bool {
	return func() bool { return len(ch) > 0 }
}

func TestThrottleWaitsForPlayback(t *testing.T) {
	t.Parallel()
	m := newTestMedia(t, 8)
	m.Audio().Submit(make([]byte, 16))

	done := make(chan error, 1)
	go func() { done <- m.throttle(context.Background()) }()

	assert.Never(t, returned(done), 50*time.Millisecond, 5*time.Millisecond)

	_, err := m.Audio().Read(make([]byte, 8))
	require.NoError(t, err)

	require.Eventually(t, returned(done), 2*time.Second, time.Millisecond)
	assert.NoError(t, <-done)
}

func TestThrottleDisabled(t *testing.T) {
	t.Parallel()
	m := newTestMedia(t, 0)
	m.Audio().Submit(make([]byte, 1<<16))

	assert.NoError(t, m.throttle(context.Background()))
}

func TestThrottleCanceled(t *testing.T) {
	t.Parallel()
	m := newTestMedia(t, 8)
	m.Audio().Submit(make([]byte, 16))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.throttle(ctx) }()
	cancel()

	require.Eventually(t, returned(done), 2*time.Second, time.Millisecond)
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWaitDrainedReturnsOnceQueueIsEmpty(t *testing.T) {
	t.Parallel()
	m := newTestMedia(t, 0)
	m.Audio().Submit(make([]byte, 12))

	done := make(chan error, 1)
	go func() { done <- m.waitDrained(context.Background()) }()

	_, err := m.Audio().Read(make([]byte, 8))
	require.NoError(t, err)
	assert.Never(t, returned(done), 50*time.Millisecond, 5*time.Millisecond)

	_, err = m.Audio().Read(make([]byte, 4))
	require.NoError(t, err)
	require.Eventually(t, returned(done), 2*time.Second, time.Millisecond)
	assert.NoError(t, <-done)
}

func TestWaitDrainedCanceled(t *testing.T) {
	t.Parallel()
	m := newTestMedia(t, 0)
	m.Audio().Submit(make([]byte, 4))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.waitDrained(ctx), context.Canceled)
	assert.EqualValues(t, 4, m.Audio().QueuedBytes())
}

func TestCloseReleasesWaiters(t *testing.T) {
	t.Parallel()
	m := NewMedia(Options{SampleRate: 44100, Channels: 2, FrameQueueSize: 1}, zap.NewNop())

	audio := make(chan []byte, 1)
	go func() {
		p := []byte{1, 1, 1, 1}
		_, _ = m.Audio().Read(p)
		audio <- p
	}()

	video := make(chan *hwdevice.VideoFrame, 1)
	go func() { video <- m.Frames().Read() }()

	require.NoError(t, m.Close())

	select {
	case p := <-audio:
		assert.Equal(t, make([]byte, 4), p)
	case <-time.After(2 * time.Second):
		t.Fatal("audio reader was not released")
	}

	select {
	case f := <-video:
		assert.Nil(t, f)
	case <-time.After(2 * time.Second):
		t.Fatal("frame reader was not released")
	}
}

type fakeDevice struct{}

func (fakeDevice) PixelFormat() astiav.PixelFormat { return astiav.PixelFormatVaapi }

func (fakeDevice) Type() astiav.HardwareDeviceType { return astiav.HardwareDeviceTypeVAAPI }

func (fakeDevice) SupportsSurface(hwdevice.Surface) bool { return true }

func (fakeDevice) Decode(*astiav.Frame) (*hwdevice.VideoFrame, error) { return nil, nil }

func TestOpenVideoFallsBackToSoftware(t *testing.T) {
	t.Parallel()
	m := newTestMedia(t, 0)

	errDriver := errors.New("creating hardware device context failed")
	var calls []hwdevice.Device
	open := func(hw hwdevice.Device) (*decoder.VideoStream, error) {
		calls = append(calls, hw)
		vst := decoder.NewVideoStream(hw, zap.NewNop())
		if hw != nil {
			return vst, errDriver
		}
		return vst, nil
	}

	vst, err := m.openVideo(fakeDevice{}, open)
	require.NoError(t, err)
	require.NotNil(t, vst)
	defer vst.Close()
	assert.Equal(t, []hwdevice.Device{fakeDevice{}, nil}, calls)
}

func TestOpenVideoDoesNotRetryMissingStream(t *testing.T) {
	t.Parallel()
	m := newTestMedia(t, 0)

	calls := 0
	open := func(hw hwdevice.Device) (*decoder.VideoStream, error) {
		calls++
		return decoder.NewVideoStream(hw, zap.NewNop()), decoder.ErrNoVideo
	}

	vst, err := m.openVideo(fakeDevice{}, open)
	defer vst.Close()
	assert.ErrorIs(t, err, decoder.ErrNoVideo)
	assert.Equal(t, 1, calls)
}

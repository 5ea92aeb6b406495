package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GoldenFealla/AVOutputGo/internal/audiooutput"
	"github.com/GoldenFealla/AVOutputGo/internal/decoder"
	"github.com/GoldenFealla/AVOutputGo/internal/hwdevice"
)

const pollInterval = 10 * time.Millisecond

type Options struct {
	SampleRate     int
	Channels       int
	HardwareDevice string
	FrameQueueSize int
	// MaxQueued pauses demuxing while the audio output holds more bytes. Zero disables it.
	MaxQueued uint64
}

// Media demuxes one input, feeds its audio into an audiooutput.Device and its
// video frames into a FrameQueue.
type Media struct {
	closer *astikit.Closer
	log    *zap.Logger
	opts   Options

	iformat *astiav.FormatContext

	videoStream *decoder.VideoStream
	audioStream *decoder.AudioStream
	conv        *decoder.Converter

	audio  *audiooutput.Device
	submit decoder.ChunkSubmitter
	frames *FrameQueue

	lastVideoPts int64
	lastAudioPts int64
}

func NewMedia(opts Options, log *zap.Logger) *Media {
	layout := astiav.ChannelLayoutStereo
	if opts.Channels == 1 {
		layout = astiav.ChannelLayoutMono
	}

	if opts.FrameQueueSize < 1 {
		opts.FrameQueueSize = 1
	}

	m := &Media{
		closer: astikit.NewCloser(),
		log:    log,
		opts:   opts,
		conv:   decoder.NewConverter(opts.SampleRate, layout),
		frames: NewFrameQueue(opts.FrameQueueSize),
	}
	m.closer.Add(m.conv.Close)

	m.audio = audiooutput.New(audiooutput.WithLogger(log.Named("audio-output")))
	m.submit = m.audio

	return m
}

func (m *Media) Audio() *audiooutput.Device {
	return m.audio
}

func (m *Media) Frames() *FrameQueue {
	return m.frames
}

// SetAudioSubmitter routes converted chunks through s, which must forward them
// to Audio(). Call it before Load.
func (m *Media) SetAudioSubmitter(s decoder.ChunkSubmitter) {
	m.submit = s
}

func (m *Media) VideoTimebase() float64 {
	if m.videoStream == nil || m.videoStream.Index() < 0 {
		return 0
	}
	return m.videoStream.Timebase()
}

// Load opens input and prepares its streams. surface decides whether the
// configured hardware device can be used; otherwise video is decoded in software.
// A nil surface skips video entirely.
func (m *Media) Load(input string, surface hwdevice.Surface) error {
	m.iformat = astiav.AllocFormatContext()
	if m.iformat == nil {
		return errors.New("format context: allocating failed")
	}
	m.closer.Add(m.iformat.Free)

	if err := m.iformat.OpenInput(input, nil, nil); err != nil {
		return fmt.Errorf("format context: opening input failed: %w", err)
	}
	m.closer.Add(m.iformat.CloseInput)

	if err := m.iformat.FindStreamInfo(nil); err != nil {
		return fmt.Errorf("format context: finding stream info failed: %w", err)
	}

	if err := m.loadVideo(surface); err != nil && !errors.Is(err, decoder.ErrNoVideo) {
		return fmt.Errorf("loaded video stream failed: %w", err)
	}

	m.audioStream = decoder.NewAudioStream(m.conv, m.submit)
	m.closer.Add(m.audioStream.Close)
	if err := m.audioStream.LoadInputContext(m.iformat); err != nil && !errors.Is(err, decoder.ErrNoAudio) {
		return fmt.Errorf("loaded audio stream failed: %w", err)
	}

	return nil
}

func (m *Media) loadVideo(surface hwdevice.Surface) error {
	if surface == nil {
		m.videoStream = decoder.NewVideoStream(nil, m.log.Named("video"))
		m.closer.Add(m.videoStream.Close)
		return decoder.ErrNoVideo
	}

	vst, err := m.openVideo(m.hardwareDevice(surface), func(hw hwdevice.Device) (*decoder.VideoStream, error) {
		vst := decoder.NewVideoStream(hw, m.log.Named("video"))
		return vst, vst.LoadInputContext(m.iformat)
	})
	m.videoStream = vst
	m.closer.Add(m.videoStream.Close)
	if err != nil {
		return err
	}

	m.videoStream.SetOutputCallback(m.enqueueVideoFrame)
	return nil
}

// openVideo opens the video stream with hw. Any failure of the hardware path
// other than a missing stream is retried in software.
func (m *Media) openVideo(
	hw hwdevice.Device,
	open func(hwdevice.Device) (*decoder.VideoStream, error),
) (*decoder.VideoStream, error) {
	vst, err := open(hw)
	if err == nil || hw == nil || errors.Is(err, decoder.ErrNoVideo) {
		return vst, err
	}

	m.log.Warn("hardware decoding unavailable, falling back to software",
		zap.Stringer("device", hw.Type()),
		zap.Error(err),
	)
	vst.Close()
	return open(nil)
}

func (m *Media) hardwareDevice(surface hwdevice.Surface) hwdevice.Device {
	if m.opts.HardwareDevice == "" {
		return nil
	}

	hw, err := hwdevice.FindByName(m.opts.HardwareDevice)
	if err != nil {
		m.log.Warn("hardware device not found", zap.String("device", m.opts.HardwareDevice), zap.Error(err))
		return nil
	}

	if !hw.SupportsSurface(surface) {
		m.log.Warn("surface does not accept NV12 frames, decoding in software", zap.Stringer("device", hw.Type()))
		return nil
	}

	return hw
}

// Run demuxes until the input ends or ctx is done. At end of input it waits for
// the audio output to drain; in both cases the output is stopped, so the sink
// keeps receiving silence instead of blocking.
func (m *Media) Run(ctx context.Context) error {
	m.audio.Start()

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		if err := m.decode(gctx); err != nil {
			return err
		}
		return m.waitDrained(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		m.audio.Stop()
		m.frames.Close()
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (m *Media) decode(ctx context.Context) error {
	pkt := astiav.AllocPacket()
	defer pkt.Free()

	for {
		if err := m.throttle(ctx); err != nil {
			return err
		}

		stop, err := m.readPacket(pkt)
		if err != nil {
			return err
		}

		if stop {
			break
		}
	}

	if m.audioStream.Index() >= 0 {
		if err := m.audioStream.Flush(); err != nil {
			m.log.Warn("flushing audio failed", zap.Error(err))
		}
	}
	return nil
}

func (m *Media) readPacket(pkt *astiav.Packet) (bool, error) {
	if err := m.iformat.ReadFrame(pkt); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			return true, nil
		}
		return false, fmt.Errorf("decoding: reading packet failed: %w", err)
	}

	defer pkt.Unref()

	switch pkt.StreamIndex() {
	case m.videoStream.Index():
		if err := m.videoStream.Decode(pkt); err != nil {
			m.log.Warn("skip video packet", zap.Error(err))
		}
	case m.audioStream.Index():
		m.lastAudioPts = pkt.Pts()
		if err := m.audioStream.Decode(pkt); err != nil {
			m.log.Warn("skip audio packet", zap.Error(err))
		}
	}

	return false, nil
}

// throttle blocks while the audio output is above the configured cap.
func (m *Media) throttle(ctx context.Context) error {
	if m.opts.MaxQueued == 0 {
		return ctx.Err()
	}

	for m.audio.QueuedBytes() > m.opts.MaxQueued {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return ctx.Err()
}

func (m *Media) waitDrained(ctx context.Context) error {
	for m.audio.QueuedBytes() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	if m.audioStream != nil {
		m.log.Info("playback finished", zap.Float64("audio_seconds", m.audioStream.Played()))
	}
	return nil
}

func (m *Media) enqueueVideoFrame(f *hwdevice.VideoFrame) {
	m.lastVideoPts = f.Pts
	if !m.frames.Write(f) {
		return
	}

	if m.audioStream.Index() >= 0 {
		m.log.Debug("a/v position",
			zap.Int64("video", m.lastVideoPts),
			zap.Int64("audio", m.lastAudioPts),
			zap.Int("queued_frames", m.frames.Len()),
			zap.Float64("a/v", float64(m.lastAudioPts)*m.audioStream.Timebase()-
				float64(m.lastVideoPts)*m.videoStream.Timebase()),
		)
	}
}

// Close releases the device, queued frames and every libav resource.
func (m *Media) Close() error {
	var result *multierror.Error

	if err := m.audio.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	m.frames.Close()
	m.frames.Drain()

	if err := m.closer.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

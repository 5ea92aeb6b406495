package portaudio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/GoldenFealla/AVOutputGo/internal/sink"
)

const (
	Name     = "portaudio"
	Priority = 200
)

func init() {
	sink.RegisterFactory(Priority, Factory{})
}

type Factory struct{}

func (Factory) Name() string {
	return Name
}

func (Factory) NewSink(format sink.Format) (sink.Sink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("unable to initialize portaudio: %w", err)
	}
	return &Sink{format: format}, nil
}

type Sink struct {
	format sink.Format

	mutex  sync.Mutex
	stream *portaudio.Stream
	reader io.Reader
	buf    []byte
}

func (s *Sink) Play(r io.Reader) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.stream != nil {
		return fmt.Errorf("portaudio sink is already playing")
	}

	framesPerBuffer := int(float64(s.format.SampleRate) * s.format.BufferSize.Seconds())
	s.reader = r

	stream, err := portaudio.OpenDefaultStream(
		0,
		s.format.Channels,
		float64(s.format.SampleRate),
		framesPerBuffer,
		s.callback,
	)
	if err != nil {
		return fmt.Errorf("unable to open the output stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("unable to start the output stream: %w", err)
	}

	s.stream = stream
	return nil
}

// callback runs on the portaudio thread.
func (s *Sink) callback(out []float32) {
	if n := len(out) / s.format.Channels * s.format.BytesPerFrame(); cap(s.buf) < n {
		s.buf = make([]byte, n)
	} else {
		s.buf = s.buf[:n]
	}

	if _, err := io.ReadFull(s.reader, s.buf); err != nil {
		clear(out)
		return
	}
	decodeFloat32LE(out, s.buf)
}

func decodeFloat32LE(out []float32, b []byte) {
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
}

func (s *Sink) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	defer portaudio.Terminate()

	if s.stream == nil {
		return nil
	}

	if err := s.stream.Stop(); err != nil {
		_ = s.stream.Close()
		return fmt.Errorf("unable to stop the output stream: %w", err)
	}
	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("unable to close the output stream: %w", err)
	}
	return nil
}

package oto

import (
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/GoldenFealla/AVOutputGo/internal/sink"
)

const (
	Name     = "oto"
	Priority = 100
)

func init() {
	sink.RegisterFactory(Priority, Factory{})
}

type Factory struct{}

func (Factory) Name() string {
	return Name
}

func (Factory) NewSink(format sink.Format) (sink.Sink, error) {
	otoCtx, err := getOtoContext(format)
	if err != nil {
		return nil, err
	}
	return &Sink{ctx: otoCtx}, nil
}

var (
	otoContext       *oto.Context
	otoContextFormat sink.Format
	otoContextLocker sync.Mutex
)

// oto allows a single context per process, so every sink has to share its format.
func getOtoContext(format sink.Format) (*oto.Context, error) {
	otoContextLocker.Lock()
	defer otoContextLocker.Unlock()

	if otoContext != nil {
		if format != otoContextFormat {
			return nil, fmt.Errorf("oto context is already initialized with %+v, requested %+v", otoContextFormat, format)
		}
		return otoContext, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   format.BufferSize,
	}

	otoCtx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize an oto context: %w", err)
	}
	<-readyChan

	otoContext = otoCtx
	otoContextFormat = format
	return otoContext, nil
}

type Sink struct {
	ctx    *oto.Context
	player *oto.Player
}

func (s *Sink) Play(r io.Reader) error {
	if s.player != nil {
		return fmt.Errorf("oto sink is already playing")
	}

	s.player = s.ctx.NewPlayer(r)
	s.player.Play()
	return nil
}

func (s *Sink) Close() error {
	if s.player == nil {
		return nil
	}

	if err := s.player.Close(); err != nil {
		return fmt.Errorf("unable to close the player: %w", err)
	}
	return nil
}

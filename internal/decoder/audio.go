package decoder

import (
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
)

// ChunkSubmitter receives converted audio chunks in playback order and owns them.
type ChunkSubmitter interface {
	Submit(chunk []byte)
}

type AudioStream struct {
	st *astiav.Stream
	cc *astiav.CodecContext

	df   *astiav.Frame
	conv *Converter

	closer *astikit.Closer

	out ChunkSubmitter

	played float64
}

func NewAudioStream(conv *Converter, out ChunkSubmitter) *AudioStream {
	ast := &AudioStream{
		closer: astikit.NewCloser(),
		conv:   conv,
		out:    out,
	}

	ast.df = astiav.AllocFrame()
	ast.closer.Add(ast.df.Free)

	return ast
}

func (ast *AudioStream) Close() {
	ast.closer.Close()
}

func (ast *AudioStream) Index() int {
	if ast.st == nil {
		return -1
	}
	return ast.st.Index()
}

func (ast *AudioStream) Timebase() float64 {
	return ast.st.TimeBase().Float64()
}

// Played returns the duration of audio submitted so far, in seconds.
func (ast *AudioStream) Played() float64 {
	return ast.played
}

func (ast *AudioStream) LoadInputContext(i *astiav.FormatContext) error {
	if i == nil {
		return ErrInputContextNil
	}

	s := findStream(i, astiav.MediaTypeAudio)
	if s == nil {
		return ErrNoAudio
	}

	cc, err := openCodecContext(s, nil)
	if err != nil {
		return fmt.Errorf("audio stream: %w", err)
	}
	ast.closer.Add(cc.Free)

	ast.st = s
	ast.cc = cc
	return nil
}

func (ast *AudioStream) Decode(pkt *astiav.Packet) error {
	if err := ast.cc.SendPacket(pkt); err != nil {
		return fmt.Errorf("audio decode: sending packet to audio decoder failed: %w", err)
	}

	return receiveAll(ast.cc, ast.df, ast.submitFrame)
}

// Flush drains the decoder and the resampler at end of input.
func (ast *AudioStream) Flush() error {
	if err := ast.Decode(nil); err != nil {
		return err
	}
	return ast.conv.Flush(ast.submit)
}

func (ast *AudioStream) submitFrame(f *astiav.Frame) error {
	b, err := ast.conv.Convert(f)
	if err != nil {
		return fmt.Errorf("audio decode: %w", err)
	}
	ast.submit(b)
	return nil
}

func (ast *AudioStream) submit(b []byte) {
	if len(b) == 0 {
		return
	}
	ast.played += float64(len(b)) / float64(ast.conv.BytesPerSecond())
	ast.out.Submit(b)
}

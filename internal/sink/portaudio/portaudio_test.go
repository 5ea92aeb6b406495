package portaudio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GoldenFealla/AVOutputGo/internal/sink"
)

func encode(v ...float32) []byte {
	b := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

func TestDecodeFloat32LE(t *testing.T) {
	want := []float32{0, 0.5, -1, 0.25}
	b := make([]byte, len(want)*4)
	for i, v := range want {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}

	out := make([]float32, len(want))
	decodeFloat32LE(out, b)
	assert.Equal(t, want, out)
}

func TestCallbackPullsWholeBuffer(t *testing.T) {
	s := &Sink{
		format: sink.Format{SampleRate: 48000, Channels: 2},
		reader: bytes.NewReader(encode(0.1, 0.2, 0.3, 0.4, 0.5, 0.6)),
	}

	out := make([]float32, 4)
	s.callback(out)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4}, out)
	assert.Len(t, s.buf, 16)

	// only two samples left: the short read is played as silence
	out = []float32{1, 1, 1, 1}
	s.callback(out)
	assert.Equal(t, make([]float32, 4), out)
}

package decoder

import (
	"errors"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pcmFrameSize = 4 // s16 stereo

func openPCMDecoder(t *testing.T) *astiav.CodecContext {
	t.Helper()

	codec := astiav.FindDecoder(astiav.CodecIDPcmS16Le)
	require.NotNil(t, codec)

	cc := astiav.AllocCodecContext(codec)
	require.NotNil(t, cc)
	t.Cleanup(cc.Free)

	cc.SetChannelLayout(astiav.ChannelLayoutStereo)
	cc.SetSampleRate(44100)
	cc.SetSampleFormat(astiav.SampleFormatS16)
	require.NoError(t, cc.Open(codec, nil))
	return cc
}

func pcmPacket(t *testing.T, samples int) *astiav.Packet {
	t.Helper()

	pkt := astiav.AllocPacket()
	t.Cleanup(pkt.Free)
	require.NoError(t, pkt.FromData(make([]byte, samples*pcmFrameSize)))
	return pkt
}

func TestReceiveAllNothingReady(t *testing.T) {
	cc := openPCMDecoder(t)
	f := astiav.AllocFrame()
	defer f.Free()

	calls := 0
	err := receiveAll(cc, f, func(*astiav.Frame) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Zero(t, calls)
}

func TestReceiveAllStopsAtEOF(t *testing.T) {
	cc := openPCMDecoder(t)
	f := astiav.AllocFrame()
	defer f.Free()

	require.NoError(t, cc.SendPacket(pcmPacket(t, 256)))
	require.NoError(t, cc.SendPacket(nil))

	samples := 0
	err := receiveAll(cc, f, func(f *astiav.Frame) error {
		samples += f.NbSamples()
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 256, samples)
}

func TestReceiveAllReturnsHandlerError(t *testing.T) {
	cc := openPCMDecoder(t)
	f := astiav.AllocFrame()
	defer f.Free()

	require.NoError(t, cc.SendPacket(pcmPacket(t, 64)))

	errBoom := errors.New("boom")
	err := receiveAll(cc, f, func(*astiav.Frame) error { return errBoom })
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, f.NbSamples())
}

func TestConverterResamplesAndFlushes(t *testing.T) {
	c := NewConverter(44100, astiav.ChannelLayoutStereo)
	defer c.Close()
	assert.Equal(t, 44100*2*4, c.BytesPerSecond())

	in := astiav.AllocFrame()
	defer in.Free()
	in.SetChannelLayout(astiav.ChannelLayoutStereo)
	in.SetSampleFormat(astiav.SampleFormatS16)
	in.SetSampleRate(48000)
	in.SetNbSamples(1024)
	require.NoError(t, in.AllocBuffer(0))

	b, err := c.Convert(in)
	require.NoError(t, err)
	total := len(b)

	require.NoError(t, c.Flush(func(b []byte) { total += len(b) }))

	// 1024 samples at 48kHz come out as about 941 at 44.1kHz
	assert.Zero(t, total%8)
	assert.Greater(t, total, 900*8)
	assert.LessOrEqual(t, total, 1024*8)
}

type recorder struct {
	chunks [][]byte
}

func (r *recorder) Submit(chunk []byte) {
	r.chunks = append(r.chunks, chunk)
}

func (r *recorder) size() int {
	n := 0
	for _, c := range r.chunks {
		n += len(c)
	}
	return n
}

func TestAudioStreamSubmitsConvertedChunks(t *testing.T) {
	conv := NewConverter(44100, astiav.ChannelLayoutStereo)
	defer conv.Close()

	rec := &recorder{}
	ast := NewAudioStream(conv, rec)
	defer ast.Close()
	assert.Equal(t, -1, ast.Index())

	ast.cc = openPCMDecoder(t)

	require.NoError(t, ast.Decode(pcmPacket(t, 441)))
	require.NoError(t, ast.Flush())

	require.NotEmpty(t, rec.chunks)
	for _, c := range rec.chunks {
		assert.NotEmpty(t, c)
	}
	assert.Equal(t, 441*8, rec.size())
	assert.InDelta(t, 0.01, ast.Played(), 1e-9)
}

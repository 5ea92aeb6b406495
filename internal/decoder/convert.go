package decoder

import (
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
)

var FORMAT_TYPE = astiav.SampleFormatFlt

// Converter resamples decoded audio frames into packed float32 bytes.
type Converter struct {
	closer *astikit.Closer

	resampler *astiav.SoftwareResampleContext
	out       *astiav.Frame

	channelLayout astiav.ChannelLayout
	sampleRate    int
}

func NewConverter(sampleRate int, channelLayout astiav.ChannelLayout) *Converter {
	c := &Converter{
		closer:        astikit.NewCloser(),
		channelLayout: channelLayout,
		sampleRate:    sampleRate,
	}

	c.resampler = astiav.AllocSoftwareResampleContext()
	c.closer.Add(c.resampler.Free)

	c.out = astiav.AllocFrame()
	c.closer.Add(c.out.Free)

	return c
}

func (c *Converter) Close() {
	c.closer.Close()
}

func (c *Converter) BytesPerSecond() int {
	return c.sampleRate * c.channelLayout.Channels() * FORMAT_TYPE.BytesPerSample()
}

// Convert resamples f and returns the output bytes. A nil frame drains samples
// still held by the resampler. The result may be empty.
func (c *Converter) Convert(f *astiav.Frame) ([]byte, error) {
	c.out.Unref()
	c.out.SetChannelLayout(c.channelLayout)
	c.out.SetSampleFormat(FORMAT_TYPE)
	c.out.SetSampleRate(c.sampleRate)

	if err := c.resampler.ConvertFrame(f, c.out); err != nil {
		return nil, fmt.Errorf("convert: resampling frame failed: %w", err)
	}

	if c.out.NbSamples() == 0 {
		return nil, nil
	}

	b, err := c.out.Data().Bytes(1)
	if err != nil {
		return nil, fmt.Errorf("convert: getting data failed: %w", err)
	}
	return b, nil
}

// Flush drains the resampler into submit.
func (c *Converter) Flush(submit func([]byte)) error {
	for c.resampler.Delay(int64(c.sampleRate)) > 0 {
		b, err := c.Convert(nil)
		if err != nil {
			return fmt.Errorf("flush resampler: %w", err)
		}
		if len(b) == 0 {
			break
		}
		submit(b)
	}
	return nil
}

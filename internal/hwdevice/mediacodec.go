package hwdevice

import (
	"fmt"

	"github.com/asticode/go-astiav"
)

func init() {
	Register(MediaCodec{})
}

// MediaCodec adapts Android MediaCodec output. Buffers the decoder already
// mapped into CPU memory as NV12 are referenced as is; opaque MEDIACODEC frames
// are downloaded into an NV12 software frame.
type MediaCodec struct{}

var _ Device = MediaCodec{}

func (MediaCodec) PixelFormat() astiav.PixelFormat {
	return astiav.PixelFormatMediacodec
}

func (MediaCodec) Type() astiav.HardwareDeviceType {
	return astiav.HardwareDeviceTypeMediaCodec
}

func (MediaCodec) SupportsSurface(s Surface) bool {
	return supportsNV12(s)
}

func (d MediaCodec) Decode(f *astiav.Frame) (*VideoFrame, error) {
	if f == nil {
		return nil, ErrNilFrame
	}

	switch f.PixelFormat() {
	case OutputPixelFormat:
	case d.PixelFormat():
		return download(f, d.Type())
	default:
		return nil, fmt.Errorf("mediacodec decode: unexpected pixel format %s", f.PixelFormat())
	}

	ref := f.Clone()
	if ref == nil {
		return nil, fmt.Errorf("mediacodec decode: cloning frame failed")
	}

	return &VideoFrame{
		Frame:       ref,
		Width:       f.Width(),
		Height:      f.Height(),
		PixelFormat: OutputPixelFormat,
		Pts:         f.Pts(),
	}, nil
}

// Package hwdevice adapts hardware-decoded video frames to CPU planar frames a
// video surface can render.
//
// There is one Device per hardware backend, selected through the registry by the
// hardware device type the decoder negotiated.
package hwdevice

import (
	"errors"
	"slices"

	"github.com/asticode/go-astiav"
)

var (
	ErrNilFrame          = errors.New("hwdevice: frame is nil")
	ErrUnsupportedDevice = errors.New("hwdevice: unsupported hardware device")
)

// HandleType tells which memory handle a surface expects the buffers to carry.
type HandleType int

const (
	HandleTypeNone HandleType = iota
	HandleTypeGLTexture
	HandleTypeDRMPrime
)

// OutputPixelFormat is the planar format every adapter produces.
const OutputPixelFormat = astiav.PixelFormatNv12

// Surface is the consumer of decoded video frames.
type Surface interface {
	SupportedPixelFormats(handle HandleType) []astiav.PixelFormat
}

// VideoFrame is a CPU-accessible frame ready for a surface.
type VideoFrame struct {
	Frame       *astiav.Frame
	Width       int
	Height      int
	PixelFormat astiav.PixelFormat
	Pts         int64
}

func (vf *VideoFrame) Free() {
	if vf == nil || vf.Frame == nil {
		return
	}
	vf.Frame.Free()
	vf.Frame = nil
}

type Device interface {
	// PixelFormat is the hardware pixel format the decoder emits for this device.
	PixelFormat() astiav.PixelFormat
	Type() astiav.HardwareDeviceType
	SupportsSurface(s Surface) bool
	Decode(f *astiav.Frame) (*VideoFrame, error)
}

// supportsNV12 reports whether s accepts NV12 buffers without a memory handle.
// A nil surface is unsupported.
func supportsNV12(s Surface) bool {
	if s == nil {
		return false
	}
	return slices.Contains(s.SupportedPixelFormats(HandleTypeNone), OutputPixelFormat)
}

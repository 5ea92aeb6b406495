package hwdevice

import (
	"fmt"

	"github.com/asticode/go-astiav"
)

func init() {
	for _, d := range []transferDevice{
		{astiav.HardwareDeviceTypeVAAPI, astiav.PixelFormatVaapi},
		{astiav.HardwareDeviceTypeCUDA, astiav.PixelFormatCuda},
		{astiav.HardwareDeviceTypeVideoToolbox, astiav.PixelFormatVideotoolbox},
	} {
		Register(d)
	}
}

// transferDevice adapts backends whose frames live in device memory and have to
// be downloaded into an NV12 software frame.
type transferDevice struct {
	deviceType  astiav.HardwareDeviceType
	pixelFormat astiav.PixelFormat
}

var _ Device = transferDevice{}

func (d transferDevice) PixelFormat() astiav.PixelFormat {
	return d.pixelFormat
}

func (d transferDevice) Type() astiav.HardwareDeviceType {
	return d.deviceType
}

func (d transferDevice) SupportsSurface(s Surface) bool {
	return supportsNV12(s)
}

func (d transferDevice) Decode(f *astiav.Frame) (*VideoFrame, error) {
	if f == nil {
		return nil, ErrNilFrame
	}

	if f.PixelFormat() != d.pixelFormat {
		return nil, fmt.Errorf("%s decode: unexpected pixel format %s", d.deviceType, f.PixelFormat())
	}

	return download(f, d.deviceType)
}

// download copies a device memory frame into a new NV12 software frame.
func download(f *astiav.Frame, t astiav.HardwareDeviceType) (*VideoFrame, error) {
	sw := astiav.AllocFrame()
	sw.SetPixelFormat(OutputPixelFormat)
	if err := f.TransferHardwareData(sw); err != nil {
		sw.Free()
		return nil, fmt.Errorf("%s decode: transferring hardware data failed: %w", t, err)
	}
	sw.SetPts(f.Pts())

	return &VideoFrame{
		Frame:       sw,
		Width:       f.Width(),
		Height:      f.Height(),
		PixelFormat: OutputPixelFormat,
		Pts:         f.Pts(),
	}, nil
}

package decoder

import (
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"go.uber.org/zap"

	"github.com/GoldenFealla/AVOutputGo/internal/hwdevice"
)

type VideoStream struct {
	st *astiav.Stream
	cc *astiav.CodecContext

	df *astiav.Frame

	hw    hwdevice.Device
	hwCtx *astiav.HardwareDeviceContext

	closer *astikit.Closer
	log    *zap.Logger

	outputCallback func(*hwdevice.VideoFrame)
}

// NewVideoStream creates a video stream decoder. A nil hw decodes in software.
func NewVideoStream(hw hwdevice.Device, log *zap.Logger) *VideoStream {
	vst := &VideoStream{
		closer: astikit.NewCloser(),
		hw:     hw,
		log:    log,
	}

	vst.df = astiav.AllocFrame()
	vst.closer.Add(vst.df.Free)

	return vst
}

func (vst *VideoStream) Close() {
	vst.closer.Close()
}

func (vst *VideoStream) Index() int {
	if vst.st == nil {
		return -1
	}
	return vst.st.Index()
}

func (vst *VideoStream) Timebase() float64 {
	return vst.st.TimeBase().Float64()
}

// SetOutputCallback sets the receiver of decoded frames. The callback owns them.
func (vst *VideoStream) SetOutputCallback(callback func(*hwdevice.VideoFrame)) {
	vst.outputCallback = callback
}

func (vst *VideoStream) LoadInputContext(i *astiav.FormatContext) error {
	if i == nil {
		return ErrInputContextNil
	}

	s := findStream(i, astiav.MediaTypeVideo)
	if s == nil {
		return ErrNoVideo
	}

	var configure func(*astiav.Codec, *astiav.CodecContext) error
	if vst.hw != nil {
		configure = vst.configureHardware
	}

	cc, err := openCodecContext(s, configure)
	if err != nil {
		return fmt.Errorf("video stream: %w", err)
	}
	vst.closer.Add(cc.Free)

	vst.st = s
	vst.cc = cc
	return nil
}

func (vst *VideoStream) configureHardware(codec *astiav.Codec, cc *astiav.CodecContext) error {
	supported := false
	for _, p := range codec.HardwareConfigs() {
		if p.MethodFlags().Has(astiav.CodecHardwareConfigMethodFlagHwDeviceCtx) &&
			p.HardwareDeviceType() == vst.hw.Type() &&
			p.PixelFormat() == vst.hw.PixelFormat() {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("video stream: codec %s with %s: %w", codec.Name(), vst.hw.Type(), hwdevice.ErrUnsupportedDevice)
	}

	hwCtx, err := astiav.CreateHardwareDeviceContext(vst.hw.Type(), "", nil, 0)
	if err != nil {
		return fmt.Errorf("video stream: creating hardware device context failed: %w", err)
	}
	vst.hwCtx = hwCtx
	vst.closer.Add(hwCtx.Free)

	cc.SetHardwareDeviceContext(hwCtx)
	cc.SetPixelFormatCallback(func(pfs []astiav.PixelFormat) astiav.PixelFormat {
		for _, pf := range pfs {
			if pf == vst.hw.PixelFormat() {
				return pf
			}
		}

		vst.log.Error("unable to find appropriate pixel format", zap.Stringer("device", vst.hw.Type()))
		return astiav.PixelFormatNone
	})

	return nil
}

func (vst *VideoStream) Decode(pkt *astiav.Packet) error {
	if err := vst.cc.SendPacket(pkt); err != nil {
		return fmt.Errorf("video decode: sending packet to video decoder failed: %w", err)
	}

	return receiveAll(vst.cc, vst.df, vst.emit)
}

func (vst *VideoStream) emit(f *astiav.Frame) error {
	var (
		vf  *hwdevice.VideoFrame
		err error
	)

	if vst.hw != nil && f.PixelFormat() == vst.hw.PixelFormat() {
		vf, err = vst.hw.Decode(f)
		if err != nil {
			return fmt.Errorf("video decode: %w", err)
		}
	} else {
		vf = &hwdevice.VideoFrame{
			Frame:       f.Clone(),
			Width:       f.Width(),
			Height:      f.Height(),
			PixelFormat: f.PixelFormat(),
			Pts:         f.Pts(),
		}
	}

	if vst.outputCallback == nil {
		vf.Free()
		return nil
	}
	vst.outputCallback(vf)
	return nil
}

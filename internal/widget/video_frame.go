package widget

import (
	"context"
	"image"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/asticode/go-astiav"
	"go.uber.org/zap"

	"github.com/GoldenFealla/AVOutputGo/internal/hwdevice"
	"github.com/GoldenFealla/AVOutputGo/internal/media"
)

var supportedPixelFormats = []astiav.PixelFormat{
	astiav.PixelFormatNv12,
	astiav.PixelFormatYuv420P,
	astiav.PixelFormatRgba,
}

// VideoFrame is a fyne image that presents decoded frames at their pts.
type VideoFrame struct {
	Image *canvas.Image
	log   *zap.Logger
}

var _ hwdevice.Surface = (*VideoFrame)(nil)

func NewVideoFrame(log *zap.Logger) *VideoFrame {
	img := canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	img.FillMode = canvas.ImageFillContain
	img.ScaleMode = canvas.ImageScaleFastest

	return &VideoFrame{
		Image: img,
		log:   log,
	}
}

// SupportedPixelFormats only accepts CPU buffers.
func (vf *VideoFrame) SupportedPixelFormats(handle hwdevice.HandleType) []astiav.PixelFormat {
	if handle != hwdevice.HandleTypeNone {
		return nil
	}
	return supportedPixelFormats
}

// Run presents frames from fq until it is closed or ctx is done.
func (vf *VideoFrame) Run(ctx context.Context, fq *media.FrameQueue, timebase float64) {
	start := time.Now()
	firstPts := int64(-1)
	due := func(pts int64) time.Time {
		return start.Add(time.Duration(float64(pts-firstPts) * timebase * float64(time.Second)))
	}

	for {
		f := fq.Read()
		if f == nil {
			return
		}

		if firstPts < 0 {
			firstPts = f.Pts
		}

		select {
		case <-ctx.Done():
			f.Free()
			return
		case <-time.After(time.Until(due(f.Pts))):
		}

		f = skipLate(fq, f, due)

		img, err := toImage(f)
		f.Free()
		if err != nil {
			vf.log.Debug("skip video frame", zap.Error(err))
			continue
		}

		fyne.Do(func() {
			vf.Image.Image = img
			vf.Image.Refresh()
		})
	}
}

// skipLate drops f for every queued frame that is already due, and returns the
// newest of them. Run is the only reader of fq.
func skipLate(fq *media.FrameQueue, f *hwdevice.VideoFrame, due func(int64) time.Time) *hwdevice.VideoFrame {
	for {
		next := fq.CurrentFramePTS()
		if next < 0 || due(next).After(time.Now()) {
			return f
		}

		late := fq.TryRead()
		if late == nil {
			return f
		}
		f.Free()
		f = late
	}
}

func toImage(f *hwdevice.VideoFrame) (image.Image, error) {
	i, err := f.Frame.Data().GuessImageFormat()
	if err != nil {
		return nil, err
	}

	if err := f.Frame.Data().ToImage(i); err != nil {
		return nil, err
	}
	return i, nil
}

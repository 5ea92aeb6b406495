package hwdevice

import (
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSurface map[HandleType][]astiav.PixelFormat

func (s fakeSurface) SupportedPixelFormats(handle HandleType) []astiav.PixelFormat {
	return s[handle]
}

func TestSupportsSurface(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name    string
		surface Surface
		want    bool
	}{
		{"nil", nil, false},
		{"empty", fakeSurface{}, false},
		{"nv12", fakeSurface{HandleTypeNone: {astiav.PixelFormatYuv420P, astiav.PixelFormatNv12}}, true},
		{"no nv12", fakeSurface{HandleTypeNone: {astiav.PixelFormatYuv420P, astiav.PixelFormatRgba}}, false},
		{"nv12 only with texture handle", fakeSurface{HandleTypeGLTexture: {astiav.PixelFormatNv12}}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for _, typ := range Types() {
				d, ok := Lookup(typ)
				require.True(t, ok)
				assert.Equal(t, tc.want, d.SupportsSurface(tc.surface), typ.String())
			}
		})
	}
}

func TestMediaCodecIdentity(t *testing.T) {
	t.Parallel()

	d, ok := Lookup(astiav.HardwareDeviceTypeMediaCodec)
	require.True(t, ok)
	assert.Equal(t, astiav.PixelFormatMediacodec, d.PixelFormat())
	assert.Equal(t, astiav.HardwareDeviceTypeMediaCodec, d.Type())
}

func TestMediaCodecDecode(t *testing.T) {
	t.Parallel()

	f := astiav.AllocFrame()
	defer f.Free()
	f.SetWidth(64)
	f.SetHeight(36)
	f.SetPixelFormat(astiav.PixelFormatNv12)
	f.SetPts(1234)
	require.NoError(t, f.AllocBuffer(0))

	vf, err := MediaCodec{}.Decode(f)
	require.NoError(t, err)
	defer vf.Free()

	assert.Equal(t, 64, vf.Width)
	assert.Equal(t, 36, vf.Height)
	assert.Equal(t, astiav.PixelFormatNv12, vf.PixelFormat)
	assert.EqualValues(t, 1234, vf.Pts)
	require.NotNil(t, vf.Frame)
	assert.Equal(t, 64, vf.Frame.Width())
	assert.Equal(t, vf.PixelFormat, vf.Frame.PixelFormat())
}

func TestMediaCodecDecodeOpaqueFrame(t *testing.T) {
	t.Parallel()

	// tagged MEDIACODEC but not backed by a hardware frames context: the
	// download fails instead of handing out a frame mislabelled as NV12
	f := astiav.AllocFrame()
	defer f.Free()
	f.SetWidth(64)
	f.SetHeight(36)
	f.SetPixelFormat(astiav.PixelFormatMediacodec)

	vf, err := MediaCodec{}.Decode(f)
	assert.Error(t, err)
	assert.Nil(t, vf)
}

func TestMediaCodecDecodeRejectsOtherFormats(t *testing.T) {
	t.Parallel()

	f := astiav.AllocFrame()
	defer f.Free()
	f.SetWidth(16)
	f.SetHeight(16)
	f.SetPixelFormat(astiav.PixelFormatYuv420P)
	require.NoError(t, f.AllocBuffer(0))

	vf, err := MediaCodec{}.Decode(f)
	assert.ErrorContains(t, err, "unexpected pixel format")
	assert.Nil(t, vf)
}

func TestDecodeNilFrame(t *testing.T) {
	t.Parallel()

	for _, typ := range Types() {
		d, _ := Lookup(typ)
		_, err := d.Decode(nil)
		assert.ErrorIs(t, err, ErrNilFrame, typ.String())
	}
}

func TestTransferDecodeRejectsSoftwareFrame(t *testing.T) {
	t.Parallel()

	d, ok := Lookup(astiav.HardwareDeviceTypeVAAPI)
	require.True(t, ok)

	f := astiav.AllocFrame()
	defer f.Free()
	f.SetWidth(16)
	f.SetHeight(16)
	f.SetPixelFormat(astiav.PixelFormatYuv420P)

	_, err := d.Decode(f)
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	types := Types()
	assert.Contains(t, types, astiav.HardwareDeviceTypeMediaCodec)
	assert.Contains(t, types, astiav.HardwareDeviceTypeVAAPI)

	d, err := FindByName("mediacodec")
	require.NoError(t, err)
	assert.Equal(t, astiav.HardwareDeviceTypeMediaCodec, d.Type())

	_, err = FindByName("no-such-device")
	assert.ErrorIs(t, err, ErrUnsupportedDevice)

	assert.Panics(t, func() { Register(MediaCodec{}) })
}

func TestVideoFrameFreeNil(t *testing.T) {
	t.Parallel()

	var vf *VideoFrame
	assert.NotPanics(t, vf.Free)
	assert.NotPanics(t, (&VideoFrame{}).Free)
}

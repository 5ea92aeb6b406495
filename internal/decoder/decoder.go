package decoder

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
)

// findStream returns the first stream of type t, or nil.
func findStream(i *astiav.FormatContext, t astiav.MediaType) *astiav.Stream {
	for _, is := range i.Streams() {
		if is.CodecParameters().MediaType() == t {
			return is
		}
	}
	return nil
}

// openCodecContext allocates and opens a decoder context for s. configure runs
// after the stream parameters are applied and before the codec is opened.
func openCodecContext(
	s *astiav.Stream,
	configure func(*astiav.Codec, *astiav.CodecContext) error,
) (*astiav.CodecContext, error) {
	codec := astiav.FindDecoder(s.CodecParameters().CodecID())
	if codec == nil {
		return nil, errors.New("finding codec: codec is nil")
	}

	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, errors.New("finding codec: codec context is nil")
	}

	if err := s.CodecParameters().ToCodecContext(cc); err != nil {
		cc.Free()
		return nil, fmt.Errorf("finding codec: updating codec context failed: %w", err)
	}

	if configure != nil {
		if err := configure(codec, cc); err != nil {
			cc.Free()
			return nil, err
		}
	}

	if err := cc.Open(codec, nil); err != nil {
		cc.Free()
		return nil, fmt.Errorf("finding codec: opening codec context failed: %w", err)
	}

	return cc, nil
}

// receiveAll drains every frame the codec context has ready into f, calling
// handle for each one.
func receiveAll(cc *astiav.CodecContext, f *astiav.Frame, handle func(*astiav.Frame) error) error {
	for {
		if err := cc.ReceiveFrame(f); err != nil {
			if errors.Is(err, astiav.ErrEof) || errors.Is(err, astiav.ErrEagain) {
				return nil
			}
			return fmt.Errorf("decoding: receiving frame failed: %w", err)
		}

		err := handle(f)
		f.Unref()
		if err != nil {
			return err
		}
	}
}

package decoder

import "errors"

var (
	ErrInputContextNil = errors.New("decoder: input format context is nil")
	ErrNoVideo         = errors.New("decoder: no video stream found")
	ErrNoAudio         = errors.New("decoder: no audio stream found")
)

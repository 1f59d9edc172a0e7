package riff

import "errors"

var (
	ErrNotRIFF             = errors.New("not RIFF")
	ErrNotWAVE             = errors.New("not WAVE")
	ErrMissingFmtChunk     = errors.New("missing fmt chunk")
	ErrMissingDataChunk    = errors.New("missing data chunk")
	ErrUnsupportedCodec    = errors.New("unsupported codec")
	ErrUnsupportedBitDepth = errors.New("unsupported bit depth")
)

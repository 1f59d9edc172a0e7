// Package mp3 owns the encoder session lifecycle and the streaming encode
// pipeline. The psychoacoustic encoder itself is an external collaborator
// (the shine MP3 encoder) behind the Session contract; this package supplies
// configuration, frame alignment and flush semantics around it.
package mp3

import (
	"bytes"
	"errors"
	"fmt"

	shine "github.com/braheezy/shine-mp3/pkg/mp3"
)

var (
	ErrInit      = errors.New("init failed")
	ErrParamInit = errors.New("param init failed")
	ErrEncode    = errors.New("encode failed")
	ErrClosed    = errors.New("session closed")
)

// Defaults applied when the caller leaves the knob unset.
const (
	DefaultBitrate = 128
	DefaultQuality = 5
)

// Config holds the encoder parameters for one session. The encoder always
// runs in constant-bitrate mode; there is no VBR switch to misconfigure.
type Config struct {
	Channels   int
	SampleRate int
	Bitrate    int // kbps; 0 means DefaultBitrate
	Quality    int // 0 (best) .. 9 (worst); -1 means DefaultQuality
}

// Session is one stateful encode conversation: feed interleaved PCM buffers
// in order, flush once, close unconditionally. Sessions are not safe for
// concurrent use and must not be shared across conversions.
type Session interface {
	// EncodeBuffer consumes interleaved 16-bit samples (mono sources pass
	// their single channel) and returns whatever compressed bytes became
	// available. The returned slice is valid until the next call.
	EncodeBuffer(samples []int16) ([]byte, error)
	// Flush drains samples buffered inside the encoder. Call exactly once,
	// after the final EncodeBuffer.
	Flush() ([]byte, error)
	// Close releases the session. Safe to call more than once.
	Close() error
}

// Sample rates the MPEG audio spec (and therefore shine) accepts.
var supportedRates = map[int]bool{
	8000: true, 11025: true, 12000: true, 16000: true, 22050: true,
	24000: true, 32000: true, 44100: true, 48000: true,
}

// bitRateTable mirrors shine's internal CBR table row for row, indexed by
// the encoder's MPEG version column (2.5, reserved, II, I). A -1 entry is
// an invalid combination. The row index doubles as the frame header's
// bitrate index, which is why the full table is replicated instead of a
// flat per-version list.
var bitRateTable = [16][4]int{
	{-1, -1, -1, -1}, {8, -1, 8, 32}, {16, -1, 16, 40}, {24, -1, 24, 48},
	{32, -1, 32, 56}, {40, -1, 40, 64}, {48, -1, 48, 80}, {56, -1, 56, 96},
	{64, -1, 64, 112}, {-1, -1, 80, 128}, {-1, -1, 96, 160}, {-1, -1, 112, 192},
	{-1, -1, 128, 224}, {-1, -1, 144, 256}, {-1, -1, 160, 320}, {-1, -1, -1, -1},
}

// snapBitrate maps a requested rate to the nearest valid entry of the given
// MPEG version column, matching how LAME rounds off-table values. The low
// MPEG-2/2.5 columns top out below 320, so a high request at a low sample
// rate lands on that version's ceiling.
func snapBitrate(kbps, version int) int {
	best := -1
	for _, row := range bitRateTable {
		v := row[version]
		if v <= 0 {
			continue
		}
		if best < 0 || abs(v-kbps) < abs(best-kbps) {
			best = v
		}
	}
	return best
}

// bitrateIndex returns the frame-header index of an exact table entry, or
// -1 when the version column has no such rate.
func bitrateIndex(kbps, version int) int {
	for i, row := range bitRateTable {
		if row[version] == kbps {
			return i
		}
	}
	return -1
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type shineSession struct {
	enc      *shine.Encoder
	channels int
	quality  int
	frameLen int // interleaved values per MPEG frame
	pending  []int16
	out      bytes.Buffer
	closed   bool
}

// NewSession creates and fully parameterizes an encoder session. A channel
// count outside {1,2} fails like a refused encoder handle; an unsupported
// sample rate or bitrate fails parameter finalization.
func NewSession(cfg Config) (Session, error) {
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrInit, cfg.Channels)
	}
	if !supportedRates[cfg.SampleRate] {
		return nil, fmt.Errorf("%w: sample rate %d", ErrParamInit, cfg.SampleRate)
	}

	bitrate := cfg.Bitrate
	if bitrate <= 0 {
		bitrate = DefaultBitrate
	}
	quality := cfg.Quality
	if quality < 0 {
		quality = DefaultQuality
	}

	enc := shine.NewEncoder(cfg.SampleRate, cfg.Channels)
	if enc == nil {
		return nil, ErrInit
	}
	if err := setBitrate(enc, bitrate); err != nil {
		return nil, err
	}

	return &shineSession{
		enc:      enc,
		channels: cfg.Channels,
		quality:  quality,
		frameLen: int(enc.Mpeg.GranulesPerFrame) * shine.GRANULE_SIZE * cfg.Channels,
	}, nil
}

// setBitrate reparameterizes the encoder for a CBR rate other than the
// 128 kbps NewEncoder hard-codes. The frame-header index and the
// slots-per-frame bookkeeping are derived from the bitrate during encoder
// construction and never reread from Mpeg.Bitrate, so they must be
// recomputed here the same way.
func setBitrate(enc *shine.Encoder, kbps int) error {
	version := int(enc.Mpeg.Version)
	rate := snapBitrate(kbps, version)
	idx := bitrateIndex(rate, version)
	if rate < 0 || idx < 0 {
		return fmt.Errorf("%w: bitrate %d", ErrParamInit, kbps)
	}

	enc.Mpeg.Bitrate = int64(rate)
	enc.Mpeg.BitrateIndex = int64(idx)

	avgSlotsPerFrame := (float64(enc.Mpeg.GranulesPerFrame) * shine.GRANULE_SIZE / float64(enc.Wave.SampleRate)) *
		(float64(enc.Mpeg.Bitrate) * 1000 / float64(enc.Mpeg.BitsPerSlot))
	enc.Mpeg.WholeSlotsPerFrame = int64(avgSlotsPerFrame)
	enc.Mpeg.FracSlotsPerFrame = avgSlotsPerFrame - float64(enc.Mpeg.WholeSlotsPerFrame)
	enc.Mpeg.Slot_lag = -enc.Mpeg.FracSlotsPerFrame
	if enc.Mpeg.FracSlotsPerFrame == 0 {
		enc.Mpeg.Padding = 0
	}
	return nil
}

// writeFrames hands buf to the encoder one MPEG frame per call. The
// encoder's batch entry point advances by a stereo stride regardless of the
// channel count, so a multi-frame mono buffer would lose every second
// frame; single-frame calls make it run exactly one pass each.
func (s *shineSession) writeFrames(buf []int16) error {
	for off := 0; off+s.frameLen <= len(buf); off += s.frameLen {
		if err := s.enc.Write(&s.out, buf[off:off+s.frameLen]); err != nil {
			return fmt.Errorf("%w: %v", ErrEncode, err)
		}
	}
	return nil
}

func (s *shineSession) EncodeBuffer(samples []int16) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}

	s.pending = append(s.pending, samples...)

	whole := len(s.pending) / s.frameLen * s.frameLen
	if whole == 0 {
		return nil, nil
	}

	s.out.Reset()
	if err := s.writeFrames(s.pending[:whole]); err != nil {
		return nil, err
	}
	s.pending = append(s.pending[:0], s.pending[whole:]...)

	return s.out.Bytes(), nil
}

func (s *shineSession) Flush() ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if len(s.pending) == 0 {
		return nil, nil
	}

	// Pad the tail to a whole frame; shine has no partial-frame entry point.
	for len(s.pending)%s.frameLen != 0 {
		s.pending = append(s.pending, 0)
	}

	s.out.Reset()
	if err := s.writeFrames(s.pending); err != nil {
		return nil, err
	}
	s.pending = nil

	return s.out.Bytes(), nil
}

func (s *shineSession) Close() error {
	s.closed = true
	s.pending = nil
	return nil
}

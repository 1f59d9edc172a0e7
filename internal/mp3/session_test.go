package mp3

import (
	"errors"
	"testing"
)

// --- parameter validation ---

func TestNewSessionValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"zero channels", Config{Channels: 0, SampleRate: 44100}, ErrInit},
		{"too many channels", Config{Channels: 3, SampleRate: 44100}, ErrInit},
		{"odd sample rate", Config{Channels: 1, SampleRate: 44000}, ErrParamInit},
		{"zero sample rate", Config{Channels: 2, SampleRate: 0}, ErrParamInit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSession(tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewSession error = %v; want %v", err, tt.want)
			}
		})
	}
}

func TestNewSessionAcceptsAllSupportedRates(t *testing.T) {
	for rate := range supportedRates {
		sess, err := NewSession(Config{Channels: 1, SampleRate: rate})
		if err != nil {
			t.Errorf("NewSession(rate=%d): %v", rate, err)
			continue
		}
		_ = sess.Close()
	}
}

// --- bitrate snapping ---

// Table column indices for the MPEG version in the frame header.
const (
	verMPEG25 = 0
	verMPEG2  = 2
	verMPEG1  = 3
)

func TestSnapBitrate(t *testing.T) {
	tests := []struct {
		in, version, want int
	}{
		{128, verMPEG1, 128},
		{320, verMPEG1, 320},
		{32, verMPEG1, 32},
		{1, verMPEG1, 32},
		{100, verMPEG1, 96},
		{130, verMPEG1, 128},
		{999, verMPEG1, 320},
		// The low-rate version columns top out early; big requests snap
		// to the column ceiling.
		{320, verMPEG2, 160},
		{64, verMPEG2, 64},
		{12, verMPEG2, 8},
		{320, verMPEG25, 64},
	}
	for _, tt := range tests {
		if got := snapBitrate(tt.in, tt.version); got != tt.want {
			t.Errorf("snapBitrate(%d, col %d) = %d; want %d", tt.in, tt.version, got, tt.want)
		}
	}
}

func TestBitrateIndexMatchesTableRow(t *testing.T) {
	if got := bitrateIndex(128, verMPEG1); got != 9 {
		t.Errorf("bitrateIndex(128, MPEG-I) = %d; want 9", got)
	}
	if got := bitrateIndex(320, verMPEG1); got != 14 {
		t.Errorf("bitrateIndex(320, MPEG-I) = %d; want 14", got)
	}
	if got := bitrateIndex(320, verMPEG2); got != -1 {
		t.Errorf("bitrateIndex(320, MPEG-II) = %d; want -1", got)
	}
	if got := bitrateIndex(133, verMPEG1); got != -1 {
		t.Errorf("bitrateIndex(133, MPEG-I) = %d; want -1", got)
	}
}

// Changing the rate after construction must actually change the frames the
// encoder emits. CBR frame sizes scale with the bitrate, so the two outputs
// differ in length by a wide margin when the rate takes effect.
func TestSessionBitrateChangesOutputSize(t *testing.T) {
	encode := func(bitrate int) int {
		t.Helper()
		sess, err := NewSession(Config{Channels: 1, SampleRate: 44100, Bitrate: bitrate})
		if err != nil {
			t.Fatalf("NewSession(bitrate=%d): %v", bitrate, err)
		}
		defer sess.Close()

		samples := make([]int16, 8*1152)
		for i := range samples {
			samples[i] = int16(i % 1024)
		}
		data, err := sess.EncodeBuffer(samples)
		if err != nil {
			t.Fatalf("EncodeBuffer: %v", err)
		}
		return len(data)
	}

	low := encode(32)
	high := encode(320)
	if high <= low {
		t.Errorf("320 kbps output %d bytes not larger than 32 kbps output %d bytes", high, low)
	}
	// 320 kbps frames are ten times the size of 32 kbps frames; anywhere
	// near parity means the rate never reached the encoder.
	if high < 5*low {
		t.Errorf("320 kbps output %d bytes suspiciously close to 32 kbps output %d bytes", high, low)
	}
}

func TestSessionFrameLength(t *testing.T) {
	tests := []struct {
		channels, rate, want int
	}{
		{1, 44100, 1152},
		{2, 44100, 2304},
		{1, 16000, 576},
		{2, 16000, 1152},
		{1, 32000, 1152},
	}
	for _, tt := range tests {
		sess, err := NewSession(Config{Channels: tt.channels, SampleRate: tt.rate})
		if err != nil {
			t.Fatalf("NewSession(ch=%d rate=%d): %v", tt.channels, tt.rate, err)
		}
		if got := sess.(*shineSession).frameLen; got != tt.want {
			t.Errorf("frameLen(ch=%d rate=%d) = %d; want %d", tt.channels, tt.rate, got, tt.want)
		}
		sess.Close()
	}
}

// A multi-frame mono buffer must produce every frame, not every other one.
// At 128 kbps / 44.1 kHz each CBR frame is 417 or 418 bytes, so the total
// for n frames is pinned into a narrow band.
func TestSessionMonoBatchKeepsAllFrames(t *testing.T) {
	const frames = 10
	sess, err := NewSession(Config{Channels: 1, SampleRate: 44100})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer sess.Close()

	data, err := sess.EncodeBuffer(make([]int16, frames*1152))
	if err != nil {
		t.Fatalf("EncodeBuffer: %v", err)
	}
	if len(data) < frames*417 || len(data) > frames*418 {
		t.Errorf("batch of %d mono frames encoded to %d bytes; want within [%d,%d]",
			frames, len(data), frames*417, frames*418)
	}

	// Frame-at-a-time feeding of the same samples must match the batch.
	single, err := NewSession(Config{Channels: 1, SampleRate: 44100})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer single.Close()

	var total int
	for i := 0; i < frames; i++ {
		out, err := single.EncodeBuffer(make([]int16, 1152))
		if err != nil {
			t.Fatalf("EncodeBuffer frame %d: %v", i, err)
		}
		total += len(out)
	}
	if total != len(data) {
		t.Errorf("frame-at-a-time output %d bytes; batch output %d bytes", total, len(data))
	}
}

// --- frame alignment and flush ---

func TestSessionBuffersPartialFrames(t *testing.T) {
	sess, err := NewSession(Config{Channels: 1, SampleRate: 44100})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer sess.Close()

	// Less than one MPEG frame; nothing can be emitted yet.
	data, err := sess.EncodeBuffer(make([]int16, 100))
	if err != nil {
		t.Fatalf("EncodeBuffer: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("partial frame emitted %d bytes; want 0", len(data))
	}

	// Topping up past one frame must produce compressed output.
	data, err = sess.EncodeBuffer(make([]int16, 1152))
	if err != nil {
		t.Fatalf("EncodeBuffer: %v", err)
	}
	if len(data) == 0 {
		t.Error("full frame emitted no bytes")
	}
}

func TestSessionFlushPadsTail(t *testing.T) {
	sess, err := NewSession(Config{Channels: 1, SampleRate: 44100})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer sess.Close()

	if _, err := sess.EncodeBuffer(make([]int16, 500)); err != nil {
		t.Fatalf("EncodeBuffer: %v", err)
	}

	data, err := sess.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(data) == 0 {
		t.Error("Flush of buffered tail emitted no bytes")
	}

	// A second flush has nothing left to drain.
	data, err = sess.Flush()
	if err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("second Flush emitted %d bytes; want 0", len(data))
	}
}

func TestSessionClosedRejectsUse(t *testing.T) {
	sess, err := NewSession(Config{Channels: 1, SampleRate: 44100})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if _, err := sess.EncodeBuffer(make([]int16, 10)); !errors.Is(err, ErrClosed) {
		t.Errorf("EncodeBuffer after Close = %v; want %v", err, ErrClosed)
	}
	if _, err := sess.Flush(); !errors.Is(err, ErrClosed) {
		t.Errorf("Flush after Close = %v; want %v", err, ErrClosed)
	}
}

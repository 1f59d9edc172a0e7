package testutil

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// Chunk is an arbitrary RIFF chunk for fixture building.
type Chunk struct {
	Tag     string
	Payload []byte
}

// WAVSpec describes a fixture built by MakeWAV. Zero-valued fields fall back
// to a canonical 44100 Hz mono 16-bit file.
type WAVSpec struct {
	SampleRate  uint32
	Channels    uint16
	BitDepth    uint16
	FormatTag   uint16
	Samples     []int16 // interleaved; Frames of silence used when nil
	Frames      int
	BeforeFmt   []Chunk // junk chunks inserted between WAVE and fmt
	BeforeData  []Chunk // junk chunks inserted between fmt and data
	AfterData   []Chunk // trailing chunks appended after the data payload
	OmitFmt     bool
	OmitData    bool
	RIFFTag     string // override for corrupt fixtures; default "RIFF"
	WaveTag     string // default "WAVE"
}

func (s *WAVSpec) normalize() {
	if s.SampleRate == 0 {
		s.SampleRate = 44100
	}
	if s.Channels == 0 {
		s.Channels = 1
	}
	if s.BitDepth == 0 {
		s.BitDepth = 16
	}
	if s.FormatTag == 0 {
		s.FormatTag = 1
	}
	if s.Samples == nil {
		s.Samples = make([]int16, s.Frames*int(s.Channels))
	}
	if s.RIFFTag == "" {
		s.RIFFTag = "RIFF"
	}
	if s.WaveTag == "" {
		s.WaveTag = "WAVE"
	}
}

// MakeWAV builds a WAV byte slice from spec. It writes the chunk structure
// by hand so tests can produce both canonical and deliberately irregular
// containers.
func MakeWAV(spec WAVSpec) []byte {
	spec.normalize()

	buf := &bytes.Buffer{}
	buf.WriteString(spec.RIFFTag)
	_ = binary.Write(buf, binary.LittleEndian, uint32(0)) // patched below
	buf.WriteString(spec.WaveTag)

	writeChunks(buf, spec.BeforeFmt)

	if !spec.OmitFmt {
		blockAlign := spec.Channels * spec.BitDepth / 8
		byteRate := spec.SampleRate * uint32(blockAlign)

		buf.WriteString("fmt ")
		_ = binary.Write(buf, binary.LittleEndian, uint32(16))
		_ = binary.Write(buf, binary.LittleEndian, spec.FormatTag)
		_ = binary.Write(buf, binary.LittleEndian, spec.Channels)
		_ = binary.Write(buf, binary.LittleEndian, spec.SampleRate)
		_ = binary.Write(buf, binary.LittleEndian, byteRate)
		_ = binary.Write(buf, binary.LittleEndian, blockAlign)
		_ = binary.Write(buf, binary.LittleEndian, spec.BitDepth)
	}

	writeChunks(buf, spec.BeforeData)

	if !spec.OmitData {
		buf.WriteString("data")
		_ = binary.Write(buf, binary.LittleEndian, uint32(len(spec.Samples)*2))
		for _, s := range spec.Samples {
			_ = binary.Write(buf, binary.LittleEndian, s)
		}
	}

	writeChunks(buf, spec.AfterData)

	out := buf.Bytes()
	if len(out) >= 8 {
		binary.LittleEndian.PutUint32(out[4:8], uint32(len(out)-8))
	}
	return out
}

func writeChunks(buf *bytes.Buffer, chunks []Chunk) {
	for _, c := range chunks {
		buf.WriteString(c.Tag)
		_ = binary.Write(buf, binary.LittleEndian, uint32(len(c.Payload)))
		buf.Write(c.Payload)
	}
}

// WriteWAVFile writes a 16-bit PCM WAV file to path through the go-audio
// encoder, producing a library-authored container as a second fixture
// flavour alongside the hand-rolled MakeWAV output.
func WriteWAVFile(tb testing.TB, path string, sampleRate, channels int, samples []int) {
	tb.Helper()

	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	enc := gowav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Data:           samples,
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: channels},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		tb.Fatalf("write PCM: %v", err)
	}
	if err := enc.Close(); err != nil {
		tb.Fatalf("close encoder: %v", err)
	}
}

// SilenceWAVFile writes a WAV of the given duration in whole seconds filled
// with zero samples.
func SilenceWAVFile(tb testing.TB, path string, sampleRate, channels, seconds int) {
	tb.Helper()
	WriteWAVFile(tb, path, sampleRate, channels, make([]int, sampleRate*channels*seconds))
}

// WriteFile dumps data to path, failing the test on error.
func WriteFile(tb testing.TB, path string, data []byte) {
	tb.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
}

package riff

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/wav"
	"github.com/example/go-wavemp3/internal/testutil"
)

// TestParseMatchesWAVDecoder checks the chunk scanner against an independent
// decoder on a library-authored file: both must agree on the declared format.
func TestParseMatchesWAVDecoder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ramp.wav")
	samples := make([]int, 44100)
	for i := range samples {
		samples[i] = i % 1000
	}
	testutil.WriteWAVFile(t, path, 44100, 1, samples)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	f, dc, err := Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		t.Fatal("decoder rejected fixture")
	}

	if int(dec.SampleRate) != f.SampleRate {
		t.Errorf("SampleRate = %d; decoder says %d", f.SampleRate, dec.SampleRate)
	}
	if int(dec.NumChans) != f.Channels {
		t.Errorf("Channels = %d; decoder says %d", f.Channels, dec.NumChans)
	}
	if int(dec.BitDepth) != f.BitsPerSample {
		t.Errorf("BitsPerSample = %d; decoder says %d", f.BitsPerSample, dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode PCM: %v", err)
	}
	if int64(len(buf.Data))*2 != dc.Length {
		t.Errorf("data length = %d bytes; decoder read %d samples", dc.Length, len(buf.Data))
	}
}

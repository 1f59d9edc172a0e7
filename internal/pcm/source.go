// Package pcm provides interleaved 16-bit PCM sample sources and the
// optional per-sample filters applied before encoding.
package pcm

import (
	"encoding/binary"
	"io"
)

// Source yields interleaved signed 16-bit PCM samples.
type Source interface {
	// SampleRate of the stream in Hz.
	SampleRate() int
	// Channels count (1=mono, 2=stereo).
	Channels() int
	// ReadSamples fills dst with interleaved samples and returns the number
	// of values written (not frames). n == 0 with io.EOF means the stream
	// is finished.
	ReadSamples(dst []int16) (n int, err error)
	// Close releases any underlying resources.
	Close() error
}

type readerSource struct {
	r          io.Reader
	closer     io.Closer
	sampleRate int
	channels   int
	buf        []byte
}

// NewReaderSource wraps a little-endian s16le byte stream as a Source. The
// reader should already be positioned at (and bounded to) the sample data;
// use io.LimitReader for the bound. If r also implements io.Closer it is
// closed by Close.
func NewReaderSource(r io.Reader, sampleRate, channels int) Source {
	s := &readerSource{r: r, sampleRate: sampleRate, channels: channels}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (s *readerSource) SampleRate() int { return s.sampleRate }
func (s *readerSource) Channels() int   { return s.channels }

func (s *readerSource) ReadSamples(dst []int16) (int, error) {
	want := len(dst) * 2
	if len(s.buf) < want {
		s.buf = make([]byte, want)
	}

	n, err := io.ReadFull(s.r, s.buf[:want])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return 0, err
	}

	samples := n / 2
	for i := range samples {
		dst[i] = int16(binary.LittleEndian.Uint16(s.buf[2*i : 2*i+2]))
	}

	if samples == 0 {
		return 0, io.EOF
	}
	return samples, nil
}

func (s *readerSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

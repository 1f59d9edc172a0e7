// Package riff parses the RIFF/WAVE chunk structure of PCM WAV files.
//
// The parser walks the container chunk by chunk instead of assuming the
// canonical 44-byte header, so producers that insert LIST/INFO/bext or other
// metadata chunks between the RIFF header and the fmt/data chunks are handled
// correctly. Only integer PCM with 16-bit samples is accepted.
package riff

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Format describes the sample layout declared by a WAVE fmt chunk.
type Format struct {
	AudioFormat   uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// DataChunk locates the raw PCM payload within the container.
type DataChunk struct {
	Offset int64
	Length int64
}

// fmt chunk payload fields consumed by the parser. Longer fmt chunks
// (WAVEFORMATEXTENSIBLE) carry extra bytes that are skipped.
const fmtPayloadSize = 16

// Parse reads a WAVE container from offset 0 of r and returns the declared
// PCM format together with the location of the data chunk. Unknown chunks are
// skipped; chunk lengths that run past end-of-stream are clamped rather than
// rejected so the scan can still fail with a precise missing-chunk error.
func Parse(r io.ReadSeeker) (Format, DataChunk, error) {
	var f Format

	var tag [4]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil || string(tag[:]) != "RIFF" {
		return f, DataChunk{}, ErrNotRIFF
	}

	// Overall RIFF size field. Not validated against the actual file length;
	// real-world writers get it wrong often enough that checking it would
	// reject otherwise playable files.
	if _, err := r.Seek(4, io.SeekCurrent); err != nil {
		return f, DataChunk{}, fmt.Errorf("seek past RIFF size: %w", err)
	}

	if _, err := io.ReadFull(r, tag[:]); err != nil || string(tag[:]) != "WAVE" {
		return f, DataChunk{}, ErrNotWAVE
	}

	length, err := scanFor(r, "fmt ")
	if err != nil {
		return f, DataChunk{}, ErrMissingFmtChunk
	}

	f, err = parseFmt(r, length)
	if err != nil {
		return f, DataChunk{}, err
	}

	length, err = scanFor(r, "data")
	if err != nil {
		return f, DataChunk{}, ErrMissingDataChunk
	}

	offset, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return f, DataChunk{}, fmt.Errorf("data chunk offset: %w", err)
	}

	return f, DataChunk{Offset: offset, Length: int64(length)}, nil
}

// ParseLegacy reads the channel count, sample rate and bit depth from the
// fixed offsets of a canonical 44-byte header (22, 24 and 34) and assumes the
// data chunk starts at byte 44. It exists for producers known to emit exactly
// that layout; Parse is authoritative and should be preferred.
func ParseLegacy(r io.ReadSeeker, fileSize int64) (Format, DataChunk, error) {
	var f Format

	var hdr [44]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return f, DataChunk{}, ErrNotRIFF
	}
	if string(hdr[0:4]) != "RIFF" {
		return f, DataChunk{}, ErrNotRIFF
	}
	if string(hdr[8:12]) != "WAVE" {
		return f, DataChunk{}, ErrNotWAVE
	}

	f.AudioFormat = binary.LittleEndian.Uint16(hdr[20:22])
	f.Channels = int(binary.LittleEndian.Uint16(hdr[22:24]))
	f.SampleRate = int(binary.LittleEndian.Uint32(hdr[24:28]))
	f.BitsPerSample = int(binary.LittleEndian.Uint16(hdr[34:36]))

	if err := validate(f); err != nil {
		return f, DataChunk{}, err
	}

	length := fileSize - int64(len(hdr))
	if length < 0 {
		length = 0
	}

	return f, DataChunk{Offset: int64(len(hdr)), Length: length}, nil
}

// scanFor advances through (tag, length, payload) triples until a chunk with
// the wanted tag is found, returning its payload length with the stream
// positioned at the payload start. Other chunks are skipped, clamped to
// end-of-stream.
func scanFor(r io.ReadSeeker, want string) (uint32, error) {
	var hdr [8]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return 0, err
		}
		length := binary.LittleEndian.Uint32(hdr[4:8])
		if string(hdr[0:4]) == want {
			return length, nil
		}
		if err := skip(r, int64(length)); err != nil {
			return 0, err
		}
	}
}

func parseFmt(r io.ReadSeeker, chunkLen uint32) (Format, error) {
	var f Format

	var payload [fmtPayloadSize]byte
	if _, err := io.ReadFull(r, payload[:]); err != nil {
		return f, ErrMissingFmtChunk
	}

	f.AudioFormat = binary.LittleEndian.Uint16(payload[0:2])
	f.Channels = int(binary.LittleEndian.Uint16(payload[2:4]))
	f.SampleRate = int(binary.LittleEndian.Uint32(payload[4:8]))
	// Bytes 8..14 hold byte rate and block align; informational only.
	f.BitsPerSample = int(binary.LittleEndian.Uint16(payload[14:16]))

	if err := validate(f); err != nil {
		return f, err
	}

	if chunkLen > fmtPayloadSize {
		if err := skip(r, int64(chunkLen-fmtPayloadSize)); err != nil {
			return f, fmt.Errorf("skip fmt extension: %w", err)
		}
	}

	return f, nil
}

func validate(f Format) error {
	if f.AudioFormat != 1 {
		return fmt.Errorf("%w: format tag %d", ErrUnsupportedCodec, f.AudioFormat)
	}
	if f.BitsPerSample != 16 {
		return fmt.Errorf("%w: %d bits", ErrUnsupportedBitDepth, f.BitsPerSample)
	}
	return nil
}

// skip advances n bytes but never past end-of-stream, so that a chunk whose
// declared length overruns the file still leaves the scanner in a defined
// position. Odd-length chunks with a pad byte need no special casing; the pad
// is consumed by the next scan as part of the generic skip.
func skip(r io.ReadSeeker, n int64) error {
	cur, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	target := cur + n
	if target > end {
		target = end
	}
	_, err = r.Seek(target, io.SeekStart)
	return err
}

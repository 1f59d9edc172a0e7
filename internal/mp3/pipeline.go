package mp3

import (
	"context"
	"fmt"
	"io"

	"github.com/example/go-wavemp3/internal/pcm"
)

// DefaultChunkFrames is the number of frames read from the PCM source per
// loop iteration.
const DefaultChunkFrames = 4096

// ProgressFunc receives the fraction of input consumed so far, in [0,1].
type ProgressFunc func(fraction float64)

// Pipeline streams a PCM source through an encoder session into a sink.
// One Pipeline value describes one conversion and is not reused.
type Pipeline struct {
	// ChunkFrames overrides DefaultChunkFrames when positive.
	ChunkFrames int
	// TotalBytes is the full input file size used as the progress
	// denominator. Zero disables progress emission.
	TotalBytes int64
	// BaseOffset counts the bytes already consumed before the first sample
	// read (the container header and any skipped chunks).
	BaseOffset int64
	// InputBytesPerSample is how many input-file bytes one sample read from
	// src represents. Defaults to 2 (raw s16le); a downmixing source that
	// collapses frames to single samples consumes more of the file per
	// sample and must say so or progress under-reports.
	InputBytesPerSample int64
	// Progress, when set, is called after every chunk. Delivery must not
	// block; wiring that in is the caller's concern.
	Progress ProgressFunc
}

// Run encodes src to completion, writing compressed bytes to out, and
// returns the number of compressed bytes written. The session is closed on
// every return path. A context cancellation is observed between iterations.
func (p *Pipeline) Run(ctx context.Context, src pcm.Source, sess Session, out io.Writer) (written int64, err error) {
	defer func() {
		if cerr := sess.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	chunk := p.ChunkFrames
	if chunk <= 0 {
		chunk = DefaultChunkFrames
	}

	buf := make([]int16, chunk*src.Channels())
	bytesPerSample := p.InputBytesPerSample
	if bytesPerSample <= 0 {
		bytesPerSample = 2
	}
	consumed := p.BaseOffset

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, rerr := src.ReadSamples(buf)
		if n == 0 {
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				return written, fmt.Errorf("read pcm: %w", rerr)
			}
			break
		}

		data, eerr := sess.EncodeBuffer(buf[:n])
		if eerr != nil {
			return written, eerr
		}
		if len(data) > 0 {
			wn, werr := out.Write(data)
			written += int64(wn)
			if werr != nil {
				return written, fmt.Errorf("write mp3: %w", werr)
			}
		}

		consumed += int64(n) * bytesPerSample
		p.emit(consumed)
	}

	data, ferr := sess.Flush()
	if ferr != nil {
		return written, ferr
	}
	if len(data) > 0 {
		wn, werr := out.Write(data)
		written += int64(wn)
		if werr != nil {
			return written, fmt.Errorf("write mp3: %w", werr)
		}
	}

	return written, nil
}

func (p *Pipeline) emit(consumed int64) {
	if p.Progress == nil || p.TotalBytes <= 0 {
		return
	}
	fraction := float64(consumed) / float64(p.TotalBytes)
	if fraction > 1 {
		fraction = 1
	}
	if fraction < 0 {
		fraction = 0
	}
	p.Progress(fraction)
}

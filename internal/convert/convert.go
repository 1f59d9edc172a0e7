// Package convert orchestrates one conversion request: locator cleanup,
// format dispatch, the encode pipeline, progress fan-out and typed failure
// reporting.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/go-wavemp3/internal/demux"
	"github.com/example/go-wavemp3/internal/mp3"
	"github.com/example/go-wavemp3/internal/pcm"
	"github.com/example/go-wavemp3/internal/progress"
	"github.com/example/go-wavemp3/internal/riff"
)

// Request names the input and output locators (plain paths or file:// URIs)
// and the options for one conversion. Format may be "wav" or "aac"; when
// empty it is detected from the input extension.
type Request struct {
	Input   string
	Output  string
	Format  string
	Options Options
}

// Outcome reports a finished conversion.
type Outcome struct {
	Path           string
	BytesWritten   int64
	Degraded       bool
	DegradedReason string
}

// Converter runs conversion requests. Independent requests may run
// concurrently; each owns its encoder session and file handles, and the
// progress hub is the only shared state.
type Converter struct {
	Hub     *progress.Hub
	Demuxer *demux.Demuxer
	Log     *slog.Logger
	// TempDir holds intermediate PCM files from the demux path. Empty means
	// the system temp dir.
	TempDir string
	// ChunkFrames overrides the pipeline read size when positive.
	ChunkFrames int
}

// New returns a Converter publishing to hub and logging through log.
func New(hub *progress.Hub, log *slog.Logger) *Converter {
	if hub == nil {
		hub = progress.NewHub()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Converter{Hub: hub, Demuxer: &demux.Demuxer{Log: log}, Log: log}
}

// Convert consumes req synchronously and returns the resolved output path.
// Every acquired resource is released before an error propagates.
func (c *Converter) Convert(ctx context.Context, req Request) (Outcome, error) {
	if err := req.Options.Validate(); err != nil {
		return Outcome{}, err
	}

	input := CleanLocator(req.Input)
	output := CleanLocator(req.Output)

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return Outcome{}, newError(KindDirectory, "create output directory", err)
	}

	switch resolveFormat(req.Format, input) {
	case "wav":
		return c.convertWAV(ctx, input, output, req.Options)
	default:
		return c.convertCompressed(ctx, input, output, req.Options)
	}
}

// ConvertAAC is Convert restricted to the compressed-input path.
func (c *Converter) ConvertAAC(ctx context.Context, req Request) (Outcome, error) {
	req.Format = "aac"
	return c.Convert(ctx, req)
}

func resolveFormat(declared, input string) string {
	if declared != "" {
		return strings.ToLower(declared)
	}
	if strings.EqualFold(filepath.Ext(input), ".wav") {
		return "wav"
	}
	return "aac"
}

// CleanLocator strips an optional file:// scheme, collapsing any resulting
// double leading slash.
func CleanLocator(locator string) string {
	path, ok := strings.CutPrefix(locator, "file://")
	if !ok {
		return locator
	}
	for strings.HasPrefix(path, "//") {
		path = path[1:]
	}
	return path
}

func (c *Converter) convertWAV(ctx context.Context, input, output string, opts Options) (Outcome, error) {
	in, err := os.Open(input)
	if err != nil {
		return Outcome{}, newError(KindFile, "open input", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return Outcome{}, newError(KindFile, "stat input", err)
	}

	format, data, err := riff.Parse(in)
	if err != nil {
		return Outcome{}, newError(KindFormat, "parse wav", err)
	}

	if _, err := in.Seek(data.Offset, io.SeekStart); err != nil {
		return Outcome{}, newError(KindFile, "seek to sample data", err)
	}

	src := pcm.NewReaderSource(io.LimitReader(in, data.Length), format.SampleRate, format.Channels)
	return c.encode(ctx, src, output, opts, info.Size(), data.Offset, "")
}

func (c *Converter) convertCompressed(ctx context.Context, input, output string, opts Options) (Outcome, error) {
	if _, err := os.Stat(input); err != nil {
		return Outcome{}, newError(KindFile, "stat input", err)
	}

	demuxer := c.Demuxer
	if demuxer == nil {
		demuxer = &demux.Demuxer{Log: c.logger()}
	}
	extraction := *demuxer
	extraction.AllowDegraded = opts.AllowDegraded

	result, err := extraction.Extract(ctx, input, c.TempDir)
	if err != nil {
		kind := KindDecode
		if errors.Is(err, demux.ErrNoAudioTrack) {
			kind = KindFormat
		}
		return Outcome{}, newError(kind, "extract audio", err)
	}
	defer os.Remove(result.PCMPath)

	if result.Degraded {
		c.logger().Warn("conversion uses degraded extraction", "input", input, "reason", result.DegradedReason)
	}

	pcmFile, err := os.Open(result.PCMPath)
	if err != nil {
		return Outcome{}, newError(KindFile, "open extracted pcm", err)
	}
	defer pcmFile.Close()

	info, err := pcmFile.Stat()
	if err != nil {
		return Outcome{}, newError(KindFile, "stat extracted pcm", err)
	}

	src := pcm.NewReaderSource(pcmFile, result.SampleRate, result.Channels)
	outcome, err := c.encode(ctx, src, output, opts, info.Size(), 0, result.DegradedReason)
	if err != nil {
		return Outcome{}, err
	}
	outcome.Degraded = result.Degraded
	return outcome, nil
}

// encode runs the shared pipeline for both input paths. totalBytes is the
// progress denominator, baseOffset the bytes already consumed ahead of the
// sample data.
func (c *Converter) encode(ctx context.Context, src pcm.Source, output string, opts Options, totalBytes, baseOffset int64, degradedReason string) (Outcome, error) {
	defer src.Close()

	inputChannels := src.Channels()
	if opts.ForceMono {
		src = pcm.NewMonoMixer(src)
	}
	if opts.HighpassHz > 0 {
		src = pcm.NewHighpass(src, opts.HighpassHz)
	}
	if opts.LowpassHz > 0 {
		src = pcm.NewLowpass(src, opts.LowpassHz)
	}

	sess, err := mp3.NewSession(mp3.Config{
		Channels:   src.Channels(),
		SampleRate: src.SampleRate(),
		Bitrate:    effective(opts.Bitrate, mp3.DefaultBitrate),
		Quality:    effective(opts.Quality, mp3.DefaultQuality),
	})
	if err != nil {
		return Outcome{}, newError(KindEncoder, "create session", err)
	}

	out, err := os.Create(output)
	if err != nil {
		// The pipeline never ran; close the session here.
		_ = sess.Close()
		return Outcome{}, newError(KindFile, "create output", err)
	}
	defer out.Close()

	hub := c.Hub
	if hub == nil {
		hub = progress.NewHub()
	}
	sampler := progress.NewSampler(0)
	pipeline := &mp3.Pipeline{
		ChunkFrames: c.ChunkFrames,
		TotalBytes:  totalBytes,
		BaseOffset:  baseOffset,
		// The mono mixer folds each input frame into one sample, so every
		// sample it yields stands for a full frame of file bytes.
		InputBytesPerSample: int64(2 * inputChannels / src.Channels()),
		Progress: func(fraction float64) {
			hub.Publish(progress.Sample{Fraction: fraction})
			if sampler.Should(fraction) {
				c.logger().Debug("conversion progress", "output", output, "fraction", fmt.Sprintf("%.2f", fraction))
			}
		},
	}

	written, err := pipeline.Run(ctx, src, sess, out)
	if err != nil {
		if errors.Is(err, mp3.ErrEncode) {
			return Outcome{}, newError(KindEncoder, "encode", err)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Outcome{}, err
		}
		return Outcome{}, newError(KindFile, "stream encode", err)
	}

	c.logger().Info("conversion complete", "output", output, "bytes", written)
	return Outcome{Path: output, BytesWritten: written, DegradedReason: degradedReason}, nil
}

func (c *Converter) logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}

func effective(v, def int) int {
	if v == Unset {
		return def
	}
	return v
}

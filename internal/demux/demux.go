// Package demux extracts the first audio track of a compressed container
// and decodes it to raw interleaved s16le PCM in a temporary file, using the
// host's ffprobe/ffmpeg binaries as the media-extraction facility.
package demux

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

var (
	ErrNoAudioTrack = errors.New("no audio track")
	ErrDecodeFailed = errors.New("decode failed")
)

// Track substitutes applied when the container omits the field.
const (
	DefaultSampleRate = 44100
	DefaultChannels   = 1
)

// estimateBitrateKbps sizes the degraded silence fallback; typical AAC
// payloads hover around this rate.
const estimateBitrateKbps = 128

// Result is the tagged outcome of an extraction. Degraded output comes from
// the last-resort fallback and must never be presented as a real decode.
type Result struct {
	PCMPath        string
	SampleRate     int
	Channels       int
	Degraded       bool
	DegradedReason string
}

// Demuxer drives ffprobe/ffmpeg. The zero value resolves both binaries from
// PATH and refuses degraded output.
type Demuxer struct {
	FFmpegPath  string
	FFprobePath string
	// AllowDegraded enables the silence/raw-copy fallback when every decode
	// attempt fails. Off by default.
	AllowDegraded bool
	Log           *slog.Logger
}

func (d *Demuxer) ffmpeg() string {
	if d.FFmpegPath != "" {
		return d.FFmpegPath
	}
	return "ffmpeg"
}

func (d *Demuxer) ffprobe() string {
	if d.FFprobePath != "" {
		return d.FFprobePath
	}
	return "ffprobe"
}

func (d *Demuxer) log() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

// Extract decodes the first audio track of inputPath into a temporary PCM
// file under tempDir (or the system temp dir when empty). The caller owns
// the returned file and removes it when done. A direct-path decode is tried
// first, then a second attempt feeding the file through a descriptor, and
// only then, when permitted, the degraded fallback.
func (d *Demuxer) Extract(ctx context.Context, inputPath, tempDir string) (Result, error) {
	track, probeErr := d.probe(ctx, inputPath)
	if probeErr != nil {
		if errors.Is(probeErr, ErrNoAudioTrack) {
			return Result{}, probeErr
		}
		// Container inspection failed outright; the decode attempts below
		// may still succeed, so fall through with defaults.
		d.log().Warn("probe failed, using default track parameters", "input", inputPath, "error", probeErr)
		track = trackInfo{SampleRate: DefaultSampleRate, Channels: DefaultChannels}
	}

	pcmFile, err := os.CreateTemp(tempDir, "wavemp3-*.pcm")
	if err != nil {
		return Result{}, fmt.Errorf("create temp pcm: %w", err)
	}
	pcmPath := pcmFile.Name()
	if err := pcmFile.Close(); err != nil {
		os.Remove(pcmPath)
		return Result{}, fmt.Errorf("close temp pcm: %w", err)
	}

	if err := d.decodeToPCM(ctx, inputPath, pcmPath, false); err != nil {
		d.log().Warn("decode via path failed, retrying via descriptor", "input", inputPath, "error", err)
		if err = d.decodeToPCM(ctx, inputPath, pcmPath, true); err != nil {
			if !d.AllowDegraded {
				os.Remove(pcmPath)
				return Result{}, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
			}
			return d.degrade(inputPath, pcmPath, err)
		}
	}

	return Result{PCMPath: pcmPath, SampleRate: track.SampleRate, Channels: track.Channels}, nil
}

type trackInfo struct {
	SampleRate int
	Channels   int
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	Index      int    `json:"index"`
	CodecType  string `json:"codec_type"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// probe inspects the container and selects the first audio track.
func (d *Demuxer) probe(ctx context.Context, path string) (trackInfo, error) {
	cmd := exec.CommandContext(ctx, d.ffprobe(),
		"-v", "error", "-hide_banner", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return trackInfo{}, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var probed probeOutput
	if err := json.Unmarshal(output, &probed); err != nil {
		return trackInfo{}, fmt.Errorf("ffprobe parse: %w", err)
	}

	for _, s := range probed.Streams {
		if !strings.EqualFold(s.CodecType, "audio") {
			continue
		}
		track := trackInfo{SampleRate: DefaultSampleRate, Channels: DefaultChannels}
		if rate, err := strconv.Atoi(s.SampleRate); err == nil && rate > 0 {
			track.SampleRate = rate
		} else {
			d.log().Warn("track omits sample rate, assuming default", "stream", s.Index, "default", DefaultSampleRate)
		}
		if s.Channels > 0 {
			track.Channels = s.Channels
		} else {
			d.log().Warn("track omits channel count, assuming default", "stream", s.Index, "default", DefaultChannels)
		}
		return track, nil
	}

	return trackInfo{}, ErrNoAudioTrack
}

// decodeToPCM runs ffmpeg to drain the first audio track into pcmPath as raw
// s16le. With viaDescriptor set, the input is handed over as an inherited
// file descriptor instead of a path, mirroring the fd-based retry of the
// platform media pipeline.
func (d *Demuxer) decodeToPCM(ctx context.Context, inputPath, pcmPath string, viaDescriptor bool) error {
	args := []string{"-v", "error", "-hide_banner", "-y"}
	if viaDescriptor {
		args = append(args, "-i", "pipe:0")
	} else {
		args = append(args, "-i", inputPath)
	}
	args = append(args, "-map", "0:a:0", "-f", "s16le", "-acodec", "pcm_s16le", pcmPath)

	cmd := exec.CommandContext(ctx, d.ffmpeg(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if viaDescriptor {
		in, err := os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer in.Close()
		cmd.Stdin = in
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// degrade produces last-resort output when no decode attempt succeeded.
// Input that does not look like AAC at all is copied through byte for byte;
// anything else becomes silence sized by a bitrate-based duration estimate.
// Correctness of this output is explicitly not guaranteed.
func (d *Demuxer) degrade(inputPath, pcmPath string, cause error) (Result, error) {
	in, err := os.Open(inputPath)
	if err != nil {
		os.Remove(pcmPath)
		return Result{}, fmt.Errorf("%w: %v", ErrDecodeFailed, cause)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		os.Remove(pcmPath)
		return Result{}, fmt.Errorf("%w: %v", ErrDecodeFailed, cause)
	}

	out, err := os.Create(pcmPath)
	if err != nil {
		os.Remove(pcmPath)
		return Result{}, fmt.Errorf("%w: %v", ErrDecodeFailed, cause)
	}
	defer out.Close()

	result := Result{
		PCMPath:    pcmPath,
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		Degraded:   true,
	}

	if looksLikeAAC(in) {
		// Silence sized by an estimated duration at the assumed bitrate.
		durationMs := info.Size() * 8 * 1000 / (estimateBitrateKbps * 1000)
		frames := durationMs * DefaultSampleRate / 1000
		zeros := make([]byte, 8192)
		remaining := frames * 2
		for remaining > 0 {
			n := int64(len(zeros))
			if n > remaining {
				n = remaining
			}
			if _, err := out.Write(zeros[:n]); err != nil {
				os.Remove(pcmPath)
				return Result{}, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
			}
			remaining -= n
		}
		result.DegradedReason = fmt.Sprintf("decoder unavailable, substituted %dms of silence: %v", durationMs, cause)
	} else {
		if _, err := io.Copy(out, in); err != nil {
			os.Remove(pcmPath)
			return Result{}, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
		}
		result.DegradedReason = fmt.Sprintf("input is not AAC, copied raw bytes: %v", cause)
	}

	d.log().Warn("degraded extraction", "input", inputPath, "reason", result.DegradedReason)
	return result, nil
}

// looksLikeAAC sniffs an ADTS sync word or an MP4 ftyp box. The reader is
// rewound afterwards.
func looksLikeAAC(r io.ReadSeeker) bool {
	var hdr [10]byte
	n, _ := io.ReadFull(r, hdr[:])
	_, _ = r.Seek(0, io.SeekStart)
	if n < 8 {
		return false
	}
	if hdr[0] == 0xFF && (hdr[1] == 0xF1 || hdr[1] == 0xF9) {
		return true
	}
	return string(hdr[4:8]) == "ftyp"
}

package main

import (
	"fmt"
	"log/slog"

	"github.com/example/go-wavemp3/internal/config"
	"github.com/example/go-wavemp3/internal/convert"
	"github.com/example/go-wavemp3/internal/demux"
	"github.com/example/go-wavemp3/internal/progress"
	"github.com/spf13/cobra"
)

type convertFlags struct {
	format        string
	bitrate       int
	quality       int
	lowpassHz     int
	highpassHz    int
	forceMono     bool
	allowDegraded bool
}

func newConvertCmd() *cobra.Command {
	var flags convertFlags

	cmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert a WAV (or any ffmpeg-readable audio) file to MP3",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args[0], args[1], flags, "")
		},
	}

	cmd.Flags().StringVar(&flags.format, "format", "", "Input format (wav|aac); detected from the extension when empty")
	registerConvertFlags(cmd, &flags)
	return cmd
}

func newConvertAACCmd() *cobra.Command {
	var flags convertFlags

	cmd := &cobra.Command{
		Use:   "convert-aac <input> <output>",
		Short: "Convert a compressed audio file to MP3 via the demuxer path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args[0], args[1], flags, "aac")
		},
	}

	registerConvertFlags(cmd, &flags)
	return cmd
}

func registerConvertFlags(cmd *cobra.Command, flags *convertFlags) {
	cmd.Flags().IntVar(&flags.bitrate, "bitrate", convert.Unset, "MP3 bitrate in kbps [32,320]; mutually exclusive with --quality")
	cmd.Flags().IntVar(&flags.quality, "quality", convert.Unset, "Encoder quality [0,9]; mutually exclusive with --bitrate")
	cmd.Flags().IntVar(&flags.lowpassHz, "lowpass", 0, "Lowpass cutoff in Hz (0 disables)")
	cmd.Flags().IntVar(&flags.highpassHz, "highpass", 0, "Highpass cutoff in Hz (0 disables)")
	cmd.Flags().BoolVar(&flags.forceMono, "force-mono", false, "Downmix multi-channel input to mono before encoding")
	cmd.Flags().BoolVar(&flags.allowDegraded, "allow-degraded", false, "Permit silence/raw-copy fallback when decoding fails")
}

func runConvert(cmd *cobra.Command, input, output string, flags convertFlags, forcedFormat string) error {
	cfg := activeCfg

	opts := convert.DefaultOptions()
	// Per-command flags win over the layered config values.
	opts.Bitrate = cfg.Encode.Bitrate
	if flags.bitrate != convert.Unset {
		opts.Bitrate = flags.bitrate
	}
	opts.Quality = cfg.Encode.Quality
	if flags.quality != convert.Unset {
		opts.Quality = flags.quality
	}
	opts.LowpassHz = flags.lowpassHz
	opts.HighpassHz = flags.highpassHz
	opts.ForceMono = flags.forceMono
	opts.AllowDegraded = flags.allowDegraded

	format := flags.format
	if forcedFormat != "" {
		format = forcedFormat
	}

	conv := newConverter(cfg)
	outcome, err := conv.Convert(cmd.Context(), convert.Request{
		Input:   input,
		Output:  output,
		Format:  format,
		Options: opts,
	})
	if err != nil {
		return err
	}

	if outcome.Degraded {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes) [DEGRADED: %s]\n",
			outcome.Path, outcome.BytesWritten, outcome.DegradedReason)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", outcome.Path, outcome.BytesWritten)
	return nil
}

func newConverter(cfg config.Config) *convert.Converter {
	conv := convert.New(progress.NewHub(), slog.Default())
	conv.Demuxer = &demux.Demuxer{
		FFmpegPath:  cfg.Demux.FFmpegPath,
		FFprobePath: cfg.Demux.FFprobePath,
		Log:         slog.Default(),
	}
	conv.TempDir = cfg.Demux.TempDir
	conv.ChunkFrames = cfg.Encode.ChunkFrames
	return conv
}

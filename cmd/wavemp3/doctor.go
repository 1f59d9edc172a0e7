package main

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/example/go-wavemp3/internal/doctor"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that ffmpeg, ffprobe and the temp directory are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := activeCfg

			res := doctor.Run(doctor.Config{
				FFmpegVersion:  toolVersion(cfg.Demux.FFmpegPath, "ffmpeg"),
				FFprobeVersion: toolVersion(cfg.Demux.FFprobePath, "ffprobe"),
				TempDir:        cfg.Demux.TempDir,
			}, cmd.OutOrStdout())
			if res.Failed() {
				return fmt.Errorf("%d check(s) failed", len(res.Failures()))
			}
			return nil
		},
	}
}

// toolVersion reports the first line of "<tool> -version".
func toolVersion(path, fallback string) doctor.VersionFunc {
	bin := path
	if bin == "" {
		bin = fallback
	}
	return func() (string, error) {
		out, err := exec.Command(bin, "-version").Output()
		if err != nil {
			return "", err
		}
		line, _, _ := strings.Cut(string(out), "\n")
		return strings.TrimSpace(line), nil
	}
}

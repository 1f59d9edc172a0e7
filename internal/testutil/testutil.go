// Package testutil provides WAV fixture builders and shared skip helpers
// for integration tests.
//
// Each skip helper calls t.Skip with a clear human-readable reason when the
// named prerequisite is absent, so integration tests remain runnable in
// partial environments without failing noisily.
package testutil

import (
	"os"
	"os/exec"
	"testing"
)

// RequireFFmpeg skips the test if the ffmpeg binary is not found in PATH or
// at the path given by the WAVEMP3_DEMUX_FFMPEG_PATH environment variable.
func RequireFFmpeg(tb testing.TB) {
	tb.Helper()
	requireBinary(tb, "ffmpeg", "WAVEMP3_DEMUX_FFMPEG_PATH")
}

// RequireFFprobe skips the test if the ffprobe binary is not found in PATH
// or at the path given by the WAVEMP3_DEMUX_FFPROBE_PATH environment variable.
func RequireFFprobe(tb testing.TB) {
	tb.Helper()
	requireBinary(tb, "ffprobe", "WAVEMP3_DEMUX_FFPROBE_PATH")
}

func requireBinary(tb testing.TB, name, env string) {
	tb.Helper()

	exe := os.Getenv(env)
	if exe == "" {
		exe = name
	}

	_, err := exec.LookPath(exe)
	if err != nil {
		tb.Skipf("%s binary not available (%q not in PATH); set %s to override", name, exe, env)
	}
}

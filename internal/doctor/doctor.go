// Package doctor provides environment preflight checks for wavemp3.
package doctor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// VersionFunc returns a version string or an error if the component is unavailable.
type VersionFunc func() (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// FFmpegVersion returns the output of `ffmpeg -version`.
	FFmpegVersion VersionFunc
	// FFprobeVersion returns the output of `ffprobe -version`.
	FFprobeVersion VersionFunc
	// SkipDemux skips the ffmpeg/ffprobe checks (WAV-only deployments).
	SkipDemux bool
	// TempDir is the directory used for intermediate PCM files; empty means
	// the system temp dir.
	TempDir string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- ffmpeg / ffprobe -------------------------------------------------
	if cfg.SkipDemux {
		fmt.Fprintf(w, "%s ffmpeg binary: skipped\n", PassMark)
		fmt.Fprintf(w, "%s ffprobe binary: skipped\n", PassMark)
	} else {
		checkVersion(w, &res, "ffmpeg binary", cfg.FFmpegVersion)
		checkVersion(w, &res, "ffprobe binary", cfg.FFprobeVersion)
	}

	// ---- temp dir ---------------------------------------------------------
	dir := cfg.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := checkWritable(dir); err != nil {
		res.fail(fmt.Sprintf("temp dir %q: %v", dir, err))
		fmt.Fprintf(w, "%s temp dir %s: not writable (%v)\n", FailMark, dir, err)
	} else {
		fmt.Fprintf(w, "%s temp dir: %s\n", PassMark, dir)
	}

	return res
}

func checkVersion(w io.Writer, res *Result, name string, fn VersionFunc) {
	if fn == nil {
		fmt.Fprintf(w, "%s %s: skipped\n", PassMark, name)
		return
	}
	ver, err := fn()
	if err != nil {
		res.fail(fmt.Sprintf("%s: %v", name, err))
		fmt.Fprintf(w, "%s %s: not found (%v)\n", FailMark, name, err)
		return
	}
	fmt.Fprintf(w, "%s %s: %s\n", PassMark, name, ver)
}

func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, "wavemp3-doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return err
	}
	return os.Remove(filepath.Clean(name))
}

package doctor

import (
	"errors"
	"strings"
	"testing"
)

func okVersion(v string) VersionFunc {
	return func() (string, error) { return v, nil }
}

func failVersion(msg string) VersionFunc {
	return func() (string, error) { return "", errors.New(msg) }
}

func TestRunAllPass(t *testing.T) {
	var out strings.Builder
	res := Run(Config{
		FFmpegVersion:  okVersion("ffmpeg version 6.1"),
		FFprobeVersion: okVersion("ffprobe version 6.1"),
		TempDir:        t.TempDir(),
	}, &out)

	if res.Failed() {
		t.Fatalf("Failed() = true; failures: %v", res.Failures())
	}

	text := out.String()
	if !strings.Contains(text, PassMark+" ffmpeg binary: ffmpeg version 6.1") {
		t.Errorf("missing ffmpeg pass line in:\n%s", text)
	}
	if !strings.Contains(text, PassMark+" ffprobe binary: ffprobe version 6.1") {
		t.Errorf("missing ffprobe pass line in:\n%s", text)
	}
	if !strings.Contains(text, PassMark+" temp dir:") {
		t.Errorf("missing temp dir pass line in:\n%s", text)
	}
	if strings.Contains(text, FailMark) {
		t.Errorf("unexpected failure mark in:\n%s", text)
	}
}

func TestRunMissingBinary(t *testing.T) {
	var out strings.Builder
	res := Run(Config{
		FFmpegVersion:  failVersion("executable not found"),
		FFprobeVersion: okVersion("ffprobe version 6.1"),
		TempDir:        t.TempDir(),
	}, &out)

	if !res.Failed() {
		t.Fatal("Failed() = false; want true")
	}
	failures := res.Failures()
	if len(failures) != 1 {
		t.Fatalf("Failures() = %v; want exactly one", failures)
	}
	if !strings.Contains(failures[0], "ffmpeg binary") {
		t.Errorf("failure = %q; want it to name the ffmpeg check", failures[0])
	}
	if !strings.Contains(out.String(), FailMark+" ffmpeg binary: not found") {
		t.Errorf("missing failure line in:\n%s", out.String())
	}
}

func TestRunSkipDemux(t *testing.T) {
	var out strings.Builder
	res := Run(Config{
		// Both would fail, but skipping must keep them out of the result.
		FFmpegVersion:  failVersion("nope"),
		FFprobeVersion: failVersion("nope"),
		SkipDemux:      true,
		TempDir:        t.TempDir(),
	}, &out)

	if res.Failed() {
		t.Errorf("Failed() = true with SkipDemux; failures: %v", res.Failures())
	}
	if !strings.Contains(out.String(), "ffmpeg binary: skipped") {
		t.Errorf("missing skip line in:\n%s", out.String())
	}
}

func TestRunUnwritableTempDir(t *testing.T) {
	var out strings.Builder
	res := Run(Config{
		SkipDemux: true,
		TempDir:   "/definitely/not/a/real/directory",
	}, &out)

	if !res.Failed() {
		t.Fatal("Failed() = false for unwritable temp dir")
	}
	if !strings.Contains(out.String(), FailMark+" temp dir") {
		t.Errorf("missing temp dir failure line in:\n%s", out.String())
	}
}

func TestRunNilVersionFuncSkips(t *testing.T) {
	var out strings.Builder
	res := Run(Config{TempDir: t.TempDir()}, &out)

	if res.Failed() {
		t.Errorf("Failed() = true with nil version funcs; failures: %v", res.Failures())
	}
	if !strings.Contains(out.String(), "ffmpeg binary: skipped") {
		t.Errorf("missing skip line in:\n%s", out.String())
	}
}

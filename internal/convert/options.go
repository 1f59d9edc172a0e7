package convert

import "fmt"

// Unset marks an option the caller did not supply.
const Unset = -1

// Bitrate bounds accepted from callers, in kbps.
const (
	MinBitrate = 32
	MaxBitrate = 320
)

// Quality bounds: 0 = best/slowest, 9 = worst/fastest.
const (
	MinQuality = 0
	MaxQuality = 9
)

// Options control one conversion. Bitrate and quality are mutually
// exclusive: supplying both is a validation failure, so a request always has
// exactly one authoritative rate control (or the defaults). Construct with
// DefaultOptions and override fields; the zero value is usable too, since a
// zero Bitrate counts as unset. Quality keeps the Unset sentinel because 0 is
// a real setting (best/slowest).
type Options struct {
	Bitrate int // kbps in [32,320]; Unset or 0 selects the default (128)
	Quality int // [0,9]; Unset selects the default (5)

	// Speech-tuning stages. Zero values leave the signal untouched; no
	// platform enables these implicitly.
	LowpassHz  int
	HighpassHz int
	ForceMono  bool

	// AllowDegraded permits the demuxer's last-resort silence/raw-copy
	// fallback when real decoding fails.
	AllowDegraded bool
}

// DefaultOptions returns options with both rate controls unset.
func DefaultOptions() Options {
	return Options{Bitrate: Unset, Quality: Unset}
}

func (o Options) bitrateSet() bool {
	return o.Bitrate != Unset && o.Bitrate != 0
}

// Validate enforces ranges and the strict one-authoritative-control policy.
func (o Options) Validate() error {
	if o.bitrateSet() && o.Quality != Unset {
		return newError(KindValidation, "bitrate and quality are mutually exclusive", nil)
	}
	if o.bitrateSet() && (o.Bitrate < MinBitrate || o.Bitrate > MaxBitrate) {
		return newError(KindValidation, fmt.Sprintf("bitrate %d outside [%d,%d]", o.Bitrate, MinBitrate, MaxBitrate), nil)
	}
	if o.Quality != Unset && (o.Quality < MinQuality || o.Quality > MaxQuality) {
		return newError(KindValidation, fmt.Sprintf("quality %d outside [%d,%d]", o.Quality, MinQuality, MaxQuality), nil)
	}
	if o.LowpassHz < 0 {
		return newError(KindValidation, fmt.Sprintf("lowpass %d is negative", o.LowpassHz), nil)
	}
	if o.HighpassHz < 0 {
		return newError(KindValidation, fmt.Sprintf("highpass %d is negative", o.HighpassHz), nil)
	}
	return nil
}

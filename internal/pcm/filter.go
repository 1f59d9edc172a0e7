package pcm

import "math"

// The filters below implement the speech-tuning stages that one platform of
// the original product applied before encoding. They are opt-in; nothing in
// the conversion path enables them implicitly.

type monoMixer struct {
	src Source
	tmp []int16
}

// NewMonoMixer downmixes a multi-channel source to mono by averaging the
// channels of each frame. A source that is already mono is returned as-is.
func NewMonoMixer(src Source) Source {
	if src.Channels() <= 1 {
		return src
	}
	return &monoMixer{src: src}
}

func (m *monoMixer) SampleRate() int { return m.src.SampleRate() }
func (m *monoMixer) Channels() int   { return 1 }
func (m *monoMixer) Close() error    { return m.src.Close() }

func (m *monoMixer) ReadSamples(dst []int16) (int, error) {
	ch := m.src.Channels()
	want := len(dst) * ch
	if len(m.tmp) < want {
		m.tmp = make([]int16, want)
	}

	n, err := m.src.ReadSamples(m.tmp[:want])
	if n == 0 {
		return 0, err
	}

	frames := n / ch
	for i := range frames {
		sum := 0
		for c := range ch {
			sum += int(m.tmp[i*ch+c])
		}
		dst[i] = int16(sum / ch)
	}
	return frames, nil
}

type onePole struct {
	src      Source
	alpha    float64
	highpass bool
	state    []float64 // per channel
}

// NewLowpass applies a one-pole lowpass at cutoffHz to every channel.
func NewLowpass(src Source, cutoffHz int) Source {
	return &onePole{src: src, alpha: poleAlpha(cutoffHz, src.SampleRate()), state: make([]float64, src.Channels())}
}

// NewHighpass applies a one-pole highpass at cutoffHz to every channel.
func NewHighpass(src Source, cutoffHz int) Source {
	return &onePole{src: src, alpha: poleAlpha(cutoffHz, src.SampleRate()), highpass: true, state: make([]float64, src.Channels())}
}

func poleAlpha(cutoffHz, sampleRate int) float64 {
	if cutoffHz <= 0 || sampleRate <= 0 {
		return 1
	}
	rc := 1 / (2 * math.Pi * float64(cutoffHz))
	dt := 1 / float64(sampleRate)
	return dt / (rc + dt)
}

func (f *onePole) SampleRate() int { return f.src.SampleRate() }
func (f *onePole) Channels() int   { return f.src.Channels() }
func (f *onePole) Close() error    { return f.src.Close() }

func (f *onePole) ReadSamples(dst []int16) (int, error) {
	n, err := f.src.ReadSamples(dst)
	ch := f.src.Channels()
	for i := 0; i < n; i++ {
		c := i % ch
		x := float64(dst[i])
		f.state[c] += f.alpha * (x - f.state[c])
		y := f.state[c]
		if f.highpass {
			y = x - y
		}
		dst[i] = clamp16(y)
	}
	return n, err
}

func clamp16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}

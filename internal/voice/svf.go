package voice

import "math"

// svf is a topology-preserving transform state-variable filter (Andy Simper's
// trapezoidal integration form), with one state pair per stereo channel.
type svf struct {
	a1, a2, a3 float64
	k          float64
	ic1        [2]float64
	ic2        [2]float64
}

// setCoefficients retunes the filter. State is kept so retuning while a note
// sounds does not click.
func (f *svf) setCoefficients(fc, res, sampleRate float64) {
	if sampleRate <= 0 {
		return
	}
	max := 0.49 * sampleRate
	if fc > max {
		fc = max
	}
	g := math.Tan(math.Pi * fc / sampleRate)
	f.k = 2 - 2*res
	f.a1 = 1 / (1 + g*(g+f.k))
	f.a2 = g * f.a1
	f.a3 = g * f.a2
}

// process filters one stereo sample. FilterOff passes the input through
// without touching state.
func (f *svf) process(l, r float64, mode int) (float64, float64) {
	if mode == FilterOff {
		return l, r
	}
	return f.tick(0, l, mode), f.tick(1, r, mode)
}

func (f *svf) tick(ch int, in float64, mode int) float64 {
	v3 := in - f.ic2[ch]
	v1 := f.a1*f.ic1[ch] + f.a2*v3
	v2 := f.ic2[ch] + f.a2*f.ic1[ch] + f.a3*v3
	f.ic1[ch] = 2*v1 - f.ic1[ch]
	f.ic2[ch] = 2*v2 - f.ic2[ch]

	switch mode {
	case FilterLP:
		return v2
	case FilterHP:
		return in - f.k*v1 - v2
	case FilterBP:
		return v1
	case FilterNotch:
		return in - f.k*v1
	}
	return in
}

// reset clears the filter state.
func (f *svf) reset() {
	f.ic1[0], f.ic1[1] = 0, 0
	f.ic2[0], f.ic2[1] = 0, 0
}

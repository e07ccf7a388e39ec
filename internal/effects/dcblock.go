package effects

import "math"

// DCBlock removes the slow offset a raw oscillator sum can carry so that
// the limiter downstream reacts to the audible signal only.
type DCBlock struct {
	r        float32
	x1L, y1L float32
	x1R, y1R float32
}

// NewDCBlock creates a DC blocking highpass with its corner near 20 Hz.
func NewDCBlock(sampleRate int) *DCBlock {
	// y[n] = x[n] - x[n-1] + r*y[n-1]
	r := 1.0 - (2*math.Pi*20)/float64(sampleRate)
	if r < 0 {
		r = 0
	}
	return &DCBlock{r: float32(r)}
}

func (d *DCBlock) Process(l, r float32) (float32, float32) {
	outL := l - d.x1L + d.r*d.y1L
	d.x1L, d.y1L = l, outL
	outR := r - d.x1R + d.r*d.y1R
	d.x1R, d.y1R = r, outR
	return outL, outR
}

func (d *DCBlock) Reset() {
	d.x1L, d.y1L = 0, 0
	d.x1R, d.y1R = 0, 0
}

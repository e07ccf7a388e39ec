package effects

import "math"

// SoftLimit keeps the summed voice output inside a ceiling with a tanh knee
// instead of hard clipping. It is stateless.
type SoftLimit struct {
	ceiling float32
}

// NewSoftLimit creates a limiter. Signals well below the ceiling pass nearly
// untouched; anything above saturates smoothly and never exceeds it.
func NewSoftLimit(ceiling float32) *SoftLimit {
	if ceiling <= 0 {
		ceiling = 1
	}
	return &SoftLimit{ceiling: ceiling}
}

func (s *SoftLimit) Process(l, r float32) (float32, float32) {
	return s.shape(l), s.shape(r)
}

func (s *SoftLimit) shape(x float32) float32 {
	return s.ceiling * float32(math.Tanh(float64(x/s.ceiling)))
}

func (s *SoftLimit) Reset() {}

package effects

import (
	"math"
	"testing"
)

func TestDCBlockRemovesOffset(t *testing.T) {
	d := NewDCBlock(48000)
	var out float32
	for i := 0; i < 48000; i++ {
		out, _ = d.Process(1, 1)
	}
	if math.Abs(float64(out)) > 0.01 {
		t.Errorf("DC residue after 1s = %f, want near 0", out)
	}
}

func TestDCBlockPassesAudio(t *testing.T) {
	d := NewDCBlock(48000)
	peak := 0.0
	for i := 0; i < 9600; i++ {
		in := float32(math.Sin(2 * math.Pi * 1000 * float64(i) / 48000))
		l, _ := d.Process(in, in)
		if i > 4800 {
			if a := math.Abs(float64(l)); a > peak {
				peak = a
			}
		}
	}
	if peak < 0.9 {
		t.Errorf("1 kHz peak through DC block = %f, want near 1", peak)
	}
}

func TestSoftLimitBoundsOutput(t *testing.T) {
	s := NewSoftLimit(1)
	for _, in := range []float32{0, 0.1, 1, 4, 40, -40} {
		l, r := s.Process(in, -in)
		if math.Abs(float64(l)) > 1 || math.Abs(float64(r)) > 1 {
			t.Errorf("limited output %f, %f exceeds ceiling for input %f", l, r, in)
		}
	}
	l, _ := s.Process(0.1, 0.1)
	if math.Abs(float64(l)-0.1) > 0.01 {
		t.Errorf("small signal shaped to %f, want about 0.1", l)
	}
}

func TestSoftLimitMonotone(t *testing.T) {
	s := NewSoftLimit(1)
	prev := float32(math.Inf(-1))
	for x := float32(-5); x <= 5; x += 0.25 {
		l, _ := s.Process(x, 0)
		if l <= prev {
			t.Fatalf("limiter not monotone at input %f", x)
		}
		prev = l
	}
}

func TestMonitorEQUnityIsTransparent(t *testing.T) {
	eq := NewMonitorEQ(48000)
	for i := 0; i < 1000; i++ {
		in := float32(math.Sin(float64(i) / 5))
		l, _ := eq.Process(in, in)
		if math.Abs(float64(l-in)) > 1e-5 {
			t.Fatalf("unity EQ altered sample %d: in %f out %f", i, in, l)
		}
	}
}

func TestMonitorEQMutesLowBand(t *testing.T) {
	eq := NewMonitorEQ(48000)
	eq.SetGain(0, 0)

	sum := 0.0
	for i := 0; i < 48000; i++ {
		in := float32(math.Sin(2 * math.Pi * 50 * float64(i) / 48000))
		l, _ := eq.Process(in, in)
		if i >= 24000 {
			sum += float64(l) * float64(l)
		}
	}
	rms := math.Sqrt(sum / 24000)
	if rms > 0.25 {
		t.Errorf("50 Hz rms with muted low band = %f, want attenuated", rms)
	}
	if g := eq.Gain(0); g != 0 {
		t.Errorf("Gain(0) = %f, want 0", g)
	}
	if g := eq.Gain(2); g != 1 {
		t.Errorf("Gain(2) = %f, want 1", g)
	}
}

func TestChainAppliesEffectsInOrder(t *testing.T) {
	c := NewChain(NewDCBlock(48000), NewSoftLimit(1))
	c.Add(NewMonitorEQ(48000))
	l, r := c.Process(0.05, -0.05)
	if l == 0 && r == 0 {
		t.Error("chain swallowed the signal")
	}
	c.Reset()
	if l, r = c.Process(0, 0); l != 0 || r != 0 {
		t.Errorf("chain not silent after reset: %f, %f", l, r)
	}
}

package voice

import (
	"math"
	"testing"
)

// sineRMS drives the filter with a unit sine, lets it settle for half the
// run, and returns the RMS of the second half.
func sineRMS(f *svf, freq, rate float64, mode int) float64 {
	f.reset()
	const n = 4800
	sum := 0.0
	for i := 0; i < 2*n; i++ {
		in := math.Sin(2 * math.Pi * freq * float64(i) / rate)
		l, _ := f.process(in, in, mode)
		if i >= n {
			sum += l * l
		}
	}
	return math.Sqrt(sum / n)
}

func TestFilterModeResponses(t *testing.T) {
	var f svf
	f.setCoefficients(1000, 0.5, 48000)

	if rms := sineRMS(&f, 100, 48000, FilterLP); rms < 0.5 {
		t.Errorf("LP passband rms = %v, want near the input level", rms)
	}
	if rms := sineRMS(&f, 8000, 48000, FilterLP); rms > 0.1 {
		t.Errorf("LP stopband rms = %v, want attenuated", rms)
	}

	if rms := sineRMS(&f, 8000, 48000, FilterHP); rms < 0.5 {
		t.Errorf("HP passband rms = %v, want near the input level", rms)
	}
	if rms := sineRMS(&f, 100, 48000, FilterHP); rms > 0.1 {
		t.Errorf("HP stopband rms = %v, want attenuated", rms)
	}

	if rms := sineRMS(&f, 1000, 48000, FilterNotch); rms > 0.15 {
		t.Errorf("notch rms at center = %v, want a deep null", rms)
	}

	if rms := sineRMS(&f, 1000, 48000, FilterBP); rms < 0.4 {
		t.Errorf("BP rms at center = %v, want passed", rms)
	}
	if rms := sineRMS(&f, 100, 48000, FilterBP); rms > 0.2 {
		t.Errorf("BP rms far from center = %v, want attenuated", rms)
	}
}

func TestFilterOffBypasses(t *testing.T) {
	var f svf
	f.setCoefficients(1000, 0.7, 48000)
	for i := 0; i < 100; i++ {
		in := math.Sin(float64(i) / 7)
		l, r := f.process(in, -in, FilterOff)
		if l != in || r != -in {
			t.Fatalf("bypass altered sample %d: %v, %v", i, l, r)
		}
	}
}

func TestFilterClampsAboveNyquist(t *testing.T) {
	var f svf
	f.setCoefficients(30000, 0.7, 48000)
	for i := 0; i < 1000; i++ {
		in := math.Sin(2 * math.Pi * 440 * float64(i) / 48000)
		l, _ := f.process(in, in, FilterLP)
		if math.IsNaN(l) || math.IsInf(l, 0) {
			t.Fatalf("sample %d not finite with clamped cutoff: %v", i, l)
		}
	}
}

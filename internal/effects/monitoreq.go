package effects

import (
	"math"
	"sync/atomic"
)

// MonitorEQ is a 3-band tone control for the standalone player's monitor
// path. Bands split at 250 Hz and 4 kHz. Gains are stored as float32 bit
// patterns in atomics so a UI thread can adjust them while audio runs.
type MonitorEQ struct {
	gains  [3]atomic.Uint32 // float32 bit patterns; 1.0 = unity
	alphas [2]float32
	lpL    [2]float32
	lpR    [2]float32
}

var monitorCrossovers = [2]float64{250, 4000}

// NewMonitorEQ creates the EQ with every band at unity.
func NewMonitorEQ(sampleRate int) *MonitorEQ {
	eq := &MonitorEQ{}
	dt := 1.0 / float64(sampleRate)
	for i, freq := range monitorCrossovers {
		rc := 1.0 / (2.0 * math.Pi * freq)
		eq.alphas[i] = float32(dt / (rc + dt))
	}
	for i := range eq.gains {
		eq.gains[i].Store(math.Float32bits(1.0))
	}
	return eq
}

// SetGain sets the gain for band (0=low, 1=mid, 2=high). 1.0 is unity,
// 0.0 silence, 2.0 about +6dB.
func (eq *MonitorEQ) SetGain(band int, gain float32) {
	if band >= 0 && band < len(eq.gains) {
		eq.gains[band].Store(math.Float32bits(gain))
	}
}

// Gain returns the current gain for band.
func (eq *MonitorEQ) Gain(band int) float32 {
	if band >= 0 && band < len(eq.gains) {
		return math.Float32frombits(eq.gains[band].Load())
	}
	return 1.0
}

func (eq *MonitorEQ) Process(l, r float32) (float32, float32) {
	// Split into 3 bands with 2 cascaded one-pole crossovers; at unity the
	// bands sum back to the input.
	var bandL, bandR [3]float32
	remL, remR := l, r
	for i := 0; i < 2; i++ {
		eq.lpL[i] += eq.alphas[i] * (remL - eq.lpL[i])
		eq.lpR[i] += eq.alphas[i] * (remR - eq.lpR[i])
		bandL[i] = eq.lpL[i]
		bandR[i] = eq.lpR[i]
		remL -= bandL[i]
		remR -= bandR[i]
	}
	bandL[2] = remL
	bandR[2] = remR

	var outL, outR float32
	for i := 0; i < 3; i++ {
		g := math.Float32frombits(eq.gains[i].Load())
		outL += bandL[i] * g
		outR += bandR[i] * g
	}
	return outL, outR
}

func (eq *MonitorEQ) Reset() {
	for i := range eq.lpL {
		eq.lpL[i] = 0
		eq.lpR[i] = 0
	}
}

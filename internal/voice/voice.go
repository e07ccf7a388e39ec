// Package voice implements the synth's sound source: a fixed pool of
// polyphonic voices, each a detuned saw unison bank through an amp envelope
// and a state-variable filter. Everything here runs on the audio thread and
// must not lock, allocate, or block.
package voice

import (
	"math"

	"github.com/cwbudde/algo-approx"

	"github.com/cbegin/polysaw-go/internal/param"
)

const (
	// MaxVoices is the fixed pool capacity.
	MaxVoices = 64
	// MaxUnison bounds the saw lanes inside one voice.
	MaxUnison = 7
)

// Wildcard in an ID query field matches any value.
const Wildcard int32 = -1

// Filter modes, in the order the filterMode parameter counts them.
const (
	FilterLP = iota
	FilterHP
	FilterBP
	FilterNotch
	FilterOff
)

// ID identifies one sounding note the way the host addresses it. Exactly one
// active voice owns a given identity at a time.
type ID struct {
	Port    int32
	Channel int32
	Key     int32
	NoteID  int32
}

// Match reports whether the identity satisfies query q. Query fields equal
// to Wildcard match anything.
func (v ID) Match(q ID) bool {
	return (q.Port == Wildcard || q.Port == v.Port) &&
		(q.Channel == Wildcard || q.Channel == v.Channel) &&
		(q.Key == Wildcard || q.Key == v.Key) &&
		(q.NoteID == Wildcard || q.NoteID == v.NoteID)
}

type envStage uint8

const (
	envOff envStage = iota
	envAttack
	envSustain
	envRelease
)

// gateRampSeconds is the fixed anti-click ramp used when ampIsGate is on.
const gateRampSeconds = 0.001

type voice struct {
	id     ID
	active bool
	age    uint64

	sampleRate float64
	velocity   float64

	// saw unison bank, lane layout fixed at note start
	unison  int
	spread  float64
	phase   [MaxUnison]float64
	step    [MaxUnison]float64
	lanePos [MaxUnison]float64
	gainL   [MaxUnison]float64
	gainR   [MaxUnison]float64

	stage       envStage
	env         float64
	attackStep  float64
	releaseStep float64

	// live parameter copies, refreshed by applyParams
	baseFreq  float64
	detune    float64
	cutoff    float64
	resonance float64
	vca       float64
	mode      int

	// per-note modulation offsets on top of the table values
	modDetune float64
	modCutoff float64
	modRes    float64
	modVCA    float64

	vcaEff float64
	filter svf
}

// start resets the voice wholesale for a fresh note. Unison count and spread
// are captured here; later parameter pushes leave the lane layout alone.
func (v *voice) start(id ID, velocity float64, age uint64, sampleRate float64, p *param.Table) {
	*v = voice{
		id:         id,
		active:     true,
		age:        age,
		sampleRate: sampleRate,
		velocity:   velocity,
		stage:      envAttack,
		baseFreq:   keyToFreq(float64(id.Key)),
		spread:     p.Get(param.IdxUnisonSpread),
	}

	n := int(p.Get(param.IdxUnisonCount) + 0.5)
	if n < 1 {
		n = 1
	}
	if n > MaxUnison {
		n = MaxUnison
	}
	v.unison = n

	laneGain := 1 / math.Sqrt(float64(n))
	for i := 0; i < n; i++ {
		pos := 0.0
		if n > 1 {
			pos = -1 + 2*float64(i)/float64(n-1)
		}
		v.lanePos[i] = pos
		v.phase[i] = float64(i) / float64(n)
		angle := (pos + 1) * (math.Pi / 4)
		v.gainL[i] = laneGain * math.Cos(angle)
		v.gainR[i] = laneGain * math.Sin(angle)
	}

	v.applyParams(p)
}

// applyParams refreshes the voice's live copies of the table values. Called
// at note start and again whenever the router writes a parameter, so already
// sounding notes follow cutoff, resonance, mode, VCA and detune edits.
func (v *voice) applyParams(p *param.Table) {
	v.detune = p.Get(param.IdxOscDetune)
	v.cutoff = p.Get(param.IdxCutoff)
	v.resonance = p.Get(param.IdxResonance)
	v.vca = p.Get(param.IdxPreFilterVCA)
	v.mode = int(p.Get(param.IdxFilterMode) + 0.5)

	attack := param.ScaleTimeParamToSeconds(p.Get(param.IdxAmpAttack))
	release := param.ScaleTimeParamToSeconds(p.Get(param.IdxAmpRelease))
	if p.Get(param.IdxAmpIsGate) > 0.5 {
		attack, release = gateRampSeconds, gateRampSeconds
	}
	v.attackStep = envStep(attack, v.sampleRate)
	v.releaseStep = envStep(release, v.sampleRate)

	v.refreshOsc()
	v.refreshFilter()
	v.refreshVCA()
}

// modulate installs a per-note additive offset for one parameter. Offsets
// are absolute: the router sends the current modulation amount, not a delta.
func (v *voice) modulate(idx param.Index, offset float64) {
	switch idx {
	case param.IdxOscDetune:
		v.modDetune = offset
		v.refreshOsc()
	case param.IdxCutoff:
		v.modCutoff = offset
		v.refreshFilter()
	case param.IdxResonance:
		v.modRes = offset
		v.refreshFilter()
	case param.IdxPreFilterVCA:
		v.modVCA = offset
		v.refreshVCA()
	}
}

func (v *voice) refreshOsc() {
	total := v.detune + v.modDetune
	for i := 0; i < v.unison; i++ {
		f := v.baseFreq * centsToRatio(total+v.spread*v.lanePos[i])
		v.step[i] = f / v.sampleRate
	}
}

func (v *voice) refreshFilter() {
	semis := clamp(v.cutoff+v.modCutoff, 1, 127)
	res := clamp(v.resonance+v.modRes, 0, 1)
	v.filter.setCoefficients(keyToFreq(semis), res, v.sampleRate)
}

func (v *voice) refreshVCA() {
	v.vcaEff = clamp(v.vca+v.modVCA, 0, 1)
}

// release moves the envelope into its release ramp from the current level.
func (v *voice) release() {
	if v.stage == envAttack || v.stage == envSustain {
		v.stage = envRelease
	}
}

// renderSample produces one stereo sample and advances the voice. After the
// release ramp reaches zero the stage is envOff and the caller retires the
// voice.
func (v *voice) renderSample() (float64, float64) {
	switch v.stage {
	case envAttack:
		v.env += v.attackStep
		if v.env >= 1 {
			v.env = 1
			v.stage = envSustain
		}
	case envRelease:
		v.env -= v.releaseStep
		if v.env <= 0 {
			v.env = 0
			v.stage = envOff
			return 0, 0
		}
	case envOff:
		return 0, 0
	}

	var l, r float64
	for i := 0; i < v.unison; i++ {
		s := 2*v.phase[i] - 1
		v.phase[i] += v.step[i]
		if v.phase[i] >= 1 {
			v.phase[i] -= 1
		}
		l += s * v.gainL[i]
		r += s * v.gainR[i]
	}

	gain := v.env * v.velocity * v.vcaEff
	l *= gain
	r *= gain
	return v.filter.process(l, r, v.mode)
}

func envStep(seconds, rate float64) float64 {
	n := seconds * rate
	if n < 1 {
		n = 1
	}
	return 1 / n
}

const ln2 = 0.69314718055994530942

func pow2(x float64) float64 {
	return float64(approx.FastExp(float32(x) * ln2))
}

// keyToFreq converts a MIDI key (fractional allowed) to Hz in equal
// temperament.
func keyToFreq(key float64) float64 {
	return 440 * pow2((key-69)/12)
}

func centsToRatio(cents float64) float64 {
	return pow2(cents / 1200)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

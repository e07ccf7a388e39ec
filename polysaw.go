// Package polysaw is the real-time core of a polyphonic subtractive
// synthesizer: a fixed pool of saw-unison voices, each with its own amp
// envelope and state-variable filter, a sample-accurate block processor, and
// a lock-free bridge to an editor thread. The core renders one stereo output
// and leaves mixing, device io and GUI to whoever hosts it; Player wires
// those up for standalone use.
package polysaw

import (
	"github.com/cbegin/polysaw-go/internal/bridge"
	"github.com/cbegin/polysaw-go/internal/param"
	"github.com/cbegin/polysaw-go/internal/voice"
)

// MaxVoices is the fixed polyphony of a Synth.
const MaxVoices = voice.MaxVoices

// Wildcard marks an identity field that matches anything where matching
// applies (NoteOff and ParamMod targeting).
const Wildcard = voice.Wildcard

// Stable parameter ids. They survive in saved state and host automation
// lanes, so they never change.
const (
	ParamUnisonCount  = uint32(param.UnisonCount)
	ParamUnisonSpread = uint32(param.UnisonSpread)
	ParamOscDetune    = uint32(param.OscDetune)
	ParamAmpAttack    = uint32(param.AmpAttack)
	ParamAmpRelease   = uint32(param.AmpRelease)
	ParamAmpIsGate    = uint32(param.AmpIsGate)
	ParamPreFilterVCA = uint32(param.PreFilterVCA)
	ParamCutoff       = uint32(param.Cutoff)
	ParamResonance    = uint32(param.Resonance)
	ParamFilterMode   = uint32(param.FilterMode)
)

// Filter modes, as the filterMode parameter counts them.
const (
	FilterModeLP    = voice.FilterLP
	FilterModeHP    = voice.FilterHP
	FilterModeBP    = voice.FilterBP
	FilterModeNotch = voice.FilterNotch
	FilterModeOff   = voice.FilterOff
)

// ParamInfo describes one parameter for hosts and editors.
type ParamInfo struct {
	ID      uint32
	Name    string
	Min     float64
	Max     float64
	Default float64
	Unit    string
	Stepped bool
}

func infoFor(d param.Descriptor) ParamInfo {
	return ParamInfo{
		ID:      uint32(d.ID),
		Name:    d.Name,
		Min:     d.Min,
		Max:     d.Max,
		Default: d.Default,
		Unit:    d.Unit,
		Stepped: d.Stepped,
	}
}

// Params lists every parameter in stable order.
func Params() []ParamInfo {
	ids := param.IDs()
	out := make([]ParamInfo, 0, len(ids))
	for _, id := range ids {
		d, _ := param.Describe(id)
		out = append(out, infoFor(d))
	}
	return out
}

// DescribeParam returns the descriptor for a stable id. ok is false for
// unknown ids, and the zero ParamInfo means "no such parameter".
func DescribeParam(id uint32) (ParamInfo, bool) {
	d, ok := param.Describe(param.ID(id))
	if !ok {
		return ParamInfo{}, false
	}
	return infoFor(d), true
}

// FormatParam renders a parameter value the way an editor should display it.
// Unknown ids format as the empty string.
func FormatParam(id uint32, v float64) string {
	d, ok := param.Describe(param.ID(id))
	if !ok {
		return ""
	}
	return d.Display(v)
}

// ScaleTimeParamToSeconds maps a normalized [0,1] time control onto 0..4
// seconds on the same exponential curve the envelope uses.
func ScaleTimeParamToSeconds(x float64) float64 {
	return param.ScaleTimeParamToSeconds(x)
}

// The editor thread talks to the core through a Comms bundle: two bounded
// lossy queues plus an atomic status snapshot. Aliased here so hosts outside
// this module can name the types.
type (
	Comms  = bridge.Comms
	ToUI   = bridge.ToUI
	FromUI = bridge.FromUI
	Status = bridge.Status
)

// Message kinds on the bridge queues.
const (
	ToUIParamValue = bridge.ToUIParamValue
	ToUINoteOn     = bridge.ToUINoteOn
	ToUINoteOff    = bridge.ToUINoteOff

	FromUIBeginEdit   = bridge.FromUIBeginEdit
	FromUIEndEdit     = bridge.FromUIEndEdit
	FromUIAdjustValue = bridge.FromUIAdjustValue
)

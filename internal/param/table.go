// Package param defines the synth's parameter set: stable identifiers,
// descriptors, and the dense value table the audio thread reads every block.
package param

import (
	"fmt"
	"math"
)

// ID is a stable parameter identifier. Values are arbitrary, never reused
// across parameter roles, and survive in saved state, so they must not change.
type ID uint32

const (
	UnisonCount  ID = 1378
	UnisonSpread ID = 2391
	OscDetune    ID = 8675309
	AmpAttack    ID = 2874
	AmpRelease   ID = 728
	AmpIsGate    ID = 1942
	PreFilterVCA ID = 87612
	Cutoff       ID = 17
	Resonance    ID = 94
	FilterMode   ID = 14255
)

// Index is the dense storage slot behind an ID. The ID space is sparse;
// the audio thread resolves it once and addresses values by Index only.
type Index int

const (
	IdxUnisonCount Index = iota
	IdxUnisonSpread
	IdxOscDetune
	IdxAmpAttack
	IdxAmpRelease
	IdxAmpIsGate
	IdxPreFilterVCA
	IdxCutoff
	IdxResonance
	IdxFilterMode

	NumParams
)

// IndexOf resolves a stable ID to its storage Index.
func IndexOf(id ID) (Index, bool) {
	switch id {
	case UnisonCount:
		return IdxUnisonCount, true
	case UnisonSpread:
		return IdxUnisonSpread, true
	case OscDetune:
		return IdxOscDetune, true
	case AmpAttack:
		return IdxAmpAttack, true
	case AmpRelease:
		return IdxAmpRelease, true
	case AmpIsGate:
		return IdxAmpIsGate, true
	case PreFilterVCA:
		return IdxPreFilterVCA, true
	case Cutoff:
		return IdxCutoff, true
	case Resonance:
		return IdxResonance, true
	case FilterMode:
		return IdxFilterMode, true
	}
	return 0, false
}

var ids = [NumParams]ID{
	IdxUnisonCount:  UnisonCount,
	IdxUnisonSpread: UnisonSpread,
	IdxOscDetune:    OscDetune,
	IdxAmpAttack:    AmpAttack,
	IdxAmpRelease:   AmpRelease,
	IdxAmpIsGate:    AmpIsGate,
	IdxPreFilterVCA: PreFilterVCA,
	IdxCutoff:       Cutoff,
	IdxResonance:    Resonance,
	IdxFilterMode:   FilterMode,
}

// IDs returns all parameter IDs in storage order.
func IDs() []ID { return ids[:] }

// Descriptor describes one parameter for hosts and editors.
type Descriptor struct {
	ID      ID
	Name    string
	Min     float64
	Max     float64
	Default float64
	Unit    string
	Stepped bool
}

var descriptors = [NumParams]Descriptor{
	IdxUnisonCount:  {ID: UnisonCount, Name: "Unison Count", Min: 1, Max: 7, Default: 3, Unit: "voices", Stepped: true},
	IdxUnisonSpread: {ID: UnisonSpread, Name: "Unison Spread", Min: 0, Max: 100, Default: 10, Unit: "cents"},
	IdxOscDetune:    {ID: OscDetune, Name: "Osc Detune", Min: -200, Max: 200, Default: 0, Unit: "cents"},
	IdxAmpAttack:    {ID: AmpAttack, Name: "Amp Attack", Min: 0, Max: 1, Default: 0.01, Unit: "s"},
	IdxAmpRelease:   {ID: AmpRelease, Name: "Amp Release", Min: 0, Max: 1, Default: 0.2, Unit: "s"},
	IdxAmpIsGate:    {ID: AmpIsGate, Name: "Amp Gate", Min: 0, Max: 1, Default: 0, Stepped: true},
	IdxPreFilterVCA: {ID: PreFilterVCA, Name: "Pre-Filter VCA", Min: 0, Max: 1, Default: 1},
	IdxCutoff:       {ID: Cutoff, Name: "Cutoff", Min: 1, Max: 127, Default: 69, Unit: "semitones"},
	IdxResonance:    {ID: Resonance, Name: "Resonance", Min: 0, Max: 1, Default: 0.7},
	IdxFilterMode:   {ID: FilterMode, Name: "Filter Mode", Min: 0, Max: 4, Default: 0, Stepped: true},
}

var filterModeNames = [...]string{"LP", "HP", "BP", "Notch", "Off"}

// Describe returns the descriptor for id. ok is false for unknown ids; the
// zero Descriptor means "no such parameter" and callers treat it as a no-op.
func Describe(id ID) (Descriptor, bool) {
	i, ok := IndexOf(id)
	if !ok {
		return Descriptor{}, false
	}
	return descriptors[i], true
}

// Clamp bounds v to the descriptor's range.
func (d Descriptor) Clamp(v float64) float64 {
	if v < d.Min {
		return d.Min
	}
	if v > d.Max {
		return d.Max
	}
	return v
}

// Display formats v the way an editor should show it.
func (d Descriptor) Display(v float64) string {
	switch d.ID {
	case AmpAttack, AmpRelease:
		return fmt.Sprintf("%.2f s", ScaleTimeParamToSeconds(v))
	case AmpIsGate:
		if v > 0.5 {
			return "on"
		}
		return "off"
	case FilterMode:
		m := int(v + 0.5)
		if m < 0 || m >= len(filterModeNames) {
			return "?"
		}
		return filterModeNames[m]
	case UnisonCount:
		return fmt.Sprintf("%d", int(v+0.5))
	case UnisonSpread, OscDetune:
		return fmt.Sprintf("%.1f ct", v)
	case Cutoff:
		return fmt.Sprintf("%.1f st", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

// Table holds the live parameter values in a dense array. Values are written
// only by the audio thread (single writer); the UI learns about changes
// through the bridge, never by reading the table.
type Table struct {
	values [NumParams]float64
}

// NewTable returns a table initialized to every parameter's default.
func NewTable() *Table {
	t := &Table{}
	for i := Index(0); i < NumParams; i++ {
		t.values[i] = descriptors[i].Default
	}
	return t
}

// Get returns the value stored at index i.
func (t *Table) Get(i Index) float64 { return t.values[i] }

// Set stores v at index i, clamped to the parameter's range.
func (t *Table) Set(i Index, v float64) {
	t.values[i] = descriptors[i].Clamp(v)
}

// Value returns the value for a stable ID.
func (t *Table) Value(id ID) (float64, bool) {
	i, ok := IndexOf(id)
	if !ok {
		return 0, false
	}
	return t.values[i], true
}

// SetValue stores v for a stable ID, clamped. Unknown ids report false and
// change nothing.
func (t *Table) SetValue(id ID, v float64) bool {
	i, ok := IndexOf(id)
	if !ok {
		return false
	}
	t.Set(i, v)
	return true
}

// ScaleTimeParamToSeconds maps a normalized [0,1] control value onto 0..4
// seconds with an exponential curve, so small knob movements near zero keep
// fine resolution.
func ScaleTimeParamToSeconds(x float64) float64 {
	if x < 0 {
		x = 0
	}
	if x > 1 {
		x = 1
	}
	return (math.Exp2(2*x) - 1) * 4 / 3
}

package polysaw

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cbegin/polysaw-go/internal/bridge"
	"github.com/cbegin/polysaw-go/internal/param"
)

// State blob layout, all little endian: "PSAW", uint16 version, uint16 entry
// count, then per entry uint32 parameter id + float64 bits. Flat on purpose;
// hosts wrap it in whatever container they use.
var stateMagic = [4]byte{'P', 'S', 'A', 'W'}

const (
	stateVersion    = 1
	stateHeaderSize = 8
	stateEntrySize  = 12
)

// ErrBadState reports a state blob the synth cannot use. When StateLoad
// fails, every parameter keeps its prior value.
var ErrBadState = errors.New("polysaw: bad state blob")

// StateSave serializes every parameter value. Host-side call; it allocates.
func (s *Synth) StateSave() []byte {
	ids := param.IDs()
	buf := make([]byte, 0, stateHeaderSize+stateEntrySize*len(ids))
	buf = append(buf, stateMagic[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, stateVersion)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(ids)))
	for _, id := range ids {
		v, _ := s.params.Value(id)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(id))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	return buf
}

// StateLoad restores parameter values from a StateSave blob. The blob is
// validated in full before anything is written, so a malformed blob changes
// nothing and returns an error wrapping ErrBadState.
func (s *Synth) StateLoad(blob []byte) error {
	if len(blob) < stateHeaderSize {
		return fmt.Errorf("%w: truncated header (%d bytes)", ErrBadState, len(blob))
	}
	if [4]byte(blob[:4]) != stateMagic {
		return fmt.Errorf("%w: wrong magic", ErrBadState)
	}
	if v := binary.LittleEndian.Uint16(blob[4:]); v != stateVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrBadState, v)
	}
	count := int(binary.LittleEndian.Uint16(blob[6:]))
	if len(blob) != stateHeaderSize+stateEntrySize*count {
		return fmt.Errorf("%w: length %d does not match %d entries", ErrBadState, len(blob), count)
	}

	var seen [param.NumParams]bool
	for i := 0; i < count; i++ {
		off := stateHeaderSize + stateEntrySize*i
		id := param.ID(binary.LittleEndian.Uint32(blob[off:]))
		idx, ok := param.IndexOf(id)
		if !ok {
			return fmt.Errorf("%w: unknown parameter id %d", ErrBadState, id)
		}
		if seen[idx] {
			return fmt.Errorf("%w: duplicate parameter id %d", ErrBadState, id)
		}
		seen[idx] = true
		v := math.Float64frombits(binary.LittleEndian.Uint64(blob[off+4:]))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: parameter %d value not finite", ErrBadState, id)
		}
	}

	for i := 0; i < count; i++ {
		off := stateHeaderSize + stateEntrySize*i
		id := param.ID(binary.LittleEndian.Uint32(blob[off:]))
		v := math.Float64frombits(binary.LittleEndian.Uint64(blob[off+4:]))
		s.params.SetValue(id, v)
	}
	s.paramsDirty = true

	// let an attached editor resync
	for _, id := range param.IDs() {
		v, _ := s.params.Value(id)
		s.comms.PushToUI(bridge.ToUI{Kind: bridge.ToUIParamValue, ID: uint32(id), Value: v})
	}
	return nil
}

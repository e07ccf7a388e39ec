package polysaw

import (
	"fmt"

	"github.com/cbegin/polysaw-go/internal/bridge"
	"github.com/cbegin/polysaw-go/internal/param"
	"github.com/cbegin/polysaw-go/internal/voice"
)

// hostEventCap bounds the outbound event buffer for one block. Overflow
// drops events instead of growing the buffer on the audio thread.
const hostEventCap = 1024

// Synth is the block-processing core. One audio thread calls Activate and
// then Process or Flush; one editor thread talks through Comms. Nothing in
// Process locks, blocks or allocates.
type Synth struct {
	params *param.Table
	pool   *voice.Pool
	comms  *bridge.Comms

	sampleRate  float64
	minFrames   int
	maxFrames   int
	activated   bool
	paramsDirty bool

	outEvents []HostEvent
}

// New constructs a synth with default parameter values and a full voice
// pool. All allocation happens here.
func New() *Synth {
	return &Synth{
		params:    param.NewTable(),
		pool:      voice.NewPool(),
		comms:     bridge.NewComms(),
		outEvents: make([]HostEvent, 0, hostEventCap),
	}
}

// Activate prepares the synth to render at sampleRate with block lengths in
// [minFrames, maxFrames] frames. It silences every voice, so hosts call it
// on configuration changes, never per block.
func (s *Synth) Activate(sampleRate float64, minFrames, maxFrames int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("polysaw: invalid sample rate %v", sampleRate)
	}
	if minFrames < 1 || maxFrames < minFrames {
		return fmt.Errorf("polysaw: invalid frame bounds [%d, %d]", minFrames, maxFrames)
	}
	s.sampleRate = sampleRate
	s.minFrames = minFrames
	s.maxFrames = maxFrames
	s.activated = true
	s.pool.Activate(sampleRate)
	return nil
}

// SampleRate reports the rate stamped by the last Activate, 0 before it.
func (s *Synth) SampleRate() float64 { return s.sampleRate }

// Comms returns the bridge endpoint for the editor thread.
func (s *Synth) Comms() *Comms { return s.comms }

// ParamValue returns the current value of a parameter, or false for an
// unknown id.
func (s *Synth) ParamValue(id uint32) (float64, bool) {
	return s.params.Value(param.ID(id))
}

// ActiveVoices reports how many voices are sounding.
func (s *Synth) ActiveVoices() int { return s.pool.ActiveCount() }

// VoiceInfo advertises the polyphony capability: fixed capacity, usable
// count, and whether several voices may overlap on one key.
func (s *Synth) VoiceInfo() (capacity, count int, overlapping bool) {
	return s.pool.Capacity(), s.pool.Capacity(), true
}

// StartProcessing marks the audio thread live. Hosts call it before the
// first Process of a run.
func (s *Synth) StartProcessing() { s.comms.SetProcessing(true) }

// StopProcessing marks the audio thread stopped.
func (s *Synth) StopProcessing() { s.comms.SetProcessing(false) }

// Process renders len(out)/2 interleaved stereo frames and returns the
// notifications the host must see: note ends and editor edits to record.
// The returned slice aliases an internal buffer valid until the next Process
// or Flush call.
//
// Inside one block the order is fixed: queued editor edits apply first, then
// host events at their frame offsets while audio renders between them, then
// finished voices report, then the status snapshot publishes.
func (s *Synth) Process(events []Event, out []float32) []HostEvent {
	s.outEvents = s.outEvents[:0]
	s.drainUI()

	frames := len(out) / 2
	if !s.activated || frames == 0 {
		for i := range out {
			out[i] = 0
		}
		for _, ev := range events {
			s.apply(ev)
		}
		s.collectNoteEnds()
		s.comms.PublishBlock(s.pool.ActiveCount())
		return s.outEvents
	}

	done := 0
	for _, ev := range events {
		f := ev.Frame
		if f < done {
			f = done
		}
		if f > frames {
			f = frames
		}
		if f > done {
			s.flushParams()
			s.pool.Render(out[2*done : 2*f])
			done = f
		}
		s.apply(ev)
	}
	if done < frames {
		s.flushParams()
		s.pool.Render(out[2*done : 2*frames])
	}

	s.collectNoteEnds()
	s.comms.PublishBlock(s.pool.ActiveCount())
	return s.outEvents
}

// Flush handles events without rendering audio, for hosts that settle
// parameter state while the transport is suspended. The returned slice
// aliases the same internal buffer as Process.
func (s *Synth) Flush(events []Event) []HostEvent {
	s.outEvents = s.outEvents[:0]
	s.drainUI()
	for _, ev := range events {
		s.apply(ev)
	}
	s.collectNoteEnds()
	return s.outEvents
}

// drainUI applies queued editor messages. They land before any host event
// in the block, so an edit and a host write to the same parameter resolve
// host-last.
func (s *Synth) drainUI() {
	if s.comms.TakeRefresh() {
		for _, id := range param.IDs() {
			v, _ := s.params.Value(id)
			s.comms.PushToUI(bridge.ToUI{Kind: bridge.ToUIParamValue, ID: uint32(id), Value: v})
		}
	}
	for {
		m, ok := s.comms.PopFromUI()
		if !ok {
			return
		}
		switch m.Kind {
		case bridge.FromUIAdjustValue:
			s.setParam(param.ID(m.ID), m.Value, true)
		case bridge.FromUIBeginEdit:
			s.appendHostEvent(HostEvent{Kind: HostParamGestureBegin, Param: m.ID})
		case bridge.FromUIEndEdit:
			s.appendHostEvent(HostEvent{Kind: HostParamGestureEnd, Param: m.ID})
		}
	}
}

func (s *Synth) apply(ev Event) {
	switch ev.Kind {
	case EventNoteOn:
		s.pool.NoteOn(voice.ID(ev.Note), ev.Velocity, s.params)
		s.comms.PushToUI(bridge.ToUI{Kind: bridge.ToUINoteOn, ID: uint32(ev.Note.Key), Value: ev.Velocity})
	case EventNoteOff:
		s.pool.NoteOff(voice.ID(ev.Note))
		s.comms.PushToUI(bridge.ToUI{Kind: bridge.ToUINoteOff, ID: uint32(ev.Note.Key)})
	case EventParamValue:
		s.setParam(param.ID(ev.Param), ev.Value, false)
	case EventParamMod:
		s.pool.Modulate(voice.ID(ev.Note), param.ID(ev.Param), ev.Value)
	}
}

// setParam writes one parameter. Editor writes go back out as host events so
// automation records them; host writes notify the editor instead. Unknown
// ids are no-ops.
func (s *Synth) setParam(id param.ID, v float64, fromUI bool) {
	if !s.params.SetValue(id, v) {
		return
	}
	s.paramsDirty = true
	clamped, _ := s.params.Value(id)
	if fromUI {
		s.appendHostEvent(HostEvent{Kind: HostParamValue, Param: uint32(id), Value: clamped})
	} else {
		s.comms.PushToUI(bridge.ToUI{Kind: bridge.ToUIParamValue, ID: uint32(id), Value: clamped})
	}
}

// flushParams pushes pending table writes into sounding voices once per
// render segment instead of once per write.
func (s *Synth) flushParams() {
	if s.paramsDirty {
		s.pool.PushParams(s.params)
		s.paramsDirty = false
	}
}

func (s *Synth) collectNoteEnds() {
	for _, id := range s.pool.Terminated() {
		s.appendHostEvent(HostEvent{Kind: HostNoteEnd, Note: VoiceID(id)})
		s.comms.PushToUI(bridge.ToUI{Kind: bridge.ToUINoteOff, ID: uint32(id.Key)})
	}
	s.pool.ClearTerminated()
}

func (s *Synth) appendHostEvent(ev HostEvent) {
	if len(s.outEvents) == cap(s.outEvents) {
		return
	}
	s.outEvents = append(s.outEvents, ev)
}

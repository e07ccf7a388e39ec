package polysaw

// VoiceID identifies one note the way hosts address it: port, channel, key
// and the host's note id. Exactly one active voice owns an identity at a
// time. Fields set to Wildcard match anything where matching applies.
type VoiceID struct {
	Port    int32
	Channel int32
	Key     int32
	NoteID  int32
}

// AnyVoice matches every sounding voice.
var AnyVoice = VoiceID{Port: Wildcard, Channel: Wildcard, Key: Wildcard, NoteID: Wildcard}

// EventKind tags host events feeding Process.
type EventKind uint8

const (
	EventNoteOn EventKind = iota
	EventNoteOff
	EventParamValue
	EventParamMod
)

// Event is one host event inside a block. Frame is the sample offset from
// the block start at which the event takes effect; Process expects events
// ordered by Frame.
type Event struct {
	Kind     EventKind
	Frame    int
	Note     VoiceID
	Velocity float64
	Param    uint32
	Value    float64
}

// NoteOnEvent builds a note start.
func NoteOnEvent(frame int, id VoiceID, velocity float64) Event {
	return Event{Kind: EventNoteOn, Frame: frame, Note: id, Velocity: velocity}
}

// NoteOffEvent builds a note release. Wildcard fields in id release every
// matching voice.
func NoteOffEvent(frame int, id VoiceID) Event {
	return Event{Kind: EventNoteOff, Frame: frame, Note: id}
}

// ParamValueEvent builds a parameter write in the parameter's native range.
func ParamValueEvent(frame int, id uint32, value float64) Event {
	return Event{Kind: EventParamValue, Frame: frame, Param: id, Value: value}
}

// ParamModEvent builds a per-note modulation offset applied to voices
// matching target, on top of the table value.
func ParamModEvent(frame int, target VoiceID, id uint32, offset float64) Event {
	return Event{Kind: EventParamMod, Frame: frame, Note: target, Param: id, Value: offset}
}

// HostEventKind tags notifications the core returns from Process and Flush.
type HostEventKind uint8

const (
	// HostNoteEnd reports a voice that finished or was stolen; Note is set.
	HostNoteEnd HostEventKind = iota
	// HostParamValue reports an editor edit the host should record; Param
	// and Value are set.
	HostParamValue
	// HostParamGestureBegin and HostParamGestureEnd bracket an editor drag.
	HostParamGestureBegin
	HostParamGestureEnd
)

// HostEvent is one outbound notification produced during a block.
type HostEvent struct {
	Kind  HostEventKind
	Note  VoiceID
	Param uint32
	Value float64
}

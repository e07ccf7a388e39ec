package bridge

import "sync/atomic"

// QueueCap is the capacity of each direction's message ring.
const QueueCap = 4096

// ToUIKind tags messages flowing from the audio thread to the editor.
type ToUIKind uint8

const (
	ToUIParamValue ToUIKind = iota
	ToUINoteOn
	ToUINoteOff
)

// ToUI is one message for the editor. For note messages ID carries the key
// and Value the velocity.
type ToUI struct {
	Kind  ToUIKind
	ID    uint32
	Value float64
}

// FromUIKind tags messages flowing from the editor to the audio thread.
type FromUIKind uint8

const (
	FromUIBeginEdit FromUIKind = iota
	FromUIEndEdit
	FromUIAdjustValue
)

// FromUI is one message from the editor.
type FromUI struct {
	Kind  FromUIKind
	ID    uint32
	Value float64
}

// Comms is the endpoint pair shared by the audio thread and the editor. The
// audio thread is the only producer on the ToUI ring and the only consumer
// on the FromUI ring; the editor is the reverse. The status fields are
// separate atomics published piecemeal: a reader gets a recent value of each
// field, never a consistent tuple, and that is the contract.
type Comms struct {
	toUI   *Queue[ToUI]
	fromUI *Queue[FromUI]

	updateCount  atomic.Uint32
	isProcessing atomic.Bool
	polyphony    atomic.Int32
	refresh      atomic.Bool
}

// NewComms allocates both rings and a zeroed status snapshot.
func NewComms() *Comms {
	return &Comms{
		toUI:   NewQueue[ToUI](QueueCap),
		fromUI: NewQueue[FromUI](QueueCap),
	}
}

// PushToUI queues a message for the editor. Audio thread only. Reports false
// when the ring was full and the message dropped.
func (c *Comms) PushToUI(m ToUI) bool { return c.toUI.Push(m) }

// PopFromUI drains one editor message. Audio thread only.
func (c *Comms) PopFromUI() (FromUI, bool) { return c.fromUI.Pop() }

// PushFromUI queues an editor message for the audio thread. UI thread only.
func (c *Comms) PushFromUI(m FromUI) bool { return c.fromUI.Push(m) }

// PopToUI drains one message on the editor side. UI thread only.
func (c *Comms) PopToUI() (ToUI, bool) { return c.toUI.Pop() }

// BeginEdit, AdjustValue and EndEdit are editor-side shorthand for the usual
// gesture sequence around dragging a control.
func (c *Comms) BeginEdit(id uint32) bool {
	return c.fromUI.Push(FromUI{Kind: FromUIBeginEdit, ID: id})
}

func (c *Comms) AdjustValue(id uint32, v float64) bool {
	return c.fromUI.Push(FromUI{Kind: FromUIAdjustValue, ID: id, Value: v})
}

func (c *Comms) EndEdit(id uint32) bool {
	return c.fromUI.Push(FromUI{Kind: FromUIEndEdit, ID: id})
}

// PublishBlock records the voice count after one rendered block and bumps
// the update counter.
func (c *Comms) PublishBlock(polyphony int) {
	c.polyphony.Store(int32(polyphony))
	c.updateCount.Add(1)
}

// SetProcessing flips the processing flag and bumps the update counter so
// pollers notice the transition.
func (c *Comms) SetProcessing(on bool) {
	c.isProcessing.Store(on)
	c.updateCount.Add(1)
}

// RequestRefresh asks the audio thread to re-broadcast every parameter value
// on its next block. UI thread.
func (c *Comms) RequestRefresh() { c.refresh.Store(true) }

// TakeRefresh consumes a pending refresh request. Audio thread.
func (c *Comms) TakeRefresh() bool { return c.refresh.Swap(false) }

// Status is a point-in-time read of the snapshot fields.
type Status struct {
	UpdateCount uint32
	Processing  bool
	Polyphony   int
}

// Status reads each snapshot field independently.
func (c *Comms) Status() Status {
	return Status{
		UpdateCount: c.updateCount.Load(),
		Processing:  c.isProcessing.Load(),
		Polyphony:   int(c.polyphony.Load()),
	}
}

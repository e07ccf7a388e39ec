// Package effects holds the output conditioning used by the standalone
// player and the demo programs: a DC blocker, a soft limiter and a monitor
// EQ, chained after the synth core. None of this runs inside the core's
// block render; the core hands its raw voice sum to whoever hosts it.
package effects

// Effector processes one stereo sample at a time.
type Effector interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// Chain applies a sequence of effects in order.
type Chain struct {
	effects []Effector
}

func NewChain(effects ...Effector) *Chain {
	return &Chain{effects: effects}
}

func (c *Chain) Process(l, r float32) (float32, float32) {
	for _, e := range c.effects {
		l, r = e.Process(l, r)
	}
	return l, r
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

// Add appends an effect to the end of the chain. Not safe while audio runs.
func (c *Chain) Add(e Effector) {
	c.effects = append(c.effects, e)
}

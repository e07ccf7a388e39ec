package voice

import "github.com/cbegin/polysaw-go/internal/param"

// Pool owns the fixed voice array and decides which voice serves each note.
// All methods run on the audio thread.
type Pool struct {
	voices     [MaxVoices]voice
	sampleRate float64
	clock      uint64

	// identities that finished since the last drain, in completion order
	terminated [2 * MaxVoices]ID
	nterm      int
}

// NewPool returns an inactive pool. Activate must run before any note.
func NewPool() *Pool {
	return &Pool{}
}

// Activate stamps the sample rate into the pool and silences every voice.
// Hosts call it before the first render and again on every rate change.
func (p *Pool) Activate(sampleRate float64) {
	p.sampleRate = sampleRate
	for i := range p.voices {
		p.voices[i] = voice{}
	}
	p.nterm = 0
}

// Capacity reports the fixed voice count.
func (p *Pool) Capacity() int { return MaxVoices }

// ActiveCount reports how many voices are sounding.
func (p *Pool) ActiveCount() int {
	n := 0
	for i := range p.voices {
		if p.voices[i].active {
			n++
		}
	}
	return n
}

// NoteOn starts a voice for id, stealing one when the pool is saturated. A
// stolen voice's identity joins the terminated sequence so the host still
// sees its note end. Starting a note never fails.
func (p *Pool) NoteOn(id ID, velocity float64, params *param.Table) {
	v := p.alloc()
	if v.active {
		p.appendTerminated(v.id)
	}
	p.clock++
	v.start(id, velocity, p.clock, p.sampleRate, params)
}

// alloc picks the voice to carry a new note: a free voice if any, else the
// releasing voice with the lowest remaining envelope level, else the oldest
// active voice. Ties resolve to the lowest index, so allocation is
// deterministic.
func (p *Pool) alloc() *voice {
	for i := range p.voices {
		if !p.voices[i].active {
			return &p.voices[i]
		}
	}
	var steal *voice
	for i := range p.voices {
		v := &p.voices[i]
		if v.stage != envRelease {
			continue
		}
		if steal == nil || v.env < steal.env {
			steal = v
		}
	}
	if steal == nil {
		for i := range p.voices {
			v := &p.voices[i]
			if steal == nil || v.age < steal.age {
				steal = v
			}
		}
	}
	return steal
}

// NoteOff releases every active voice matching query q. Query fields equal
// to Wildcard match anything. No match is a silent no-op.
func (p *Pool) NoteOff(q ID) {
	for i := range p.voices {
		v := &p.voices[i]
		if v.active && v.id.Match(q) {
			v.release()
		}
	}
}

// PushParams refreshes the live parameter copies inside every active voice.
// Unison count and spread stay as captured at note start.
func (p *Pool) PushParams(params *param.Table) {
	for i := range p.voices {
		if v := &p.voices[i]; v.active {
			v.applyParams(params)
		}
	}
}

// Modulate installs a per-note offset for one parameter on every active
// voice matching q. Unknown parameter ids and unmodulatable parameters are
// ignored.
func (p *Pool) Modulate(q ID, id param.ID, offset float64) {
	idx, ok := param.IndexOf(id)
	if !ok {
		return
	}
	for i := range p.voices {
		v := &p.voices[i]
		if v.active && v.id.Match(q) {
			v.modulate(idx, offset)
		}
	}
}

// Render accumulates all active voices into out, an interleaved stereo
// buffer, overwriting its contents. Voices whose release ramp ends here are
// retired and their identities appended to the terminated sequence.
func (p *Pool) Render(out []float32) {
	frames := len(out) / 2
	for f := 0; f < frames; f++ {
		var l, r float64
		for i := range p.voices {
			v := &p.voices[i]
			if !v.active {
				continue
			}
			vl, vr := v.renderSample()
			l += vl
			r += vr
			if v.stage == envOff {
				v.active = false
				p.appendTerminated(v.id)
			}
		}
		out[2*f] = float32(l)
		out[2*f+1] = float32(r)
	}
}

// Terminated returns the identities that finished since the last clear, in
// completion order. The slice aliases pool storage and stays valid until the
// next NoteOn or Render; callers consume it and then ClearTerminated.
func (p *Pool) Terminated() []ID {
	return p.terminated[:p.nterm]
}

// ClearTerminated empties the terminated sequence. Together with Terminated
// this makes each identity observable exactly once.
func (p *Pool) ClearTerminated() {
	p.nterm = 0
}

func (p *Pool) appendTerminated(id ID) {
	// overflow drops; the host misses a note end rather than the audio
	// thread blocking
	if p.nterm == len(p.terminated) {
		return
	}
	p.terminated[p.nterm] = id
	p.nterm++
}

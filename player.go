package polysaw

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"

	intaudio "github.com/cbegin/polysaw-go/internal/audio"
	intfx "github.com/cbegin/polysaw-go/internal/effects"
)

const (
	defaultSampleRate   = 48000
	defaultBlockFrames  = 1024
	defaultMasterVolume = 0.5
	limiterCeiling      = 0.98
	injectBuffer        = 256
	watchBuffer         = 8
)

type PlayerOption func(*playerConfig)

type playerConfig struct {
	blockFrames  int
	masterVolume float64
	sampleTap    func([]float32)
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{
		blockFrames:  defaultBlockFrames,
		masterVolume: defaultMasterVolume,
	}
}

// WithBlockFrames sets the number of stereo frames rendered per block.
func WithBlockFrames(frames int) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.blockFrames = frames
	}
}

// WithMasterVolume sets the initial output gain scalar (0..1).
func WithMasterVolume(volume float64) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.masterVolume = volume
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

// Player hosts a Synth on the system audio device. It owns the audio thread:
// NoteOn, NoteOff, and SetParam enqueue events that the next rendered block
// applies, and Watch exposes the events the synth reports back.
type Player struct {
	mu         sync.Mutex
	synth      *Synth
	sampleRate int
	cfg        playerConfig
	audio      *intaudio.Player
	chain      *intfx.Chain
	monitorEQ  *intfx.MonitorEQ

	events chan Event
	evbuf  []Event

	masterGain atomic.Uint64
	frames     atomic.Int64

	eventCh   chan HostEvent
	eventChMu sync.Mutex
}

// playerSource adapts the player's block renderer to the audio backend's
// SampleSource interface.
type playerSource struct {
	p *Player
}

func (s *playerSource) Process(dst []float32) { s.p.renderBlock(dst) }

// NewPlayer builds a player with an activated synth. The audio device is not
// opened until Start.
func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.blockFrames < 1 {
		return nil, errors.New("blockFrames must be positive")
	}
	synth := New()
	if err := synth.Activate(float64(sampleRate), 1, cfg.blockFrames); err != nil {
		return nil, err
	}
	eq := intfx.NewMonitorEQ(sampleRate)
	p := &Player{
		synth:      synth,
		sampleRate: sampleRate,
		cfg:        cfg,
		monitorEQ:  eq,
		chain: intfx.NewChain(
			intfx.NewDCBlock(sampleRate),
			eq,
			intfx.NewSoftLimit(limiterCeiling),
		),
		events: make(chan Event, injectBuffer),
		evbuf:  make([]Event, 0, injectBuffer),
	}
	p.SetMasterVolume(cfg.masterVolume)
	return p, nil
}

// renderBlock runs on the audio thread. Queued events are handed to the synth
// at the start of the block, outbound events are forwarded to Watch, and the
// monitor chain plus master gain shape whatever the synth produced.
func (p *Player) renderBlock(dst []float32) {
	p.evbuf = p.evbuf[:0]
drain:
	for {
		select {
		case ev := <-p.events:
			p.evbuf = append(p.evbuf, ev)
		default:
			break drain
		}
	}
	for _, ev := range p.synth.Process(p.evbuf, dst) {
		p.sendEvent(ev)
	}
	gain := float32(math.Float64frombits(p.masterGain.Load()))
	for i := 0; i+1 < len(dst); i += 2 {
		dst[i], dst[i+1] = p.chain.Process(dst[i]*gain, dst[i+1]*gain)
	}
	if p.cfg.sampleTap != nil {
		p.cfg.sampleTap(dst)
	}
	p.frames.Add(int64(len(dst) / 2))
}

// Start opens the audio device and begins rendering. Calling Start on a
// running player is a no-op.
func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		return nil
	}
	backend, err := intaudio.NewPlayer(p.sampleRate, p.cfg.blockFrames, &playerSource{p: p})
	if err != nil {
		return err
	}
	p.audio = backend
	p.synth.StartProcessing()
	p.audio.Play()
	return nil
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
	}
}

func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio == nil {
		return nil
	}
	err := p.audio.Stop()
	p.audio = nil
	p.synth.StopProcessing()
	return err
}

// NoteOn starts a note on port 0, channel 0. Safe to call from any goroutine.
func (p *Player) NoteOn(key int32, velocity float64) {
	p.injectEvent(NoteOnEvent(0, VoiceID{Key: key, NoteID: -1}, velocity))
}

// NoteOff releases every sounding voice for the key.
func (p *Player) NoteOff(key int32) {
	p.injectEvent(NoteOffEvent(0, VoiceID{Key: key, NoteID: -1}))
}

// SetParam applies a parameter change at the start of the next block, as if
// the host automated it.
func (p *Player) SetParam(id uint32, value float64) {
	p.injectEvent(ParamValueEvent(0, id, value))
}

func (p *Player) injectEvent(ev Event) {
	select {
	case p.events <- ev:
	default:
		// Queue full; drop the event rather than block the caller
	}
}

func (p *Player) sendEvent(ev HostEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

// Watch returns a channel that receives the synth's outbound events: note
// ends, parameter values echoed from an attached editor, and gesture markers.
//
// The channel is buffered (cap 8); receive in a goroutine to avoid losing
// events. Only the most recent Watch() channel receives events.
func (p *Player) Watch() <-chan HostEvent {
	ch := make(chan HostEvent, watchBuffer)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// SetMasterVolume sets the output gain scalar (0..1).
// This takes effect on the next block (lock-free).
func (p *Player) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	p.masterGain.Store(math.Float64bits(volume))
}

func (p *Player) MasterVolume() float64 {
	return math.Float64frombits(p.masterGain.Load())
}

// SetMonitorGain sets the gain for a monitor EQ band (0-2). 1.0 = unity.
// Band frequencies: 0=<250Hz, 1=250Hz-4kHz, 2=>4kHz.
// This takes effect immediately on the audio thread (lock-free).
func (p *Player) SetMonitorGain(band int, gain float32) {
	p.monitorEQ.SetGain(band, gain)
}

// MonitorGain returns the current gain for a monitor EQ band (0-2).
func (p *Player) MonitorGain(band int) float32 {
	return p.monitorEQ.Gain(band)
}

// Synth exposes the hosted synth for state save/load and the editor bridge.
// Do not call its Process while the player runs; the audio thread owns that.
func (p *Player) Synth() *Synth { return p.synth }

func (p *Player) SampleRate() int { return p.sampleRate }

// PlaybackPosition returns the current output position of the audio driver,
// i.e. what the listener actually hears right now. Returns 0 if not playing.
func (p *Player) PlaybackPosition() int64 {
	p.mu.Lock()
	a := p.audio
	p.mu.Unlock()
	if a == nil {
		return 0
	}
	pos := a.Position()
	return int64(pos.Seconds() * float64(p.sampleRate))
}

// RenderedFrames reports how many stereo frames have been generated so far.
// Unlike PlaybackPosition this counts generation, not playback.
func (p *Player) RenderedFrames() int64 {
	return p.frames.Load()
}

package main

import (
	"flag"
	"fmt"
	"math"
	"math/cmplx"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	algofft "github.com/cwbudde/algo-fft"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/cbegin/polysaw-go"
)

const (
	sampleRate  = 48000
	blockFrames = 512
	tapBufLen   = 8192
	fftSize     = 2048

	frameWidth = 66
	panelWidth = 60 // usable inner width (66 frame - 2 border - 4 padding)
	volBarW    = 22
	paramBarW  = 20
)

// Terminal palette built from standard ANSI colors so the panel follows the
// user's theme.
var (
	colorBorder = lipgloss.ANSIColor(8)
	colorTitle  = lipgloss.ANSIColor(14)
	colorText   = lipgloss.ANSIColor(7)
	colorDim    = lipgloss.ANSIColor(8)
	colorAccent = lipgloss.ANSIColor(11)
	colorLive   = lipgloss.ANSIColor(10)
	colorVolume = lipgloss.ANSIColor(2)

	spectrumLow  = lipgloss.ANSIColor(10)
	spectrumMid  = lipgloss.ANSIColor(11)
	spectrumHigh = lipgloss.ANSIColor(9)
)

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2).
			Width(frameWidth)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorTitle).
			Bold(true)

	textStyle = lipgloss.NewStyle().
			Foreground(colorText)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	liveStyle = lipgloss.NewStyle().
			Foreground(colorLive).
			Bold(true)

	litKeyStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	paramActiveStyle = lipgloss.NewStyle().
				Foreground(colorAccent).
				Bold(true)

	volBarStyle = lipgloss.NewStyle().Foreground(colorVolume)
	helpStyle   = lipgloss.NewStyle().Foreground(colorDim)

	specLowStyle  = lipgloss.NewStyle().Foreground(spectrumLow)
	specMidStyle  = lipgloss.NewStyle().Foreground(spectrumMid)
	specHighStyle = lipgloss.NewStyle().Foreground(spectrumHigh)
)

// Two terminal rows laid out like a piano octave and a half: the home row
// plays naturals, the row above plays sharps.
var keySemitones = map[string]int{
	"a": 0, "w": 1, "s": 2, "e": 3, "d": 4,
	"f": 5, "t": 6, "g": 7, "y": 8, "h": 9, "u": 10, "j": 11,
	"k": 12, "o": 13, "l": 14, "p": 15, ";": 16,
}

type noteMsg struct {
	key int32
	vel float64
	off bool // release every sounding voice
}

type heldNote struct {
	id        polysaw.VoiceID
	remaining int // frames until the gate releases
}

// engine drives the synth from the speaker callback. It implements
// beep.Streamer; note triggers arrive over a channel so the UI goroutine
// never touches the core directly while audio runs.
type engine struct {
	synth      *polysaw.Synth
	notes      chan noteMsg
	evbuf      []polysaw.Event
	block      []float32
	pos        int // frames consumed from block
	held       []heldNote
	gateFrames int
	nextID     int32

	// Written under speaker.Lock, read from the callback.
	volume float64
	ends   int
}

func newEngine(volume float64, gate time.Duration) (*engine, error) {
	s := polysaw.New()
	if err := s.Activate(sampleRate, 1, blockFrames); err != nil {
		return nil, err
	}
	gateFrames := int(gate.Seconds() * sampleRate)
	if gateFrames < 1 {
		gateFrames = 1
	}
	return &engine{
		synth:      s,
		notes:      make(chan noteMsg, 64),
		evbuf:      make([]polysaw.Event, 0, 64),
		block:      make([]float32, 2*blockFrames),
		pos:        blockFrames, // force a refill on the first Stream call
		held:       make([]heldNote, 0, polysaw.MaxVoices),
		gateFrames: gateFrames,
		nextID:     1,
		volume:     math.Max(0, math.Min(1, volume)),
	}, nil
}

// trigger queues a note start; the gate timer releases it later.
func (e *engine) trigger(key int32, vel float64) {
	select {
	case e.notes <- noteMsg{key: key, vel: vel}:
	default:
		// Queue full; drop the note rather than block the UI.
	}
}

// silence releases every sounding voice.
func (e *engine) silence() {
	select {
	case e.notes <- noteMsg{off: true}:
	default:
	}
}

func (e *engine) setVolume(v float64) {
	speaker.Lock()
	e.volume = math.Max(0, math.Min(1, v))
	speaker.Unlock()
}

func (e *engine) volumeLevel() float64 {
	speaker.Lock()
	defer speaker.Unlock()
	return e.volume
}

// noteEnds reports how many voices have finished since startup.
func (e *engine) noteEnds() int {
	speaker.Lock()
	defer speaker.Unlock()
	return e.ends
}

// Stream renders synth blocks into the speaker buffer.
func (e *engine) Stream(samples [][2]float64) (int, bool) {
	for i := range samples {
		if e.pos == blockFrames {
			e.renderBlock()
		}
		samples[i][0] = float64(e.block[2*e.pos]) * e.volume
		samples[i][1] = float64(e.block[2*e.pos+1]) * e.volume
		e.pos++
	}
	return len(samples), true
}

func (e *engine) Err() error { return nil }

func (e *engine) renderBlock() {
	e.evbuf = e.evbuf[:0]

drain:
	for {
		select {
		case m := <-e.notes:
			if m.off {
				e.evbuf = append(e.evbuf, polysaw.NoteOffEvent(0, polysaw.AnyVoice))
				e.held = e.held[:0]
				continue
			}
			id := polysaw.VoiceID{Key: m.key, NoteID: e.nextID}
			e.nextID++
			e.evbuf = append(e.evbuf, polysaw.NoteOnEvent(0, id, m.vel))
			e.held = append(e.held, heldNote{id: id, remaining: e.gateFrames})
		default:
			break drain
		}
	}

	// Release notes whose gate ran out during this block.
	kept := e.held[:0]
	for _, h := range e.held {
		if h.remaining <= blockFrames {
			e.evbuf = append(e.evbuf, polysaw.NoteOffEvent(0, h.id))
			continue
		}
		h.remaining -= blockFrames
		kept = append(kept, h)
	}
	e.held = kept

	for _, ev := range e.synth.Process(e.evbuf, e.block) {
		if ev.Kind == polysaw.HostNoteEnd {
			e.ends++
		}
	}
	e.pos = 0
}

// tap sits between the engine and the speaker and copies a mono mix into a
// ring buffer for the spectrum display.
type tap struct {
	s    beep.Streamer
	mu   sync.Mutex
	buf  []float64
	pos  int
	size int
}

func newTap(s beep.Streamer, size int) *tap {
	return &tap{s: s, buf: make([]float64, size), size: size}
}

func (t *tap) Stream(samples [][2]float64) (int, bool) {
	n, ok := t.s.Stream(samples)
	t.mu.Lock()
	for i := range n {
		t.buf[t.pos] = (samples[i][0] + samples[i][1]) / 2
		t.pos = (t.pos + 1) % t.size
	}
	t.mu.Unlock()
	return n, ok
}

func (t *tap) Err() error { return t.s.Err() }

// samples returns the last n captured samples in chronological order.
func (t *tap) samples(n int) []float64 {
	if n > t.size {
		n = t.size
	}
	out := make([]float64, n)
	t.mu.Lock()
	start := (t.pos - n + t.size) % t.size
	for i := range n {
		out[i] = t.buf[(start+i)%t.size]
	}
	t.mu.Unlock()
	return out
}

const numBands = 10

// Band edges in Hz for the spectrum display.
var bandEdges = [numBands + 1]float64{20, 100, 200, 400, 800, 1600, 3200, 6400, 12800, 16000, 20000}

// Unicode block elements for bar height, lowest to highest.
var barBlocks = []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// analyzer turns tap samples into normalized spectrum band levels.
type analyzer struct {
	prev    [numBands]float64
	sr      float64
	forward func(samples []float64) []complex128
}

func newAnalyzer(sampleRateHz float64) (*analyzer, error) {
	plan, err := algofft.NewPlanReal64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("fft plan: %w", err)
	}
	spec := make([]complex128, fftSize/2+1)
	buf := make([]float64, fftSize)
	hann := make([]float64, fftSize)
	for i := range hann {
		hann[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}
	a := &analyzer{sr: sampleRateHz}
	a.forward = func(samples []float64) []complex128 {
		for i := range buf {
			v := 0.0
			if i < len(samples) {
				v = samples[i]
			}
			buf[i] = v * hann[i]
		}
		plan.Forward(spec, buf)
		return spec
	}
	return a, nil
}

// analyze windows the samples, runs the FFT and averages bin magnitudes per
// band, with fast-attack slow-decay smoothing between frames.
func (a *analyzer) analyze(samples []float64) [numBands]float64 {
	var bands [numBands]float64
	spec := a.forward(samples)
	binHz := a.sr / fftSize

	for b := range numBands {
		lo := int(bandEdges[b] / binHz)
		hi := int(bandEdges[b+1] / binHz)
		if lo < 1 {
			lo = 1
		}
		if hi >= len(spec) {
			hi = len(spec) - 1
		}

		var sum float64
		n := 0
		for i := lo; i <= hi; i++ {
			sum += cmplx.Abs(spec[i])
			n++
		}
		if n > 0 {
			sum /= float64(n)
		}

		if sum > 0 {
			bands[b] = (20*math.Log10(sum) + 10) / 50
		}
		bands[b] = math.Max(0, math.Min(1, bands[b]))

		if bands[b] > a.prev[b] {
			bands[b] = bands[b]*0.6 + a.prev[b]*0.4
		} else {
			bands[b] = bands[b]*0.25 + a.prev[b]*0.75
		}
		a.prev[b] = bands[b]
	}
	return bands
}

func renderBands(bands [numBands]float64) string {
	const barWidth = 5
	var sb strings.Builder
	for i, level := range bands {
		idx := int(level * float64(len(barBlocks)-1))
		idx = max(0, min(idx, len(barBlocks)-1))
		block := barBlocks[idx]

		var style lipgloss.Style
		switch {
		case level > 0.75:
			style = specHighStyle
		case level > 0.45:
			style = specMidStyle
		default:
			style = specLowStyle
		}

		sb.WriteString(style.Render(strings.Repeat(block, barWidth)))
		if i < numBands-1 {
			sb.WriteString(" ")
		}
	}
	return sb.String()
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*50, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type model struct {
	eng      *engine
	comms    *polysaw.Comms
	tap      *tap
	vis      *analyzer
	params   []polysaw.ParamInfo
	paramIdx map[uint32]int
	values   []float64
	cursor   int
	octave   int
	velocity float64
	lit      map[int32]bool
	quitting bool
}

func newModel(eng *engine, t *tap, vis *analyzer, velocity float64) model {
	params := polysaw.Params()
	values := make([]float64, len(params))
	idx := make(map[uint32]int, len(params))
	for i, p := range params {
		values[i] = p.Default
		idx[p.ID] = i
	}
	return model{
		eng:      eng,
		comms:    eng.synth.Comms(),
		tap:      t,
		vis:      vis,
		params:   params,
		paramIdx: idx,
		values:   values,
		octave:   4,
		velocity: velocity,
		lit:      make(map[int32]bool),
	}
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.handleKey(msg)
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		m.drainBridge()
		return m, tickCmd()
	}
	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) {
	key := msg.String()

	if semi, ok := keySemitones[key]; ok {
		midi := int32(12*(m.octave+1) + semi)
		m.eng.trigger(midi, m.velocity)
		return
	}

	switch key {
	case "q", "esc", "ctrl+c":
		m.eng.silence()
		m.quitting = true

	case " ":
		m.eng.silence()

	case "z":
		if m.octave > 1 {
			m.octave--
		}
	case "x":
		if m.octave < 7 {
			m.octave++
		}

	case "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down":
		if m.cursor < len(m.params)-1 {
			m.cursor++
		}

	case "left", "right":
		m.adjustParam(key == "right")

	case "+", "=":
		m.eng.setVolume(m.eng.volumeLevel() + 0.05)
	case "-":
		m.eng.setVolume(m.eng.volumeLevel() - 0.05)
	}
}

// adjustParam nudges the selected parameter and sends the edit as a full
// begin/adjust/end gesture, the way a host records automation.
func (m *model) adjustParam(up bool) {
	p := m.params[m.cursor]
	step := (p.Max - p.Min) / 64
	if p.Stepped {
		step = 1
	}
	if !up {
		step = -step
	}
	v := math.Max(p.Min, math.Min(p.Max, m.values[m.cursor]+step))
	if v == m.values[m.cursor] {
		return
	}
	m.values[m.cursor] = v
	m.comms.BeginEdit(p.ID)
	m.comms.AdjustValue(p.ID, v)
	m.comms.EndEdit(p.ID)
}

// drainBridge applies queued core messages: parameter echoes keep the panel
// honest, note echoes light the keyboard.
func (m *model) drainBridge() {
	for {
		msg, ok := m.comms.PopToUI()
		if !ok {
			return
		}
		switch msg.Kind {
		case polysaw.ToUIParamValue:
			if i, ok := m.paramIdx[msg.ID]; ok {
				m.values[i] = msg.Value
			}
		case polysaw.ToUINoteOn:
			m.lit[int32(msg.ID)] = true
		case polysaw.ToUINoteOff:
			delete(m.lit, int32(msg.ID))
		}
	}
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{
		titleStyle.Render("P O L Y S A W"),
		m.renderStatus(),
		"",
		m.renderSpectrum(),
		m.renderKeyboard(),
		"",
		m.renderVolume(),
		"",
		m.renderParams(),
		"",
		helpStyle.Render("[a-;] play [z/x] oct [↑↓←→] edit [+-] vol [spc] off [q] quit"),
	}
	return frameStyle.Render(strings.Join(sections, "\n"))
}

func (m model) renderStatus() string {
	st := m.comms.Status()
	left := labelStyle.Render(fmt.Sprintf("voices %2d/%d", st.Polyphony, polysaw.MaxVoices)) +
		dimStyle.Render(fmt.Sprintf("   ended %d", m.eng.noteEnds()))

	var state string
	if st.Processing {
		state = liveStyle.Render("● live")
	} else {
		state = dimStyle.Render("○ idle")
	}

	gap := panelWidth - lipgloss.Width(left) - lipgloss.Width(state)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + state
}

func (m model) renderSpectrum() string {
	return renderBands(m.vis.analyze(m.tap.samples(fftSize)))
}

// renderKeyboard draws the two key rows with sounding notes highlighted.
func (m model) renderKeyboard() string {
	k := func(name string) string {
		midi := int32(12*(m.octave+1) + keySemitones[name])
		if m.lit[midi] {
			return litKeyStyle.Render(name)
		}
		return dimStyle.Render(name)
	}
	top := " " + k("w") + " " + k("e") + "   " + k("t") + " " + k("y") + " " + k("u") +
		"   " + k("o") + " " + k("p")
	bottom := k("a") + " " + k("s") + " " + k("d") + " " + k("f") + " " + k("g") + " " +
		k("h") + " " + k("j") + " " + k("k") + " " + k("l") + " " + k(";") +
		dimStyle.Render(fmt.Sprintf("   base C%d", m.octave))
	return top + "\n" + bottom
}

func (m model) renderVolume() string {
	vol := m.eng.volumeLevel()
	filled := int(vol * float64(volBarW))
	bar := volBarStyle.Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", volBarW-filled))
	return labelStyle.Render("VOL ") + bar + dimStyle.Render(fmt.Sprintf(" %3.0f%%", vol*100))
}

func (m model) renderParams() string {
	lines := make([]string, 0, len(m.params))
	for i, p := range m.params {
		frac := 0.0
		if p.Max > p.Min {
			frac = (m.values[i] - p.Min) / (p.Max - p.Min)
		}
		frac = math.Max(0, math.Min(1, frac))
		filled := int(frac*float64(paramBarW) + 0.5)
		bar := volBarStyle.Render(strings.Repeat("█", filled)) +
			dimStyle.Render(strings.Repeat("░", paramBarW-filled))

		name := fmt.Sprintf("%-14s", p.Name)
		val := polysaw.FormatParam(p.ID, m.values[i])
		if i == m.cursor {
			lines = append(lines, paramActiveStyle.Render("▸ "+name)+" "+bar+" "+paramActiveStyle.Render(val))
		} else {
			lines = append(lines, dimStyle.Render("  "+name)+" "+bar+" "+textStyle.Render(val))
		}
	}
	return strings.Join(lines, "\n")
}

func run() error {
	var (
		volume   = flag.Float64("volume", 0.7, "master volume, 0 to 1")
		velocity = flag.Float64("velocity", 0.85, "note velocity, 0 to 1")
		gate     = flag.Duration("gate", 350*time.Millisecond, "how long a triggered note holds before release")
	)
	flag.Parse()

	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return fmt.Errorf("speaker: %w", err)
	}

	eng, err := newEngine(*volume, *gate)
	if err != nil {
		return err
	}
	vis, err := newAnalyzer(sampleRate)
	if err != nil {
		return err
	}

	t := newTap(eng, tapBufLen)
	speaker.Play(t)
	eng.synth.StartProcessing()
	defer func() {
		speaker.Clear()
		eng.synth.StopProcessing()
	}()
	eng.synth.Comms().RequestRefresh()

	prog := tea.NewProgram(newModel(eng, t, vis, *velocity), tea.WithAltScreen())
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

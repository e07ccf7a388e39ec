package main

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"math"
	"math/cmplx"
	"sync"

	"github.com/cbegin/polysaw-go"
	algofft "github.com/cwbudde/algo-fft"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const (
	windowW      = 1040
	windowH      = 660
	uiSampleRate = 48000

	textScale = 2
	charW     = 7 * textScale
	lineH     = 14 * textScale

	fftSize    = 2048
	ringBufLen = 131072
)

var (
	bgColor     = color.RGBA{34, 36, 44, 255}
	panelColor  = color.RGBA{52, 56, 68, 255}
	borderColor = color.RGBA{26, 28, 34, 255}

	bevelLight  = color.RGBA{86, 92, 110, 255}
	bevelDarker = color.RGBA{18, 20, 26, 255}

	sunkenBgColor   = color.RGBA{20, 22, 28, 255}
	sliderFillColor = color.RGBA{66, 130, 200, 255}

	whiteKeyColor   = color.RGBA{214, 214, 206, 255}
	blackKeyColor   = color.RGBA{30, 30, 34, 255}
	activeKeyColor  = color.RGBA{120, 190, 255, 255}
	keyBorderColor  = color.RGBA{12, 12, 14, 255}
	waveColor       = color.RGBA{80, 200, 255, 220}
	scopeBackground = color.RGBA{14, 16, 22, 255}
)

// analyzer mirrors the audio output into a ring buffer so the scope can show
// what the listener hears.
type analyzer struct {
	mu          sync.Mutex
	sampleRate  int
	ring        []float32
	writePos    int
	totalTapped int64
}

func newAnalyzer(sampleRate int) *analyzer {
	return &analyzer{
		sampleRate: sampleRate,
		ring:       make([]float32, ringBufLen),
	}
}

// Tap is called from the audio thread. Keep it minimal: just copy into ring.
func (a *analyzer) Tap(samples []float32) {
	a.mu.Lock()
	for i := 0; i+1 < len(samples); i += 2 {
		mono := (samples[i] + samples[i+1]) * 0.5
		a.ring[a.writePos] = mono
		a.writePos = (a.writePos + 1) % ringBufLen
		a.totalTapped++
	}
	a.mu.Unlock()
}

// Snapshot copies n samples aligned to the audio driver's output position.
func (a *analyzer) Snapshot(n int, playbackPos int64) []float32 {
	if n > ringBufLen {
		n = ringBufLen
	}
	out := make([]float32, n)
	a.mu.Lock()
	delay := int(a.totalTapped - playbackPos)
	if delay < 0 {
		delay = 0
	}
	if delay > ringBufLen-n {
		delay = ringBufLen - n
	}
	start := (a.writePos - delay - n + ringBufLen*2) % ringBufLen
	for i := 0; i < n; i++ {
		out[i] = a.ring[(start+i)%ringBufLen]
	}
	a.mu.Unlock()
	return out
}

// keyBinding maps a computer key to a semitone offset from the base octave.
type keyBinding struct {
	key      ebiten.Key
	semitone int
}

var keyboardMap = []keyBinding{
	{ebiten.KeyA, 0}, {ebiten.KeyW, 1}, {ebiten.KeyS, 2}, {ebiten.KeyE, 3},
	{ebiten.KeyD, 4}, {ebiten.KeyF, 5}, {ebiten.KeyT, 6}, {ebiten.KeyG, 7},
	{ebiten.KeyY, 8}, {ebiten.KeyH, 9}, {ebiten.KeyU, 10}, {ebiten.KeyJ, 11},
	{ebiten.KeyK, 12}, {ebiten.KeyO, 13}, {ebiten.KeyL, 14}, {ebiten.KeyP, 15},
	{ebiten.KeySemicolon, 16},
}

var whiteSemitones = [7]int{0, 2, 4, 5, 7, 9, 11}

// blackAfterWhite[i] is the semitone of the black key right of white key i
// within the octave, or -1 where there is none.
var blackAfterWhite = [7]int{1, 3, -1, 6, 8, 10, -1}

type mixerRow struct {
	label string
	min   float64
	max   float64
}

var mixerRows = []mixerRow{
	{"Volume", 0, 1},
	{"Mon Lo", 0, 2},
	{"Mon Mid", 0, 2},
	{"Mon Hi", 0, 2},
}

type game struct {
	player   *polysaw.Player
	comms    *polysaw.Comms
	events   <-chan polysaw.HostEvent
	analyzer *analyzer

	params []polysaw.ParamInfo
	values []float64

	draggingParam int
	draggingMixer int
	mixer         [4]float64

	baseOctave int
	heldKeys   map[ebiten.Key]int32
	mouseKey   int32
	activeKeys map[int32]bool

	status string

	scopeImg *ebiten.Image
	scopeW   int
	scopeH   int
	specBins []float64
	wavePeak float64

	// fftForward windows the tail of a sample block and fills fftSpec.
	fftForward func(samples []float32)
	fftSpec    []complex128

	textCache map[string]*ebiten.Image
}

func newGame() (*game, error) {
	a := newAnalyzer(uiSampleRate)
	pl, err := polysaw.NewPlayer(uiSampleRate, polysaw.WithSampleTap(a.Tap))
	if err != nil {
		return nil, err
	}

	plan, err := algofft.NewPlanReal64(fftSize)
	if err != nil {
		return nil, err
	}
	hann := make([]float64, fftSize)
	for i := range hann {
		hann[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(fftSize-1))
	}
	spec := make([]complex128, fftSize/2+1)
	buf := make([]float64, fftSize)

	params := polysaw.Params()
	values := make([]float64, len(params))
	for i, p := range params {
		values[i] = p.Default
	}

	g := &game{
		player:        pl,
		comms:         pl.Synth().Comms(),
		events:        pl.Watch(),
		analyzer:      a,
		params:        params,
		values:        values,
		draggingParam: -1,
		draggingMixer: -1,
		mixer:         [4]float64{pl.MasterVolume(), 1, 1, 1},
		baseOctave:    4,
		heldKeys:      make(map[ebiten.Key]int32),
		mouseKey:      -1,
		activeKeys:    make(map[int32]bool),
		status:        "Ready",
		fftSpec:       spec,
		textCache:     make(map[string]*ebiten.Image, 1024),
	}
	g.fftForward = func(samples []float32) {
		for i := 0; i < fftSize; i++ {
			buf[i] = float64(samples[len(samples)-fftSize+i]) * hann[i]
		}
		plan.Forward(spec, buf)
	}
	return g, nil
}

func (g *game) Close() { _ = g.player.Stop() }

func (g *game) Update() error {
	g.pollHostEvents()
	g.drainBridge()
	g.handleOctaveKeys()
	g.handleNoteKeys()
	g.handleMouse()
	return nil
}

// pollHostEvents consumes what the synth reports back to its host.
func (g *game) pollHostEvents() {
	for {
		select {
		case ev, ok := <-g.events:
			if !ok {
				return
			}
			if ev.Kind == polysaw.HostNoteEnd {
				g.setStatus(fmt.Sprintf("Note end: key %d", ev.Note.Key))
			}
		default:
			return
		}
	}
}

// drainBridge consumes the synth-to-editor queue: parameter echoes keep the
// sliders honest and note echoes light up the keyboard.
func (g *game) drainBridge() {
	for {
		m, ok := g.comms.PopToUI()
		if !ok {
			return
		}
		switch m.Kind {
		case polysaw.ToUIParamValue:
			for i, p := range g.params {
				if p.ID == m.ID {
					g.values[i] = m.Value
					break
				}
			}
		case polysaw.ToUINoteOn:
			g.activeKeys[int32(m.ID)] = true
		case polysaw.ToUINoteOff:
			delete(g.activeKeys, int32(m.ID))
		}
	}
}

func (g *game) handleOctaveKeys() {
	if inpututil.IsKeyJustPressed(ebiten.KeyZ) && g.baseOctave > 1 {
		g.baseOctave--
		g.setStatus(fmt.Sprintf("Octave: %d", g.baseOctave))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyX) && g.baseOctave < 7 {
		g.baseOctave++
		g.setStatus(fmt.Sprintf("Octave: %d", g.baseOctave))
	}
}

func (g *game) baseKey() int32 {
	return int32(12 * (g.baseOctave + 1))
}

func (g *game) handleNoteKeys() {
	for _, b := range keyboardMap {
		if inpututil.IsKeyJustPressed(b.key) {
			note := g.baseKey() + int32(b.semitone)
			if note > 127 {
				continue
			}
			g.heldKeys[b.key] = note
			g.player.NoteOn(note, 0.9)
		}
		if inpututil.IsKeyJustReleased(b.key) {
			if note, ok := g.heldKeys[b.key]; ok {
				delete(g.heldKeys, b.key)
				g.player.NoteOff(note)
			}
		}
	}
}

func (g *game) handleMouse() {
	mx, my := ebiten.CursorPosition()
	l := g.layoutRects()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		switch {
		case pointInRect(mx, my, l.params):
			g.pressParamSlider(mx, my, l.params)
		case pointInRect(mx, my, l.mixer):
			g.pressMixerSlider(mx, my, l.mixer)
		case pointInRect(mx, my, l.keyboard):
			g.pressPianoKey(mx, my, l.keyboard)
		}
	}

	if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		if g.draggingParam >= 0 {
			g.comms.EndEdit(g.params[g.draggingParam].ID)
			g.draggingParam = -1
		}
		g.draggingMixer = -1
		if g.mouseKey >= 0 {
			g.player.NoteOff(g.mouseKey)
			g.mouseKey = -1
		}
	}

	if g.draggingParam >= 0 {
		g.dragParamSlider(mx, l.params)
	}
	if g.draggingMixer >= 0 {
		g.dragMixerSlider(mx, l.mixer)
	}
}

type uiLayout struct {
	params   image.Rectangle
	scope    image.Rectangle
	mixer    image.Rectangle
	keyboard image.Rectangle
	status   image.Rectangle
}

func (g *game) layoutRects() uiLayout {
	pad := 16
	statusH := 36
	keyboardH := 132

	statusTop := windowH - pad - statusH
	keyboardTop := statusTop - 10 - keyboardH

	paramsW := 470
	paramsRect := image.Rect(pad, pad, pad+paramsW, keyboardTop-10)

	rightX := paramsRect.Max.X + 12
	mixerH := 158
	scopeRect := image.Rect(rightX, pad, windowW-pad, keyboardTop-10-mixerH-10)
	mixerRect := image.Rect(rightX, scopeRect.Max.Y+10, windowW-pad, keyboardTop-10)

	keyboardRect := image.Rect(pad, keyboardTop, windowW-pad, keyboardTop+keyboardH)
	statusRect := image.Rect(pad, statusTop, windowW-pad, statusTop+statusH)

	return uiLayout{
		params: paramsRect, scope: scopeRect, mixer: mixerRect,
		keyboard: keyboardRect, status: statusRect,
	}
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	l := g.layoutRects()

	g.drawPanel(screen, l.params)
	g.drawDarkPanel(screen, l.scope)
	g.drawPanel(screen, l.mixer)
	g.drawSunkenPanel(screen, l.keyboard)
	g.drawSunkenPanel(screen, l.status)

	g.drawParamSliders(screen, l.params)
	g.drawScope(screen, l.scope)
	g.drawMixer(screen, l.mixer)
	g.drawKeyboard(screen, l.keyboard)
	g.drawStatus(screen, l.status)
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	return windowW, windowH
}

const paramRowH = 38

func (g *game) paramRowRect(panel image.Rectangle, i int) image.Rectangle {
	top := panel.Min.Y + 10 + i*paramRowH
	return image.Rect(panel.Min.X+8, top, panel.Max.X-8, top+paramRowH-6)
}

func (g *game) paramTrack(row image.Rectangle) image.Rectangle {
	return image.Rect(row.Min.X+150, row.Min.Y+10, row.Max.X-120, row.Min.Y+18)
}

func (g *game) drawParamSliders(screen *ebiten.Image, panel image.Rectangle) {
	for i, p := range g.params {
		row := g.paramRowRect(panel, i)
		g.drawText(screen, p.Name, row.Min.X, row.Min.Y+2)

		track := g.paramTrack(row)
		ebitenutil.DrawRect(screen, float64(track.Min.X), float64(track.Min.Y), float64(track.Dx()), float64(track.Dy()), bevelDarker)

		frac := 0.0
		if p.Max > p.Min {
			frac = clamp((g.values[i]-p.Min)/(p.Max-p.Min), 0, 1)
		}
		fillW := int(frac * float64(track.Dx()))
		if fillW > 1 {
			ebitenutil.DrawRect(screen, float64(track.Min.X+1), float64(track.Min.Y+1), float64(fillW-1), float64(track.Dy()-2), sliderFillColor)
		}
		knobX := track.Min.X + fillW - 4
		knobRect := image.Rect(knobX, track.Min.Y-4, knobX+8, track.Max.Y+4)
		ebitenutil.DrawRect(screen, float64(knobRect.Min.X), float64(knobRect.Min.Y), float64(knobRect.Dx()), float64(knobRect.Dy()), panelColor)
		drawBorder(screen, knobRect)

		g.drawText(screen, polysaw.FormatParam(p.ID, g.values[i]), track.Max.X+10, row.Min.Y+2)
	}
}

func (g *game) pressParamSlider(mx, my int, panel image.Rectangle) {
	for i := range g.params {
		row := g.paramRowRect(panel, i)
		if !pointInRect(mx, my, row) {
			continue
		}
		g.draggingParam = i
		g.comms.BeginEdit(g.params[i].ID)
		g.dragParamSlider(mx, panel)
		return
	}
}

func (g *game) dragParamSlider(mx int, panel image.Rectangle) {
	i := g.draggingParam
	if i < 0 || i >= len(g.params) {
		return
	}
	p := g.params[i]
	track := g.paramTrack(g.paramRowRect(panel, i))
	if track.Dx() <= 0 {
		return
	}
	frac := clamp(float64(mx-track.Min.X)/float64(track.Dx()), 0, 1)
	v := p.Min + frac*(p.Max-p.Min)
	if p.Stepped {
		v = math.Round(v)
	}
	if v == g.values[i] {
		return
	}
	g.values[i] = v
	g.comms.AdjustValue(p.ID, v)
	g.setStatus(fmt.Sprintf("%s: %s", p.Name, polysaw.FormatParam(p.ID, v)))
}

const mixerRowH = 34

func (g *game) mixerRowRect(panel image.Rectangle, i int) image.Rectangle {
	top := panel.Min.Y + 10 + i*mixerRowH
	return image.Rect(panel.Min.X+8, top, panel.Max.X-8, top+mixerRowH-6)
}

func (g *game) mixerTrack(row image.Rectangle) image.Rectangle {
	return image.Rect(row.Min.X+120, row.Min.Y+8, row.Max.X-70, row.Min.Y+16)
}

func (g *game) drawMixer(screen *ebiten.Image, panel image.Rectangle) {
	for i, m := range mixerRows {
		row := g.mixerRowRect(panel, i)
		g.drawText(screen, m.label, row.Min.X, row.Min.Y)

		track := g.mixerTrack(row)
		ebitenutil.DrawRect(screen, float64(track.Min.X), float64(track.Min.Y), float64(track.Dx()), float64(track.Dy()), bevelDarker)
		frac := clamp((g.mixer[i]-m.min)/(m.max-m.min), 0, 1)
		fillW := int(frac * float64(track.Dx()))
		if fillW > 1 {
			ebitenutil.DrawRect(screen, float64(track.Min.X+1), float64(track.Min.Y+1), float64(fillW-1), float64(track.Dy()-2), sliderFillColor)
		}
		g.drawText(screen, fmt.Sprintf("%.2f", g.mixer[i]), track.Max.X+8, row.Min.Y)
	}
}

func (g *game) pressMixerSlider(mx, my int, panel image.Rectangle) {
	for i := range mixerRows {
		if pointInRect(mx, my, g.mixerRowRect(panel, i)) {
			g.draggingMixer = i
			g.dragMixerSlider(mx, panel)
			return
		}
	}
}

func (g *game) dragMixerSlider(mx int, panel image.Rectangle) {
	i := g.draggingMixer
	if i < 0 || i >= len(mixerRows) {
		return
	}
	m := mixerRows[i]
	track := g.mixerTrack(g.mixerRowRect(panel, i))
	if track.Dx() <= 0 {
		return
	}
	frac := clamp(float64(mx-track.Min.X)/float64(track.Dx()), 0, 1)
	g.mixer[i] = m.min + frac*(m.max-m.min)
	if i == 0 {
		g.player.SetMasterVolume(g.mixer[0])
	} else {
		g.player.SetMonitorGain(i-1, float32(g.mixer[i]))
	}
}

const keyboardOctaves = 2

func (g *game) drawKeyboard(screen *ebiten.Image, rect image.Rectangle) {
	inner := image.Rect(rect.Min.X+6, rect.Min.Y+6, rect.Max.X-6, rect.Max.Y-6)
	nWhites := keyboardOctaves * 7
	whiteW := inner.Dx() / nWhites
	base := g.baseKey()

	for i := 0; i < nWhites; i++ {
		note := base + int32(12*(i/7)+whiteSemitones[i%7])
		x := inner.Min.X + i*whiteW
		keyRect := image.Rect(x, inner.Min.Y, x+whiteW-1, inner.Max.Y)
		fill := whiteKeyColor
		if g.activeKeys[note] {
			fill = activeKeyColor
		}
		ebitenutil.DrawRect(screen, float64(keyRect.Min.X), float64(keyRect.Min.Y), float64(keyRect.Dx()), float64(keyRect.Dy()), fill)
		ebitenutil.DrawRect(screen, float64(keyRect.Max.X), float64(keyRect.Min.Y), 1, float64(keyRect.Dy()), keyBorderColor)
	}

	blackW := whiteW * 3 / 5
	blackH := inner.Dy() * 3 / 5
	for i := 0; i < nWhites; i++ {
		semi := blackAfterWhite[i%7]
		if semi < 0 {
			continue
		}
		note := base + int32(12*(i/7)+semi)
		x := inner.Min.X + (i+1)*whiteW - blackW/2
		keyRect := image.Rect(x, inner.Min.Y, x+blackW, inner.Min.Y+blackH)
		fill := blackKeyColor
		if g.activeKeys[note] {
			fill = activeKeyColor
		}
		ebitenutil.DrawRect(screen, float64(keyRect.Min.X), float64(keyRect.Min.Y), float64(keyRect.Dx()), float64(keyRect.Dy()), fill)
		drawBorder(screen, keyRect)
	}

	label := fmt.Sprintf("C%d  (A-; plays, Z/X octave)", g.baseOctave)
	g.drawText(screen, label, inner.Min.X+4, inner.Max.Y-lineH-2)
}

func (g *game) pressPianoKey(mx, my int, rect image.Rectangle) {
	note := g.pianoKeyAt(mx, my, rect)
	if note < 0 {
		return
	}
	g.mouseKey = note
	g.player.NoteOn(note, 0.9)
}

func (g *game) pianoKeyAt(mx, my int, rect image.Rectangle) int32 {
	inner := image.Rect(rect.Min.X+6, rect.Min.Y+6, rect.Max.X-6, rect.Max.Y-6)
	if !pointInRect(mx, my, inner) {
		return -1
	}
	nWhites := keyboardOctaves * 7
	whiteW := inner.Dx() / nWhites
	if whiteW < 1 {
		return -1
	}
	base := g.baseKey()

	blackW := whiteW * 3 / 5
	blackH := inner.Dy() * 3 / 5
	for i := 0; i < nWhites; i++ {
		semi := blackAfterWhite[i%7]
		if semi < 0 {
			continue
		}
		x := inner.Min.X + (i+1)*whiteW - blackW/2
		if pointInRect(mx, my, image.Rect(x, inner.Min.Y, x+blackW, inner.Min.Y+blackH)) {
			return base + int32(12*(i/7)+semi)
		}
	}

	i := (mx - inner.Min.X) / whiteW
	if i < 0 || i >= nWhites {
		return -1
	}
	note := base + int32(12*(i/7)+whiteSemitones[i%7])
	if note > 127 {
		return -1
	}
	return note
}

func (g *game) drawScope(screen *ebiten.Image, rect image.Rectangle) {
	inner := image.Rect(rect.Min.X+8, rect.Min.Y+8, rect.Max.X-8, rect.Max.Y-8)
	width := inner.Dx()
	height := inner.Dy()
	if width <= 0 || height <= 0 {
		return
	}

	if g.scopeImg == nil || g.scopeW != width || g.scopeH != height {
		g.scopeW = width
		g.scopeH = height
		g.scopeImg = ebiten.NewImage(width, height)
	}
	g.scopeImg.Fill(scopeBackground)

	snap := g.analyzer.Snapshot(fftSize, g.player.PlaybackPosition())

	waveH := int(float64(height) * 0.45)
	g.drawWaveform(g.scopeImg, snap, width, waveH)
	ebitenutil.DrawRect(g.scopeImg, 0, float64(waveH), float64(width), 1, color.RGBA{50, 54, 68, 180})
	g.drawSpectrumBars(g.scopeImg, snap, width, height-waveH-1, waveH+1)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(inner.Min.X), float64(inner.Min.Y))
	screen.DrawImage(g.scopeImg, op)
}

func (g *game) drawWaveform(dst *ebiten.Image, samples []float32, width int, height int) {
	if len(samples) < 2 || width < 2 || height < 4 {
		return
	}
	midY := height / 2
	ebitenutil.DrawRect(dst, 0, float64(midY), float64(width), 1, color.RGBA{40, 44, 58, 100})

	peak := float32(0)
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	target := float64(peak)
	if target < 0.01 {
		target = 0.01
	}
	if target > g.wavePeak {
		g.wavePeak = g.wavePeak*0.3 + target*0.7
	} else {
		g.wavePeak = g.wavePeak*0.995 + target*0.005
	}
	if g.wavePeak < 0.01 {
		g.wavePeak = 0.01
	}
	gain := float64(midY-2) / g.wavePeak

	triggerOffset := findZeroCrossing(samples, len(samples)/4)
	visible := len(samples) - triggerOffset
	if visible < 2 {
		visible = 2
	}

	prevX := 0
	prevY := midY - int(float64(samples[triggerOffset])*gain)
	for px := 1; px < width; px++ {
		si := triggerOffset + px*visible/width
		if si >= len(samples) {
			si = len(samples) - 1
		}
		y := midY - int(float64(samples[si])*gain)
		ebitenutil.DrawLine(dst, float64(prevX), float64(prevY), float64(px), float64(y), waveColor)
		prevX = px
		prevY = y
	}
}

func findZeroCrossing(samples []float32, searchLen int) int {
	if searchLen > len(samples)-2 {
		searchLen = len(samples) - 2
	}
	for i := 1; i < searchLen; i++ {
		if samples[i-1] <= 0 && samples[i] > 0 {
			return i
		}
	}
	return 0
}

func (g *game) drawSpectrumBars(dst *ebiten.Image, samples []float32, width int, height int, yOffset int) {
	if len(samples) < fftSize || width < 4 || height < 4 {
		return
	}

	g.fftForward(samples)

	numBars := width / 3
	if numBars < 16 {
		numBars = 16
	}
	if numBars > 256 {
		numBars = 256
	}
	if len(g.specBins) != numBars {
		g.specBins = make([]float64, numBars)
	}

	halfFFT := fftSize / 2
	minBin := 1
	maxBin := halfFFT * 18000 / (g.analyzer.sampleRate / 2)
	if maxBin > halfFFT {
		maxBin = halfFFT
	}
	logMin := math.Log(float64(minBin))
	logMax := math.Log(float64(maxBin))

	for i := 0; i < numBars; i++ {
		frac0 := float64(i) / float64(numBars)
		frac1 := float64(i+1) / float64(numBars)
		binStart := int(math.Exp(logMin + frac0*(logMax-logMin)))
		binEnd := int(math.Exp(logMin + frac1*(logMax-logMin)))
		if binEnd <= binStart {
			binEnd = binStart + 1
		}
		if binEnd > halfFFT {
			binEnd = halfFFT
		}

		sum := 0.0
		for b := binStart; b < binEnd; b++ {
			sum += cmplx.Abs(g.fftSpec[b])
		}
		avg := sum / float64(binEnd-binStart)

		db := 20.0 * math.Log10(avg/float64(fftSize)+1e-10)
		norm := (db + 80.0) / 80.0
		if norm < 0 {
			norm = 0
		}
		if norm > 1 {
			norm = 1
		}

		prev := g.specBins[i]
		if norm > prev {
			g.specBins[i] = prev*0.3 + norm*0.7
		} else {
			g.specBins[i] = prev*0.85 + norm*0.15
		}
	}

	barW := float64(width) / float64(numBars)
	for i := 0; i < numBars; i++ {
		v := g.specBins[i]
		barH := v * float64(height-4)
		if barH < 1 {
			barH = 1
		}
		x := float64(i) * barW
		y := float64(yOffset) + float64(height-2) - barH
		r, gr, b := spectrumColor(v)
		ebitenutil.DrawRect(dst, x+1, y, barW-1, barH, color.RGBA{r, gr, b, 220})
	}
}

func spectrumColor(v float64) (uint8, uint8, uint8) {
	if v < 0.33 {
		t := v / 0.33
		return uint8(30 + 20*t), uint8(80 + 120*t), uint8(200 + 55*t)
	}
	if v < 0.66 {
		t := (v - 0.33) / 0.33
		return uint8(50 + 140*t), uint8(200 + 30*t), uint8(255 - 100*t)
	}
	t := (v - 0.66) / 0.34
	return uint8(190 + 65*t), uint8(230 - 100*t), uint8(155 - 100*t)
}

func (g *game) drawStatus(screen *ebiten.Image, rect image.Rectangle) {
	st := g.comms.Status()
	proc := "idle"
	if st.Processing {
		proc = "live"
	}
	msg := fmt.Sprintf("%s | voices %d/%d | audio %s | blocks %d", g.status, st.Polyphony, polysaw.MaxVoices, proc, st.UpdateCount)
	maxChars := (rect.Dx() - 16) / charW
	if maxChars < 8 {
		maxChars = 8
	}
	g.drawText(screen, shortenEnd(msg, maxChars), rect.Min.X+8, rect.Min.Y+6)
}

func (g *game) setStatus(msg string) {
	g.status = msg
}

func (g *game) drawPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), panelColor)
	drawBorder(screen, rect)
}

func (g *game) drawSunkenPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), sunkenBgColor)
	drawSunkenBorder(screen, rect)
}

func (g *game) drawDarkPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), color.RGBA{0, 0, 0, 255})
	drawSunkenBorder(screen, rect)
}

func drawBorder(screen *ebiten.Image, rect image.Rectangle) {
	x := float64(rect.Min.X)
	y := float64(rect.Min.Y)
	w := float64(rect.Dx())
	h := float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, bevelLight)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, bevelLight)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelDarker)
}

func drawSunkenBorder(screen *ebiten.Image, rect image.Rectangle) {
	x := float64(rect.Min.X)
	y := float64(rect.Min.Y)
	w := float64(rect.Dx())
	h := float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, borderColor)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, borderColor)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelLight)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelLight)
}

func (g *game) drawText(screen *ebiten.Image, msg string, x int, y int) {
	if msg == "" {
		return
	}
	img := g.textCache[msg]
	if img == nil {
		w := len([]rune(msg)) * 7
		if w < 1 {
			w = 1
		}
		img = ebiten.NewImage(w, 14)
		ebitenutil.DebugPrintAt(img, msg, 0, 0)
		if len(g.textCache) > 3000 {
			g.textCache = make(map[string]*ebiten.Image, 1024)
		}
		g.textCache[msg] = img
	}
	opS := &ebiten.DrawImageOptions{}
	opS.GeoM.Scale(textScale, textScale)
	opS.GeoM.Translate(float64(x+1), float64(y+1))
	opS.ColorScale.Scale(0, 0, 0, 1)
	screen.DrawImage(img, opS)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(textScale, textScale)
	op.GeoM.Translate(float64(x), float64(y))
	screen.DrawImage(img, op)
}

func shortenEnd(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	if maxChars <= 3 {
		if maxChars < 0 {
			maxChars = 0
		}
		return string(r[:maxChars])
	}
	return string(r[:maxChars-3]) + "..."
}

func clamp(v, minV, maxV float64) float64 {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func pointInRect(x, y int, rect image.Rectangle) bool {
	return x >= rect.Min.X && x < rect.Max.X && y >= rect.Min.Y && y < rect.Max.Y
}

func main() {
	g, err := newGame()
	if err != nil {
		log.Fatal(err)
	}
	defer g.Close()

	if err := g.player.Start(); err != nil {
		log.Fatal(err)
	}
	g.comms.RequestRefresh()

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowTitle("polysaw keys")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}

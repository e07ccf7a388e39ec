package main

import (
	"flag"
	"fmt"
	"math"
	"math/cmplx"
	"os"
	"strconv"
	"strings"

	"github.com/cbegin/polysaw-go"
	algofft "github.com/cwbudde/algo-fft"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

func main() {
	var (
		notes      = flag.String("notes", "60", "comma separated MIDI keys, played as a chord")
		velocity   = flag.Float64("velocity", 0.9, "note velocity (0..1)")
		duration   = flag.Float64("duration", 2.0, "held note duration in seconds")
		tail       = flag.Float64("tail", 1.0, "release tail rendered after the notes end, in seconds")
		sampleRate = flag.Int("sample-rate", 48000, "render sample rate in Hz")
		output     = flag.String("output", "output.wav", "output WAV file path")
		spectrum   = flag.Bool("spectrum", false, "print a band energy report for the rendered audio")

		unison     = flag.Int("unison", 3, "oscillator unison lanes (1-7)")
		spread     = flag.Float64("spread", 10, "unison detune spread in cents")
		detune     = flag.Float64("detune", 0, "global detune in cents")
		attack     = flag.Float64("attack", 0.01, "amp attack control value (0..1)")
		release    = flag.Float64("release", 0.2, "amp release control value (0..1)")
		gate       = flag.Bool("gate", false, "gate mode: collapse attack and release to 1ms")
		cutoff     = flag.Float64("cutoff", 69, "filter cutoff in MIDI key units (1-127)")
		resonance  = flag.Float64("resonance", 0.7, "filter resonance (0..1)")
		filterName = flag.String("filter", "lp", "filter mode: lp|hp|bp|notch|off")
		vca        = flag.Float64("vca", 1, "pre filter gain (0..1)")
	)
	flag.Parse()

	keys, err := parseKeys(*notes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing -notes: %v\n", err)
		os.Exit(1)
	}
	mode, err := parseFilterMode(*filterName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var sc polysaw.Schedule
	sc.SetParam(0, polysaw.ParamUnisonCount, float64(*unison))
	sc.SetParam(0, polysaw.ParamUnisonSpread, *spread)
	sc.SetParam(0, polysaw.ParamOscDetune, *detune)
	sc.SetParam(0, polysaw.ParamAmpAttack, *attack)
	sc.SetParam(0, polysaw.ParamAmpRelease, *release)
	sc.SetParam(0, polysaw.ParamAmpIsGate, boolParam(*gate))
	sc.SetParam(0, polysaw.ParamCutoff, *cutoff)
	sc.SetParam(0, polysaw.ParamResonance, *resonance)
	sc.SetParam(0, polysaw.ParamFilterMode, float64(mode))
	sc.SetParam(0, polysaw.ParamPreFilterVCA, *vca)

	holdFrames := int64(*duration * float64(*sampleRate))
	if holdFrames < 1 {
		holdFrames = 1
	}
	for i, key := range keys {
		id := polysaw.VoiceID{Key: int32(key), NoteID: int32(i + 1)}
		sc.Note(0, holdFrames, id, *velocity)
	}

	fmt.Printf("Rendering %d note(s) for %.2fs (+%.2fs tail) at %d Hz...\n", len(keys), *duration, *tail, *sampleRate)
	samples, err := polysaw.Render(&sc, polysaw.RenderOptions{
		SampleRate:  float64(*sampleRate),
		TailSeconds: *tail,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering: %v\n", err)
		os.Exit(1)
	}

	file, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	encoder := wav.NewEncoder(file, *sampleRate, 16, 2, 1)
	defer encoder.Close()

	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  *sampleRate,
			NumChannels: 2,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing WAV file: %v\n", err)
		os.Exit(1)
	}

	frames := len(samples) / 2
	fmt.Printf("Wrote %s (%d frames, peak %.3f, rms %.1f dBFS)\n", *output, frames, peakLevel(samples), dB(stereoRMS(samples)))

	if *spectrum {
		if err := printSpectrum(samples, *sampleRate); err != nil {
			fmt.Fprintf(os.Stderr, "Error analyzing spectrum: %v\n", err)
			os.Exit(1)
		}
	}
}

func parseKeys(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	keys := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		k, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad key %q", p)
		}
		if k < 0 || k > 127 {
			return nil, fmt.Errorf("key %d out of MIDI range", k)
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no keys in %q", s)
	}
	return keys, nil
}

func parseFilterMode(name string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lp":
		return polysaw.FilterModeLP, nil
	case "hp":
		return polysaw.FilterModeHP, nil
	case "bp":
		return polysaw.FilterModeBP, nil
	case "notch":
		return polysaw.FilterModeNotch, nil
	case "off":
		return polysaw.FilterModeOff, nil
	default:
		return 0, fmt.Errorf("invalid -filter %q (expected lp|hp|bp|notch|off)", name)
	}
}

func boolParam(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// printSpectrum averages STFT frames over the whole render and reports the
// energy per octave-ish band.
func printSpectrum(samples []float32, sampleRate int) error {
	const fftSize = 4096
	const hop = 2048

	mono := make([]float64, len(samples)/2)
	for i := range mono {
		mono[i] = float64(samples[i*2]+samples[i*2+1]) * 0.5
	}
	if len(mono) < fftSize {
		return fmt.Errorf("render too short for analysis (%d frames)", len(mono))
	}

	plan, err := algofft.NewPlanReal64(fftSize)
	if err != nil {
		return fmt.Errorf("fft plan: %w", err)
	}

	hann := make([]float64, fftSize)
	for i := range hann {
		hann[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(fftSize-1))
	}

	nBins := fftSize / 2
	spec := make([]complex128, fftSize/2+1)
	buf := make([]float64, fftSize)
	avg := make([]float64, nBins)
	nFrames := 0
	for pos := 0; pos+fftSize <= len(mono); pos += hop {
		for i := 0; i < fftSize; i++ {
			buf[i] = mono[pos+i] * hann[i]
		}
		plan.Forward(spec, buf)
		for k := 1; k < nBins; k++ {
			avg[k] += cmplx.Abs(spec[k])
		}
		nFrames++
	}
	scale := 1.0 / float64(nFrames)
	for k := range avg {
		avg[k] *= scale
	}

	bands := []struct {
		name string
		loHz float64
		hiHz float64
	}{
		{"sub (20-100Hz)", 20, 100},
		{"bass (100-300Hz)", 100, 300},
		{"low-mid (300-1kHz)", 300, 1000},
		{"mid (1-3kHz)", 1000, 3000},
		{"hi-mid (3-6kHz)", 3000, 6000},
		{"high (6-12kHz)", 6000, 12000},
		{"air (12-20kHz)", 12000, 20000},
	}

	binHz := float64(sampleRate) / float64(fftSize)
	fmt.Printf("--- spectrum (%d STFT frames) ---\n", nFrames)
	for _, b := range bands {
		loK := int(b.loHz / binHz)
		hiK := int(b.hiHz / binHz)
		if loK < 1 {
			loK = 1
		}
		if hiK >= nBins {
			hiK = nBins - 1
		}
		if loK > hiK {
			continue
		}
		var pow float64
		for k := loK; k <= hiK; k++ {
			pow += avg[k] * avg[k]
		}
		pow /= float64(hiK - loK + 1)
		fmt.Printf("  %-20s %6.1f dB\n", b.name, 10*math.Log10(math.Max(pow, 1e-24)))
	}
	return nil
}

func stereoRMS(interleaved []float32) float64 {
	if len(interleaved) == 0 {
		return 0
	}
	var sum float64
	for _, s := range interleaved {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(interleaved)))
}

func peakLevel(interleaved []float32) float64 {
	peak := 0.0
	for _, s := range interleaved {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	return peak
}

func dB(v float64) float64 {
	return 20 * math.Log10(math.Max(v, 1e-12))
}

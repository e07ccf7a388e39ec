package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/cbegin/polysaw-go"
	intaudio "github.com/cbegin/polysaw-go/internal/audio"
)

const blockFrames = 1024

type chord struct {
	name string
	keys []int32
}

var progression = []chord{
	{"Cmaj7", []int32{48, 60, 64, 67, 71}},
	{"Am7", []int32{45, 57, 60, 64, 67}},
	{"Fmaj7", []int32{41, 53, 57, 60, 65}},
	{"G7", []int32{43, 55, 59, 62, 65}},
}

// demoSource feeds the synth a precomputed schedule as the device pulls
// audio, the way a host drives Process in real time.
type demoSource struct {
	synth  *polysaw.Synth
	events []polysaw.ScheduledEvent
	next   int
	evbuf  []polysaw.Event
	gain   float32
	total  int64
	done   atomic.Int64
	ends   chan int32
}

func (d *demoSource) Process(dst []float32) {
	frames := int64(len(dst) / 2)
	done := d.done.Load()

	d.evbuf = d.evbuf[:0]
	for d.next < len(d.events) && d.events[d.next].At < done+frames {
		ev := d.events[d.next].Event
		ev.Frame = int(d.events[d.next].At - done)
		d.evbuf = append(d.evbuf, ev)
		d.next++
	}

	for _, ev := range d.synth.Process(d.evbuf, dst) {
		if ev.Kind == polysaw.HostNoteEnd {
			select {
			case d.ends <- ev.Note.Key:
			default:
			}
		}
	}

	for i := range dst {
		dst[i] *= d.gain
	}
	d.done.Store(done + frames)
}

// Finished reports true once the schedule and its ring-out have been pulled.
func (d *demoSource) Finished() bool { return d.done.Load() >= d.total }

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		volume     = flag.Float64("volume", 0.5, "master volume scalar (0..1)")
		bpm        = flag.Float64("bpm", 60, "chord changes per minute")
		bars       = flag.Int("bars", 2, "times through the progression")
		unison     = flag.Int("unison", 5, "oscillator unison lanes (1-7)")
		spread     = flag.Float64("spread", 18, "unison detune spread in cents")
		cutoff     = flag.Float64("cutoff", 80, "filter cutoff in MIDI key units")
	)
	flag.Parse()

	synth := polysaw.New()
	if err := synth.Activate(float64(*sampleRate), 1, blockFrames); err != nil {
		log.Fatal(err)
	}

	framesPerBeat := int64(float64(*sampleRate) * 60 / *bpm)
	hold := framesPerBeat * 9 / 10

	params := []struct {
		id uint32
		v  float64
	}{
		{polysaw.ParamUnisonCount, float64(*unison)},
		{polysaw.ParamUnisonSpread, *spread},
		{polysaw.ParamCutoff, *cutoff},
		{polysaw.ParamAmpAttack, 0.1},
		{polysaw.ParamAmpRelease, 0.35},
	}

	var events []polysaw.ScheduledEvent
	for _, p := range params {
		events = append(events, polysaw.ScheduledEvent{Event: polysaw.ParamValueEvent(0, p.id, p.v)})
	}
	at := int64(0)
	noteID := int32(1)
	for bar := 0; bar < *bars; bar++ {
		for _, c := range progression {
			for _, key := range c.keys {
				id := polysaw.VoiceID{Key: key, NoteID: noteID}
				noteID++
				events = append(events, polysaw.ScheduledEvent{At: at, Event: polysaw.NoteOnEvent(0, id, 0.85)})
				events = append(events, polysaw.ScheduledEvent{At: at + hold, Event: polysaw.NoteOffEvent(0, id)})
			}
			at += framesPerBeat
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].At < events[j].At })

	src := &demoSource{
		synth:  synth,
		events: events,
		evbuf:  make([]polysaw.Event, 0, 64),
		gain:   float32(*volume),
		total:  at + int64(*sampleRate), // one second of ring-out
		ends:   make(chan int32, 64),
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   *sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		log.Fatal(err)
	}
	<-ready

	player := ctx.NewPlayer(intaudio.NewStreamReader(src, blockFrames))
	synth.StartProcessing()
	player.Play()

	lastChord := -1
	totalChords := *bars * len(progression)
	for !src.Finished() || player.IsPlaying() {
		time.Sleep(100 * time.Millisecond)

	drain:
		for {
			select {
			case key := <-src.ends:
				fmt.Printf("  note end: key %d\n", key)
			default:
				break drain
			}
		}

		idx := int(src.done.Load() / framesPerBeat)
		if idx != lastChord && idx < totalChords {
			lastChord = idx
			c := progression[idx%len(progression)]
			st := synth.Comms().Status()
			fmt.Printf("%-6s %s voices=%d\n", c.name, keyList(c.keys), st.Polyphony)
		}
	}

	player.Close()
	synth.StopProcessing()
	fmt.Printf("done: %d frames rendered\n", src.done.Load())
}

func keyList(keys []int32) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprint(k)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

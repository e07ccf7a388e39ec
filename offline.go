package polysaw

import (
	"errors"
	"fmt"
	"sort"
)

// ScheduledEvent pins an event to an absolute frame position in an offline
// render.
type ScheduledEvent struct {
	At    int64
	Event Event
}

// Schedule collects timed events for Render. The zero value is ready to use.
type Schedule struct {
	events []ScheduledEvent
}

func (sc *Schedule) Add(at int64, ev Event) {
	sc.events = append(sc.events, ScheduledEvent{At: at, Event: ev})
}

func (sc *Schedule) NoteOn(at int64, id VoiceID, velocity float64) {
	sc.Add(at, NoteOnEvent(0, id, velocity))
}

func (sc *Schedule) NoteOff(at int64, id VoiceID) {
	sc.Add(at, NoteOffEvent(0, id))
}

// Note schedules a note on at `at` and the matching note off `dur` frames
// later.
func (sc *Schedule) Note(at, dur int64, id VoiceID, velocity float64) {
	sc.NoteOn(at, id, velocity)
	sc.NoteOff(at+dur, id)
}

func (sc *Schedule) SetParam(at int64, id uint32, value float64) {
	sc.Add(at, ParamValueEvent(0, id, value))
}

// Len reports the number of scheduled events.
func (sc *Schedule) Len() int { return len(sc.events) }

// Duration returns the frame position of the latest event, not counting any
// release tail.
func (sc *Schedule) Duration() int64 {
	var last int64
	for _, ev := range sc.events {
		if ev.At > last {
			last = ev.At
		}
	}
	return last
}

// RenderOptions configure offline rendering. Zero fields take defaults:
// 48000 Hz, 512 frames per block, a one second tail.
type RenderOptions struct {
	SampleRate  float64
	BlockFrames int
	TailSeconds float64
}

// Render drives a fresh Synth over the schedule and returns interleaved
// stereo samples. Same schedule, same options, same output.
func Render(sc *Schedule, opts RenderOptions) ([]float32, error) {
	if opts.SampleRate == 0 {
		opts.SampleRate = defaultSampleRate
	}
	if opts.BlockFrames == 0 {
		opts.BlockFrames = 512
	}
	if opts.TailSeconds == 0 {
		opts.TailSeconds = 1
	}
	if opts.SampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	if opts.BlockFrames < 1 {
		return nil, errors.New("block frames must be positive")
	}
	if opts.TailSeconds < 0 {
		return nil, errors.New("tail must not be negative")
	}

	events := make([]ScheduledEvent, len(sc.events))
	copy(events, sc.events)
	sort.SliceStable(events, func(i, j int) bool { return events[i].At < events[j].At })
	if len(events) > 0 && events[0].At < 0 {
		return nil, fmt.Errorf("event scheduled before frame 0 (at %d)", events[0].At)
	}

	synth := New()
	if err := synth.Activate(opts.SampleRate, 1, opts.BlockFrames); err != nil {
		return nil, err
	}

	total := int64(opts.TailSeconds * opts.SampleRate)
	if n := len(events); n > 0 {
		total += events[n-1].At
	}

	out := make([]float32, 0, total*2)
	block := make([]float32, opts.BlockFrames*2)
	evbuf := make([]Event, 0, 64)
	next := 0
	for done := int64(0); done < total; {
		frames := int64(opts.BlockFrames)
		if rem := total - done; rem < frames {
			frames = rem
		}
		evbuf = evbuf[:0]
		for next < len(events) && events[next].At < done+frames {
			ev := events[next].Event
			ev.Frame = int(events[next].At - done)
			evbuf = append(evbuf, ev)
			next++
		}
		dst := block[:frames*2]
		synth.Process(evbuf, dst)
		out = append(out, dst...)
		done += frames
	}
	return out, nil
}

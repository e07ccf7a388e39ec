package polysaw

import "testing"

func activatedSynth(t *testing.T, maxFrames int) *Synth {
	t.Helper()
	s := New()
	if err := s.Activate(48000, 16, maxFrames); err != nil {
		t.Fatalf("activate: %v", err)
	}
	return s
}

func drainToUI(c *Comms) []ToUI {
	var msgs []ToUI
	for {
		m, ok := c.PopToUI()
		if !ok {
			return msgs
		}
		msgs = append(msgs, m)
	}
}

func TestActivateValidatesArguments(t *testing.T) {
	cases := []struct {
		name     string
		rate     float64
		min, max int
		wantErr  bool
	}{
		{"ok", 48000, 1, 1024, false},
		{"zero rate", 0, 1, 1024, true},
		{"negative rate", -44100, 1, 1024, true},
		{"zero min", 48000, 0, 1024, true},
		{"inverted bounds", 48000, 256, 64, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := New().Activate(tc.rate, tc.min, tc.max)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Activate(%v, %d, %d) error = %v, wantErr %v", tc.rate, tc.min, tc.max, err, tc.wantErr)
			}
		})
	}
}

func TestVoiceInfoAdvertisesFixedPool(t *testing.T) {
	capacity, count, overlapping := New().VoiceInfo()
	if capacity != MaxVoices || count != MaxVoices || !overlapping {
		t.Fatalf("VoiceInfo() = (%d, %d, %v), want (%d, %d, true)", capacity, count, overlapping, MaxVoices, MaxVoices)
	}
}

func TestProcessSilentWithoutNotes(t *testing.T) {
	s := activatedSynth(t, 256)
	out := make([]float32, 256*2)
	for i := range out {
		out[i] = 1
	}
	s.Process(nil, out)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("out[%d] = %v, want 0", i, v)
		}
	}
}

func TestProcessBeforeActivateZeroFills(t *testing.T) {
	s := New()
	out := make([]float32, 64*2)
	for i := range out {
		out[i] = 1
	}
	s.Process(nil, out)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("out[%d] = %v, want 0", i, v)
		}
	}
}

func TestNoteLifecycleReportsNoteEnd(t *testing.T) {
	s := activatedSynth(t, 512)
	out := make([]float32, 512*2)
	id := VoiceID{Port: 0, Channel: 0, Key: 60, NoteID: 1}

	host := s.Process([]Event{
		ParamValueEvent(0, ParamAmpRelease, 0),
		NoteOnEvent(0, id, 0.9),
	}, out)
	for _, ev := range host {
		if ev.Kind == HostNoteEnd {
			t.Fatalf("note end before release: %+v", ev)
		}
	}
	if got := s.ActiveVoices(); got != 1 {
		t.Fatalf("active voices = %d, want 1", got)
	}
	var sum float64
	for _, v := range out {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		t.Fatal("sounding note produced silence")
	}

	host = s.Process([]Event{NoteOffEvent(0, id)}, out)
	found := false
	for _, ev := range host {
		if ev.Kind == HostNoteEnd {
			if ev.Note != id {
				t.Fatalf("note end identity = %+v, want %+v", ev.Note, id)
			}
			found = true
		}
	}
	if !found {
		t.Fatal("no note end after instant release")
	}
	if got := s.ActiveVoices(); got != 0 {
		t.Fatalf("active voices after release = %d, want 0", got)
	}
}

func TestNoteEchoesReachEditor(t *testing.T) {
	s := activatedSynth(t, 256)
	out := make([]float32, 256*2)
	id := VoiceID{Key: 72, NoteID: 5}

	s.Process([]Event{
		ParamValueEvent(0, ParamAmpRelease, 0),
		NoteOnEvent(0, id, 0.7),
	}, out)
	s.Process([]Event{NoteOffEvent(0, id)}, out)

	var sawOn, sawOff bool
	for _, m := range drainToUI(s.Comms()) {
		switch m.Kind {
		case ToUINoteOn:
			if m.ID == 72 {
				sawOn = true
			}
		case ToUINoteOff:
			if m.ID == 72 {
				sawOff = true
			}
		}
	}
	if !sawOn || !sawOff {
		t.Fatalf("editor echo on=%v off=%v, want both", sawOn, sawOff)
	}
}

func TestStealReportsStolenVoice(t *testing.T) {
	s := activatedSynth(t, 256)
	out := make([]float32, 256*2)

	evs := make([]Event, 0, MaxVoices)
	for i := 0; i < MaxVoices; i++ {
		evs = append(evs, NoteOnEvent(0, VoiceID{Key: int32(20 + i), NoteID: int32(i)}, 0.8))
	}
	s.Process(evs, out)
	if got := s.ActiveVoices(); got != MaxVoices {
		t.Fatalf("active voices = %d, want %d", got, MaxVoices)
	}

	host := s.Process([]Event{NoteOnEvent(0, VoiceID{Key: 100, NoteID: 64}, 0.8)}, out)
	var stolen []VoiceID
	for _, ev := range host {
		if ev.Kind == HostNoteEnd {
			stolen = append(stolen, ev.Note)
		}
	}
	if len(stolen) != 1 {
		t.Fatalf("note ends after steal = %d, want 1", len(stolen))
	}
	if stolen[0].NoteID != 0 {
		t.Fatalf("stole NoteID %d, want oldest (0)", stolen[0].NoteID)
	}
	if got := s.ActiveVoices(); got != MaxVoices {
		t.Fatalf("active voices after steal = %d, want %d", got, MaxVoices)
	}
}

func TestEditorEditsApplyBeforeHostEvents(t *testing.T) {
	s := activatedSynth(t, 128)
	c := s.Comms()
	out := make([]float32, 128*2)
	drainToUI(c)

	c.AdjustValue(ParamCutoff, 20)
	host := s.Process([]Event{ParamValueEvent(0, ParamCutoff, 90)}, out)

	// The edit is handed to the host for recording, then the host's own
	// event lands last and wins.
	var echoed []float64
	for _, ev := range host {
		if ev.Kind == HostParamValue && ev.Param == ParamCutoff {
			echoed = append(echoed, ev.Value)
		}
	}
	if len(echoed) != 1 || echoed[0] != 20 {
		t.Fatalf("host param echoes = %v, want [20]", echoed)
	}
	if v, ok := s.ParamValue(ParamCutoff); !ok || v != 90 {
		t.Fatalf("cutoff = %v, want 90", v)
	}

	var toUI []float64
	for _, m := range drainToUI(c) {
		if m.Kind == ToUIParamValue && m.ID == ParamCutoff {
			toUI = append(toUI, m.Value)
		}
	}
	if len(toUI) != 1 || toUI[0] != 90 {
		t.Fatalf("editor param echoes = %v, want [90]", toUI)
	}
}

func TestGestureSequenceForwardedInOrder(t *testing.T) {
	s := activatedSynth(t, 64)
	c := s.Comms()
	c.BeginEdit(ParamResonance)
	c.AdjustValue(ParamResonance, 0.9)
	c.EndEdit(ParamResonance)

	host := s.Flush(nil)
	kinds := make([]HostEventKind, 0, len(host))
	for _, ev := range host {
		if ev.Param == ParamResonance {
			kinds = append(kinds, ev.Kind)
		}
	}
	want := []HostEventKind{HostParamGestureBegin, HostParamValue, HostParamGestureEnd}
	if len(kinds) != len(want) {
		t.Fatalf("gesture events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("gesture event %d = %v, want %v", i, kinds[i], want[i])
		}
	}
	if v, _ := s.ParamValue(ParamResonance); v != 0.9 {
		t.Fatalf("resonance = %v, want 0.9", v)
	}
}

func TestFlushAppliesEventsWithoutRendering(t *testing.T) {
	s := New()
	s.Flush([]Event{NoteOnEvent(0, VoiceID{Key: 60, NoteID: 1}, 0.9)})
	if err := s.Activate(48000, 16, 64); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if got := s.ActiveVoices(); got != 0 {
		t.Fatalf("active voices after activate = %d, want 0", got)
	}

	s.Flush([]Event{ParamValueEvent(0, ParamUnisonCount, 5)})
	if v, _ := s.ParamValue(ParamUnisonCount); v != 5 {
		t.Fatalf("unison count = %v, want 5", v)
	}
}

func TestRefreshRebroadcastsEveryParam(t *testing.T) {
	s := activatedSynth(t, 64)
	c := s.Comms()
	out := make([]float32, 64*2)
	drainToUI(c)

	c.RequestRefresh()
	s.Process(nil, out)

	seen := map[uint32]float64{}
	for _, m := range drainToUI(c) {
		if m.Kind == ToUIParamValue {
			seen[m.ID] = m.Value
		}
	}
	params := Params()
	if len(seen) != len(params) {
		t.Fatalf("refresh broadcast %d params, want %d", len(seen), len(params))
	}
	for _, p := range params {
		v, ok := seen[p.ID]
		if !ok {
			t.Fatalf("refresh missed param %d (%s)", p.ID, p.Name)
		}
		if v != p.Default {
			t.Fatalf("param %s refresh value = %v, want default %v", p.Name, v, p.Default)
		}
	}
}

func TestEventOffsetsOutsideBlockAreClamped(t *testing.T) {
	s := activatedSynth(t, 64)
	out := make([]float32, 64*2)
	s.Process([]Event{
		NoteOnEvent(-5, VoiceID{Key: 60, NoteID: 1}, 0.9),
		NoteOnEvent(999, VoiceID{Key: 72, NoteID: 2}, 0.9),
	}, out)
	if got := s.ActiveVoices(); got != 2 {
		t.Fatalf("active voices = %d, want 2", got)
	}
}

func TestProcessDeterministic(t *testing.T) {
	run := func() []float32 {
		s := New()
		if err := s.Activate(48000, 16, 256); err != nil {
			t.Fatalf("activate: %v", err)
		}
		buf := make([]float32, 256*2)
		out := make([]float32, 0, len(buf)*8)
		for block := 0; block < 8; block++ {
			var evs []Event
			switch block {
			case 0:
				evs = []Event{
					ParamValueEvent(0, ParamUnisonCount, 5),
					NoteOnEvent(0, VoiceID{Key: 48, NoteID: 1}, 0.8),
					NoteOnEvent(97, VoiceID{Key: 55, NoteID: 2}, 0.6),
				}
			case 3:
				evs = []Event{NoteOffEvent(40, VoiceID{Key: 48, NoteID: 1})}
			case 5:
				evs = []Event{ParamValueEvent(0, ParamCutoff, 40)}
			}
			s.Process(evs, buf)
			out = append(out, buf...)
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("runs diverge at sample %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestProcessDoesNotAllocate(t *testing.T) {
	s := activatedSynth(t, 128)
	out := make([]float32, 128*2)
	on := []Event{NoteOnEvent(0, VoiceID{Key: 64, NoteID: 7}, 0.8)}
	off := []Event{NoteOffEvent(0, VoiceID{Key: 64, NoteID: 7})}

	s.Process([]Event{ParamValueEvent(0, ParamAmpRelease, 0)}, out)
	s.Process(on, out)
	s.Process(off, out)

	allocs := testing.AllocsPerRun(50, func() {
		s.Process(on, out)
		s.Process(off, out)
	})
	if allocs != 0 {
		t.Fatalf("Process allocated %v times per run, want 0", allocs)
	}
}

package voice

import (
	"math"
	"testing"

	"github.com/cbegin/polysaw-go/internal/param"
)

func activePool() (*Pool, *param.Table) {
	tb := param.NewTable()
	p := NewPool()
	p.Activate(testRate)
	return p, tb
}

func rmsF32(buf []float32) float64 {
	if len(buf) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range buf {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(buf)))
}

func TestPoolNeverExceedsCapacity(t *testing.T) {
	p, tb := activePool()
	for n := int32(1); n <= 80; n++ {
		p.NoteOn(ID{Key: 30 + n%60, NoteID: n}, 1, tb)
		if c := p.ActiveCount(); c > MaxVoices {
			t.Fatalf("active count %d exceeds capacity after note %d", c, n)
		}
	}
	if c := p.ActiveCount(); c != MaxVoices {
		t.Errorf("active count = %d, want %d", c, MaxVoices)
	}
}

func TestStealPrefersQuietestReleasing(t *testing.T) {
	p, tb := activePool()
	buf := make([]float32, 2*256)

	for n := int32(1); n <= MaxVoices; n++ {
		p.NoteOn(ID{Key: 30 + n%60, NoteID: n}, 1, tb)
	}
	p.Render(buf)
	p.NoteOff(ID{Key: 40, NoteID: 10})
	p.Render(buf)
	p.NoteOff(ID{Key: 41, NoteID: 11})
	p.Render(buf)

	// note 10 has been releasing longer, so it is the quietest
	p.NoteOn(ID{Key: 100, NoteID: 65}, 1, tb)

	ended := p.Terminated()
	if len(ended) != 1 || ended[0].NoteID != 10 {
		t.Fatalf("steal ended %v, want note 10 (quietest releasing)", ended)
	}
	if c := p.ActiveCount(); c != MaxVoices {
		t.Errorf("active count after steal = %d, want %d", c, MaxVoices)
	}
}

func TestStealTakesOldestWhenNoneReleasing(t *testing.T) {
	p, tb := activePool()
	for n := int32(1); n <= MaxVoices; n++ {
		p.NoteOn(ID{Key: 30 + n%60, NoteID: n}, 1, tb)
	}
	p.NoteOn(ID{Key: 100, NoteID: 65}, 1, tb)

	ended := p.Terminated()
	if len(ended) != 1 || ended[0].NoteID != 1 {
		t.Fatalf("steal ended %v, want note 1 (oldest)", ended)
	}
	if c := p.ActiveCount(); c != MaxVoices {
		t.Errorf("active count after steal = %d, want %d", c, MaxVoices)
	}
}

func TestNoteOffWithoutMatchIsNoOp(t *testing.T) {
	p, tb := activePool()
	for n := int32(1); n <= 3; n++ {
		p.NoteOn(ID{Key: 60 + n, NoteID: n}, 1, tb)
	}
	p.NoteOff(ID{Key: 99, NoteID: Wildcard})

	buf := make([]float32, 2*64)
	p.Render(buf)
	if c := p.ActiveCount(); c != 3 {
		t.Errorf("active count = %d, want 3", c)
	}
	if ended := p.Terminated(); len(ended) != 0 {
		t.Errorf("unexpected terminations %v", ended)
	}
}

func TestWildcardNoteOffEndsEveryVoiceOnce(t *testing.T) {
	p, tb := activePool()
	tb.Set(param.IdxAmpAttack, 0)
	tb.Set(param.IdxAmpRelease, 0)
	keys := []int32{60, 64, 67}
	for i, k := range keys {
		p.NoteOn(ID{Key: k, NoteID: int32(i + 1)}, 1, tb)
	}
	p.NoteOff(ID{Port: Wildcard, Channel: Wildcard, Key: Wildcard, NoteID: Wildcard})

	buf := make([]float32, 2*64)
	p.Render(buf)
	if c := p.ActiveCount(); c != 0 {
		t.Fatalf("active count after wildcard off = %d, want 0", c)
	}

	counts := map[int32]int{}
	for _, id := range p.Terminated() {
		counts[id.NoteID]++
	}
	p.ClearTerminated()
	for i := range keys {
		if counts[int32(i+1)] != 1 {
			t.Errorf("note %d terminated %d times, want exactly once", i+1, counts[int32(i+1)])
		}
	}
	if ended := p.Terminated(); len(ended) != 0 {
		t.Errorf("second drain observed %v", ended)
	}
}

func TestRenderDeterministic(t *testing.T) {
	run := func() []float32 {
		tb := param.NewTable()
		p := NewPool()
		p.Activate(testRate)
		out := make([]float32, 2*1024)
		p.NoteOn(ID{Key: 60, NoteID: 1}, 0.8, tb)
		p.NoteOn(ID{Key: 64, NoteID: 2}, 0.9, tb)
		p.Render(out[:1024])
		tb.Set(param.IdxCutoff, 40)
		p.PushParams(tb)
		p.NoteOff(ID{Key: 60, NoteID: 1})
		p.Render(out[1024:])
		return out
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("outputs diverge at sample %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestPushParamsAffectsSoundingNotes(t *testing.T) {
	p, tb := activePool()
	p.NoteOn(ID{Key: 69, NoteID: 1}, 1, tb)
	buf := make([]float32, 2*2048)
	p.Render(buf)
	p.Render(buf)
	bright := rmsF32(buf)

	tb.Set(param.IdxCutoff, 20)
	p.PushParams(tb)
	p.Render(buf)
	p.Render(buf)
	dark := rmsF32(buf)

	if dark >= bright*0.8 {
		t.Errorf("cutoff drop did not darken the sounding note: %v -> %v", bright, dark)
	}
}

func TestModulateTargetsMatchingVoicesOnly(t *testing.T) {
	p, tb := activePool()
	tb.Set(param.IdxUnisonCount, 1)
	p.NoteOn(ID{Key: 60, NoteID: 1}, 1, tb)
	p.NoteOn(ID{Key: 64, NoteID: 2}, 1, tb)

	p.Modulate(ID{Port: Wildcard, Channel: Wildcard, Key: 60, NoteID: Wildcard}, param.OscDetune, 1200)

	var v60, v64 *voice
	for i := range p.voices {
		v := &p.voices[i]
		if !v.active {
			continue
		}
		switch v.id.Key {
		case 60:
			v60 = v
		case 64:
			v64 = v
		}
	}
	if v60 == nil || v64 == nil {
		t.Fatal("expected both notes active")
	}
	if v60.modDetune != 1200 {
		t.Errorf("matching voice offset = %v, want 1200", v60.modDetune)
	}
	if v64.modDetune != 0 {
		t.Errorf("non-matching voice offset = %v, want 0", v64.modDetune)
	}
}

func TestActivateSilencesPool(t *testing.T) {
	p, tb := activePool()
	p.NoteOn(ID{Key: 60, NoteID: 1}, 1, tb)
	p.Activate(44100)

	if c := p.ActiveCount(); c != 0 {
		t.Fatalf("active count after reactivate = %d, want 0", c)
	}
	buf := make([]float32, 2*64)
	p.Render(buf)
	for i, s := range buf {
		if s != 0 {
			t.Fatalf("sample %d = %v after reactivate, want silence", i, s)
		}
	}
	if ended := p.Terminated(); len(ended) != 0 {
		t.Errorf("terminations after reactivate: %v", ended)
	}
}

func TestRenderPathDoesNotAllocate(t *testing.T) {
	p, tb := activePool()
	for n := int32(1); n <= 16; n++ {
		p.NoteOn(ID{Key: 40 + n, NoteID: n}, 1, tb)
	}
	buf := make([]float32, 2*256)
	allocs := testing.AllocsPerRun(10, func() {
		p.Render(buf)
		p.NoteOn(ID{Key: 99, NoteID: 1000}, 1, tb)
		p.NoteOff(ID{Key: 99, NoteID: 1000})
		_ = p.Terminated()
		p.ClearTerminated()
	})
	if allocs != 0 {
		t.Errorf("render path allocated %v times per run, want 0", allocs)
	}
}

package voice

import (
	"testing"

	"github.com/cbegin/polysaw-go/internal/param"
)

func benchmarkRender(b *testing.B, voices int) {
	tb := param.NewTable()
	p := NewPool()
	p.Activate(48000)
	for n := 0; n < voices; n++ {
		p.NoteOn(ID{Key: int32(30 + n%60), NoteID: int32(n + 1)}, 1, tb)
	}
	buf := make([]float32, 512*2)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Render(buf)
	}
}

func BenchmarkRender8Voices(b *testing.B)  { benchmarkRender(b, 8) }
func BenchmarkRender64Voices(b *testing.B) { benchmarkRender(b, 64) }

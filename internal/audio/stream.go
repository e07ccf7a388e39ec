// Package audio pumps rendered samples to the output device. A SampleSource
// renders interleaved stereo float32 blocks; StreamReader turns those blocks
// into the little-endian byte stream the device layer consumes.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// bytesPerFrame is one stereo frame of 32-bit float samples on the wire.
const bytesPerFrame = 8

// SampleSource renders audio on demand. Process fills dst, an interleaved
// stereo buffer, completely on every call.
type SampleSource interface {
	Process(dst []float32)
}

// FinishingSource is a SampleSource that can signal when playback has ended.
// When Finished reports true, the stream returns io.EOF after the current
// read.
type FinishingSource interface {
	SampleSource
	Finished() bool
}

// StreamReader adapts a SampleSource to io.Reader. Reads are chunked so the
// source never sees more than maxFrames frames per Process call, whatever
// read size the device asks for, and the scratch buffer is allocated once up
// front.
type StreamReader struct {
	mu        sync.Mutex
	source    SampleSource
	buf       []float32
	maxFrames int
}

func NewStreamReader(source SampleSource, maxFrames int) *StreamReader {
	if maxFrames <= 0 {
		maxFrames = 2048
	}
	return &StreamReader{
		source:    source,
		buf:       make([]float32, maxFrames*2),
		maxFrames: maxFrames,
	}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	for done := 0; done < frames; {
		n := frames - done
		if n > r.maxFrames {
			n = r.maxFrames
		}
		buf := r.buf[:n*2]
		r.source.Process(buf)
		base := done * bytesPerFrame
		for i, s := range buf {
			binary.LittleEndian.PutUint32(p[base+i*4:], math.Float32bits(s))
		}
		done += n
	}
	nbytes := frames * bytesPerFrame
	if fs, ok := r.source.(FinishingSource); ok && fs.Finished() {
		return nbytes, io.EOF
	}
	return nbytes, nil
}

func (r *StreamReader) Close() error { return nil }

// Player owns one device-side player over a StreamReader.
type Player struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

// sharedAudioContext returns the process-wide device context. The device
// layer allows one context per process, so a second rate is an error.
func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// NewPlayer opens a device player streaming from source. maxFrames bounds
// the block length source.Process sees.
func NewPlayer(sampleRate int, maxFrames int, source SampleSource) (*Player, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source, maxFrames)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &Player{
		player: pl,
		reader: reader,
	}, nil
}

func (p *Player) Play()  { p.player.Play() }
func (p *Player) Pause() { p.player.Pause() }
func (p *Player) IsPlaying() bool {
	return p.player.IsPlaying()
}

// Position returns the current playback position (what the listener actually
// hears, device latency included).
func (p *Player) Position() time.Duration {
	return p.player.Position()
}

func (p *Player) Stop() error {
	p.player.Pause()
	p.player.Close()
	return p.reader.Close()
}

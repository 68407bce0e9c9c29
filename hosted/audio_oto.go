//go:build !headless

package hosted

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"

	"wavescope/core"
)

// AudioSink plays one synthesis channel through the sound card, so a
// waveform can be listened to while the engine runs. The tick rate is the
// sample rate.
type AudioSink struct {
	*audioTap

	ctx     *oto.Context
	player  *oto.Player
	scratch []float32
	mu      sync.Mutex
	started bool
}

// NewAudioSink opens the default audio device at sampleRate
func NewAudioSink(channel core.ChannelID, outMax core.Sample, sampleRate int) (*AudioSink, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready

	a := &AudioSink{
		audioTap: newAudioTap(channel, outMax, sampleRate/2),
		ctx:      ctx,
		scratch:  make([]float32, 1024),
	}
	a.player = ctx.NewPlayer(a)
	return a, nil
}

// Read implements io.Reader for the oto player
func (a *AudioSink) Read(p []byte) (int, error) {
	n := len(p) / 4
	if len(a.scratch) < n {
		a.scratch = make([]float32, n)
	}
	samples := a.scratch[:n]
	a.fill(samples)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	return n * 4, nil
}

// Start begins playback
func (a *AudioSink) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		a.player.Play()
		a.started = true
	}
}

// Close stops playback
func (a *AudioSink) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.started = false
	return a.player.Close()
}

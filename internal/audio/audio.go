package audio

import (
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"

	"github.com/Versifine/diver/internal/event"
)

const (
	DefaultSampleRate = beep.SampleRate(44100)
	splashDuration    = 120 * time.Millisecond
	splashBaseFreq    = 880.0
	splashMinFreq     = 220.0
)

// Speaker is the output device. The package-level beep speaker satisfies it
// through Init.
type Speaker interface {
	Play(s ...beep.Streamer)
}

type deviceSpeaker struct{}

func (deviceSpeaker) Play(s ...beep.Streamer) { speaker.Play(s...) }

// Player plays a short tone whenever the diver enters the water.
type Player struct {
	out        Speaker
	sampleRate beep.SampleRate
	device     bool
	played     atomic.Uint64
}

// Init opens the system speaker. Callers treat an error as "no sound".
func Init() (*Player, error) {
	sr := DefaultSampleRate
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return nil, err
	}
	p := New(deviceSpeaker{}, sr)
	p.device = true
	return p, nil
}

func New(out Speaker, sampleRate beep.SampleRate) *Player {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Player{out: out, sampleRate: sampleRate}
}

func (p *Player) Subscribe(bus *event.Bus) {
	bus.Subscribe(event.EventSurface, p.onSurface)
}

func (p *Player) onSurface(raw any) {
	evt, ok := raw.(event.SurfaceEvent)
	if !ok || !evt.Submerged {
		return
	}
	p.Splash(evt.Speed)
}

// Splash plays the entry tone. Faster entries sound lower.
func (p *Player) Splash(speed float64) {
	if p == nil || p.out == nil {
		return
	}
	freq := SplashFrequency(speed)
	tone, err := generators.SineTone(p.sampleRate, freq)
	if err != nil {
		slog.Warn("Build splash tone failed", "freq", freq, "error", err)
		return
	}
	p.out.Play(beep.Take(p.sampleRate.N(splashDuration), tone))
	p.played.Add(1)
	slog.Debug("Splash played", "speed", speed, "freq", freq)
}

func (p *Player) Played() uint64 {
	return p.played.Load()
}

func (p *Player) Close() {
	if p != nil && p.device {
		speaker.Close()
	}
}

func SplashFrequency(speed float64) float64 {
	if speed < 0 || math.IsNaN(speed) {
		speed = 0
	}
	return math.Max(splashMinFreq, splashBaseFreq/(1+speed/10))
}

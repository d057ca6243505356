package notify

import (
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
	"github.com/rs/zerolog"
)

const chimeSampleRate = beep.SampleRate(44100)

// Chime plays a short tone for every notification.
type Chime struct {
	freq     float64
	duration time.Duration
	log      zerolog.Logger

	once    sync.Once
	initErr error
}

func NewChime(freq float64, duration time.Duration, log zerolog.Logger) *Chime {
	if freq <= 0 {
		freq = 880
	}
	if duration <= 0 {
		duration = 150 * time.Millisecond
	}
	return &Chime{freq: freq, duration: duration, log: log}
}

func (c *Chime) init() error {
	c.once.Do(func() {
		c.initErr = speaker.Init(chimeSampleRate, chimeSampleRate.N(time.Second/10))
	})
	return c.initErr
}

func (c *Chime) Notify(title, body string) <-chan error {
	return dispatch(c.log, "chime", func() error {
		if err := c.init(); err != nil {
			return err
		}
		sine, err := generators.SineTone(chimeSampleRate, c.freq)
		if err != nil {
			return err
		}
		speaker.Play(beep.Take(chimeSampleRate.N(c.duration), sine))
		return nil
	})
}

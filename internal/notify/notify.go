// Package notify delivers loot and death notifications outside the game.
// Every Notify call runs in the background; callers may ignore the result
// channel.
package notify

import (
	"errors"

	"github.com/rs/zerolog"
)

// Service sends a notification. The returned channel yields exactly one
// result and is then closed.
type Service interface {
	Notify(title, body string) <-chan error
}

func dispatch(log zerolog.Logger, service string, send func() error) <-chan error {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		err := send()
		if err != nil {
			log.Error().Err(err).Str("service", service).Msg("Failed to send notification")
		}
		ch <- err
	}()
	return ch
}

// Log writes notifications to the log only.
type Log struct {
	log zerolog.Logger
}

func NewLog(log zerolog.Logger) *Log { return &Log{log: log} }

func (l *Log) Notify(title, body string) <-chan error {
	l.log.Info().Str("title", title).Str("body", body).Msg("Notification")
	ch := make(chan error, 1)
	ch <- nil
	close(ch)
	return ch
}

// Multi fans a notification out to several services.
type Multi []Service

func (m Multi) Notify(title, body string) <-chan error {
	results := make([]<-chan error, 0, len(m))
	for _, s := range m {
		results = append(results, s.Notify(title, body))
	}
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		var errs []error
		for _, r := range results {
			if err := <-r; err != nil {
				errs = append(errs, err)
			}
		}
		ch <- errors.Join(errs...)
	}()
	return ch
}

// Observe calls fn for every notification before forwarding it.
func Observe(s Service, fn func(title, body string)) Service {
	return observed{next: s, fn: fn}
}

type observed struct {
	next Service
	fn   func(title, body string)
}

func (o observed) Notify(title, body string) <-chan error {
	o.fn(title, body)
	return o.next.Notify(title, body)
}

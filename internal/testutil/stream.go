package testutil

import (
	"iter"
	"sync/atomic"

	"github.com/hupe1980/tripmesh/core"
)

// Stream is a scripted event sequence that records how far it was consumed.
type Stream struct {
	Events []core.Event
	// Err is yielded after the last event when set.
	Err error

	pulled atomic.Int32
}

// NewStream scripts the given events.
func NewStream(events ...core.Event) *Stream { return &Stream{Events: events} }

// Seq returns the sequence. Every range over it starts from the first event.
func (s *Stream) Seq() iter.Seq2[core.Event, error] {
	return func(yield func(core.Event, error) bool) {
		for _, ev := range s.Events {
			s.pulled.Add(1)

			if !yield(ev, nil) {
				return
			}
		}

		if s.Err != nil {
			yield(core.Event{}, s.Err)
		}
	}
}

// Pulled reports how many events were handed to consumers.
func (s *Stream) Pulled() int { return int(s.pulled.Load()) }

package rag

import (
	"io"
	"sync"

	"github.com/docchat-dev/docchat/internal/model"
)

type EventType string

const (
	EventToken   EventType = "token"
	EventSources EventType = "sources"
	EventDone    EventType = "done"
	EventError   EventType = "error"
)

// QueryEvent is one element of a streaming answer. Within a stream all token
// events precede the single sources event, which precedes the single
// terminal done event. The empty-retrieval path carries no sources event at
// all.
type QueryEvent struct {
	Type    EventType          `json:"type"`
	Content string             `json:"content,omitempty"`
	Sources []model.SourceInfo `json:"sources,omitempty"`
}

// EventStream is a lazily-pulled, cancellable sequence of QueryEvents. Recv
// returns io.EOF once the done event has been delivered. Close abandons the
// stream and releases the underlying provider connection; abandoning early
// commits no side effect anywhere, so transcript persistence is entirely the
// consumer's job after it observes done.
type EventStream struct {
	events chan QueryEvent
	errCh  chan error
	stop   chan struct{}

	closeOnce sync.Once
}

func newEventStream() *EventStream {
	return &EventStream{
		events: make(chan QueryEvent),
		errCh:  make(chan error, 1),
		stop:   make(chan struct{}),
	}
}

func (s *EventStream) Recv() (QueryEvent, error) {
	event, ok := <-s.events
	if !ok {
		select {
		case err := <-s.errCh:
			return QueryEvent{}, err
		default:
			return QueryEvent{}, io.EOF
		}
	}
	return event, nil
}

func (s *EventStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
	return nil
}

// emit delivers one event unless the consumer has closed the stream.
func (s *EventStream) emit(event QueryEvent) bool {
	select {
	case s.events <- event:
		return true
	case <-s.stop:
		return false
	}
}

func (s *EventStream) finish(err error) {
	if err != nil {
		s.errCh <- err
	}
	close(s.events)
}

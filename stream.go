package copilot

import "sync"

// EventStream is an iterator over the events of one turn.
// Usage:
//
//	stream := session.Stream(ctx, copilot.MessageOptions{Prompt: "prompt"})
//	for stream.Next() {
//	    event := stream.Current()
//	    // handle event
//	}
//	if err := stream.Err(); err != nil {
//	    // handle error
//	}
type EventStream struct {
	events  chan SessionEvent
	fin     chan struct{}
	current SessionEvent
	err     error
	done    bool

	once     sync.Once
	mu       sync.Mutex
	finished bool
	onFinish func()
}

func newEventStream() *EventStream {
	return &EventStream{
		events: make(chan SessionEvent, DefaultStreamBufferSize),
		fin:    make(chan struct{}),
	}
}

// finish ends the stream with err. Only the first call has an effect.
func (s *EventStream) finish(err error) {
	s.once.Do(func() {
		s.err = err
		s.mu.Lock()
		s.finished = true
		fn := s.onFinish
		s.mu.Unlock()
		close(s.fin)
		if fn != nil {
			fn()
		}
	})
}

// setOnFinish registers fn to run when the stream ends, running it at once
// if the stream already ended.
func (s *EventStream) setOnFinish(fn func()) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		fn()
		return
	}
	s.onFinish = fn
	s.mu.Unlock()
}

// Next advances to the next event. Returns false when the stream is exhausted
// or an error has occurred. Events queued before the end are still returned.
func (s *EventStream) Next() bool {
	if s.done {
		return false
	}
	select {
	case ev := <-s.events:
		s.current = ev
		return true
	case <-s.fin:
	}
	select {
	case ev := <-s.events:
		s.current = ev
		return true
	default:
		s.done = true
		return false
	}
}

// Current returns the most recent event returned by Next.
func (s *EventStream) Current() SessionEvent {
	return s.current
}

// Err returns the error that ended the stream, if any. It is valid once
// Next has returned false.
func (s *EventStream) Err() error {
	if !s.done {
		return nil
	}
	return s.err
}

// Close stops the stream early.
func (s *EventStream) Close() {
	s.finish(nil)
}

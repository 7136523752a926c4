package services

import "sync"

// sequencer runs jobs one at a time per key, in submission order. Each key gets a worker
// goroutine while it has pending jobs; the worker exits once its queue drains.
type sequencer struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

type lane struct {
	jobs    chan func()
	pending int
}

func newSequencer() *sequencer {
	return &sequencer{lanes: make(map[string]*lane)}
}

// Do runs fn on key's lane and waits for it to finish.
func (s *sequencer) Do(key string, fn func()) {
	done := make(chan struct{})

	s.mu.Lock()
	l, ok := s.lanes[key]
	if !ok {
		l = &lane{jobs: make(chan func(), 64)}
		s.lanes[key] = l
		go s.run(key, l)
	}
	l.pending++
	s.mu.Unlock()

	l.jobs <- func() {
		defer close(done)
		fn()
	}
	<-done
}

func (s *sequencer) run(key string, l *lane) {
	for job := range l.jobs {
		job()

		s.mu.Lock()
		l.pending--
		if l.pending == 0 {
			delete(s.lanes, key)
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}

// active reports how many keys currently own a worker.
func (s *sequencer) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lanes)
}

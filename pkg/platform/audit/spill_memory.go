package audit

import (
	"context"
	"sync"
)

// MemorySpill is an in-process spill queue for tests and deployments without
// Redis. Unlike RedisSpill it does not survive the process.
type MemorySpill struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySpill() *MemorySpill {
	return &MemorySpill{}
}

func (s *MemorySpill) Push(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemorySpill) Pop(_ context.Context) (Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return Event{}, false, nil
	}
	event := s.events[0]
	s.events = s.events[1:]
	return event, true, nil
}

func (s *MemorySpill) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

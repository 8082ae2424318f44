package redaction

import (
	"context"
	"sort"
	"sync"

	id "runadata/pkg/domain"
	"runadata/pkg/platform/sentinel"
)

// TranscriptStore is the persistence contract for transcripts.
type TranscriptStore interface {
	FindByID(ctx context.Context, tenantID id.TenantID, transcriptID id.TranscriptID) (*Transcript, error)
	// Update persists the redacted messages and stamps. The write replaces
	// the whole message set in one commit.
	Update(ctx context.Context, transcript *Transcript) error
	// ListPending returns up to limit transcripts that still await
	// pseudonymization, oldest first.
	ListPending(ctx context.Context, limit int) ([]*Transcript, error)
}

// MemoryTranscriptStore holds transcripts in process.
type MemoryTranscriptStore struct {
	mu          sync.RWMutex
	transcripts map[id.TranscriptID]*Transcript
}

func NewMemoryTranscriptStore() *MemoryTranscriptStore {
	return &MemoryTranscriptStore{transcripts: make(map[id.TranscriptID]*Transcript)}
}

// Seed inserts a transcript. Test and ingestion helper.
func (s *MemoryTranscriptStore) Seed(t *Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[t.ID] = copyTranscript(t)
}

func (s *MemoryTranscriptStore) FindByID(_ context.Context, tenantID id.TenantID, transcriptID id.TranscriptID) (*Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transcripts[transcriptID]
	if !ok || t.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	return copyTranscript(t), nil
}

func (s *MemoryTranscriptStore) Update(_ context.Context, transcript *Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transcripts[transcript.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.transcripts[transcript.ID] = copyTranscript(transcript)
	return nil
}

func (s *MemoryTranscriptStore) ListPending(_ context.Context, limit int) ([]*Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Transcript
	for _, t := range s.transcripts {
		if t.IsPseudonymized {
			continue
		}
		out = append(out, copyTranscript(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyTranscript(t *Transcript) *Transcript {
	out := *t
	out.Messages = append([]Message{}, t.Messages...)
	if t.PseudonymizedAt != nil {
		at := *t.PseudonymizedAt
		out.PseudonymizedAt = &at
	}
	return &out
}

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process BehavioralStore for tests and servers run
// without a database. Data is lost on exit.
type MemoryStore struct {
	mu        sync.Mutex
	sessions  map[string]LiveSession
	summaries map[int64][]BehavioralSummary
	now       func() time.Time
}

var _ BehavioralStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]LiveSession),
		summaries: make(map[int64][]BehavioralSummary),
		now:       time.Now,
	}
}

func (m *MemoryStore) PutSession(_ context.Context, session *LiveSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session.CreatedAt == 0 {
		session.CreatedAt = m.now().Unix()
	}
	m.sessions[session.ID] = *session
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, sessionID string) (*LiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if m.now().After(time.Unix(session.CreatedAt, 0).Add(SessionTTL)) {
		delete(m.sessions, sessionID)
		return nil, nil
	}
	return &session, nil
}

func (m *MemoryStore) FinishSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[sessionID]; ok {
		session.Status = StatusFinished
		m.sessions[sessionID] = session
	}
	return nil
}

func (m *MemoryStore) PutSummary(_ context.Context, summary *BehavioralSummary) error {
	if summary.UserID <= 0 {
		return ErrInvalidUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if summary.ID == "" {
		summary.ID = uuid.NewString()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = m.now().UTC()
	}
	summary.normalize()
	m.summaries[summary.UserID] = append(m.summaries[summary.UserID], *summary)
	return nil
}

func (m *MemoryStore) RecentSummaries(_ context.Context, userID int64, limit int) ([]*BehavioralSummary, error) {
	if userID <= 0 {
		return nil, ErrInvalidUser
	}
	m.mu.Lock()
	all := append([]BehavioralSummary(nil), m.summaries[userID]...)
	m.mu.Unlock()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if n := clampLimit(limit); len(all) > n {
		all = all[:n]
	}
	out := make([]*BehavioralSummary, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

package artifact

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/consultflow/types"
)

// MemoryStore 内存实现，用于开发与测试。重启后数据丢失。
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]*Artifact
	closed    bool
}

// NewMemoryStore 创建内存存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		artifacts: make(map[string]*Artifact),
	}
}

func (s *MemoryStore) Create(ctx context.Context, a *Artifact) error {
	if a == nil || a.ID == "" || a.ClientID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	s.artifacts[a.ID] = a.Clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	a, ok := s.artifacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func (s *MemoryStore) ListByClient(ctx context.Context, clientID string, limit int) ([]*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var out []*Artifact
	for _, a := range s.artifacts {
		if a.ClientID == clientID {
			out = append(out, a.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) AppendDependent(ctx context.Context, id, dependentID string) error {
	if dependentID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	a, ok := s.artifacts[id]
	if !ok {
		return ErrNotFound
	}

	for _, d := range a.Dependents {
		if d == dependentID {
			return nil
		}
	}
	a.Dependents = append(a.Dependents, dependentID)
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) StageStats(ctx context.Context, clientID string) ([]StageStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	byStage := make(map[types.Stage]*StageStats)
	for _, a := range s.artifacts {
		if a.ClientID != clientID {
			continue
		}
		st, ok := byStage[a.Stage]
		if !ok {
			st = &StageStats{Stage: a.Stage}
			byStage[a.Stage] = st
		}
		st.Count++
		if a.Status == types.ArtifactCompleted {
			st.Completed++
		}
		st.AvgQuality += a.Metadata.QualityScore
		if a.CreatedAt.After(st.LastAt) {
			st.LastAt = a.CreatedAt
		}
	}

	out := make([]StageStats, 0, len(byStage))
	for _, st := range byStage {
		st.AvgQuality /= float64(st.Count)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stage < out[j].Stage })
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

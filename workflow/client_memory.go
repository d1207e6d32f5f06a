package workflow

import (
	"context"
	"sync"

	"github.com/BaSui01/consultflow/types"
)

// MemoryClientStore 内存客户记录，用于开发与测试。
type MemoryClientStore struct {
	mu      sync.RWMutex
	clients map[string]map[DeliverableType]DeliverableState
}

// NewMemoryClientStore 创建内存客户存储。
func NewMemoryClientStore() *MemoryClientStore {
	return &MemoryClientStore{
		clients: make(map[string]map[DeliverableType]DeliverableState),
	}
}

// AddClient 登记一个客户。
func (s *MemoryClientStore) AddClient(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[clientID]; !ok {
		s.clients[clientID] = make(map[DeliverableType]DeliverableState)
	}
}

func (s *MemoryClientStore) Exists(ctx context.Context, clientID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.clients[clientID]
	return ok, nil
}

func (s *MemoryClientStore) UpdateWorkflowStatus(ctx context.Context, clientID string, deliverable DeliverableType, status types.DeliverableStatus, result *StageResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.clients[clientID]
	if !ok {
		return types.NewErrorf(types.ErrClientNotFound, "client %s not found", clientID)
	}
	state[deliverable] = DeliverableState{
		Deliverable: deliverable,
		Status:      status,
		Result:      result,
	}
	return nil
}

func (s *MemoryClientStore) WorkflowState(ctx context.Context, clientID string) (map[DeliverableType]DeliverableState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.clients[clientID]
	if !ok {
		return nil, types.NewErrorf(types.ErrClientNotFound, "client %s not found", clientID)
	}
	out := make(map[DeliverableType]DeliverableState, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out, nil
}

package middleware_test

import (
	"context"

	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
type MockStore struct {
	data map[string]*domain.PendingSlotState
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.PendingSlotState),
	}
}

func (s *MockStore) Save(ctx context.Context, identity string, state *domain.PendingSlotState) error {
	s.data[identity] = state
	return nil
}

func (s *MockStore) Load(ctx context.Context, identity string) (*domain.PendingSlotState, error) {
	state, ok := s.data[identity]
	if !ok {
		return nil, domain.ErrNoPendingCall
	}
	return state, nil
}

func (s *MockStore) Delete(ctx context.Context, identity string) error {
	delete(s.data, identity)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.SlotStore = (*MockStore)(nil)

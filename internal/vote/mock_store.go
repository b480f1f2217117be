package vote

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) EntrySetlist(ctx context.Context, entryID string) (string, error) {
	args := m.Called(ctx, entryID)
	return args.String(0), args.Error(1)
}

func (m *MockStore) CastVote(ctx context.Context, entryID, userID string) (bool, error) {
	args := m.Called(ctx, entryID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) RemoveVote(ctx context.Context, entryID, userID string) (bool, error) {
	args := m.Called(ctx, entryID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) VoteCount(ctx context.Context, entryID string) (int, error) {
	args := m.Called(ctx, entryID)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) HasVote(ctx context.Context, entryID, userID string) (bool, error) {
	args := m.Called(ctx, entryID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) SetlistTally(ctx context.Context, setlistID, userID string) ([]EntryTally, error) {
	args := m.Called(ctx, setlistID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]EntryTally), args.Error(1)
}

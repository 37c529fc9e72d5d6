package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"socialnet/internal/session"
)

type SessionStore struct {
	mock.Mock
}

func (m *SessionStore) Resolve(ctx context.Context, token string) (session.Identity, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(session.Identity), args.Error(1)
}

func (m *SessionStore) Touch(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *SessionStore) Create(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *SessionStore) Destroy(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

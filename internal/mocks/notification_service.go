package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"socialnet/internal/bus"
	"socialnet/internal/domain"
)

type NotificationService struct {
	mock.Mock
}

func (m *NotificationService) HandleDomainEvent(ctx context.Context, event domain.CommentCreatedEvent) (*domain.Notification, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *NotificationService) HandleMessage(ctx context.Context, msg bus.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, params domain.PaginationParams) (domain.PaginatedResponse[domain.Notification], error) {
	args := m.Called(ctx, userID, unreadOnly, params)
	return args.Get(0).(domain.PaginatedResponse[domain.Notification]), args.Error(1)
}

func (m *NotificationService) GetUnreadCount(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *NotificationService) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	args := m.Called(ctx, userID, ids)
	return args.Get(0).(int64), args.Error(1)
}

package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"socialnet/internal/bus"
	"socialnet/internal/domain"
	"socialnet/internal/pkg/metrics"
	"socialnet/internal/repository"
)

var (
	ErrPersistence    = errors.New("notification could not be persisted")
	ErrMalformedEvent = errors.New("malformed domain event")
	ErrNoIDs          = errors.New("ids must be a non-empty array")
	ErrInvalidID      = errors.New("invalid notification id")
)

type Service interface {
	HandleDomainEvent(ctx context.Context, event domain.CommentCreatedEvent) (*domain.Notification, error)
	HandleMessage(ctx context.Context, msg bus.Message) error

	List(ctx context.Context, userID string, unreadOnly bool, params domain.PaginationParams) (domain.PaginatedResponse[domain.Notification], error)
	GetUnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID string, ids []string) (int64, error)
}

type service struct {
	notifRepo       repository.NotificationRepository
	publisher       bus.Publisher
	dispatchChannel string
	log             *zap.Logger
	now             func() time.Time
}

func NewService(
	notifRepo repository.NotificationRepository,
	publisher bus.Publisher,
	dispatchChannel string,
	log *zap.Logger,
) Service {
	return &service{
		notifRepo:       notifRepo,
		publisher:       publisher,
		dispatchChannel: dispatchChannel,
		log:             log,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// HandleDomainEvent persists a notification for the event's recipient and
// then announces it on the dispatch channel. Events without a recipient, or
// where the actor is the recipient, are skipped and return (nil, nil).
//
// Publish only follows a successful persist. A failed publish is logged and
// swallowed: the stored notification is still reachable through List.
func (s *service) HandleDomainEvent(ctx context.Context, event domain.CommentCreatedEvent) (*domain.Notification, error) {
	recipient := strings.TrimSpace(event.Recipient())
	if recipient == "" {
		return nil, nil
	}
	if event.ActorID != "" && event.ActorID == recipient {
		return nil, nil
	}
	if event.Type == "" || event.Message == "" {
		return nil, fmt.Errorf("%w: missing type or message", ErrMalformedEvent)
	}

	notif := &domain.Notification{
		ID:              uuid.New(),
		RecipientUserID: recipient,
		Kind:            event.Type,
		Message:         event.Message,
		CreatedAt:       s.now(),
	}
	if entityType, entityID, ok := originatingEntity(event); ok {
		notif.OriginatingEntityType = &entityType
		notif.OriginatingEntityID = &entityID
	}

	if err := s.notifRepo.Create(ctx, notif); err != nil {
		s.log.Error("failed to persist notification",
			zap.String("recipient", recipient),
			zap.String("kind", string(event.Type)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.NotificationsCreated.WithLabelValues(string(notif.Kind)).Inc()

	payload, err := json.Marshal(notif.DispatchMessage())
	if err != nil {
		s.log.Error("failed to encode dispatch message", zap.String("id", notif.ID.String()), zap.Error(err))
		return notif, nil
	}

	if err := s.publisher.Publish(ctx, s.dispatchChannel, payload); err != nil {
		metrics.BusPublishFailures.WithLabelValues(s.dispatchChannel).Inc()
		s.log.Warn("dispatch publish failed; notification remains available for polling",
			zap.String("id", notif.ID.String()),
			zap.String("recipient", recipient),
			zap.Error(err))
	}

	return notif, nil
}

// originatingEntity points replies at the reply comment and everything else
// at the post.
func originatingEntity(event domain.CommentCreatedEvent) (domain.EntityType, string, bool) {
	if event.Type == domain.NotifReplyToComment && event.CommentID != "" {
		return domain.EntityComment, event.CommentID, true
	}
	if event.PostID != "" {
		return domain.EntityPost, event.PostID, true
	}
	return "", "", false
}

// HandleMessage adapts HandleDomainEvent to the bus consumer.
func (s *service) HandleMessage(ctx context.Context, msg bus.Message) error {
	var event domain.CommentCreatedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	_, err := s.HandleDomainEvent(ctx, event)
	return err
}

func (s *service) List(ctx context.Context, userID string, unreadOnly bool, params domain.PaginationParams) (domain.PaginatedResponse[domain.Notification], error) {
	params.Validate()
	notifications, total, err := s.notifRepo.ListByRecipient(ctx, userID, unreadOnly, params)
	if err != nil {
		return domain.PaginatedResponse[domain.Notification]{}, err
	}

	return domain.NewPaginatedResponse(notifications, params.Page, params.PageSize, total), nil
}

func (s *service) GetUnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.notifRepo.CountUnread(ctx, userID)
}

func (s *service) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrNoIDs
	}

	parsed := make([]uuid.UUID, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidID, raw)
		}
		parsed = append(parsed, id)
	}

	return s.notifRepo.MarkRead(ctx, userID, parsed)
}

package notification_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"socialnet/internal/bus"
	"socialnet/internal/domain"
	"socialnet/internal/mocks"
	"socialnet/internal/service/notification"
)

const dispatchChannel = "notifications_created_to_dispatch"

func strPtr(s string) *string { return &s }

func newService() (notification.Service, *mocks.NotificationRepository, *mocks.Publisher) {
	repo := new(mocks.NotificationRepository)
	pub := new(mocks.Publisher)
	return notification.NewService(repo, pub, dispatchChannel, zap.NewNop()), repo, pub
}

func TestHandleDomainEvent_CommentOnPost(t *testing.T) {
	svc, repo, pub := newService()
	ctx := context.Background()
	postID := uuid.NewString()

	var order []string
	repo.On("Create", ctx, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.RecipientUserID == "alice" &&
			n.Kind == domain.NotifCommentOnPost &&
			n.Message == domain.MsgSomeoneCommented &&
			!n.Read &&
			n.OriginatingEntityID != nil && *n.OriginatingEntityID == postID
	})).Run(func(mock.Arguments) { order = append(order, "persist") }).Return(nil).Once()

	pub.On("Publish", ctx, dispatchChannel, mock.MatchedBy(func(payload []byte) bool {
		var msg domain.DispatchMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return false
		}
		return msg.RecipientUserID == "alice" && msg.Kind == domain.NotifCommentOnPost && msg.ID != ""
	})).Run(func(mock.Arguments) { order = append(order, "publish") }).Return(nil).Once()

	notif, err := svc.HandleDomainEvent(ctx, domain.CommentCreatedEvent{
		UserID:  strPtr("alice"),
		ActorID: "bob",
		PostID:  postID,
		Type:    domain.NotifCommentOnPost,
		Message: domain.MsgSomeoneCommented,
	})

	require.NoError(t, err)
	require.NotNil(t, notif)
	assert.Equal(t, "alice", notif.RecipientUserID)
	assert.Equal(t, []string{"persist", "publish"}, order)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestHandleDomainEvent_ReplyPointsAtComment(t *testing.T) {
	svc, repo, pub := newService()
	ctx := context.Background()
	commentID := uuid.NewString()

	repo.On("Create", ctx, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.OriginatingEntityType != nil && *n.OriginatingEntityType == domain.EntityComment &&
			n.OriginatingEntityID != nil && *n.OriginatingEntityID == commentID
	})).Return(nil).Once()
	pub.On("Publish", ctx, dispatchChannel, mock.Anything).Return(nil).Once()

	notif, err := svc.HandleDomainEvent(ctx, domain.CommentCreatedEvent{
		UserID:    strPtr("carol"),
		ActorID:   "bob",
		PostID:    uuid.NewString(),
		CommentID: commentID,
		Type:      domain.NotifReplyToComment,
		Message:   domain.MsgSomeoneReplied,
	})

	require.NoError(t, err)
	require.NotNil(t, notif)
	repo.AssertExpectations(t)
}

func TestHandleDomainEvent_SkipsWithoutRecipient(t *testing.T) {
	svc, repo, pub := newService()

	t.Run("nil user id", func(t *testing.T) {
		notif, err := svc.HandleDomainEvent(context.Background(), domain.CommentCreatedEvent{
			Type:    domain.NotifCommentOnPost,
			Message: domain.MsgSomeoneCommented,
		})
		assert.NoError(t, err)
		assert.Nil(t, notif)
	})

	t.Run("empty user id", func(t *testing.T) {
		notif, err := svc.HandleDomainEvent(context.Background(), domain.CommentCreatedEvent{
			UserID:  strPtr(""),
			Type:    domain.NotifCommentOnPost,
			Message: domain.MsgSomeoneCommented,
		})
		assert.NoError(t, err)
		assert.Nil(t, notif)
	})

	t.Run("actor is recipient", func(t *testing.T) {
		notif, err := svc.HandleDomainEvent(context.Background(), domain.CommentCreatedEvent{
			UserID:  strPtr("alice"),
			ActorID: "alice",
			Type:    domain.NotifCommentOnPost,
			Message: domain.MsgSomeoneCommented,
		})
		assert.NoError(t, err)
		assert.Nil(t, notif)
	})

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleDomainEvent_PersistFailureSkipsPublish(t *testing.T) {
	svc, repo, pub := newService()
	ctx := context.Background()

	repo.On("Create", ctx, mock.Anything).Return(errors.New("connection refused")).Once()

	notif, err := svc.HandleDomainEvent(ctx, domain.CommentCreatedEvent{
		UserID:  strPtr("alice"),
		Type:    domain.NotifReplyToComment,
		Message: domain.MsgSomeoneReplied,
	})

	assert.ErrorIs(t, err, notification.ErrPersistence)
	assert.Nil(t, notif)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleDomainEvent_PublishFailureIsSwallowed(t *testing.T) {
	svc, repo, pub := newService()
	ctx := context.Background()

	repo.On("Create", ctx, mock.Anything).Return(nil).Once()
	pub.On("Publish", ctx, dispatchChannel, mock.Anything).Return(bus.ErrBusUnavailable).Once()

	notif, err := svc.HandleDomainEvent(ctx, domain.CommentCreatedEvent{
		UserID:  strPtr("alice"),
		Type:    domain.NotifCommentOnPost,
		Message: domain.MsgSomeoneCommented,
	})

	assert.NoError(t, err)
	require.NotNil(t, notif)
	assert.Nil(t, notif.OriginatingEntityID)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestHandleDomainEvent_RejectsIncompleteEvent(t *testing.T) {
	svc, repo, _ := newService()

	_, err := svc.HandleDomainEvent(context.Background(), domain.CommentCreatedEvent{
		UserID: strPtr("alice"),
	})

	assert.ErrorIs(t, err, notification.ErrMalformedEvent)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestHandleMessage(t *testing.T) {
	t.Run("malformed payload", func(t *testing.T) {
		svc, repo, _ := newService()

		err := svc.HandleMessage(context.Background(), bus.Message{Channel: "comments_created", Payload: []byte("{not json")})

		assert.ErrorIs(t, err, notification.ErrMalformedEvent)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("decodes and handles", func(t *testing.T) {
		svc, repo, pub := newService()
		repo.On("Create", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
			return n.RecipientUserID == "carol" && n.Kind == domain.NotifReplyToComment
		})).Return(nil).Once()
		pub.On("Publish", mock.Anything, dispatchChannel, mock.Anything).Return(nil).Once()

		payload := []byte(`{"userId":"carol","actorId":"bob","postId":"p1","type":"reply","message":"notifications.someone_replied"}`)
		err := svc.HandleMessage(context.Background(), bus.Message{Channel: "comments_created", Payload: payload})

		assert.NoError(t, err)
		repo.AssertExpectations(t)
		pub.AssertExpectations(t)
	})
}

func TestList(t *testing.T) {
	svc, repo, _ := newService()
	ctx := context.Background()

	items := []domain.Notification{{ID: uuid.New(), RecipientUserID: "alice"}}
	repo.On("ListByRecipient", ctx, "alice", true, domain.PaginationParams{Page: 1, PageSize: 50}).
		Return(items, int64(1), nil).Once()

	resp, err := svc.List(ctx, "alice", true, domain.PaginationParams{})

	require.NoError(t, err)
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, 1, resp.TotalPages)
	assert.False(t, resp.HasNext)
}

func TestMarkRead(t *testing.T) {
	svc, repo, _ := newService()
	ctx := context.Background()

	t.Run("empty id set", func(t *testing.T) {
		_, err := svc.MarkRead(ctx, "alice", nil)
		assert.ErrorIs(t, err, notification.ErrNoIDs)
	})

	t.Run("invalid id", func(t *testing.T) {
		_, err := svc.MarkRead(ctx, "alice", []string{"nope"})
		assert.ErrorIs(t, err, notification.ErrInvalidID)
	})

	t.Run("marks owned notifications", func(t *testing.T) {
		id := uuid.New()
		repo.On("MarkRead", ctx, "alice", []uuid.UUID{id}).Return(int64(1), nil).Once()

		n, err := svc.MarkRead(ctx, "alice", []string{id.String()})

		assert.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

package post_test

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

	"socialnet/internal/domain"
	"socialnet/internal/mocks"
	"socialnet/internal/service/post"
)

const commentChannel = "comments_created"

func newService() (post.Service, *mocks.PostRepository, *mocks.CommentRepository, *mocks.Publisher) {
	posts := new(mocks.PostRepository)
	comments := new(mocks.CommentRepository)
	pub := new(mocks.Publisher)
	return post.NewService(posts, comments, pub, commentChannel, zap.NewNop()), posts, comments, pub
}

func captureEvents(pub *mocks.Publisher) *[]domain.CommentCreatedEvent {
	var events []domain.CommentCreatedEvent
	pub.On("Publish", mock.Anything, commentChannel, mock.Anything).Run(func(args mock.Arguments) {
		var e domain.CommentCreatedEvent
		if err := json.Unmarshal(args.Get(2).([]byte), &e); err == nil {
			events = append(events, e)
		}
	}).Return(nil)
	return &events
}

func TestCreateComment_NotifiesPostOwner(t *testing.T) {
	svc, posts, comments, pub := newService()
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	p := &domain.Post{ID: uuid.New(), UserID: alice}

	posts.On("GetByID", ctx, p.ID).Return(p, nil).Once()
	comments.On("Create", ctx, mock.MatchedBy(func(c *domain.Comment) bool {
		return c.UserID == bob && c.PostID == p.ID && c.Text == "nice"
	})).Return(nil).Once()
	events := captureEvents(pub)

	comment, err := svc.CreateComment(ctx, bob, domain.CreateCommentInput{PostID: p.ID, Text: " nice "})

	require.NoError(t, err)
	require.NotNil(t, comment)
	require.Len(t, *events, 1)
	e := (*events)[0]
	require.NotNil(t, e.UserID)
	assert.Equal(t, alice.String(), *e.UserID)
	assert.Equal(t, bob.String(), e.ActorID)
	assert.Equal(t, domain.NotifCommentOnPost, e.Type)
	assert.Equal(t, domain.MsgSomeoneCommented, e.Message)
	assert.Equal(t, p.ID.String(), e.PostID)
}

func TestCreateComment_SelfCommentHasNoRecipient(t *testing.T) {
	svc, posts, comments, pub := newService()
	ctx := context.Background()
	alice := uuid.New()
	p := &domain.Post{ID: uuid.New(), UserID: alice}

	posts.On("GetByID", ctx, p.ID).Return(p, nil).Once()
	comments.On("Create", ctx, mock.Anything).Return(nil).Once()
	events := captureEvents(pub)

	_, err := svc.CreateComment(ctx, alice, domain.CreateCommentInput{PostID: p.ID, Text: "bump"})

	require.NoError(t, err)
	require.Len(t, *events, 1)
	assert.Nil(t, (*events)[0].UserID)
}

func TestCreateComment_ReplyNotifiesBothOwners(t *testing.T) {
	svc, posts, comments, pub := newService()
	ctx := context.Background()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	p := &domain.Post{ID: uuid.New(), UserID: alice}
	parent := &domain.Comment{ID: uuid.New(), PostID: p.ID, UserID: bob}

	posts.On("GetByID", ctx, p.ID).Return(p, nil).Once()
	comments.On("GetByID", ctx, parent.ID).Return(parent, nil).Once()
	comments.On("Create", ctx, mock.MatchedBy(func(c *domain.Comment) bool {
		return c.ParentID != nil && *c.ParentID == parent.ID
	})).Return(nil).Once()
	events := captureEvents(pub)

	_, err := svc.CreateComment(ctx, carol, domain.CreateCommentInput{PostID: p.ID, ParentCommentID: &parent.ID, Text: "agreed"})

	require.NoError(t, err)
	require.Len(t, *events, 2)
	assert.Equal(t, alice.String(), *(*events)[0].UserID)
	assert.Equal(t, domain.NotifCommentOnPost, (*events)[0].Type)
	assert.Equal(t, bob.String(), *(*events)[1].UserID)
	assert.Equal(t, domain.NotifReplyToComment, (*events)[1].Type)
	assert.Equal(t, domain.MsgSomeoneReplied, (*events)[1].Message)
}

func TestCreateComment_PublishFailureKeepsComment(t *testing.T) {
	svc, posts, comments, pub := newService()
	ctx := context.Background()
	p := &domain.Post{ID: uuid.New(), UserID: uuid.New()}

	posts.On("GetByID", ctx, p.ID).Return(p, nil).Once()
	comments.On("Create", ctx, mock.Anything).Return(nil).Once()
	pub.On("Publish", mock.Anything, commentChannel, mock.Anything).Return(errors.New("bus down")).Once()

	comment, err := svc.CreateComment(ctx, uuid.New(), domain.CreateCommentInput{PostID: p.ID, Text: "hi"})

	assert.NoError(t, err)
	assert.NotNil(t, comment)
}

func TestCreateComment_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("empty text", func(t *testing.T) {
		svc, _, _, _ := newService()
		_, err := svc.CreateComment(ctx, uuid.New(), domain.CreateCommentInput{PostID: uuid.New()})
		assert.ErrorIs(t, err, post.ErrParamsMissing)
	})

	t.Run("unknown post", func(t *testing.T) {
		svc, posts, _, _ := newService()
		id := uuid.New()
		posts.On("GetByID", ctx, id).Return(nil, nil).Once()

		_, err := svc.CreateComment(ctx, uuid.New(), domain.CreateCommentInput{PostID: id, Text: "hi"})

		assert.ErrorIs(t, err, post.ErrPostNotFound)
	})

	t.Run("parent on another post", func(t *testing.T) {
		svc, posts, comments, _ := newService()
		p := &domain.Post{ID: uuid.New(), UserID: uuid.New()}
		parent := &domain.Comment{ID: uuid.New(), PostID: uuid.New()}
		posts.On("GetByID", ctx, p.ID).Return(p, nil).Once()
		comments.On("GetByID", ctx, parent.ID).Return(parent, nil).Once()

		_, err := svc.CreateComment(ctx, uuid.New(), domain.CreateCommentInput{PostID: p.ID, ParentCommentID: &parent.ID, Text: "hi"})

		assert.ErrorIs(t, err, post.ErrParentMismatch)
		comments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestCreatePost(t *testing.T) {
	svc, posts, _, _ := newService()
	ctx := context.Background()
	owner := uuid.New()

	posts.On("Create", ctx, mock.MatchedBy(func(p *domain.Post) bool {
		return p.UserID == owner && p.Title == "Hello"
	})).Return(nil).Once()

	p, err := svc.CreatePost(ctx, owner, domain.CreatePostInput{Title: " Hello ", Content: "world"})

	require.NoError(t, err)
	assert.Equal(t, "Hello", p.Title)

	_, err = svc.CreatePost(ctx, owner, domain.CreatePostInput{Title: "only title"})
	assert.ErrorIs(t, err, post.ErrParamsMissing)
}

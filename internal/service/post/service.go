package post

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"socialnet/internal/bus"
	"socialnet/internal/domain"
	"socialnet/internal/repository"
)

var (
	ErrPostNotFound    = errors.New("errors.post_not_found")
	ErrCommentNotFound = errors.New("errors.comment_not_found")
	ErrParentMismatch  = errors.New("errors.parent_comment_not_on_post")
	ErrParamsMissing   = errors.New("errors.params_missing")
)

type Service interface {
	CreatePost(ctx context.Context, userID uuid.UUID, input domain.CreatePostInput) (*domain.Post, error)
	GetPost(ctx context.Context, id uuid.UUID) (*domain.Post, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params domain.PaginationParams) (domain.PaginatedResponse[domain.Post], error)
	CreateComment(ctx context.Context, userID uuid.UUID, input domain.CreateCommentInput) (*domain.Comment, error)
	GetComment(ctx context.Context, id uuid.UUID) (*domain.Comment, error)
}

type service struct {
	postRepo       repository.PostRepository
	commentRepo    repository.CommentRepository
	publisher      bus.Publisher
	commentChannel string
	log            *zap.Logger
}

func NewService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	publisher bus.Publisher,
	commentChannel string,
	log *zap.Logger,
) Service {
	return &service{
		postRepo:       postRepo,
		commentRepo:    commentRepo,
		publisher:      publisher,
		commentChannel: commentChannel,
		log:            log,
	}
}

func (s *service) CreatePost(ctx context.Context, userID uuid.UUID, input domain.CreatePostInput) (*domain.Post, error) {
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Content) == "" {
		return nil, ErrParamsMissing
	}

	post := &domain.Post{
		ID:      uuid.New(),
		UserID:  userID,
		Title:   strings.TrimSpace(input.Title),
		Content: input.Content,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *service) GetPost(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, params domain.PaginationParams) (domain.PaginatedResponse[domain.Post], error) {
	params.Validate()
	posts, total, err := s.postRepo.ListByUser(ctx, userID, params)
	if err != nil {
		return domain.PaginatedResponse[domain.Post]{}, err
	}
	return domain.NewPaginatedResponse(posts, params.Page, params.PageSize, total), nil
}

// CreateComment stores the comment and then publishes one event for the post
// owner and, for replies, one for the parent comment's owner.
func (s *service) CreateComment(ctx context.Context, userID uuid.UUID, input domain.CreateCommentInput) (*domain.Comment, error) {
	if strings.TrimSpace(input.Text) == "" || input.PostID == uuid.Nil {
		return nil, ErrParamsMissing
	}

	post, err := s.postRepo.GetByID(ctx, input.PostID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}

	var parent *domain.Comment
	if input.ParentCommentID != nil {
		parent, err = s.commentRepo.GetByID(ctx, *input.ParentCommentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, ErrCommentNotFound
		}
		if parent.PostID != post.ID {
			return nil, ErrParentMismatch
		}
	}

	comment := &domain.Comment{
		ID:       uuid.New(),
		PostID:   post.ID,
		UserID:   userID,
		ParentID: input.ParentCommentID,
		Text:     strings.TrimSpace(input.Text),
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	var parentOwner *string
	if parent != nil {
		parentOwner = recipient(parent.UserID, userID)
	}

	s.publish(ctx, domain.CommentCreatedEvent{
		UserID:               recipient(post.UserID, userID),
		ActorID:              userID.String(),
		ParentCommentOwnerID: parentOwner,
		PostID:               post.ID.String(),
		CommentID:            comment.ID.String(),
		Type:                 domain.NotifCommentOnPost,
		Message:              domain.MsgSomeoneCommented,
	})

	if parent != nil && parent.UserID != post.UserID {
		s.publish(ctx, domain.CommentCreatedEvent{
			UserID:               parentOwner,
			ActorID:              userID.String(),
			ParentCommentOwnerID: parentOwner,
			PostID:               post.ID.String(),
			CommentID:            comment.ID.String(),
			Type:                 domain.NotifReplyToComment,
			Message:              domain.MsgSomeoneReplied,
		})
	}

	return comment, nil
}

func (s *service) GetComment(ctx context.Context, id uuid.UUID) (*domain.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment == nil {
		return nil, ErrCommentNotFound
	}
	return comment, nil
}

// A failed publish costs a notification, never the comment.
func (s *service) publish(ctx context.Context, event domain.CommentCreatedEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error("failed to encode comment event", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, s.commentChannel, payload); err != nil {
		s.log.Warn("failed to publish comment event",
			zap.String("channel", s.commentChannel),
			zap.String("comment_id", event.CommentID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}
}

// recipient returns nil when the actor owns the target.
func recipient(owner, actor uuid.UUID) *string {
	if owner == actor {
		return nil
	}
	id := owner.String()
	return &id
}

package repository

import (
	"github.com/jmoiron/sqlx"
)

type Repositories struct {
	User         UserRepository
	RefreshToken RefreshTokenRepository
	Post         PostRepository
	Comment      CommentRepository
	Notification NotificationRepository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		RefreshToken: NewRefreshTokenRepository(db),
		Post:         NewPostRepository(db),
		Comment:      NewCommentRepository(db),
		Notification: NewNotificationRepository(db),
	}
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

type Comment struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	PostID    uuid.UUID  `json:"postId" db:"post_id"`
	UserID    uuid.UUID  `json:"userId" db:"user_id"`
	ParentID  *uuid.UUID `json:"parentCommentId" db:"parent_id"`
	Text      string     `json:"text" db:"text"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
}

type CreateCommentInput struct {
	PostID          uuid.UUID  `json:"postId"`
	ParentCommentID *uuid.UUID `json:"parentCommentId"`
	Text            string     `json:"text"`
}

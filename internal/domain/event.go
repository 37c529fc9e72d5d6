package domain

// CommentCreatedEvent is published by the posts service whenever a comment is
// stored. UserID is the recipient; nil means nobody should be notified.
type CommentCreatedEvent struct {
	UserID               *string          `json:"userId"`
	ActorID              string           `json:"actorId,omitempty"`
	ParentCommentOwnerID *string          `json:"parentCommentOwnerId"`
	PostID               string           `json:"postId"`
	CommentID            string           `json:"commentId,omitempty"`
	Type                 NotificationKind `json:"type"`
	Message              string           `json:"message"`
}

const (
	MsgSomeoneCommented = "notifications.someone_commented"
	MsgSomeoneReplied   = "notifications.someone_replied"
)

// Recipient returns the target user id, or "" when the event has none.
func (e CommentCreatedEvent) Recipient() string {
	if e.UserID == nil {
		return ""
	}
	return *e.UserID
}

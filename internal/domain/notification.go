package domain

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID                    uuid.UUID        `json:"id" db:"id"`
	RecipientUserID       string           `json:"recipientUserId" db:"recipient_user_id"`
	OriginatingEntityType *EntityType      `json:"originatingEntityType" db:"entity_type"`
	OriginatingEntityID   *string          `json:"originatingEntityId" db:"entity_id"`
	Kind                  NotificationKind `json:"kind" db:"kind"`
	Message               string           `json:"message" db:"message"`
	Read                  bool             `json:"read" db:"read"`
	CreatedAt             time.Time        `json:"createdAt" db:"created_at"`
}

type NotificationKind string

const (
	NotifCommentOnPost  NotificationKind = "comment"
	NotifReplyToComment NotificationKind = "reply"
)

type EntityType string

const (
	EntityPost    EntityType = "post"
	EntityComment EntityType = "comment"
)

// DispatchMessage is the payload carried on the dispatch channel and pushed
// to realtime clients. Clients de-duplicate on ID.
type DispatchMessage struct {
	ID                    string           `json:"id"`
	RecipientUserID       string           `json:"recipientUserId"`
	OriginatingEntityID   *string          `json:"originatingEntityId"`
	OriginatingEntityType *EntityType      `json:"originatingEntityType,omitempty"`
	Kind                  NotificationKind `json:"kind"`
	Message               string           `json:"message"`
	CreatedAt             time.Time        `json:"createdAt"`
	Read                  bool             `json:"read"`
}

func (n *Notification) DispatchMessage() DispatchMessage {
	return DispatchMessage{
		ID:                    n.ID.String(),
		RecipientUserID:       n.RecipientUserID,
		OriginatingEntityID:   n.OriginatingEntityID,
		OriginatingEntityType: n.OriginatingEntityType,
		Kind:                  n.Kind,
		Message:               n.Message,
		CreatedAt:             n.CreatedAt,
		Read:                  n.Read,
	}
}

type MarkReadInput struct {
	IDs []string `json:"ids"`
}

type MarkReadResult struct {
	Message       string `json:"message"`
	ModifiedCount int64  `json:"modifiedCount"`
}

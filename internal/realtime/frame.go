package realtime

import (
	"encoding/json"

	"socialnet/internal/domain"
)

const (
	FrameNotification = "notification"
	FrameConnected    = "connected"
	FrameError        = "error"
	FrameAuth         = "auth"
)

// Frame is the JSON envelope exchanged over the socket in both directions.
type Frame struct {
	Type    string                  `json:"type"`
	Data    *domain.DispatchMessage `json:"data,omitempty"`
	UserID  string                  `json:"userId,omitempty"`
	Message string                  `json:"message,omitempty"`
	Token   string                  `json:"token,omitempty"`
}

func NotificationFrame(msg domain.DispatchMessage) ([]byte, error) {
	return json.Marshal(Frame{Type: FrameNotification, Data: &msg})
}

func ConnectedFrame(userID string) ([]byte, error) {
	return json.Marshal(Frame{Type: FrameConnected, UserID: userID})
}

func ErrorFrame(message string) ([]byte, error) {
	return json.Marshal(Frame{Type: FrameError, Message: message})
}

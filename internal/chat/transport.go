package chat

import (
	"context"
	"errors"
	"time"
)

// Wire event names. The protocol is symmetric broadcast: send-message is
// both the outbound emit and the inbound delivery, with the same shape.
const (
	EventJoin    = "join-chat"
	EventLeave   = "leave-room"
	EventMessage = "send-message"
)

// Frame is one realtime channel event.
type Frame struct {
	Event       string    `json:"event"`
	RoomID      string    `json:"roomId,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	SenderID    string    `json:"senderId,omitempty"`
	SenderName  string    `json:"senderName,omitempty"`
	MessageID   string    `json:"messageId,omitempty"`
	Message     string    `json:"message,omitempty"`
	MessageType string    `json:"messageType,omitempty"`
	Attachments []string  `json:"attachments,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}

// ErrClosed is returned by Receive once the connection is gone.
var ErrClosed = errors.New("connection closed")

// Conn is one live realtime connection.
type Conn interface {
	Send(Frame) error
	Receive() (Frame, error)
	Close() error
}

// Transport establishes realtime connections. The session holds at most
// one at a time.
type Transport interface {
	Connect(ctx context.Context) (Conn, error)
}

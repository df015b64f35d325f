package store

import "time"

// UserID is rendered and parsed only by the backend that issued it.
type UserID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type User struct {
	ID             UserID    `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"` // Do not expose this in JSON responses
	IsActive       bool      `json:"is_active"`
	IsVerified     bool      `json:"is_verified"`
	IsSuperuser    bool      `json:"is_superuser"`
	CreatedAt      time.Time `json:"created_at"`
}

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now().UTC()}
}

// Conversation is one persisted exchange. ID is assigned by the store.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    UserID    `json:"user_id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

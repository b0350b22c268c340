package models

import "time"

type Identity struct {
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginToken is a pending passwordless login. Digest is the keyed hash of the
// token text; the plaintext only leaves the server through the notifier.
type LoginToken struct {
	Digest    string    `json:"-"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type Conversation struct {
	ID         string    `json:"id"`
	OwnerEmail string    `json:"user_email"`
	Messages   []Message `json:"messages"`
	CreatedAt  time.Time `json:"created_at"`
}

type ConversationSummary struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	LastMessage string    `json:"last_message"`
}

type UserInfo struct {
	Email string `json:"email"`
}

type TokenResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	User        UserInfo `json:"user"`
}

type ChatResponse struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	Timestamp      string `json:"timestamp"`
}

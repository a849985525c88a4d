package store

import (
	"context"
	"errors"
	"time"
)

const DefaultTitle = "New Chat"

var (
	// ErrNotFound is returned when a user or conversation does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConversationOwned is returned when a conversation id already
	// belongs to a different user. Cross-user id collisions must never
	// silently merge histories.
	ErrConversationOwned = errors.New("conversation id belongs to another user")

	// ErrInvalidDocument is returned when a stored document is missing
	// required fields.
	ErrInvalidDocument = errors.New("invalid document")
)

// User is read-only here; accounts are managed by an external collaborator.
type User struct {
	Id              string
	Name            string
	PersonalityType string
}

// Turn is one user-message/bot-response pair. Turns are append-only: after
// creation only the vector reference may be attached.
type Turn struct {
	Id             string
	UserId         string
	ConversationId string
	UserMessage    string
	BotResponse    string
	Timestamp      time.Time
	VectorRef      string
	Embedding      []float32
}

// Conversation is metadata for a group of turns sharing a caller-supplied
// conversation id.
type Conversation struct {
	ConversationId string
	UserId         string
	Title          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ConversationSummary is the listing view of a conversation.
type ConversationSummary struct {
	ConversationId string
	Title          string
}

// Store is the durable record of users, conversations, and turns, backed by
// a document store with one collection per entity.
type Store interface {
	FindUser(ctx context.Context, userId string) (*User, error)
	FindConversation(ctx context.Context, conversationId string) (*Conversation, error)
	CreateConversation(ctx context.Context, conversation Conversation) error
	TouchConversation(ctx context.Context, conversationId string) error
	AppendTurn(ctx context.Context, turn Turn) (string, error)
	AttachVectorRef(ctx context.Context, turnId string, refId string) error
	RecentTurns(ctx context.Context, userId string, conversationId string, limit int) ([]Turn, error)
	ListConversations(ctx context.Context, userId string, limit int) ([]ConversationSummary, error)
	TurnsForConversation(ctx context.Context, conversationId string) ([]Turn, error)
}

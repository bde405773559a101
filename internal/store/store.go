// Package store persists users, conversations and profile documents. It
// ships a Postgres implementation for deployments and a SQLite one for
// local development and tests; both satisfy Store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"choti/apps/backend/internal/db"
	"choti/apps/backend/internal/profile"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrEmailTaken       = errors.New("email already registered")
	ErrMalformedProfile = errors.New("profile document is malformed")
)

const (
	DefaultConversationTitle = "New Chat"
	MaxConversationListLimit = 100
	conversationTitleMaxLen  = 38
)

type User struct {
	ID                    string
	Email                 string
	PasswordHash          string
	Name                  string
	Nickname              string
	Hobby                 string
	Passion               string
	EducationalBackground string
	Bio                   string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Conversation struct {
	ID        string
	UserID    string
	Title     string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ConversationSummary struct {
	ID           string
	Title        string
	MessageCount int
	LastMessage  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ProfileStore interface {
	// LoadProfile returns ErrNotFound when the user has no document yet and
	// ErrMalformedProfile when the stored document cannot be decoded.
	LoadProfile(ctx context.Context, userID string) (profile.Profile, error)
	SaveProfile(ctx context.Context, p profile.Profile) error
	DeleteProfile(ctx context.Context, userID string) error
}

type UserStore interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
}

type ConversationStore interface {
	CreateConversation(ctx context.Context, userID, title string) (Conversation, error)
	GetConversation(ctx context.Context, userID, id string) (Conversation, error)
	AppendMessages(ctx context.Context, userID, id string, messages ...Message) error
	ListConversations(ctx context.Context, userID string, limit int) ([]ConversationSummary, error)
	DeleteConversation(ctx context.Context, userID, id string) error
}

type Store interface {
	ProfileStore
	UserStore
	ConversationStore
	Ping(ctx context.Context) error
	Close() error
}

// Open picks the backend from the URL shape: sqlite://, file: and bare
// *.db paths use SQLite, everything else goes to Postgres.
func Open(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is empty")
	}
	if db.IsSQLiteURL(databaseURL) {
		conn, err := db.OpenSQLite(db.SQLitePath(databaseURL))
		if err != nil {
			return nil, err
		}
		return NewSQLite(ctx, conn)
	}

	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	pg := NewPostgres(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := pg.ValidateRuntimeSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pg, nil
}

// ConversationTitle derives a short title from the first user message.
func ConversationTitle(firstMessage string) string {
	normalized := strings.Join(strings.Fields(firstMessage), " ")
	if normalized == "" {
		return DefaultConversationTitle
	}
	runes := []rune(normalized)
	if len(runes) <= conversationTitleMaxLen {
		return normalized
	}
	return strings.TrimSpace(string(runes[:conversationTitleMaxLen])) + "..."
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func clampListLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > MaxConversationListLimit {
		return MaxConversationListLimit
	}
	return limit
}

func normalizeConversationTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultConversationTitle
	}
	return title
}

func decodeProfile(userID string, raw []byte) (profile.Profile, error) {
	var p profile.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return profile.Profile{}, fmt.Errorf("%w: %v", ErrMalformedProfile, err)
	}
	p.UserID = userID
	p.Normalize()
	return p, nil
}

func encodeProfile(p profile.Profile) (string, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return "", fmt.Errorf("profile user id is empty")
	}
	p.Normalize()
	encoded, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode profile: %w", err)
	}
	return string(encoded), nil
}

func decodeMessages(raw []byte) ([]Message, error) {
	messages := []Message{}
	if len(raw) == 0 {
		return messages, nil
	}
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("decode conversation messages: %w", err)
	}
	if messages == nil {
		messages = []Message{}
	}
	return messages, nil
}

// stampMessages copies messages, filling missing timestamps with now.
func stampMessages(messages []Message, now time.Time) []Message {
	stamped := make([]Message, len(messages))
	for idx, msg := range messages {
		if msg.Timestamp.IsZero() {
			msg.Timestamp = now
		}
		msg.Timestamp = msg.Timestamp.UTC()
		stamped[idx] = msg
	}
	return stamped
}

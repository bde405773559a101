package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"choti/apps/backend/internal/profile"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore keeps the same documents as PostgresStore in a single local
// file. Timestamps are stored as unix milliseconds.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		nickname TEXT NOT NULL DEFAULT '',
		hobby TEXT NOT NULL DEFAULT '',
		passion TEXT NOT NULL DEFAULT '',
		educational_background TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		created_at_ms INTEGER NOT NULL,
		updated_at_ms INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT 'New Chat',
		messages TEXT NOT NULL DEFAULT '[]',
		created_at_ms INTEGER NOT NULL,
		updated_at_ms INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS conversations_user_updated_idx ON conversations(user_id, updated_at_ms DESC);`,
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		doc TEXT NOT NULL,
		updated_at_ms INTEGER NOT NULL
	);`,
}

// NewSQLite wraps an open connection and creates the tables.
func NewSQLite(ctx context.Context, conn *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: conn, now: time.Now}
	for _, stmt := range sqliteSchema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("init sqlite schema: %w", err)
		}
	}
	return s, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) nowMS() int64 {
	return s.now().UTC().UnixMilli()
}

func fromMS(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) LoadProfile(ctx context.Context, userID string) (profile.Profile, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM profiles WHERE user_id = ?`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.Profile{}, ErrNotFound
	}
	if err != nil {
		return profile.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return decodeProfile(userID, []byte(raw))
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, p profile.Profile) error {
	doc, err := encodeProfile(p)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO profiles (user_id, doc, updated_at_ms)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET doc = excluded.doc, updated_at_ms = excluded.updated_at_ms`,
		p.UserID,
		doc,
		s.nowMS(),
	); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteProfile(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return requireAffected(res)
}

const sqliteUserColumns = `id, email, password_hash, name, nickname, hobby, passion, educational_background, bio, created_at_ms, updated_at_ms`

func scanSQLiteUser(row *sql.Row) (User, error) {
	var (
		user      User
		createdMS int64
		updatedMS int64
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Nickname,
		&user.Hobby,
		&user.Passion,
		&user.EducationalBackground,
		&user.Bio,
		&createdMS,
		&updatedMS,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	user.CreatedAt = fromMS(createdMS)
	user.UpdatedAt = fromMS(updatedMS)
	return user, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user User) (User, error) {
	if strings.TrimSpace(user.ID) == "" {
		user.ID = uuid.NewString()
	}
	now := s.nowMS()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO users (`+sqliteUserColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		NormalizeEmail(user.Email),
		user.PasswordHash,
		strings.TrimSpace(user.Name),
		strings.TrimSpace(user.Nickname),
		strings.TrimSpace(user.Hobby),
		strings.TrimSpace(user.Passion),
		strings.TrimSpace(user.EducationalBackground),
		strings.TrimSpace(user.Bio),
		now,
		now,
	)
	if isUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return s.GetUserByID(ctx, user.ID)
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanSQLiteUser(s.db.QueryRowContext(
		ctx,
		`SELECT `+sqliteUserColumns+` FROM users WHERE email = ?`,
		NormalizeEmail(email),
	))
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return scanSQLiteUser(s.db.QueryRowContext(
		ctx,
		`SELECT `+sqliteUserColumns+` FROM users WHERE id = ?`,
		strings.TrimSpace(id),
	))
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, user User) (User, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE users
		 SET name = ?, nickname = ?, hobby = ?, passion = ?, educational_background = ?, bio = ?, updated_at_ms = ?
		 WHERE id = ?`,
		strings.TrimSpace(user.Name),
		strings.TrimSpace(user.Nickname),
		strings.TrimSpace(user.Hobby),
		strings.TrimSpace(user.Passion),
		strings.TrimSpace(user.EducationalBackground),
		strings.TrimSpace(user.Bio),
		s.nowMS(),
		user.ID,
	)
	if err != nil {
		return User{}, fmt.Errorf("update user: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return User{}, err
	}
	return s.GetUserByID(ctx, user.ID)
}

func (s *SQLiteStore) CreateConversation(ctx context.Context, userID, title string) (Conversation, error) {
	now := s.nowMS()
	conv := Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     normalizeConversationTitle(title),
		Messages:  []Message{},
		CreatedAt: fromMS(now),
		UpdatedAt: fromMS(now),
	}
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO conversations (id, user_id, title, messages, created_at_ms, updated_at_ms)
		 VALUES (?, ?, ?, '[]', ?, ?)`,
		conv.ID,
		conv.UserID,
		conv.Title,
		now,
		now,
	); err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, userID, id string) (Conversation, error) {
	var (
		conv      Conversation
		raw       string
		createdMS int64
		updatedMS int64
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, user_id, title, messages, created_at_ms, updated_at_ms
		 FROM conversations
		 WHERE id = ? AND user_id = ?`,
		id,
		userID,
	).Scan(&conv.ID, &conv.UserID, &conv.Title, &raw, &createdMS, &updatedMS)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	messages, err := decodeMessages([]byte(raw))
	if err != nil {
		return Conversation{}, err
	}
	conv.Messages = messages
	conv.CreatedAt = fromMS(createdMS)
	conv.UpdatedAt = fromMS(updatedMS)
	return conv, nil
}

// AppendMessages reads, extends and rewrites the message array inside one
// transaction.
func (s *SQLiteStore) AppendMessages(ctx context.Context, userID, id string, messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(
		ctx,
		`SELECT messages FROM conversations WHERE id = ? AND user_id = ?`,
		id,
		userID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	existing, err := decodeMessages([]byte(raw))
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(append(existing, stampMessages(messages, s.now())...))
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE conversations SET messages = ?, updated_at_ms = ? WHERE id = ? AND user_id = ?`,
		string(encoded),
		s.nowMS(),
		id,
		userID,
	); err != nil {
		return fmt.Errorf("append messages: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListConversations(ctx context.Context, userID string, limit int) ([]ConversationSummary, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id,
		        title,
		        json_array_length(messages),
		        COALESCE(json_extract(messages, '$[#-1].content'), ''),
		        created_at_ms,
		        updated_at_ms
		 FROM conversations
		 WHERE user_id = ?
		 ORDER BY updated_at_ms DESC, id ASC
		 LIMIT ?`,
		userID,
		clampListLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	items := make([]ConversationSummary, 0)
	for rows.Next() {
		var (
			item      ConversationSummary
			createdMS int64
			updatedMS int64
		)
		if err := rows.Scan(&item.ID, &item.Title, &item.MessageCount, &item.LastMessage, &createdMS, &updatedMS); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		item.CreatedAt = fromMS(createdMS)
		item.UpdatedAt = fromMS(updatedMS)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) DeleteConversation(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

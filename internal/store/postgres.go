package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"choti/apps/backend/internal/profile"
)

const pgUniqueViolation = "23505"

var _ Store = (*PostgresStore)(nil)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) LoadProfile(ctx context.Context, userID string) (profile.Profile, error) {
	var raw []byte
	err := s.pool.QueryRow(
		ctx,
		`SELECT doc FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return profile.Profile{}, ErrNotFound
	}
	if err != nil {
		return profile.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return decodeProfile(userID, raw)
}

func (s *PostgresStore) SaveProfile(ctx context.Context, p profile.Profile) error {
	doc, err := encodeProfile(p)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(
		ctx,
		`INSERT INTO profiles (user_id, doc, updated_at)
		 VALUES ($1, $2::jsonb, NOW())
		 ON CONFLICT (user_id)
		 DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		p.UserID,
		doc,
	); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteProfile(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM profiles WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const pgUserColumns = `id, email, password_hash, name, nickname, hobby, passion, educational_background, bio, created_at, updated_at`

func scanPGUser(row pgx.Row) (User, error) {
	var user User
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
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	if strings.TrimSpace(user.ID) == "" {
		user.ID = uuid.NewString()
	}
	user.Email = NormalizeEmail(user.Email)
	created, err := scanPGUser(s.pool.QueryRow(
		ctx,
		`INSERT INTO users (id, email, password_hash, name, nickname, hobby, passion, educational_background, bio, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		 RETURNING `+pgUserColumns,
		user.ID,
		user.Email,
		user.PasswordHash,
		strings.TrimSpace(user.Name),
		strings.TrimSpace(user.Nickname),
		strings.TrimSpace(user.Hobby),
		strings.TrimSpace(user.Passion),
		strings.TrimSpace(user.EducationalBackground),
		strings.TrimSpace(user.Bio),
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanPGUser(s.pool.QueryRow(
		ctx,
		`SELECT `+pgUserColumns+` FROM users WHERE email = $1`,
		NormalizeEmail(email),
	))
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return scanPGUser(s.pool.QueryRow(
		ctx,
		`SELECT `+pgUserColumns+` FROM users WHERE id = $1`,
		strings.TrimSpace(id),
	))
}

// UpdateUser rewrites the editable "about me" fields. Email and password
// are not touched.
func (s *PostgresStore) UpdateUser(ctx context.Context, user User) (User, error) {
	return scanPGUser(s.pool.QueryRow(
		ctx,
		`UPDATE users
		 SET name = $2,
		     nickname = $3,
		     hobby = $4,
		     passion = $5,
		     educational_background = $6,
		     bio = $7,
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+pgUserColumns,
		user.ID,
		strings.TrimSpace(user.Name),
		strings.TrimSpace(user.Nickname),
		strings.TrimSpace(user.Hobby),
		strings.TrimSpace(user.Passion),
		strings.TrimSpace(user.EducationalBackground),
		strings.TrimSpace(user.Bio),
	))
}

func (s *PostgresStore) CreateConversation(ctx context.Context, userID, title string) (Conversation, error) {
	conv := Conversation{
		ID:       uuid.NewString(),
		UserID:   userID,
		Title:    normalizeConversationTitle(title),
		Messages: []Message{},
	}
	err := s.pool.QueryRow(
		ctx,
		`INSERT INTO conversations (id, user_id, title, messages, created_at, updated_at)
		 VALUES ($1, $2, $3, '[]'::jsonb, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		conv.ID,
		conv.UserID,
		conv.Title,
	).Scan(&conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	conv.CreatedAt = conv.CreatedAt.UTC()
	conv.UpdatedAt = conv.UpdatedAt.UTC()
	return conv, nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, userID, id string) (Conversation, error) {
	conv := Conversation{}
	var raw []byte
	err := s.pool.QueryRow(
		ctx,
		`SELECT id, user_id, title, messages, created_at, updated_at
		 FROM conversations
		 WHERE id = $1 AND user_id = $2`,
		id,
		userID,
	).Scan(&conv.ID, &conv.UserID, &conv.Title, &raw, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	messages, err := decodeMessages(raw)
	if err != nil {
		return Conversation{}, err
	}
	conv.Messages = messages
	conv.CreatedAt = conv.CreatedAt.UTC()
	conv.UpdatedAt = conv.UpdatedAt.UTC()
	return conv, nil
}

func (s *PostgresStore) AppendMessages(ctx context.Context, userID, id string, messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}
	encoded, err := json.Marshal(stampMessages(messages, time.Now()))
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	tag, err := s.pool.Exec(
		ctx,
		`UPDATE conversations
		 SET messages = messages || $3::jsonb,
		     updated_at = NOW()
		 WHERE id = $1 AND user_id = $2`,
		id,
		userID,
		string(encoded),
	)
	if err != nil {
		return fmt.Errorf("append messages: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListConversations(ctx context.Context, userID string, limit int) ([]ConversationSummary, error) {
	rows, err := s.pool.Query(
		ctx,
		`SELECT id,
		        title,
		        jsonb_array_length(messages),
		        COALESCE(messages -> -1 ->> 'content', ''),
		        created_at,
		        updated_at
		 FROM conversations
		 WHERE user_id = $1
		 ORDER BY updated_at DESC, id ASC
		 LIMIT $2`,
		userID,
		clampListLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	items := make([]ConversationSummary, 0)
	for rows.Next() {
		var item ConversationSummary
		if err := rows.Scan(&item.ID, &item.Title, &item.MessageCount, &item.LastMessage, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		item.CreatedAt = item.CreatedAt.UTC()
		item.UpdatedAt = item.UpdatedAt.UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteConversation(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(
		ctx,
		`DELETE FROM conversations WHERE id = $1 AND user_id = $2`,
		id,
		userID,
	)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

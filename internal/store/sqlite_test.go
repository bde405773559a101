package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choti/apps/backend/internal/db"
	"choti/apps/backend/internal/profile"
)

type stepClock struct {
	current time.Time
	step    time.Duration
}

func (c *stepClock) Now() time.Time {
	c.current = c.current.Add(c.step)
	return c.current
}

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "choti.db"))
	require.NoError(t, err)
	s, err := NewSQLite(context.Background(), conn)
	require.NoError(t, err)
	clock := &stepClock{current: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), step: time.Second}
	s.now = clock.Now
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenSelectsSQLiteForFileURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "open.db")
	opened, err := Open(context.Background(), "sqlite://"+path)
	require.NoError(t, err)
	defer opened.Close()

	_, ok := opened.(*SQLiteStore)
	assert.True(t, ok, "expected sqlite store, got %T", opened)
	assert.NoError(t, opened.Ping(context.Background()))
}

func TestOpenRejectsEmptyURL(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	require.Error(t, err)
}

func TestProfileRoundTripAndNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	_, err := s.LoadProfile(ctx, "user-1")
	require.ErrorIs(t, err, ErrNotFound)

	engine := profile.NewEngine("Choti")
	p := engine.Update(profile.New("user-1", time.Now()), "I'm so angry and frustrated about my exam")
	require.NoError(t, s.SaveProfile(ctx, p))

	loaded, err := s.LoadProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", loaded.UserID)
	require.Len(t, loaded.MoodHistory, 1)
	assert.Equal(t, profile.MoodAngry, loaded.MoodHistory[0].Mood)
	assert.Equal(t, profile.MoodAngry, loaded.DominantMood)
	require.Len(t, loaded.TopicInterests, 1)
	assert.Equal(t, "studies", loaded.TopicInterests[0].Topic)
	assert.Equal(t, 1, loaded.Insights.ConversationCount)

	next := engine.Update(loaded, "exam again tomorrow")
	require.NoError(t, s.SaveProfile(ctx, next))
	reloaded, err := s.LoadProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Insights.ConversationCount)
	assert.Equal(t, 2, reloaded.TopicInterests[0].Frequency)
}

func TestLoadProfileReportsMalformedDocument(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	_, err := s.db.ExecContext(ctx, `INSERT INTO profiles (user_id, doc, updated_at_ms) VALUES (?, ?, ?)`, "broken", "{not json", 1)
	require.NoError(t, err)

	_, err = s.LoadProfile(ctx, "broken")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedProfile))
}

func TestSaveProfileRequiresUserID(t *testing.T) {
	s := newTestSQLiteStore(t)
	err := s.SaveProfile(context.Background(), profile.Profile{})
	require.Error(t, err)
}

func TestDeleteProfile(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.ErrorIs(t, s.DeleteProfile(ctx, "ghost"), ErrNotFound)
	require.NoError(t, s.SaveProfile(ctx, profile.New("user-2", time.Now())))
	require.NoError(t, s.DeleteProfile(ctx, "user-2"))
	_, err := s.LoadProfile(ctx, "user-2")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUserNormalizesEmailAndRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	created, err := s.CreateUser(ctx, User{
		Email:        "  Riya@Example.COM ",
		PasswordHash: "hash",
		Name:         " Riya ",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "riya@example.com", created.Email)
	assert.Equal(t, "Riya", created.Name)
	assert.False(t, created.CreatedAt.IsZero())

	_, err = s.CreateUser(ctx, User{Email: "riya@example.com", PasswordHash: "other"})
	require.ErrorIs(t, err, ErrEmailTaken)

	byEmail, err := s.GetUserByEmail(ctx, "RIYA@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	_, err = s.GetUserByID(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateUserRewritesAboutFields(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	created, err := s.CreateUser(ctx, User{Email: "a@b.co", PasswordHash: "hash", Name: "Asha"})
	require.NoError(t, err)

	created.Nickname = "Ashu"
	created.Hobby = "sketching"
	created.Passion = "astronomy"
	created.EducationalBackground = "B.Tech, 2nd year"
	created.Bio = "from Patna"
	updated, err := s.UpdateUser(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "Ashu", updated.Nickname)
	assert.Equal(t, "B.Tech, 2nd year", updated.EducationalBackground)
	assert.Equal(t, "hash", updated.PasswordHash)
	assert.True(t, updated.UpdatedAt.After(created.CreatedAt))

	_, err = s.UpdateUser(ctx, User{ID: "missing"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConversationLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	conv, err := s.CreateConversation(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConversationTitle, conv.Title)
	assert.Empty(t, conv.Messages)

	require.NoError(t, s.AppendMessages(ctx, "user-1", conv.ID,
		Message{Role: "user", Content: "hi"},
		Message{Role: "assistant", Content: "hello ji"},
	))
	require.NoError(t, s.AppendMessages(ctx, "user-1", conv.ID, Message{Role: "user", Content: "how are you"}))

	loaded, err := s.GetConversation(ctx, "user-1", conv.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 3)
	assert.Equal(t, "hi", loaded.Messages[0].Content)
	assert.Equal(t, "how are you", loaded.Messages[2].Content)
	assert.False(t, loaded.Messages[0].Timestamp.IsZero())
	assert.True(t, loaded.UpdatedAt.After(loaded.CreatedAt))

	_, err = s.GetConversation(ctx, "someone-else", conv.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.AppendMessages(ctx, "someone-else", conv.ID, Message{Role: "user", Content: "x"}), ErrNotFound)

	require.NoError(t, s.DeleteConversation(ctx, "user-1", conv.ID))
	require.ErrorIs(t, s.DeleteConversation(ctx, "user-1", conv.ID), ErrNotFound)
}

func TestListConversationsNewestFirstWithPreview(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	first, err := s.CreateConversation(ctx, "user-1", "first")
	require.NoError(t, err)
	second, err := s.CreateConversation(ctx, "user-1", "second")
	require.NoError(t, err)
	_, err = s.CreateConversation(ctx, "user-2", "not mine")
	require.NoError(t, err)

	require.NoError(t, s.AppendMessages(ctx, "user-1", first.ID,
		Message{Role: "user", Content: "exam stress"},
		Message{Role: "assistant", Content: "breathe, we got this"},
	))

	items, err := s.ListConversations(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, first.ID, items[0].ID)
	assert.Equal(t, 2, items[0].MessageCount)
	assert.Equal(t, "breathe, we got this", items[0].LastMessage)
	assert.Equal(t, second.ID, items[1].ID)
	assert.Equal(t, 0, items[1].MessageCount)
	assert.Equal(t, "", items[1].LastMessage)

	limited, err := s.ListConversations(ctx, "user-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestConversationTitle(t *testing.T) {
	assert.Equal(t, DefaultConversationTitle, ConversationTitle("   "))
	assert.Equal(t, "exam stress", ConversationTitle("  exam   stress "))
	long := ConversationTitle("I have been thinking about my career choices a lot lately")
	assert.Equal(t, "I have been thinking about my career c...", long)
}

func TestClampListLimit(t *testing.T) {
	assert.Equal(t, 50, clampListLimit(0))
	assert.Equal(t, 7, clampListLimit(7))
	assert.Equal(t, MaxConversationListLimit, clampListLimit(1000))
}

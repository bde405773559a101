package store

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choti/apps/backend/internal/db"
	"choti/apps/backend/internal/profile"
)

func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	databaseURL := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("integration test requires TEST_DATABASE_URL")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := db.Connect(ctx, databaseURL)
	require.NoError(t, err)
	s := NewPostgres(pool)
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.ValidateRuntimeSchema(ctx))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresProfileUpsert(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()
	userID := "pg-" + uuid.NewString()
	t.Cleanup(func() { _ = s.DeleteProfile(context.Background(), userID) })

	_, err := s.LoadProfile(ctx, userID)
	require.ErrorIs(t, err, ErrNotFound)

	engine := profile.NewEngine("Choti")
	p := engine.Update(profile.New(userID, time.Now()), "I achieved my dream of passing JEE")
	require.NoError(t, s.SaveProfile(ctx, p))
	p = engine.Update(p, "kota coaching is tough")
	require.NoError(t, s.SaveProfile(ctx, p))

	loaded, err := s.LoadProfile(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Insights.ConversationCount)
	require.Len(t, loaded.KeyMemories, 1)
	assert.Equal(t, profile.MemoryAchievement, loaded.KeyMemories[0].Category)
	require.Len(t, loaded.TopicInterests, 1)
	assert.Equal(t, 2, loaded.TopicInterests[0].Frequency)
}

func TestPostgresUsersAndConversations(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()
	email := "pg-" + uuid.NewString()[:8] + "@Example.com"

	user, err := s.CreateUser(ctx, User{Email: email, PasswordHash: "hash", Name: "Meera"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, user.ID)
	})
	assert.Equal(t, strings.ToLower(email), user.Email)

	_, err = s.CreateUser(ctx, User{Email: email, PasswordHash: "hash"})
	require.ErrorIs(t, err, ErrEmailTaken)

	user.Hobby = "chess"
	updated, err := s.UpdateUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "chess", updated.Hobby)

	conv, err := s.CreateConversation(ctx, user.ID, "hello")
	require.NoError(t, err)
	require.NoError(t, s.AppendMessages(ctx, user.ID, conv.ID,
		Message{Role: "user", Content: "hello"},
		Message{Role: "assistant", Content: "hi there"},
	))

	items, err := s.ListConversations(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].MessageCount)
	assert.Equal(t, "hi there", items[0].LastMessage)

	loaded, err := s.GetConversation(ctx, user.ID, conv.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 2)

	require.NoError(t, s.DeleteConversation(ctx, user.ID, conv.ID))
	_, err = s.GetConversation(ctx, user.ID, conv.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"choti/apps/backend/internal/profile"
	"choti/apps/backend/internal/store"
)

const (
	chatMessageRuneMax     = 4000
	defaultCompletionLimit = 20 * time.Second
	profileRecentMoodLimit = 5
	profileTopTopicLimit   = 5
)

type chatHTTPError struct {
	Status int
	Detail string
}

func (e *chatHTTPError) Error() string {
	return e.Detail
}

type chatExecutionResult struct {
	Answer         string
	UsedAPI        bool
	ConversationID string
	Timestamp      time.Time
}

func (a *App) chat(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload chatRequest
	if !mustJSON(c, &payload) {
		return
	}

	result, err := a.runChat(c.Request.Context(), user, payload)
	if err != nil {
		a.writeChatExecutionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"message":         result.Answer,
		"timestamp":       result.Timestamp.Format(time.RFC3339Nano),
		"usedAPI":         result.UsedAPI,
		"conversation_id": result.ConversationID,
	})
}

// runChat executes one turn. Only input validation and an unknown
// conversation id fail the request; profile, completion and persistence
// problems degrade to logging.
func (a *App) runChat(ctx context.Context, authUser AuthUser, payload chatRequest) (chatExecutionResult, error) {
	message := strings.TrimSpace(payload.Message)
	if message == "" {
		return chatExecutionResult{}, &chatHTTPError{Status: http.StatusBadRequest, Detail: "Message is required"}
	}
	if len([]rune(message)) > chatMessageRuneMax {
		return chatExecutionResult{}, &chatHTTPError{Status: http.StatusBadRequest, Detail: "Message is too long"}
	}

	conversationID, err := a.resolveConversation(ctx, authUser.ID, strings.TrimSpace(payload.ConversationID), message)
	if err != nil {
		return chatExecutionResult{}, err
	}

	user, err := a.store.GetUserByID(ctx, authUser.ID)
	if err != nil {
		log.Printf("chat user lookup failed user_id=%s err=%v", authUser.ID, err)
		user = store.User{ID: authUser.ID, Email: authUser.Email, Name: authUser.Name}
	}

	summary := a.runProfileTurn(ctx, authUser.ID, message)
	history := a.history.Get(authUser.ID)
	systemPrompt := buildSystemPrompt(a.engine.Subject(), user, summary)

	answer, usedAPI := a.complete(ctx, authUser.ID, systemPrompt, history, message)
	a.history.Append(
		authUser.ID,
		ChatTurn{Role: "user", Content: message},
		ChatTurn{Role: "assistant", Content: answer},
	)

	now := a.now().UTC()
	if conversationID != "" {
		if err := a.store.AppendMessages(
			ctx,
			authUser.ID,
			conversationID,
			store.Message{Role: "user", Content: message, Timestamp: now},
			store.Message{Role: "assistant", Content: answer, Timestamp: now},
		); err != nil {
			a.metrics.conversationPersistErr.Inc()
			log.Printf("conversation persist failed user_id=%s conversation_id=%s err=%v", authUser.ID, conversationID, err)
		}
	}

	return chatExecutionResult{
		Answer:         answer,
		UsedAPI:        usedAPI,
		ConversationID: conversationID,
		Timestamp:      now,
	}, nil
}

// resolveConversation returns the conversation to append to. An explicit id
// must belong to the user; without one a new conversation is started. A
// failure to create one is logged and the turn continues unpersisted.
func (a *App) resolveConversation(ctx context.Context, userID, requestedID, firstMessage string) (string, error) {
	if requestedID != "" {
		conv, err := a.store.GetConversation(ctx, userID, requestedID)
		if errors.Is(err, store.ErrNotFound) {
			return "", &chatHTTPError{Status: http.StatusNotFound, Detail: "Conversation not found"}
		}
		if err != nil {
			log.Printf("conversation lookup failed user_id=%s conversation_id=%s err=%v", userID, requestedID, err)
			return "", nil
		}
		return conv.ID, nil
	}

	conv, err := a.store.CreateConversation(ctx, userID, store.ConversationTitle(firstMessage))
	if err != nil {
		a.metrics.conversationPersistErr.Inc()
		log.Printf("conversation create failed user_id=%s err=%v", userID, err)
		return "", nil
	}
	return conv.ID, nil
}

// runProfileTurn folds the message into the stored profile and returns the
// context summary for the prompt. It returns nil when the profile could not
// be read; a failed save still returns the summary of the stored profile.
// Concurrent turns for the same user are not serialized: each loads, updates
// and saves independently, so the last SaveProfile overwrites the others.
func (a *App) runProfileTurn(ctx context.Context, userID, message string) (summary *profile.ContextSummary) {
	defer func() {
		if recovered := recover(); recovered != nil {
			a.metrics.profileUpdateFailures.Inc()
			log.Printf("profile update panicked user_id=%s panic=%v", userID, recovered)
			summary = nil
		}
	}()

	current, err := a.store.LoadProfile(ctx, userID)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		current = profile.New(userID, a.now())
	case errors.Is(err, store.ErrMalformedProfile):
		log.Printf("profile document malformed, resetting user_id=%s err=%v", userID, err)
		current = profile.New(userID, a.now())
	default:
		a.metrics.profileUpdateFailures.Inc()
		log.Printf("profile load failed user_id=%s err=%v", userID, err)
		return nil
	}

	next := a.engine.Update(current, message)
	if err := a.store.SaveProfile(ctx, next); err != nil {
		a.metrics.profileUpdateFailures.Inc()
		log.Printf("profile save failed user_id=%s err=%v", userID, err)
		stale := a.engine.Summarize(current)
		return &stale
	}
	fresh := a.engine.Summarize(next)
	return &fresh
}

// complete asks the completion API for a reply to message, with history as
// the prior turns, and falls back to the canned responder on any failure.
func (a *App) complete(ctx context.Context, userID, systemPrompt string, history []ChatTurn, message string) (string, bool) {
	if a.ai == nil {
		a.metrics.chatReplies.WithLabelValues(replySourceFallback).Inc()
		return a.fallback.Reply(message), false
	}

	timeout := time.Duration(a.cfg.AITimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultCompletionLimit
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	resp, err := a.ai.Query(callCtx, AIModelRequest{
		SystemPrompt: systemPrompt,
		Conversation: history,
		UserPrompt:   message,
	})
	a.metrics.completionSeconds.Observe(time.Since(started).Seconds())
	if err == nil && strings.TrimSpace(resp.Answer) == "" {
		err = errEmptyCompletion
	}
	if err != nil {
		log.Printf("ai query failed, using fallback user_id=%s err=%v", userID, err)
		a.metrics.chatReplies.WithLabelValues(replySourceFallback).Inc()
		return a.fallback.Reply(message), false
	}

	log.Printf("ai query ok user_id=%s model=%s total_tokens=%d", userID, resp.Model, resp.Usage.TotalTokens)
	a.metrics.chatReplies.WithLabelValues(replySourceAPI).Inc()
	return strings.TrimSpace(resp.Answer), true
}

func (a *App) clearHistory(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	a.history.Clear(user.ID)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Conversation history cleared",
	})
}

func (a *App) getHistory(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	turns := a.history.Get(user.ID)
	messages := make([]gin.H, 0, len(turns))
	for _, turn := range turns {
		role := "assistant"
		if turn.Role == "user" {
			role = "user"
		}
		messages = append(messages, gin.H{"role": role, "text": turn.Content})
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (a *App) listConversations(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit := 50
	if rawLimit := strings.TrimSpace(c.Query("limit")); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed <= 0 {
			writeError(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > store.MaxConversationListLimit {
			parsed = store.MaxConversationListLimit
		}
		limit = parsed
	}

	items, err := a.store.ListConversations(c.Request.Context(), user.ID, limit)
	if err != nil {
		log.Printf("list conversations failed user_id=%s err=%v", user.ID, err)
		writeError(c, http.StatusInternalServerError, "Failed to load conversations")
		return
	}
	conversations := make([]gin.H, 0, len(items))
	for _, item := range items {
		conversations = append(conversations, conversationSummaryResponse(item))
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (a *App) getConversation(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	conv, err := a.store.GetConversation(c.Request.Context(), user.ID, strings.TrimSpace(c.Param("id")))
	if errors.Is(err, store.ErrNotFound) {
		writeError(c, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load conversation")
		return
	}
	c.JSON(http.StatusOK, conversationResponse(conv))
}

func (a *App) deleteConversation(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	err := a.store.DeleteConversation(c.Request.Context(), user.ID, strings.TrimSpace(c.Param("id")))
	if errors.Is(err, store.ErrNotFound) {
		writeError(c, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to delete conversation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *App) getProfile(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	current, err := a.store.LoadProfile(c.Request.Context(), user.ID)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrMalformedProfile) {
		current = profile.New(user.ID, a.now())
	} else if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load profile")
		return
	}

	topics := make([]gin.H, 0, profileTopTopicLimit)
	for _, item := range current.TopTopics(profileTopTopicLimit) {
		topics = append(topics, gin.H{
			"topic":          item.Topic,
			"frequency":      item.Frequency,
			"sentiment":      item.Sentiment,
			"last_mentioned": item.LastMentioned.UTC(),
		})
	}
	moods := make([]gin.H, 0, profileRecentMoodLimit)
	start := len(current.MoodHistory) - profileRecentMoodLimit
	if start < 0 {
		start = 0
	}
	for _, entry := range current.MoodHistory[start:] {
		moods = append(moods, gin.H{
			"mood":      entry.Mood,
			"intensity": entry.Intensity,
			"timestamp": entry.Timestamp.UTC(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"context":       a.engine.Summarize(current),
		"dominant_mood": current.DominantMood,
		"top_topics":    topics,
		"recent_moods":  moods,
		"memory_count":  len(current.KeyMemories),
		"traits":        current.Traits,
	})
}

func (a *App) writeChatExecutionError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	var httpErr *chatHTTPError
	if errors.As(err, &httpErr) {
		writeError(c, httpErr.Status, httpErr.Detail)
		return
	}
	log.Printf("chat query failed unclassified err=%v", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"detail":  "An error occurred while processing your message",
	})
}

package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"choti/apps/backend/internal/store"
)

type registerRequest struct {
	Email                 string `json:"email"`
	Password              string `json:"password"`
	Name                  string `json:"name"`
	Nickname              string `json:"nickname"`
	Hobby                 string `json:"hobby"`
	Passion               string `json:"passion"`
	EducationalBackground string `json:"educationalBackground"`
	Bio                   string `json:"bio"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// updateMeRequest uses pointers so that omitted fields keep their value.
type updateMeRequest struct {
	Name                  *string `json:"name"`
	Nickname              *string `json:"nickname"`
	Hobby                 *string `json:"hobby"`
	Passion               *string `json:"passion"`
	EducationalBackground *string `json:"educationalBackground"`
	Bio                   *string `json:"bio"`
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

func userResponse(user store.User) gin.H {
	return gin.H{
		"id":                    user.ID,
		"email":                 user.Email,
		"name":                  user.Name,
		"nickname":              user.Nickname,
		"hobby":                 user.Hobby,
		"passion":               user.Passion,
		"educationalBackground": user.EducationalBackground,
		"bio":                   user.Bio,
		"createdAt":             user.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func conversationSummaryResponse(item store.ConversationSummary) gin.H {
	return gin.H{
		"id":            item.ID,
		"title":         item.Title,
		"message_count": item.MessageCount,
		"preview":       normalizePreview(item.LastMessage),
		"created_at":    item.CreatedAt.UTC(),
		"updated_at":    item.UpdatedAt.UTC(),
	}
}

func conversationResponse(conv store.Conversation) gin.H {
	messages := make([]gin.H, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		messages = append(messages, gin.H{
			"role":      msg.Role,
			"content":   msg.Content,
			"timestamp": msg.Timestamp.UTC(),
		})
	}
	return gin.H{
		"id":         conv.ID,
		"title":      conv.Title,
		"messages":   messages,
		"created_at": conv.CreatedAt.UTC(),
		"updated_at": conv.UpdatedAt.UTC(),
	}
}

func normalizePreview(input string) string {
	normalized := strings.Join(strings.Fields(input), " ")
	if normalized == "" {
		return "No messages yet"
	}
	const maxLen = 96
	runes := []rune(normalized)
	if len(runes) <= maxLen {
		return normalized
	}
	return strings.TrimSpace(string(runes[:maxLen])) + "..."
}

func applyStringPatch(target *string, value *string) {
	if value == nil {
		return
	}
	*target = strings.TrimSpace(*value)
}

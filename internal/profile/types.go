// Package profile derives a per-user emotional profile from raw chat
// messages and renders it back into a compact context block for prompts.
package profile

import (
	"strings"
	"time"
)

type Mood string

const (
	MoodHappy    Mood = "happy"
	MoodSad      Mood = "sad"
	MoodAngry    Mood = "angry"
	MoodAnxious  Mood = "anxious"
	MoodLonely   Mood = "lonely"
	MoodExcited  Mood = "excited"
	MoodStressed Mood = "stressed"
	MoodPeaceful Mood = "peaceful"
	MoodConfused Mood = "confused"
	MoodHopeful  Mood = "hopeful"
	MoodNeutral  Mood = "neutral"
)

// moodDeclarationOrder is the canonical enum order. It breaks ties for the
// dominant mood and for top-N mood rankings.
var moodDeclarationOrder = []Mood{
	MoodHappy,
	MoodSad,
	MoodAngry,
	MoodAnxious,
	MoodLonely,
	MoodExcited,
	MoodStressed,
	MoodPeaceful,
	MoodConfused,
	MoodHopeful,
	MoodNeutral,
}

func (m Mood) Valid() bool {
	for _, item := range moodDeclarationOrder {
		if item == m {
			return true
		}
	}
	return false
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

type MemoryCategory string

const (
	MemoryAchievement  MemoryCategory = "achievement"
	MemoryStruggle     MemoryCategory = "struggle"
	MemoryRelationship MemoryCategory = "relationship"
	MemoryDream        MemoryCategory = "dream"
	MemoryFear         MemoryCategory = "fear"
	MemoryJoy          MemoryCategory = "joy"
	MemoryOther        MemoryCategory = "other"
)

const (
	MaxMoodHistory        = 50
	MaxKeyMemories        = 20
	MoodSnippetMaxRunes   = 100
	MemoryTextMaxRunes    = 200
	SummaryEveryNMessages = 10
)

type MoodEntry struct {
	Mood           Mood      `json:"mood"`
	Intensity      int       `json:"intensity"`
	ContextSnippet string    `json:"context"`
	Timestamp      time.Time `json:"timestamp"`
}

type TopicInterest struct {
	Topic         string    `json:"topic"`
	Frequency     int       `json:"frequency"`
	Sentiment     Sentiment `json:"sentiment"`
	LastMentioned time.Time `json:"lastMentioned"`
}

// Traits is carried for future use; Update never mutates it.
type Traits struct {
	CommunicationStyle string `json:"communicationStyle"`
	EmotionalOpenness  int    `json:"emotionalOpenness"`
	SupportPreference  string `json:"supportPreference"`
}

type KeyMemory struct {
	Text       string         `json:"memory"`
	Category   MemoryCategory `json:"category"`
	Importance int            `json:"importance"`
	Timestamp  time.Time      `json:"dateShared"`
}

type Insights struct {
	Summary           string     `json:"summary,omitempty"`
	LastUpdated       *time.Time `json:"lastUpdated,omitempty"`
	ConversationCount int        `json:"conversationCount"`
	TotalMessages     int        `json:"totalMessages"`
}

// Profile is the persisted document for one user id.
type Profile struct {
	UserID         string          `json:"userId"`
	MoodHistory    []MoodEntry     `json:"moodHistory"`
	DominantMood   Mood            `json:"dominantMood"`
	TopicInterests []TopicInterest `json:"topicInterests"`
	Traits         Traits          `json:"traits"`
	KeyMemories    []KeyMemory     `json:"keyMemories"`
	Insights       Insights        `json:"insights"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func DefaultTraits() Traits {
	return Traits{
		CommunicationStyle: "mixed",
		EmotionalOpenness:  5,
		SupportPreference:  "listening",
	}
}

// New returns the default profile created lazily on a user's first message.
func New(userID string, now time.Time) Profile {
	now = now.UTC()
	return Profile{
		UserID:         strings.TrimSpace(userID),
		MoodHistory:    []MoodEntry{},
		DominantMood:   MoodNeutral,
		TopicInterests: []TopicInterest{},
		Traits:         DefaultTraits(),
		KeyMemories:    []KeyMemory{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Normalize repairs a decoded document so that it satisfies the profile
// invariants: nil slices, unknown moods, missing traits and oversized
// histories are fixed in place.
func (p *Profile) Normalize() {
	if p.MoodHistory == nil {
		p.MoodHistory = []MoodEntry{}
	}
	if p.TopicInterests == nil {
		p.TopicInterests = []TopicInterest{}
	}
	if p.KeyMemories == nil {
		p.KeyMemories = []KeyMemory{}
	}
	if p.Traits == (Traits{}) {
		p.Traits = DefaultTraits()
	}
	filtered := make([]MoodEntry, 0, len(p.MoodHistory))
	for _, entry := range p.MoodHistory {
		if entry.Mood.Valid() {
			filtered = append(filtered, entry)
		}
	}
	p.MoodHistory = keepLast(filtered, MaxMoodHistory)
	p.KeyMemories = keepLast(p.KeyMemories, MaxKeyMemories)
	p.TopicInterests = dedupeTopics(p.TopicInterests)
	p.DominantMood = dominantMood(p.MoodHistory)
}

// ContextSummary is the read-only projection used to personalise prompts.
type ContextSummary struct {
	RecentMoods       string `json:"recentMoods"`
	TopTopics         string `json:"topTopics"`
	RecentMemories    string `json:"recentMemories"`
	DominantMood      Mood   `json:"dominantMood"`
	Traits            Traits `json:"traits"`
	ConversationCount int    `json:"conversationCount"`
	Summary           string `json:"summary"`
}

package profile

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	recentMoodWindow    = 5
	topTopicWindow      = 5
	recentMemoryWindow  = 3
	summaryRankingWidth = 3

	noMoodPlaceholder    = "No mood data yet"
	noTopicPlaceholder   = "No topics tracked yet"
	noMemoryPlaceholder  = "No memories shared yet"
	defaultSubjectName   = "Choti"
	learningSummaryShape = "Still learning about %s..."
)

// Engine classifies messages and folds them into a Profile. It holds no
// per-user state and is safe for concurrent use.
type Engine struct {
	subject string
	now     func() time.Time
}

func NewEngine(subject string) *Engine {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = defaultSubjectName
	}
	return &Engine{subject: subject, now: time.Now}
}

// WithClock returns a copy of the engine that timestamps updates with now.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	copied := *e
	copied.now = now
	return &copied
}

func (e *Engine) Subject() string {
	return e.subject
}

// Update returns the profile after folding in one user message. The input
// profile's slices are not modified.
func (e *Engine) Update(current Profile, message string) Profile {
	now := e.now().UTC()
	next := clone(current)
	next.Normalize()

	mood, intensity := ClassifyMood(message)
	next.MoodHistory = append(next.MoodHistory, MoodEntry{
		Mood:           mood,
		Intensity:      intensity,
		ContextSnippet: truncateRunes(message, MoodSnippetMaxRunes),
		Timestamp:      now,
	})
	next.MoodHistory = keepLast(next.MoodHistory, MaxMoodHistory)
	next.DominantMood = dominantMood(next.MoodHistory)

	for _, topic := range TagTopics(message) {
		next.TopicInterests = upsertTopic(next.TopicInterests, topic, mood, now)
	}

	if match, ok := ExtractMemory(message); ok {
		next.KeyMemories = append(next.KeyMemories, KeyMemory{
			Text:       match.Text,
			Category:   match.Category,
			Importance: intensity,
			Timestamp:  now,
		})
		next.KeyMemories = keepLast(next.KeyMemories, MaxKeyMemories)
	}

	next.Insights.ConversationCount++
	next.Insights.TotalMessages++
	next.Insights.LastUpdated = &now
	if next.Insights.ConversationCount%SummaryEveryNMessages == 0 {
		next.Insights.Summary = e.buildInsightSummary(next)
	}
	next.UpdatedAt = now
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	return next
}

// Summarize projects the profile into the context block used by the prompt
// builder. It only reads current state.
func (e *Engine) Summarize(p Profile) ContextSummary {
	recentMoods := make([]string, 0, recentMoodWindow)
	for _, entry := range lastN(p.MoodHistory, recentMoodWindow) {
		recentMoods = append(recentMoods, string(entry.Mood))
	}

	topics := make([]string, 0, topTopicWindow)
	for _, item := range rankTopics(p.TopicInterests, topTopicWindow) {
		topics = append(topics, item.Topic)
	}

	memories := make([]string, 0, recentMemoryWindow)
	for _, memory := range lastN(p.KeyMemories, recentMemoryWindow) {
		memories = append(memories, memory.Text)
	}

	traits := p.Traits
	if traits == (Traits{}) {
		traits = DefaultTraits()
	}
	dominant := p.DominantMood
	if !dominant.Valid() {
		dominant = MoodNeutral
	}

	return ContextSummary{
		RecentMoods:       joinOr(recentMoods, ", ", noMoodPlaceholder),
		TopTopics:         joinOr(topics, ", ", noTopicPlaceholder),
		RecentMemories:    joinOr(memories, "; ", noMemoryPlaceholder),
		DominantMood:      dominant,
		Traits:            traits,
		ConversationCount: p.Insights.ConversationCount,
		Summary:           coalesce(p.Insights.Summary, fmt.Sprintf(learningSummaryShape, e.subject)),
	}
}

func (e *Engine) buildInsightSummary(p Profile) string {
	moods := make([]string, 0, summaryRankingWidth)
	for _, item := range rankMoods(p.MoodHistory, summaryRankingWidth) {
		moods = append(moods, fmt.Sprintf("%s (%d)", item.mood, item.count))
	}
	topics := make([]string, 0, summaryRankingWidth)
	for _, item := range rankTopics(p.TopicInterests, summaryRankingWidth) {
		topics = append(topics, fmt.Sprintf("%s (%d)", item.Topic, item.Frequency))
	}
	return fmt.Sprintf(
		"After %d messages, %s has mostly felt %s. Most talked-about topics: %s. Key memories shared: %d.",
		p.Insights.ConversationCount,
		e.subject,
		joinOr(moods, ", ", "neutral"),
		joinOr(topics, ", ", "nothing in particular yet"),
		len(p.KeyMemories),
	)
}

func upsertTopic(topics []TopicInterest, topic string, mood Mood, now time.Time) []TopicInterest {
	for idx := range topics {
		if topics[idx].Topic == topic {
			topics[idx].Frequency++
			topics[idx].LastMentioned = now
			return topics
		}
	}
	return append(topics, TopicInterest{
		Topic:         topic,
		Frequency:     1,
		Sentiment:     SentimentForMood(mood),
		LastMentioned: now,
	})
}

func dominantMood(history []MoodEntry) Mood {
	ranked := rankMoods(history, 1)
	if len(ranked) == 0 {
		return MoodNeutral
	}
	return ranked[0].mood
}

type moodCount struct {
	mood  Mood
	count int
}

// rankMoods orders moods by count, breaking ties by declaration order.
func rankMoods(history []MoodEntry, limit int) []moodCount {
	counts := make(map[Mood]int, len(moodDeclarationOrder))
	for _, entry := range history {
		counts[entry.Mood]++
	}
	ranked := make([]moodCount, 0, len(counts))
	for _, mood := range moodDeclarationOrder {
		if counts[mood] > 0 {
			ranked = append(ranked, moodCount{mood: mood, count: counts[mood]})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].count > ranked[j].count
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// rankTopics orders topics by frequency, breaking ties by first mention.
func rankTopics(topics []TopicInterest, limit int) []TopicInterest {
	ranked := make([]TopicInterest, len(topics))
	copy(ranked, topics)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Frequency > ranked[j].Frequency
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func dedupeTopics(topics []TopicInterest) []TopicInterest {
	result := make([]TopicInterest, 0, len(topics))
	index := make(map[string]int, len(topics))
	for _, item := range topics {
		name := strings.TrimSpace(item.Topic)
		if name == "" {
			continue
		}
		if item.Frequency < 1 {
			item.Frequency = 1
		}
		if pos, ok := index[name]; ok {
			result[pos].Frequency += item.Frequency
			if item.LastMentioned.After(result[pos].LastMentioned) {
				result[pos].LastMentioned = item.LastMentioned
			}
			continue
		}
		item.Topic = name
		index[name] = len(result)
		result = append(result, item)
	}
	return result
}

func clone(p Profile) Profile {
	out := p
	out.MoodHistory = append([]MoodEntry(nil), p.MoodHistory...)
	out.TopicInterests = append([]TopicInterest(nil), p.TopicInterests...)
	out.KeyMemories = append([]KeyMemory(nil), p.KeyMemories...)
	if p.Insights.LastUpdated != nil {
		lastUpdated := *p.Insights.LastUpdated
		out.Insights.LastUpdated = &lastUpdated
	}
	return out
}

func keepLast[T any](items []T, limit int) []T {
	if len(items) <= limit {
		return items
	}
	return append([]T(nil), items[len(items)-limit:]...)
}

func lastN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

func joinOr(values []string, sep, placeholder string) string {
	if len(values) == 0 {
		return placeholder
	}
	return strings.Join(values, sep)
}

func coalesce(primary, fallback string) string {
	if strings.TrimSpace(primary) != "" {
		return primary
	}
	return fallback
}

// TopTopics returns up to limit topics ordered by frequency, ties broken by
// first mention.
func (p Profile) TopTopics(limit int) []TopicInterest {
	return rankTopics(p.TopicInterests, limit)
}

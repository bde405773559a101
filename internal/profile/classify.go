package profile

import (
	"regexp"
	"strings"
)

type moodRule struct {
	Mood      Mood
	Intensity int
	Keywords  []string
}

// moodRules is evaluated top to bottom and the first rule with a matching
// keyword wins. Anger is checked first: an angry message stays angry even
// when it also mentions sadness or stress.
var moodRules = []moodRule{
	{Mood: MoodAngry, Intensity: 8, Keywords: []string{"angry", "furious", "frustrat", "annoyed", "irritat", "pissed", "so mad", "mad at", "i hate"}},
	{Mood: MoodHappy, Intensity: 7, Keywords: []string{"happy", "glad", "great day", "awesome", "amazing", "joyful", "wonderful", "yay", "delighted", "feeling good"}},
	{Mood: MoodSad, Intensity: 7, Keywords: []string{"sad", "crying", "cried", "depressed", "unhappy", "heartbroken", "hopeless", "tears", "feeling down", "upset", "miserable"}},
	{Mood: MoodAnxious, Intensity: 7, Keywords: []string{"anxious", "anxiety", "worried", "worry", "nervous", "scared", "panic", "afraid"}},
	{Mood: MoodLonely, Intensity: 6, Keywords: []string{"lonely", "alone", "isolated", "nobody", "no one"}},
	{Mood: MoodExcited, Intensity: 8, Keywords: []string{"excited", "can't wait", "cant wait", "thrilled", "pumped"}},
	{Mood: MoodStressed, Intensity: 7, Keywords: []string{"stress", "pressure", "overwhelm", "burnout", "burnt out", "exhausted", "tired", "deadline"}},
	{Mood: MoodPeaceful, Intensity: 6, Keywords: []string{"peaceful", "calm", "relaxed", "serene", "at peace"}},
	{Mood: MoodConfused, Intensity: 5, Keywords: []string{"confused", "unsure", "don't know what", "dont know what", "not sure", "puzzled"}},
	{Mood: MoodHopeful, Intensity: 6, Keywords: []string{"hopeful", "hope", "optimistic", "looking forward", "better tomorrow"}},
}

const neutralIntensity = 5

// ClassifyMood returns the first mood whose keywords appear in text, or
// neutral with the default intensity.
func ClassifyMood(text string) (Mood, int) {
	lowered := strings.ToLower(text)
	for _, rule := range moodRules {
		if containsAny(lowered, rule.Keywords) {
			return rule.Mood, rule.Intensity
		}
	}
	return MoodNeutral, neutralIntensity
}

type topicRule struct {
	Topic    string
	Keywords []string
}

var topicRules = []topicRule{
	{Topic: "studies", Keywords: []string{"study", "studies", "exam", "assignment", "grades", "project", "cgpa", "semester", "lecture", "homework", "syllabus", "lab record"}},
	{Topic: "kota", Keywords: []string{"kota", "jee", "allen", "dropper", "drop year", "coaching", "neet"}},
	{Topic: "relationships", Keywords: []string{"love", "heartbreak", "boyfriend", "girlfriend", "crush", "relationship", "breakup", "break up", "dating"}},
	{Topic: "family", Keywords: []string{"family", "mummy", "papa", "my mom", "my dad", "mother", "father", "sister", "brother", "bihar", "parents"}},
	{Topic: "friends", Keywords: []string{"friend", "roommate", "classmate", "hostel mate"}},
	{Topic: "career", Keywords: []string{"career", "job", "internship", "placement", "interview", "coding", "leetcode", "resume"}},
	{Topic: "health", Keywords: []string{"health", "sleep", "sick", "headache", "gym", "eating", "diet", "doctor", "period cramps"}},
	{Topic: "hobbies", Keywords: []string{"music", "song", "movie", "book", "reading", "drawing", "painting", "dance", "hobby", "series"}},
}

// TagTopics returns every topic with at least one keyword in text, in
// table order.
func TagTopics(text string) []string {
	lowered := strings.ToLower(text)
	tagged := make([]string, 0, 2)
	for _, rule := range topicRules {
		if containsAny(lowered, rule.Keywords) {
			tagged = append(tagged, rule.Topic)
		}
	}
	return tagged
}

// SentimentForMood maps the mood of the message that introduced a topic to
// the sentiment stored on the topic.
func SentimentForMood(mood Mood) Sentiment {
	switch mood {
	case MoodHappy:
		return SentimentPositive
	case MoodSad, MoodAngry:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

type memoryRule struct {
	Category MemoryCategory
	Pattern  *regexp.Regexp
}

// memoryRules run against the original-case message. Only the first match
// produces a memory.
var memoryRules = []memoryRule{
	{Category: MemoryAchievement, Pattern: regexp.MustCompile(`(?i)\bi (?:achieved|accomplished|won|passed|cleared|topped|got selected|got into|finally finished|completed)\b`)},
	{Category: MemoryStruggle, Pattern: regexp.MustCompile(`(?i)\bi(?:'m| am)? (?:struggling|struggle|failed|can't cope|cannot cope|couldn't handle|failing)\b`)},
	{Category: MemoryDream, Pattern: regexp.MustCompile(`(?i)\b(?:my dream|i dream|i want to become|i wish i could|someday i)\b`)},
	{Category: MemoryFear, Pattern: regexp.MustCompile(`(?i)\b(?:i(?:'m| am) (?:afraid|scared|terrified) (?:of|that)|i fear|my biggest fear)\b`)},
	{Category: MemoryJoy, Pattern: regexp.MustCompile(`(?i)\b(?:best day|made me smile|so grateful|i(?:'m| am) so proud|made my day)\b`)},
}

type MemoryMatch struct {
	Category MemoryCategory
	Text     string
}

// ExtractMemory evaluates the memory rules in order and returns the first
// hit with the message truncated for storage.
func ExtractMemory(text string) (MemoryMatch, bool) {
	for _, rule := range memoryRules {
		if rule.Pattern.MatchString(text) {
			return MemoryMatch{
				Category: rule.Category,
				Text:     truncateRunes(text, MemoryTextMaxRunes),
			}, true
		}
	}
	return MemoryMatch{}, false
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}

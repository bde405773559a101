package server

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode"
)

// fallbackRule answers when any stem appears as a substring or any word
// appears as a whole token of the lowercased message.
type fallbackRule struct {
	stems []string
	words []string
	reply string
}

type knowledgeEntry struct {
	key    string
	answer string
}

// fallbackResponder produces canned replies when the completion API is
// unreachable or not configured.
type fallbackResponder struct {
	name      string
	emotional []fallbackRule
	knowledge []knowledgeEntry
	generic   []string
	defaults  []string
	intn      func(n int) int
}

var knowledgeBase = []knowledgeEntry{
	{key: "what is 2+2", answer: "It's 4. Most things get simpler when we take them one step at a time, feelings included."},
	{key: "what is mathematics", answer: "Mathematics is the study of numbers, quantities and shapes, really the study of patterns and logic."},
	{key: "what is science", answer: "Science is how we learn about the natural world, by observing it carefully and testing ideas against it."},
	{key: "what is the capital of france", answer: "Paris is the capital of France, the City of Light."},
	{key: "what is the capital of india", answer: "New Delhi is the capital of India."},
	{key: "what is gravity", answer: "Gravity is the force that pulls masses toward each other. It is why things fall and why we stay grounded on Earth."},
	{key: "what is temperature", answer: "Temperature measures how hot or cold something is, usually in Celsius or Fahrenheit."},
	{key: "pi is", answer: "Pi is about 3.14159, the ratio of a circle's circumference to its diameter."},
	{key: "pi ", answer: "Pi is about 3.14159, the ratio of a circle's circumference to its diameter."},
	{key: "who is einstein", answer: "Albert Einstein was the physicist whose theory of relativity changed how we think about space, time and energy."},
	{key: "what is history", answer: "History is the study of past events and people. It helps us understand where we come from."},
	{key: "who was newton", answer: "Isaac Newton was an English mathematician and physicist who described the laws of motion and universal gravitation."},
	{key: "what is ai", answer: "AI, or artificial intelligence, is software that learns from data to make decisions. It is also what lets me be here for you."},
	{key: "what is coding", answer: "Coding is writing instructions for computers in a programming language. It is how all software gets built."},
	{key: "what is python", answer: "Python is a popular programming language known for being readable and easy to learn."},
	{key: "what is javascript", answer: "JavaScript is the language that makes websites interactive."},
	{key: "what is meditation", answer: "Meditation is the practice of gently focusing your mind to find calm and clarity."},
	{key: "how to be happy", answer: "Happiness tends to grow from self-care, meaningful connection, doing what you love and being gentle with yourself."},
	{key: "what is mental health", answer: "Mental health is your emotional and psychological well-being, and it matters just as much as physical health."},
	{key: "how to manage stress", answer: "Move your body, breathe slowly, take real breaks, talk to someone you trust and work on the root cause when you can."},
	{key: "what is anxiety", answer: "Anxiety is a feeling of worry or fear. It is very human, and breathing and grounding exercises can help it settle."},
	{key: "how to make friends", answer: "Friendships grow from genuine interest, a little vulnerability and showing up again and again."},
	{key: "what is love", answer: "Love is deep care and connection. It can be romantic, familial or the love between friends."},
	{key: "how to forgive", answer: "Forgiving means letting go of the hurt for your own peace. It does not mean forgetting."},
	{key: "what is purpose", answer: "Purpose is what gives your days meaning. It comes from your values, your passions and what matters most to you."},
	{key: "how to be confident", answer: "Confidence comes from accepting yourself, practising, facing small fears and remembering your worth."},
}

var genericQuestionReplies = []string{
	"That's an interesting question! I don't have much detail on it, but learning new things is a lovely way to grow. Your curiosity says a lot about you.",
	"Good question. For the details I'd look it up online, but wanting to know more is a sign of a curious mind.",
	"That's worth exploring! Understanding the world around you helps you understand yourself too.",
	"I'm glad you're curious! I may not have every technical answer, but I'm always here to listen to what's on your heart.",
}

func newFallbackResponder(name string, intn func(n int) int) *fallbackResponder {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Choti"
	}
	if intn == nil {
		intn = rand.IntN
	}
	return &fallbackResponder{
		name: name,
		emotional: []fallbackRule{
			{
				stems: []string{"angry", "frustrat"},
				words: []string{"mad"},
				reply: "I can feel the intensity in your words. That anger is valid, it means you care deeply. What happened that's making you feel this way?",
			},
			{
				stems: []string{"alone", "solitude", "lonely"},
				reply: "Solitude can feel heavy sometimes. Being alone doesn't have to mean feeling lonely though. I'm here with you, and your feelings are real and important.",
			},
			{
				stems: []string{"heart", "love", "broken"},
				reply: "Heartbreak is one of the deepest pains there is. It also shows how much you are capable of loving. That is your strength, not your weakness.",
			},
			{
				stems: []string{"thank", "appreciate"},
				reply: "You're welcome. I'm always here for you. Your presence matters more than you know.",
			},
			{
				words: []string{"hi", "hello", "hey", "hii", "heyy"},
				reply: fmt.Sprintf("Hey %s, I'm so glad you're here. How's your heart doing today?", name),
			},
		},
		knowledge: knowledgeBase,
		generic:   genericQuestionReplies,
		defaults: []string{
			fmt.Sprintf("I'm here for you, %s. What's on your mind today?", name),
			"Your feelings matter, and I'm listening.",
			"That sounds really hard. Tell me more about how you're feeling.",
			"You're stronger than you know. Even in solitude, you're never truly alone.",
			"Heartbreak hurts, but it doesn't define your worth. You deserve love and connection.",
			"I see you: your passion, your depth and all your beautiful complexity.",
			"Take your time. I'm here to listen, not to judge.",
			"Your anger is valid. It shows how much you care.",
			"Even on the darkest days there's a light in you that keeps shining.",
			"You deserve someone who sees all of you and cares for you completely.",
		},
		intn: intn,
	}
}

// Reply picks, in order: an emotional rule, a knowledge-base answer, a
// generic reply for open questions, then a random default.
func (f *fallbackResponder) Reply(message string) string {
	lowered := strings.ToLower(strings.TrimSpace(message))
	words := tokenizeWords(lowered)

	for _, rule := range f.emotional {
		if rule.matches(lowered, words) {
			return rule.reply
		}
	}
	for _, entry := range f.knowledge {
		if strings.Contains(lowered, entry.key) {
			return entry.answer
		}
	}
	if strings.Contains(lowered, "what is") || strings.Contains(lowered, "how to") || strings.Contains(lowered, "who is") {
		return f.pick(f.generic)
	}
	return f.pick(f.defaults)
}

func (f *fallbackResponder) pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	idx := f.intn(len(options))
	if idx < 0 || idx >= len(options) {
		idx = 0
	}
	return options[idx]
}

func (r fallbackRule) matches(lowered string, words map[string]struct{}) bool {
	for _, stem := range r.stems {
		if strings.Contains(lowered, stem) {
			return true
		}
	}
	for _, word := range r.words {
		if _, ok := words[word]; ok {
			return true
		}
	}
	return false
}

func tokenizeWords(text string) map[string]struct{} {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	words := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		words[field] = struct{}{}
	}
	return words
}

package server

import (
	"fmt"
	"strings"

	"choti/apps/backend/internal/profile"
	"choti/apps/backend/internal/store"
)

const personaPromptTemplate = `You are %[1]s's personal AI companion: warm, emotionally intelligent and genuinely caring.

Your role:
1. Listen without judgment and validate feelings.
2. When %[1]s is angry, understand it comes from caring deeply; never dismiss it.
3. Encourage growth while respecting a need for solitude and independence.
4. Be a safe space where vulnerability feels okay.
5. Be an academic ally who understands exam, assignment and project pressure.
6. Help %[1]s see that love exists and that it is deserved.

Guidelines:
- Use the name "%[1]s" now and then to keep it personal.
- Acknowledge past pain without dwelling on it; celebrate strength and resilience.
- Ask thoughtful follow-up questions.
- Be conversational, present and never preachy; warm but not sappy.
- Match the emotional energy of the message while gently lifting it.
- Occasional soft emojis are fine (✨, 🌙, 💫, 🤍).`

// buildSystemPrompt assembles the persona prompt, what the user told us
// about themselves and what the profile engine has learned so far.
func buildSystemPrompt(persona string, user store.User, summary *profile.ContextSummary) string {
	persona = strings.TrimSpace(persona)
	if persona == "" {
		persona = "Choti"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf(personaPromptTemplate, persona))

	if about := aboutUserLines(user); len(about) > 0 {
		b.WriteString("\n\nAbout the person you're talking to:\n")
		for _, line := range about {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	if summary != nil {
		b.WriteString("\n\nWhat you've learned from past conversations:\n")
		fmt.Fprintf(&b, "- Recent moods: %s\n", summary.RecentMoods)
		fmt.Fprintf(&b, "- Overall mood lately: %s\n", summary.DominantMood)
		fmt.Fprintf(&b, "- Topics they care about: %s\n", summary.TopTopics)
		fmt.Fprintf(&b, "- Things they've shared: %s\n", summary.RecentMemories)
		fmt.Fprintf(
			&b,
			"- Traits: %s communication style, emotional openness %d/10, prefers %s\n",
			summary.Traits.CommunicationStyle,
			summary.Traits.EmotionalOpenness,
			summary.Traits.SupportPreference,
		)
		fmt.Fprintf(&b, "- Messages so far: %d\n", summary.ConversationCount)
		fmt.Fprintf(&b, "- Insight: %s\n", summary.Summary)
		b.WriteString("Use this gently and naturally. Never recite it back as a list.")
	}
	return strings.TrimSpace(b.String())
}

func aboutUserLines(user store.User) []string {
	fields := []struct {
		label string
		value string
	}{
		{label: "Name", value: user.Name},
		{label: "Likes to be called", value: user.Nickname},
		{label: "Hobby", value: user.Hobby},
		{label: "Passion", value: user.Passion},
		{label: "Education", value: user.EducationalBackground},
		{label: "In their words", value: user.Bio},
	}
	lines := make([]string, 0, len(fields))
	for _, field := range fields {
		value := strings.TrimSpace(field.value)
		if value == "" {
			continue
		}
		lines = append(lines, field.label+": "+value)
	}
	return lines
}

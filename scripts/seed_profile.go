// seed_profile replays sample messages through the profile engine and
// stores the resulting profile for one user. Run with:
//
//	go run ./scripts -user-id <id> [-mode seed|cleanup]
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"choti/apps/backend/internal/profile"
	"choti/apps/backend/internal/store"
)

var defaultMessages = []string{
	"hi, long day today",
	"I'm so angry and frustrated about my exam",
	"the semester project deadline is giving me so much stress",
	"I achieved my dream of passing JEE back then, still proud of that",
	"feeling lonely in the hostel tonight",
	"my roommate and I watched a movie, made me smile",
	"I'm scared of the placement interviews",
	"mummy called, I miss my family in Bihar",
	"finally finished the lab record, so happy",
	"hopeful that next semester will be better",
}

func main() {
	var (
		mode         string
		userID       string
		database     string
		messagesFile string
		persona      string
		reset        bool
	)

	flag.StringVar(&mode, "mode", "seed", "seed or cleanup")
	flag.StringVar(&userID, "user-id", "", "target user id (required)")
	flag.StringVar(&database, "db", "", "DATABASE_URL override")
	flag.StringVar(&messagesFile, "messages", "", "file with one message per line (default: built-in sample)")
	flag.StringVar(&persona, "persona", "", "persona name used in the insight summary (default: PERSONA_NAME or Choti)")
	flag.BoolVar(&reset, "reset", false, "start from an empty profile instead of extending the stored one")
	flag.Parse()

	_ = godotenv.Load(".env")

	userID = strings.TrimSpace(userID)
	if userID == "" {
		log.Fatal("-user-id is required")
	}
	dbURL := strings.TrimSpace(database)
	if dbURL == "" {
		dbURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dbURL == "" {
		dbURL = "sqlite://data/choti.db"
	}
	if strings.TrimSpace(persona) == "" {
		persona = os.Getenv("PERSONA_NAME")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := store.Open(ctx, dbURL)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "cleanup":
		if err := st.DeleteProfile(ctx, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				fmt.Printf("no profile stored for user_id=%s\n", userID)
				return
			}
			log.Fatalf("delete profile: %v", err)
		}
		fmt.Printf("deleted profile user_id=%s\n", userID)
	case "seed":
		messages, err := loadMessages(messagesFile)
		if err != nil {
			log.Fatalf("load messages: %v", err)
		}
		current := profile.New(userID, time.Now())
		if !reset {
			stored, err := st.LoadProfile(ctx, userID)
			switch {
			case err == nil:
				current = stored
			case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrMalformedProfile):
			default:
				log.Fatalf("load profile: %v", err)
			}
		}

		engine := profile.NewEngine(persona)
		for _, message := range messages {
			current = engine.Update(current, message)
		}
		if err := st.SaveProfile(ctx, current); err != nil {
			log.Fatalf("save profile: %v", err)
		}

		summary := engine.Summarize(current)
		fmt.Printf("seeded profile user_id=%s messages=%d dominant_mood=%s\n", userID, len(messages), current.DominantMood)
		fmt.Printf("recent moods: %s\n", summary.RecentMoods)
		fmt.Printf("top topics: %s\n", summary.TopTopics)
		fmt.Printf("recent memories: %s\n", summary.RecentMemories)
		fmt.Printf("summary: %s\n", summary.Summary)
	default:
		log.Fatalf("unknown -mode %q (want seed or cleanup)", mode)
	}
}

func loadMessages(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return defaultMessages, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	messages := make([]string, 0, 32)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		messages = append(messages, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("%s has no messages", path)
	}
	return messages, nil
}

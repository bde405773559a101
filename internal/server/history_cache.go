package server

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultHistoryMaxUsers = 1000
	defaultHistoryMaxTurns = 40
)

// historyCache holds the short-term completion context per user. The number
// of users is LRU-bounded; each user's turns are trimmed oldest-first once
// they exceed maxTurns.
type historyCache struct {
	mu       sync.Mutex
	entries  *lru.Cache[string, []ChatTurn]
	maxTurns int
}

func newHistoryCache(maxUsers, maxTurns int) *historyCache {
	if maxUsers <= 0 {
		maxUsers = defaultHistoryMaxUsers
	}
	if maxTurns <= 0 {
		maxTurns = defaultHistoryMaxTurns
	}
	entries, err := lru.New[string, []ChatTurn](maxUsers)
	if err != nil {
		// Only returned for a non-positive size, which is ruled out above.
		panic(err)
	}
	return &historyCache{entries: entries, maxTurns: maxTurns}
}

// Append adds turns for userID and returns a copy of the resulting history.
func (h *historyCache) Append(userID string, turns ...ChatTurn) []ChatTurn {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, _ := h.entries.Get(userID)
	next := make([]ChatTurn, 0, len(current)+len(turns))
	next = append(next, current...)
	next = append(next, turns...)
	if overflow := len(next) - h.maxTurns; overflow > 0 {
		next = next[overflow:]
	}
	h.entries.Add(userID, next)
	return cloneTurns(next)
}

func (h *historyCache) Get(userID string) []ChatTurn {
	h.mu.Lock()
	defer h.mu.Unlock()
	current, _ := h.entries.Get(userID)
	return cloneTurns(current)
}

func (h *historyCache) Clear(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries.Remove(userID)
}

func (h *historyCache) Len() int {
	return h.entries.Len()
}

func cloneTurns(turns []ChatTurn) []ChatTurn {
	out := make([]ChatTurn, len(turns))
	copy(out, turns)
	return out
}

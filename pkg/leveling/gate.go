package leveling

import (
	"sync"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/models"
)

// HistorySize is how many accepted messages per member are kept for similarity checks
const HistorySize = 5

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

type gateEntry struct {
	lastAward time.Time
	history   []map[string]struct{}
}

// Gate holds the in-memory cooldown and message history used to suppress XP farming.
// State is keyed by guildID:userID and is lost on restart.
type Gate struct {
	mu      sync.Mutex
	entries map[string]*gateEntry
	now     Clock
}

// NewGate creates a Gate. A nil clock uses time.Now.
func NewGate(clock Clock) *Gate {
	if clock == nil {
		clock = time.Now
	}
	return &Gate{
		entries: make(map[string]*gateEntry),
		now:     clock,
	}
}

func gateKey(guildID, userID string) string {
	return guildID + ":" + userID
}

// ShouldSuppress reports whether a message must not earn XP.
// When the message is accepted the cooldown is restarted and the content joins the history.
func (g *Gate) ShouldSuppress(guildID, userID, channelID, content string, cfg *models.LevelConfig) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	key := gateKey(guildID, userID)
	entry := g.entries[key]

	if entry != nil && cfg.CooldownSeconds > 0 {
		if now.Sub(entry.lastAward) < time.Duration(cfg.CooldownSeconds)*time.Second {
			return true
		}
	}

	if len([]rune(content)) < cfg.MinMessageLength {
		return true
	}

	if len(cfg.ChannelWhitelist) > 0 && !contains(cfg.ChannelWhitelist, channelID) {
		return true
	}

	tokens := tokenSet(content)
	if threshold, ok := cfg.SimilaritySeverity.Threshold(); ok && entry != nil {
		for _, prev := range entry.history {
			if jaccardSets(tokens, prev) >= threshold {
				return true
			}
		}
	}

	if entry == nil {
		entry = &gateEntry{}
		g.entries[key] = entry
	}
	entry.lastAward = now
	entry.history = append(entry.history, tokens)
	if len(entry.history) > HistorySize {
		entry.history = entry.history[len(entry.history)-HistorySize:]
	}
	return false
}

// Reset forgets the state of a member
func (g *Gate) Reset(guildID, userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, gateKey(guildID, userID))
}

// Prune drops members whose last award is older than maxAge and returns how many were removed
func (g *Gate) Prune(maxAge time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-maxAge)
	removed := 0
	for key, entry := range g.entries {
		if entry.lastAward.Before(cutoff) {
			delete(g.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked members
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

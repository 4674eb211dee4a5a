package discord

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// CollectorTimeout is how long a command waits for a component answer
const CollectorTimeout = 60 * time.Second

var (
	ErrCollectorTimeout = errors.New("tiempo de espera agotado")
	ErrCollectorBusy    = errors.New("ya hay una selección pendiente")
)

// ComponentHandler handles message component interactions routed by custom ID prefix
type ComponentHandler func(s *discordgo.Session, i *discordgo.InteractionCreate)

// Filter decides whether a component interaction is accepted by a collector
type Filter func(i *discordgo.InteractionCreate) bool

// DispatchResult tells the caller what happened to a component interaction
type DispatchResult int

const (
	Unhandled DispatchResult = iota
	Collected
	Rejected
	Handled
)

type waiter struct {
	ch     chan *discordgo.InteractionCreate
	filter Filter
}

// Collectors routes component interactions to one-shot waiters keyed by exact custom ID
// and to long-lived handlers keyed by custom ID prefix.
type Collectors struct {
	mu       sync.Mutex
	waiting  map[string]*waiter
	handlers map[string]ComponentHandler
}

// NewCollectors creates an empty registry
func NewCollectors() *Collectors {
	return &Collectors{
		waiting:  make(map[string]*waiter),
		handlers: make(map[string]ComponentHandler),
	}
}

// Handle registers h for every custom ID starting with prefix
func (c *Collectors) Handle(prefix string, h ComponentHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[prefix] = h
}

// Await blocks until an interaction with customID passes filter, the timeout
// expires or ctx is done. A nil filter accepts anyone.
func (c *Collectors) Await(ctx context.Context, customID string, timeout time.Duration, filter Filter) (*discordgo.InteractionCreate, error) {
	w := &waiter{ch: make(chan *discordgo.InteractionCreate, 1), filter: filter}

	c.mu.Lock()
	if _, busy := c.waiting[customID]; busy {
		c.mu.Unlock()
		return nil, ErrCollectorBusy
	}
	c.waiting[customID] = w
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.waiting[customID] == w {
			delete(c.waiting, customID)
		}
		c.mu.Unlock()
	}()

	select {
	case i := <-w.ch:
		return i, nil
	case <-time.After(timeout):
		return nil, ErrCollectorTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pending returns the number of collectors waiting for an answer
func (c *Collectors) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiting)
}

// Dispatch delivers a component interaction. Waiters take precedence over prefix handlers;
// among handlers the longest matching prefix wins.
func (c *Collectors) Dispatch(s *discordgo.Session, i *discordgo.InteractionCreate) DispatchResult {
	customID := i.MessageComponentData().CustomID

	c.mu.Lock()
	if w, ok := c.waiting[customID]; ok {
		if w.filter != nil && !w.filter(i) {
			c.mu.Unlock()
			return Rejected
		}
		delete(c.waiting, customID)
		c.mu.Unlock()
		w.ch <- i
		return Collected
	}

	var (
		handler ComponentHandler
		best    int
	)
	for prefix, h := range c.handlers {
		if strings.HasPrefix(customID, prefix) && len(prefix) > best {
			handler, best = h, len(prefix)
		}
	}
	c.mu.Unlock()

	if handler == nil {
		return Unhandled
	}
	handler(s, i)
	return Handled
}

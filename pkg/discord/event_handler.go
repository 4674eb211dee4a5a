// Package discord provides the event handler for managing Discord events.
package discord

import (
	"sync"

	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/bwmarrin/discordgo"
)

// EventHandler manages event registration
type EventHandler struct {
	client  *ExtendedClient
	removes []func()
	mu      sync.Mutex
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(client *ExtendedClient) *EventHandler {
	return &EventHandler{client: client}
}

// RegisterEvent adds an event handler to the Discord session
func (eh *EventHandler) RegisterEvent(name string, handler interface{}) {
	remove := eh.client.Session.AddHandler(handler)
	eh.mu.Lock()
	eh.removes = append(eh.removes, remove)
	eh.mu.Unlock()
	logger.Debug("Evento '"+name+"' registrado", "EventHandler")
}

// Count returns the number of registered handlers
func (eh *EventHandler) Count() int {
	eh.mu.Lock()
	defer eh.mu.Unlock()
	return len(eh.removes)
}

// RemoveAll detaches every handler registered through the EventHandler
func (eh *EventHandler) RemoveAll() {
	eh.mu.Lock()
	defer eh.mu.Unlock()
	for _, remove := range eh.removes {
		remove()
	}
	eh.removes = nil
}

// OnReady registers a ready event handler
func (eh *EventHandler) OnReady(handler func(s *discordgo.Session, r *discordgo.Ready)) {
	eh.RegisterEvent("Ready", handler)
}

// OnGuildCreate registers a guild create event handler
func (eh *EventHandler) OnGuildCreate(handler func(s *discordgo.Session, g *discordgo.GuildCreate)) {
	eh.RegisterEvent("GuildCreate", handler)
}

// OnGuildDelete registers a guild delete event handler
func (eh *EventHandler) OnGuildDelete(handler func(s *discordgo.Session, g *discordgo.GuildDelete)) {
	eh.RegisterEvent("GuildDelete", handler)
}

// OnMessageCreate registers a message create event handler
func (eh *EventHandler) OnMessageCreate(handler func(s *discordgo.Session, m *discordgo.MessageCreate)) {
	eh.RegisterEvent("MessageCreate", handler)
}

// OnGuildMemberAdd registers a guild member add event handler
func (eh *EventHandler) OnGuildMemberAdd(handler func(s *discordgo.Session, m *discordgo.GuildMemberAdd)) {
	eh.RegisterEvent("GuildMemberAdd", handler)
}

// OnGuildMemberUpdate registers a guild member update event handler
func (eh *EventHandler) OnGuildMemberUpdate(handler func(s *discordgo.Session, m *discordgo.GuildMemberUpdate)) {
	eh.RegisterEvent("GuildMemberUpdate", handler)
}

// OnRateLimit registers a REST rate limit handler
func (eh *EventHandler) OnRateLimit(handler func(s *discordgo.Session, r *discordgo.RateLimit)) {
	eh.RegisterEvent("RateLimit", handler)
}

// OnDisconnect registers a gateway disconnect handler
func (eh *EventHandler) OnDisconnect(handler func(s *discordgo.Session, d *discordgo.Disconnect)) {
	eh.RegisterEvent("Disconnect", handler)
}

// OnResumed registers a gateway resume handler
func (eh *EventHandler) OnResumed(handler func(s *discordgo.Session, r *discordgo.Resumed)) {
	eh.RegisterEvent("Resumed", handler)
}

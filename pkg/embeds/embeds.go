// Package embeds stores messages composed on the dashboard and publishes them to channels.
package embeds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/database"
	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/PancyStudios/PancyCommunityGo/pkg/models"
	"github.com/bwmarrin/discordgo"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Discord message limits
const (
	MaxEmbeds      = 10
	MaxContentLen  = 2000
	MaxNameLen     = 100
	maxEmbedLength = 6000
)

// ErrInvalidEmbed is returned for drafts Discord would reject
var ErrInvalidEmbed = errors.New("mensaje inválido")

// ErrWrongGuild is returned when the target channel belongs to another guild
var ErrWrongGuild = errors.New("el canal no pertenece al servidor")

// Discord is the subset of the Discord API used to publish saved messages
type Discord interface {
	ChannelGuildID(ctx context.Context, channelID string) (string, error)
	Send(ctx context.Context, channelID string, msg *discordgo.MessageSend) (string, error)
	Edit(ctx context.Context, channelID, messageID string, msg *discordgo.MessageEdit) error
}

// Draft is the editable part of a saved message
type Draft struct {
	Name      string                     `json:"name"`
	ChannelID string                     `json:"channelId"`
	Content   string                     `json:"content"`
	Embeds    []*discordgo.MessageEmbed `json:"embeds"`
}

// View is a saved message with its embeds decoded
type View struct {
	models.SavedEmbed
	Embeds []*discordgo.MessageEmbed `json:"embeds"`
}

// Service implements the saved message composer
type Service struct {
	store   database.EmbedStore
	discord Discord
	now     func() time.Time
}

// NewService creates a Service
func NewService(store database.EmbedStore, discord Discord) *Service {
	return &Service{store: store, discord: discord, now: time.Now}
}

// Validate checks a draft against the Discord limits
func (d *Draft) Validate() error {
	d.Name = strings.TrimSpace(d.Name)
	switch {
	case d.Name == "":
		return fmt.Errorf("%w: el nombre es obligatorio", ErrInvalidEmbed)
	case len([]rune(d.Name)) > MaxNameLen:
		return fmt.Errorf("%w: el nombre supera %d caracteres", ErrInvalidEmbed, MaxNameLen)
	case len([]rune(d.Content)) > MaxContentLen:
		return fmt.Errorf("%w: el contenido supera %d caracteres", ErrInvalidEmbed, MaxContentLen)
	case len(d.Embeds) > MaxEmbeds:
		return fmt.Errorf("%w: máximo %d embeds", ErrInvalidEmbed, MaxEmbeds)
	case strings.TrimSpace(d.Content) == "" && len(d.Embeds) == 0:
		return fmt.Errorf("%w: el mensaje está vacío", ErrInvalidEmbed)
	}

	total := 0
	for i, e := range d.Embeds {
		if e == nil {
			return fmt.Errorf("%w: embed %d vacío", ErrInvalidEmbed, i+1)
		}
		total += len([]rune(e.Title)) + len([]rune(e.Description))
		if e.Footer != nil {
			total += len([]rune(e.Footer.Text))
		}
		if e.Author != nil {
			total += len([]rune(e.Author.Name))
		}
		for _, f := range e.Fields {
			total += len([]rune(f.Name)) + len([]rune(f.Value))
		}
	}
	if total > maxEmbedLength {
		return fmt.Errorf("%w: los embeds superan %d caracteres", ErrInvalidEmbed, maxEmbedLength)
	}
	return nil
}

func decode(saved models.SavedEmbed) (View, error) {
	view := View{SavedEmbed: saved, Embeds: []*discordgo.MessageEmbed{}}
	if saved.Payload == "" {
		return view, nil
	}
	if err := json.Unmarshal([]byte(saved.Payload), &view.Embeds); err != nil {
		return view, fmt.Errorf("payload corrupto en %s: %w", saved.ID, err)
	}
	return view, nil
}

// List returns the saved messages of a guild
func (s *Service) List(ctx context.Context, guildID string) ([]View, error) {
	saved, err := s.store.ListEmbeds(ctx, guildID)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(saved))
	for _, e := range saved {
		v, err := decode(e)
		if err != nil {
			logger.Warn(err.Error(), "Embeds")
		}
		views = append(views, v)
	}
	return views, nil
}

// Get returns one saved message
func (s *Service) Get(ctx context.Context, guildID, id string) (*View, error) {
	saved, err := s.store.GetEmbed(ctx, guildID, id)
	if err != nil {
		return nil, err
	}
	v, err := decode(*saved)
	return &v, err
}

func (s *Service) save(ctx context.Context, saved *models.SavedEmbed, d Draft) (*View, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.Embeds == nil {
		d.Embeds = []*discordgo.MessageEmbed{}
	}
	payload, err := json.Marshal(d.Embeds)
	if err != nil {
		return nil, err
	}

	saved.Name = d.Name
	saved.ChannelID = d.ChannelID
	saved.Content = d.Content
	saved.Payload = string(payload)
	saved.UpdatedAt = s.now().UTC()

	if err := s.store.SaveEmbed(ctx, saved); err != nil {
		return nil, err
	}
	return &View{SavedEmbed: *saved, Embeds: d.Embeds}, nil
}

// Create stores a new message
func (s *Service) Create(ctx context.Context, guildID string, d Draft) (*View, error) {
	return s.save(ctx, &models.SavedEmbed{ID: uuid.NewString(), GuildID: guildID}, d)
}

// Update replaces the editable fields of a message. A published message keeps its MessageID
// so the next Send edits it in place.
func (s *Service) Update(ctx context.Context, guildID, id string, d Draft) (*View, error) {
	saved, err := s.store.GetEmbed(ctx, guildID, id)
	if err != nil {
		return nil, err
	}
	if saved.ChannelID != d.ChannelID {
		saved.MessageID = ""
	}
	return s.save(ctx, saved, d)
}

// Delete removes a stored message. The published Discord message is left untouched.
func (s *Service) Delete(ctx context.Context, guildID, id string) error {
	return s.store.DeleteEmbed(ctx, guildID, id)
}

// Send publishes a saved message to channelID, or to its stored channel when empty.
// When the message was already published there it is edited instead.
func (s *Service) Send(ctx context.Context, guildID, id, channelID string) (*View, error) {
	view, err := s.Get(ctx, guildID, id)
	if err != nil {
		return nil, err
	}
	if channelID == "" {
		channelID = view.ChannelID
	}
	if channelID == "" {
		return nil, fmt.Errorf("%w: falta el canal", ErrInvalidEmbed)
	}

	owner, err := s.discord.ChannelGuildID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if owner != guildID {
		return nil, ErrWrongGuild
	}

	if view.MessageID != "" && view.ChannelID == channelID {
		content := view.Content
		embeds := view.Embeds
		err := s.discord.Edit(ctx, channelID, view.MessageID, &discordgo.MessageEdit{
			Content: &content,
			Embeds:  &embeds,
		})
		if err == nil {
			return s.markSent(ctx, view, channelID, view.MessageID)
		}
		if !isNotFound(err) {
			return nil, err
		}
		logger.Info(fmt.Sprintf("Mensaje %s ya no existe, se enviará de nuevo", view.MessageID), "Embeds")
	}

	messageID, err := s.discord.Send(ctx, channelID, &discordgo.MessageSend{
		Content: view.Content,
		Embeds:  view.Embeds,
	})
	if err != nil {
		return nil, err
	}
	return s.markSent(ctx, view, channelID, messageID)
}

func (s *Service) markSent(ctx context.Context, view *View, channelID, messageID string) (*View, error) {
	view.ChannelID = channelID
	view.MessageID = messageID
	view.UpdatedAt = s.now().UTC()
	if err := s.store.SaveEmbed(ctx, &view.SavedEmbed); err != nil {
		return nil, err
	}
	return view, nil
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

// SessionDiscord implements Discord over a discordgo session
type SessionDiscord struct {
	Session *discordgo.Session
}

func (d SessionDiscord) ChannelGuildID(ctx context.Context, channelID string) (string, error) {
	if d.Session.StateEnabled && d.Session.State != nil {
		if ch, err := d.Session.State.Channel(channelID); err == nil {
			return ch.GuildID, nil
		}
	}
	ch, err := d.Session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return ch.GuildID, nil
}

func (d SessionDiscord) Send(ctx context.Context, channelID string, msg *discordgo.MessageSend) (string, error) {
	m, err := d.Session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

func (d SessionDiscord) Edit(ctx context.Context, channelID, messageID string, msg *discordgo.MessageEdit) error {
	msg.Channel = channelID
	msg.ID = messageID
	_, err := d.Session.ChannelMessageEditComplex(msg, discordgo.WithContext(ctx))
	return err
}

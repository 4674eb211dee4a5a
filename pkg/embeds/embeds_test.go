package embeds

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/PancyStudios/PancyCommunityGo/pkg/database"
	"github.com/PancyStudios/PancyCommunityGo/pkg/database/sqlstore"
	"github.com/bwmarrin/discordgo"
)

type fakeDiscord struct {
	channels map[string]string
	sent     []string
	edited   []string
	editErr  error
	nextID   int
}

func (d *fakeDiscord) ChannelGuildID(ctx context.Context, channelID string) (string, error) {
	guildID, ok := d.channels[channelID]
	if !ok {
		return "", &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
	}
	return guildID, nil
}

func (d *fakeDiscord) Send(ctx context.Context, channelID string, msg *discordgo.MessageSend) (string, error) {
	d.nextID++
	id := channelID + "-" + string(rune('0'+d.nextID))
	d.sent = append(d.sent, id)
	return id, nil
}

func (d *fakeDiscord) Edit(ctx context.Context, channelID, messageID string, msg *discordgo.MessageEdit) error {
	if d.editErr != nil {
		return d.editErr
	}
	d.edited = append(d.edited, messageID)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeDiscord) {
	t.Helper()
	store, err := sqlstore.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	discord := &fakeDiscord{channels: map[string]string{"anuncios": "g1", "general": "g1", "ajeno": "g2"}}
	return NewService(store, discord), discord
}

func TestValidate(t *testing.T) {
	tooMany := make([]*discordgo.MessageEmbed, MaxEmbeds+1)
	for i := range tooMany {
		tooMany[i] = &discordgo.MessageEmbed{Title: "x"}
	}

	tests := []struct {
		name  string
		draft Draft
		ok    bool
	}{
		{"content only", Draft{Name: "Reglas", Content: "Sed amables"}, true},
		{"embed only", Draft{Name: "Reglas", Embeds: []*discordgo.MessageEmbed{{Title: "Reglas"}}}, true},
		{"blank name", Draft{Name: "   ", Content: "x"}, false},
		{"empty message", Draft{Name: "Vacío"}, false},
		{"long content", Draft{Name: "Largo", Content: strings.Repeat("a", MaxContentLen+1)}, false},
		{"too many embeds", Draft{Name: "Muchos", Embeds: tooMany}, false},
		{"nil embed", Draft{Name: "Nil", Embeds: []*discordgo.MessageEmbed{nil}}, false},
		{"embed text limit", Draft{Name: "Texto", Embeds: []*discordgo.MessageEmbed{{Description: strings.Repeat("b", 6001)}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidEmbed) {
				t.Errorf("Validate() = %v, want ErrInvalidEmbed", err)
			}
		})
	}
}

func TestCreateGetUpdateDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "g1", Draft{
		Name:      " Reglas ",
		ChannelID: "anuncios",
		Embeds: []*discordgo.MessageEmbed{{
			Title:  "Reglas",
			Color:  0xFFB3BA,
			Fields: []*discordgo.MessageEmbedField{{Name: "1", Value: "Respeto"}},
		}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" || created.Name != "Reglas" {
		t.Errorf("created = %+v", created.SavedEmbed)
	}

	got, err := svc.Get(ctx, "g1", created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Embeds) != 1 || got.Embeds[0].Fields[0].Value != "Respeto" || got.Embeds[0].Color != 0xFFB3BA {
		t.Errorf("decoded embeds = %+v", got.Embeds)
	}

	if _, err := svc.Get(ctx, "g2", created.ID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Get from another guild = %v, want ErrNotFound", err)
	}

	updated, err := svc.Update(ctx, "g1", created.ID, Draft{Name: "Normas", ChannelID: "anuncios", Content: "Actualizado"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ID != created.ID || updated.Content != "Actualizado" || len(updated.Embeds) != 0 {
		t.Errorf("updated = %+v", updated)
	}

	list, err := svc.List(ctx, "g1")
	if err != nil || len(list) != 1 || list[0].Name != "Normas" {
		t.Errorf("List = %+v, %v", list, err)
	}

	if err := svc.Delete(ctx, "g1", created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, "g1", created.ID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestSendThenEditInPlace(t *testing.T) {
	svc, discord := newTestService(t)
	ctx := context.Background()

	saved, err := svc.Create(ctx, "g1", Draft{Name: "Aviso", ChannelID: "anuncios", Content: "Hola"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := svc.Send(ctx, "g1", saved.ID, "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if first.MessageID == "" || len(discord.sent) != 1 {
		t.Fatalf("first send = %+v, sent %v", first.SavedEmbed, discord.sent)
	}

	second, err := svc.Send(ctx, "g1", saved.ID, "anuncios")
	if err != nil {
		t.Fatalf("second Send: %v", err)
	}
	if len(discord.sent) != 1 || len(discord.edited) != 1 || second.MessageID != first.MessageID {
		t.Errorf("second send should edit %s; sent %v edited %v", first.MessageID, discord.sent, discord.edited)
	}

	// another channel publishes a new message
	third, err := svc.Send(ctx, "g1", saved.ID, "general")
	if err != nil {
		t.Fatalf("third Send: %v", err)
	}
	if len(discord.sent) != 2 || third.ChannelID != "general" {
		t.Errorf("third send = %+v, sent %v", third.SavedEmbed, discord.sent)
	}
}

func TestSendResendsWhenOriginalWasDeleted(t *testing.T) {
	svc, discord := newTestService(t)
	ctx := context.Background()

	saved, _ := svc.Create(ctx, "g1", Draft{Name: "Aviso", ChannelID: "anuncios", Content: "Hola"})
	first, err := svc.Send(ctx, "g1", saved.ID, "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	discord.editErr = &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
	again, err := svc.Send(ctx, "g1", saved.ID, "")
	if err != nil {
		t.Fatalf("Send after delete: %v", err)
	}
	if again.MessageID == first.MessageID || len(discord.sent) != 2 {
		t.Errorf("expected a new message, got %s (sent %v)", again.MessageID, discord.sent)
	}

	discord.editErr = errors.New("missing permissions")
	if _, err := svc.Send(ctx, "g1", saved.ID, ""); err == nil {
		t.Error("non 404 edit errors should surface")
	}
}

func TestSendRejectsForeignChannel(t *testing.T) {
	svc, discord := newTestService(t)
	ctx := context.Background()

	saved, _ := svc.Create(ctx, "g1", Draft{Name: "Aviso", Content: "Hola"})

	if _, err := svc.Send(ctx, "g1", saved.ID, "ajeno"); !errors.Is(err, ErrWrongGuild) {
		t.Errorf("Send to another guild channel = %v, want ErrWrongGuild", err)
	}
	if _, err := svc.Send(ctx, "g1", saved.ID, ""); !errors.Is(err, ErrInvalidEmbed) {
		t.Errorf("Send without channel = %v, want ErrInvalidEmbed", err)
	}
	if len(discord.sent) != 0 {
		t.Errorf("nothing should be sent, got %v", discord.sent)
	}
}

package discord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

func componentInteraction(customID, userID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:   discordgo.InteractionMessageComponent,
		Member: &discordgo.Member{User: &discordgo.User{ID: userID}},
		Data:   discordgo.MessageComponentInteractionData{CustomID: customID},
	}}
}

// TestCommandCreation verifies that commands can be created with the builder pattern
func TestCommandCreation(t *testing.T) {
	cmd := NewCommand("rank", "Muestra tu nivel", "level", func(ctx *CommandContext) error { return nil }).
		WithUserPermissions(discordgo.PermissionManageGuild).
		InGuildOnly()

	if cmd.Name != "rank" || cmd.Category != "level" || cmd.Run == nil {
		t.Fatalf("unexpected command %+v", cmd)
	}

	appCmd := cmd.ToApplicationCommand()
	if appCmd.DefaultMemberPermissions == nil || *appCmd.DefaultMemberPermissions != discordgo.PermissionManageGuild {
		t.Errorf("DefaultMemberPermissions = %v", appCmd.DefaultMemberPermissions)
	}
	if appCmd.DMPermission == nil || *appCmd.DMPermission {
		t.Error("guild-only command should disable DMs")
	}
}

func TestCommandAllowed(t *testing.T) {
	open := NewCommand("ping", "Ping", "utils", nil)
	managed := NewCommand("close", "Cerrar", "forum", nil).WithUserPermissions(discordgo.PermissionManageThreads)

	tests := []struct {
		name  string
		cmd   *Command
		perms int64
		want  bool
	}{
		{"no requirement", open, 0, true},
		{"missing permission", managed, discordgo.PermissionSendMessages, false},
		{"has permission", managed, discordgo.PermissionManageThreads | discordgo.PermissionSendMessages, true},
		{"administrator", managed, discordgo.PermissionAdministrator, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmd.Allowed(tt.perms); got != tt.want {
				t.Errorf("Allowed(%d) = %v, want %v", tt.perms, got, tt.want)
			}
		})
	}
}

func TestCommandName(t *testing.T) {
	tests := []struct {
		data discordgo.ApplicationCommandInteractionData
		want string
	}{
		{discordgo.ApplicationCommandInteractionData{Name: "close"}, "close"},
		{discordgo.ApplicationCommandInteractionData{Name: "level", Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "rank", Type: discordgo.ApplicationCommandOptionSubCommand},
		}}, "level.rank"},
		{discordgo.ApplicationCommandInteractionData{Name: "admin", Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "xp", Type: discordgo.ApplicationCommandOptionSubCommandGroup, Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "add", Type: discordgo.ApplicationCommandOptionSubCommand},
			}},
		}}, "admin.xp.add"},
		{discordgo.ApplicationCommandInteractionData{Name: "top", Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "page", Type: discordgo.ApplicationCommandOptionInteger},
		}}, "top"},
	}
	for _, tt := range tests {
		if got := CommandName(tt.data); got != tt.want {
			t.Errorf("CommandName() = %q, want %q", got, tt.want)
		}
	}
}

func TestCollectorReceivesAcceptedInteraction(t *testing.T) {
	c := NewCollectors()
	onlyOwner := func(i *discordgo.InteractionCreate) bool { return i.Member.User.ID == "owner" }

	done := make(chan *discordgo.InteractionCreate, 1)
	go func() {
		i, err := c.Await(context.Background(), "forum_helper:t1", time.Second, onlyOwner)
		if err != nil {
			t.Errorf("Await: %v", err)
		}
		done <- i
	}()

	deadline := time.Now().Add(time.Second)
	for c.Pending() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if got := c.Dispatch(nil, componentInteraction("forum_helper:t1", "stranger")); got != Rejected {
		t.Errorf("stranger dispatch = %v, want Rejected", got)
	}
	if got := c.Dispatch(nil, componentInteraction("forum_helper:t1", "owner")); got != Collected {
		t.Errorf("owner dispatch = %v, want Collected", got)
	}

	i := <-done
	if i == nil || i.Member.User.ID != "owner" {
		t.Errorf("collected %+v, want owner interaction", i)
	}
	if c.Pending() != 0 {
		t.Error("collector should be removed after collecting")
	}
}

func TestCollectorTimeoutAndBusy(t *testing.T) {
	c := NewCollectors()

	go func() { _, _ = c.Await(context.Background(), "x", 200*time.Millisecond, nil) }()
	deadline := time.Now().Add(time.Second)
	for c.Pending() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if _, err := c.Await(context.Background(), "x", time.Millisecond, nil); !errors.Is(err, ErrCollectorBusy) {
		t.Errorf("second Await = %v, want ErrCollectorBusy", err)
	}

	if _, err := c.Await(context.Background(), "y", 10*time.Millisecond, nil); !errors.Is(err, ErrCollectorTimeout) {
		t.Errorf("Await = %v, want ErrCollectorTimeout", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Await(ctx, "z", time.Second, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Await on cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestPrefixHandlers(t *testing.T) {
	c := NewCollectors()
	var hit string
	c.Handle("onboarding_", func(s *discordgo.Session, i *discordgo.InteractionCreate) { hit = "short" })
	c.Handle("onboarding_roles:", func(s *discordgo.Session, i *discordgo.InteractionCreate) { hit = "long" })

	if got := c.Dispatch(nil, componentInteraction("onboarding_roles:m1", "u")); got != Handled || hit != "long" {
		t.Errorf("dispatch = %v hit %q, want Handled by the longest prefix", got, hit)
	}
	if got := c.Dispatch(nil, componentInteraction("other", "u")); got != Unhandled {
		t.Errorf("dispatch = %v, want Unhandled", got)
	}
}

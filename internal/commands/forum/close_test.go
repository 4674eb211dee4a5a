package forum

import (
	"strings"
	"testing"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/leveling"
	"github.com/bwmarrin/discordgo"
)

func TestCanClose(t *testing.T) {
	thread := &discordgo.Channel{ID: "t1", OwnerID: "owner"}

	tests := []struct {
		name   string
		userID string
		perms  int64
		want   bool
	}{
		{"owner", "owner", 0, true},
		{"stranger", "other", discordgo.PermissionSendMessages, false},
		{"moderator", "mod", discordgo.PermissionManageThreads, true},
		{"admin", "admin", discordgo.PermissionAdministrator, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanClose(thread, tt.userID, tt.perms); got != tt.want {
				t.Errorf("CanClose(%s) = %v, want %v", tt.userID, got, tt.want)
			}
		})
	}
}

func TestThreadCreatedAt(t *testing.T) {
	// 175928847299117063 is the snowflake from the Discord documentation: 2016-04-30 11:18:25.796 UTC
	got := ThreadCreatedAt(&discordgo.Channel{ID: "175928847299117063"})
	want := time.Date(2016, 4, 30, 11, 18, 25, 796000000, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ThreadCreatedAt = %v, want %v", got, want)
	}
	if !ThreadCreatedAt(&discordgo.Channel{ID: "nope"}).IsZero() {
		t.Error("invalid snowflake should give the zero time")
	}
}

func TestSummary(t *testing.T) {
	fc := leveling.ForumClose{OwnerID: "o", HelperID: "h"}

	if got := Summary(fc, nil); got != "Hilo cerrado." {
		t.Errorf("Summary(nil) = %q", got)
	}

	res := &leveling.ForumResult{
		Owner:       &leveling.AwardResult{OldXp: 10, NewXp: 30},
		Helper:      &leveling.AwardResult{OldXp: 0, NewXp: 75},
		HelperBonus: 75,
		Fast:        true,
	}
	got := Summary(fc, res)
	if !strings.Contains(got, "<@o> +20 XP") || !strings.Contains(got, "<@h> +75 XP") || !strings.Contains(got, "rápida") {
		t.Errorf("Summary = %q", got)
	}
}

package leveling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/models"
	"github.com/bwmarrin/discordgo"
)

func forumConfig() *models.LevelConfig {
	cfg := models.DefaultLevelConfig("g1")
	cfg.ForumXp = models.ForumXpSettings{
		Enabled:               true,
		ChannelIDs:            []string{"soporte"},
		XpOnClose:             20,
		HelperBonus:           50,
		FastResolutionBonus:   25,
		FastResolutionMinutes: 60,
	}
	return cfg
}

func TestResolveForumThreadFastHelper(t *testing.T) {
	f := newEngineFixture(t, forumConfig())
	ctx := context.Background()
	opened := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	res, err := f.engine.ResolveForumThread(ctx, f.guild, ForumClose{
		ThreadID: "t1", ForumID: "soporte", OwnerID: "owner", HelperID: "helper",
		CreatedAt: opened, ClosedAt: opened.Add(30 * time.Minute),
	})
	if err != nil {
		t.Fatalf("ResolveForumThread: %v", err)
	}
	if res.Owner == nil || res.Owner.NewXp != 20 {
		t.Errorf("owner award = %+v", res.Owner)
	}
	if !res.Fast || res.HelperBonus != 75 || res.Helper.NewXp != 75 {
		t.Errorf("helper award = %+v (fast=%v bonus=%d)", res.Helper, res.Fast, res.HelperBonus)
	}

	helper, _ := f.store.GetMember(ctx, "g1", "helper")
	if helper.MonthlyHelperCount != 1 {
		t.Errorf("MonthlyHelperCount = %d, want 1", helper.MonthlyHelperCount)
	}
}

func TestResolveForumThreadSlowAndSelfHelp(t *testing.T) {
	f := newEngineFixture(t, forumConfig())
	ctx := context.Background()
	opened := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	res, err := f.engine.ResolveForumThread(ctx, f.guild, ForumClose{
		ForumID: "soporte", OwnerID: "owner", HelperID: "helper",
		CreatedAt: opened, ClosedAt: opened.Add(3 * time.Hour),
	})
	if err != nil {
		t.Fatalf("ResolveForumThread: %v", err)
	}
	if res.Fast || res.HelperBonus != 50 {
		t.Errorf("slow close bonus = %d fast=%v, want 50", res.HelperBonus, res.Fast)
	}

	res, err = f.engine.ResolveForumThread(ctx, f.guild, ForumClose{ForumID: "soporte", OwnerID: "owner", HelperID: "owner"})
	if err != nil {
		t.Fatalf("ResolveForumThread: %v", err)
	}
	if res.Helper != nil {
		t.Error("owner cannot be their own helper")
	}
}

func TestResolveForumThreadUntrackedForum(t *testing.T) {
	f := newEngineFixture(t, forumConfig())

	_, err := f.engine.ResolveForumThread(context.Background(), f.guild, ForumClose{ForumID: "otro", OwnerID: "owner"})
	if !errors.Is(err, ErrForumXpDisabled) {
		t.Errorf("err = %v, want ErrForumXpDisabled", err)
	}
}

func TestBoostTransition(t *testing.T) {
	since := time.Now()
	plain := &discordgo.Member{}
	boosting := &discordgo.Member{PremiumSince: &since}

	if !BoostStarted(plain, boosting) || !BoostStarted(nil, boosting) {
		t.Error("transition to boosting not detected")
	}
	if BoostStarted(boosting, boosting) || BoostStarted(boosting, plain) {
		t.Error("non transitions reported as boost start")
	}

	cfg := models.DefaultLevelConfig("g1")
	cfg.Booster = models.BoosterSettings{Enabled: true, Multiplier: 1, BoostBonusXp: 200}
	f := newEngineFixture(t, cfg)

	res, err := f.engine.HandleBoostStart(context.Background(), f.guild, "u1")
	if err != nil || res == nil || res.NewXp != 200 {
		t.Errorf("HandleBoostStart = %+v, %v", res, err)
	}
}

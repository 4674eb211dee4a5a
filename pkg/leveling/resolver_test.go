package leveling

import (
	"testing"

	"github.com/PancyStudios/PancyCommunityGo/pkg/models"
)

func twoRoles() []models.LevelRole {
	return []models.LevelRole{
		{GuildID: "g", RoleID: "B", XpRequired: 500},
		{GuildID: "g", RoleID: "A", XpRequired: 100},
	}
}

func TestResolveRoleThresholdBoundary(t *testing.T) {
	tests := []struct {
		xp   int
		want string
	}{
		{99, ""},
		{100, "A"},
		{499, "A"},
		{500, "B"},
		{10000, "B"},
	}

	for _, tt := range tests {
		d := ResolveRole(twoRoles(), "", tt.xp)
		got := ""
		if d.Target != nil {
			got = d.Target.RoleID
		}
		if got != tt.want {
			t.Errorf("ResolveRole(xp=%d) target = %q, want %q", tt.xp, got, tt.want)
		}
	}
}

func TestResolveRoleMonotonic(t *testing.T) {
	roles := []models.LevelRole{
		{RoleID: "r3", XpRequired: 1000},
		{RoleID: "r1", XpRequired: 10},
		{RoleID: "r2", XpRequired: 250},
		{RoleID: "r0", XpRequired: 0},
	}

	best := -1
	current := ""
	for xp := 0; xp <= 1500; xp += 7 {
		d := ResolveRole(roles, current, xp)
		if d.Target == nil {
			t.Fatalf("xp=%d: expected a role since r0 needs 0", xp)
		}
		if d.Target.XpRequired < best {
			t.Fatalf("xp=%d: resolved %s (%d) below previous %d", xp, d.Target.RoleID, d.Target.XpRequired, best)
		}
		if d.Kind == ChangeDemotion || d.Kind == ChangeLoss {
			t.Fatalf("xp=%d: unexpected %v while xp only grows", xp, d.Kind)
		}
		best = d.Target.XpRequired
		current = d.Target.RoleID
	}
}

func TestResolveRoleKinds(t *testing.T) {
	tests := []struct {
		name    string
		current string
		xp      int
		want    ChangeKind
	}{
		{"first role is a promotion", "", 150, ChangePromotion},
		{"same role", "A", 150, ChangeNone},
		{"higher role", "A", 600, ChangePromotion},
		{"lower role", "B", 200, ChangeDemotion},
		{"lost every role", "A", 10, ChangeLoss},
		{"no role either way", "", 10, ChangeNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ResolveRole(twoRoles(), tt.current, tt.xp)
			if d.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", d.Kind, tt.want)
			}
		})
	}
}

func TestResolveRoleTieBreakIsDeterministic(t *testing.T) {
	a := []models.LevelRole{
		{RoleID: "x", XpRequired: 100, Order: 2},
		{RoleID: "y", XpRequired: 100, Order: 1},
	}
	b := []models.LevelRole{a[1], a[0]}

	da := ResolveRole(a, "", 100)
	db := ResolveRole(b, "", 100)
	if da.Target.RoleID != "x" || db.Target.RoleID != "x" {
		t.Errorf("tie-break = %s / %s, want x for both orders", da.Target.RoleID, db.Target.RoleID)
	}
}

func TestResolveRoleDoesNotMutateInput(t *testing.T) {
	roles := twoRoles()
	_ = ResolveRole(roles, "", 600)
	if roles[0].RoleID != "B" {
		t.Error("ResolveRole reordered its input")
	}
}

package leveling

import (
	"sort"

	"github.com/PancyStudios/PancyCommunityGo/pkg/models"
)

// ChangeKind classifies the outcome of a role resolution
type ChangeKind int

const (
	ChangeNone ChangeKind = iota
	ChangePromotion
	ChangeDemotion
	ChangeLoss
)

func (k ChangeKind) String() string {
	switch k {
	case ChangePromotion:
		return "promotion"
	case ChangeDemotion:
		return "demotion"
	case ChangeLoss:
		return "loss"
	default:
		return "none"
	}
}

// RoleDecision is what ResolveRole decided. Target is nil when no role qualifies.
// Current is nil when the member had no role or the role no longer exists in the config.
type RoleDecision struct {
	Target  *models.LevelRole
	Current *models.LevelRole
	Kind    ChangeKind
}

// Changed reports whether a role mutation is needed
func (d RoleDecision) Changed() bool {
	return d.Kind != ChangeNone
}

// SortRoles orders roles by XpRequired, then Order, then RoleID
func SortRoles(roles []models.LevelRole) []models.LevelRole {
	sorted := make([]models.LevelRole, len(roles))
	copy(sorted, roles)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.XpRequired != b.XpRequired {
			return a.XpRequired < b.XpRequired
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.RoleID < b.RoleID
	})
	return sorted
}

// ResolveRole picks the highest role whose threshold is covered by totalXp and compares it
// with the member's current role. It never mutates its input.
func ResolveRole(roles []models.LevelRole, currentRoleID string, totalXp int) RoleDecision {
	sorted := SortRoles(roles)

	var decision RoleDecision
	for i := range sorted {
		role := sorted[i]
		if role.XpRequired <= totalXp {
			decision.Target = &role
		}
		if currentRoleID != "" && role.RoleID == currentRoleID {
			decision.Current = &role
		}
	}

	switch {
	case decision.Target == nil && currentRoleID == "":
		decision.Kind = ChangeNone
	case decision.Target == nil:
		decision.Kind = ChangeLoss
	case decision.Target.RoleID == currentRoleID:
		decision.Kind = ChangeNone
	default:
		currentXp := 0
		if decision.Current != nil {
			currentXp = decision.Current.XpRequired
		}
		if decision.Target.XpRequired > currentXp || currentRoleID == "" {
			decision.Kind = ChangePromotion
		} else {
			decision.Kind = ChangeDemotion
		}
	}
	return decision
}

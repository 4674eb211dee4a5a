// Package level implements the /level commands
package level

import (
	"fmt"
	"strings"

	"github.com/PancyStudios/PancyCommunityGo/pkg/leveling"
	"github.com/PancyStudios/PancyCommunityGo/pkg/models"
	"github.com/bwmarrin/discordgo"
)

const (
	barWidth = 12
	pageSize = 10
)

var medals = []string{"🥇", "🥈", "🥉"}

// NextRole returns the cheapest role above totalXp, or nil at the top of the ladder
func NextRole(roles []models.LevelRole, totalXp int) *models.LevelRole {
	for _, role := range leveling.SortRoles(roles) {
		if role.XpRequired > totalXp {
			r := role
			return &r
		}
	}
	return nil
}

// ProgressBar renders how far totalXp is between from and to
func ProgressBar(totalXp, from, to int) string {
	filled := barWidth
	if to > from {
		filled = (totalXp - from) * barWidth / (to - from)
	}
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat("▰", filled) + strings.Repeat("▱", barWidth-filled)
}

func rankEmbed(user *discordgo.User, member *models.MemberXp, rank int, roles []models.LevelRole) *discordgo.MessageEmbed {
	current := "Ninguno"
	from := 0
	if member.CurrentRoleID != "" {
		current = "<@&" + member.CurrentRoleID + ">"
		for _, r := range roles {
			if r.RoleID == member.CurrentRoleID {
				from = r.XpRequired
			}
		}
	}

	next := NextRole(roles, member.TotalXp)
	progress := "🏁 Rol máximo alcanzado"
	if next != nil {
		progress = fmt.Sprintf("%s\n%d / %d XP para <@&%s>",
			ProgressBar(member.TotalXp, from, next.XpRequired), member.TotalXp, next.XpRequired, next.RoleID)
	}

	return &discordgo.MessageEmbed{
		Title: "⭐ Nivel de " + user.Username,
		Color: leveling.PastelPalette[rank%len(leveling.PastelPalette)],
		Thumbnail: &discordgo.MessageEmbedThumbnail{
			URL: user.AvatarURL("128"),
		},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "XP total", Value: fmt.Sprintf("%d", member.TotalXp), Inline: true},
			{Name: "Puesto", Value: fmt.Sprintf("#%d", rank), Inline: true},
			{Name: "Rol", Value: current, Inline: true},
			{Name: "Progreso", Value: progress},
		},
	}
}

// LeaderboardLines renders one line per member starting at position offset+1
func LeaderboardLines(members []models.MemberXp, offset int) []string {
	lines := make([]string, 0, len(members))
	for i, m := range members {
		pos := offset + i + 1
		badge := fmt.Sprintf("`#%d`", pos)
		if pos <= len(medals) {
			badge = medals[pos-1]
		}
		lines = append(lines, fmt.Sprintf("%s <@%s> · **%d** XP", badge, m.UserID, m.TotalXp))
	}
	return lines
}

package utils

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/config"
	"github.com/PancyStudios/PancyCommunityGo/pkg/discord"
	"github.com/bwmarrin/discordgo"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const cpuSample = 200 * time.Millisecond

// createStatsCommand creates the /utils stats subcommand
func createStatsCommand() *discord.Command {
	return discord.NewCommand(
		"stats",
		"Muestra estadísticas del bot",
		"utils",
		statsHandler,
	)
}

// statsHandler handles the /utils stats command
func statsHandler(ctx *discord.CommandContext) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	memberCount := 0
	ctx.Session.State.RLock()
	for _, guild := range ctx.Session.State.Guilds {
		memberCount += guild.MemberCount
	}
	ctx.Session.State.RUnlock()

	field := func(name, value string) *discordgo.MessageEmbedField {
		return &discordgo.MessageEmbedField{Name: name, Value: value, Inline: true}
	}

	embed := &discordgo.MessageEmbed{
		Title: "📊 Estadísticas del Bot",
		Color: 0xBAE1FF,
		Fields: []*discordgo.MessageEmbedField{
			field("🤖 Versión del Bot", config.Version),
			field("🐹 Versión de Go", strings.TrimPrefix(runtime.Version(), "go")),
			field("📚 Versión de DiscordGo", discordgo.VERSION),
			field("🖥 Uso de RAM", fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024)),
			field("💻 CPU del host", hostCPU()),
			field("🧠 RAM del host", hostMemory()),
			field("⚙️ Goroutines", fmt.Sprintf("%d / %d CPUs", runtime.NumGoroutine(), runtime.NumCPU())),
			field("⏱ Uptime", formatDuration(time.Since(ctx.Client.StartTime))),
			field("🏠 Servidores", fmt.Sprintf("%d", ctx.Client.GuildCount())),
			field("👥 Miembros", fmt.Sprintf("%d", memberCount)),
			field("⏳ Selecciones pendientes", fmt.Sprintf("%d", ctx.Client.Collectors.Pending())),
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text:    "💫 - Developed by PancyStudios",
			IconURL: ctx.Session.State.User.AvatarURL(""),
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}

	return ctx.ReplyEmbed(embed)
}

// hostCPU samples the CPU usage of the machine
func hostCPU() string {
	percent, err := cpu.Percent(cpuSample, false)
	if err != nil || len(percent) == 0 {
		return "N/D"
	}
	return fmt.Sprintf("%.1f%%", percent[0])
}

// hostMemory reports used and total memory of the machine
func hostMemory() string {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return "N/D"
	}
	return formatMemory(vm.Used, vm.Total)
}

func formatMemory(used, total uint64) string {
	const gb = 1024 * 1024 * 1024
	return fmt.Sprintf("%.2f / %.2f GB (%.0f%%)", float64(used)/gb, float64(total)/gb, float64(used)/float64(total)*100)
}

// formatDuration formats a time.Duration into a human-readable string
func formatDuration(dur time.Duration) string {
	days := int(dur.Hours() / 24)
	hours := int(dur.Hours()) % 24
	minutes := int(dur.Minutes()) % 60
	seconds := int(dur.Seconds()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d días", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%d horas", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%d minutos", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d segundos", seconds))
	}

	return strings.Join(parts, ", ")
}

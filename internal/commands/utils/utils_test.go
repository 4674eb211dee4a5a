package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/discord"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0 segundos"},
		{90 * time.Second, "1 minutos, 30 segundos"},
		{26*time.Hour + 5*time.Second, "1 días, 2 horas, 5 segundos"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHelpTextGroupsByCategory(t *testing.T) {
	commands := map[string]*discord.Command{
		"level.rank": discord.NewCommand("rank", "Tu nivel", "level", nil),
		"close":      discord.NewCommand("close", "Cerrar hilo", "forum", nil),
		"utils.ping": discord.NewCommand("ping", "Latencia", "utils", nil),
		"secret":     discord.NewCommand("secret", "Oculto", "dev", nil).AsDev(),
	}

	text := HelpText(commands)
	for _, want := range []string{"`/level rank` - Tu nivel", "`/close` - Cerrar hilo", "**utils**"} {
		if !strings.Contains(text, want) {
			t.Errorf("help text missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "secret") {
		t.Error("dev commands must not be listed")
	}
	if strings.Index(text, "**forum**") > strings.Index(text, "**level**") {
		t.Error("categories should be sorted")
	}
}

func TestPingMessage(t *testing.T) {
	got := pingMessage(42*time.Millisecond, 180*time.Millisecond)
	if !strings.Contains(got, "Gateway: 42ms") || !strings.Contains(got, "Interacción: 180ms") {
		t.Errorf("unexpected ping message %q", got)
	}
}

func TestFormatMemory(t *testing.T) {
	const gb = 1024 * 1024 * 1024
	if got := formatMemory(2*gb, 8*gb); got != "2.00 / 8.00 GB (25%)" {
		t.Errorf("formatMemory = %q", got)
	}
}

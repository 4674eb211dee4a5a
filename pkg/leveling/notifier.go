package leveling

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	bot_errors "github.com/PancyStudios/PancyCommunityGo/pkg/errors"
	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/PancyStudios/PancyCommunityGo/pkg/models"
	"github.com/bwmarrin/discordgo"
)

// PastelPalette holds the accent colors used for notification embeds
var PastelPalette = []int{
	0xFFB3BA, 0xFFDFBA, 0xFFFFBA, 0xBAFFC9,
	0xBAE1FF, 0xD7BAFF, 0xFFC8DD, 0xBDE0FE,
	0xCDEAC0, 0xFDE2E4, 0xE2ECE9, 0xFFF1E6,
}

// SendTimeout bounds one notification send. Sends outlive the award that started them.
const SendTimeout = 10 * time.Second

// Notifier renders notification templates and sends them as embeds
type Notifier struct {
	mu      sync.Mutex
	rng     *rand.Rand
	now     Clock
	timeout time.Duration
}

// NewNotifier creates a Notifier. A nil rng is seeded from the clock, a nil clock is time.Now.
func NewNotifier(rng *rand.Rand, clock Clock) *Notifier {
	if clock == nil {
		clock = time.Now
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(clock().UnixNano()))
	}
	return &Notifier{rng: rng, now: clock, timeout: SendTimeout}
}

func (n *Notifier) intn(max int) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.rng.Intn(max)
}

// Fill replaces every {name} token with its value. Unknown tokens are left as they are.
func Fill(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// PickDescription chooses uniformly between the main description and its non-blank alternates
func (n *Notifier) PickDescription(tpl models.EmbedTemplate) string {
	candidates := []string{tpl.Description}
	for _, alt := range tpl.AlternateDescriptions {
		if strings.TrimSpace(alt) != "" {
			candidates = append(candidates, alt)
		}
	}
	if len(candidates) == 1 {
		return tpl.Description
	}
	return candidates[n.intn(len(candidates))]
}

// Render builds the embed for a template
func (n *Notifier) Render(tpl models.EmbedTemplate, vars map[string]string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       Fill(tpl.Title, vars),
		Description: Fill(n.PickDescription(tpl), vars),
		Color:       PastelPalette[n.intn(len(PastelPalette))],
		Timestamp:   n.now().Format(time.RFC3339),
	}
}

// Notify sends a rendered template to channelID in the background.
// The returned channel yields exactly one value: nil on success or the delivery error.
// Failures are logged here so callers may ignore the channel. Cancelling ctx after Notify
// returns does not abort the send; it is bounded by SendTimeout instead.
func (n *Notifier) Notify(ctx context.Context, guild Guild, channelID string, tpl models.EmbedTemplate, vars map[string]string) <-chan error {
	done := make(chan error, 1)
	if channelID == "" {
		done <- nil
		return done
	}

	embed := n.Render(tpl, vars)
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	go func() {
		defer cancel()
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic al notificar: %v", r)
				bot_errors.RecoverFrom(r)
			}
			if err != nil {
				logger.Warn(fmt.Sprintf("No se pudo enviar la notificación a %s: %v", channelID, err), "Levels")
			}
			done <- err
		}()

		if guild == nil {
			err = errors.New("guild no disponible")
			return
		}
		err = guild.SendEmbed(sendCtx, channelID, embed)
	}()
	return done
}

// Wait blocks until every future has delivered and returns the first error
func Wait(futures ...<-chan error) error {
	var first error
	for _, f := range futures {
		if f == nil {
			continue
		}
		if err := <-f; err != nil && first == nil {
			first = err
		}
	}
	return first
}

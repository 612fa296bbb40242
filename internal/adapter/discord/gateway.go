package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/CrLims/discord-custom-product/internal/sched"
)

// ChannelGateway backs each reservation with a private ticket channel under
// the configured category, visible to the requester and the operators only.
type ChannelGateway struct {
	session    *discordgo.Session
	guildID    string
	categoryID string
	operators  []string
	scheduler  *sched.Scheduler
	logger     *slog.Logger
}

func NewChannelGateway(session *discordgo.Session, guildID, categoryID string, operators []string, scheduler *sched.Scheduler, logger *slog.Logger) *ChannelGateway {
	return &ChannelGateway{
		session:    session,
		guildID:    guildID,
		categoryID: categoryID,
		operators:  operators,
		scheduler:  scheduler,
		logger:     logger,
	}
}

func (g *ChannelGateway) CreateTicket(ctx context.Context, product, requester string) (string, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		{
			// @everyone shares its id with the guild.
			ID:   g.guildID,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:    requester,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages,
		},
	}
	if g.session.State != nil && g.session.State.User != nil {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    g.session.State.User.ID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages,
		})
	}
	for _, op := range g.operators {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    op,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages,
		})
	}

	ch, err := g.session.GuildChannelCreateComplex(g.guildID, discordgo.GuildChannelCreateData{
		Name:                 ticketChannelName(product, requester),
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             g.categoryID,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		return "", fmt.Errorf("create ticket channel: %w", err)
	}
	return ch.ID, nil
}

func (g *ChannelGateway) ScheduleDelete(channelID string, after time.Duration) (cancel func()) {
	task := g.scheduler.After(after, func() {
		if _, err := g.session.ChannelDelete(channelID); err != nil {
			g.logger.Warn("ticket teardown failed", "channel", channelID, "error", err)
		}
	})
	return func() { task.Cancel() }
}

// DeleteNow removes a ticket channel immediately. Used when the reservation
// behind a freshly created channel was rejected.
func (g *ChannelGateway) DeleteNow(channelID string) {
	if _, err := g.session.ChannelDelete(channelID); err != nil {
		g.logger.Warn("ticket cleanup failed", "channel", channelID, "error", err)
	}
}

func ticketChannelName(product, requester string) string {
	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(product), " ", "-"))
	name := "ticket-" + slug + "-" + requester
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}

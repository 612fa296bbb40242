package discord

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/CrLims/discord-custom-product/internal/core/domain"
)

// TestimonialNotifier posts a public summary embed for every fulfilled
// reservation. Cancellations are not posted.
type TestimonialNotifier struct {
	session   *discordgo.Session
	channelID string
}

func NewTestimonialNotifier(session *discordgo.Session, channelID string) *TestimonialNotifier {
	return &TestimonialNotifier{session: session, channelID: channelID}
}

func (n *TestimonialNotifier) PostSettlement(ctx context.Context, r domain.Reservation, actor string) error {
	if n.channelID == "" {
		return nil
	}

	embed := &discordgo.MessageEmbed{
		Title:     "✅ Purchase completed",
		Color:     colorSuccess,
		Timestamp: time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "👤 Buyer", Value: mention(r.Requester), Inline: true},
			{Name: "🧾 Product", Value: r.Product, Inline: true},
			{Name: "📦 Quantity", Value: strconv.Itoa(r.Quantity), Inline: true},
			{Name: "💰 Total", Value: "Rp" + FormatPrice(r.TotalPrice), Inline: false},
			{Name: "🛠 Processed by", Value: mention(actor), Inline: true},
		},
	}

	if _, err := n.session.ChannelMessageSendEmbed(n.channelID, embed); err != nil {
		return fmt.Errorf("post testimonial: %w", err)
	}
	return nil
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

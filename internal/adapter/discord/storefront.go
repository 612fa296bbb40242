package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/CrLims/discord-custom-product/internal/core/domain"
	"github.com/CrLims/discord-custom-product/internal/core/service"
	"github.com/CrLims/discord-custom-product/internal/port"
)

const (
	customIDProductSelect = "product_select_menu"
	noProductValue        = "__none"
	soldOutLabel          = "SOLD"

	colorStorefront = 0x0F0F19
	colorPending    = 0xE67E22
	colorSuccess    = 0x2ECC71
	colorCancelled  = 0xE74C3C
	colorReport     = 0x5865F2
)

// Storefront owns the single product display message: one embed listing
// every product plus a select menu to start a purchase. The message is
// published once and then edited in place; the display pointer decides
// refresh-vs-create across restarts.
type Storefront struct {
	session   *discordgo.Session
	engine    *service.Engine
	display   port.DisplayStore
	channelID string
	logger    *slog.Logger
}

func NewStorefront(session *discordgo.Session, engine *service.Engine, display port.DisplayStore, channelID string, logger *slog.Logger) *Storefront {
	return &Storefront{
		session:   session,
		engine:    engine,
		display:   display,
		channelID: channelID,
		logger:    logger,
	}
}

// Publish renders the storefront and edits the existing display message,
// falling back to posting a fresh one when the pointer is unset or stale.
func (f *Storefront) Publish(ctx context.Context) error {
	products, err := f.products(ctx)
	if err != nil {
		return err
	}

	embed := buildStorefrontEmbed(products)
	components := storefrontComponents(products)

	chID, msgID, err := f.display.LoadDisplay(ctx)
	if err == nil && chID == f.channelID {
		if _, editErr := f.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
			Channel:    chID,
			ID:         msgID,
			Embeds:     &[]*discordgo.MessageEmbed{embed},
			Components: &components,
		}); editErr == nil {
			return nil
		}
		// Stale pointer (message deleted); fall through and post fresh.
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		f.logger.Warn("display pointer load failed", "error", err)
	}

	msg, err := f.session.ChannelMessageSendComplex(f.channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	})
	if err != nil {
		return fmt.Errorf("post storefront message: %w", err)
	}

	if err := f.display.SaveDisplay(ctx, f.channelID, msg.ID); err != nil {
		f.logger.Warn("display pointer save failed", "error", err)
	}
	return nil
}

// Refresh republishes after a stock or catalog change. Display failures are
// logged, never propagated into the operation that triggered them.
func (f *Storefront) Refresh(ctx context.Context) {
	if err := f.Publish(ctx); err != nil {
		f.logger.Warn("storefront refresh failed", "error", err)
	}
}

func (f *Storefront) products(ctx context.Context) ([]domain.Product, error) {
	seq, err := f.engine.Products(ctx)
	if err != nil {
		return nil, err
	}

	var out []domain.Product
	for p := range seq {
		out = append(out, p)
	}
	return out, nil
}

func buildStorefrontEmbed(products []domain.Product) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "🛒 Store",
		Color: colorStorefront,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Pick a product below to open a purchase ticket",
		},
	}

	if len(products) == 0 {
		embed.Description = "No products registered yet.\nOperators can add one with `/addproduct`."
		return embed
	}

	var lines []string
	for _, p := range products {
		stock := strconv.Itoa(p.Stock)
		if p.Stock <= 0 {
			stock = soldOutLabel
		}
		lines = append(lines,
			fmt.Sprintf("**%s**", p.Name),
			fmt.Sprintf("› Stock : %s", stock),
			fmt.Sprintf("› Price : Rp%s", FormatPrice(p.Price)),
			"",
		)
	}
	embed.Description = strings.TrimSpace(strings.Join(lines, "\n"))
	return embed
}

func storefrontComponents(products []domain.Product) []discordgo.MessageComponent {
	options := make([]discordgo.SelectMenuOption, 0, len(products))
	for _, p := range products {
		label := p.Name
		if len(label) > 100 {
			label = label[:100]
		}
		options = append(options, discordgo.SelectMenuOption{
			Label:       label,
			Value:       p.Name,
			Description: fmt.Sprintf("Stock: %d • Rp%s", p.Stock, FormatPrice(p.Price)),
		})
	}
	if len(options) == 0 {
		options = append(options, discordgo.SelectMenuOption{
			Label:       "No products yet",
			Value:       noProductValue,
			Description: "Ask an operator to add one first.",
		})
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    customIDProductSelect,
					Placeholder: "🔽 Pick a product to buy",
					Options:     options,
				},
			},
		},
	}
}

// FormatPrice renders an amount with dot thousand separators: 5000 becomes
// "5.000".
func FormatPrice(n int64) string {
	s := strconv.FormatInt(n, 10)
	if n < 0 || len(s) <= 3 {
		return s
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

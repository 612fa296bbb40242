package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/CrLims/discord-custom-product/internal/core/domain"
	"github.com/CrLims/discord-custom-product/internal/core/service"
	"github.com/CrLims/discord-custom-product/internal/port"
)

const (
	customIDBuyPrefix      = "buy:"
	customIDPurchasePrefix = "purchase:"
	customIDTicketSuccess  = "ticket_success"
	customIDTicketCancel   = "ticket_cancel"

	maxAutocompleteChoices = 25
)

// Bot routes Discord interactions into the engine. Handlers stay thin:
// they parse the interaction, call one engine operation and render the
// outcome.
type Bot struct {
	session    *discordgo.Session
	engine     *service.Engine
	storefront *Storefront
	gateway    *ChannelGateway
	dedupe     port.InteractionDeduper
	guildID    string
	logger     *slog.Logger
}

// NewBot wires the interaction handlers onto the session. Dedupe may be nil;
// the engine's state checks still reject double settlement.
func NewBot(session *discordgo.Session, engine *service.Engine, storefront *Storefront, gateway *ChannelGateway, dedupe port.InteractionDeduper, guildID string, logger *slog.Logger) *Bot {
	b := &Bot{
		session:    session,
		engine:     engine,
		storefront: storefront,
		gateway:    gateway,
		dedupe:     dedupe,
		guildID:    guildID,
		logger:     logger,
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onInteraction)
	return b
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "addproduct",
			Description: "Add or update a product (operator only)",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Product name", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "stock", Description: "Initial stock", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "price", Description: "Unit price", Required: true},
			},
		},
		{
			Name:        "setstock",
			Description: "Set a product's stock (operator only)",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Product name", Required: true, Autocomplete: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "New stock", Required: true},
			},
		},
		{
			Name:        "setprice",
			Description: "Set a product's unit price (operator only)",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Product name", Required: true, Autocomplete: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "price", Description: "New unit price", Required: true},
			},
		},
		{
			Name:        "removeproduct",
			Description: "Remove a product (operator only)",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Product name", Required: true, Autocomplete: true},
			},
		},
		{
			Name:        "stock",
			Description: "Show stock, pending and available figures for every product",
		},
	}
}

func (b *Bot) onReady(s *discordgo.Session, _ *discordgo.Ready) {
	if _, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, b.guildID, commandDefinitions()); err != nil {
		b.logger.Error("command registration failed", "error", err)
	}

	if err := b.storefront.Publish(context.Background()); err != nil {
		b.logger.Error("storefront publish failed", "error", err)
	}

	b.logger.Info("bot ready", "user", s.State.User.Username)
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		b.handleAutocomplete(ctx, s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, s, i)
	case discordgo.InteractionModalSubmit:
		b.handleModal(ctx, s, i)
	}
}

func (b *Bot) handleCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	actor := interactionUserID(i)

	if data.Name != "stock" && !b.engine.IsOperator(actor) {
		b.respondEphemeral(s, i, "❌ You are not allowed to use this command!")
		return
	}

	opts := commandOptions(data.Options)

	switch data.Name {
	case "addproduct":
		p, err := b.engine.UpsertProduct(ctx, opts["name"].StringValue(), int(opts["stock"].IntValue()), opts["price"].IntValue())
		if err != nil {
			b.respondEphemeral(s, i, userMessage(err))
			return
		}
		b.respondEphemeral(s, i, fmt.Sprintf("✅ Product **%s** saved.\nStock: **%d**\nPrice: **Rp%s**",
			p.Name, p.Stock, FormatPrice(p.Price)))
		b.storefront.Refresh(ctx)

	case "setstock":
		p, err := b.engine.SetStock(ctx, opts["name"].StringValue(), int(opts["amount"].IntValue()))
		if err != nil {
			b.respondEphemeral(s, i, userMessage(err))
			return
		}
		b.respondEphemeral(s, i, fmt.Sprintf("✅ Stock of **%s** set to **%d**", p.Name, p.Stock))
		b.storefront.Refresh(ctx)

	case "setprice":
		p, err := b.engine.SetPrice(ctx, opts["name"].StringValue(), opts["price"].IntValue())
		if err != nil {
			b.respondEphemeral(s, i, userMessage(err))
			return
		}
		b.respondEphemeral(s, i, fmt.Sprintf("✅ Price of **%s** set to **Rp%s**", p.Name, FormatPrice(p.Price)))
		b.storefront.Refresh(ctx)

	case "removeproduct":
		name := opts["name"].StringValue()
		if err := b.engine.DeleteProduct(ctx, name); err != nil {
			b.respondEphemeral(s, i, userMessage(err))
			return
		}
		b.respondEphemeral(s, i, fmt.Sprintf("🗑️ Product **%s** removed.", name))
		b.storefront.Refresh(ctx)

	case "stock":
		b.handleStockReport(ctx, s, i)
	}
}

func (b *Bot) handleStockReport(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	seq, err := b.engine.Products(ctx)
	if err != nil {
		b.respondEphemeral(s, i, userMessage(err))
		return
	}

	embed := &discordgo.MessageEmbed{
		Title: "📦 Stock report",
		Color: colorReport,
	}

	for p := range seq {
		av, err := b.engine.Availability(ctx, p.Name)
		if err != nil {
			continue
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "📦 " + p.Name,
			Value: fmt.Sprintf("Total: **%d**\nPending: **%d**\nAvailable: **%d**\nPrice: **Rp%s**",
				av.Stock, av.Pending, av.Available, FormatPrice(p.Price)),
		})
	}
	if len(embed.Fields) == 0 {
		embed.Description = "No products registered yet."
	}

	b.respondEphemeralEmbed(s, i, embed)
}

func (b *Bot) handleAutocomplete(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()

	var current string
	for _, opt := range data.Options {
		if opt.Focused {
			current = strings.ToLower(opt.StringValue())
			break
		}
	}

	seq, err := b.engine.Products(ctx)
	if err != nil {
		return
	}

	var choices []*discordgo.ApplicationCommandOptionChoice
	for p := range seq {
		if current != "" && !strings.Contains(strings.ToLower(p.Name), current) {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: p.Name, Value: p.Name})
		if len(choices) == maxAutocompleteChoices {
			break
		}
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}); err != nil {
		b.logger.Warn("autocomplete response failed", "error", err)
	}
}

func (b *Bot) handleComponent(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()

	switch {
	case data.CustomID == customIDProductSelect:
		b.handleProductSelect(ctx, s, i, data)
	case strings.HasPrefix(data.CustomID, customIDBuyPrefix):
		b.handleBuyButton(ctx, s, i, strings.TrimPrefix(data.CustomID, customIDBuyPrefix))
	case data.CustomID == customIDTicketSuccess:
		b.handleSettlement(ctx, s, i, true)
	case data.CustomID == customIDTicketCancel:
		b.handleSettlement(ctx, s, i, false)
	}
}

func (b *Bot) handleProductSelect(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.MessageComponentInteractionData) {
	if len(data.Values) == 0 || data.Values[0] == noProductValue {
		b.respondEphemeral(s, i, "❌ Nothing to buy yet. Ask an operator to add a product first.")
		return
	}
	product := data.Values[0]

	av, err := b.engine.Availability(ctx, product)
	if err != nil {
		b.respondEphemeral(s, i, userMessage(err))
		return
	}
	if av.Stock <= 0 {
		b.respondEphemeral(s, i, fmt.Sprintf("💤 **%s** is sold out. Wait for a restock!", product))
		return
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("📌 You picked **%s**.\nClick the button below to continue.", product),
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{
							Label:    "Buy now",
							Style:    discordgo.SuccessButton,
							CustomID: customIDBuyPrefix + product,
							Emoji:    &discordgo.ComponentEmoji{Name: "🛒"},
						},
					},
				},
			},
		},
	})
	if err != nil {
		b.logger.Warn("select response failed", "error", err)
		return
	}

	// Re-render the select so the same product can be picked again.
	b.storefront.Refresh(ctx)
}

func (b *Bot) handleBuyButton(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, product string) {
	av, err := b.engine.Availability(ctx, product)
	if err != nil {
		b.respondEphemeral(s, i, userMessage(err))
		return
	}
	if av.Stock <= 0 {
		b.respondEphemeral(s, i, fmt.Sprintf("💤 **%s** is sold out. Wait for a restock!", product))
		return
	}

	title := "Purchase " + product
	if len(title) > 45 {
		title = title[:45]
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: customIDPurchasePrefix + product,
			Title:    title,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    "quantity",
							Label:       "How many do you want?",
							Style:       discordgo.TextInputShort,
							Placeholder: "e.g. 5",
							Required:    true,
							MaxLength:   10,
						},
					},
				},
			},
		},
	})
	if err != nil {
		b.logger.Warn("modal response failed", "error", err)
	}
}

func (b *Bot) handleModal(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	if !strings.HasPrefix(data.CustomID, customIDPurchasePrefix) {
		return
	}
	product := strings.TrimPrefix(data.CustomID, customIDPurchasePrefix)

	quantity, err := strconv.Atoi(strings.TrimSpace(modalInputValue(data, "quantity")))
	if err != nil {
		b.respondEphemeral(s, i, "❌ Enter a valid number!")
		return
	}
	if quantity <= 0 {
		b.respondEphemeral(s, i, "❌ Quantity must be greater than zero!")
		return
	}

	requester := interactionUserID(i)

	// The ticket channel is created first: its id is the reservation id.
	channelID, err := b.gateway.CreateTicket(ctx, product, requester)
	if err != nil {
		b.logger.Error("ticket channel creation failed", "product", product, "error", err)
		b.respondEphemeral(s, i, "❌ Could not open a ticket channel, please try again.")
		return
	}

	res, err := b.engine.RequestReservation(ctx, channelID, requester, product, quantity)
	if err != nil {
		b.gateway.DeleteNow(channelID)
		b.respondEphemeral(s, i, userMessage(err))
		return
	}

	if _, err := s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: mention(requester),
		Embeds:  []*discordgo.MessageEmbed{ticketEmbed(res)},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Success",
						Style:    discordgo.SuccessButton,
						CustomID: customIDTicketSuccess,
						Emoji:    &discordgo.ComponentEmoji{Name: "✅"},
					},
					discordgo.Button{
						Label:    "Cancel",
						Style:    discordgo.DangerButton,
						CustomID: customIDTicketCancel,
						Emoji:    &discordgo.ComponentEmoji{Name: "❌"},
					},
				},
			},
		},
	}); err != nil {
		b.logger.Warn("ticket message failed", "channel", channelID, "error", err)
	}

	b.respondEphemeral(s, i, fmt.Sprintf("✅ Ticket for **%s** created! Head over to <#%s>", product, channelID))
}

func (b *Bot) handleSettlement(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, success bool) {
	actor := interactionUserID(i)
	reservationID := i.ChannelID // ticket channel identity is the reservation id

	if b.dedupe != nil {
		if ok, err := b.dedupe.Acquire(ctx, i.ID); err == nil && !ok {
			return // redelivered interaction, already handled
		}
	}

	var (
		res domain.Reservation
		err error
	)
	if success {
		res, err = b.engine.ResolveSuccess(ctx, reservationID, actor)
	} else {
		res, err = b.engine.ResolveCancel(ctx, reservationID, actor)
	}
	if err != nil {
		b.respondEphemeral(s, i, userMessage(err))
		return
	}

	// Replace the ticket embed and drop the buttons.
	if i.Message != nil {
		empty := []discordgo.MessageComponent{}
		if _, err := s.ChannelMessageEditComplex(&discordgo.MessageEdit{
			Channel:    i.ChannelID,
			ID:         i.Message.ID,
			Embeds:     &[]*discordgo.MessageEmbed{settledTicketEmbed(res)},
			Components: &empty,
		}); err != nil {
			b.logger.Warn("ticket embed update failed", "channel", i.ChannelID, "error", err)
		}
	}

	var content string
	if success {
		content = fmt.Sprintf("✅ Transaction for **%s** completed!", res.Product)
		if av, avErr := b.engine.Availability(ctx, res.Product); avErr == nil {
			content = fmt.Sprintf("✅ Transaction for **%s** completed! Remaining stock: **%d**", res.Product, av.Stock)
		}
	} else {
		content = "❌ Transaction cancelled!"
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	}); err != nil {
		b.logger.Warn("settlement response failed", "error", err)
	}

	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: fmt.Sprintf("Ticket closes in %d seconds...", int(b.engine.TeardownDelay/time.Second)),
	}); err != nil {
		b.logger.Warn("teardown notice failed", "error", err)
	}

	if success {
		b.storefront.Refresh(ctx)
	}
}

func ticketEmbed(r domain.Reservation) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "🎫 Purchase ticket",
		Description: fmt.Sprintf("👤 Buyer: %s\n🧾 Product: **%s**\n\nPlease wait for an operator to process your order.",
			mention(r.Requester), r.Product),
		Color:     colorPending,
		Timestamp: r.CreatedAt.Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "📦 Quantity", Value: strconv.Itoa(r.Quantity), Inline: true},
			{Name: "💰 Total", Value: "Rp" + FormatPrice(r.TotalPrice), Inline: true},
			{Name: "Status", Value: "⏳ **Waiting for an operator**"},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "The ticket closes automatically once the transaction is settled",
		},
	}
}

func settledTicketEmbed(r domain.Reservation) *discordgo.MessageEmbed {
	embed := ticketEmbed(r)
	if r.Status == domain.StatusSuccess {
		embed.Color = colorSuccess
		embed.Fields[2].Value = "✅ **Transaction completed**"
	} else {
		embed.Color = colorCancelled
		embed.Fields[2].Value = "❌ **Transaction cancelled**"
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name: "Processed by", Value: mention(r.ResolvedBy),
	})
	return embed
}

// userMessage maps engine errors to the storefront's user-facing wording.
func userMessage(err error) string {
	var (
		validation   *domain.ValidationError
		insufficient *domain.InsufficientStockError
	)

	switch {
	case errors.As(err, &insufficient):
		return fmt.Sprintf("❌ **Not enough stock for %s!**\nAvailable: **%d**\nIn pending tickets: **%d**\nYou asked for: **%d**",
			insufficient.Product, insufficient.Available, insufficient.Pending, insufficient.Requested)
	case errors.As(err, &validation):
		return "❌ " + validation.Reason
	case errors.Is(err, domain.ErrNotFound):
		return "❌ Not found (it may have been removed)."
	case errors.Is(err, domain.ErrAlreadyProcessed):
		return "❌ This transaction was already processed!"
	case errors.Is(err, domain.ErrUnauthorized):
		return "❌ You are not allowed to do this!"
	default:
		return "❌ Something went wrong, please try again."
	}
}

func (b *Bot) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		b.logger.Warn("interaction response failed", "error", err)
	}
}

func (b *Bot) respondEphemeralEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		b.logger.Warn("interaction response failed", "error", err)
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func commandOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func modalInputValue(data discordgo.ModalSubmitInteractionData, customID string) string {
	for _, row := range data.Components {
		ar, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, comp := range ar.Components {
			if input, ok := comp.(*discordgo.TextInput); ok && input.CustomID == customID {
				return input.Value
			}
		}
	}
	return ""
}

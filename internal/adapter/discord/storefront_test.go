package discord

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrLims/discord-custom-product/internal/core/domain"
)

func TestFormatPrice(t *testing.T) {
	cases := map[int64]string{
		0:        "0",
		999:      "999",
		1000:     "1.000",
		5000:     "5.000",
		150000:   "150.000",
		1234567:  "1.234.567",
		10000000: "10.000.000",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatPrice(in), "FormatPrice(%d)", in)
	}
}

func TestBuildStorefrontEmbedEmpty(t *testing.T) {
	embed := buildStorefrontEmbed(nil)
	assert.Contains(t, embed.Description, "/addproduct")
}

func TestBuildStorefrontEmbedListsProducts(t *testing.T) {
	embed := buildStorefrontEmbed([]domain.Product{
		{Name: "Koi", Stock: 10, Price: 5000},
		{Name: "Betta", Stock: 0, Price: 1500},
	})

	assert.Contains(t, embed.Description, "**Koi**")
	assert.Contains(t, embed.Description, "Rp5.000")
	assert.Contains(t, embed.Description, soldOutLabel)
	assert.NotContains(t, embed.Description, "› Stock : 0")
}

func TestStorefrontComponents(t *testing.T) {
	components := storefrontComponents([]domain.Product{
		{Name: "Koi", Stock: 10, Price: 5000},
	})
	require.Len(t, components, 1)

	row, ok := components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 1)

	menu, ok := row.Components[0].(discordgo.SelectMenu)
	require.True(t, ok)
	assert.Equal(t, customIDProductSelect, menu.CustomID)
	require.Len(t, menu.Options, 1)
	assert.Equal(t, "Koi", menu.Options[0].Value)
}

func TestStorefrontComponentsPlaceholderWhenEmpty(t *testing.T) {
	components := storefrontComponents(nil)
	require.Len(t, components, 1)

	row := components[0].(discordgo.ActionsRow)
	menu := row.Components[0].(discordgo.SelectMenu)
	require.Len(t, menu.Options, 1)
	assert.Equal(t, noProductValue, menu.Options[0].Value)
}

func TestTicketChannelName(t *testing.T) {
	name := ticketChannelName("Custom Koi Fish", "12345")
	assert.Equal(t, "ticket-custom-koi-fish-12345", name)

	long := ticketChannelName(strings.Repeat("a", 200), "12345")
	assert.LessOrEqual(t, len(long), 100)
}

func TestUserMessageInsufficientStock(t *testing.T) {
	msg := userMessage(&domain.InsufficientStockError{
		Product: "Koi", Available: 6, Pending: 4, Requested: 7,
	})
	assert.Contains(t, msg, "Koi")
	assert.Contains(t, msg, "**6**")
	assert.Contains(t, msg, "**4**")
	assert.Contains(t, msg, "**7**")
}

func TestUserMessageSentinels(t *testing.T) {
	assert.Contains(t, userMessage(domain.ErrAlreadyProcessed), "already processed")
	assert.Contains(t, userMessage(domain.ErrUnauthorized), "not allowed")
	assert.Contains(t, userMessage(&domain.ValidationError{Reason: "quantity must be greater than zero"}), "quantity")
}

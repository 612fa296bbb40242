package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends the bot can run on.
const (
	BackendMemory = "memory"
	BackendMySQL  = "mysql"
)

// Config carries everything the process needs from the environment. A .env
// file in the working directory is loaded first when present.
type Config struct {
	// Discord
	Token                string
	GuildID              string
	StorefrontChannelID  string
	TicketCategoryID     string
	TestimonialChannelID string
	OperatorIDs          []string

	// Storage
	StorageBackend string
	SnapshotDir    string
	MySQLDSN       string
	RedisAddr      string

	// Surfaces and behavior
	HTTPAddr      string
	TeardownDelay time.Duration
	Debug         bool
}

// Load reads the configuration, applying defaults where the environment is
// silent. The bot token and guild id are mandatory.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Token:                os.Getenv("DISCORD_TOKEN"),
		GuildID:              os.Getenv("GUILD_ID"),
		StorefrontChannelID:  os.Getenv("STOREFRONT_CHANNEL_ID"),
		TicketCategoryID:     os.Getenv("TICKET_CATEGORY_ID"),
		TestimonialChannelID: os.Getenv("TESTIMONIAL_CHANNEL_ID"),
		OperatorIDs:          splitIDs(os.Getenv("OPERATOR_IDS")),
		StorageBackend:       getenv("STORAGE_BACKEND", BackendMemory),
		SnapshotDir:          getenv("SNAPSHOT_DIR", "data"),
		MySQLDSN:             os.Getenv("MYSQL_DSN"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		TeardownDelay:        10 * time.Second,
		Debug:                os.Getenv("DEBUG") == "true",
	}

	if v := os.Getenv("TEARDOWN_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse TEARDOWN_DELAY: %w", err)
		}
		cfg.TeardownDelay = d
	}

	if cfg.Token == "" {
		return Config{}, fmt.Errorf("DISCORD_TOKEN is required")
	}
	if cfg.GuildID == "" {
		return Config{}, fmt.Errorf("GUILD_ID is required")
	}

	switch cfg.StorageBackend {
	case BackendMemory:
	case BackendMySQL:
		if cfg.MySQLDSN == "" {
			return Config{}, fmt.Errorf("MYSQL_DSN is required when STORAGE_BACKEND=mysql")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitIDs(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			out = append(out, id)
		}
	}
	return out
}

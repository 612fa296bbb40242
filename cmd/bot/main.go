package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bwmarrin/discordgo"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/CrLims/discord-custom-product/internal/adapter/discord"
	"github.com/CrLims/discord-custom-product/internal/adapter/handler"
	"github.com/CrLims/discord-custom-product/internal/adapter/storage"
	"github.com/CrLims/discord-custom-product/internal/config"
	"github.com/CrLims/discord-custom-product/internal/core/service"
	"github.com/CrLims/discord-custom-product/internal/port"
	"github.com/CrLims/discord-custom-product/internal/sched"
	"github.com/CrLims/discord-custom-product/pkg/logging"
	"github.com/CrLims/discord-custom-product/pkg/shutdown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Debug)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	// Storage
	var (
		catalog port.ProductCatalog
		ledger  port.ReservationLedger
		db      *sql.DB
	)
	switch cfg.StorageBackend {
	case config.BackendMySQL:
		db, err = sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			fatal(logger, "mysql open failed", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			fatal(logger, "mysql ping failed", err)
		}
		if err := storage.Migrate(ctx, db); err != nil {
			fatal(logger, "mysql migration failed", err)
		}
		catalog = storage.NewMySQLCatalog(db)
		ledger = storage.NewMySQLLedger(db)
		logger.Info("connected to mysql")

	default:
		if err := os.MkdirAll(cfg.SnapshotDir, 0o755); err != nil {
			fatal(logger, "snapshot dir creation failed", err)
		}
		catalog, err = storage.NewMemoryCatalogWithSnapshot(filepath.Join(cfg.SnapshotDir, "products.json"))
		if err != nil {
			fatal(logger, "product snapshot load failed", err)
		}
		ledger, err = storage.NewMemoryLedgerWithSnapshot(filepath.Join(cfg.SnapshotDir, "transactions.json"))
		if err != nil {
			fatal(logger, "transaction snapshot load failed", err)
		}
		logger.Info("using in-memory storage", "snapshot_dir", cfg.SnapshotDir)
	}

	// Redis backs the display pointer and interaction dedupe when configured;
	// otherwise the display pointer lives next to the snapshots.
	var (
		display port.DisplayStore
		dedupe  port.InteractionDeduper
		rdb     *redis.Client
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			fatal(logger, "redis ping failed", err)
		}
		adapter := storage.NewRedisAdapter(rdb)
		display = adapter
		dedupe = adapter
		logger.Info("connected to redis")
	} else {
		display = storage.NewFileDisplayStore(filepath.Join(cfg.SnapshotDir, "main_message.json"))
	}

	// Discord session
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		fatal(logger, "discord session creation failed", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	scheduler := sched.New()
	gateway := discord.NewChannelGateway(session, cfg.GuildID, cfg.TicketCategoryID, cfg.OperatorIDs, scheduler, logger)
	notifier := discord.NewTestimonialNotifier(session, cfg.TestimonialChannelID)

	engine := service.NewEngine(catalog, ledger, gateway, notifier, cfg.OperatorIDs, logger)
	engine.TeardownDelay = cfg.TeardownDelay

	storefront := discord.NewStorefront(session, engine, display, cfg.StorefrontChannelID, logger)
	discord.NewBot(session, engine, storefront, gateway, dedupe, cfg.GuildID, logger)

	if err := session.Open(); err != nil {
		fatal(logger, "discord gateway connection failed", err)
	}
	logger.Info("discord gateway connected")

	// Administrative HTTP surface
	httpHandler := handler.NewHTTPHandler(engine, logger)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpHandler.Routes(),
	}
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("http server stopped")

	if err := session.Close(); err != nil {
		logger.Warn("discord session close failed", "error", err)
	}
	logger.Info("discord session closed")

	scheduler.Stop()

	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		db.Close()
	}
	logger.Info("connections closed")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

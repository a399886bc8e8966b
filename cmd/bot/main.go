package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/degencred/credbot/config"
	"github.com/degencred/credbot/db"
	"github.com/degencred/credbot/internal/bot"
	"github.com/degencred/credbot/internal/repository"
	"github.com/degencred/credbot/internal/server"
	"github.com/degencred/credbot/internal/service"
	"github.com/degencred/credbot/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		utils.InitLogger("info").Fatal("Failed to load config: ", err)
	}
	logger := utils.InitLogger(cfg.LogLevel)

	if cfg.TelegramBotToken == "" {
		logger.Fatal("TELEGRAM_BOT_TOKEN is not set")
	}

	database, err := db.ConnectDb(db.Options{
		Driver:       cfg.DBDriver,
		URL:          cfg.DB_URL,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	}, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer db.Close(database, logger)

	if err := db.Migrate(database, true, logger); err != nil {
		logger.Fatal(err)
	}
	if err := db.SeedAdmins(database, cfg.AdminIDs, logger); err != nil {
		logger.Fatal(err)
	}

	repo := repository.NewRepository(database, logger, cfg.DBTimeout)
	ledger := service.NewService(repo, service.Settings{
		Tiers:     cfg.Tiers,
		RepLevels: cfg.RepLevels,
		AccessFee: cfg.AccessFee,
	}, logger)

	telegramBot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		logger.Fatal("Failed to create bot API: ", err)
	}
	logger.Infof("Authorized as @%s", telegramBot.Self.UserName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bot.NewBot(telegramBot, ledger, logger, &cfg)
	health := server.New(cfg.HealthAddr, cfg.MetricsEnabled, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := health.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Errorf("Health server stopped: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		ledger.RunSweeper(ctx, cfg.SweepInterval, b.NotifyDefault)
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := telegramBot.GetUpdatesChan(u)
	b.Start(ctx, updates)

	telegramBot.StopReceivingUpdates()
	wg.Wait()
	logger.Info("Shutdown complete")
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brainbounce/internal/auth"
	"brainbounce/internal/bot"
	"brainbounce/internal/config"
	"brainbounce/internal/localstore"
	"brainbounce/internal/model"
	"brainbounce/internal/repository"
	"brainbounce/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml (default: $BRAINBOUNCE_CONFIG or ~/.config/brainbounce/config.toml)")
	issueFor := flag.String("issue-token", "", "print a login token for this user id and exit")
	email := flag.String("email", "", "email embedded in the issued token")
	name := flag.String("name", "", "display name embedded in the issued token")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "lifetime of the issued token")
	revoke := flag.String("revoke-sync", "", "deny cloud access for this user id and exit")
	grant := flag.String("grant-sync", "", "restore cloud access for this user id and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if *issueFor != "" {
		if cfg.JWTSecret == "" {
			log.Fatalf("config: JWT_SECRET is required to issue tokens")
		}
		token, err := auth.NewIssuer(cfg.JWTSecret).Issue(auth.User{
			ID:          model.UserID(*issueFor),
			Email:       *email,
			DisplayName: *name,
		}, *ttl)
		if err != nil {
			log.Fatalf("issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewDB(cfg.RemoteDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	accountRepo := repository.NewAccountRepository(db)
	if *revoke != "" || *grant != "" {
		if err := setSyncAccess(ctx, accountRepo, *revoke, *grant); err != nil {
			log.Fatalf("sync access: %v", err)
		}
		return
	}

	var feed repository.Feed = repository.NewMemoryFeed()
	if cfg.RedisURL != "" {
		redisFeed, err := repository.NewRedisFeed(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisFeed.Close()
		feed = redisFeed
		log.Println("[info] publishing document changes through redis")
	}

	localDB, err := localstore.Open(cfg.LocalDSN)
	if err != nil {
		log.Fatalf("local store: %v", err)
	}
	defer localDB.Close()

	reminderSvc := service.NewReminderService(time.Now)
	telegramBot, err := bot.New(cfg.TelegramToken, bot.Deps{
		Devices:   repository.NewDeviceRepository(db),
		Accounts:  accountRepo,
		Documents: repository.NewDocumentRepository(db, feed),
		LocalDB:   localDB,
		Issuer:    auth.NewIssuer(cfg.JWTSecret),
		Reminders: reminderSvc,
		Config:    &cfg,
	})
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	scheduler := service.NewSchedulerService(time.Local, 30*time.Second)
	if _, err := scheduler.ScheduleInterval("reminders", cfg.ReminderCheckInterval, telegramBot.SendDueReminders); err != nil {
		log.Fatalf("schedule reminders: %v", err)
	}
	if cfg.NudgeTime != "" {
		if _, err := scheduler.ScheduleDaily("daily report", cfg.NudgeTime, telegramBot.SendDailyReports); err != nil {
			log.Fatalf("schedule daily report: %v", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Println("BrainBounce bot started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	telegramBot.Shutdown(flushCtx)
	log.Println("Shutdown complete.")
}

func setSyncAccess(ctx context.Context, accounts *repository.AccountRepository, revoke, grant string) error {
	if revoke != "" {
		if err := accounts.SetSyncEnabled(ctx, model.UserID(revoke), false); err != nil {
			return err
		}
		log.Printf("[info] cloud access revoked for %s", revoke)
	}
	if grant != "" {
		if err := accounts.SetSyncEnabled(ctx, model.UserID(grant), true); err != nil {
			return err
		}
		log.Printf("[info] cloud access granted for %s", grant)
	}
	return nil
}

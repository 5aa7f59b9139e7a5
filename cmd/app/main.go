package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"autoshop-crm/internal/adapters/cli"
	"autoshop-crm/internal/ai"
	"autoshop-crm/internal/app"
	"autoshop-crm/internal/config"
	"autoshop-crm/internal/core"
	"autoshop-crm/internal/db"
	"autoshop-crm/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	args := os.Args[1:]

	// Commands that work on the schema or bootstrap data run before the service graph exists.
	if len(args) > 0 {
		switch args[0] {
		case "migrate":
			if err := db.RunMigrations(ctx, pool, logger); err != nil {
				log.Fatalf("Migration failed: %v", err)
			}
			fmt.Println("Schema is up to date.")
			return
		case "create-user":
			if len(args) < 4 {
				log.Fatal("Usage: app create-user <username> <role> <password> [email]")
			}
			email := ""
			if len(args) > 4 {
				email = args[4]
			}
			u, err := core.NewUserService(pool).CreateUser(ctx, args[1], email, args[3], core.Role(args[2]))
			if err != nil {
				log.Fatalf("Create user failed: %v", err)
			}
			fmt.Printf("Created user %s (id %d, role %s)\n", u.Username, u.ID, u.Role)
			return
		}
	}

	svc := app.NewAppService(
		core.NewSalesRecordService(
			core.NewPostgresSalesRecordStore(pool),
			logger.Named("sales"),
			core.WithRecordNumberAttempts(cfg.RecordNumberRetries),
		),
		core.NewCustomerService(pool),
		core.NewMembershipService(pool),
		core.NewUserService(pool),
		ai.NewFollowUpDrafter(cfg.OpenAIAPIKey),
		logger.Named("app"),
	)

	if len(args) == 0 {
		cli.RunInteractive(ctx, svc, os.Stdin, os.Stdout)
		return
	}
	if err := cli.Run(ctx, svc, args, os.Stdout); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			logger.Debug("usage error", zap.Strings("args", args))
		}
		log.Fatalf("%v", err)
	}
}

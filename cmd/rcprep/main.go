package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/repository"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/cache"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/database"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/env"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/router"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/subscription"
)

const expirySweepInterval = 10 * time.Minute

func main() {
	app := NewApplication()

	// Background expiry sweep; the admin console can also trigger passes
	// on demand.
	manager := subscription.NewManagerFromDB(database.GetDB(), subscription.NewRedisSnapshotStore())
	go manager.RunExpirySweeper(context.Background(), expirySweepInterval)

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	app := fiber.New(fiber.Config{
		AppName: "ayrc-rcprep",
	})

	app.Use(recover.New(), logger.New())

	router.InstallRouter(app)

	return app
}

// Command backfill generates payment schedules for disbursed loans that have
// none, typically after importing loans from another system.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/sjperalta/fintera-lending/internal/config"
	"github.com/sjperalta/fintera-lending/internal/database"
	"github.com/sjperalta/fintera-lending/internal/events"
	"github.com/sjperalta/fintera-lending/internal/jobs"
	"github.com/sjperalta/fintera-lending/internal/repository"
	"github.com/sjperalta/fintera-lending/internal/services"
	"github.com/sjperalta/fintera-lending/pkg/logger"
)

func main() {
	batch := flag.Int("batch", 100, "loans loaded per query")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Setup(cfg.Environment, cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL, cfg.Environment)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	policy, err := services.NewDueDatePolicy(cfg.DueDatePolicy)
	if err != nil {
		logger.Error("Invalid due date policy", "error", err)
		os.Exit(1)
	}

	publisher := events.NewLogPublisher()
	worker := jobs.NewWorker(1)
	repos := repository.NewRepositories(db)
	scheduleSvc := services.NewScheduleService(repos.Schedule, repos.Loan, policy, publisher, worker)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := scheduleSvc.BackfillMissing(ctx, *batch)
	worker.Shutdown()
	if err != nil {
		logger.Error("Backfill aborted", "generated", n, "error", err)
		os.Exit(1)
	}
	logger.Info("Backfill finished", "generated", n, "policy", policy.Name())
}

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

	"github.com/joho/godotenv"

	"github.com/oksasatya/go-registration-form/config"
	"github.com/oksasatya/go-registration-form/internal/container"
	"github.com/oksasatya/go-registration-form/internal/interface/cli"
	"github.com/oksasatya/go-registration-form/internal/router"
	"github.com/oksasatya/go-registration-form/pkg/helpers"
)

func main() {
	reveal := flag.Bool("reveal", false, "show password input as plain text")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	// Keep the terminal for prompts; only warnings and above are logged.
	logger := helpers.NewLogger(cfg.AppName, cfg.Env, "warn")
	logger.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cleanup, err := container.Init(ctx, cfg, logger, container.Options{})
	defer cleanup()
	if err != nil {
		cleanup()
		log.Fatalf("startup failed: %v", err)
	}

	form, err := router.BuildRegistrationService(container.GetUserRepository())
	if err != nil {
		cleanup()
		log.Fatalf("failed to build registration form: %v", err)
	}
	if err := form.Mount(ctx); err != nil {
		_ = form.Close(context.Background())
		cleanup()
		log.Fatalf("failed to mount registration form: %v", err)
	}

	runner := cli.NewRunner(form, cli.NewSurveyDriver(os.Stdout), *reveal)
	runner.OfferReveal = !*reveal
	rec, runErr := runner.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := form.Close(closeCtx); err != nil {
		helpers.LogError(logger, "registration form teardown", err, nil)
	}

	switch {
	case runErr == nil:
		fmt.Printf("registered %s (id=%s)\n", rec.Email, rec.ID)
	case errors.Is(runErr, cli.ErrAborted), errors.Is(runErr, cli.ErrDeclined):
		fmt.Println("draft saved; run again to continue")
	default:
		cleanup()
		log.Fatalf("registration failed: %v", runErr)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/oksasatya/go-registration-form/config"
	"github.com/oksasatya/go-registration-form/internal/container"
	"github.com/oksasatya/go-registration-form/internal/domain/entity"
	"github.com/oksasatya/go-registration-form/pkg/helpers"
	"github.com/oksasatya/go-registration-form/pkg/validation"
)

func main() {
	name := flag.String("name", "Grace Hopper", "full name")
	email := flag.String("email", "grace@example.com", "email address")
	password := flag.String("password", "Cobol1959!", "password")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env, cfg.LogLevel)
	ctx := context.Background()

	cleanup, err := container.Init(ctx, cfg, logger, container.Options{Migrate: true})
	defer cleanup()
	if err != nil {
		cleanup()
		log.Fatalf("startup failed: %v", err)
	}

	values := entity.FormValues{FullName: *name, Email: *email, Password: *password, ConfirmPassword: *password}
	if errs := validation.Validate(values); len(errs) > 0 {
		cleanup()
		log.Fatalf("invalid seed record: %v", errs)
	}

	// Same chain as the form: Postgres, search index, change feed.
	rec := values.Record()
	if err := container.GetUserRepository().Append(ctx, rec); err != nil {
		cleanup()
		log.Fatalf("failed to seed user: %v", err)
	}
	fmt.Printf("seeded user: id=%s email=%s name=%s\n", rec.ID, rec.Email, rec.FullName)
}

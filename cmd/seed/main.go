// seed creates the first admin account in the local dev database.
// Run: go run ./cmd/seed -email admin@medicobilling.local -name "Store Admin"
// The password is read from SEED_ADMIN_PASSWORD.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"github.com/ErlanBelekov/medico-billing/internal/domain"
	"github.com/ErlanBelekov/medico-billing/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/medico-billing/internal/password"
	"github.com/ErlanBelekov/medico-billing/internal/usecase"
	"github.com/joho/godotenv"
)

func main() {
	emailAddr := flag.String("email", "admin@medicobilling.local", "admin email")
	name := flag.String("name", "Store Admin", "admin display name")
	flag.Parse()

	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	secret := os.Getenv("SEED_ADMIN_PASSWORD")
	if len(secret) < 5 {
		log.Fatal("SEED_ADMIN_PASSWORD must be at least 5 characters")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, dbURL, 2)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	creds := usecase.NewCredentialUsecase(postgres.NewUserRepository(pool), password.NewHasher(password.DefaultCost))
	user, err := creds.Create(ctx, usecase.CreateUserInput{
		Name:     *name,
		Email:    *emailAddr,
		Password: secret,
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			log.Printf("admin %s already exists, nothing to do", *emailAddr)
			return
		}
		log.Fatalf("create admin: %v", err)
	}

	log.Printf("created admin %s (id=%s)", user.Email, user.ID)
}

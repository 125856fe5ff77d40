// Command seed_admin creates the initial ADMIN account. Run once after
// the database schema is in place:
//
//	go run ./scripts/seed_admin -username admin -password <secret>
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/uzcoder03/maktab/internal/models"
	"github.com/uzcoder03/maktab/internal/repository"
	"github.com/uzcoder03/maktab/pkg/config"
	"github.com/uzcoder03/maktab/pkg/database"
)

func main() {
	var (
		username  string
		password  string
		firstName string
		lastName  string
	)

	flag.StringVar(&username, "username", "admin", "admin username")
	flag.StringVar(&password, "password", "", "initial password (required)")
	flag.StringVar(&firstName, "first-name", "Admin", "first name")
	flag.StringVar(&lastName, "last-name", "Maktab", "last name")
	flag.Parse()

	if password == "" {
		log.Fatal("password is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users := repository.NewUserRepository(db)

	exists, err := users.ExistsByUsername(ctx, username)
	if err != nil {
		log.Fatalf("failed to check username: %v", err)
	}
	if exists {
		log.Fatalf("user %q already exists", username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Username:           username,
		PasswordHash:       string(hash),
		FirstName:          firstName,
		LastName:           lastName,
		Role:               models.RoleAdmin,
		MustChangePassword: true,
		Active:             true,
	}
	if err := users.Create(ctx, user); err != nil {
		log.Fatalf("failed to create admin: %v", err)
	}

	log.Printf("admin %q created (id %s), password change required on first login", username, user.ID)
}

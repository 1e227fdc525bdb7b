package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/noah-isme/campus-noticeboard/internal/models"
	"github.com/noah-isme/campus-noticeboard/internal/repository"
	"github.com/noah-isme/campus-noticeboard/internal/service"
	"github.com/noah-isme/campus-noticeboard/pkg/config"
	"github.com/noah-isme/campus-noticeboard/pkg/database"
	"github.com/noah-isme/campus-noticeboard/pkg/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		username string
		fullName string
		password string
		role     string
		reset    bool
	)
	flagSet := pflag.NewFlagSet("createuser", pflag.ContinueOnError)
	flagSet.StringVarP(&username, "username", "u", "", "login name (required)")
	flagSet.StringVar(&fullName, "full-name", "", "display name")
	flagSet.StringVarP(&password, "password", "p", os.Getenv("NOTICEBOARD_PASSWORD"), "password, at least 8 characters (default $NOTICEBOARD_PASSWORD)")
	flagSet.StringVar(&role, "role", string(models.RoleStaff), "STAFF or ADMIN")
	flagSet.BoolVar(&reset, "reset-password", false, "replace the password of an existing user instead of creating one")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if username == "" {
		return errors.New("--username is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx := context.Background()
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	auth := service.NewAuthService(repository.NewUserRepository(db), repository.NewAuditRepository(db), service.NewValidator(), logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	if reset {
		if err := auth.ResetPassword(ctx, username, password); err != nil {
			return err
		}
		fmt.Printf("password updated for %s\n", username)
		return nil
	}

	user, err := auth.Register(ctx, service.RegisterUserInput{
		Username: username,
		FullName: fullName,
		Password: password,
		Role:     models.UserRole(role),
	})
	if err != nil {
		return err
	}
	fmt.Printf("created %s user %s (%s)\n", user.Role, user.Username, user.ID)
	return nil
}

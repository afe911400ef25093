package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"

	"github.com/acdb/stockroom/internal/auth"
	"github.com/acdb/stockroom/internal/config"
	"github.com/acdb/stockroom/internal/db"
	"github.com/acdb/stockroom/internal/model"
	"github.com/acdb/stockroom/internal/store"
)

func cmdMember(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("member", flag.ContinueOnError)
	commonFlags(fs, cfg)

	var (
		userID, name, password string
		admin, randomPassword  bool
	)
	fs.StringVar(&userID, "id", "", "")
	fs.StringVar(&name, "name", "", "")
	fs.BoolVar(&admin, "admin", false, "")
	fs.StringVar(&password, "password", "", "")
	fs.BoolVar(&randomPassword, "random-password", false, "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: stockroom member -id <user id> [flags]

Flags:
  -id <user id>           member to create or update (required)
  -name <display name>    display name (default: the user id, or unchanged)
  -admin                  grant admin rights
  -password <password>    set an API login password
  -random-password        generate and print a login password
  -d, -db <path>          SQLite database path
  -l, -log <path>         log file path
`)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if userID == "" {
		fs.Usage()
		return errors.New("-id is required")
	}
	if password != "" && randomPassword {
		return errors.New("-password and -random-password are mutually exclusive")
	}

	database, cleanup, err := setup(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	m, err := store.GetMember(ctx, database, userID)
	if err != nil {
		return err
	}
	if m == nil {
		m = &model.Member{UserID: userID, DisplayName: userID}
	}
	if name != "" {
		m.DisplayName = name
	}
	if admin {
		m.IsAdmin = true
	}
	if err := store.UpsertMember(ctx, database, m); err != nil {
		return err
	}

	if randomPassword {
		password, err = generatePassword(16)
		if err != nil {
			return fmt.Errorf("generating password: %w", err)
		}
	}
	if password != "" {
		if err := setPassword(ctx, database, userID, password); err != nil {
			return err
		}
	}

	slog.Info("member saved", "user_id", m.UserID, "name", m.DisplayName, "admin", m.IsAdmin)
	fmt.Printf("Member %s (%s) saved, admin: %t\n", m.UserID, m.DisplayName, m.IsAdmin)
	if randomPassword {
		fmt.Printf("  Password: %s\n", password)
	}
	return nil
}

// bootstrapAdmin creates an admin member with a random password when the
// database has no members yet.
func bootstrapAdmin(ctx context.Context, database *db.DB, userID string) error {
	if userID == "" {
		return nil
	}
	members, err := store.ListMembers(ctx, database)
	if err != nil {
		return err
	}
	if len(members) > 0 {
		return nil
	}

	password, err := generatePassword(16)
	if err != nil {
		return fmt.Errorf("generating password: %w", err)
	}
	m := &model.Member{UserID: userID, DisplayName: userID, IsAdmin: true}
	if err := store.UpsertMember(ctx, database, m); err != nil {
		return fmt.Errorf("creating admin member: %w", err)
	}
	if err := setPassword(ctx, database, userID, password); err != nil {
		return err
	}

	printInitResult(userID, password)
	return nil
}

func setPassword(ctx context.Context, database *db.DB, userID, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return store.SetMemberPassword(ctx, database, userID, hash)
}

// printInitResult prints the bootstrap admin credentials to stdout.
func printInitResult(userID, password string) {
	fmt.Println("Admin member created:")
	fmt.Printf("  User id:  %s\n", userID)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("Use \"stockroom member -id <id> -password <new>\" to change it.")
	fmt.Println()
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}

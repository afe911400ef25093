package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/acdb/stockroom/internal/db"
)

// GetJWTSecret retrieves the JWT signing secret, generating and storing one
// on first use. Insert-if-absent followed by a re-read keeps concurrent
// startups on the same value.
func GetJWTSecret(ctx context.Context, q db.Querier) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}

	if err := SetSettingIfAbsent(ctx, q, "jwt_secret", hex.EncodeToString(buf)); err != nil {
		return "", err
	}

	secret, err := GetSetting(ctx, q, "jwt_secret")
	if err != nil {
		return "", err
	}
	return secret, nil
}

// SetSettingIfAbsent stores value under key unless the key already exists.
func SetSettingIfAbsent(ctx context.Context, q db.Querier, key, value string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT (key) DO NOTHING`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("storing setting %s: %w", key, err)
	}
	return nil
}

// GetSetting returns the value stored under key.
func GetSetting(ctx context.Context, q db.Querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("querying setting %s: %w", key, err)
	}
	return value, nil
}

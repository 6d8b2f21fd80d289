package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Settings keys for the company profile used by the message context builder.
const (
	SettingCompanyName    = "firma_nazwa"
	SettingCompanyAddress = "firma_adres"
	SettingCompanyNIP     = "firma_nip"
	SettingCompanyContact = "firma_osoba"
	SettingGUSAPIKey      = "gus_api_key"
)

// SettingsStore is the flat key/value configuration table. Runtime-mutable
// settings (company profile, per-stage schedules, api keys) live here;
// process-level settings come from the environment.
type SettingsStore struct {
	db     *DB
	logger *zap.Logger
}

// NewSettingsStore creates a settings store over the given database.
func NewSettingsStore(db *DB, logger *zap.Logger) *SettingsStore {
	return &SettingsStore{db: db, logger: logger}
}

// Get returns the value for key, or def when the key is absent or empty.
func (s *SettingsStore) Get(ctx context.Context, key, def string) (string, error) {
	var val string
	err := s.db.Pool().QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&val)
	if errors.Is(err, pgx.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("query setting %s: %w", key, err)
	}
	if val == "" {
		return def, nil
	}
	return val, nil
}

// Set stores the value for key, overwriting any previous value.
func (s *SettingsStore) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := s.db.Pool().Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// SetDefault stores the value only when the key does not exist yet.
// Used by seeding so user edits survive restarts.
func (s *SettingsStore) SetDefault(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING
	`
	if _, err := s.db.Pool().Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("seed setting %s: %w", key, err)
	}
	return nil
}

package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
)

// Well-known AppSetting keys. PollingIntervalMinutesKey is the legacy
// key this service migrates away from in favor of
// PollingIntervalHoursKey (see MigrateLegacyPollingSetting).
const (
	SettingPollingEnabled       = "POLLING_ENABLED"
	PollingIntervalHoursKey     = "POLLING_INTERVAL_HOURS"
	PollingIntervalMinutesKey   = "POLLING_INTERVAL_MINUTES"
)

// GetSetting returns a single AppSetting, or nil if unset.
func (s *Store) GetSetting(ctx context.Context, db DBTX, key string) (*AppSetting, error) {
	var a AppSetting
	err := db.GetContext(ctx, &a, `SELECT * FROM app_settings WHERE key = $1`, key)
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "lookup setting")
	}
	return &a, nil
}

// SetSetting upserts an AppSetting's value.
func (s *Store) SetSetting(ctx context.Context, db DBTX, key, value string, description *string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO app_settings (key, value, description, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value, description)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "set setting")
	}
	return nil
}

// ListSettings returns every AppSetting.
func (s *Store) ListSettings(ctx context.Context, db DBTX) ([]AppSetting, error) {
	var rows []AppSetting
	if err := db.SelectContext(ctx, &rows, `SELECT * FROM app_settings ORDER BY key`); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "list settings")
	}
	return rows, nil
}

// MigrateLegacyPollingSetting implements the one-time
// POLLING_INTERVAL_MINUTES -> POLLING_INTERVAL_HOURS migration: if the
// legacy minutes key is present and the hours key is not, it converts
// minutes/60 (rounded to the nearest hundredth) into the new key and
// leaves the legacy row untouched for audit purposes.
func (s *Store) MigrateLegacyPollingSetting(ctx context.Context, db DBTX) error {
	legacy, err := s.GetSetting(ctx, db, PollingIntervalMinutesKey)
	if err != nil {
		return err
	}
	if legacy == nil {
		return nil
	}
	existing, err := s.GetSetting(ctx, db, PollingIntervalHoursKey)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	minutes, err := strconv.ParseFloat(strings.TrimSpace(legacy.Value), 64)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrorTypeValidation, "parse legacy %s value %q", PollingIntervalMinutesKey, legacy.Value)
	}
	hours := roundTo2(minutes / 60)
	return s.SetSetting(ctx, db, PollingIntervalHoursKey, strconv.FormatFloat(hours, 'f', -1, 64), legacy.Description)
}

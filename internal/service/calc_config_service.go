package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/openmarks/markbook-api/internal/legacy"
	"github.com/openmarks/markbook-api/internal/models"
	appErrors "github.com/openmarks/markbook-api/pkg/errors"
)

const (
	settingCalcImported = "calc.imported"
	settingCalcOverride = "calc.override"
)

type settingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// CalcConfigService resolves the calculation settings threaded into every
// computation: explicit override, else the values imported from the legacy
// settings file, else built-in defaults.
type CalcConfigService struct {
	settings settingsStore
	logger   *zap.Logger
}

// NewCalcConfigService constructs CalcConfigService.
func NewCalcConfigService(settings settingsStore, logger *zap.Logger) *CalcConfigService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalcConfigService{settings: settings, logger: logger}
}

// Effective returns the configuration currently in force.
func (s *CalcConfigService) Effective(ctx context.Context) (models.CalcConfig, error) {
	for _, key := range []string{settingCalcOverride, settingCalcImported} {
		raw, ok, err := s.settings.Get(ctx, key)
		if err != nil {
			return models.CalcConfig{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calc settings")
		}
		if !ok {
			continue
		}
		var cfg models.CalcConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil || !cfg.Valid() {
			s.logger.Warn("stored calc config unusable, skipping", zap.String("key", key), zap.Error(err))
			continue
		}
		return cfg, nil
	}
	return models.DefaultCalcConfig(), nil
}

// SetOverride replaces the effective configuration until cleared.
func (s *CalcConfigService) SetOverride(ctx context.Context, cfg models.CalcConfig) error {
	if !cfg.Valid() {
		return appErrors.Clone(appErrors.ErrBadParams, "mode threshold table is inconsistent")
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode calc config")
	}
	if err := s.settings.Set(ctx, settingCalcOverride, string(raw)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store calc override")
	}
	return nil
}

// ClearOverride restores the imported (or built-in) configuration.
func (s *CalcConfigService) ClearOverride(ctx context.Context) error {
	if err := s.settings.Delete(ctx, settingCalcOverride); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear calc override")
	}
	return nil
}

// ImportLegacySettings reads the legacy settings file and stores its values
// as the imported defaults. Failure is soft: the previous imported values
// (or built-in defaults) stay in force and no error escapes.
func (s *CalcConfigService) ImportLegacySettings(ctx context.Context, path string) {
	if path == "" {
		return
	}
	parsed, err := legacy.ParseUserConfig(path)
	if err != nil {
		s.logger.Warn("legacy settings import skipped", zap.String("path", path), zap.Error(err))
		return
	}
	cfg := models.CalcConfig{
		Roff:             parsed.RoffDefault,
		ModeActiveLevels: parsed.ModeActiveLevels,
		ModeVals:         parsed.ModeVals,
		ModeSymbols:      parsed.ModeSymbols,
	}
	if !cfg.Valid() {
		s.logger.Warn("legacy settings import produced inconsistent thresholds, ignoring", zap.String("path", path))
		return
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		s.logger.Warn("legacy settings import failed to encode", zap.Error(err))
		return
	}
	if err := s.settings.Set(ctx, settingCalcImported, string(raw)); err != nil {
		s.logger.Warn("legacy settings import failed to persist", zap.Error(err))
	}
}

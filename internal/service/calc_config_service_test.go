package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmarks/markbook-api/internal/models"
)

type settingsStub struct {
	items map[string]string
}

func (s *settingsStub) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *settingsStub) Set(ctx context.Context, key, value string) error {
	if s.items == nil {
		s.items = make(map[string]string)
	}
	s.items[key] = value
	return nil
}

func (s *settingsStub) Delete(ctx context.Context, key string) error {
	delete(s.items, key)
	return nil
}

func TestCalcConfigDefaults(t *testing.T) {
	svc := NewCalcConfigService(&settingsStub{}, nil)

	cfg, err := svc.Effective(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCalcConfig(), cfg)
}

func TestCalcConfigOverrideLifecycle(t *testing.T) {
	store := &settingsStub{}
	svc := NewCalcConfigService(store, nil)
	ctx := context.Background()

	override := models.DefaultCalcConfig()
	override.Roff = true
	require.NoError(t, svc.SetOverride(ctx, override))

	cfg, err := svc.Effective(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.Roff)

	require.NoError(t, svc.ClearOverride(ctx))
	cfg, err = svc.Effective(ctx)
	require.NoError(t, err)
	assert.False(t, cfg.Roff)
}

func TestCalcConfigRejectsInconsistentOverride(t *testing.T) {
	svc := NewCalcConfigService(&settingsStub{}, nil)

	err := svc.SetOverride(context.Background(), models.CalcConfig{ModeActiveLevels: 3, ModeVals: []float64{0, 50}})
	require.Error(t, err)
}

func TestImportLegacySettings(t *testing.T) {
	store := &settingsStub{}
	svc := NewCalcConfigService(store, nil)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "user.cfg")
	content := "roff=1\nmodeLevels=2\nmodeVals=0,60,60,100\nmodeSymbols=F,P\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	svc.ImportLegacySettings(ctx, path)

	cfg, err := svc.Effective(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.Roff)
	assert.Equal(t, 2, cfg.ModeActiveLevels)
	assert.Equal(t, []float64{0, 60, 60, 100}, cfg.ModeVals)

	// Override still wins over imported values.
	override := models.DefaultCalcConfig()
	require.NoError(t, svc.SetOverride(ctx, override))
	cfg, err = svc.Effective(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.ModeActiveLevels)

	// Clearing falls back to the imported values, not the built-ins.
	require.NoError(t, svc.ClearOverride(ctx))
	cfg, err = svc.Effective(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.ModeActiveLevels)
}

func TestImportLegacySettingsSoftFailure(t *testing.T) {
	store := &settingsStub{}
	svc := NewCalcConfigService(store, nil)

	svc.ImportLegacySettings(context.Background(), filepath.Join(t.TempDir(), "missing.cfg"))

	cfg, err := svc.Effective(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCalcConfig(), cfg)
}

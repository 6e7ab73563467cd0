package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"incident-crossfilter-go/internal/config"
	"incident-crossfilter-go/internal/gesture"
	"incident-crossfilter-go/internal/types"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"DATASET_PATH", "DATASET_URL", "PORT", "CHARTS_PATH", "BRUSH_MODE", "BRUSH_WIDTH"} {
		t.Setenv(k, "")
	}
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	gt.NoError(t, err).Required()
	gt.Equal(t, cfg.Port, "8080")
	gt.Equal(t, cfg.BrushMode, gesture.OnRelease)
	gt.Equal(t, cfg.BrushWidth, 1000.0)
}

func TestLoad_DotEnv(t *testing.T) {
	for _, k := range []string{"PORT", "BRUSH_MODE", "BRUSH_WIDTH"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	env := filepath.Join(t.TempDir(), ".env")
	gt.NoError(t, os.WriteFile(env, []byte("PORT=9999\nBRUSH_MODE=tick\nBRUSH_WIDTH=640\n"), 0o600)).Required()

	cfg, err := config.Load(env)
	gt.NoError(t, err).Required()
	gt.Equal(t, cfg.Port, "9999")
	gt.Equal(t, cfg.BrushMode, gesture.OnTick)
	gt.Equal(t, cfg.BrushWidth, 640.0)
}

func TestLoad_InvalidBrush(t *testing.T) {
	t.Setenv("BRUSH_MODE", "hover")
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	gt.Error(t, err)

	t.Setenv("BRUSH_MODE", "tick")
	t.Setenv("BRUSH_WIDTH", "-3")
	_, err = config.Load(filepath.Join(t.TempDir(), "missing.env"))
	gt.Error(t, err)
}

func TestLoadCharts(t *testing.T) {
	t.Run("empty path gives defaults", func(t *testing.T) {
		cfg, err := config.LoadCharts("")
		gt.NoError(t, err).Required()
		gt.Equal(t, len(cfg.Charts), 3)
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "charts.yaml")
		data := `charts:
  - name: incidents
    granularity: month
    categories: [High, Medium, Low]
    cumulative: true
  - name: sectors
    granularity: day
    field: sector
    sample: true
`
		gt.NoError(t, os.WriteFile(path, []byte(data), 0o600)).Required()

		cfg, err := config.LoadCharts(path)
		gt.NoError(t, err).Required()
		gt.Equal(t, len(cfg.Charts), 2)

		opts := cfg.Charts[1].Options()
		gt.Equal(t, opts.Granularity, types.Day)
		gt.Equal(t, opts.Field, "sector")
		gt.True(t, cfg.Charts[0].Options().Cumulative)
	})

	t.Run("rejects duplicates and bad granularity", func(t *testing.T) {
		dir := t.TempDir()
		dup := filepath.Join(dir, "dup.yaml")
		gt.NoError(t, os.WriteFile(dup, []byte("charts:\n  - name: a\n  - name: a\n"), 0o600)).Required()
		_, err := config.LoadCharts(dup)
		gt.Error(t, err)

		bad := filepath.Join(dir, "bad.yaml")
		gt.NoError(t, os.WriteFile(bad, []byte("charts:\n  - name: a\n    granularity: fortnight\n"), 0o600)).Required()
		_, err = config.LoadCharts(bad)
		gt.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadCharts(filepath.Join(t.TempDir(), "nope.yaml"))
		gt.Error(t, err)
	})
}

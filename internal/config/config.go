package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
	"incident-crossfilter-go/internal/gesture"
)

// Config is read from the environment, after an optional .env file.
type Config struct {
	DatasetPath string
	DatasetURL  string
	Port        string
	Environment string
	LogLevel    string
	ChartsPath  string
	BrushMode   gesture.Mode
	BrushWidth  float64
}

// Load reads .env files (missing files are fine) and then the environment.
func Load(files ...string) (Config, error) {
	_ = godotenv.Load(files...)

	cfg := Config{
		DatasetPath: envOr("DATASET_PATH", "data/incidents.csv"),
		DatasetURL:  os.Getenv("DATASET_URL"),
		Port:        envOr("PORT", "8080"),
		Environment: envOr("ENVIRONMENT", "local"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		ChartsPath:  os.Getenv("CHARTS_PATH"),
		BrushWidth:  1000,
	}

	mode, err := gesture.ParseMode(envOr("BRUSH_MODE", string(gesture.OnRelease)))
	if err != nil {
		return Config{}, goerr.Wrap(err, "invalid BRUSH_MODE")
	}
	cfg.BrushMode = mode

	if v := os.Getenv("BRUSH_WIDTH"); v != "" {
		w, err := strconv.ParseFloat(v, 64)
		if err != nil || w <= 0 {
			return Config{}, goerr.New("invalid BRUSH_WIDTH", goerr.V("value", v))
		}
		cfg.BrushWidth = w
	}
	return cfg, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

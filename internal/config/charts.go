package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
	"incident-crossfilter-go/internal/aggregator"
	"incident-crossfilter-go/internal/types"
)

// ChartSpec describes one chart of the page.
type ChartSpec struct {
	Name        string   `yaml:"name"`
	Granularity string   `yaml:"granularity"`
	Field       string   `yaml:"field,omitempty"`
	Categories  []string `yaml:"categories,omitempty"`
	Cumulative  bool     `yaml:"cumulative"`
	Sample      bool     `yaml:"sample"`
}

type ChartsConfig struct {
	Charts []ChartSpec `yaml:"charts"`
}

// DefaultCharts mirrors the page: a cumulative severity area chart, a daily
// timeline under the brush and a sector treemap.
func DefaultCharts() ChartsConfig {
	return ChartsConfig{Charts: []ChartSpec{
		{Name: "incidents", Granularity: "month", Categories: []string{"High", "Medium", "Low"}, Cumulative: true},
		{Name: "timeline", Granularity: "day"},
		{Name: "sectors", Granularity: "month", Field: "sector", Sample: true},
	}}
}

// LoadCharts reads a YAML chart file. An empty path gives DefaultCharts.
func LoadCharts(path string) (ChartsConfig, error) {
	if path == "" {
		return DefaultCharts(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ChartsConfig{}, goerr.Wrap(err, "failed to read charts file", goerr.V("path", path))
	}
	var cfg ChartsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ChartsConfig{}, goerr.Wrap(err, "failed to parse charts file", goerr.V("path", path))
	}
	if err := cfg.Validate(); err != nil {
		return ChartsConfig{}, goerr.Wrap(err, "invalid charts file", goerr.V("path", path))
	}
	return cfg, nil
}

func (c ChartsConfig) Validate() error {
	if len(c.Charts) == 0 {
		return goerr.New("at least one chart is required")
	}
	seen := map[string]bool{}
	for i, ch := range c.Charts {
		if ch.Name == "" {
			return goerr.New("chart name is empty", goerr.V("index", i))
		}
		if seen[ch.Name] {
			return goerr.New("duplicate chart name", goerr.V("name", ch.Name))
		}
		seen[ch.Name] = true
		if _, err := types.ParseGranularity(ch.Granularity); err != nil {
			return goerr.Wrap(err, "invalid granularity", goerr.V("name", ch.Name))
		}
	}
	return nil
}

// Options converts the chart entry into aggregator options. Validate first.
func (s ChartSpec) Options() aggregator.Options {
	g, _ := types.ParseGranularity(s.Granularity)
	return aggregator.Options{
		Granularity: g,
		Categories:  s.Categories,
		Cumulative:  s.Cumulative,
		Field:       s.Field,
	}
}

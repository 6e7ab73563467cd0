package chart

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/sirupsen/logrus"
	"incident-crossfilter-go/internal/aggregator"
	"incident-crossfilter-go/internal/broadcaster"
	"incident-crossfilter-go/internal/config"
	"incident-crossfilter-go/internal/types"
)

// Set is the charts of one page, in configuration order.
type Set struct {
	charts []*Chart
	byName map[string]*Chart
}

// Build creates one chart per configured entry. Each chart gets its own
// aggregator and therefore its own copy of records.
func Build(records []types.Record, cfg config.ChartsConfig, r Renderer, log *logrus.Entry) (*Set, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	set := &Set{byName: map[string]*Chart{}}
	for _, cs := range cfg.Charts {
		opts := []Option{WithLogger(log)}
		if cs.Sample {
			opts = append(opts, WithSample())
		}
		c, err := New(cs.Name, aggregator.New(records, cs.Options()), r, opts...)
		if err != nil {
			return nil, err
		}
		set.charts = append(set.charts, c)
		set.byName[c.Name()] = c
	}
	return set, nil
}

// Attach attaches every chart to b. On failure the charts attached so far
// are detached again.
func (s *Set) Attach(b *broadcaster.Broadcaster) error {
	for i, c := range s.charts {
		if err := c.Attach(b); err != nil {
			for _, done := range s.charts[:i+1] {
				done.Detach()
			}
			return goerr.Wrap(err, "attach charts")
		}
	}
	return nil
}

func (s *Set) Detach() {
	for _, c := range s.charts {
		c.Detach()
	}
}

func (s *Set) Get(name string) (*Chart, bool) {
	c, ok := s.byName[name]
	return c, ok
}

func (s *Set) Names() []string {
	out := make([]string, 0, len(s.charts))
	for _, c := range s.charts {
		out = append(out, c.Name())
	}
	return out
}

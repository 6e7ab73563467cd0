// Package chart wires aggregators to a broadcaster and to their renderers.
package chart

import (
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sirupsen/logrus"
	"incident-crossfilter-go/internal/aggregator"
	"incident-crossfilter-go/internal/broadcaster"
	"incident-crossfilter-go/internal/types"
)

// Renderer draws a view. It must accept an empty series.
type Renderer interface {
	Render(v types.View) error
}

type State int

const (
	Unfiltered State = iota
	Filtered
)

func (s State) String() string {
	if s == Filtered {
		return "filtered"
	}
	return "unfiltered"
}

// Chart is one aggregator feeding one renderer.
type Chart struct {
	name     string
	agg      *aggregator.Aggregator
	renderer Renderer
	sample   bool
	log      *logrus.Entry

	mu    sync.Mutex // guards state
	state State

	attach sync.Mutex // guards cancel
	cancel func()
}

type Option func(*Chart)

// WithSample attaches a stable representative record to every view.
func WithSample() Option {
	return func(c *Chart) { c.sample = true }
}

func WithLogger(l *logrus.Entry) Option {
	return func(c *Chart) { c.log = l }
}

func New(name string, agg *aggregator.Aggregator, r Renderer, opts ...Option) (*Chart, error) {
	if name == "" {
		return nil, goerr.New("chart name is empty")
	}
	if agg == nil || r == nil {
		return nil, goerr.New("chart needs an aggregator and a renderer", goerr.V("chart", name))
	}
	c := &Chart{name: name, agg: agg, renderer: r}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = logrus.NewEntry(logrus.StandardLogger())
	}
	c.log = c.log.WithField("chart", name)
	return c, nil
}

func (c *Chart) Name() string { return c.name }

func (c *Chart) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attach registers the chart with b and renders b's current range before any
// later SetRange reaches it. A chart is attached to at most one broadcaster.
// A failing first render is logged, the registration stays.
func (c *Chart) Attach(b *broadcaster.Broadcaster) error {
	c.attach.Lock()
	defer c.attach.Unlock()
	if c.cancel != nil {
		return goerr.New("chart already attached", goerr.V("chart", c.name))
	}
	cancel, err := b.SubscribeAndNotify(c)
	if err != nil {
		return goerr.Wrap(err, "subscribe chart", goerr.V("chart", c.name))
	}
	c.cancel = cancel
	return nil
}

func (c *Chart) Detach() {
	c.attach.Lock()
	defer c.attach.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// OnDateRange recomputes the series for r and hands it to the renderer.
func (c *Chart) OnDateRange(r types.DateRange) error {
	res := c.agg.Run(r)
	view := types.View{
		Chart:  c.name,
		Range:  r,
		Series: res.Series,
		Subset: res.Subset,
	}
	if c.sample {
		if rec, ok := aggregator.Sample(res.Subset, c.name); ok {
			view.Sample = &rec
		}
	}

	c.mu.Lock()
	if r.Bounded {
		c.state = Filtered
	} else {
		c.state = Unfiltered
	}
	c.mu.Unlock()

	if err := c.renderer.Render(view); err != nil {
		return goerr.Wrap(err, "render chart", goerr.V("chart", c.name), goerr.V("range", r.String()))
	}
	c.log.WithFields(logrus.Fields{
		"range":   r.String(),
		"buckets": len(view.Series.Buckets),
	}).Debug("chart updated")
	return nil
}

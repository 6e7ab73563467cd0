// Package app assembles the broadcaster, charts, renderers and brush for one
// dataset.
package app

import (
	"github.com/m-mizutani/goerr/v2"
	"incident-crossfilter-go/internal/broadcaster"
	"incident-crossfilter-go/internal/chart"
	"incident-crossfilter-go/internal/config"
	"incident-crossfilter-go/internal/dataset"
	"incident-crossfilter-go/internal/gesture"
	"incident-crossfilter-go/internal/logger"
	"incident-crossfilter-go/internal/render"
	"incident-crossfilter-go/internal/types"
)

type App struct {
	Broadcaster *broadcaster.Broadcaster
	Charts      *chart.Set
	Snapshot    *render.Snapshot
	Brush       *gesture.Brush
	Summary     dataset.Summary
}

type Options struct {
	Charts     config.ChartsConfig
	BrushMode  gesture.Mode
	BrushWidth float64
	Logger     *logger.Logger
}

// New wires every chart to one broadcaster. The brush spans the dataset's
// date extent and is nil when no record has a date.
func New(records []types.Record, opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = logger.New()
	}
	if opts.BrushWidth <= 0 {
		opts.BrushWidth = 1000
	}

	a := &App{
		Broadcaster: broadcaster.New(broadcaster.WithLogger(log.Component("broadcaster"))),
		Snapshot:    render.NewSnapshot(),
		Summary:     dataset.Summarize(records, log.Component("dataset")),
	}

	out := render.Multi{a.Snapshot, render.NewLog(log.Component("render"))}
	set, err := chart.Build(records, opts.Charts, out, log.Component("chart"))
	if err != nil {
		return nil, goerr.Wrap(err, "build charts")
	}
	if err := set.Attach(a.Broadcaster); err != nil {
		return nil, err
	}
	a.Charts = set

	if first, last, ok := a.Summary.Extent(); ok {
		brush, err := gesture.NewBrush(first, last, opts.BrushWidth, opts.BrushMode, a.Broadcaster)
		if err != nil {
			set.Detach()
			return nil, goerr.Wrap(err, "build brush")
		}
		a.Brush = brush
	}
	return a, nil
}

// Close detaches every chart from the broadcaster.
func (a *App) Close() {
	a.Charts.Detach()
}

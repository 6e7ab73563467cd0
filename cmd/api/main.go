package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/cobra"
	"incident-crossfilter-go/internal/app"
	"incident-crossfilter-go/internal/config"
	"incident-crossfilter-go/internal/dataset"
	"incident-crossfilter-go/internal/logger"
	"incident-crossfilter-go/internal/render"
	"incident-crossfilter-go/internal/server"
	"incident-crossfilter-go/internal/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "crossfilter",
		Short: "Date-range cross-filtering over an incident dataset",
		Long:  "Loads an incident dataset once and keeps every chart's series in sync with one shared date range.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logLevel != "" {
				os.Setenv("LOG_LEVEL", logLevel)
			}
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	root.AddCommand(newServeCmd(), newAggregateCmd(), newExportCmd())
	return root
}

// setup loads config and the dataset and wires the charts.
func setup(ctx context.Context) (config.Config, *app.App, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, nil, err
	}
	log := logger.New()
	log.WithField("service", "incident-crossfilter-go").Info("starting")

	if cfg.DatasetURL != "" {
		log.WithField("dataset_url", cfg.DatasetURL).Info("fetching dataset")
		if err := dataset.Fetch(ctx, cfg.DatasetURL, cfg.DatasetPath, 2*time.Minute); err != nil {
			return cfg, nil, log, err
		}
	}

	log.WithField("dataset_path", cfg.DatasetPath).Info("loading dataset")
	records, err := dataset.Load(cfg.DatasetPath)
	if err != nil {
		return cfg, nil, log, err
	}

	charts, err := config.LoadCharts(cfg.ChartsPath)
	if err != nil {
		return cfg, nil, log, err
	}

	a, err := app.New(records, app.Options{
		Charts:     charts,
		BrushMode:  cfg.BrushMode,
		BrushWidth: cfg.BrushWidth,
		Logger:     log,
	})
	if err != nil {
		return cfg, nil, log, err
	}
	log.WithField("records", a.Summary.TotalRecords).WithField("charts", a.Charts.Names()).Info("charts attached")
	return cfg, a, log, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the range filter and chart views over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, a, log, err := setup(ctx)
			if err != nil {
				if log != nil {
					log.WithError(err).Error("setup failed")
				}
				return err
			}
			defer a.Close()

			h, err := server.New(server.Deps{
				Broadcaster: a.Broadcaster,
				Charts:      a.Charts,
				Snapshot:    a.Snapshot,
				Brush:       a.Brush,
				Summary:     a.Summary,
				Logger:      log,
			})
			if err != nil {
				return err
			}

			addr := fmt.Sprintf(":%s", cfg.Port)
			srv := &http.Server{
				Addr:         addr,
				Handler:      h,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  120 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			log.WithField("addr", addr).Info("listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("server terminated")
				return err
			}
			return nil
		},
	}
}

// rangeFlags parses --from/--to; both empty means unbounded.
func rangeFlags(from, to string) (types.DateRange, error) {
	if from == "" && to == "" {
		return types.Unbounded(), nil
	}
	start, end := dataset.ParseDate(from), dataset.ParseDate(to)
	if start.IsZero() || end.IsZero() {
		return types.DateRange{}, goerr.New("--from and --to must both be dates", goerr.V("from", from), goerr.V("to", to))
	}
	return types.NewRange(start, end), nil
}

func newAggregateCmd() *cobra.Command {
	var from, to, name string

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Print the series of every chart (or one) for a date range as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := rangeFlags(from, to)
			if err != nil {
				return err
			}
			_, a, _, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			a.Broadcaster.SetRange(rng)

			views := a.Snapshot.All()
			if name != "" {
				v, ok := a.Snapshot.Latest(name)
				if !ok {
					return goerr.New("unknown chart", goerr.V("chart", name))
				}
				views = []types.View{v}
			}
			for i := range views {
				views[i].Subset = nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(views)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "range start date")
	cmd.Flags().StringVar(&to, "to", "", "range end date")
	cmd.Flags().StringVar(&name, "chart", "", "only print this chart")
	return cmd
}

func newExportCmd() *cobra.Command {
	var from, to, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every chart's series for a date range to an xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := rangeFlags(from, to)
			if err != nil {
				return err
			}
			_, a, log, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			a.Broadcaster.SetRange(rng)

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := render.WriteWorkbook(f, a.Snapshot.All()); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			log.WithField("out", out).Info("workbook written")
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "range start date")
	cmd.Flags().StringVar(&to, "to", "", "range end date")
	cmd.Flags().StringVarP(&out, "out", "o", "charts.xlsx", "output workbook")
	return cmd
}

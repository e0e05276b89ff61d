package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"sessionq/internal/cli"
	"sessionq/internal/config"
	"sessionq/internal/logging"
	"sessionq/internal/report"
	"sessionq/internal/runner"
	"sessionq/internal/session"
	"sessionq/internal/stats"
	"sessionq/internal/storage"
	"sessionq/internal/tracing"
	"sessionq/internal/tui/app"
)

var runCmd = &cobra.Command{
	Use:          "run",
	Short:        "Run sessions and report their bandwidth (default command)",
	SilenceUsage: true,
	RunE:         runE,
}

func runE(cmd *cobra.Command, args []string) error {
	bindRunFlags(cmd)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var logFile *os.File
	if useTUI {
		// the terminal belongs to the TUI
		logFile, err = logging.OpenFile("sessionq.log")
		if err != nil {
			return err
		}
		defer logFile.Close()
	}
	if err := logging.Setup(cfg.LogLevel, cfg.Debug, nil); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if traceOut {
		tp, err := tracing.Install("sessionq", Version, nil)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("trace flush failed")
			}
		}()
	}

	if metricsAddr != "" {
		srv := serveMetrics(metricsAddr)
		defer srv.Close()
	}

	runID := uuid.NewString()
	var done app.DoneMsg
	if useTUI {
		done, err = app.Run(ctx, cfg, runID, func(ctx context.Context, onProgress runner.ProgressFunc, onOutcome runner.OutcomeFunc) (app.DoneMsg, error) {
			return execute(ctx, cfg, runID, onProgress, onOutcome)
		})
	} else {
		done, err = runHeadless(ctx, cfg, runID)
	}

	saveHistory(cfg, done.Report)
	if errors.Is(err, context.Canceled) {
		// an interrupted run still produced its report
		return nil
	}
	return err
}

// execute runs every session, builds the report and exports it when an
// output prefix is configured. The report is returned even when the run
// was cancelled.
func execute(ctx context.Context, cfg config.Config, runID string, onProgress runner.ProgressFunc, onOutcome runner.OutcomeFunc) (app.DoneMsg, error) {
	agg := stats.NewAggregator()
	var outcomes []runner.Outcome

	if cfg.UserAgent == "" {
		cfg.UserAgent = "sessionq/" + Version
	}
	var execOpts []session.ExecutorOption
	if proxy, err := cfg.ProxyURL(); err == nil && proxy != nil {
		execOpts = append(execOpts, session.WithProxy(proxy))
	}
	r := runner.NewRunner(cfg, session.NewExecutor(runID, execOpts...),
		runner.WithAggregator(agg),
		runner.WithProgress(onProgress),
		runner.WithOutcome(func(o runner.Outcome) {
			outcomes = append(outcomes, o)
			if onOutcome != nil {
				onOutcome(o)
			}
		}),
		runner.WithLogger(log.WithFields(log.Fields{"component": "runner", "run": runID})),
	)

	progress, runErr := r.Run(ctx)
	done := app.DoneMsg{Report: report.Build(runID, cfg, progress, agg)}

	if cfg.OutPrefix != "" {
		paths, err := report.Export(cfg.OutPrefix, done.Report, outcomes)
		if err != nil {
			log.WithError(err).Error("report export failed")
		}
		done.Exported = paths
	}
	return done, runErr
}

func runHeadless(ctx context.Context, cfg config.Config, runID string) (app.DoneMsg, error) {
	printer := cli.NewPrinter(os.Stdout)
	printer.Header(cfg, runID)

	done, err := execute(ctx, cfg, runID, printer.Progress, printer.Outcome)
	printer.Finish(done.Report.Progress, err)
	fmt.Println(report.Render(done.Report))
	printer.Exported(done.Exported)
	return done, err
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server failed")
		}
	}()
	log.WithField("addr", addr).Info("serving metrics")
	return srv
}

func saveHistory(cfg config.Config, r report.Report) {
	if r.RunID == "" {
		return
	}
	store, err := openHistory(cfg.HistoryPath)
	if err != nil {
		log.WithError(err).Warn("run history unavailable")
		return
	}
	defer store.Close()

	if err := store.Save(storage.NewHistoryItem(r, cfg)); err != nil {
		log.WithError(err).Warn("saving run history failed")
	}
}

func openHistory(path string) (*storage.Store, error) {
	if path == "" {
		var err error
		path, err = storage.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return storage.Open(path)
}

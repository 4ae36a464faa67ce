package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/GoSim-25-26J-441/spectra-core/internal/catalog"
	"github.com/GoSim-25-26J-441/spectra-core/internal/driver"
	"github.com/GoSim-25-26J-441/spectra-core/internal/engine"
	"github.com/GoSim-25-26J-441/spectra-core/internal/engine/mcml"
	"github.com/GoSim-25-26J-441/spectra-core/internal/metrics"
	"github.com/GoSim-25-26J-441/spectra-core/internal/policy"
	"github.com/GoSim-25-26J-441/spectra-core/internal/sampler"
	"github.com/GoSim-25-26J-441/spectra-core/internal/status"
	"github.com/GoSim-25-26J-441/spectra-core/internal/store"
	"github.com/GoSim-25-26J-441/spectra-core/internal/telemetry"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/config"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/logger"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/utils"
	"google.golang.org/grpc"
)

// Exit codes
const (
	exitOK         = 0
	exitOther      = 1
	exitConfig     = 2
	exitSimulation = 3
	exitIO         = 4
)

// now is the wall clock behind the reported elapsed time
var now = time.Now

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("spectragen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var configPath string
	var logLevel string
	var listRuns bool
	var limit int
	fs.StringVar(&configPath, "config", "configs/spectragen.yaml", "path to the generation config")
	fs.StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	fs.BoolVar(&listRuns, "list-runs", false, "print the most recent catalogued runs and exit")
	fs.IntVar(&limit, "limit", 20, "number of runs printed by -list-runs")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitConfig
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.SetDefault(logger.New(logger.FormatText, "info", stderr))
		logger.Error("failed to load config", "path", configPath, "error", err)
		return exitCode(err)
	}
	if logLevel != "" {
		if _, ok := logger.ParseLevel(logLevel); !ok {
			fmt.Fprintf(stderr, "invalid -log-level %q\n", logLevel)
			return exitConfig
		}
		cfg.LogLevel = logLevel
	}
	logger.SetDefault(logger.New(cfg.LogFormat, cfg.LogLevel, stderr))

	if listRuns {
		err = printRuns(ctx, cfg, limit, stdout)
	} else {
		err = generate(ctx, cfg, stdout)
	}
	if err != nil {
		logger.Error("spectragen failed", "error", err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	var cfgErr *models.ConfigurationError
	var simErr *models.SimulationError
	var ioErr *models.IOError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &cfgErr):
		return exitConfig
	case errors.As(err, &simErr):
		return exitSimulation
	case errors.As(err, &ioErr):
		return exitIO
	default:
		return exitOther
	}
}

func generate(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("trace flush failed", "error", err)
		}
	}()

	// Fail before any simulation when the results cannot be stored
	st := store.New(&cfg.Output)
	if err := st.Check(); err != nil {
		return err
	}

	tmpl, err := mcml.LoadTemplate(cfg.Engine.Template)
	if err != nil {
		return err
	}
	mc, err := mcml.New(&cfg.Engine, tmpl)
	if err != nil {
		return err
	}
	timeout, err := cfg.GetCallTimeout()
	if err != nil {
		return models.NewConfigurationError("call_timeout", "%v", err)
	}
	eng := engine.Wrap(mc, timeout, policy.FromConfig(cfg))

	src := utils.NewRandSource(cfg.Seed)
	smp, err := sampler.New(cfg.Ranges, src)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	health := status.NewHealth()
	drv, err := driver.New(driver.OptionsFromConfig(cfg, src.Seed()), eng, smp,
		driver.NewLogObserver(logger.Default),
		metrics.NewObserver(collector),
		health,
	)
	if err != nil {
		return err
	}

	stopServers, err := startStatus(ctx, cfg.Status, drv.RunManager(), collector, health)
	if err != nil {
		return err
	}
	defer stopServers()

	logger.Info("starting generation",
		"simulations", cfg.Simulations,
		"wavelengths", len(cfg.Wavelengths),
		"photons", cfg.Photons,
		"workers", cfg.Workers,
		"seed", src.Seed(),
		"failure_policy", cfg.FailurePolicy,
	)

	started := now()
	res, err := drv.Run(ctx)
	if err != nil {
		notify(ctx, cfg.Status, drv.RunManager().GetRun(), nil, collector)
		return err
	}

	arts, err := st.Save(res.Dataset)
	if err != nil {
		return err
	}
	elapsed := now().Sub(started)
	notify(ctx, cfg.Status, drv.RunManager().GetRun(), arts, collector)
	runLog := logger.ForRun(res.RunID)
	runLog.Info("results saved",
		"reflectances", arts.Reflectances,
		"parameters", arts.Parameters,
	)

	if cfg.Output.Catalog != "" {
		if err := recordRun(ctx, cfg, res, arts, elapsed); err != nil {
			runLog.Warn("failed to catalogue run", "error", err)
		}
	}

	m := metrics.Summarize(collector)
	runLog.Info("generation completed",
		"elapsed", elapsed,
		"failed_cells", res.FailedCells,
		"engine_calls", m.Calls,
		"latency_p95_ms", m.LatencyP95,
	)
	fmt.Fprintf(stdout, "Elapsed time: %s\n", utils.FormatElapsed(elapsed))
	return nil
}

// notify posts the final run state to the configured callback. Failures
// are logged and do not change the exit status.
func notify(ctx context.Context, cfg config.Status, run models.RunSummary, arts *store.Artifacts, collector *metrics.Collector) {
	if cfg.CallbackURL == "" {
		return
	}
	payload := status.NewPayload(run)
	payload.Metrics = metrics.Summarize(collector)
	if arts != nil {
		payload.Reflectances = arts.Reflectances
		payload.Parameters = arts.Parameters
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	if err := status.NewNotifier(cfg.CallbackURL, cfg.CallbackSecret).Notify(notifyCtx, payload); err != nil {
		logger.Warn("run notification failed", "run_id", run.ID, "error", err)
	}
}

func recordRun(ctx context.Context, cfg *config.Config, res *driver.Result, arts *store.Artifacts, elapsed time.Duration) error {
	cat, err := catalog.Open(ctx, cfg.Output.Catalog)
	if err != nil {
		return err
	}
	defer cat.Close()

	return cat.Record(ctx, catalog.Entry{
		RunID:        res.RunID,
		Stamp:        arts.Stamp,
		Reflectances: arts.Reflectances,
		Parameters:   arts.Parameters,
		Format:       cfg.Output.Format,
		Simulations:  res.Dataset.Rows(),
		Wavelengths:  res.Dataset.Wavelengths,
		Seed:         res.Seed,
		FailedCells:  res.FailedCells,
		Elapsed:      elapsed,
		CreatedAt:    res.StartTime,
	})
}

func printRuns(ctx context.Context, cfg *config.Config, limit int, stdout io.Writer) error {
	if cfg.Output.Catalog == "" {
		return models.NewConfigurationError("output.catalog", "no catalog configured")
	}
	cat, err := catalog.Open(ctx, cfg.Output.Catalog)
	if err != nil {
		return &models.IOError{Op: "open catalog", Path: cfg.Output.Catalog, Err: err}
	}
	defer cat.Close()

	entries, err := cat.List(ctx, limit)
	if err != nil {
		return &models.IOError{Op: "list catalog", Path: cfg.Output.Catalog, Err: err}
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTAMP\tSIMULATIONS\tWAVELENGTHS\tSEED\tFAILED\tELAPSED\tREFLECTANCES")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			e.RunID, e.Stamp, e.Simulations, len(e.Wavelengths), e.Seed, e.FailedCells,
			utils.FormatElapsed(e.Elapsed), e.Reflectances)
	}
	return tw.Flush()
}

// startStatus starts the optional HTTP and gRPC status servers and returns
// a function that stops them.
func startStatus(ctx context.Context, cfg config.Status, runs *driver.RunManager, collector *metrics.Collector, health *status.Health) (func(), error) {
	var stops []func()
	stopAll := func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}

	if cfg.GRPCAddr != "" {
		grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return stopAll, &models.IOError{Op: "listen grpc", Path: cfg.GRPCAddr, Err: err}
		}
		grpcServer := grpc.NewServer()
		health.Register(grpcServer)
		go func() {
			logger.Info("gRPC health server listening", "addr", grpcLis.Addr().String())
			if err := grpcServer.Serve(grpcLis); err != nil {
				logger.Error("gRPC server error", "error", err)
			}
		}()
		stops = append(stops, func() {
			health.Shutdown()
			grpcServer.GracefulStop()
		})
	}

	if cfg.HTTPAddr != "" {
		httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			stopAll()
			return func() {}, &models.IOError{Op: "listen http", Path: cfg.HTTPAddr, Err: err}
		}
		summarize := func() *models.RunMetrics { return metrics.Summarize(collector) }
		httpSrv := status.NewServer(cfg.HTTPAddr, status.NewHTTPServer(runs, summarize).WithTimeSeries(collector).Handler())
		go func() {
			logger.Info("HTTP status server listening", "addr", httpLis.Addr().String())
			if err := httpSrv.Serve(httpLis); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "error", err)
			}
		}()
		stops = append(stops, func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP shutdown error", "error", err)
			}
		})
	}

	return stopAll, nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	wastecarbonpredictor "github.com/superdango/waste-carbon-predictor"
	"github.com/superdango/waste-carbon-predictor/estimator"
	"github.com/superdango/waste-carbon-predictor/internal/demo"
	"github.com/superdango/waste-carbon-predictor/model/breakdown"
	"github.com/superdango/waste-carbon-predictor/model/factors"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flagEstimatorEndpoint := ""
	flagFactorsFile := ""
	flagTransportEnabled := ""
	flagDemoEnabled := ""
	flagCacheTTL := time.Duration(0)
	flagListen := ""
	flagLogLevel := ""
	flagLogFormat := ""

	flag.StringVar(&flagEstimatorEndpoint, "estimator.endpoint", "", "model serving endpoint (e.g. http://localhost:8501)")
	flag.StringVar(&flagFactorsFile, "factors.file", "", "yaml emission factor table overriding the embedded defaults")
	flag.StringVar(&flagTransportEnabled, "transport.enabled", "false", "include transport emissions in the gas breakdown")
	flag.StringVar(&flagDemoEnabled, "demo.enabled", "false", "use a fictive in-process estimator")
	flag.DurationVar(&flagCacheTTL, "cache.ttl", time.Minute, "estimator total cache duration, 0 disables caching")
	flag.StringVar(&flagListen, "listen", "0.0.0.0:2923", "addr to listen to")
	flag.StringVar(&flagLogLevel, "log.level", "info", "log severity (debug, info, warn, error)")
	flag.StringVar(&flagLogFormat, "log.format", "text", "log format (text, json)")

	flag.Parse()

	initLogging(flagLogLevel, flagLogFormat)

	table := factors.NewTable()
	if flagFactorsFile != "" {
		var err error
		table, err = factors.LoadTable(flagFactorsFile)
		if err != nil {
			slog.Error("failed to load factor table", "file", flagFactorsFile, "err", err)
			os.Exit(1)
		}
		slog.Info("loaded emission factor table", "file", flagFactorsFile)
	}

	calculatorOpts := []breakdown.CalculatorOption{}
	if flagTransportEnabled == "true" {
		calculatorOpts = append(calculatorOpts, breakdown.WithTransport())
	}

	predictorOpts := []wastecarbonpredictor.PredictorOption{
		wastecarbonpredictor.WithCalculator(breakdown.NewCalculator(table, calculatorOpts...)),
	}

	switch {
	case flagDemoEnabled == "true":
		predictorOpts = append(predictorOpts, wastecarbonpredictor.WithEstimator(demo.NewEstimator()))
	case flagEstimatorEndpoint != "":
		predictorOpts = append(predictorOpts, wastecarbonpredictor.WithEstimator(estimator.NewClient(flagEstimatorEndpoint)))
	default:
		slog.Error("estimator endpoint is not set")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if flagCacheTTL > 0 {
		predictorOpts = append(predictorOpts, wastecarbonpredictor.WithTotalsCache(ctx, flagCacheTTL))
	}

	predictor := wastecarbonpredictor.NewPredictor(predictorOpts...)

	mux := http.NewServeMux()
	mux.Handle("/predict", wastecarbonpredictor.NewPredictHandler(predictor, table))

	server := &http.Server{Addr: flagListen, Handler: mux}

	errg, errgctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		slog.Info("starting waste carbon predictor", "listen", flagListen)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	errg.Go(func() error {
		<-errgctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := errg.Wait(); err != nil {
		slog.Error("failed to run waste carbon predictor", "err", err)
		os.Exit(1)
	}
}

func initLogging(logLevel string, logFormat string) {
	switch logFormat {
	case "text":
		slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:   slogLevel(logLevel),
			NoColor: !isatty.IsTerminal(os.Stdout.Fd()),
		})))
	case "json":
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slogLevel(logLevel),
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				switch a.Key {
				case slog.LevelKey:
					a.Key = "severity"
					return a
				case slog.MessageKey:
					a.Key = "message"
					return a
				default:
					return a
				}
			},
		})))
	}
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	return slog.LevelInfo
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"vibration-diag/internal/cfg"
	"vibration-diag/internal/metrics"
	"vibration-diag/internal/pipeline"
	"vibration-diag/internal/report"
	sig "vibration-diag/internal/signal"
	"vibration-diag/internal/storage"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		dataPath   = flag.String("data", "", "Directory with one sub-directory of signal files per class (overrides config)")
		outputPath = flag.String("output", "", "Output directory for reports and the model (overrides config)")
		target     = flag.Int("target", -1, "Number of indicators kept by feature selection (overrides config)")
		criterion  = flag.String("criterion", "", "Feature selection criterion: variance or fisher (overrides config)")
		epochs     = flag.Int("epochs", 0, "Training epochs (overrides config)")
		seed       = flag.Int64("seed", 0, "Weight initialisation seed, 0 keeps the configured value")
		logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		predict    = flag.String("predict", "", "Comma-separated signal files, directories or URLs to classify with a saved model instead of training")
		modelPath  = flag.String("model", "", "Model file used by -predict (default <output>/model.json)")
		serve      = flag.Bool("serve", false, "Keep serving metrics after the run until interrupted")
		cacheStats = flag.Bool("cache-stats", false, "Print cached indicator records per class and exit")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	settings, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if *dataPath != "" {
		settings.DataPath = *dataPath
	}
	if *outputPath != "" {
		settings.OutputPath = *outputPath
	}
	if *target >= 0 {
		settings.TargetWidth = *target
	}
	if *criterion != "" {
		settings.Criterion = *criterion
	}
	if *epochs > 0 {
		settings.Epochs = *epochs
	}
	if *seed != 0 {
		settings.Seed = *seed
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigChan:
			log.Info().Msg("Shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()

	if *cacheStats {
		store := initializeStorage(settings)
		if store == nil {
			log.Fatal().Msg("Cache statistics need CACHE_PATH")
		}
		defer store.Close()
		if err := printCacheStats(os.Stdout, store, settings.DataPath); err != nil {
			log.Fatal().Err(err).Msg("Failed to read cache")
		}
		return
	}

	if *predict != "" {
		path := *modelPath
		if path == "" {
			path = filepath.Join(settings.OutputPath, report.ModelFile)
		}
		if err := classify(ctx, settings, path, strings.Split(*predict, ",")); err != nil {
			log.Fatal().Err(err).Msg("Classification failed")
		}
		return
	}

	m := metrics.New()
	if settings.MetricsPort > 0 {
		startMetricsServer(ctx, settings)
	}

	store := initializeStorage(settings)
	deps := pipeline.Deps{Metrics: metrics.NewWrapper(m)}
	if store != nil {
		defer store.Close()
		deps.Cache = store
	}

	result, err := pipeline.Run(ctx, settings, deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Diagnosis run failed")
	}

	if err := report.NewReporter(result, settings.OutputPath).GenerateReport(); err != nil {
		log.Fatal().Err(err).Msg("Failed to write reports")
	}

	fmt.Printf("Selected features: %s\n", strings.Join(result.SelectedFeatures, ", "))
	if result.Test != nil {
		fmt.Printf("Test accuracy: %.2f%% (%d/%d)\n", result.Test.Accuracy*100, result.Test.Correct, result.Test.Total)
	}
	fmt.Printf("Reports written to %s\n", settings.OutputPath)

	if *serve && settings.MetricsPort > 0 {
		log.Info().Int("port", settings.MetricsPort).Msg("Serving metrics until interrupted")
		<-ctx.Done()
	}
}

func classify(ctx context.Context, settings cfg.Settings, modelPath string, locations []string) error {
	source := &sig.Router{
		File:   sig.NewCSVSource(settings.Column, settings.Separator),
		Remote: sig.NewHTTPSource(settings.Column, settings.Separator, settings.HTTPTimeout),
	}
	classifier, err := pipeline.LoadClassifier(modelPath, source)
	if err != nil {
		return err
	}

	locations, err = pipeline.ExpandLocations(locations)
	if err != nil {
		return err
	}
	for _, location := range locations {
		d, err := classifier.Classify(ctx, location)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\t%v\n", d.Location, d.Class, d.Outputs)
	}
	return nil
}

// printCacheStats writes one line per class under dataPath with the number
// of cached records and the number of signal files on disk.
func printCacheStats(w io.Writer, store *storage.Store, dataPath string) error {
	classes, err := sig.Discover(dataPath, 0)
	if err != nil {
		return err
	}
	for _, class := range classes {
		records, err := store.ClassRecords(class.Name)
		if err != nil {
			return fmt.Errorf("cache records for %s: %w", class.Name, err)
		}
		fmt.Fprintf(w, "%s\t%d cached\t%d files\n", class.Name, len(records), len(class.Paths))
	}
	return nil
}

// initializeStorage opens the indicator cache if CACHE_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.CachePath == "" {
		return nil
	}
	store, err := storage.New(c.CachePath)
	if err != nil {
		log.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		return nil
	}
	return store
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(ctx context.Context, c cfg.Settings) {
	go func() {
		mux := http.NewServeMux()

		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", c.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := server.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		log.Info().Int("port", c.MetricsPort).Msg("Metrics server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

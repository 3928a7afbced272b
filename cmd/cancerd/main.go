package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cancer-detect/internal/cfg"
	"cancer-detect/internal/common"
	"cancer-detect/internal/dataset"
	"cancer-detect/internal/logging"
	"cancer-detect/internal/metrics"
	"cancer-detect/internal/ml"
	"cancer-detect/internal/server"
	"cancer-detect/internal/storage"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	closer := logging.Setup(c.Log)
	defer closer.Close()

	if err := run(c); err != nil {
		log.Error().Err(err).Msg("service stopped with error")
		closer.Close()
		os.Exit(1)
	}
}

func run(c cfg.Settings) error {
	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	store, err := storage.New(c.DataPath, common.ModelsDBFile)
	if err != nil {
		return err
	}
	defer store.Close()

	loader := dataset.NewLoader(dataset.LoaderConfig{
		Path:     c.DatasetPath,
		URL:      c.DatasetURL,
		Download: c.DatasetDownload,
		Timeout:  c.DownloadTimeout,
	})
	trainer := ml.NewTrainer(ml.TrainerConfig{
		TestSize: c.TestSize,
		Seed:     c.SplitSeed,
		C:        c.RegC,
		MaxIter:  c.MaxIter,
	}, loader, mw)
	predictor := ml.NewPredictor(ml.PredictorConfig{
		NumFeatures: common.FeatureCount,
		CacheSize:   c.CacheSize,
		CacheTTL:    c.CacheTTL,
	}, mw)
	manager := ml.NewManager(trainer, ml.NewModelManager(store), predictor)

	log.Info().
		Str("data_path", c.DataPath).
		Str("dataset", c.DatasetPath).
		Bool("retrain", c.RetrainOnStart).
		Msg("Loading breast cancer detection model")
	if err := manager.Bootstrap(ctx, c.RetrainOnStart); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		// The API still answers health checks and 503s predictions until a
		// retrain succeeds.
		log.Error().Err(err).Msg("no model available at startup")
	}

	srv := server.New(server.Config{
		Addr:           c.Addr(),
		StaticDir:      c.StaticDir,
		CORSOrigins:    c.CORSOrigins,
		RequestTimeout: c.RequestTimeout,
	}, predictor, manager, mw)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("Shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

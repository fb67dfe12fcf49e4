package cmd

import (
	"context"
	goerrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	cartStore "github.com/Alturino/shopbot/cart/store"
	"github.com/Alturino/shopbot/internal/config"
	"github.com/Alturino/shopbot/internal/infra"
	"github.com/Alturino/shopbot/internal/log"
	inOtel "github.com/Alturino/shopbot/internal/otel"
	productStore "github.com/Alturino/shopbot/product/store"
)

// runWorker hosts the background half of the system: catalog schema
// migrations at boot, the cart reaper loop, and the prometheus endpoint.
// Webhook/payment transports run in their own processes.
func runWorker(c context.Context) {
	cfg := config.InitConfig(c, "worker")

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "main runWorker").
		Logger()
	c = logger.WithContext(c)

	logger = logger.With().Str(log.KeyProcess, "initializing otel sdk").Logger()
	logger.Info().Msg("initializing otel sdk")
	shutdownFuncs, err := inOtel.InitOtelSdk(c, fmt.Sprintf("%s:%d", cfg.Otel.Host, cfg.Otel.Port))
	if err != nil {
		err = fmt.Errorf("failed initializing otel sdk with error=%w", err)
		logger.Fatal().Err(err).Msg(err.Error())
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, shutdown := range shutdownFuncs {
			if err := shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("failed shutting down otel sdk")
			}
		}
	}()
	logger.Info().Msg("initialized otel sdk")

	// Connecting runs the catalog migrations as a side effect.
	pool := infra.NewDatabaseClient(c, cfg.Database)
	defer pool.Close()
	catalog := productStore.NewPostgresStore(pool)
	defer catalog.Close()

	cache := infra.NewCacheClient(c, cfg.Cache)
	carts := cartStore.NewRedisStore(cache, cartStore.Config{
		Ttl:      cfg.Cart.Ttl(),
		Currency: cfg.Cart.Currency(),
	})
	defer carts.Close()

	logger = logger.With().Str(log.KeyProcess, "serving metrics").Logger()
	logger.Info().Msgf("serving metrics at %s", cfg.Application.MetricAt)
	metricServer := &http.Server{
		Addr:              cfg.Application.MetricAt,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricServer.ListenAndServe(); err != nil && !goerrors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metric server stopped")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricServer.Shutdown(shutdownCtx)
	}()

	logger = logger.With().Str(log.KeyProcess, "running reaper").Logger()
	logger.Info().Msg("running cart reaper")
	reaper := cartStore.NewReaper(carts, cfg.Cart.ReapInterval())
	if err := reaper.Run(c); err != nil && !goerrors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("cart reaper stopped with error")
	}
	logger.Info().Msg("cart reaper stopped")
}

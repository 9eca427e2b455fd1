package app

import (
	"context"
	"net/http"
	"time"

	abb "github.com/iwtcode/abbAdapter"
	"github.com/iwtcode/abbAdapter/internal/adapters/handlers"
	"github.com/iwtcode/abbAdapter/internal/config"
	"github.com/iwtcode/abbAdapter/internal/interfaces"
	"github.com/iwtcode/abbAdapter/internal/middleware/logging"
	"github.com/prometheus/client_golang/prometheus"

	"go.uber.org/fx"
)

// New создает новый экземпляр fx.App
func New() *fx.App {
	return fx.New(
		ConfigModule,
		LoggingModule,
		ClientModule,
		HttpServerModule,
		// Запуск аппаратного интерфейса и цикла управления в фоне
		fx.Invoke(InvokeHardware),
	)
}

// --- Модули FX ---

var ConfigModule = fx.Module("config_module",
	fx.Provide(
		config.LoadConfiguration,
		abb.Load,
	),
)

func ProvideLogger(cfg *config.AppConfig) *logging.Logger {
	loggerCfg := &logging.Config{
		Enabled:    cfg.Logging.Enable,
		Level:      cfg.Logging.Level,
		LogsDir:    cfg.Logging.LogsDir,
		SavingDays: uint(cfg.Logging.SavingDays),
	}
	return logging.NewLogger(loggerCfg, "ABBAdapterApp")
}

var LoggingModule = fx.Module("logging_module",
	fx.Provide(ProvideLogger),
)

func ProvideClient(cfg *abb.Config, logger *logging.Logger) (*abb.Client, error) {
	return abb.New(cfg, abb.WithLogger(logger))
}

func ProvideStatusSource(c *abb.Client) interfaces.StatusSource {
	return c
}

func ProvideGatherer(c *abb.Client) prometheus.Gatherer {
	return c.Registry()
}

var ClientModule = fx.Module("client_module",
	fx.Provide(
		ProvideClient,
		ProvideStatusSource,
		ProvideGatherer,
	),
)

var HttpServerModule = fx.Module("http_server_module",
	fx.Provide(
		handlers.NewHandler,
		handlers.ProvideRouter,
	),
	fx.Invoke(InvokeHttpServer),
)

// InvokeHardware активирует аппаратный интерфейс и крутит цикл управления.
// Ошибка активации или цикла останавливает приложение.
func InvokeHardware(lc fx.Lifecycle, shutdowner fx.Shutdowner, client *abb.Client, cfg *config.AppConfig, logger *logging.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)

				if err := client.Start(ctx); err != nil {
					logger.Error("FATAL: Failed to start ABB hardware interface", "error", err)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
					return
				}
				if err := client.Run(ctx); err != nil {
					logger.Error("Control loop terminated", "error", err)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			logger.Info("Stopping control loop...")
			cancel()

			grace, stop := context.WithTimeout(stopCtx, cfg.ShutdownGrace)
			defer stop()
			select {
			case <-done:
			case <-grace.Done():
				logger.Warn("Control loop did not stop in time")
				return grace.Err()
			}
			return client.Close()
		},
	})
}

// InvokeHttpServer запускает HTTP-сервер.
func InvokeHttpServer(lc fx.Lifecycle, cfg *config.AppConfig, h http.Handler, logger *logging.Logger) {
	serverAddr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      h,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("HTTP Server is starting", "address", serverAddr)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("Failed to start server", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server...")
			return server.Shutdown(ctx)
		},
	})
}

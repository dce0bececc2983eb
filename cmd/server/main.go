package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"tripDeskWs/internal/config"
	"tripDeskWs/internal/modules/screens/application/handler"
	"tripDeskWs/internal/modules/screens/application/usecase"
	"tripDeskWs/internal/modules/screens/domain"
	"tripDeskWs/internal/modules/screens/infrastructure"
	transport "tripDeskWs/internal/modules/screens/interface"
	"tripDeskWs/internal/platform/broker"
	"tripDeskWs/internal/shared/auth"
	"tripDeskWs/internal/shared/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Attempt to load variables from .env so local runs honour configuration tweaks.
	if err := godotenv.Overload(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, ".env load warning: %v\n", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logFile, logger, err := logging.Setup(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: true,
		Directory: cfg.Logging.Directory,
	}, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup error: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	slog.SetDefault(logger)
	slog.Info("logging initialized", slog.String("directory", cfg.Logging.Directory), slog.String("level", cfg.Logging.Level), slog.String("format", cfg.Logging.Format))
	slog.Info("kafka config resolved", slog.Any("brokers", cfg.Kafka.Brokers), slog.String("group", cfg.Kafka.GroupID), slog.Any("topics", cfg.Kafka.Topics))

	validator, err := auth.NewJWTValidatorWithPublicKey(cfg.Security.JWTSecret, cfg.Security.JWTPublicKey)
	if err != nil {
		slog.Error("jwt validator setup failed", slog.Any("error", err))
		os.Exit(1)
	}
	if !validator.Verifies() {
		slog.Warn("no JWT_SECRET or JWT_PUBLIC_KEY configured; token signatures are not verified and admin screens are refused")
	}

	rest := infrastructure.NewRESTClient(cfg.REST.BaseURL, cfg.REST.Timeout, nil)
	api := infrastructure.NewAPIHTTPClient(rest, infrastructure.RetryPolicy{
		Attempts: cfg.REST.RetryAttempts,
		Delay:    cfg.REST.RetryDelay,
	})
	slog.Info("travel api configured", slog.String("baseUrl", rest.BaseURL()), slog.Duration("timeout", cfg.REST.Timeout), slog.Uint64("retryAttempts", uint64(cfg.REST.RetryAttempts)))

	catalog := domain.DefaultCatalog()
	sessions := usecase.NewSessionRegistry()
	openUC := usecase.NewOpenScreenUseCase(validator, catalog, api, sessions, usecase.ScreenOptions{
		PlaceholderURL: cfg.Images.PlaceholderURL,
		LoginPath:      cfg.Session.LoginPath,
		Logger:         logger,
	})

	hub := infrastructure.NewHub()
	registry := infrastructure.NewHandlerRegistry()

	// Registrar handlers de tópicos (cada entidad)
	for entity, topics := range cfg.Kafka.Topics {
		for _, topic := range topics {
			registry.Register(handler.NewEntityStreamHandler(entity, topic, cfg.Websocket.EventActions, hub, sessions))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumers := broker.StartKafkaConsumers(ctx, registry, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.AllTopics())

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetOutput(log.Writer())
	transport.RegisterRoutes(e, transport.RouteDeps{
		Hub:    hub,
		OpenUC: openUC,
		Websocket: transport.WebsocketOptions{
			SendBuffer:     cfg.Websocket.SendBuffer,
			CommandTimeout: cfg.Websocket.CommandTimeout,
			EventActions:   cfg.Websocket.EventActions,
		},
	})

	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped", slog.Any("error", err))
		}
	}()
	slog.Info("screens available", slog.Any("screens", screenNames(catalog)))

	// Esperar señales
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	slog.Info("shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	hub.Shutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown error", slog.Any("error", err))
	}
	consumers.Wait()
}

func screenNames(catalog *domain.Catalog) []string {
	screens := catalog.All()
	names := make([]string, 0, len(screens))
	for _, s := range screens {
		names = append(names, s.Name)
	}
	return names
}

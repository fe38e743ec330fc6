package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pandarelay/internal/http/handlers"
	httpapi "pandarelay/internal/http/httpapi"
	"pandarelay/internal/infra"
	"pandarelay/internal/providers/catalog"
	"pandarelay/internal/providers/image"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	if missing := cfg.MissingCredentials(); len(missing) > 0 {
		logger.Warn().Msgf("missing configuration: %s; affected endpoints will return errors", strings.Join(missing, ", "))
	}

	shop := catalog.NewClient(catalog.Options{
		StoreURL:       cfg.ShopifyStoreURL,
		AccessToken:    cfg.ShopifyAccessToken,
		APIVersion:     cfg.ShopifyAPIVersion,
		ProductLimit:   cfg.ShopifyProductLimit,
		RequestTimeout: cfg.ShopifyTimeout,
		Logger:         &logger,
	})
	fetcher := image.NewFetcher(image.FetcherOptions{
		Timeout: cfg.ImageDownloadTimeout,
		Logger:  &logger,
	})
	editor := image.NewEditor(image.Options{
		APIKey:       cfg.OpenAIAPIKey,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
		Model:        cfg.OpenAIImageModel,
		Size:         cfg.OpenAIImageSize,
		Timeout:      cfg.OpenAITimeout,
		Fetcher:      fetcher,
		Logger:       &logger,
	})

	app := handlers.NewApp(shop, editor, logger, cfg.LegacyErrorStatus)
	router := httpapi.NewRouter(app, []string{cfg.FrontendURL})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	// In-flight edits may take up to the OpenAI timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.OpenAITimeout+5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

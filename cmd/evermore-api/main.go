package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/evermore-app/evermore/backend/internal/binding"
	"github.com/evermore-app/evermore/backend/internal/config"
	"github.com/evermore-app/evermore/backend/internal/docstore"
	"github.com/evermore-app/evermore/backend/internal/invalidation"
	"github.com/evermore-app/evermore/backend/internal/logging"
	"github.com/evermore-app/evermore/backend/internal/offlinecache"
	"github.com/evermore-app/evermore/backend/internal/realtime"
	"github.com/evermore-app/evermore/backend/internal/requestcache"
	"github.com/evermore-app/evermore/backend/internal/restclient"
	"github.com/evermore-app/evermore/backend/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "evermore-api",
		Short: "Evermore wedding-event sync gateway",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("api-base-url", defaults.GetString("api.base_url"), "Upstream REST API base URL")
	cmd.PersistentFlags().String("firestore-project", defaults.GetString("firestore.project_id"), "Firestore project id (empty runs an in-memory store)")
	cmd.PersistentFlags().String("cache-path", defaults.GetString("cache.path"), "Offline cache SQLite path")
	cmd.PersistentFlags().String("token-path", defaults.GetString("auth.token_path"), "Bearer token file path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "api.base_url", "api-base-url")
	bindFlag(cmd, "firestore.project_id", "firestore-project")
	bindFlag(cmd, "cache.path", "cache-path")
	bindFlag(cmd, "auth.token_path", "token-path")
	bindFlag(cmd, "log.level", "log-level")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	offlineStore, err := offlinecache.OpenSQLiteStore(appConfig.CachePath, logger)
	if err != nil {
		return err
	}
	defer offlineStore.Close()

	offline := offlinecache.New(offlinecache.Config{Store: offlineStore, Logger: logger})
	requests := requestcache.New(requestcache.Config{})

	store, closeStore, err := openDocumentStore(ctx, appConfig, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	subscriptions, err := realtime.NewService(realtime.ServiceConfig{
		Store:  store,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer subscriptions.RemoveAllListeners()

	credentials, err := restclient.NewFileCredentialStore(appConfig.TokenPath, logger)
	if err != nil {
		return err
	}

	client, err := restclient.NewClient(restclient.Config{
		BaseURL:     appConfig.APIBaseURL,
		Credentials: credentials,
		Requests:    requests,
		Offline:     offline,
		Notifier: restclient.NotifierFunc(func(eventType, message string) {
			logger.Warn("api notification", zap.String("type", eventType), zap.String("message", message))
		}),
		Timeout:       time.Duration(appConfig.RequestTimeoutSeconds) * time.Second,
		UploadTimeout: time.Duration(appConfig.UploadTimeoutSeconds) * time.Second,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	bus := invalidation.New(invalidation.Config{
		Requests: requests,
		Offline:  offline,
		Logger:   logger,
	})

	binder, err := binding.NewBinder(binding.BinderConfig{
		Service: subscriptions,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Binder: binder,
		Client: client,
		Bus:    bus,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func openDocumentStore(ctx context.Context, appConfig config.AppConfig, logger *zap.Logger) (docstore.Store, func(), error) {
	if appConfig.FirestoreProjectID == "" {
		logger.Warn("no firestore project configured, using in-memory document store")
		return docstore.NewMemoryStore(), func() {}, nil
	}

	client, err := firestore.NewClient(ctx, appConfig.FirestoreProjectID)
	if err != nil {
		return nil, nil, err
	}
	store, err := docstore.NewFirestoreStore(client, logger)
	if err != nil {
		client.Close() //nolint:errcheck
		return nil, nil, err
	}
	closeStore := func() {
		client.Close() //nolint:errcheck
	}
	return store, closeStore, nil
}

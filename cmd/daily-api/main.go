package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/makudoku/backend/internal/auth"
	"github.com/makudoku/backend/internal/config"
	"github.com/makudoku/backend/internal/database"
	"github.com/makudoku/backend/internal/engine"
	"github.com/makudoku/backend/internal/generator"
	"github.com/makudoku/backend/internal/logging"
	"github.com/makudoku/backend/internal/puzzles"
	"github.com/makudoku/backend/internal/render"
	"github.com/makudoku/backend/internal/server"
	"github.com/makudoku/backend/internal/variant"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "daily-api",
		Short: "Daily variant-sudoku backend service",
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
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Int("clue-target", defaults.GetInt("generator.clue_target"), "Default clue target for generated puzzles")
	cmd.PersistentFlags().String("admin-secret", "", "Admin login secret (overrides env)")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "generator.clue_target", "clue-target")
	bindFlag(cmd, "admin.secret", "admin-secret")
	bindFlag(cmd, "admin.signing_secret", "signing-secret")
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

// renderSpecs builds the constraint list for a variant set and renders it.
func renderSpecs(puzzleText string, specs []variant.Spec) (string, error) {
	solver, err := engine.ForSpecs(specs)
	if err != nil {
		return "", err
	}
	return render.SVG(puzzleText, solver.Constraints(), render.Options{})
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

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		AdminSecret:   appConfig.AdminSecret,
		Issuer:        "daily-auth",
		Audience:      "daily-api",
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	puzzleService, err := puzzles.NewService(puzzles.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Renderer: renderSpecs,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	puzzleGenerator := generator.New(generator.Config{
		ClueTarget: appConfig.ClueTarget,
	}, logger)

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Puzzles:        puzzleService,
		Generator:      puzzleGenerator,
		Tokens:         tokenManager,
		Renderer:       renderSpecs,
		Clock:          time.Now,
		ClueTarget:     appConfig.ClueTarget,
		AllowedOrigins: appConfig.AllowedOrigins,
		Logger:         logger,
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
		shutdownTimeout := appConfig.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

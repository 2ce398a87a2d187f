package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	opaque "github.com/vivianlazaras/verdant"
	"github.com/vivianlazaras/verdant/internal/config"
	"github.com/vivianlazaras/verdant/internal/logger"
	"github.com/vivianlazaras/verdant/internal/metrics"
	"github.com/vivianlazaras/verdant/server"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "verdant-server",
	Short: "Verdant OPAQUE login server",
	Long: `verdant-server runs the OPAQUE registration/login HTTP surface:
it holds the server's ServerSetup, the registered-user store, in-flight
login sessions, and the bearer-token issuer.`,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "verdant-server.yaml", "path to the server config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a fresh ServerSetup and config file",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := &config.Config{
		Server: &config.ServerConfig{
			SetupPath:     "verdant-server-setup.json",
			UserStorePath: "verdant-users.json",
		},
	}

	if err := config.SaveToFile(cfg, configPath); err != nil {
		return err
	}

	setup := opaque.SetupServer([]byte("verdant-server"))
	if err := server.SaveSetup(setup, cfg.Server.SetupPath); err != nil {
		return err
	}

	fmt.Printf("wrote %s and %s\n", configPath, cfg.Server.SetupPath)

	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the login server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(os.Stdout, parseLevel(cfg.Logging.Level))
	if cfg.Logging.Pretty {
		log.SetPrettyPrint(true)
	}
	logger.SetDefault(log)

	setup, err := server.LoadSetup(cfg.Server.SetupPath)
	if err != nil {
		return fmt.Errorf("load server setup (run '%s init' first): %w", os.Args[0], err)
	}

	var tokens *server.TokenIssuer
	if cfg.Server.SigningKeyPath != "" {
		tokens, err = server.LoadTokenIssuer(cfg.Server.SigningKeyPath, cfg.Server.TokenTTL)
	} else {
		tokens, err = server.NewTokenIssuer(cfg.Server.TokenTTL)
	}
	if err != nil {
		return fmt.Errorf("load token issuer: %w", err)
	}

	users := server.NewUserStore()

	engine, err := server.NewEngine(setup, users, cfg.Server.SessionTTL, tokens, log)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	stop := make(chan struct{})
	go engine.Sessions().Run(stop, cfg.Server.SessionTTL/2)
	defer close(stop)

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = metrics.Handler()
	}

	httpServer := server.NewHTTPServer(cfg.Server.ListenAddr, engine, metricsHandler, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", logger.String("addr", cfg.Server.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-sigCh:
		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	}

	return nil
}

func parseLevel(s string) logger.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return logger.DebugLevel
	case "WARN":
		return logger.WarnLevel
	case "ERROR":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}

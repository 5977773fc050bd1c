package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pagekite/duppy-go/internal/app"
	"github.com/pagekite/duppy-go/internal/config"
	"github.com/pagekite/duppy-go/internal/helper"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "duppy",
		Short:   "RFC 2136 dynamic DNS update daemon with an HTTP/DynDNS front-end",
		Version: version,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(validateConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the DNS, HTTP, and admin API front-ends",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.GetAppConfigFromEnvironment()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			logger, log := helper.InitLogger(cfg.DevMode)
			defer logger.Sync()

			if cfg.DevMode {
				log.Warn("duppy: running in development mode, this is not secure for production")
			}

			be, err := app.BuildBackend(cfg.Backend, log)
			if err != nil {
				return fmt.Errorf("constructing backend: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.Run(ctx, cfg, log, be); err != nil {
				return fmt.Errorf("running duppy: %w", err)
			}
			return nil
		},
	}
}

func validateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load configuration and report validation errors without starting any listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.GetAppConfigFromEnvironment()
			if err != nil {
				return err
			}
			fmt.Printf("configuration OK: dns=%s:%d http_enabled=%t backend=%s admin_api_enabled=%t\n",
				cfg.DNS.ListenAddress, cfg.DNS.Port, cfg.HTTP.Enabled, cfg.Backend.Type, cfg.AdminAPI.Enabled)
			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/gridswap/gridswap/internal/gateway"
	"github.com/gridswap/gridswap/pkg/adapters/httpx"
	"github.com/gridswap/gridswap/pkg/adapters/memory"
	redisstore "github.com/gridswap/gridswap/pkg/adapters/redis"
	"github.com/gridswap/gridswap/pkg/ports"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the discovery gateway",
	Long: `Starts the gateway that agents register with. Buyer searches posted
here fan out to every registered seller except the sender; everything
after discovery flows directly between agents.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}

		var registry ports.Registry = memory.NewRegistry()
		if cfg.Redis.Enabled {
			client := backend.NewClient(&backend.Options{
				Addr:     cfg.Redis.Address,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer client.Close()
			registry = redisstore.NewRegistry(client)
			logger.Info("redis registry enabled", "addr", cfg.Redis.Address)
		}

		gw := gateway.New(registry, httpx.New(), gateway.WithLogger(logger))

		srv := &http.Server{
			Addr:    cfg.Gateway.ListenAddr,
			Handler: gw.Handler(),
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("gateway listening", "addr", cfg.Gateway.ListenAddr)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			logger.Error("gateway failed", "err", err)
			os.Exit(1)

		case sig := <-shutdown:
			logger.Info("shutdown started", "signal", sig.String())

			drainCtx, drainCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer drainCancel()

			if err := srv.Shutdown(drainCtx); err != nil {
				logger.Error("graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil {
					logger.Error("server close failed", "err", err)
				}
			}
			if err := gw.Drain(drainCtx); err != nil {
				logger.Warn("forward drain incomplete", "err", err)
			}
			logger.Info("gateway stopped")
		}
	},
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/gridswap/gridswap"
	redisstore "github.com/gridswap/gridswap/pkg/adapters/redis"
)

// shutdownTimeout bounds how long a stopping process waits for open
// requests and in-flight dispatches.
const shutdownTimeout = 10 * time.Second

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run a trading agent node",
	Long: `Starts one agent process: the protocol HTTP server, the background
simulation loop and gateway registration. The agent's identity, energy
profile and peers come from the configuration file and GRIDSWAP_*
environment variables.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}

		opts := []gridswap.Option{
			gridswap.WithLogger(logger),
			gridswap.WithPublicURL(cfg.Agent.PublicURL),
			gridswap.WithGatewayURL(cfg.Gateway.URL),
			gridswap.WithSimInterval(cfg.Sim.TickInterval()),
			gridswap.WithSimStartDelay(cfg.Sim.StartDelay()),
			gridswap.WithDrift(cfg.Sim.DriftKWh),
			gridswap.WithRegisterRetry(cfg.Gateway.RegisterRetry()),
		}
		if !cfg.Agent.Metrics {
			opts = append(opts, gridswap.WithoutMetrics())
		}
		if cfg.Redis.Enabled {
			client := backend.NewClient(&backend.Options{
				Addr:     cfg.Redis.Address,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer client.Close()
			opts = append(opts,
				gridswap.WithStore(redisstore.NewFromClient(client, redisstore.WithTTL(cfg.Redis.StateTTL()))),
				gridswap.WithLocker(redisstore.NewLocker(client)),
			)
			logger.Info("redis session store enabled", "addr", cfg.Redis.Address)
		}

		agent, err := gridswap.New(cfg.AgentProfile(), opts...)
		if err != nil {
			fmt.Printf("Error initializing agent: %v\n", err)
			os.Exit(1)
		}

		srv := &http.Server{
			Addr:    cfg.Agent.ListenAddr,
			Handler: agent.Handler(),
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("agent listening",
				"addr", cfg.Agent.ListenAddr,
				"type", string(agent.Type()),
				"gateway", cfg.Gateway.URL)
			serverErrors <- srv.ListenAndServe()
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			if err := agent.Run(ctx); err != nil && ctx.Err() == nil {
				serverErrors <- err
			}
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			logger.Error("agent failed", "err", err)
			os.Exit(1)

		case sig := <-shutdown:
			logger.Info("shutdown started", "signal", sig.String())
			cancel()

			// Give outstanding requests a deadline for completion.
			drainCtx, drainCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer drainCancel()

			if err := srv.Shutdown(drainCtx); err != nil {
				logger.Error("graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil {
					logger.Error("server close failed", "err", err)
				}
			}
			if err := agent.Drain(drainCtx); err != nil {
				logger.Warn("dispatch drain incomplete", "err", err)
			}
			agent.Close()
			logger.Info("agent stopped")
		}
	},
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

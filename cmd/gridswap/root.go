package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gridswap/gridswap/internal/config"
	"github.com/gridswap/gridswap/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "gridswap",
	Short: "Gridswap is a peer-to-peer energy trading network",
	Long: `Gridswap runs autonomous energy trading agents that negotiate over
an open discovery-to-settlement protocol. Each agent is an HTTP node;
a gateway broadcasts buyer searches to every registered seller.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig builds the effective configuration for a command: .env
// file, then defaults, YAML and GRIDSWAP_* variables via config.Load,
// then the --log-level flag on top.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("load .env: %w", err)
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(level), nil
}

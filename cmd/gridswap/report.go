package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/gridswap/gridswap/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Poll the fleet and render a market report",
	Long: `Polls the status endpoint of every configured agent and renders the
fleet's energy positions and trading activity as a markdown report.
With --watch the report refreshes continuously.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}

		agents, _ := cmd.Flags().GetStringSlice("agents")
		if len(agents) == 0 {
			agents = cfg.Report.Agents
		}
		if len(agents) == 0 {
			fmt.Println("Error: no agents to poll. Set report.agents in the config or pass --agents.")
			os.Exit(1)
		}

		interval := cfg.Report.Interval()
		if secs, _ := cmd.Flags().GetInt("interval"); cmd.Flags().Changed("interval") {
			interval = time.Duration(secs) * time.Second
		}

		collector := report.New(agents, report.WithLogger(logger))
		outDir, _ := cmd.Flags().GetString("out")

		watch, _ := cmd.Flags().GetBool("watch")
		if !watch {
			if err := renderOnce(cmd.Context(), collector, outDir); err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report.PrintBanner(os.Stdout)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			termenv.ClearScreen()
			if err := renderOnce(ctx, collector, outDir); err != nil && ctx.Err() == nil {
				logger.Warn("fleet poll failed", "err", err)
			}
			select {
			case <-ctx.Done():
				fmt.Println("\nWatch stopped.")
				return
			case <-ticker.C:
			}
		}
	},
}

// renderOnce takes one fleet snapshot, optionally archives it as JSON
// and renders it to stdout.
func renderOnce(ctx context.Context, collector *report.Collector, outDir string) error {
	snapshot, err := collector.Snapshot(ctx)
	if err != nil {
		return err
	}
	if outDir != "" {
		path, err := snapshot.WriteJSON(outDir)
		if err != nil {
			return err
		}
		fmt.Printf("Snapshot written to %s\n", path)
	}
	return report.Render(os.Stdout, snapshot.Markdown())
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringSlice("agents", nil, "Agent base URLs to poll (overrides report.agents)")
	reportCmd.Flags().BoolP("watch", "w", false, "Refresh the report continuously")
	reportCmd.Flags().String("out", "", "Directory to archive JSON snapshots into")
	reportCmd.Flags().Int("interval", 10, "Refresh interval in seconds (with --watch)")
}

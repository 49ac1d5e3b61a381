// Command icpcd is the Ingestion, Correlation and Persistence Core
// daemon: it runs the Source Adapters, Sync Scheduler, Event Normalizer,
// Correlation Engine and Persistence Store for one workspace, and serves
// the control protocol icpcctl talks to.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/untoldecay/icpc/internal/config"
	"github.com/untoldecay/icpc/internal/debug"
	"github.com/untoldecay/icpc/internal/rpc"
)

var (
	// Version is overridden by ldflags at build time.
	Version = "0.1.0"
	Build   = "dev"
)

var (
	jsonOutput bool
	workspace  string
	dataDir    string
	foreground bool
)

var rootCmd = &cobra.Command{
	Use:           "icpcd",
	Short:         "Ingestion, Correlation and Persistence Core daemon",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		if workspace == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolve workspace: %w", err)
			}
			workspace = wd
		}
		abs, err := filepath.Abs(workspace)
		if err != nil {
			return fmt.Errorf("resolve workspace path: %w", err)
		}
		workspace = abs
		if dataDir == "" {
			dataDir = filepath.Join(workspace, ".icpc")
		}
		debug.Logf("icpcd: workspace=%s data-dir=%s\n", workspace, dataDir)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", "", "workspace root to ingest (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for the database, socket and logs (default: <workspace>/.icpc)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON output")

	rootCmd.AddCommand(startCmd, stopCmd, statusCmd, healthCmd, cleanupCmd, versionCmd)
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon for this workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		return runDaemon(ctx, workspace, dataDir, foreground)
	},
}

func init() {
	startCmd.Flags().BoolVar(&foreground, "foreground", false, "log as text to stderr instead of JSON to the rotating log file")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput {
			outputJSON(map[string]string{"version": Version, "build": Build})
			return
		}
		fmt.Printf("icpcd version %s (%s)\n", Version, Build)
	},
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func main() {
	rpc.ServerVersion = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untoldecay/icpc/internal/rpc"
	"github.com/untoldecay/icpc/internal/ui"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the daemon is alive",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		res, err := client.Ping()
		if err != nil {
			fatal(err)
		}
		if jsonOutput || tomlOutput {
			outputJSON(res)
			return
		}
		fmt.Printf("%s pong (v%s)\n", ui.RenderPass(ui.IconPass), res.Version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon's identity and uptime",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		res, err := client.Status()
		if err != nil {
			fatal(err)
		}
		if jsonOutput || tomlOutput {
			outputJSON(res)
			return
		}
		fmt.Printf("%s running (v%s)\n", ui.RenderPass(ui.IconPass), res.Version)
		fmt.Printf("  workspace: %s\n", res.WorkspacePath)
		fmt.Printf("  database:  %s\n", res.DatabasePath)
		fmt.Printf("  socket:    %s\n", res.SocketPath)
		fmt.Printf("  pid:       %d\n", res.PID)
		fmt.Printf("  uptime:    %ds\n", res.UptimeSeconds)
		fmt.Printf("  adapters:  %v\n", res.Adapters)
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run the integrity sweep against the daemon's store",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		res, err := client.Health()
		if err != nil {
			fatal(err)
		}
		if jsonOutput || tomlOutput {
			outputJSON(res)
			return
		}
		if res.Healthy {
			fmt.Printf("%s healthy\n", ui.RenderPass(ui.IconPass))
			return
		}
		fmt.Printf("%s unhealthy\n", ui.RenderFail(ui.IconFail))
		for _, issue := range res.Issues {
			fmt.Printf("  - %s\n", issue)
		}
	},
}

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Ask the daemon to stop gracefully",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		if err := client.Shutdown(); err != nil {
			fatal(err)
		}
		if jsonOutput || tomlOutput {
			outputJSON(map[string]bool{"stopped": true})
			return
		}
		fmt.Printf("%s shutdown requested\n", ui.RenderPass(ui.IconPass))
	},
}

var cleanupRetentionDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run retention cleanup now",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		var report map[string]int64
		if err := client.Call(rpc.OpCleanup, rpc.CleanupArgs{RetentionDays: cleanupRetentionDays}, &report); err != nil {
			fatal(err)
		}
		if jsonOutput || tomlOutput {
			outputJSON(report)
			return
		}
		fmt.Printf("%s cleanup complete: %v\n", ui.RenderPass(ui.IconPass), report)
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupRetentionDays, "retention-days", 0, "override the configured retention window for this run")
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts per table",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		var stats map[string]int64
		if err := client.Call(rpc.OpStats, nil, &stats); err != nil {
			fatal(err)
		}
		outputJSON(stats)
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "List table names",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		var tables []string
		if err := client.Call(rpc.OpSchema, nil, &tables); err != nil {
			fatal(err)
		}
		if jsonOutput || tomlOutput {
			outputJSON(tables)
			return
		}
		for _, t := range tables {
			fmt.Println(t)
		}
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run the integrity validation report",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		var report map[string]any
		if err := client.Call(rpc.OpValidate, nil, &report); err != nil {
			fatal(err)
		}
		outputJSON(report)
	},
}

package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/untoldecay/icpc/internal/registry"
	"github.com/untoldecay/icpc/internal/rpc"
)

// dialRunning looks up the registered instance for the resolved workspace
// and dials its control socket, failing fast if no live daemon is found.
func dialRunning() (*rpc.Client, registry.Instance, error) {
	reg := registry.New(dataDir)
	inst, ok, err := reg.Lookup(workspace)
	if err != nil {
		return nil, registry.Instance{}, fmt.Errorf("look up daemon registration: %w", err)
	}
	if !ok {
		return nil, registry.Instance{}, fmt.Errorf("no icpcd instance registered for %s", workspace)
	}
	socketPath := inst.SocketPath
	if socketPath == "" {
		socketPath = rpc.SocketPath(dataDir, workspace)
	}
	client, err := rpc.DialTimeout(socketPath, 2*time.Second)
	if err != nil {
		return nil, inst, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	return client, inst, nil
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask the running daemon to shut down gracefully",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, inst, err := dialRunning()
		if err != nil {
			return err
		}
		defer client.Close()
		if err := client.Shutdown(); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if jsonOutput {
			outputJSON(map[string]any{"stopped": true, "pid": inst.PID})
			return nil
		}
		fmt.Printf("icpcd (pid %d) is shutting down\n", inst.PID)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show status of the daemon for this workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, inst, err := dialRunning()
		if err != nil {
			if jsonOutput {
				outputJSON(map[string]any{"running": false, "workspace": workspace})
				return nil
			}
			fmt.Println("not running")
			return nil
		}
		defer client.Close()

		st, err := client.Status()
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}

		if jsonOutput {
			outputJSON(map[string]any{
				"running":        true,
				"pid":            inst.PID,
				"version":        st.Version,
				"workspace_path": st.WorkspacePath,
				"database_path":  st.DatabasePath,
				"socket_path":    st.SocketPath,
				"uptime_seconds": st.UptimeSeconds,
				"adapters":       st.Adapters,
			})
			return nil
		}
		fmt.Printf("running (pid %d, v%s)\n", inst.PID, st.Version)
		fmt.Printf("  workspace: %s\n", st.WorkspacePath)
		fmt.Printf("  database:  %s\n", st.DatabasePath)
		fmt.Printf("  socket:    %s\n", st.SocketPath)
		fmt.Printf("  uptime:    %ds\n", st.UptimeSeconds)
		fmt.Printf("  adapters:  %v\n", st.Adapters)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run the integrity sweep against the daemon's store",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := dialRunning()
		if err != nil {
			return err
		}
		defer client.Close()

		h, err := client.Health()
		if err != nil {
			return fmt.Errorf("health: %w", err)
		}
		if jsonOutput {
			outputJSON(h)
			return nil
		}
		if h.Healthy {
			fmt.Println("healthy")
			return nil
		}
		fmt.Println("unhealthy:")
		for _, issue := range h.Issues {
			fmt.Printf("  - %s\n", issue)
		}
		os.Exit(1)
		return nil
	},
}

var cleanupRetentionDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run retention cleanup now instead of waiting for the next cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := dialRunning()
		if err != nil {
			return err
		}
		defer client.Close()

		var report struct {
			Entries          int64 `json:"Entries"`
			Prompts          int64 `json:"Prompts"`
			Events           int64 `json:"Events"`
			TerminalCommands int64 `json:"TerminalCommands"`
			StatusMessages   int64 `json:"StatusMessages"`
		}
		if err := client.Call(rpc.OpCleanup, rpc.CleanupArgs{RetentionDays: cleanupRetentionDays}, &report); err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		if jsonOutput {
			outputJSON(report)
			return nil
		}
		fmt.Printf("removed: %d entries, %d prompts, %d events, %d terminal commands, %d status messages\n",
			report.Entries, report.Prompts, report.Events, report.TerminalCommands, report.StatusMessages)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupRetentionDays, "retention-days", 0, "override the configured retention window for this run")
}

// isProcessRunning reports whether pid names a live process, probing it
// with signal 0.
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

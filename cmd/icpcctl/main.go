// Command icpcctl is the control client for icpcd: it dials a running
// daemon's control socket and issues read queries against the Query
// Facade, plus status/health/shutdown/cleanup operations.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/untoldecay/icpc/internal/registry"
	"github.com/untoldecay/icpc/internal/rpc"
)

var (
	// Version is overridden by ldflags at build time.
	Version = "0.1.0"
)

var (
	jsonOutput bool
	tomlOutput bool
	workspace  string
	dataDir    string
	limit      int
	offset     int
)

var rootCmd = &cobra.Command{
	Use:           "icpcctl",
	Short:         "Control client for the icpcd daemon",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
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
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", "", "workspace to talk to (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory the target daemon was started with (default: <workspace>/.icpc)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVar(&tomlOutput, "toml", false, "emit TOML output instead of JSON")

	rootCmd.AddCommand(
		pingCmd, statusCmd, healthCmd, shutdownCmd, cleanupCmd,
		entriesCmd, promptsCmd, conversationsCmd, eventsCmd,
		terminalCmd, statusMessagesCmd, todosCmd, statsCmd, schemaCmd, validateCmd,
		versionCmd,
	)

	for _, c := range []*cobra.Command{entriesCmd, promptsCmd, eventsCmd, terminalCmd, statusMessagesCmd} {
		c.Flags().IntVar(&limit, "limit", 50, "maximum rows to return")
		c.Flags().IntVar(&offset, "offset", 0, "rows to skip before the first returned row")
	}
}

// dial connects to the daemon registered for the resolved workspace.
func dial() (*rpc.Client, error) {
	reg := registry.New(dataDir)
	inst, ok, err := reg.Lookup(workspace)
	if err != nil {
		return nil, fmt.Errorf("look up daemon registration: %w", err)
	}
	socketPath := ""
	if ok {
		socketPath = inst.SocketPath
	}
	if socketPath == "" {
		socketPath = rpc.SocketPath(dataDir, workspace)
	}
	client, err := rpc.DialTimeout(socketPath, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("no icpcd running for %s: %w", workspace, err)
	}
	return client, nil
}

func outputJSON(v any) {
	if tomlOutput {
		outputTOML(v)
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// outputTOML renders v as TOML, the same conversion the teacher's formula
// command offers for its own JSON-sourced config (`bd formula convert`),
// re-homed here onto every command's outputJSON output for operators who
// pipe icpcctl into TOML-consuming tooling.
func outputTOML(v any) {
	enc := toml.NewEncoder(os.Stdout)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "toml encode: %v\n", err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print icpcctl's own version",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput || tomlOutput {
			outputJSON(map[string]string{"version": Version})
			return
		}
		fmt.Printf("icpcctl version %s\n", Version)
	},
}

func main() {
	rpc.ClientVersion = Version
	if err := rootCmd.Execute(); err != nil {
		fatal(err)
	}
}

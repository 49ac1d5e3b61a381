package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// initAnswers holds the interactive form's choices before they're written
// out as .icpc/config.yaml.
type initAnswers struct {
	RetentionDays    string
	EnableEnrichment bool
	EnableHooks      bool
	EnableExtraction bool
	EnableCompaction bool
}

var initNonInteractive bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .icpc/config.yaml for the current workspace",
	Long: `Init walks through the optional, off-by-default features (Ollama
enrichment, external hooks, event extraction, conversation compaction) and
writes the result to <workspace>/.icpc/config.yaml. Pass --yes to accept
every default without prompting.`,
	Run: func(cmd *cobra.Command, args []string) {
		answers := initAnswers{RetentionDays: "30"}

		if !initNonInteractive {
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Retention (days)").
						Description("How long to keep entries/prompts/events before cleanup purges them.").
						Value(&answers.RetentionDays),
					huh.NewSelect[bool]().
						Title("Enable Ollama enrichment?").
						Description("Uses a local Ollama model to guess entry/prompt links the deterministic scorer misses.").
						Options(
							huh.NewOption("No (recommended to start)", false),
							huh.NewOption("Yes", true),
						).
						Value(&answers.EnableEnrichment),
					huh.NewSelect[bool]().
						Title("Enable external hooks?").
						Description("Runs scripts under .icpc/hooks on entry_captured/prompt_linked/cleanup_ran.").
						Options(
							huh.NewOption("No", false),
							huh.NewOption("Yes", true),
						).
						Value(&answers.EnableHooks),
					huh.NewSelect[bool]().
						Title("Enable event extraction?").
						Description("Extracts entities/relationships from historical-mining commit messages.").
						Options(
							huh.NewOption("No", false),
							huh.NewOption("Yes", true),
						).
						Value(&answers.EnableExtraction),
					huh.NewSelect[bool]().
						Title("Enable conversation compaction?").
						Description("Summarizes archived conversations with Claude Haiku before retention deletes them. Needs ANTHROPIC_API_KEY.").
						Options(
							huh.NewOption("No", false),
							huh.NewOption("Yes", true),
						).
						Value(&answers.EnableCompaction),
				),
			)
			if err := form.Run(); err != nil {
				fatal(fmt.Errorf("init form: %w", err))
			}
		}

		cfg := map[string]any{
			"retention-days":   answers.RetentionDays,
			"enrichment":       map[string]any{"enabled": answers.EnableEnrichment},
			"hooks":            map[string]any{"enabled": answers.EnableHooks},
			"event-extraction": map[string]any{"enabled": answers.EnableExtraction},
			"compaction":       map[string]any{"enabled": answers.EnableCompaction},
		}

		configDir := filepath.Join(workspace, ".icpc")
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			fatal(fmt.Errorf("create %s: %w", configDir, err))
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			fatal(fmt.Errorf("marshal config: %w", err))
		}
		configPath := filepath.Join(configDir, "config.yaml")
		if err := os.WriteFile(configPath, out, 0o644); err != nil {
			fatal(fmt.Errorf("write %s: %w", configPath, err))
		}
		fmt.Printf("wrote %s\n", configPath)
	},
}

func init() {
	initCmd.Flags().BoolVar(&initNonInteractive, "yes", false, "skip prompts and accept defaults")
	rootCmd.AddCommand(initCmd)
}

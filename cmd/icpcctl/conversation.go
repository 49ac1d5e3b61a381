package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/untoldecay/icpc/internal/rpc"
)

var conversationCmd = &cobra.Command{
	Use:   "conversation <id>",
	Short: "Show one conversation, rendering its compaction summary as markdown",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		var conv struct {
			ID       string         `json:"id"`
			Title    string         `json:"title"`
			Status   string         `json:"status"`
			Metadata map[string]any `json:"metadata"`
		}
		if err := client.Call(rpc.OpConversation, rpc.ConversationArgs{ID: args[0]}, &conv); err != nil {
			fatal(err)
		}
		if jsonOutput || tomlOutput {
			outputJSON(conv)
			return
		}

		fmt.Printf("conversation %s (%s)\n", conv.ID, conv.Status)
		if conv.Title != "" {
			fmt.Println(conv.Title)
		}
		summary, _ := conv.Metadata["summary"].(string)
		if summary == "" {
			fmt.Println("(no compaction summary yet)")
			return
		}
		renderMarkdownSummary(summary)
	},
}

// renderMarkdownSummary renders a compaction summary's markdown for the
// current terminal, falling back to the raw text if glamour's renderer
// can't be built (e.g. piped, non-terminal stdout).
func renderMarkdownSummary(summary string) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		fmt.Println(summary)
		return
	}
	out, err := renderer.Render(summary)
	if err != nil {
		fmt.Println(summary)
		return
	}
	fmt.Fprint(os.Stdout, out)
}

func init() {
	rootCmd.AddCommand(conversationCmd)
}

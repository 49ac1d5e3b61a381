package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/untoldecay/icpc/internal/model"
	"github.com/untoldecay/icpc/internal/query"
	"github.com/untoldecay/icpc/internal/rpc"
)

// naturalTime is a small natural-language parser for --from/--to style
// bounds ("yesterday", "3 days ago"), falling back to a plain RFC3339
// parse for exact timestamps. Operators typing entries-in-range by hand
// shouldn't have to hand-format an RFC3339 string for the common case.
var naturalTime = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseTimeBound parses s as RFC3339 first, then as a natural-language
// expression relative to now.
func parseTimeBound(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	r, err := naturalTime.Parse(s, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time bound %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("parse time bound %q: not recognized", s)
	}
	return r.Time, nil
}

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "List recently captured entries",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		var entries []model.Entry
		if err := client.Call(rpc.OpRecentEntries, rpc.PageArgs{Limit: limit, Offset: offset}, &entries); err != nil {
			fatal(err)
		}
		if jsonOutput || tomlOutput {
			outputJSON(entries)
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tTIMESTAMP\tFILE\tSOURCE\tCONFIDENCE")
		for _, e := range entries {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				e.ID, e.Timestamp.Format(time.RFC3339), e.FilePath, e.Source, e.LinkingConfidence)
		}
		_ = w.Flush()
	},
}

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List recently captured prompts",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		var prompts []model.Prompt
		if err := client.Call(rpc.OpRecentPrompts, rpc.PageArgs{Limit: limit, Offset: offset}, &prompts); err != nil {
			fatal(err)
		}
		if jsonOutput || tomlOutput {
			outputJSON(prompts)
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tTIMESTAMP\tSTATUS\tCONVERSATION\tTEXT")
		for _, p := range prompts {
			text := p.Text
			if len(text) > 60 {
				text = text[:57] + "..."
			}
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				p.ID, p.Timestamp.Format(time.RFC3339), p.Status, p.ConversationID, text)
		}
		_ = w.Flush()
	},
}

var conversationsCmd = &cobra.Command{
	Use:   "conversations <workspace>",
	Short: "List conversations for a workspace",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		var convos []model.Conversation
		wargs := rpc.WorkspaceArgs{Workspace: args[0], Limit: limit, Offset: offset}
		if err := client.Call(rpc.OpConversationsByWorkspace, wargs, &convos); err != nil {
			fatal(err)
		}
		outputJSON(convos)
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent events",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		var events []model.Event
		if err := client.Call(rpc.OpRecentEvents, rpc.PageArgs{Limit: limit, Offset: offset}, &events); err != nil {
			fatal(err)
		}
		outputJSON(events)
	},
}

var terminalCmd = &cobra.Command{
	Use:   "terminal",
	Short: "List recent terminal commands",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		var cmds []model.TerminalCommand
		if err := client.Call(rpc.OpRecentTerminalCommands, rpc.PageArgs{Limit: limit, Offset: offset}, &cmds); err != nil {
			fatal(err)
		}
		if jsonOutput || tomlOutput {
			outputJSON(cmds)
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "TIMESTAMP\tSHELL\tCOMMAND")
		for _, c := range cmds {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", c.Timestamp.Format(time.RFC3339), c.Shell, c.Command)
		}
		_ = w.Flush()
	},
}

var statusMessagesCmd = &cobra.Command{
	Use:   "status-messages",
	Short: "List recent editor status messages",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		var msgs []model.StatusMessage
		if err := client.Call(rpc.OpRecentStatusMessages, rpc.PageArgs{Limit: limit, Offset: offset}, &msgs); err != nil {
			fatal(err)
		}
		outputJSON(msgs)
	},
}

var todosCmd = &cobra.Command{
	Use:   "todos <workspace>",
	Short: "List todos for a workspace",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		var todos []model.Todo
		wargs := rpc.WorkspaceArgs{Workspace: args[0], Limit: limit, Offset: offset}
		if err := client.Call(rpc.OpRecentTodos, wargs, &todos); err != nil {
			fatal(err)
		}
		outputJSON(todos)
	},
}

var entriesWithPromptsCmd = &cobra.Command{
	Use:   "entries-with-prompts",
	Short: "List entries alongside the prompt each was linked to",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		var pairs []query.EntryPromptPair
		if err := client.Call(rpc.OpEntriesWithPrompts, rpc.PageArgs{Limit: limit, Offset: offset}, &pairs); err != nil {
			fatal(err)
		}
		outputJSON(pairs)
	},
}

var promptsWithEntriesCmd = &cobra.Command{
	Use:   "prompts-with-entries",
	Short: "List prompts alongside the entry each was linked to",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		var pairs []query.PromptEntryPair
		if err := client.Call(rpc.OpPromptsWithEntries, rpc.PageArgs{Limit: limit, Offset: offset}, &pairs); err != nil {
			fatal(err)
		}
		outputJSON(pairs)
	},
}

var entriesWithCodeCmd = &cobra.Command{
	Use:   "entries-with-code",
	Short: "List entries carrying a before/after code diff",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		var entries []model.Entry
		if err := client.Call(rpc.OpEntriesWithCode, rpc.PageArgs{Limit: limit, Offset: offset}, &entries); err != nil {
			fatal(err)
		}
		outputJSON(entries)
	},
}

var entriesInRangeCmd = &cobra.Command{
	Use:   "entries-in-range <from> <to>",
	Short: "List entries timestamped between two bounds (RFC3339 or natural language, e.g. \"yesterday\")",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		from, err := parseTimeBound(args[0])
		if err != nil {
			fatal(err)
		}
		to, err := parseTimeBound(args[1])
		if err != nil {
			fatal(err)
		}

		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		var entries []model.Entry
		targs := rpc.TimeRangeArgs{From: from.Format(time.RFC3339), To: to.Format(time.RFC3339)}
		if err := client.Call(rpc.OpEntriesInTimeRange, targs, &entries); err != nil {
			fatal(err)
		}
		outputJSON(entries)
	},
}

var tableSchemaCmd = &cobra.Command{
	Use:   "table-schema <table>",
	Short: "Describe one table's columns",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, err := dial()
		if err != nil {
			fatal(err)
		}
		defer client.Close()

		var cols []any
		if err := client.Call(rpc.OpTableSchema, rpc.TableArgs{Table: args[0]}, &cols); err != nil {
			fatal(err)
		}
		outputJSON(cols)
	},
}

func init() {
	rootCmd.AddCommand(entriesWithPromptsCmd, promptsWithEntriesCmd, entriesWithCodeCmd, entriesInRangeCmd, tableSchemaCmd)
}

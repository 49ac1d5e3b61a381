// Package rpc implements the control protocol between icpcctl and icpcd: a
// length-delimited-by-newline JSON request/response exchange over a Unix
// domain socket, one request per line, generalized from the teacher's
// RPC package onto the Query Facade and daemon lifecycle instead of
// issue-tracker CRUD.
package rpc

import (
	"encoding/json"

	"github.com/untoldecay/icpc/internal/apierr"
)

// ServerVersion is icpcd's build version, compared against a request's
// ClientVersion by Server.checkVersionCompatibility. Overridden at
// startup from cmd/icpcd's ldflags-injected Version.
var ServerVersion = "0.0.0"

// Operation identifies a control-protocol request.
const (
	OpPing                  = "ping"
	OpStatus                = "status"
	OpHealth                = "health"
	OpShutdown              = "shutdown"
	OpRecentEntries         = "recent_entries"
	OpEntriesInTimeRange    = "entries_in_time_range"
	OpEntriesWithCode       = "entries_with_code"
	OpEntriesWithPrompts    = "entries_with_prompts"
	OpRecentPrompts         = "recent_prompts"
	OpPromptsWithEntries    = "prompts_with_entries"
	OpConversationsByWorkspace = "conversations_by_workspace"
	OpConversation          = "conversation"
	OpRecentEvents          = "recent_events"
	OpRecentTerminalCommands = "recent_terminal_commands"
	OpRecentStatusMessages  = "recent_status_messages"
	OpRecentTodos           = "recent_todos"
	OpStats                 = "stats"
	OpSchema                = "schema"
	OpTableSchema           = "table_schema"
	OpValidate              = "validate"
	OpCleanup               = "cleanup"
)

// Request is one control-protocol request, marshaled as a single JSON line.
type Request struct {
	Operation     string          `json:"operation"`
	Args          json.RawMessage `json:"args,omitempty"`
	RequestID     string          `json:"request_id,omitempty"`
	ClientVersion string          `json:"client_version,omitempty"`
}

// Response is the wire form of apierr.Envelope: {ok, error, result}.
type Response = apierr.Envelope

// PingResult answers a Ping, which takes no arguments and proves the
// socket is alive; it carries a short message and the daemon's version.
type PingResult struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// StatusResult reports daemon identity and uptime for `icpcctl status`.
type StatusResult struct {
	Version       string `json:"version"`
	WorkspacePath string `json:"workspace_path"`
	DatabasePath  string `json:"database_path"`
	SocketPath    string `json:"socket_path"`
	PID           int    `json:"pid"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Adapters      []string `json:"adapters"`
}

// HealthResult reports whether the daemon considers itself usable.
type HealthResult struct {
	Healthy bool     `json:"healthy"`
	Issues  []string `json:"issues,omitempty"`
}

// PageArgs is the common limit/offset pagination shape.
type PageArgs struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// TimeRangeArgs bounds a query by entry timestamp, RFC3339 encoded.
type TimeRangeArgs struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// WorkspaceArgs scopes a query to one workspace.
type WorkspaceArgs struct {
	Workspace string `json:"workspace"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// ConversationArgs identifies a single conversation for the conversation op.
type ConversationArgs struct {
	ID string `json:"id"`
}

// TableArgs names a single table for table_schema.
type TableArgs struct {
	Table string `json:"table"`
}

// CleanupArgs overrides the configured retention window for one run.
type CleanupArgs struct {
	RetentionDays int `json:"retention_days,omitempty"`
}

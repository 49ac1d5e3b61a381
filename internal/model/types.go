// Package model defines the canonical entities of the activity stream:
// Entry, Prompt, Conversation, Event, TerminalCommand, ContextSnapshot,
// ContextChange, StatusMessage, Todo and TodoEvent. Adapters and the
// Normalizer produce these; the Persistence Store is the only thing that
// mutates them on disk.
package model

import "time"

// Confidence is the categorical label a correlation carries. It is never
// a raw float outside the Correlation Engine.
type Confidence string

const (
	ConfidenceNone   Confidence = "none"
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Source identifies which adapter produced a record.
type Source string

const (
	SourceFilewatcher Source = "filewatcher"
	SourceClipboard   Source = "clipboard"
	SourceEditorDB    Source = "editor-db"
	SourceMCP         Source = "mcp"
	SourceImport      Source = "import"
)

// PromptStatus is the state-machine status of a Prompt. captured -> linked
// or captured -> discarded; both terminal, neither regresses.
type PromptStatus string

const (
	PromptCaptured  PromptStatus = "captured"
	PromptLinked    PromptStatus = "linked"
	PromptDiscarded PromptStatus = "discarded"
)

// ConversationStatus tracks whether a conversation is still receiving prompts.
type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationArchived ConversationStatus = "archived"
)

// TodoStatus is the state-machine status of a Todo. pending -> in_progress
// -> completed, or pending -> completed directly. Neither regresses.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
)

// ModelInfo describes the AI model that produced or accompanied an Entry or
// Prompt, when known.
type ModelInfo struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// Entry is one observed code change.
type Entry struct {
	ID                int64      `json:"id"`
	SessionID         string     `json:"sessionId"`
	WorkspacePath     string     `json:"workspacePath"`
	FilePath          string     `json:"filePath"`
	Source            Source     `json:"source"`
	BeforeCode        string     `json:"beforeCode,omitempty"`
	AfterCode         string     `json:"afterCode,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	Timestamp         time.Time  `json:"timestamp"`
	Tags              []string   `json:"tags,omitempty"`
	PromptID          *int64     `json:"promptId,omitempty"`
	Model             *ModelInfo `json:"model,omitempty"`
	Type              string     `json:"type,omitempty"`
	LinkingConfidence Confidence `json:"linkingConfidence,omitempty"`
	RedactionApplied  bool       `json:"redactionApplied,omitempty"`
}

// ContextFileCounts breaks a prompt's context-file count down by how each
// file entered the context window. Must satisfy Total == Explicit+Tabs+Auto.
type ContextFileCounts struct {
	Explicit int `json:"explicit"`
	Tabs     int `json:"tabs"`
	Auto     int `json:"auto"`
}

// Total returns Explicit+Tabs+Auto, the value contextFileCount must equal.
func (c ContextFileCounts) Total() int { return c.Explicit + c.Tabs + c.Auto }

// PromptStats carries the structured statistics attached to a Prompt.
type PromptStats struct {
	LinesAdded         int     `json:"linesAdded,omitempty"`
	LinesRemoved       int     `json:"linesRemoved,omitempty"`
	ContextUsageRatio  float64 `json:"contextUsageRatio,omitempty"`
	Mode               string  `json:"mode,omitempty"`
	ModelType          string  `json:"modelType,omitempty"`
	ModelName          string  `json:"modelName,omitempty"`
	ForceMode          bool    `json:"forceMode,omitempty"`
	Auto               bool    `json:"auto,omitempty"`
}

// Workspace identifies the project a prompt or entry belongs to.
type Workspace struct {
	ID   string `json:"id,omitempty"`
	Path string `json:"path,omitempty"`
	Name string `json:"name,omitempty"`
}

// Prompt is one AI request-or-message observed from the editor's sidecar
// database or the clipboard.
type Prompt struct {
	ID                 int64             `json:"id"`
	Timestamp          time.Time         `json:"timestamp"`
	Text               string            `json:"text"`
	Status             PromptStatus      `json:"status"`
	LinkedEntryID      *int64            `json:"linkedEntryId,omitempty"`
	Source             Source            `json:"source"`
	Workspace          Workspace         `json:"workspace"`
	ComposerID         string            `json:"composerId,omitempty"`
	Stats              PromptStats       `json:"stats"`
	Confidence         Confidence        `json:"confidence,omitempty"`
	ContextFiles       []string          `json:"contextFiles,omitempty"`
	ContextFileCounts  ContextFileCounts `json:"contextFileCounts"`
	ThinkingTimeMS      int64             `json:"thinkingTimeMs,omitempty"`
	TerminalBlocks     []string          `json:"terminalBlocks,omitempty"`
	AttachmentCount    int               `json:"attachmentCount,omitempty"`
	ConversationID     string            `json:"conversationId,omitempty"`
	ConversationIndex  int               `json:"conversationIndex,omitempty"`
	ConversationTitle  string            `json:"conversationTitle,omitempty"`
	MessageRole        string            `json:"messageRole,omitempty"`
	ParentConversationID string          `json:"parentConversationId,omitempty"`
	// AddedFromDatabase is passed through opaquely; nothing branches on it.
	AddedFromDatabase bool `json:"addedFromDatabase,omitempty"`
	RedactionApplied  bool `json:"redactionApplied,omitempty"`
}

// ContextFileCount returns the declared total (Explicit+Tabs+Auto) for this
// prompt's context files, satisfying invariant 9.
func (p Prompt) ContextFileCount() int { return p.ContextFileCounts.Total() }

// Conversation groups prompts sharing a composer/thread id.
type Conversation struct {
	ID            string             `json:"id"`
	WorkspaceID   string             `json:"workspaceId,omitempty"`
	WorkspacePath string             `json:"workspacePath,omitempty"`
	Title         string             `json:"title,omitempty"`
	Status        ConversationStatus `json:"status"`
	Tags          []string           `json:"tags,omitempty"`
	Metadata      map[string]any     `json:"metadata,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
	LastMessageAt time.Time          `json:"lastMessageAt"`
	MessageCount  int                `json:"messageCount"`
}

// Event is a free-form system event (lifecycle, error, status).
type Event struct {
	ID            string         `json:"id"`
	SessionID     string         `json:"sessionId,omitempty"`
	WorkspacePath string         `json:"workspacePath,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Type          string         `json:"type"`
	Details       map[string]any `json:"details,omitempty"`
}

// TerminalCommand is one shell invocation observed by the shell-history
// miner or the historical-mining job.
type TerminalCommand struct {
	ID            string        `json:"id"`
	Command       string        `json:"command"`
	Shell         string        `json:"shell,omitempty"`
	Source        Source        `json:"source"`
	Timestamp     time.Time     `json:"timestamp"`
	WorkspacePath string        `json:"workspacePath,omitempty"`
	Output        string        `json:"output,omitempty"`
	ExitCode      *int          `json:"exitCode,omitempty"`
	Duration      time.Duration `json:"duration,omitempty"`
	Error         string        `json:"error,omitempty"`
	EntryID       *int64        `json:"entryId,omitempty"`
	PromptID      *int64        `json:"promptId,omitempty"`
	SessionID     string        `json:"sessionId,omitempty"`
	RedactionApplied bool       `json:"redactionApplied,omitempty"`
}

// ContextSnapshot is a per-prompt snapshot of files/mentions present in the
// context window at the time a prompt was sent.
type ContextSnapshot struct {
	PromptID         int64     `json:"promptId"`
	Timestamp        time.Time `json:"timestamp"`
	FileCount        int       `json:"fileCount"`
	TokenEstimate    int       `json:"tokenEstimate,omitempty"`
	Truncated        bool      `json:"truncated,omitempty"`
	UtilizationRatio float64   `json:"utilizationRatio,omitempty"`
	ContextFiles     []string  `json:"contextFiles,omitempty"`
	AtMentions       []string  `json:"atMentions,omitempty"`
}

// ContextChange is the delta between two consecutive ContextSnapshots.
type ContextChange struct {
	ID                string         `json:"id"`
	PromptID          *int64         `json:"promptId,omitempty"`
	EventID           string         `json:"eventId,omitempty"`
	TaskID            string         `json:"taskId,omitempty"`
	SessionID         string         `json:"sessionId,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
	PreviousFileCount int            `json:"previousFileCount"`
	CurrentFileCount  int            `json:"currentFileCount"`
	Added             []string       `json:"added,omitempty"`
	Removed           []string       `json:"removed,omitempty"`
	Unchanged         []string       `json:"unchanged,omitempty"`
	NetChange         int            `json:"netChange"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// StatusAction is the classified action kind of a StatusMessage.
type StatusAction string

const (
	ActionFileRead   StatusAction = "file_read"
	ActionPlanning   StatusAction = "planning"
	ActionAnalysis   StatusAction = "analysis"
	ActionProcessing StatusAction = "processing"
	ActionThinking   StatusAction = "thinking"
	ActionGenerating StatusAction = "generating"
	ActionSearching  StatusAction = "searching"
	ActionStatus     StatusAction = "status"
)

// StatusMessage is the editor UI status string and its parsed action.
type StatusMessage struct {
	ID            string       `json:"id"`
	WorkspacePath string       `json:"workspacePath,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
	Raw           string       `json:"raw"`
	Action        StatusAction `json:"action"`
	Detail        string       `json:"detail,omitempty"`
}

// Todo is a tracked task item.
type Todo struct {
	ID            string     `json:"id"`
	WorkspacePath string     `json:"workspacePath,omitempty"`
	Text          string     `json:"text"`
	Status        TodoStatus `json:"status"`
	Order         int        `json:"order"`
	CreatedAt     time.Time  `json:"createdAt"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	PromptIDs     []int64    `json:"promptIds,omitempty"`
	FilesModified []string   `json:"filesModified,omitempty"`
}

// TodoEvent is one observed status transition for a Todo.
type TodoEvent struct {
	ID        string     `json:"id"`
	TodoID    string     `json:"todoId"`
	Status    TodoStatus `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
}

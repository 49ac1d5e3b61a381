package sqlite

// schema holds every table and index present at first release. Columns
// added afterward live in migrations.go instead, introspected via
// PRAGMA table_info before being added.
const schema = `
-- Entries: one observed code change.
CREATE TABLE IF NOT EXISTS entries (
    id INTEGER PRIMARY KEY,
    session_id TEXT NOT NULL DEFAULT '',
    workspace_path TEXT NOT NULL DEFAULT '',
    file_path TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT 'import',
    before_code TEXT NOT NULL DEFAULT '',
    after_code TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT '',
    timestamp TEXT NOT NULL,
    tags TEXT NOT NULL DEFAULT '[]',
    prompt_id INTEGER,
    model_info TEXT NOT NULL DEFAULT '{}',
    type TEXT NOT NULL DEFAULT '',
    linking_confidence TEXT NOT NULL DEFAULT 'none',
    redaction_applied INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (prompt_id) REFERENCES prompts(id)
);

CREATE INDEX IF NOT EXISTS idx_entries_timestamp ON entries(timestamp);
CREATE INDEX IF NOT EXISTS idx_entries_workspace ON entries(workspace_path);
CREATE INDEX IF NOT EXISTS idx_entries_prompt_id ON entries(prompt_id);

-- Prompts: one AI request-or-message observed from the sidecar DB or clipboard.
CREATE TABLE IF NOT EXISTS prompts (
    id INTEGER PRIMARY KEY,
    timestamp TEXT NOT NULL,
    text TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'captured',
    linked_entry_id INTEGER,
    source TEXT NOT NULL DEFAULT 'import',
    workspace_id TEXT NOT NULL DEFAULT '',
    workspace_path TEXT NOT NULL DEFAULT '',
    workspace_name TEXT NOT NULL DEFAULT '',
    composer_id TEXT NOT NULL DEFAULT '',
    stats TEXT NOT NULL DEFAULT '{}',
    confidence TEXT NOT NULL DEFAULT 'none',
    context_files TEXT NOT NULL DEFAULT '[]',
    context_file_count_explicit INTEGER NOT NULL DEFAULT 0,
    context_file_count_tabs INTEGER NOT NULL DEFAULT 0,
    context_file_count_auto INTEGER NOT NULL DEFAULT 0,
    terminal_blocks TEXT NOT NULL DEFAULT '[]',
    attachment_count INTEGER NOT NULL DEFAULT 0,
    conversation_index INTEGER,
    conversation_title TEXT NOT NULL DEFAULT '',
    message_role TEXT NOT NULL DEFAULT '',
    added_from_database INTEGER NOT NULL DEFAULT 0,
    redaction_applied INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (linked_entry_id) REFERENCES entries(id)
);

CREATE INDEX IF NOT EXISTS idx_prompts_timestamp ON prompts(timestamp);
CREATE INDEX IF NOT EXISTS idx_prompts_workspace ON prompts(workspace_path);
CREATE INDEX IF NOT EXISTS idx_prompts_composer ON prompts(composer_id);
-- conversation_id, conversation_index, thinking_time and parent_conversation_id
-- are intentionally absent here: they are added idempotently by
-- migratePromptConversationColumns in migrations.go,
-- the schema-drift scenario spec.md S5 describes (a store whose prompts
-- table predates those fields). idx_prompts_conversation and the
-- conversation_id/conversation_index uniqueness index are created there too,
-- once the columns they reference are guaranteed to exist.

-- Conversations: grouping of prompts in one dialogue.
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    workspace_id TEXT NOT NULL DEFAULT '',
    workspace_path TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'active',
    tags TEXT NOT NULL DEFAULT '[]',
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    last_message_at TEXT,
    message_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_conversations_workspace ON conversations(workspace_path);
CREATE INDEX IF NOT EXISTS idx_conversations_last_message ON conversations(last_message_at);

-- Events: free-form system events.
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL DEFAULT '',
    workspace_path TEXT NOT NULL DEFAULT '',
    timestamp TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT '',
    details TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);

-- Terminal commands: one shell invocation.
CREATE TABLE IF NOT EXISTS terminal_commands (
    id TEXT PRIMARY KEY,
    command TEXT NOT NULL DEFAULT '',
    shell TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT 'import',
    timestamp TEXT NOT NULL,
    workspace_path TEXT NOT NULL DEFAULT '',
    output TEXT NOT NULL DEFAULT '',
    exit_code INTEGER,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    entry_id INTEGER,
    prompt_id INTEGER,
    session_id TEXT NOT NULL DEFAULT '',
    redaction_applied INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (entry_id) REFERENCES entries(id),
    FOREIGN KEY (prompt_id) REFERENCES prompts(id)
);

CREATE INDEX IF NOT EXISTS idx_terminal_timestamp ON terminal_commands(timestamp);
CREATE INDEX IF NOT EXISTS idx_terminal_exit_code ON terminal_commands(exit_code);

-- Context snapshots: per-prompt snapshot of the context window.
CREATE TABLE IF NOT EXISTS context_snapshots (
    prompt_id INTEGER NOT NULL,
    timestamp TEXT NOT NULL,
    file_count INTEGER NOT NULL DEFAULT 0,
    token_estimate INTEGER NOT NULL DEFAULT 0,
    truncated INTEGER NOT NULL DEFAULT 0,
    utilization_ratio REAL NOT NULL DEFAULT 0,
    context_files TEXT NOT NULL DEFAULT '[]',
    at_mentions TEXT NOT NULL DEFAULT '[]',
    PRIMARY KEY (prompt_id, timestamp),
    FOREIGN KEY (prompt_id) REFERENCES prompts(id)
);

CREATE INDEX IF NOT EXISTS idx_context_snapshots_timestamp ON context_snapshots(timestamp);

-- Context changes: delta between two consecutive snapshots.
CREATE TABLE IF NOT EXISTS context_changes (
    id TEXT PRIMARY KEY,
    prompt_id INTEGER,
    event_id TEXT NOT NULL DEFAULT '',
    task_id TEXT NOT NULL DEFAULT '',
    session_id TEXT NOT NULL DEFAULT '',
    timestamp TEXT NOT NULL,
    previous_file_count INTEGER NOT NULL DEFAULT 0,
    current_file_count INTEGER NOT NULL DEFAULT 0,
    added TEXT NOT NULL DEFAULT '[]',
    removed TEXT NOT NULL DEFAULT '[]',
    unchanged TEXT NOT NULL DEFAULT '[]',
    net_change INTEGER NOT NULL DEFAULT 0,
    metadata TEXT NOT NULL DEFAULT '{}',
    FOREIGN KEY (prompt_id) REFERENCES prompts(id)
);

CREATE INDEX IF NOT EXISTS idx_context_changes_session ON context_changes(session_id);
CREATE INDEX IF NOT EXISTS idx_context_changes_task ON context_changes(task_id);

-- Status messages: editor UI status strings and their parsed action.
CREATE TABLE IF NOT EXISTS status_messages (
    id TEXT PRIMARY KEY,
    workspace_path TEXT NOT NULL DEFAULT '',
    timestamp TEXT NOT NULL,
    raw TEXT NOT NULL DEFAULT '',
    action TEXT NOT NULL DEFAULT 'status',
    detail TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_status_messages_timestamp ON status_messages(timestamp);

-- Todos and their transition events.
CREATE TABLE IF NOT EXISTS todos (
    id TEXT PRIMARY KEY,
    workspace_path TEXT NOT NULL DEFAULT '',
    text TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending',
    task_order INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    started_at TEXT,
    completed_at TEXT,
    prompt_ids TEXT NOT NULL DEFAULT '[]',
    files_modified TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_todos_status ON todos(status);

CREATE TABLE IF NOT EXISTS todo_events (
    id TEXT PRIMARY KEY,
    todo_id TEXT NOT NULL,
    status TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    FOREIGN KEY (todo_id) REFERENCES todos(id)
);

CREATE INDEX IF NOT EXISTS idx_todo_events_todo ON todo_events(todo_id);

-- Custom field registry (spec.md §4.4 "Schema registry").
CREATE TABLE IF NOT EXISTS schema_config (
    table_name TEXT NOT NULL,
    field_name TEXT NOT NULL,
    workspace_id TEXT,
    display_name TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    enabled INTEGER NOT NULL DEFAULT 1,
    config TEXT NOT NULL DEFAULT '{}'
);

-- SQLite treats NULL as distinct in UNIQUE indices by default, which is
-- exactly invariant 8's "treating a null workspace_id as a distinct key".
CREATE UNIQUE INDEX IF NOT EXISTS uq_schema_config
    ON schema_config(table_name, field_name, workspace_id);

-- Internal metadata (import hashes, generator high-water marks).
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

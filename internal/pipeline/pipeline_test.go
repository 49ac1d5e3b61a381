package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/untoldecay/icpc/internal/adapter"
	"github.com/untoldecay/icpc/internal/correlate"
	"github.com/untoldecay/icpc/internal/hooks"
	"github.com/untoldecay/icpc/internal/model"
	"github.com/untoldecay/icpc/internal/normalize"
)

type fakeStore struct {
	entries       []model.Entry
	prompts       []model.Prompt
	events        []model.Event
	candidates    []model.Prompt
	linkedEntry   int64
	linkedPrompt  int64
	conversations map[string]model.Conversation
}

func newFakeStore() *fakeStore {
	return &fakeStore{conversations: map[string]model.Conversation{}}
}

func (f *fakeStore) CandidatePrompts(ctx context.Context, workspace string, back, forward time.Duration, entryTime time.Time) ([]model.Prompt, error) {
	return f.candidates, nil
}

func (f *fakeStore) LinkEntryPrompt(ctx context.Context, entryID, promptID int64, confidence model.Confidence) error {
	f.linkedEntry = entryID
	f.linkedPrompt = promptID
	return nil
}

func (f *fakeStore) SetEntryConfidence(ctx context.Context, entryID int64, confidence model.Confidence) error {
	return nil
}

func (f *fakeStore) GetConversation(ctx context.Context, id string) (model.Conversation, bool, error) {
	c, ok := f.conversations[id]
	return c, ok, nil
}

func (f *fakeStore) UpsertConversation(ctx context.Context, c model.Conversation) error {
	f.conversations[c.ID] = c
	return nil
}

func (f *fakeStore) ConversationMessageStats(ctx context.Context, conversationID string) (int, time.Time, error) {
	return 0, time.Time{}, nil
}

func (f *fakeStore) SaveEntry(ctx context.Context, e model.Entry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeStore) SavePrompt(ctx context.Context, p model.Prompt) error {
	f.prompts = append(f.prompts, p)
	return nil
}

func (f *fakeStore) SaveTerminalCommand(ctx context.Context, c model.TerminalCommand) error { return nil }
func (f *fakeStore) SaveStatusMessage(ctx context.Context, m model.StatusMessage) error      { return nil }

func (f *fakeStore) SaveEvent(ctx context.Context, e model.Event) error {
	f.events = append(f.events, e)
	return nil
}

func newPipeline(store Store, hookRunner *hooks.Runner) *Pipeline {
	norm := normalize.New(0, 0)
	engine := correlate.New(store, correlate.DefaultWindow)
	return New(norm, engine, store, nil, hookRunner, nil, nil)
}

func TestHandle_EntrySavesAndLinks(t *testing.T) {
	store := newFakeStore()
	base := time.Now()
	store.candidates = []model.Prompt{{ID: 5, Timestamp: base, Workspace: model.Workspace{Path: "/ws"}, Text: "fix main.go"}}
	p := newPipeline(store, nil)

	err := p.Handle(context.Background(), "test", []adapter.Record{{
		Kind:          adapter.KindEntry,
		WorkspacePath: "/ws",
		FilePath:      "main.go",
		Timestamp:     base,
	}})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(store.entries) != 1 {
		t.Fatalf("expected one entry saved, got %d", len(store.entries))
	}
	if store.linkedPrompt != 5 {
		t.Errorf("expected entry to link to prompt 5, got %d", store.linkedPrompt)
	}
}

func TestHandle_EntryFiresEntryCapturedHook(t *testing.T) {
	tmp := t.TempDir()
	hookPath := filepath.Join(tmp, hooks.HookOnEntry)
	marker := filepath.Join(tmp, "fired")
	script := "#!/bin/sh\ntouch " + marker + "\n"
	if err := os.WriteFile(hookPath, []byte(script), 0o755); err != nil {
		t.Fatalf("write hook: %v", err)
	}

	store := newFakeStore()
	runner := hooks.NewRunner(tmp)
	p := newPipeline(store, runner)

	err := p.Handle(context.Background(), "test", []adapter.Record{{
		Kind:          adapter.KindEntry,
		WorkspacePath: "/ws",
		FilePath:      "main.go",
		Timestamp:     time.Now(),
	}})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(marker); err == nil {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("entry_captured hook never fired")
}

func TestHandle_PromptRollsUpConversation(t *testing.T) {
	store := newFakeStore()
	p := newPipeline(store, nil)

	err := p.Handle(context.Background(), "test", []adapter.Record{{
		Kind:          adapter.KindPrompt,
		WorkspacePath: "/ws",
		ComposerID:    "composer-1",
		Text:          "implement feature X",
		Timestamp:     time.Now(),
	}})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(store.prompts) != 1 {
		t.Fatalf("expected one prompt saved, got %d", len(store.prompts))
	}
	if _, ok := store.conversations["composer-1"]; !ok {
		t.Errorf("expected AfterSavePrompt to create a conversation for composer-1")
	}
}

func TestHandle_EventStoresRawMessageWithoutExtractor(t *testing.T) {
	store := newFakeStore()
	p := newPipeline(store, nil)

	err := p.Handle(context.Background(), "test", []adapter.Record{{
		Kind:          adapter.KindEvent,
		WorkspacePath: "/ws",
		Text:          "fixed the ManageColumnsModal bug",
		Timestamp:     time.Now(),
	}})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(store.events) != 1 {
		t.Fatalf("expected one event saved, got %d", len(store.events))
	}
	if _, ok := store.events[0].Details["entities"]; ok {
		t.Errorf("expected no entity extraction when extract pipeline is nil")
	}
}

func TestRankByFilenameSimilarity_PrefersCloserMatch(t *testing.T) {
	entry := model.Entry{FilePath: "internal/foo/bar.go"}
	candidates := []model.Prompt{
		{ID: 1, Text: "totally unrelated discussion about lunch"},
		{ID: 2, Text: "please update bar.go for the new schema"},
	}
	ranked := rankByFilenameSimilarity(entry, candidates)
	if ranked[0].ID != 2 {
		t.Errorf("expected candidate mentioning bar.go to rank first, got %+v", ranked)
	}
}

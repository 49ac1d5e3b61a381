package correlate

import (
	"context"
	"testing"
	"time"

	"github.com/untoldecay/icpc/internal/model"
)

type fakeStore struct {
	candidates    []model.Prompt
	linkedEntry   int64
	linkedPrompt  int64
	linkedConf    model.Confidence
	setConfCalled bool
	setConfValue  model.Confidence
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
	f.linkedConf = confidence
	return nil
}

func (f *fakeStore) SetEntryConfidence(ctx context.Context, entryID int64, confidence model.Confidence) error {
	f.setConfCalled = true
	f.setConfValue = confidence
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

func TestEngine_LinkEntry_HighConfidencePersistsLink(t *testing.T) {
	defer resetThresholds()
	store := newFakeStore()
	base := time.Now()
	store.candidates = []model.Prompt{{ID: 7, Timestamp: base, Workspace: model.Workspace{Path: "/ws"}, Text: "fix a.go"}}

	e := New(store, DefaultWindow)
	entry := model.Entry{ID: 1, Timestamp: base, WorkspacePath: "/ws", FilePath: "a.go"}

	result, err := e.LinkEntry(context.Background(), entry)
	if err != nil {
		t.Fatalf("LinkEntry: %v", err)
	}
	if result.PromptID == nil || *result.PromptID != 7 {
		t.Fatalf("result = %+v, want PromptID 7", result)
	}
	if store.linkedEntry != 1 || store.linkedPrompt != 7 {
		t.Errorf("store was not called with the linked entry/prompt: %+v", store)
	}
}

func TestEngine_LinkEntry_NoneConfidenceRecordsConfidenceNotLink(t *testing.T) {
	store := newFakeStore()
	e := New(store, DefaultWindow)
	entry := model.Entry{ID: 1, Timestamp: time.Now()}

	result, err := e.LinkEntry(context.Background(), entry)
	if err != nil {
		t.Fatalf("LinkEntry: %v", err)
	}
	if result.PromptID != nil {
		t.Errorf("expected no link for zero candidates, got %+v", result)
	}
	if !store.setConfCalled || store.setConfValue != model.ConfidenceNone {
		t.Errorf("expected SetEntryConfidence(none) to be called, got called=%v value=%v", store.setConfCalled, store.setConfValue)
	}
}

func TestEngine_AfterSavePrompt_CreatesConversation(t *testing.T) {
	store := newFakeStore()
	e := New(store, DefaultWindow)

	p := model.Prompt{ID: 1, ComposerID: "composer-1", Text: "hello world", Timestamp: time.Now(), Workspace: model.Workspace{ID: "w1", Path: "/ws"}}
	if err := e.AfterSavePrompt(context.Background(), p); err != nil {
		t.Fatalf("AfterSavePrompt: %v", err)
	}

	conv, ok := store.conversations["composer-1"]
	if !ok {
		t.Fatalf("expected a conversation to be created for composer id %q", "composer-1")
	}
	if conv.Title != "hello world" {
		t.Errorf("Title = %q, want %q", conv.Title, "hello world")
	}
}

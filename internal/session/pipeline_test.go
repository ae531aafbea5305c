package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tokenchat/internal/llm"
	"tokenchat/internal/provider"
	"tokenchat/internal/store"
)

// fakeStorage implements Storage in memory, optionally failing writes.
type fakeStorage struct {
	cred      *store.Credential
	messages  []store.Message
	insertErr error
	nextID    int64
}

func (f *fakeStorage) InsertMessage(m *store.Message) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.nextID++
	m.ID = f.nextID
	f.messages = append(f.messages, *m)
	return nil
}

func (f *fakeStorage) ListMessages(int) ([]store.Message, error) { return f.messages, nil }
func (f *fakeStorage) ClearMessages() error                      { f.messages = nil; return nil }
func (f *fakeStorage) GetCredential() (*store.Credential, error) { return f.cred, nil }
func (f *fakeStorage) AggregateStats() (store.Stats, error) {
	stats := store.Stats{PerModel: make(map[string]store.ModelUsage)}
	for _, m := range f.messages {
		stats.TotalMessages++
		if m.TokenCount != nil {
			stats.TotalTokens += *m.TokenCount
		}
	}
	return stats, nil
}

// fakeClient implements ChatClient with scripted replies.
type fakeClient struct {
	models   []llm.Model
	reply    *llm.Reply
	sendErr  error
	balance  float64
	sends    int
	lastText string
}

func (f *fakeClient) ListModels(context.Context) ([]llm.Model, error) { return f.models, nil }
func (f *fakeClient) SendTurn(_ context.Context, text, _ string) (*llm.Reply, error) {
	f.sends++
	f.lastText = text
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return f.reply, nil
}
func (f *fakeClient) FetchBalance(context.Context) float64 { return f.balance }

func newTestPipeline(t *testing.T, fs *fakeStorage, fc *fakeClient) *Pipeline {
	t.Helper()
	p := New(fs, func(provider.Provider, string) ChatClient { return fc }, Options{})
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return p
}

func authedStorage() *fakeStorage {
	return &fakeStorage{cred: &store.Credential{
		APIKey: "sk-or-v1-test", Provider: "openrouter", PINHash: "h",
	}}
}

func TestSendUnauthenticatedSynthesizesNotice(t *testing.T) {
	fs := &fakeStorage{}
	fc := &fakeClient{}
	p := newTestPipeline(t, fs, fc)

	history, err := p.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history len = %d, want 1 synthesized turn", len(history))
	}
	turn := history[0]
	if turn.IsUser {
		t.Error("synthesized notice marked as user turn")
	}
	if !strings.Contains(turn.Content, "setup") {
		t.Errorf("notice %q should mention configuration", turn.Content)
	}
	if fc.sends != 0 {
		t.Error("network call attempted without credential")
	}
	if p.Analytics().Snapshot().TotalMessages != 0 {
		t.Error("analytics updated for local error turn")
	}
	if len(fs.messages) != 1 {
		t.Error("synthesized turn not persisted")
	}
}

func TestSendNoModelSynthesizesNotice(t *testing.T) {
	fs := authedStorage()
	fc := &fakeClient{} // empty model catalog, nothing auto-selected
	p := newTestPipeline(t, fs, fc)

	history, _ := p.Send(context.Background(), "hello")
	if len(history) != 1 || !strings.Contains(history[0].Content, "model") {
		t.Fatalf("history = %+v, want one no-model notice", history)
	}
	if fc.sends != 0 {
		t.Error("network call attempted without model")
	}
}

func TestSendSuccessPersistsReconcileAndRecords(t *testing.T) {
	fs := authedStorage()
	fc := &fakeClient{
		models: []llm.Model{{
			ID: "gpt-x", PromptPrice: "0.000002", CompletionPrice: "0.000004",
		}},
		reply: &llm.Reply{
			Content: "hi!", PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150,
		},
		balance: 9.75,
	}
	p := newTestPipeline(t, fs, fc)

	history, err := p.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history len = %d, want user + reply", len(history))
	}
	if !history[0].IsUser || history[0].Content != "hello" {
		t.Errorf("first turn = %+v, want the user turn", history[0])
	}
	reply := history[1]
	if reply.IsUser || reply.Content != "hi!" || reply.Model != "gpt-x" {
		t.Errorf("reply turn = %+v", reply)
	}
	if reply.TokenCount == nil || *reply.TokenCount != 150 {
		t.Errorf("reply tokens = %v, want 150", reply.TokenCount)
	}
	wantCost := 100*0.000002 + 50*0.000004
	if reply.Cost == nil || *reply.Cost != wantCost {
		t.Errorf("reply cost = %v, want derived %v", reply.Cost, wantCost)
	}

	snap := p.Analytics().Snapshot()
	if snap.TotalMessages != 1 || snap.TotalTokens != 150 {
		t.Errorf("analytics snapshot = %+v, want one recorded reply", snap)
	}
	if p.Balance() != 9.75 {
		t.Errorf("balance = %v, want refreshed 9.75", p.Balance())
	}
	if p.Sending() {
		t.Error("pipeline stuck in sending state")
	}
}

func TestSendUsesProviderReportedCost(t *testing.T) {
	reported := 0.5
	fs := authedStorage()
	fc := &fakeClient{
		models: []llm.Model{{ID: "gpt-x", PromptPrice: "0.000002", CompletionPrice: "0.000004"}},
		reply:  &llm.Reply{Content: "hi", TotalTokens: 10, PromptTokens: 5, CompletionTokens: 5, Cost: &reported},
	}
	p := newTestPipeline(t, fs, fc)

	history, _ := p.Send(context.Background(), "hello")
	if c := history[1].Cost; c == nil || *c != 0.5 {
		t.Fatalf("cost = %v, want reported 0.5", c)
	}
}

func TestSendFailurePersistsUserTurnAndErrorReply(t *testing.T) {
	fs := authedStorage()
	fc := &fakeClient{
		models:  []llm.Model{{ID: "gpt-x"}},
		sendErr: errors.New("rate limited"),
	}
	p := newTestPipeline(t, fs, fc)

	history, err := p.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history len = %d, want user turn + error reply", len(history))
	}
	if !history[0].IsUser {
		t.Error("user turn lost on failure")
	}
	if !strings.Contains(history[1].Content, "rate limited") {
		t.Errorf("error reply = %q, want provider error text", history[1].Content)
	}
	if history[1].TokenCount != nil || history[1].Cost != nil {
		t.Error("error reply should carry no tokens or cost")
	}
	if p.Analytics().Snapshot().TotalMessages != 0 {
		t.Error("analytics updated for failed turn")
	}
	if p.Sending() {
		t.Error("pipeline stuck in sending state after failure")
	}
}

func TestSendEmptyTextIsIgnored(t *testing.T) {
	fs := authedStorage()
	fc := &fakeClient{models: []llm.Model{{ID: "gpt-x"}}}
	p := newTestPipeline(t, fs, fc)

	history, err := p.Send(context.Background(), "   ")
	if err != nil || len(history) != 0 {
		t.Fatalf("empty send = %v, %v, want no-op", history, err)
	}
	if fc.sends != 0 {
		t.Error("network call for empty text")
	}
}

func TestSendStorageFailureDegradesToMemory(t *testing.T) {
	fs := authedStorage()
	fs.insertErr = errors.New("disk full")
	fc := &fakeClient{
		models: []llm.Model{{ID: "gpt-x"}},
		reply:  &llm.Reply{Content: "hi", TotalTokens: 5},
	}
	p := newTestPipeline(t, fs, fc)

	history, err := p.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send should survive storage failure, got %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("in-memory history len = %d, want 2", len(history))
	}
}

func TestSelectModelTakesEffectNextSend(t *testing.T) {
	fs := authedStorage()
	fc := &fakeClient{
		models: []llm.Model{{ID: "a"}, {ID: "b"}},
		reply:  &llm.Reply{Content: "ok"},
	}
	p := newTestPipeline(t, fs, fc)

	if p.CurrentModel() != "a" {
		t.Fatalf("auto-selected model = %q, want first listed", p.CurrentModel())
	}
	p.SelectModel("b")
	history, _ := p.Send(context.Background(), "hi")
	if history[1].Model != "b" {
		t.Errorf("reply model = %q, want b", history[1].Model)
	}
	p.SelectModel("")
	if p.CurrentModel() != "b" {
		t.Error("empty model id should not clear the slot")
	}
}

func TestClearSessionResetsTurnsAndAnalyticsOnly(t *testing.T) {
	fs := authedStorage()
	fc := &fakeClient{
		models: []llm.Model{{ID: "gpt-x"}},
		reply:  &llm.Reply{Content: "hi", TotalTokens: 8},
	}
	p := newTestPipeline(t, fs, fc)
	_, _ = p.Send(context.Background(), "hello")

	p.ClearSession()

	if len(p.History()) != 0 {
		t.Error("history remains after ClearSession")
	}
	if len(fs.messages) != 0 {
		t.Error("persisted turns remain after ClearSession")
	}
	if p.Analytics().Snapshot().TotalMessages != 0 {
		t.Error("analytics remains after ClearSession")
	}
	if fs.cred == nil {
		t.Error("credential must survive ClearSession")
	}
	if !p.Authenticated() {
		t.Error("authentication state lost on ClearSession")
	}
}

func TestExportHistoryCombinesViews(t *testing.T) {
	fs := authedStorage()
	fc := &fakeClient{
		models: []llm.Model{{ID: "gpt-x"}},
		reply:  &llm.Reply{Content: "hello there", TotalTokens: 40},
	}
	p := newTestPipeline(t, fs, fc)
	_, _ = p.Send(context.Background(), "hi")

	ex := p.ExportHistory()
	if ex.Persisted.TotalMessages != 2 {
		t.Errorf("persisted total = %d, want 2", ex.Persisted.TotalMessages)
	}
	if ex.Session.TotalMessages != 1 {
		t.Errorf("session total = %d, want 1", ex.Session.TotalMessages)
	}
	if len(ex.Samples) != 1 {
		t.Errorf("samples = %d, want 1", len(ex.Samples))
	}
	if ex.Efficiency["gpt-x"] != 40.0 {
		t.Errorf("efficiency = %v, want 40 tokens/message", ex.Efficiency["gpt-x"])
	}
	if ex.Length.MessageCount != 1 {
		t.Errorf("length distribution count = %d, want 1", ex.Length.MessageCount)
	}
}

func TestInitLoadsHistoryAndBalance(t *testing.T) {
	fs := authedStorage()
	fs.messages = []store.Message{
		{ID: 1, Content: "old question", IsUser: true},
		{ID: 2, Content: "old answer"},
	}
	fc := &fakeClient{models: []llm.Model{{ID: "gpt-x"}}, balance: 3.5}
	p := newTestPipeline(t, fs, fc)

	if len(p.History()) != 2 {
		t.Errorf("loaded history len = %d, want 2", len(p.History()))
	}
	if p.Balance() != 3.5 {
		t.Errorf("balance = %v, want 3.5", p.Balance())
	}
	if !p.Authenticated() {
		t.Error("credential not recognized")
	}
}

// Package session orchestrates chat turns: persistence, the remote call,
// cost reconciliation, and analytics, in one sequential flow.
package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"tokenchat/internal/analytics"
	"tokenchat/internal/llm"
	"tokenchat/internal/pricing"
	"tokenchat/internal/provider"
	"tokenchat/internal/store"
)

// ErrBusy is returned when a send is attempted while one is in flight.
var ErrBusy = errors.New("session: a turn is already in flight")

const (
	noCredentialNotice = "No API key configured. Run `tokenchat setup` to add one."
	noModelNotice      = "No model selected. Pick one with `tokenchat models` or in the chat view."
)

// Storage is the slice of the store the pipeline consumes.
type Storage interface {
	InsertMessage(*store.Message) error
	ListMessages(limit int) ([]store.Message, error)
	ClearMessages() error
	GetCredential() (*store.Credential, error)
	AggregateStats() (store.Stats, error)
}

// ChatClient is the remote provider surface the pipeline consumes.
type ChatClient interface {
	ListModels(ctx context.Context) ([]llm.Model, error)
	SendTurn(ctx context.Context, text, modelID string) (*llm.Reply, error)
	FetchBalance(ctx context.Context) float64
}

// ClientFactory builds a chat client once the stored credential is known.
type ClientFactory func(p provider.Provider, apiKey string) ChatClient

// Options tune pipeline initialization.
type Options struct {
	HistoryLimit int    // max turns loaded on start, <=0 for all
	DefaultModel string // preselected model ID, empty to use the first listed
}

// Pipeline owns the session state: credential presence, model slot,
// balance, loading flag, and the in-memory turn sequence. All mutation
// happens from the single sequential chat flow.
type Pipeline struct {
	store     Storage
	factory   ClientFactory
	analytics *analytics.Aggregator
	opts      Options

	client        ChatClient
	authenticated bool
	models        []llm.Model
	currentModel  string
	balance       float64
	sending       bool
	history       []store.Message

	now func() time.Time
}

// New creates a pipeline over the given store. Call Init before Send.
func New(st Storage, factory ClientFactory, opts Options) *Pipeline {
	return &Pipeline{
		store:     st,
		factory:   factory,
		analytics: analytics.New(),
		opts:      opts,
		balance:   -1,
		now:       time.Now,
	}
}

// Init loads the credential, model catalog, balance, and history.
// A missing model list or balance degrades the session, never fails it.
func (p *Pipeline) Init(ctx context.Context) error {
	cred, err := p.store.GetCredential()
	if err != nil {
		log.Printf("session: reading credential: %v", err)
	}
	if cred != nil {
		if prov, ok := provider.Parse(cred.Provider); ok {
			p.client = p.factory(prov, cred.APIKey)
			p.authenticated = true
		} else {
			log.Printf("session: stored credential has unknown provider %q", cred.Provider)
		}
	}

	history, err := p.store.ListMessages(p.opts.HistoryLimit)
	if err != nil {
		log.Printf("session: loading history: %v", err)
	} else {
		p.history = history
	}

	if !p.authenticated {
		return nil
	}

	models, err := p.client.ListModels(ctx)
	if err != nil {
		// Session starts with an empty catalog; sends surface the gap.
		log.Printf("session: %v", err)
	} else {
		p.models = models
	}

	p.currentModel = p.opts.DefaultModel
	if p.currentModel == "" && len(p.models) > 0 {
		p.currentModel = p.models[0].ID
	}

	p.balance = p.client.FetchBalance(ctx)
	return nil
}

// Send runs one chat turn. Every failure path synthesizes a persisted
// error reply and returns the pipeline to idle; only ErrBusy and empty
// input short-circuit. The returned slice is the updated turn sequence.
func (p *Pipeline) Send(ctx context.Context, text string) ([]store.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return p.History(), nil
	}
	if p.sending {
		return p.History(), ErrBusy
	}
	p.sending = true
	defer func() { p.sending = false }()

	if !p.authenticated {
		p.appendLocal(noCredentialNotice)
		return p.History(), nil
	}
	if p.currentModel == "" {
		p.appendLocal(noModelNotice)
		return p.History(), nil
	}

	// The user turn is persisted before the network call so it survives
	// a failed send.
	userTurn := store.Message{Content: text, IsUser: true, CreatedAt: p.now()}
	p.persist(&userTurn)

	start := p.now()
	reply, err := p.client.SendTurn(ctx, text, p.currentModel)
	if err != nil {
		p.appendLocal("Error: " + err.Error())
		return p.History(), nil
	}
	latency := p.now().Sub(start).Seconds()

	m := p.modelByID(p.currentModel)
	cost := pricing.Reconcile(reply.Cost, reply.PromptTokens, reply.CompletionTokens,
		m.PromptPrice, m.CompletionPrice)
	tokens := reply.TotalTokens

	replyTurn := store.Message{
		Content:    reply.Content,
		CreatedAt:  p.now(),
		Model:      p.currentModel,
		TokenCount: &tokens,
		Cost:       &cost,
	}
	p.persist(&replyTurn)

	// Only genuine remote successes feed analytics.
	p.analytics.Record(p.currentModel, len(reply.Content), latency, tokens)

	p.balance = p.client.FetchBalance(ctx)
	return p.History(), nil
}

// appendLocal synthesizes and persists an error reply turn.
// These turns carry no model, tokens, or cost and never reach analytics.
func (p *Pipeline) appendLocal(text string) {
	m := store.Message{Content: text, CreatedAt: p.now()}
	p.persist(&m)
}

// persist writes a turn, falling back to in-memory-only on storage
// failure so the conversation stays alive.
func (p *Pipeline) persist(m *store.Message) {
	if err := p.store.InsertMessage(m); err != nil {
		log.Printf("session: persisting turn: %v", err)
	}
	p.history = append(p.history, *m)
}

func (p *Pipeline) modelByID(id string) llm.Model {
	for _, m := range p.models {
		if m.ID == id {
			return m
		}
	}
	return llm.Model{ID: id}
}

// SelectModel changes the single model slot. Takes effect on the next
// send; history is never reprocessed.
func (p *Pipeline) SelectModel(id string) {
	if id != "" {
		p.currentModel = id
	}
}

// ClearSession clears persisted turns and session analytics. The stored
// credential is untouched.
func (p *Pipeline) ClearSession() {
	if err := p.store.ClearMessages(); err != nil {
		log.Printf("session: clearing history: %v", err)
	}
	p.history = nil
	p.analytics.Clear()
}

// Export is the combined analytics payload: persisted totals plus the
// in-memory session view.
type Export struct {
	Persisted  store.Stats            `json:"persisted"`
	Session    analytics.Snapshot     `json:"session"`
	Samples    []analytics.Sample     `json:"samples"`
	Efficiency map[string]float64     `json:"efficiency_by_model"`
	Latency    analytics.LatencyStats `json:"latency_distribution"`
	Length     analytics.LengthStats  `json:"length_distribution"`
}

// ExportHistory assembles the combined payload. A storage failure leaves
// the persisted section empty but still returns the in-memory view.
func (p *Pipeline) ExportHistory() Export {
	persisted, err := p.store.AggregateStats()
	if err != nil {
		log.Printf("session: aggregating history: %v", err)
		persisted = store.Stats{PerModel: map[string]store.ModelUsage{}}
	}
	return Export{
		Persisted:  persisted,
		Session:    p.analytics.Snapshot(),
		Samples:    p.analytics.Samples(),
		Efficiency: p.analytics.EfficiencyByModel(),
		Latency:    p.analytics.LatencyDistribution(),
		Length:     p.analytics.LengthDistribution(),
	}
}

// History returns a copy of the in-memory turn sequence.
func (p *Pipeline) History() []store.Message {
	out := make([]store.Message, len(p.history))
	copy(out, p.history)
	return out
}

// Models returns the session's model catalog.
func (p *Pipeline) Models() []llm.Model { return p.models }

// CurrentModel returns the selected model ID, empty when none.
func (p *Pipeline) CurrentModel() string { return p.currentModel }

// Balance returns the last fetched account balance, -1 when unknown.
func (p *Pipeline) Balance() float64 { return p.balance }

// Sending reports whether a turn is in flight.
func (p *Pipeline) Sending() bool { return p.sending }

// Authenticated reports whether a credential was loaded.
func (p *Pipeline) Authenticated() bool { return p.authenticated }

// Analytics exposes the session aggregator.
func (p *Pipeline) Analytics() *analytics.Aggregator { return p.analytics }

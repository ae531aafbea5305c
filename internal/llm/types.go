package llm

// Model describes one chat model offered by a provider.
// Prices are per-token decimal strings exactly as the provider serves them;
// a missing price stays empty and costs out to zero downstream.
type Model struct {
	ID              string
	DisplayName     string
	PromptPrice     string
	CompletionPrice string
	ContextLength   int64
}

// Reply is the normalized result of a successful chat completion.
type Reply struct {
	Content          string
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	// Cost is the provider-reported charge in USD, nil when the provider
	// does not report one (it is then derived from per-token prices).
	Cost *float64
}

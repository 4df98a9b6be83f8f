package ai

import (
	"context"
	"fmt"
)

// Kind identifies a concrete provider backend. The set is closed: the
// factory dispatches over these tags and rejects anything else.
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindGoogle    Kind = "google"
	KindOllama    Kind = "ollama"
	KindVLLM      Kind = "vllm"
)

// ILLMProvider is the completion capability. Both methods issue a two-message
// exchange (fixed system instruction + user turn embedding the context block
// and the question) against the configured backend; nothing is cached or
// retried here.
type ILLMProvider interface {
	Name() string
	Generate(ctx context.Context, question string, contextBlock string) (string, error)
	// Stream issues a fresh model request and returns its token fragments as
	// a lazily-pulled sequence. The stream is finite and not restartable;
	// Close releases the underlying connection and is safe to call at any
	// point, including before exhaustion.
	Stream(ctx context.Context, question string, contextBlock string) (ITokenStream, error)
}

// IEmbeddingProvider is the embedding capability. Batch output preserves
// input order.
type IEmbeddingProvider interface {
	Name() string
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ITokenStream is a finite, pull-based token sequence. Recv returns io.EOF
// once the model is done; Close may be called concurrently with Recv to
// abandon the stream early.
type ITokenStream interface {
	Recv() (string, error)
	Close() error
}

// Config carries the per-provider construction parameters resolved from the
// process configuration. BaseURL is required for self-hosted backends and
// optional elsewhere.
type Config struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url"`
}

// UnknownProviderError reports a tag outside the closed Kind set. It is
// raised synchronously at construction time, never lazily.
type UnknownProviderError struct {
	Kind string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown ai provider: %q (supported: openai, anthropic, google, ollama, vllm)", e.Kind)
}

// ProviderError wraps a transport or backend failure from a provider call.
// Retry policy, if any, belongs to the caller.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func provErr(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

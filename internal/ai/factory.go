package ai

import (
	"fmt"
	"strings"
)

// Factory builds providers from configuration tags. Dispatch is a closed
// switch over Kind so a bad tag fails at construction time, never on the
// first request. The factory holds no instances; the engine owns whatever it
// creates for the process lifetime.
type Factory struct {
	llm       Config
	llmKind   Kind
	embed     Config
	embedKind Kind
}

// NewFactory captures the process-wide defaults. The embedding API key falls
// back to the LLM key when the embedding-specific one is empty.
func NewFactory(llmKind Kind, llm Config, embedKind Kind, embed Config) *Factory {
	if strings.TrimSpace(embed.APIKey) == "" {
		embed.APIKey = llm.APIKey
	}
	return &Factory{llm: llm, llmKind: llmKind, embed: embed, embedKind: embedKind}
}

// CreateLLM builds an LLM provider for kind, or for the configured default
// when kind is empty.
func (f *Factory) CreateLLM(kind Kind) (ILLMProvider, error) {
	if kind == "" {
		kind = f.llmKind
	}
	switch normalizeKind(kind) {
	case KindOpenAI:
		return newOpenAIProvider("openai", f.llm), nil
	case KindAnthropic:
		return newAnthropicProvider(f.llm), nil
	case KindGoogle:
		return newGoogleProvider(f.llm), nil
	case KindOllama:
		return newOllamaProvider(f.llm), nil
	case KindVLLM:
		if strings.TrimSpace(f.llm.BaseURL) == "" {
			return nil, fmt.Errorf("vllm provider requires base_url")
		}
		return newOpenAIProvider("vllm", f.llm), nil
	default:
		return nil, &UnknownProviderError{Kind: string(kind)}
	}
}

// CreateEmbedding builds an embedding provider for kind, or for the
// configured default when kind is empty. Anthropic exposes no embeddings
// API, so it is not a valid embedding kind.
func (f *Factory) CreateEmbedding(kind Kind) (IEmbeddingProvider, error) {
	if kind == "" {
		kind = f.embedKind
	}
	switch normalizeKind(kind) {
	case KindOpenAI:
		return newOpenAIEmbedProvider("openai", f.embed), nil
	case KindGoogle:
		return newGoogleEmbedProvider(f.embed), nil
	case KindOllama:
		return newOllamaEmbedProvider(f.embed), nil
	case KindVLLM:
		if strings.TrimSpace(f.embed.BaseURL) == "" {
			return nil, fmt.Errorf("vllm embedding provider requires base_url")
		}
		return newOpenAIEmbedProvider("vllm", f.embed), nil
	default:
		return nil, &UnknownProviderError{Kind: string(kind)}
	}
}

func normalizeKind(kind Kind) Kind {
	return Kind(strings.ToLower(strings.TrimSpace(string(kind))))
}

package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type googleProvider struct {
	apiKey string
	model  string
}

func newGoogleProvider(cfg Config) *googleProvider {
	return &googleProvider{apiKey: strings.TrimSpace(cfg.APIKey), model: cfg.Model}
}

func (p *googleProvider) Name() string {
	return "google"
}

func (p *googleProvider) client(ctx context.Context) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

func (p *googleProvider) contents(question string, contextBlock string) []*genai.Content {
	return []*genai.Content{
		{Parts: []*genai.Part{{Text: userPrompt(question, contextBlock)}}},
	}
}

func (p *googleProvider) genConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
	}
}

func (p *googleProvider) Generate(ctx context.Context, question string, contextBlock string) (string, error) {
	client, err := p.client(ctx)
	if err != nil {
		return "", provErr("google", "generate", err)
	}
	resp, err := client.Models.GenerateContent(ctx, p.model, p.contents(question, contextBlock), p.genConfig())
	if err != nil {
		return "", provErr("google", "generate", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (p *googleProvider) Stream(ctx context.Context, question string, contextBlock string) (ITokenStream, error) {
	client, err := p.client(ctx)
	if err != nil {
		return nil, provErr("google", "stream", err)
	}
	streamCtx, cancel := context.WithCancel(ctx)
	stream := newChanStream(cancel)
	go func() {
		defer cancel()
		for resp, err := range client.Models.GenerateContentStream(streamCtx, p.model, p.contents(question, contextBlock), p.genConfig()) {
			if err != nil {
				stream.finish(provErr("google", "stream", err))
				return
			}
			if text := resp.Text(); text != "" {
				if !stream.send(text) {
					return
				}
			}
		}
		stream.finish(nil)
	}()
	return stream, nil
}

type googleEmbedProvider struct {
	apiKey string
	model  string
}

func newGoogleEmbedProvider(cfg Config) *googleEmbedProvider {
	return &googleEmbedProvider{apiKey: strings.TrimSpace(cfg.APIKey), model: cfg.Model}
}

func (p *googleEmbedProvider) Name() string {
	return "google"
}

func (p *googleEmbedProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *googleEmbedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, provErr("google", "embed", err)
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: text}}})
	}
	resp, err := client.Models.EmbedContent(ctx, p.model, contents, nil)
	if err != nil {
		return nil, provErr("google", "embed", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, provErr("google", "embed", fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings)))
	}
	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// ollamaProvider targets a local Ollama daemon. Chat streaming uses the
// daemon's NDJSON framing rather than SSE.
type ollamaProvider struct {
	model   string
	baseURL string
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []openAIChatMsg `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func newOllamaProvider(cfg Config) *ollamaProvider {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &ollamaProvider{model: cfg.Model, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *ollamaProvider) Name() string {
	return "ollama"
}

func (p *ollamaProvider) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func (p *ollamaProvider) Generate(ctx context.Context, question string, contextBlock string) (string, error) {
	resp, err := p.post(ctx, "/api/chat", ollamaChatRequest{
		Model: p.model,
		Messages: []openAIChatMsg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(question, contextBlock)},
		},
		Stream: false,
	})
	if err != nil {
		return "", provErr("ollama", "generate", err)
	}
	defer resp.Body.Close()
	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", provErr("ollama", "generate", err)
	}
	return strings.TrimSpace(out.Message.Content), nil
}

func (p *ollamaProvider) Stream(ctx context.Context, question string, contextBlock string) (ITokenStream, error) {
	resp, err := p.post(ctx, "/api/chat", ollamaChatRequest{
		Model: p.model,
		Messages: []openAIChatMsg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(question, contextBlock)},
		},
		Stream: true,
	})
	if err != nil {
		return nil, provErr("ollama", "stream", err)
	}
	stream := newChanStream(func() { resp.Body.Close() })
	go func() {
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var chunk ollamaChatResponse
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				stream.finish(provErr("ollama", "stream", err))
				return
			}
			if chunk.Message.Content != "" {
				if !stream.send(chunk.Message.Content) {
					return
				}
			}
			if chunk.Done {
				break
			}
		}
		if err := scanner.Err(); err != nil {
			stream.finish(provErr("ollama", "stream", err))
			return
		}
		stream.finish(nil)
	}()
	return stream, nil
}

type ollamaEmbedProvider struct {
	model   string
	baseURL string
}

func newOllamaEmbedProvider(cfg Config) *ollamaEmbedProvider {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &ollamaEmbedProvider{model: cfg.Model, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *ollamaEmbedProvider) Name() string {
	return "ollama"
}

func (p *ollamaEmbedProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	data, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, provErr("ollama", "embed", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, provErr("ollama", "embed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, provErr("ollama", "embed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return nil, provErr("ollama", "embed", fmt.Errorf("request failed: %s: %s", resp.Status, strings.TrimSpace(string(body))))
	}
	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, provErr("ollama", "embed", err)
	}
	if len(out.Embedding) == 0 {
		return nil, provErr("ollama", "embed", fmt.Errorf("response has no embedding"))
	}
	return out.Embedding, nil
}

// The embeddings endpoint is single-input, so batches issue one request per
// text, preserving order.
func (p *ollamaEmbedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := p.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docchat-dev/docchat/internal/ai"
	"github.com/docchat-dev/docchat/internal/model"
)

// NoResultsMessage is the sentinel answer returned when retrieval yields no
// qualifying chunks. It is a normal outcome, never an error, and the LLM is
// not consulted for it.
const NoResultsMessage = "The requested information could not be found. The provided documents contain nothing relevant to this question."

// EngineInitError reports a failed provider or store construction during
// Initialize. The engine stays uninitialized and the next call may retry.
type EngineInitError struct {
	Err error
}

func (e *EngineInitError) Error() string {
	return fmt.Sprintf("rag engine initialization failed: %v", e.Err)
}

func (e *EngineInitError) Unwrap() error {
	return e.Err
}

// StoreOpener builds the vector store bound to the embedding provider the
// engine constructed. Opening may fail fatally (unreachable database,
// failed migration).
type StoreOpener func(ctx context.Context, embedder ai.IEmbeddingProvider) (VectorStore, error)

// Options carries the retrieval and chunking parameters the engine reads
// once at initialization.
type Options struct {
	ChunkSize      int
	ChunkOverlap   int
	TopK           int
	ScoreThreshold float64
}

// Engine orchestrates the RAG pipeline: it owns the single LLM provider,
// embedding provider, and vector store handle for the process lifetime and
// drives ingestion, the synchronous query path, and the streaming path.
// Construct it once and inject it into request handlers.
type Engine struct {
	factory   *ai.Factory
	openStore StoreOpener
	opts      Options

	mu          sync.Mutex
	initialized bool
	llm         ai.ILLMProvider
	embedding   ai.IEmbeddingProvider
	store       VectorStore
	retriever   *Retriever
	chunker     *Chunker
}

func NewEngine(factory *ai.Factory, openStore StoreOpener, opts Options) *Engine {
	return &Engine{factory: factory, openStore: openStore, opts: opts}
}

// Initialize constructs the providers and the vector store. It is
// idempotent and serialized: concurrent first requests cannot double-
// construct, and a second call after success returns immediately. On
// failure the engine remains uninitialized and the error wraps
// EngineInitError.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return nil
	}

	llm, err := e.factory.CreateLLM("")
	if err != nil {
		return &EngineInitError{Err: err}
	}
	embedding, err := e.factory.CreateEmbedding("")
	if err != nil {
		return &EngineInitError{Err: err}
	}
	store, err := e.openStore(ctx, embedding)
	if err != nil {
		return &EngineInitError{Err: err}
	}
	chunker, err := NewChunker(e.opts.ChunkSize, e.opts.ChunkOverlap)
	if err != nil {
		return &EngineInitError{Err: err}
	}

	e.llm = llm
	e.embedding = embedding
	e.store = store
	e.retriever = NewRetriever(store, e.opts.TopK, e.opts.ScoreThreshold)
	e.chunker = chunker
	e.initialized = true

	logutil.GetLogger(ctx).Info("rag engine ready",
		zap.String("llm", llm.Name()),
		zap.String("embedding", embedding.Name()),
	)
	return nil
}

// Initialized reports readiness; the health probe consumes it.
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// LLM panics when the engine has not been initialized; calling it early is
// a programming error, not a recoverable condition.
func (e *Engine) LLM() ai.ILLMProvider {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		panic("rag engine not initialized")
	}
	return e.llm
}

// VectorStore panics when the engine has not been initialized.
func (e *Engine) VectorStore() VectorStore {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		panic("rag engine not initialized")
	}
	return e.store
}

// preprocessQuery collapses whitespace runs, trims, and strips one trailing
// question mark (halfwidth or fullwidth). A query that normalizes to the
// empty string, e.g. "?" alone, falls back to the original text so it stays
// searchable.
func preprocessQuery(question string) string {
	cleaned := strings.Join(strings.Fields(question), " ")
	if runes := []rune(cleaned); len(runes) > 0 {
		if last := runes[len(runes)-1]; last == '?' || last == '？' {
			cleaned = strings.TrimSpace(string(runes[:len(runes)-1]))
		}
	}
	if cleaned == "" {
		return question
	}
	return cleaned
}

// Query answers a question from the indexed documents. Retrieval uses the
// preprocessed question; the LLM receives the original text. When nothing
// qualifies the sentinel answer and an empty source list come back without
// touching the LLM.
func (e *Engine) Query(ctx context.Context, question string) (string, []model.SourceInfo, error) {
	retriever := e.Retriever()
	results, err := retriever.Retrieve(ctx, preprocessQuery(question))
	if err != nil {
		return "", nil, err
	}
	if len(results) == 0 {
		return NoResultsMessage, []model.SourceInfo{}, nil
	}

	answer, err := e.LLM().Generate(ctx, question, BuildContext(results))
	if err != nil {
		return "", nil, err
	}
	return answer, sourceInfos(results), nil
}

// QueryStream answers a question as a lazily-pulled event sequence: token
// events in provider order, then one sources event, then one done event.
// The empty-retrieval path yields one sentinel token and done, with no
// sources event (asymmetric with Query on purpose, matching observed
// behavior). Nothing is persisted here; a consumer that abandons the stream
// before done commits no side effect.
func (e *Engine) QueryStream(ctx context.Context, question string) (*EventStream, error) {
	retriever := e.Retriever()
	results, err := retriever.Retrieve(ctx, preprocessQuery(question))
	if err != nil {
		return nil, err
	}

	stream := newEventStream()
	if len(results) == 0 {
		go func() {
			if !stream.emit(QueryEvent{Type: EventToken, Content: NoResultsMessage}) {
				stream.finish(nil)
				return
			}
			stream.emit(QueryEvent{Type: EventDone})
			stream.finish(nil)
		}()
		return stream, nil
	}

	llm := e.LLM()
	go func() {
		tokens, err := llm.Stream(ctx, question, BuildContext(results))
		if err != nil {
			stream.finish(err)
			return
		}
		defer tokens.Close()

		for {
			token, err := tokens.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				stream.finish(err)
				return
			}
			if !stream.emit(QueryEvent{Type: EventToken, Content: token}) {
				stream.finish(nil)
				return
			}
		}
		if !stream.emit(QueryEvent{Type: EventSources, Sources: sourceInfos(results)}) {
			stream.finish(nil)
			return
		}
		stream.emit(QueryEvent{Type: EventDone})
		stream.finish(nil)
	}()
	return stream, nil
}

// LoadAndIndexFile loads a document, chunks it, stamps every chunk with the
// source filename and one fresh document id, and indexes the lot. Re-
// ingesting the same filename creates a new document id and new entries; it
// never merges with or replaces earlier chunks unless the caller deletes by
// source first.
func (e *Engine) LoadAndIndexFile(ctx context.Context, path string) (string, int, error) {
	chunker, store := e.ingestDeps()

	content, err := loadFile(path)
	if err != nil {
		return "", 0, err
	}

	pieces := chunker.Split(content)
	documentID := uuid.NewString()
	source := filepath.Base(path)

	chunks := make([]model.DocumentChunk, 0, len(pieces))
	for _, piece := range pieces {
		chunks = append(chunks, model.DocumentChunk{
			Content:    piece,
			Source:     source,
			DocumentID: documentID,
		})
	}
	if _, err := store.AddDocuments(ctx, chunks); err != nil {
		return "", 0, err
	}

	logutil.GetLogger(ctx).Info("indexed file",
		zap.String("source", source),
		zap.String("document_id", documentID),
		zap.Int("chunks", len(chunks)),
	)
	return documentID, len(chunks), nil
}

// Retriever panics when the engine has not been initialized.
func (e *Engine) Retriever() *Retriever {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		panic("rag engine not initialized")
	}
	return e.retriever
}

func (e *Engine) ingestDeps() (*Chunker, VectorStore) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		panic("rag engine not initialized")
	}
	return e.chunker, e.store
}

func sourceInfos(results []model.SearchResult) []model.SourceInfo {
	infos := make([]model.SourceInfo, 0, len(results))
	for _, res := range results {
		infos = append(infos, model.NewSourceInfo(res))
	}
	return infos
}

package usecase

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vaultrag/config"
	"vaultrag/internal/adapter/chunker"
	"vaultrag/internal/adapter/embedding"
	"vaultrag/internal/adapter/fs"
	"vaultrag/internal/adapter/memstore"
	"vaultrag/internal/adapter/retriever"
	"vaultrag/internal/adapter/vectorindex"
	"vaultrag/internal/domain"
	"vaultrag/internal/port"
)

const testDim = 64

var testVault = map[string]string{
	"Projects/Routing.md":  "routing configuration notes for the home lab network",
	"Hardware/Mini PC.md":  "---\ntype: hardware\n---\n# Specs\nMini PC hardware specs: 32GB RAM, Ryzen 7 CPU.\n",
	"Recipes/Soup.txt":     "unrelated recipe text about tomato soup",
	".obsidian/config.md":  "ignored",
	"Hardware/diagram.png": "not text",
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// touch rewrites a file and moves its mod time forward so it differs from
// the indexed copy even on coarse-grained filesystems.
func touch(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(p, later, later))
}

type pipeline struct {
	root      string
	index     *vectorindex.Index
	embedder  port.Embedder
	indexer   *IndexUseCase
	ranker    *retriever.HybridRanker
	assembler *Assembler
	sessions  *memstore.SessionStore
}

func newPipeline(t *testing.T, windowSize, overlap int, emb port.Embedder) *pipeline {
	t.Helper()
	cfg := config.DefaultConfig()

	root := t.TempDir()
	writeFiles(t, root, testVault)

	if emb == nil {
		emb = embedding.NewMockEmbedder(testDim)
	}
	ch, err := chunker.NewWindowChunker(windowSize, overlap)
	require.NoError(t, err)

	idx := vectorindex.New(port.IndexMeta{Dimension: testDim}, nil)
	walker := fs.NewWalker(cfg.Index.Includes, cfg.Index.Excludes)
	ranker, err := retriever.NewHybridRanker(idx, emb, nil, retriever.DefaultWeights())
	require.NoError(t, err)

	return &pipeline{
		root:      root,
		index:     idx,
		embedder:  emb,
		indexer:   NewIndexUseCase(walker, ch, emb, idx, 2, 2),
		ranker:    ranker,
		assembler: NewAssembler(idx, cfg.Assemble),
		sessions:  memstore.NewSessionStore(cfg.Session.MaxTurns, cfg.Session.TTL),
	}
}

func (p *pipeline) rebuild(t *testing.T) *IndexResult {
	t.Helper()
	res, err := p.indexer.Rebuild(context.Background(), p.root, nil)
	require.NoError(t, err)
	return res
}

// gateEmbedder blocks every call until release is closed.
type gateEmbedder struct {
	inner   port.Embedder
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGateEmbedder() *gateEmbedder {
	return &gateEmbedder{
		inner:   embedding.NewMockEmbedder(testDim),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gateEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.inner.Embed(ctx, texts)
}

func (g *gateEmbedder) Dimension() int    { return testDim }
func (g *gateEmbedder) ModelName() string { return "gate" }

// recordingGenerator returns a fixed answer and keeps every prompt.
type recordingGenerator struct {
	mu      sync.Mutex
	prompts []string
	answer  string
	err     error
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return g.answer, g.err
}

func (g *recordingGenerator) ModelName() string { return "recording" }

func (g *recordingGenerator) last() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

// mapResolver resolves a fixed set of document ids.
type mapResolver map[string]domain.SourceInfo

func (m mapResolver) Document(id string) (domain.SourceInfo, bool) {
	info, ok := m[id]
	return info, ok
}

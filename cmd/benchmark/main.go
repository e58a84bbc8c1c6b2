package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"vaultrag/config"
	"vaultrag/internal/adapter/analyzer"
	"vaultrag/internal/adapter/embedding"
	"vaultrag/internal/adapter/retriever"
	"vaultrag/internal/adapter/store"
	"vaultrag/internal/adapter/vectorindex"
)

func main() {
	indexPath := flag.String("index", ".", "Path to indexed vault")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -index ~/vault -q \"query\"")
		fmt.Println("\nCompares:")
		fmt.Println("  1. Pure semantic nearest neighbours")
		fmt.Println("  2. Hybrid ranking (filename, keyword and type boosts)")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*indexPath)
	if err != nil {
		fail("Error loading config: %v", err)
	}

	st, err := store.NewBoltStore(config.IndexDBPath(*indexPath))
	if err != nil {
		fail("Error opening index: %v", err)
	}
	defer st.Close()

	migration, err := st.CheckMigration(cfg)
	if err != nil {
		fail("Error checking index: %v", err)
	}
	if migration.NeedsRebuild {
		fail("Index is stale (%s); run 'vaultrag index --full'", migration.Reason)
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		fail("Embedder init failed: %v", err)
	}
	index, err := vectorindex.Open(store.NewMeta(cfg, 0), st)
	if err != nil {
		fail("Index open failed: %v", err)
	}
	snap := index.Snapshot()
	if snap.Len() == 0 {
		fail("No embeddings - run 'vaultrag index' first")
	}

	fmt.Println("VAULT SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Chunks indexed: %d (generation %d)\n", snap.Len(), snap.ID())
	fmt.Printf("Model: %s (%s)\n", embedder.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n\n", snap.Dimension())
	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	ctx := context.Background()
	queryVec, err := embedder.EmbedQuery(ctx, *query)
	if err != nil {
		fail("Embedding error: %v", err)
	}
	neighbors, err := snap.QueryNearest(queryVec, *topK)
	if err != nil {
		fail("Search error: %v", err)
	}

	fmt.Printf("Top %d semantic matches:\n\n", len(neighbors))
	total := 0.0
	for i, n := range neighbors {
		sim := retriever.Similarity(n.Distance)
		total += sim
		fmt.Printf("%d. [%s %.3f] %s\n", i+1, rating(sim), sim, n.Entry.Chunk.ID)
		fmt.Printf("   %s\n\n", preview(n.Entry.Chunk.Body(), 150))
	}

	ranker, err := retriever.NewHybridRanker(index, embedder, analyzer.NewTokenizer(), retriever.Weights{
		WidenFactor:   cfg.Retrieve.WidenFactor,
		FilenameBonus: cfg.Retrieve.FilenameBonus,
		BodyTermBonus: cfg.Retrieve.BodyTermBonus,
		MaxBodyTerms:  cfg.Retrieve.MaxBodyTerms,
	})
	if err != nil {
		fail("Ranker init failed: %v", err)
	}
	results, err := ranker.Search(ctx, *query, *topK, cfg.Boost())
	if err != nil {
		fail("Hybrid search error: %v", err)
	}

	fmt.Println(strings.Repeat("-", 70))
	fmt.Printf("Top %d hybrid matches:\n\n", len(results))
	promoted := 0
	for i, r := range results {
		if i >= len(neighbors) || neighbors[i].Entry.Chunk.ID != r.ChunkID {
			promoted++
		}
		fmt.Printf("%d. [%.3f = %.3f + kw %.2f + type %.2f] %s (%s)\n",
			i+1, r.FinalScore, r.Similarity, r.KeywordScore, r.TypeBoost, r.ChunkID, r.DocType)
	}

	avg := 0.0
	if len(neighbors) > 0 {
		avg = total / float64(len(neighbors))
	}
	fmt.Println()
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println("QUALITY METRICS:")
	fmt.Printf("  Average similarity: %.3f\n", avg)
	if len(neighbors) > 0 {
		fmt.Printf("  Top-1 similarity:   %.3f\n", retriever.Similarity(neighbors[0].Distance))
	}
	fmt.Printf("  Positions changed by boosts: %d/%d\n", promoted, len(results))

	switch {
	case avg > 0.5:
		fmt.Println("  Status: GOOD - semantic search working well")
	case avg > 0.3:
		fmt.Println("  Status: OK - results are somewhat related")
	default:
		fmt.Println("  Status: POOR - may need better embeddings or re-indexing")
	}
}

func rating(sim float64) string {
	switch {
	case sim > 0.7:
		return "HIGH"
	case sim > 0.5:
		return "GOOD"
	case sim > 0.3:
		return "OK"
	}
	return "LOW"
}

func preview(text string, n int) string {
	r := []rune(strings.ReplaceAll(text, "\n", " "))
	if len(r) > n {
		return string(r[:n]) + "..."
	}
	return string(r)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

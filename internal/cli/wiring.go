package cli

import (
	"errors"
	"fmt"

	"vaultrag/config"
	"vaultrag/internal/adapter/analyzer"
	"vaultrag/internal/adapter/cache"
	"vaultrag/internal/adapter/chunker"
	"vaultrag/internal/adapter/embedding"
	"vaultrag/internal/adapter/fs"
	"vaultrag/internal/adapter/llm"
	"vaultrag/internal/adapter/memstore"
	"vaultrag/internal/adapter/retriever"
	"vaultrag/internal/adapter/sqlite"
	"vaultrag/internal/adapter/store"
	"vaultrag/internal/adapter/vectorindex"
	"vaultrag/internal/logger"
	"vaultrag/internal/port"
	"vaultrag/internal/usecase"
)

// app holds every component built from the configuration for one vault.
type app struct {
	cfg      *config.Config
	root     string
	store    *store.BoltStore
	index    *vectorindex.Index
	embedder *embedding.Gateway
	walker   *fs.Walker

	// stale is set when the stored generation was built with other index
	// settings and must be rebuilt before incremental updates.
	stale bool

	retriever port.Retriever
	indexer   *usecase.IndexUseCase
	sessions  *memstore.SessionStore
	journal   *sqlite.Journal
	chat      *usecase.ChatUseCase
	verify    *usecase.VerifyUseCase
}

type openOptions struct {
	// clearStale wipes an index whose schema or configuration no longer
	// matches instead of failing. Only indexing commands set it.
	clearStale bool
	// generator builds the chat model client.
	generator bool
}

// openApp opens the vault's index and wires the use cases.
func openApp(cfg *config.Config, root string, opts openOptions) (*app, error) {
	if err := config.EnsureDataDir(root); err != nil {
		return nil, fmt.Errorf("failed to create .vaultrag directory: %w", err)
	}

	st, err := store.NewBoltStore(config.IndexDBPath(root))
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}
	a := &app{cfg: cfg, root: root, store: st}

	if err := a.open(opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) open(opts openOptions) error {
	cfg := a.cfg

	migration, err := a.store.CheckMigration(cfg)
	if err != nil {
		return fmt.Errorf("failed to check migration: %w", err)
	}
	if migration.NeedsRebuild {
		if !opts.clearStale {
			if migration.Dimension != nil {
				return fmt.Errorf("index rebuild required; run 'vaultrag index --full': %w", migration.Dimension)
			}
			return fmt.Errorf("index rebuild required (%s); run 'vaultrag index --full'", migration.Reason)
		}
		if migration.KeepData {
			logger.Warn("index rebuild required: %s; keeping the current index until the rebuild completes", migration.Reason)
			a.stale = true
		} else {
			logger.Warn("index rebuild required: %s; clearing existing index", migration.Reason)
			if err := a.store.Clear(); err != nil {
				return fmt.Errorf("failed to clear index: %w", err)
			}
		}
	}

	a.embedder, err = embedding.New(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	a.index, err = vectorindex.Open(store.NewMeta(cfg, 0), a.store)
	if err != nil {
		return err
	}

	weights := retriever.Weights{
		WidenFactor:      cfg.Retrieve.WidenFactor,
		FilenameBonus:    cfg.Retrieve.FilenameBonus,
		BodyTermBonus:    cfg.Retrieve.BodyTermBonus,
		MaxBodyTerms:     cfg.Retrieve.MaxBodyTerms,
		DedupOverlapping: cfg.Retrieve.DedupOverlapping,
		DedupBucket:      cfg.Retrieve.DedupBucket,
	}
	if weights.DedupBucket <= 0 {
		weights.DedupBucket = cfg.Index.WindowSize
	}
	ranker, err := retriever.NewHybridRanker(a.index, a.embedder, analyzer.NewTokenizer(), weights)
	if err != nil {
		return err
	}
	a.retriever = ranker
	if cfg.Retrieve.CacheSize > 0 {
		a.retriever = cache.NewCachedRetriever(ranker, cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL), a.index)
	}

	ch, err := chunker.NewWindowChunker(cfg.Index.WindowSize, cfg.Index.Overlap)
	if err != nil {
		return err
	}
	a.walker = fs.NewWalker(cfg.Index.Includes, cfg.Index.Excludes)
	a.indexer = usecase.NewIndexUseCase(a.walker, ch, a.embedder, a.index, cfg.Index.Workers, cfg.Index.BatchSize)
	a.verify = usecase.NewVerifyUseCase(a.retriever)

	var sessionOpts []memstore.Option
	if cfg.Session.JournalPath != "" {
		a.journal, err = sqlite.Open(cfg.Session.JournalPath)
		if err != nil {
			return fmt.Errorf("failed to open session journal: %w", err)
		}
		sessionOpts = append(sessionOpts, memstore.WithJournal(a.journal))
	}
	a.sessions = memstore.NewSessionStore(cfg.Session.MaxTurns, cfg.Session.TTL, sessionOpts...)

	var gen port.Generator = llm.EchoGenerator{}
	if opts.generator {
		gen, err = llm.New(cfg.Generation)
		if err != nil {
			return err
		}
	}
	a.chat = usecase.NewChatUseCase(a.retriever, usecase.NewAssembler(a.index, cfg.Assemble), a.sessions, gen, cfg.Boost())
	return nil
}

// Close releases the journal and the index store.
func (a *app) Close() error {
	var errs []error
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

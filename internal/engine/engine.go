// Package engine is the entry point for submitting raw statement text. It
// owns the storage, the runtime and the session they share.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/zakazai/jsonsql/internal/config"
	"github.com/zakazai/jsonsql/internal/runtime"
	"github.com/zakazai/jsonsql/internal/storage"
	"github.com/zakazai/jsonsql/internal/types"
)

// minQueryLength is the shortest text Query accepts
const minQueryLength = 3

var (
	ErrQueryTooShort = errors.New("query is too short")
	ErrEngineClosed  = errors.New("engine is closed")
)

// HistoryEntry is one submitted batch
type HistoryEntry struct {
	SQL  string
	Time time.Time
}

// Engine serializes queries over one storage root
type Engine struct {
	mu       sync.Mutex
	store    *storage.Storage
	rt       *runtime.Runtime
	logger   *types.Logger
	renderer runtime.Renderer
	history  []HistoryEntry
	lastTime time.Duration
	closed   bool
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger replaces the logger built from the config level
func WithLogger(l *types.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRenderer starts the session in CLI mode, sending every result to r
func WithRenderer(r runtime.Renderer) Option {
	return func(e *Engine) { e.renderer = r }
}

// Open validates cfg, opens the storage under cfg.DataDir and selects
// cfg.Database when it is set.
func Open(cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = types.InitLogger(cfg.Level(), os.Stderr)
	}

	store, err := storage.Open(cfg.DataDir, &storage.Options{
		MaxCacheItems:  cfg.Cache.MaxItems,
		MaxMemoryBytes: cfg.Cache.MaxMemoryBytes,
		QueueLimit:     cfg.Queue.Limit,
		Logger:         e.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	session := &runtime.Session{Mode: runtime.ModeStructured}
	if cfg.Database != "" {
		if !store.DatabaseExists(cfg.Database) {
			store.Close()
			return nil, fmt.Errorf("%w: %s", storage.ErrDatabaseNotFound, cfg.Database)
		}
		session.Database = cfg.Database
	}

	rtOpts := []runtime.Option{runtime.WithLogger(e.logger)}
	if e.renderer != nil {
		session.Mode = runtime.ModeCLI
		rtOpts = append(rtOpts, runtime.WithRenderer(e.renderer))
	}

	if err := store.StartFlusher(cfg.Queue.FlushSchedule); err != nil {
		store.Close()
		return nil, err
	}

	e.store = store
	e.rt = runtime.New(store, session, rtOpts...)
	e.logger.Info("engine: opened %s", store.Root())
	return e, nil
}

// Query runs every statement in text and returns one result per statement.
// A parse error rejects the whole text and is returned as the error.
func (e *Engine) Query(ctx context.Context, text string) ([]runtime.Result, error) {
	text = strings.TrimSpace(text)
	if len(text) < minQueryLength {
		return nil, fmt.Errorf("%w: %q", ErrQueryTooShort, text)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrEngineClosed
	}

	start := time.Now()
	e.history = append(e.history, HistoryEntry{SQL: text, Time: start})
	e.logger.Info("engine: [%s] %s", e.rt.Session().Database, text)

	results, err := e.rt.Execute(ctx, text)
	e.lastTime = time.Since(start)
	if err != nil {
		e.logger.Error("engine: %v", err)
		return nil, err
	}
	return results, nil
}

// History returns the submitted batches, oldest first
func (e *Engine) History() []HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]HistoryEntry(nil), e.history...)
}

// ClearHistory forgets the submitted batches
func (e *Engine) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = nil
}

// LastQueryTime returns how long the latest Query took
func (e *Engine) LastQueryTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastTime
}

// Session returns a copy of the session state
func (e *Engine) Session() runtime.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.rt.Session()
}

// Stats reports the cache and queue state
func (e *Engine) Stats() storage.Stats {
	return e.store.Stats()
}

// FlushCache writes every cached table and empties the cache
func (e *Engine) FlushCache() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	return e.store.FlushCache()
}

// Export writes a Parquet snapshot of table. An empty db means the active
// database.
func (e *Engine) Export(db, table, path string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrEngineClosed
	}
	if db == "" {
		db = e.rt.Session().Database
	}
	if db == "" {
		return 0, runtime.ErrNoDatabaseSelected
	}
	return e.store.ExportParquet(db, table, path)
}

// Close stops the flusher and writes everything still pending
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.store.Close()
}

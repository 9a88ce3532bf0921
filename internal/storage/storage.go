// Package storage persists databases as directories and tables as JSON files
// under one root directory. Decoded tables are kept in a bounded LRU cache and
// every write is recorded in a pending-operation queue file until it has been
// written to the table file.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/zakazai/jsonsql/internal/types"
)

var (
	ErrDatabaseNotFound = errors.New("database does not exist")
	ErrDatabaseExists   = errors.New("database already exists")
	ErrTableNotFound    = errors.New("table does not exist")
	ErrTableExists      = errors.New("table already exists")
	ErrInvalidName      = errors.New("invalid name")
	ErrInvalidSchema    = errors.New("invalid table schema")
	ErrCorruptTable     = errors.New("corrupt table file")
	ErrStorageClosed    = errors.New("storage is closed")
)

const tableExt = ".json"

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options tune the cache and the queue
type Options struct {
	MaxCacheItems  int
	MaxMemoryBytes int64
	QueueLimit     int
	Logger         *types.Logger
}

// DefaultOptions returns the limits used when Open gets nil options
func DefaultOptions() Options {
	return Options{
		MaxCacheItems:  1000,
		MaxMemoryBytes: 100 << 20,
		QueueLimit:     1000,
	}
}

// Stats describes the cache and the queue
type Stats struct {
	CachedTables int
	CacheBytes   int64
	MaxItems     int
	MaxBytes     int64
	Pending      int
}

// Storage is safe for concurrent use, but it assumes it is the only writer
// of its root directory.
type Storage struct {
	root    string
	mu      sync.Mutex
	cache   *tableCache
	queue   *opQueue
	logger  *types.Logger
	flusher *cron.Cron
	closed  bool
}

// Open prepares root, replays any operations left in the queue file by an
// earlier process and returns the storage.
func Open(root string, opts *Options) (*Storage, error) {
	o := DefaultOptions()
	if opts != nil {
		if opts.MaxCacheItems > 0 {
			o.MaxCacheItems = opts.MaxCacheItems
		}
		if opts.MaxMemoryBytes > 0 {
			o.MaxMemoryBytes = opts.MaxMemoryBytes
		}
		if opts.QueueLimit > 0 {
			o.QueueLimit = opts.QueueLimit
		}
		o.Logger = opts.Logger
	}
	if o.Logger == nil {
		o.Logger = types.GlobalLogger
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	s := &Storage{root: root, logger: o.Logger}
	s.cache = newTableCache(o.MaxCacheItems, o.MaxMemoryBytes, s.flushEntry, o.Logger)
	if s.queue, err = openQueue(filepath.Join(root, QueueFile), o.QueueLimit); err != nil {
		return nil, err
	}
	if err := s.replay(); err != nil {
		s.queue.close()
		return nil, err
	}
	return s, nil
}

// Root returns the absolute storage directory
func (s *Storage) Root() string {
	return s.root
}

// replay applies the operations of the queue file in order. Records for a
// database directory that no longer exists are skipped.
func (s *Storage) replay() error {
	ops, err := s.queue.load()
	if err != nil {
		s.logger.Warning("queue: ignoring tail after %d records: %v", len(ops), err)
	}
	applied := 0
	for _, op := range ops {
		path := filepath.Join(s.root, filepath.FromSlash(op.File))
		if _, err := os.Stat(filepath.Dir(path)); err != nil {
			s.logger.Warning("queue: skipping %s record %s for %s: %v", op.Kind, op.ID, op.File, err)
			continue
		}
		if err := writeFileAtomic(path, op.Data); err != nil {
			return fmt.Errorf("failed to replay queue record %s: %w", op.ID, err)
		}
		applied++
	}
	if len(ops) > 0 {
		s.logger.Info("queue: replayed %d of %d pending operations", applied, len(ops))
	}
	return s.queue.rewrite()
}

func validName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (s *Storage) databasePath(db string) (string, error) {
	if err := validName(db); err != nil {
		return "", err
	}
	return filepath.Join(s.root, db), nil
}

func (s *Storage) tablePath(db, table string) (string, error) {
	dir, err := s.databasePath(db)
	if err != nil {
		return "", err
	}
	if err := validName(table); err != nil {
		return "", err
	}
	return filepath.Join(dir, table+tableExt), nil
}

func (s *Storage) relative(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DatabaseExists reports whether the database directory exists
func (s *Storage) DatabaseExists(db string) bool {
	dir, err := s.databasePath(db)
	return err == nil && isDir(dir)
}

// CreateDatabase creates the database directory. It reports false without
// error when the database already exists.
func (s *Storage) CreateDatabase(db string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrStorageClosed
	}

	dir, err := s.databasePath(db)
	if err != nil {
		return false, err
	}
	if isDir(dir) {
		return false, nil
	}
	if err := os.Mkdir(dir, 0755); err != nil {
		return false, fmt.Errorf("failed to create database %s: %w", db, err)
	}
	return true, nil
}

// DropDatabase removes the database directory with all of its tables
func (s *Storage) DropDatabase(db string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStorageClosed
	}

	dir, err := s.databasePath(db)
	if err != nil {
		return err
	}
	if !isDir(dir) {
		return fmt.Errorf("%w: %s", ErrDatabaseNotFound, db)
	}

	s.cache.removeUnder(dir)
	prefix := s.relative(dir) + "/"
	if err := s.queue.discard(func(file string) bool { return strings.HasPrefix(file, prefix) }); err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to drop database %s: %w", db, err)
	}
	return nil
}

// ListDatabases returns the database names in lexical order
func (s *Storage) ListDatabases() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() && namePattern.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ListTables returns the table names of db in lexical order
func (s *Storage) ListTables(db string) ([]string, error) {
	dir, err := s.databasePath(db)
	if err != nil {
		return nil, err
	}
	if !isDir(dir) {
		return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, db)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Tables whose first write is still queued only exist in the cache.
	seen := make(map[string]bool)
	for _, path := range s.cache.pathsIn(dir) {
		seen[strings.TrimSuffix(filepath.Base(path), tableExt)] = true
	}
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), tableExt)
		if !e.IsDir() && strings.HasSuffix(e.Name(), tableExt) && namePattern.MatchString(name) {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// TableExists reports whether db holds the table
func (s *Storage) TableExists(db, table string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.tablePath(db, table)
	if err != nil {
		return false
	}
	if _, ok := s.cache.get(path); ok {
		return true
	}
	return fileExists(path)
}

// CreateTable writes a new table file. It fails if the table exists.
func (s *Storage) CreateTable(db, name string, t *Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStorageClosed
	}

	path, err := s.tablePath(db, name)
	if err != nil {
		return err
	}
	if !isDir(filepath.Dir(path)) {
		return fmt.Errorf("%w: %s", ErrDatabaseNotFound, db)
	}
	if _, ok := s.cache.get(path); ok || fileExists(path) {
		return fmt.Errorf("%w: %s", ErrTableExists, name)
	}
	return s.write(OpTable, path, t)
}

// GetTable returns a copy of the table that the caller may modify
func (s *Storage) GetTable(db, name string) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStorageClosed
	}

	path, err := s.tablePath(db, name)
	if err != nil {
		return nil, err
	}
	if e, ok := s.cache.get(path); ok {
		return e.table.Clone(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if !isDir(filepath.Dir(path)) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, db)
		}
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	t := &Table{}
	if err := t.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("%s: %w", s.relative(path), err)
	}
	s.cache.put(path, t, int64(len(data)), false)
	s.cache.evict()
	return t.Clone(), nil
}

// PutTable replaces the content of an existing table
func (s *Storage) PutTable(db, name string, t *Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStorageClosed
	}

	path, err := s.tablePath(db, name)
	if err != nil {
		return err
	}
	if _, ok := s.cache.get(path); !ok && !fileExists(path) {
		return fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return s.write(OpPut, path, t)
}

// DropTable deletes the table file
func (s *Storage) DropTable(db, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStorageClosed
	}

	path, err := s.tablePath(db, name)
	if err != nil {
		return err
	}
	_, cached := s.cache.get(path)
	if !cached && !fileExists(path) {
		return fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}

	s.cache.remove(path)
	rel := s.relative(path)
	if err := s.queue.discard(func(file string) bool { return file == rel }); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to drop table %s: %w", name, err)
	}
	return nil
}

// write caches t as dirty, records the operation and drains the queue when
// there is memory headroom or the queue is full.
func (s *Storage) write(kind OpKind, path string, t *Table) error {
	data, err := t.MarshalJSON()
	if err != nil {
		return err
	}
	e := s.cache.put(path, t.Clone(), int64(len(data)), true)

	op := newOperation(kind, s.relative(path), data, e.version)
	if err := s.queue.append(op); err != nil {
		s.logger.Error("queue: failed to record %s for %s, writing through: %v", kind, op.File, err)
		if err := writeFileAtomic(path, data); err != nil {
			return err
		}
		s.cache.markClean(path, e.version)
		// Older records for the file would overwrite what was just written.
		if err := s.queue.discard(func(file string) bool { return file == op.File }); err != nil {
			s.logger.Error("queue: failed to rewrite after write-through of %s: %v", op.File, err)
		}
		return nil
	}

	switch {
	case s.queue.full():
		err = s.drain(true)
	case s.cache.usage() < drainThreshold:
		err = s.drain(false)
	default:
		s.logger.Debug("queue: deferring %d operations at %.0f%% memory", s.queue.len(), s.cache.usage()*100)
	}
	s.cache.evict()
	return err
}

// drain writes pending operations in order. Unless forced it stops once
// memory usage reaches the eviction threshold and leaves the rest for later.
// Only the newest operation per file is written.
func (s *Storage) drain(force bool) error {
	if s.queue.len() == 0 && !s.queue.stale {
		return nil
	}
	newest := make(map[string]int, s.queue.len())
	for i, op := range s.queue.pending {
		newest[op.File] = i
	}

	done := 0
	var writeErr error
	for i, op := range s.queue.pending {
		if !force && s.cache.usage() >= evictThreshold {
			s.logger.Debug("queue: draining stopped with %d operations left", s.queue.len()-done)
			break
		}
		path := filepath.Join(s.root, filepath.FromSlash(op.File))
		if newest[op.File] == i {
			if writeErr = writeFileAtomic(path, op.Data); writeErr != nil {
				s.logger.Error("queue: failed to write %s: %v", op.File, writeErr)
				break
			}
			s.cache.markClean(path, op.Version)
		}
		done = i + 1
	}
	if err := s.queue.done(done); err != nil {
		return err
	}
	return writeErr
}

func (s *Storage) flushEntry(e *cacheEntry) error {
	data, err := e.table.MarshalJSON()
	if err != nil {
		return err
	}
	return writeFileAtomic(e.path, data)
}

// Sync writes every pending operation and every dirty cache entry to disk
func (s *Storage) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStorageClosed
	}
	return s.sync()
}

func (s *Storage) sync() error {
	if err := s.drain(true); err != nil {
		return err
	}
	return s.cache.flushDirty()
}

// FlushCache syncs and then empties the cache
func (s *Storage) FlushCache() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStorageClosed
	}
	if err := s.drain(true); err != nil {
		return err
	}
	return s.cache.clear()
}

// Stats returns cache and queue figures
func (s *Storage) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		CachedTables: s.cache.len(),
		CacheBytes:   s.cache.bytes,
		MaxItems:     s.cache.maxItems,
		MaxBytes:     s.cache.maxBytes,
		Pending:      s.queue.len(),
	}
}

// Close stops the background flusher, syncs and releases the queue file
func (s *Storage) Close() error {
	s.StopFlusher()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.sync()
	if cerr := s.queue.close(); err == nil {
		err = cerr
	}
	return err
}

// writeFileAtomic replaces path through a temporary file in the same directory
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

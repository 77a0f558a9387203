package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sasha-s/go-deadlock"
	"github.com/spf13/afero"

	"github.com/tuannm99/relcore/internal"
	"github.com/tuannm99/relcore/internal/bufferpool"
	"github.com/tuannm99/relcore/internal/catalog"
	"github.com/tuannm99/relcore/internal/sql/executor"
	"github.com/tuannm99/relcore/internal/sql/optimizer"
	"github.com/tuannm99/relcore/internal/sql/parser"
	"github.com/tuannm99/relcore/internal/sql/planner"
	"github.com/tuannm99/relcore/internal/storage"
)

// SegmentBase is the file name of the first page segment in the workdir.
const SegmentBase = "relcore.pages"

var ErrDatabaseClosed = errors.New("engine: database is closed")

// DB runs one statement at a time against a single page space.
type DB struct {
	cfg *internal.RelcoreConfig
	log *slog.Logger

	mu      deadlock.Mutex
	closed  bool
	sm      *storage.StorageManager
	pool    *bufferpool.Pool
	planner *planner.Planner
	exec    *executor.Executor
}

// Open builds the storage stack described by cfg. Disk mode keeps pages and
// the catalog under the workdir; memory mode keeps both in process memory.
func Open(cfg *internal.RelcoreConfig) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		fsys afero.Fs
		fset storage.FileSet
	)
	switch cfg.Storage.Mode {
	case internal.ModeMemory:
		fsys = afero.NewMemMapFs()
		fset = storage.NewVirtualFileSet()
	default:
		fsys = afero.NewOsFs()
		fset = storage.LocalFileSet{Dir: cfg.Storage.Workdir, Base: SegmentBase}
	}

	sm, err := storage.NewStorageManager(fsys, cfg.Storage.PageSize, cfg.Storage.Checksum)
	if err != nil {
		return nil, err
	}
	pool, err := bufferpool.NewPool(sm, fset, bufferpool.Options{
		Capacity:    cfg.BufferPool.Capacity,
		Replacer:    cfg.BufferPool.Replacer,
		CatalogPath: cfg.CatalogPath(),
	})
	if err != nil {
		return nil, err
	}

	db := &DB{
		cfg:     cfg,
		log:     slog.Default(),
		sm:      sm,
		pool:    pool,
		planner: planner.New(),
		exec:    executor.New(pool),
	}
	db.log.Info("engine: open",
		"mode", cfg.Storage.Mode, "workdir", cfg.Storage.Workdir,
		"page_size", cfg.Storage.PageSize, "tables", len(pool.Catalog().Tables))
	return db, nil
}

// Exec plans, optimizes and executes one parsed statement. The physical plan
// is returned whenever optimization succeeded, even if execution failed.
func (db *DB) Exec(stmt parser.Statement) (*executor.Result, *optimizer.PhysicalPlan, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, nil, ErrDatabaseClosed
	}

	logical, err := db.planner.Build(stmt)
	if err != nil {
		return nil, nil, err
	}

	var physical *optimizer.PhysicalPlan
	err = db.pool.WithCatalog(func(c *catalog.Catalog) error {
		var err error
		physical, err = optimizer.New(c).Optimize(logical)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	res, err := db.exec.Execute(physical)
	if err != nil {
		db.log.Debug("engine: statement failed", "plan", physical.String(), "err", err)
		return nil, physical, err
	}
	return res, physical, nil
}

// ExecSQL parses sql as exactly one statement and runs it.
func (db *DB) ExecSQL(sql string) (*executor.Result, *optimizer.PhysicalPlan, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, nil, err
	}
	return db.Exec(stmt)
}

// Catalog returns a snapshot of the schema.
func (db *DB) Catalog() *catalog.Catalog {
	return db.pool.Catalog()
}

// DumpPage writes a readable dump of page id, going through the buffer pool
// so unflushed changes are included.
func (db *DB) DumpPage(id uint32, w io.Writer) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrDatabaseClosed
	}
	page, err := db.pool.GetPage(id)
	if err != nil {
		return err
	}
	defer db.pool.Unpin(id, false)
	return page.Dump(w)
}

// Close flushes every dirty page. Further calls are no-ops.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	if err := db.pool.Close(); err != nil {
		return fmt.Errorf("engine: close: %w", err)
	}
	db.log.Info("engine: closed")
	return nil
}

// Destroy removes the page segments and catalog of a disk-mode database.
func Destroy(cfg *internal.RelcoreConfig) error {
	if cfg.Storage.Mode == internal.ModeMemory {
		return nil
	}
	lfs := storage.LocalFileSet{Dir: cfg.Storage.Workdir, Base: SegmentBase}
	if err := storage.RemoveAllSegments(lfs); err != nil {
		return err
	}
	if err := os.Remove(cfg.CatalogPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Package buildcache stores compiled MicroC objects in SQLite, keyed by the
// content hash of the program they were built from.
package buildcache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/microc/compiler"
	"github.com/chazu/microc/compiler/hash"
	"github.com/chazu/microc/pkg/bytecode"
)

var log = commonlog.GetLogger("microc.buildcache")

// Key identifies a build: the content hash of a program and its options.
type Key [32]byte

// KeyFor returns the cache key of p compiled with opts.
func KeyFor(p *compiler.Program, opts compiler.Options) Key {
	return Key(hash.HashProgram(p, opts))
}

// Cache is a persistent map from program hashes to compiled objects.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS builds (
		hash BLOB PRIMARY KEY,
		object BLOB NOT NULL,
		created INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Cache{db: db, path: path}, nil
}

// DefaultPath returns the cache location used when none is configured.
func DefaultPath() (string, error) {
	if p := os.Getenv("MICROC_CACHE"); p != "" {
		return p, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("getting cache dir: %w", err)
	}
	return filepath.Join(dir, "microc", "builds.db"), nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get returns the object stored under key. The boolean is false on a miss.
func (c *Cache) Get(key Key) (*bytecode.Object, bool, error) {
	var data []byte
	err := c.db.QueryRow("SELECT object FROM builds WHERE hash = ?", key[:]).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("querying build: %w", err)
	}
	obj, err := bytecode.UnmarshalObject(data)
	if err != nil {
		return nil, false, fmt.Errorf("decoding cached build %x: %w", key[:8], err)
	}
	log.Debugf("cache hit %x", key[:8])
	return obj, true, nil
}

// Put stores obj under key, replacing any previous entry.
func (c *Cache) Put(key Key, obj *bytecode.Object) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	obj.SourceHash = key[:]
	data, err := bytecode.MarshalObject(obj)
	if err != nil {
		return fmt.Errorf("encoding build: %w", err)
	}
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO builds (hash, object, created) VALUES (?, ?, ?)",
		key[:], data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving build: %w", err)
	}
	return nil
}

// Len returns the number of cached builds.
func (c *Cache) Len() (int, error) {
	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM builds").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting builds: %w", err)
	}
	return n, nil
}

// Prune removes builds older than maxAge and returns how many were removed.
func (c *Cache) Prune(maxAge time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := c.db.Exec("DELETE FROM builds WHERE created < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning builds: %w", err)
	}
	return res.RowsAffected()
}

// Build returns the object for p, from the cache when possible, and whether
// it came from the cache. A nil cache always compiles.
func Build(c *Cache, p *compiler.Program, opts compiler.Options) (*bytecode.Object, bool, error) {
	var key Key
	if c != nil {
		key = KeyFor(p, opts)
		obj, ok, err := c.Get(key)
		if err != nil {
			log.Warningf("ignoring cache: %s", err)
		} else if ok {
			return obj, true, nil
		}
	}

	out, err := compiler.Build(p, opts)
	if err != nil {
		return nil, false, err
	}
	obj := &bytecode.Object{
		Version:     bytecode.ObjectVersion,
		Code:        out.Code,
		Symbols:     out.Symbols,
		GlobalCells: out.GlobalCells,
	}
	if c != nil {
		if err := c.Put(key, obj); err != nil {
			log.Warningf("not caching build: %s", err)
		}
	}
	return obj, false, nil
}

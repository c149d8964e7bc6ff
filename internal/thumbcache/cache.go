package thumbcache

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"native-thumbnail/internal/extract"
	"native-thumbnail/internal/filesystem"
	"native-thumbnail/internal/logging"
	"native-thumbnail/internal/media"
	"native-thumbnail/internal/metrics"
	"native-thumbnail/internal/pathutil"
)

// Lookup flags, re-exported for callers that only know this package.
const (
	FlagExtract              = extract.FlagExtract
	FlagForceExtraction      = extract.FlagForceExtraction
	FlagScaleToRequestedSize = extract.FlagScaleToRequestedSize
)

// DBName is the index file created inside the cache directory.
const DBName = "thumbcache.db"

const defaultTimeout = 5 * time.Second

// ErrNotCached is returned when no usable entry exists and FlagExtract is unset.
var ErrNotCached = errors.New("thumbnail not cached")

// Source renders a preview of a file with its longer side at most edge.
// media.Decoder satisfies it.
type Source interface {
	Thumbnail(ctx context.Context, path string, edge int) (image.Image, error)
}

// Cache is a shared on-disk thumbnail cache: PNG blobs in a directory, indexed
// by a SQLite table keyed on (source key, size).
type Cache struct {
	dir    string
	blobs  string
	db     *sql.DB
	source Source
	retry  filesystem.RetryConfig
	group  singleflight.Group

	statsMu sync.RWMutex
	stats   metrics.Stats
}

// Open opens or creates the cache in dir. dir is created if missing.
func Open(ctx context.Context, dir string, source Source) (*Cache, error) {
	if source == nil {
		return nil, errors.New("thumbcache: nil source")
	}
	retry := filesystem.DefaultRetryConfig()
	blobs := filepath.Join(dir, "blobs")
	if err := filesystem.EnsureDir(blobs, retry); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dbPath := filepath.Join(dir, DBName)
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache index: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close cache index after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to cache index: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	c := &Cache{dir: dir, blobs: blobs, db: db, source: source, retry: retry}
	if err := c.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close cache index after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	c.refreshStats(ctx)

	logging.Info("Thumbnail cache opened at %s", dir)
	return c, nil
}

func (c *Cache) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS thumbnails (
		key TEXT NOT NULL,
		size INTEGER NOT NULL,
		source TEXT NOT NULL,
		source_mtime INTEGER NOT NULL,
		blob TEXT NOT NULL,
		bytes INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		PRIMARY KEY (key, size)
	);

	CREATE INDEX IF NOT EXISTS idx_thumbnails_created_at ON thumbnails(created_at);
	`
	_, err := c.db.ExecContext(ctx, schema)
	return err
}

// Close closes the index.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Key returns the cache key of a source path: hex BLAKE2b-256 of the cleaned path.
func Key(source string) string {
	sum := blake2b.Sum256([]byte(filepath.Clean(source)))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) blobName(key string, size int) string {
	return key + "_" + strconv.Itoa(size) + ".png"
}

type entry struct {
	mtime int64
	blob  string
}

func (c *Cache) lookup(ctx context.Context, key string, size int) (*entry, error) {
	var e entry
	err := c.db.QueryRowContext(ctx,
		`SELECT source_mtime, blob FROM thumbnails WHERE key = ? AND size = ?`, key, size,
	).Scan(&e.mtime, &e.blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetThumbnail returns a thumbnail of source whose longer side is size.
//
// Without FlagForceExtraction an entry whose recorded modification time matches
// the source is returned as is. Otherwise, with FlagExtract, the thumbnail is
// regenerated and written back; without it ErrNotCached is returned.
// FlagScaleToRequestedSize scales the result so its longer side is exactly size,
// enlarging small sources.
func (c *Cache) GetThumbnail(ctx context.Context, source string, size int, flags extract.CacheFlags) (*extract.Bitmap, error) {
	if size <= 0 {
		return nil, &media.DecodeError{Decoder: "thumbcache", Code: "invalid_size", Err: fmt.Errorf("size %d", size)}
	}

	info, err := filesystem.StatWithRetry(pathutil.ForProbe(source), c.retry)
	if err != nil {
		return nil, fmt.Errorf("thumbcache: %w", err)
	}
	mtime := info.ModTime().UnixNano()
	key := Key(source)

	if !flags.Has(FlagForceExtraction) {
		if img := c.cached(ctx, key, size, mtime); img != nil {
			metrics.ThumbcacheHits.Inc()
			logging.Debug("Thumbnail cache hit: %s (%d)", source, size)
			return extract.NewBitmap(img, nil), nil
		}
	}
	metrics.ThumbcacheMisses.Inc()

	if !flags.Has(FlagExtract) {
		return nil, ErrNotCached
	}

	// Concurrent requests for the same thumbnail share one regeneration. It runs
	// detached from any one caller so a cancelled request cannot fail the others;
	// each caller waits on its own ctx. Decoded images are never mutated, so
	// sharing the result is safe.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key+"/"+strconv.Itoa(size)+"/"+strconv.Itoa(int(flags)), func() (interface{}, error) {
		img, err := c.source.Thumbnail(shared, source, size)
		if err != nil {
			return nil, err
		}
		if flags.Has(FlagScaleToRequestedSize) {
			img = media.FitEdge(img, size, true)
		}
		c.store(shared, key, source, size, mtime, img)
		return img, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		logging.Debug("Thumbnail regeneration shared for %s", source)
	}
	return extract.NewBitmap(res.Val.(image.Image), nil), nil
}

func (c *Cache) cached(ctx context.Context, key string, size int, mtime int64) image.Image {
	e, err := c.lookup(ctx, key, size)
	if err != nil {
		logging.Warn("Thumbnail cache lookup failed: %v", err)
		return nil
	}
	if e == nil || e.mtime != mtime {
		return nil
	}

	f, err := filesystem.OpenWithRetry(filepath.Join(c.blobs, e.blob), c.retry)
	if err != nil {
		logging.Debug("Thumbnail cache blob missing: %s", e.blob)
		return nil
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Debug("failed to close cache blob %s: %v", e.blob, err)
		}
	}()

	img, err := png.Decode(f)
	if err != nil {
		logging.Warn("Thumbnail cache blob %s is corrupt: %v", e.blob, err)
		return nil
	}
	return img
}

// store writes img back to the cache. Failures are logged only; the caller
// still gets its thumbnail.
func (c *Cache) store(ctx context.Context, key, source string, size int, mtime int64, img image.Image) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		metrics.ThumbcacheWrites.WithLabelValues("error").Inc()
		logging.Warn("Failed to encode cached thumbnail for %s: %v", source, err)
		return
	}

	name := c.blobName(key, size)
	path := filepath.Join(c.blobs, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		metrics.ThumbcacheWrites.WithLabelValues("error").Inc()
		logging.Warn("Failed to cache thumbnail %s: %v", path, err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		metrics.ThumbcacheWrites.WithLabelValues("error").Inc()
		logging.Warn("Failed to cache thumbnail %s: %v", path, err)
		_ = os.Remove(tmp)
		return
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO thumbnails (key, size, source, source_mtime, blob, bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key, size) DO UPDATE SET
			source = excluded.source,
			source_mtime = excluded.source_mtime,
			blob = excluded.blob,
			bytes = excluded.bytes,
			created_at = excluded.created_at`,
		key, size, source, mtime, name, buf.Len(), time.Now().Unix())
	if err != nil {
		metrics.ThumbcacheWrites.WithLabelValues("error").Inc()
		logging.Warn("Failed to index cached thumbnail %s: %v", path, err)
		return
	}

	metrics.ThumbcacheWrites.WithLabelValues("success").Inc()
	logging.Debug("Thumbnail cached: %s", path)
	c.refreshStats(ctx)
}

// Purge removes entries created before now minus olderThan and returns how many
// were removed.
func (c *Cache) Purge(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).Unix()

	rows, err := c.db.QueryContext(ctx, `SELECT key, size, blob FROM thumbnails WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale thumbnails: %w", err)
	}

	type stale struct {
		key  string
		size int
		blob string
	}
	var victims []stale
	for rows.Next() {
		var s stale
		if err := rows.Scan(&s.key, &s.size, &s.blob); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan stale thumbnail: %w", err)
		}
		victims = append(victims, s)
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	removed := 0
	for _, s := range victims {
		if err := os.Remove(filepath.Join(c.blobs, s.blob)); err != nil && !os.IsNotExist(err) {
			logging.Warn("Failed to remove cached thumbnail %s: %v", s.blob, err)
			continue
		}
		if _, err := c.db.ExecContext(ctx, `DELETE FROM thumbnails WHERE key = ? AND size = ?`, s.key, s.size); err != nil {
			return removed, fmt.Errorf("failed to delete thumbnail row: %w", err)
		}
		removed++
	}

	if removed > 0 {
		logging.Info("Purged %d cached thumbnails older than %v", removed, olderThan)
	}
	c.refreshStats(ctx)
	return removed, nil
}

func (c *Cache) refreshStats(ctx context.Context) {
	var s metrics.Stats
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(bytes), 0) FROM thumbnails`).Scan(&s.CacheEntries, &s.CacheBytes)
	if err != nil {
		logging.Debug("failed to read cache stats: %v", err)
		return
	}
	c.statsMu.Lock()
	c.stats = s
	c.statsMu.Unlock()
}

// GetStats implements metrics.StatsProvider.
func (c *Cache) GetStats() metrics.Stats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}

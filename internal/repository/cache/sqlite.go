package cache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/logger"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/metrics"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

// SQLiteFileName is the mbtiles-style database file inside the cache dir.
const SQLiteFileName = FilePrefix + "db"

//go:embed migrations/*.sql
var migrations embed.FS

const (
	insertQuery = `INSERT INTO tiles (tileset, x, y, z, data)
	VALUES (?, ?, ?, ?, ?)`

	selectQuery = `SELECT data
	FROM tiles
	WHERE tileset = ? AND x = ? AND y = ? AND z = ?`

	countQuery = `SELECT COUNT(*) FROM tiles WHERE tileset = ?`
)

type SQLiteCache struct {
	db     *sql.DB
	lock   *rwLock
	logger logger.Logger
}

// NewSQLiteCache opens cacheDir/cache.db, creating the file and the tiles
// table when missing. An existing file is opened as is and never cleared;
// call Purge first for a clean rebuild.
func NewSQLiteCache(cacheDir string, l logger.Logger) (*SQLiteCache, error) {
	path := filepath.Join(cacheDir, SQLiteFileName)

	_, statErr := os.Stat(path)
	existed := statErr == nil

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, newStoreError("open", nil, err)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, newStoreError("open", nil, err)
	}

	c := &SQLiteCache{
		db:     db,
		lock:   newRWLock(),
		logger: l,
	}

	err = c.runMigrations()
	if err != nil {
		db.Close()
		return nil, newStoreError("migrate", nil, err)
	}

	l.Info("sqlite cache initialized", "path", path, "existed", existed)

	return c, nil
}

func (c *SQLiteCache) runMigrations() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{c.logger})

	err := goose.SetDialect("sqlite3")
	if err != nil {
		return err
	}

	err = goose.Up(c.db, "migrations")
	if err != nil {
		return err
	}

	return nil
}

var _ TileCache = (*SQLiteCache)(nil)

func (c *SQLiteCache) Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	c.logger.Debug("sqlite cache get", "tileset", k.Tileset, "z", k.Z, "x", k.X, "y", k.Y)

	if err := c.lock.RLock(ctx); err != nil {
		return nil, false, newStoreError("get", &k, err)
	}
	defer c.lock.RUnlock()

	start := time.Now()
	defer observe("get", start)

	var tileData []byte
	err := c.db.QueryRowContext(ctx, selectQuery, k.Tileset, k.X, k.Y, k.Z).Scan(&tileData)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		metrics.StoreErrors.WithLabelValues("get").Inc()
		c.logger.Error("sqlite cache get failed", "tileset", k.Tileset, "z", k.Z, "x", k.X, "y", k.Y, "error", err)
		return nil, false, newStoreError("get", &k, err)
	}

	return tileData, true, nil
}

func (c *SQLiteCache) InsertOne(ctx context.Context, k TileCacheKey, v TileCacheValue) error {
	c.logger.Debug("sqlite cache insert", "tileset", k.Tileset, "z", k.Z, "x", k.X, "y", k.Y)

	if err := validateKey(k); err != nil {
		return err
	}

	if err := c.lock.Lock(ctx); err != nil {
		return newStoreError("insert", &k, err)
	}
	defer c.lock.Unlock()

	start := time.Now()
	defer observe("insert", start)

	_, err := c.db.ExecContext(ctx, insertQuery, k.Tileset, k.X, k.Y, k.Z, []byte(v))
	if err != nil {
		metrics.StoreErrors.WithLabelValues("insert").Inc()
		c.logger.Error("sqlite cache insert failed", "tileset", k.Tileset, "z", k.Z, "x", k.X, "y", k.Y, "error", err)
		return newStoreError("insert", &k, translate(err))
	}

	return nil
}

// InsertBatch writes all rows in a single transaction. Any failure, a
// duplicate key included, rolls the whole batch back.
func (c *SQLiteCache) InsertBatch(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	for _, r := range rows {
		if err := validateKey(r.Key); err != nil {
			return err
		}
	}

	if err := c.lock.Lock(ctx); err != nil {
		return newStoreError("insert_batch", nil, err)
	}
	defer c.lock.Unlock()

	start := time.Now()
	defer observe("insert_batch", start)

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("insert_batch").Inc()
		return newStoreError("insert_batch", nil, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		_ = tx.Rollback()
		metrics.StoreErrors.WithLabelValues("insert_batch").Inc()
		return newStoreError("insert_batch", nil, err)
	}
	defer stmt.Close()

	for i := range rows {
		k := rows[i].Key
		if _, err := stmt.ExecContext(ctx, k.Tileset, k.X, k.Y, k.Z, []byte(rows[i].Data)); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				c.logger.Error("sqlite cache rollback failed", "error", rbErr)
			}
			metrics.StoreErrors.WithLabelValues("insert_batch").Inc()
			c.logger.Error("sqlite cache batch insert failed", "rows", len(rows), "failed_at", k.String(), "error", err)
			return newStoreError("insert_batch", &k, translate(err))
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.StoreErrors.WithLabelValues("insert_batch").Inc()
		return newStoreError("insert_batch", nil, err)
	}

	c.logger.Debug("sqlite cache batch committed", "rows", len(rows), "duration", time.Since(start))

	return nil
}

func (c *SQLiteCache) Count(ctx context.Context, tileset string) (int, error) {
	if err := c.lock.RLock(ctx); err != nil {
		return 0, newStoreError("count", nil, err)
	}
	defer c.lock.RUnlock()

	var n int
	if err := c.db.QueryRowContext(ctx, countQuery, tileset).Scan(&n); err != nil {
		return 0, newStoreError("count", nil, err)
	}
	return n, nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// translate maps primary key violations onto ErrDuplicateTile.
func translate(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique) {
		return fmt.Errorf("%w: %v", ErrDuplicateTile, err)
	}
	return err
}

func observe(op string, start time.Time) {
	metrics.StoreOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

type gooseLogger struct {
	l logger.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.l.Debug(fmt.Sprintf(format, v...))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.l.Fatal(fmt.Sprintf(format, v...))
}

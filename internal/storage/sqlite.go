package storage

import (
	"context"
	"database/sql"
	"slices"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"udf_feed/internal/models"
	"udf_feed/pkg/logger"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS symbols (
	exchange   TEXT NOT NULL,
	code       TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL DEFAULT 'stock',
	session    TEXT NOT NULL DEFAULT '24x7',
	timezone   TEXT NOT NULL DEFAULT 'UTC',
	pricescale INTEGER NOT NULL DEFAULT 100,
	updated_at INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (exchange, code)
);
CREATE TABLE IF NOT EXISTS bars (
	symbol     TEXT NOT NULL,
	resolution TEXT NOT NULL,
	ts         INTEGER NOT NULL,
	open       REAL NOT NULL,
	high       REAL NOT NULL,
	low        REAL NOT NULL,
	close      REAL NOT NULL,
	volume     REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (symbol, resolution, ts)
);`

// SQLite is the default Store, backed by a single database file.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "sqlite: ping")
	}
	// One writer at a time; avoids SQLITE_BUSY under concurrent ingest.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		logger.Warn("sqlite: failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		logger.Warn("sqlite: failed to set synchronous mode: %v", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "sqlite: create schema")
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) UpsertSymbols(ctx context.Context, recs []models.SymbolRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlite: begin")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO symbols (exchange, code, name, type, session, timezone, pricescale, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (exchange, code) DO UPDATE SET
			name = excluded.name, type = excluded.type, session = excluded.session,
			timezone = excluded.timezone, pricescale = excluded.pricescale, updated_at = excluded.updated_at`)
	if err != nil {
		return errors.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, r := range recs {
		r = withRecordDefaults(r)
		if _, err := stmt.ExecContext(ctx, r.Exchange, r.Code, r.Name, r.Type, r.Session, r.Timezone, r.PriceScale, now); err != nil {
			return errors.Wrapf(err, "sqlite: upsert %s", r.FullName())
		}
	}
	return errors.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLite) SearchSymbols(ctx context.Context, query, symbolType, exchange string, limit int) ([]models.SymbolRecord, error) {
	q, args := searchSQL(questionMarks, query, symbolType, exchange, limit)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: search")
	}
	defer rows.Close()

	var out []models.SymbolRecord
	for rows.Next() {
		r, err := scanSymbol(rows)
		if err != nil {
			return nil, errors.Wrap(err, "sqlite: scan symbol")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) Symbol(ctx context.Context, exchange, code string) (models.SymbolRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+symbolColumns+" FROM symbols WHERE exchange = ? AND code = ?", exchange, code)
	r, err := scanSymbol(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r, false, nil
	}
	if err != nil {
		return r, false, errors.Wrap(err, "sqlite: symbol")
	}
	return r, true, nil
}

func (s *SQLite) ListSymbols(ctx context.Context) ([]models.SymbolRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+symbolColumns+" FROM symbols ORDER BY exchange, code")
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: list symbols")
	}
	defer rows.Close()

	var out []models.SymbolRecord
	for rows.Next() {
		r, err := scanSymbol(rows)
		if err != nil {
			return nil, errors.Wrap(err, "sqlite: scan symbol")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) SaveBars(ctx context.Context, symbol, resolution string, bars []models.Bar) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "sqlite: begin")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (symbol, resolution, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, resolution, ts) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume`)
	if err != nil {
		return 0, errors.Wrap(err, "sqlite: prepare bars")
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, resolution, b.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return 0, errors.Wrap(err, "sqlite: insert bar")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "sqlite: commit")
	}
	return len(bars), nil
}

func (s *SQLite) Bars(ctx context.Context, symbol, resolution string, from, to int64, countback int) ([]models.Bar, error) {
	q := `SELECT ts, open, high, low, close, volume FROM bars
		WHERE symbol = ? AND resolution = ? AND ts >= ? AND ts <= ?`
	args := []any{symbol, resolution, from, to}
	if countback > 0 {
		q += " ORDER BY ts DESC LIMIT ?"
		args = append(args, countback)
	} else {
		q += " ORDER BY ts ASC"
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: bars")
	}
	defer rows.Close()

	var out []models.Bar
	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			return nil, errors.Wrap(err, "sqlite: scan bar")
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite: bars")
	}
	if countback > 0 {
		slices.Reverse(out)
	}
	return out, nil
}

func (s *SQLite) LatestBefore(ctx context.Context, symbol, resolution string, t int64) (models.Bar, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT ts, open, high, low, close, volume FROM bars
		WHERE symbol = ? AND resolution = ? AND ts < ? ORDER BY ts DESC LIMIT 1`, symbol, resolution, t)
	b, err := scanBar(row)
	if errors.Is(err, sql.ErrNoRows) {
		return b, false, nil
	}
	if err != nil {
		return b, false, errors.Wrap(err, "sqlite: latest bar")
	}
	return b, true, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

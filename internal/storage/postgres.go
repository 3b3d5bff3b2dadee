package storage

import (
	"context"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"udf_feed/internal/models"
	"udf_feed/pkg/db"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS symbols (
	exchange   TEXT NOT NULL,
	code       TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL DEFAULT 'stock',
	session    TEXT NOT NULL DEFAULT '24x7',
	timezone   TEXT NOT NULL DEFAULT 'UTC',
	pricescale INTEGER NOT NULL DEFAULT 100,
	updated_at BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (exchange, code)
);
CREATE TABLE IF NOT EXISTS bars (
	symbol     TEXT NOT NULL,
	resolution TEXT NOT NULL,
	ts         BIGINT NOT NULL,
	open       DOUBLE PRECISION NOT NULL,
	high       DOUBLE PRECISION NOT NULL,
	low        DOUBLE PRECISION NOT NULL,
	close      DOUBLE PRECISION NOT NULL,
	volume     DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (symbol, resolution, ts)
);`

const (
	upsertSymbolSQL = `
		INSERT INTO symbols (exchange, code, name, type, session, timezone, pricescale, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (exchange, code) DO UPDATE SET
			name = EXCLUDED.name, type = EXCLUDED.type, session = EXCLUDED.session,
			timezone = EXCLUDED.timezone, pricescale = EXCLUDED.pricescale, updated_at = EXCLUDED.updated_at`

	upsertBarSQL = `
		INSERT INTO bars (symbol, resolution, ts, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, resolution, ts) DO UPDATE SET
			open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			close = EXCLUDED.close, volume = EXCLUDED.volume`
)

// Postgres is the Store used when storage.driver is postgres. Writes go
// through the transaction manager in batches.
type Postgres struct {
	tx *db.PgTxManager
}

func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres: empty dsn")
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{DSN: dsn})
	if err != nil {
		return nil, errors.Wrap(err, "postgres")
	}
	m := db.NewPgTxManager(pool)
	if _, err := m.Conn().Exec(ctx, postgresSchema); err != nil {
		m.Close()
		return nil, errors.Wrap(err, "postgres: create schema")
	}
	return &Postgres{tx: m}, nil
}

func (p *Postgres) UpsertSymbols(ctx context.Context, recs []models.SymbolRecord) error {
	now := time.Now().Unix()
	return p.tx.RunMaster(ctx, func(ctx context.Context, tx db.Transaction) error {
		batch := &pgx.Batch{}
		for _, r := range recs {
			r = withRecordDefaults(r)
			batch.Queue(upsertSymbolSQL, r.Exchange, r.Code, r.Name, r.Type, r.Session, r.Timezone, r.PriceScale, now)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (p *Postgres) SearchSymbols(ctx context.Context, query, symbolType, exchange string, limit int) ([]models.SymbolRecord, error) {
	q, args := searchSQL(dollarNumbers, query, symbolType, exchange, limit)
	rows, err := p.tx.Conn().Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: search")
	}
	return collectSymbols(rows)
}

func (p *Postgres) Symbol(ctx context.Context, exchange, code string) (models.SymbolRecord, bool, error) {
	row := p.tx.Conn().QueryRow(ctx, "SELECT "+symbolColumns+" FROM symbols WHERE exchange = $1 AND code = $2", exchange, code)
	r, err := scanSymbol(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, false, nil
	}
	if err != nil {
		return r, false, errors.Wrap(err, "postgres: symbol")
	}
	return r, true, nil
}

func (p *Postgres) ListSymbols(ctx context.Context) ([]models.SymbolRecord, error) {
	rows, err := p.tx.Conn().Query(ctx, "SELECT "+symbolColumns+" FROM symbols ORDER BY exchange, code")
	if err != nil {
		return nil, errors.Wrap(err, "postgres: list symbols")
	}
	return collectSymbols(rows)
}

func (p *Postgres) SaveBars(ctx context.Context, symbol, resolution string, bars []models.Bar) (int, error) {
	err := p.tx.RunMaster(ctx, func(ctx context.Context, tx db.Transaction) error {
		batch := &pgx.Batch{}
		for _, b := range bars {
			batch.Queue(upsertBarSQL, symbol, resolution, b.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return 0, errors.Wrap(err, "postgres: save bars")
	}
	return len(bars), nil
}

func (p *Postgres) Bars(ctx context.Context, symbol, resolution string, from, to int64, countback int) ([]models.Bar, error) {
	q := `SELECT ts, open, high, low, close, volume FROM bars
		WHERE symbol = $1 AND resolution = $2 AND ts >= $3 AND ts <= $4`
	args := []any{symbol, resolution, from, to}
	if countback > 0 {
		q += " ORDER BY ts DESC LIMIT $5"
		args = append(args, countback)
	} else {
		q += " ORDER BY ts ASC"
	}

	var out []models.Bar
	err := p.tx.RunRepeatableRead(ctx, func(ctx context.Context, tx db.Transaction) error {
		rows, err := tx.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			b, err := scanBar(rows)
			if err != nil {
				return errors.Wrap(err, "scan bar")
			}
			out = append(out, b)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, errors.Wrap(err, "postgres: bars")
	}
	if countback > 0 {
		slices.Reverse(out)
	}
	return out, nil
}

func (p *Postgres) LatestBefore(ctx context.Context, symbol, resolution string, t int64) (models.Bar, bool, error) {
	row := p.tx.Conn().QueryRow(ctx, `SELECT ts, open, high, low, close, volume FROM bars
		WHERE symbol = $1 AND resolution = $2 AND ts < $3 ORDER BY ts DESC LIMIT 1`, symbol, resolution, t)
	b, err := scanBar(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return b, false, nil
	}
	if err != nil {
		return b, false, errors.Wrap(err, "postgres: latest bar")
	}
	return b, true, nil
}

func (p *Postgres) Close() error {
	p.tx.Close()
	return nil
}

func collectSymbols(rows pgx.Rows) ([]models.SymbolRecord, error) {
	defer rows.Close()
	var out []models.SymbolRecord
	for rows.Next() {
		r, err := scanSymbol(rows)
		if err != nil {
			return nil, errors.Wrap(err, "postgres: scan symbol")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

package storage

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"udf_feed/internal/models"
	"udf_feed/internal/modules/config"
	"udf_feed/pkg/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store persists the symbol catalog and bars served by the UDF server.
// Bar times cross this interface in milliseconds and are stored in seconds.
type Store interface {
	UpsertSymbols(ctx context.Context, recs []models.SymbolRecord) error
	SearchSymbols(ctx context.Context, query, symbolType, exchange string, limit int) ([]models.SymbolRecord, error)
	Symbol(ctx context.Context, exchange, code string) (models.SymbolRecord, bool, error)
	ListSymbols(ctx context.Context) ([]models.SymbolRecord, error)

	SaveBars(ctx context.Context, symbol, resolution string, bars []models.Bar) (int, error)
	// Bars returns bars with from <= t <= to (seconds), ascending, keeping the
	// last countback when countback > 0.
	Bars(ctx context.Context, symbol, resolution string, from, to int64, countback int) ([]models.Bar, error)
	// LatestBefore is the newest bar strictly before t (seconds).
	LatestBefore(ctx context.Context, symbol, resolution string, t int64) (models.Bar, bool, error)

	Close() error
}

// Open picks the store by storage.driver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Driver {
	case "", DriverSQLite:
		return OpenSQLite(cfg.Storage.Path)
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.Storage.DSN)
	default:
		return nil, errors.Errorf("storage: unknown driver %q", cfg.Storage.Driver)
	}
}

// LoadCatalog reads a YAML list of symbol records.
func LoadCatalog(path string) ([]models.SymbolRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read catalog %s", path)
	}
	var doc struct {
		Symbols []models.SymbolRecord `yaml:"symbols"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrapf(err, "parse catalog %s", path)
	}

	out := doc.Symbols[:0]
	for _, r := range doc.Symbols {
		if r.Exchange == "" || r.Code == "" {
			logger.Warn("catalog %s: skipping record without exchange or code: %+v", path, r)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Seed loads the catalog file into s. An empty path is a no-op.
func Seed(ctx context.Context, s Store, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	recs, err := LoadCatalog(path)
	if err != nil {
		return 0, err
	}
	if err := s.UpsertSymbols(ctx, recs); err != nil {
		return 0, err
	}
	return len(recs), nil
}

// RefreshCatalog re-seeds s from path on every tick until ctx is done. A failed
// reload is logged and the previous catalog stays in place.
func RefreshCatalog(ctx context.Context, s Store, path string, tick <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			n, err := Seed(ctx, s, path)
			if err != nil {
				logger.Warn("catalog refresh %s: %v", path, err)
				continue
			}
			logger.Debug("catalog refresh %s: %d symbols", path, n)
		}
	}
}

func withRecordDefaults(r models.SymbolRecord) models.SymbolRecord {
	if r.Type == "" {
		r.Type = "stock"
	}
	if r.Session == "" {
		r.Session = "24x7"
	}
	if r.Timezone == "" {
		r.Timezone = "UTC"
	}
	if r.PriceScale <= 0 {
		r.PriceScale = 100
	}
	return r
}

type placeholder func(n int) string

func questionMarks(int) string   { return "?" }
func dollarNumbers(n int) string { return "$" + strconv.Itoa(n) }

// searchSQL builds the catalog search shared by both drivers.
func searchSQL(ph placeholder, query, symbolType, exchange string, limit int) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		like := "%" + q + "%"
		args = append(args, like, like)
		conds = append(conds, "(lower(code) LIKE "+ph(len(args)-1)+" OR lower(name) LIKE "+ph(len(args))+")")
	}
	if exchange != "" {
		args = append(args, exchange)
		conds = append(conds, "exchange = "+ph(len(args)))
	}
	if symbolType != "" {
		args = append(args, symbolType)
		conds = append(conds, "type = "+ph(len(args)))
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + symbolColumns + " FROM symbols")
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	args = append(args, limit)
	sb.WriteString(" ORDER BY exchange, code LIMIT " + ph(len(args)))
	return sb.String(), args
}

const symbolColumns = "exchange, code, name, type, session, timezone, pricescale, updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanSymbol(row scanner) (models.SymbolRecord, error) {
	var (
		r       models.SymbolRecord
		updated int64
	)
	if err := row.Scan(&r.Exchange, &r.Code, &r.Name, &r.Type, &r.Session, &r.Timezone, &r.PriceScale, &updated); err != nil {
		return r, err
	}
	if updated > 0 {
		r.UpdatedAt = unixTime(updated)
	}
	return r, nil
}

func scanBar(row scanner) (models.Bar, error) {
	var (
		b  models.Bar
		ts int64
	)
	if err := row.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
		return b, err
	}
	b.Time = ts * 1000
	return b, nil
}

func unixTime(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

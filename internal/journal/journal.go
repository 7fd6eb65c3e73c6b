// Package journal keeps an append-only SQLite log of committed sale events.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/journal/migrations"
	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/ethereum/go-ethereum/common"
	_ "modernc.org/sqlite"
)

// DefaultLimit caps List when the filter does not say otherwise.
const DefaultLimit = 100

// Entry is one journaled event. Payload is the event body as JSON.
type Entry struct {
	Seq     int64           `json:"seq"`
	ID      string          `json:"id"`
	Sale    common.Address  `json:"sale"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
	At      time.Time       `json:"at"`
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Sale     common.Address
	Name     string
	AfterSeq int64
	Limit    int
}

// Journal persists sale events in SQLite.
type Journal struct {
	sqlDB *sql.DB
}

// Open opens (or creates) the journal at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Journal{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (j *Journal) Close() error {
	if j == nil || j.sqlDB == nil {
		return nil
	}
	return j.sqlDB.Close()
}

// Append stores records in one transaction. Records already present (same
// ID) are skipped so a retried append does not duplicate events.
func (j *Journal) Append(ctx context.Context, records []sale.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	tx, err := j.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT OR IGNORE INTO sale_events (id, sale, name, payload, created_at)
VALUES (?, ?, ?, ?, ?)
`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if strings.TrimSpace(rec.ID) == "" {
			_ = tx.Rollback()
			return fmt.Errorf("event id is required")
		}
		payload, err := json.Marshal(rec.Payload)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encode %s payload: %w", rec.Name, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.Sale.Hex(), rec.Name, string(payload), rec.At.UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append %s: %w", rec.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// List returns events in commit order.
func (j *Journal) List(ctx context.Context, f Filter) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	where := []string{"seq > ?"}
	args := []any{f.AfterSeq}
	if f.Sale != (common.Address{}) {
		where = append(where, "sale = ?")
		args = append(args, f.Sale.Hex())
	}
	if name := strings.TrimSpace(f.Name); name != "" {
		where = append(where, "name = ?")
		args = append(args, name)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	args = append(args, limit)

	rows, err := j.sqlDB.QueryContext(ctx, `
SELECT seq, id, sale, name, payload, created_at
FROM sale_events
WHERE `+strings.Join(where, " AND ")+`
ORDER BY seq ASC
LIMIT ?
`, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			saleHex string
			payload string
			millis  int64
		)
		if err := rows.Scan(&e.Seq, &e.ID, &saleHex, &e.Name, &payload, &millis); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Sale = common.HexToAddress(saleHex)
		e.Payload = json.RawMessage(payload)
		e.At = time.UnixMilli(millis).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// Count returns the number of journaled events for a sale, by name.
func (j *Journal) Count(ctx context.Context, saleAddr common.Address) (map[string]int, error) {
	rows, err := j.sqlDB.QueryContext(ctx,
		"SELECT name, COUNT(*) FROM sale_events WHERE sale = ? GROUP BY name", saleAddr.Hex())
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[name] = n
	}
	return out, rows.Err()
}

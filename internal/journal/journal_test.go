package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/big"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	saleA = common.HexToAddress("0x5a1e000000000000000000000000000000000001")
	saleB = common.HexToAddress("0x5a1e000000000000000000000000000000000002")
	buyer = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
)

func openTempJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func record(id string, saleAddr common.Address, ev sale.Event, at time.Time) sale.Record {
	return sale.Record{ID: id, Name: ev.EventName(), Sale: saleAddr, At: at, Payload: ev}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "  ")
	assert.ErrorContains(t, err, "path is required")
}

func TestAppendListRoundTrip(t *testing.T) {
	t.Parallel()

	j := openTempJournal(t)
	ctx := context.Background()
	at := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.Append(ctx, []sale.Record{
		record("e1", saleA, sale.Paused{Account: buyer}, at),
		record("e2", saleA, sale.Purchase{Buyer: buyer, Beneficiary: 2, AmountIn: big.NewInt(100), AmountOut: big.NewInt(50)}, at.Add(time.Second)),
	}))

	entries, err := j.List(ctx, Filter{Sale: saleA})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "e1", entries[0].ID)
	assert.Equal(t, sale.EventPaused, entries[0].Name)
	assert.Equal(t, saleA, entries[0].Sale)
	assert.Equal(t, at, entries[0].At)
	assert.Less(t, entries[0].Seq, entries[1].Seq)

	var p struct {
		Buyer       common.Address `json:"buyer"`
		Beneficiary uint8          `json:"beneficiary"`
		AmountIn    *big.Int       `json:"amount_in"`
		AmountOut   *big.Int       `json:"amount_out"`
	}
	require.NoError(t, json.Unmarshal(entries[1].Payload, &p))
	assert.Equal(t, buyer, p.Buyer)
	assert.Equal(t, uint8(2), p.Beneficiary)
	assert.Equal(t, 0, p.AmountIn.Cmp(big.NewInt(100)))
	assert.Equal(t, 0, p.AmountOut.Cmp(big.NewInt(50)))
}

func TestAppendIsIdempotentByID(t *testing.T) {
	t.Parallel()

	j := openTempJournal(t)
	ctx := context.Background()
	recs := []sale.Record{record("dup", saleA, sale.Unpaused{Account: buyer}, time.Now())}

	require.NoError(t, j.Append(ctx, recs))
	require.NoError(t, j.Append(ctx, recs))

	entries, err := j.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAppendRejectsMissingIDAtomically(t *testing.T) {
	t.Parallel()

	j := openTempJournal(t)
	ctx := context.Background()
	err := j.Append(ctx, []sale.Record{
		record("ok", saleA, sale.Paused{Account: buyer}, time.Now()),
		record("", saleA, sale.Unpaused{Account: buyer}, time.Now()),
	})
	assert.ErrorContains(t, err, "event id is required")

	entries, err := j.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries, "a failed batch writes nothing")
}

func TestAppendEmptyAndCancelled(t *testing.T) {
	t.Parallel()

	j := openTempJournal(t)
	assert.NoError(t, j.Append(context.Background(), nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, j.Append(ctx, []sale.Record{record("x", saleA, sale.Paused{}, time.Now())}), context.Canceled)
	_, err := j.List(ctx, Filter{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListFilters(t *testing.T) {
	t.Parallel()

	j := openTempJournal(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, j.Append(ctx, []sale.Record{
		record("a1", saleA, sale.Paused{}, now),
		record("a2", saleA, sale.Unpaused{}, now),
		record("b1", saleB, sale.Paused{}, now),
		record("a3", saleA, sale.Paused{}, now),
	}))

	byName, err := j.List(ctx, Filter{Sale: saleA, Name: sale.EventPaused})
	require.NoError(t, err)
	require.Len(t, byName, 2)
	assert.Equal(t, "a1", byName[0].ID)
	assert.Equal(t, "a3", byName[1].ID)

	after, err := j.List(ctx, Filter{Sale: saleA, AfterSeq: byName[0].Seq})
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, "a2", after[0].ID)

	limited, err := j.List(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "a1", limited[0].ID)

	all, err := j.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestCount(t *testing.T) {
	t.Parallel()

	j := openTempJournal(t)
	ctx := context.Background()
	require.NoError(t, j.Append(ctx, []sale.Record{
		record("a1", saleA, sale.Paused{}, time.Now()),
		record("a2", saleA, sale.Unpaused{}, time.Now()),
		record("a3", saleA, sale.Paused{}, time.Now()),
		record("b1", saleB, sale.Paused{}, time.Now()),
	}))

	counts, err := j.Count(ctx, saleA)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{sale.EventPaused: 2, sale.EventUnpaused: 1}, counts)
}

func TestReopenKeepsEvents(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()
	j, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, j.Append(ctx, []sale.Record{record("keep", saleA, sale.Paused{}, time.Now())}))
	require.NoError(t, j.Close())

	j, err = Open(ctx, path)
	require.NoError(t, err)
	defer j.Close()
	entries, err := j.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep", entries[0].ID)
}

func TestCloseNil(t *testing.T) {
	t.Parallel()

	var j *Journal
	assert.NoError(t, j.Close())
}

// ---------------------------------------------------------------------------
// migrations
// ---------------------------------------------------------------------------

func TestExtractUpMigration(t *testing.T) {
	t.Parallel()

	content := "-- +migrate Up\nCREATE TABLE a (x INT);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "\nCREATE TABLE a (x INT);\n", extractUpMigration(content))
	assert.Equal(t, "SELECT 1;", extractUpMigration("SELECT 1;"))
	assert.Equal(t, "\nSELECT 2;", extractUpMigration("-- +migrate Up\nSELECT 2;"))
}

func TestApplyMigrationsRunsEachFileOnce(t *testing.T) {
	t.Parallel()

	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer sqlDB.Close()
	ctx := context.Background()

	fsys := fstest.MapFS{
		"0001_a.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE a (x INTEGER);\n-- +migrate Down\nDROP TABLE a;\n")},
		"0002_b.sql": {Data: []byte("INSERT INTO a (x) VALUES (1);")},
		"README.md":  {Data: []byte("ignored")},
	}
	require.NoError(t, applyMigrations(ctx, sqlDB, fsys))
	require.NoError(t, applyMigrations(ctx, sqlDB, fsys))

	var n int
	require.NoError(t, sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM a").Scan(&n))
	assert.Equal(t, 1, n, "a second run does not re-apply")

	require.NoError(t, sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+migrationTable).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestApplyMigrationsFailureIsReported(t *testing.T) {
	t.Parallel()

	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer sqlDB.Close()

	err = applyMigrations(context.Background(), sqlDB, fstest.MapFS{
		"0001_bad.sql": {Data: []byte("CREATE TABL broken;")},
	})
	assert.ErrorContains(t, err, "0001_bad.sql")
}

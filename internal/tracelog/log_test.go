package tracelog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bangle-io/nalanda-sub001/internal/trace"
)

func openTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.db")
	l, err := Open(path, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, path
}

func TestOpen_CreatesDatabase(t *testing.T) {
	_, path := openTestLog(t)

	_, err := os.Stat(path)
	assert.NoError(t, err, "database file should exist")
}

func TestOpen_Pragmas(t *testing.T) {
	l, _ := openTestLog(t)

	assert.NoError(t, l.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, l.verifyPragma("user_version", "1"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")

	for i := 0; i < 3; i++ {
		l, err := Open(path)
		require.NoError(t, err, "open iteration %d", i)
		require.NoError(t, l.Close())
	}
}

func TestWriteAndRecords_OrderedBySeq(t *testing.T) {
	l, _ := openTestLog(t)
	ctx := context.Background()

	// Written out of order on purpose.
	l.Record(trace.Record{Type: trace.TypeEffect, Store: "main", Seq: 2, Effect: "watch", Run: 1})
	l.Record(trace.Record{Type: trace.TypeTx, Store: "main", Seq: 1, TxID: "txn_1",
		Changed: []string{"sl_one$"}, Meta: map[string]string{"store": "main"}})
	l.Record(trace.Record{Type: trace.TypeTx, Store: "other", Seq: 1, TxID: "txn_9"})

	records, err := l.Records(ctx, "main")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, trace.TypeTx, records[0].Type)
	assert.Equal(t, "txn_1", records[0].TxID)
	assert.Equal(t, []string{"sl_one$"}, records[0].Changed)
	assert.Equal(t, map[string]string{"store": "main"}, records[0].Meta)
	assert.Equal(t, "watch", records[1].Effect)
	assert.Equal(t, int64(1), records[1].Run)
}

func TestWrite_DuplicateSeqIgnored(t *testing.T) {
	l, _ := openTestLog(t)
	ctx := context.Background()

	require.NoError(t, l.Write(ctx, trace.Record{Type: trace.TypeTx, Store: "main", Seq: 1, TxID: "first"}))
	require.NoError(t, l.Write(ctx, trace.Record{Type: trace.TypeTx, Store: "main", Seq: 1, TxID: "second"}))

	records, err := l.Records(ctx, "main")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "first", records[0].TxID)
}

func TestRecords_EmptyNotNil(t *testing.T) {
	l, _ := openTestLog(t)

	records, err := l.Records(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestStoresAndCounts(t *testing.T) {
	l, _ := openTestLog(t)
	ctx := context.Background()

	l.Record(trace.Record{Type: trace.TypeTx, Store: "b", Seq: 1})
	l.Record(trace.Record{Type: trace.TypeTx, Store: "a", Seq: 1})
	l.Record(trace.Record{Type: trace.TypeOperation, Store: "a", Seq: 2, Operation: "load"})
	l.Record(trace.Record{Type: trace.TypeTx, Store: "a", Seq: 3})

	stores, err := l.Stores(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, stores)

	counts, err := l.Counts(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, map[trace.Type]int{trace.TypeTx: 2, trace.TypeOperation: 1}, counts)
}

func TestReopen_PreservesRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")
	ctx := context.Background()

	l1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l1.Write(ctx, trace.Record{Type: trace.TypeTx, Store: "main", Seq: 1}))
	require.NoError(t, l1.Close())

	l2, err := Open(path)
	require.NoError(t, err)
	defer l2.Close()

	records, err := l2.Records(ctx, "main")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

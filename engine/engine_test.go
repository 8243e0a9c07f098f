package engine

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/sqlite-worker/value"
)

func openTest(t *testing.T, opts ...Option) *Database {
	t.Helper()
	opts = append([]Option{WithDir(t.TempDir())}, opts...)
	db, err := Open(nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_CreatesAndRemovesStore(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(nil, WithDir(dir))
	require.NoError(t, err)
	path := db.store.path()
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, db.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.True(t, db.Closed())
}

func TestOpen_UniqueStores(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(nil, WithDir(dir))
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(nil, WithDir(dir))
	require.NoError(t, err)
	defer b.Close()
	assert.NotEqual(t, a.store.path(), b.store.path())
}

func TestOpen_InvalidImage(t *testing.T) {
	db, err := Open([]byte("definitely not a database image"), WithDir(t.TempDir()))
	if err == nil {
		// the engine may defer the header check to the first read
		defer db.Close()
		_, err = db.Exec("SELECT * FROM sqlite_master", Params{})
	}
	assert.Error(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	db, err := Open(nil, WithDir(t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err = db.Exec("SELECT 1", Params{})
	assert.ErrorIs(t, err, ErrDatabaseClosed)
	_, err = db.Prepare("SELECT 1", Params{})
	assert.ErrorIs(t, err, ErrDatabaseClosed)
	_, err = db.Export()
	assert.ErrorIs(t, err, ErrDatabaseClosed)
	assert.True(t, IsUsage(err))
}

func TestClose_FreesStatements(t *testing.T) {
	db, err := Open(nil, WithDir(t.TempDir()))
	require.NoError(t, err)
	stmt, err := db.Prepare("SELECT 1", Params{})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = stmt.Step()
	assert.ErrorIs(t, err, ErrStatementClosed)
	assert.NoError(t, stmt.Free())
}

func TestExport_RoundTrip(t *testing.T) {
	db := openTest(t)
	_, err := db.Exec("CREATE TABLE t(a INTEGER, b TEXT); INSERT INTO t VALUES (1,'x'),(2,'y');", Params{})
	require.NoError(t, err)

	data, err := db.Export()
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, "SQLite format 3\x00", string(data[:16]))

	// still usable after export
	_, err = db.Exec("INSERT INTO t VALUES (3,'z')", Params{})
	require.NoError(t, err)

	clone, err := Open(data, WithDir(t.TempDir()))
	require.NoError(t, err)
	defer clone.Close()
	res, err := clone.Exec("SELECT count(*) AS n FROM t", Params{})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, [][]value.Value{{value.Integer(2)}}, res[0].Values)
}

func TestExport_FinalizesStatementsAndDropsFunctions(t *testing.T) {
	db := openTest(t)
	require.NoError(t, db.CreateFunction("one", func([]value.Value) (any, error) { return 1, nil }))
	stmt, err := db.Prepare("SELECT 1", Params{})
	require.NoError(t, err)

	_, err = db.Export()
	require.NoError(t, err)

	_, err = stmt.Step()
	assert.ErrorIs(t, err, ErrStatementClosed)
	_, err = db.Exec("SELECT one()", Params{})
	assert.Error(t, err)

	// extensions are reinstalled
	res, err := db.Exec("SELECT reverse('ab')", Params{})
	require.NoError(t, err)
	assert.Equal(t, value.Text("ba"), res[0].Values[0][0])
}

func TestRowsModified(t *testing.T) {
	db := openTest(t)
	_, err := db.Exec("CREATE TABLE t(a); INSERT INTO t VALUES (1),(2),(3);", Params{})
	require.NoError(t, err)
	n, err := db.RowsModified()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = db.Exec("DELETE FROM t WHERE a > 1", Params{})
	require.NoError(t, err)
	n, err = db.RowsModified()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, db.Close())
	_, err = db.RowsModified()
	assert.ErrorIs(t, err, ErrDatabaseClosed)
}

func TestError_Message(t *testing.T) {
	db := openTest(t)
	_, err := db.Exec("SELECT * FROM missing", Params{})
	var engErr *Error
	require.ErrorAs(t, err, &engErr)
	assert.Contains(t, engErr.Msg, "no such table: missing")
	assert.False(t, IsUsage(err))
}

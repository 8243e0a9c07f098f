package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/sqlite-worker/internal/arena"
	"github.com/viant/sqlite-worker/value"
)

func TestStatement_BindStepGet(t *testing.T) {
	db := openTest(t)
	stmt, err := db.Prepare("SELECT ? AS a, ? AS b, ? AS c, ? AS d, ? AS e", Args(1, 2.5, "txt", []byte{9}, nil))
	require.NoError(t, err)
	defer stmt.Free()

	assert.Equal(t, 5, stmt.ParameterCount())
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, stmt.ColumnNames())
	ok, err := stmt.Step()
	require.NoError(t, err)
	require.True(t, ok)
	row, err := stmt.Get()
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.Integer(1), value.Float(2.5), value.Text("txt"), value.Blob([]byte{9}), value.Null()}, row)

	c, err := stmt.GetColumn(2)
	require.NoError(t, err)
	assert.Equal(t, value.Text("txt"), c)
	_, err = stmt.GetColumn(5)
	assert.Error(t, err)

	ok, err = stmt.Step()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatement_GetAsObject_LastDuplicateWins(t *testing.T) {
	db := openTest(t)
	stmt, err := db.Prepare("SELECT 1 AS x, 2 AS x", Params{})
	require.NoError(t, err)
	defer stmt.Free()
	ok, err := stmt.Step()
	require.NoError(t, err)
	require.True(t, ok)
	obj, err := stmt.GetAsObject()
	require.NoError(t, err)
	assert.Equal(t, map[string]value.Value{"x": value.Integer(2)}, obj)
}

func TestStatement_UnsupportedBindLeavesNoBindings(t *testing.T) {
	db := openTest(t)
	stmt, err := db.Prepare("SELECT ? AS a, ? AS b", Args(1, 2))
	require.NoError(t, err)
	defer stmt.Free()

	err = stmt.Bind(Args(3, struct{}{}))
	var unsupported *value.UnsupportedTypeError
	require.ErrorAs(t, err, &unsupported)
	assert.True(t, IsUsage(err))
	assert.Zero(t, stmt.Pending())

	ok, err := stmt.Step()
	require.NoError(t, err)
	require.True(t, ok)
	row, err := stmt.Get()
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.Null(), value.Null()}, row)
}

func TestStatement_AllocationFailureLeavesNoBindings(t *testing.T) {
	db := openTest(t)
	stmt, err := db.Prepare("SELECT ? AS a, ? AS b, ? AS c", Args(1, 2, 3))
	require.NoError(t, err)
	defer stmt.Free()
	stmt.arena.SetLimit(8)

	err = stmt.Bind(Args("short", []byte{1, 2}, "well past the staging limit"))
	var allocErr *arena.AllocationError
	require.ErrorAs(t, err, &allocErr)
	assert.False(t, IsUsage(err))
	assert.Zero(t, stmt.Pending())

	ok, err := stmt.Step()
	require.NoError(t, err)
	require.True(t, ok)
	row, err := stmt.Get()
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.Null(), value.Null(), value.Null()}, row)
}

func TestStatement_MixedParams(t *testing.T) {
	db := openTest(t)
	stmt, err := db.Prepare("SELECT ?", Params{})
	require.NoError(t, err)
	defer stmt.Free()
	err = stmt.Bind(Params{Args: []any{1}, Names: map[string]any{":a": 1}})
	assert.ErrorIs(t, err, ErrMixedParams)
}

func TestStatement_ArenaReleasedOnReset(t *testing.T) {
	db := openTest(t)
	_, err := db.Exec("CREATE TABLE t(s TEXT, b BLOB)", Params{})
	require.NoError(t, err)
	stmt, err := db.Prepare("INSERT INTO t VALUES (?, ?)", Params{})
	require.NoError(t, err)
	defer stmt.Free()

	for i := 0; i < 3; i++ {
		require.NoError(t, stmt.Bind(Args("row", []byte{byte(i)})))
		assert.Equal(t, 2, stmt.Pending())
		require.NoError(t, stmt.Run(Params{}))
		assert.Zero(t, stmt.Pending())
	}
	res, err := db.Exec("SELECT count(*) FROM t", Params{})
	require.NoError(t, err)
	assert.Equal(t, value.Integer(3), res[0].Values[0][0])
}

func TestStatement_BindNext(t *testing.T) {
	db := openTest(t)
	stmt, err := db.Prepare("SELECT ?, ?", Params{})
	require.NoError(t, err)
	defer stmt.Free()

	require.NoError(t, stmt.BindNext("a"))
	require.NoError(t, stmt.BindNext(int64(2)))
	assert.Equal(t, "SELECT 'a', 2", stmt.ExpandedSQL())
	assert.Equal(t, "SELECT ?, ?", stmt.SQL())

	require.NoError(t, stmt.Reset())
	require.NoError(t, stmt.BindNext("b"))
	assert.Equal(t, "SELECT 'b', NULL", stmt.ExpandedSQL())
}

func TestStatement_Rebind(t *testing.T) {
	db := openTest(t)
	stmt, err := db.Prepare("SELECT $x", Params{})
	require.NoError(t, err)
	defer stmt.Free()

	for _, want := range []int64{1, 2, 3} {
		require.NoError(t, stmt.Bind(Named(map[string]any{"$x": want})))
		ok, err := stmt.Step()
		require.NoError(t, err)
		require.True(t, ok)
		got, err := stmt.GetColumn(0)
		require.NoError(t, err)
		assert.Equal(t, value.Integer(want), got)
	}
}

func TestStatement_Free(t *testing.T) {
	db := openTest(t)
	stmt, err := db.Prepare("SELECT 1", Params{})
	require.NoError(t, err)
	require.Len(t, db.stmts, 1)

	require.NoError(t, stmt.Free())
	assert.Empty(t, db.stmts)
	require.NoError(t, stmt.Free())

	_, err = stmt.Step()
	assert.ErrorIs(t, err, ErrStatementClosed)
	_, err = stmt.Get()
	assert.ErrorIs(t, err, ErrStatementClosed)
	assert.ErrorIs(t, stmt.Bind(Args(1)), ErrStatementClosed)
	assert.ErrorIs(t, stmt.Reset(), ErrStatementClosed)
	assert.Equal(t, "", stmt.SQL())
}

func TestPrepare_NothingToPrepare(t *testing.T) {
	db := openTest(t)
	_, err := db.Prepare("  ;", Params{})
	assert.ErrorIs(t, err, ErrNothingToPrepare)
	_, err = db.Prepare("", Params{})
	assert.ErrorIs(t, err, ErrNothingToPrepare)
}

func TestPrepare_BindFailureFreesStatement(t *testing.T) {
	db := openTest(t)
	_, err := db.Prepare("SELECT ?", Args(make(chan int)))
	require.Error(t, err)
	assert.Empty(t, db.stmts)
}

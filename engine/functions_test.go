package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/sqlite-worker/value"
)

func TestCreateFunction(t *testing.T) {
	db := openTest(t)
	require.NoError(t, db.CreateFunction("double", func(args []value.Value) (any, error) {
		return args[0].Int() * 2, nil
	}))
	res, err := db.Exec("SELECT double(21) AS v", Params{})
	require.NoError(t, err)
	assert.Equal(t, value.Integer(42), res[0].Values[0][0])
}

func TestCreateFunction_ResultKinds(t *testing.T) {
	var testCases = []struct {
		description string
		out         any
		expect      value.Value
	}{
		{description: "nil", out: nil, expect: value.Null()},
		{description: "bool", out: true, expect: value.Integer(1)},
		{description: "int", out: 7, expect: value.Integer(7)},
		{description: "float", out: 0.5, expect: value.Float(0.5)},
		{description: "string", out: "héllo", expect: value.Text("héllo")},
		{description: "bytes", out: []byte{1, 0, 2}, expect: value.Blob([]byte{1, 0, 2})},
		{description: "value", out: value.Text("v"), expect: value.Text("v")},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			db := openTest(t)
			out := testCase.out
			require.NoError(t, db.CreateFunction("f", func([]value.Value) (any, error) { return out, nil }))
			res, err := db.Exec("SELECT f()", Params{})
			require.NoError(t, err)
			assert.Equal(t, testCase.expect, res[0].Values[0][0])
		})
	}
}

func TestCreateFunction_Arguments(t *testing.T) {
	db := openTest(t)
	var seen []value.Value
	require.NoError(t, db.CreateFunction("capture", func(args []value.Value) (any, error) {
		seen = args
		return len(args), nil
	}))
	res, err := db.Exec("SELECT capture(1, 2.5, 'a', x'ff', NULL)", Params{})
	require.NoError(t, err)
	assert.Equal(t, value.Integer(5), res[0].Values[0][0])
	assert.Equal(t, []value.Value{value.Integer(1), value.Float(2.5), value.Text("a"), value.Blob([]byte{0xff}), value.Null()}, seen)
}

func TestCreateFunction_Errors(t *testing.T) {
	var testCases = []struct {
		description string
		fn          Function
		expect      string
	}{
		{
			description: "returned error",
			fn:          func([]value.Value) (any, error) { return nil, errors.New("boom") },
			expect:      "engine: function bad: boom",
		},
		{
			description: "panic",
			fn:          func([]value.Value) (any, error) { panic("kaput") },
			expect:      "engine: function bad: panic: kaput",
		},
		{
			description: "unsupported result",
			fn:          func([]value.Value) (any, error) { return map[string]int{}, nil },
			expect:      "value: unsupported type",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			db := openTest(t)
			require.NoError(t, db.CreateFunction("bad", testCase.fn))
			_, err := db.Exec("SELECT bad()", Params{})
			var engErr *Error
			require.ErrorAs(t, err, &engErr)
			assert.Contains(t, engErr.Msg, testCase.expect)

			// the connection stays usable
			res, err := db.Exec("SELECT 1", Params{})
			require.NoError(t, err)
			assert.Len(t, res, 1)
		})
	}
}

func TestCreateFunction_Replace(t *testing.T) {
	db := openTest(t)
	require.NoError(t, db.CreateFunction("f", func([]value.Value) (any, error) { return 1, nil }))
	require.NoError(t, db.CreateFunction("f", func([]value.Value) (any, error) { return 2, nil }))
	assert.Len(t, db.funcs, 1)
	res, err := db.Exec("SELECT f()", Params{})
	require.NoError(t, err)
	assert.Equal(t, value.Integer(2), res[0].Values[0][0])
}

func TestCreateFunction_ReleasedOnClose(t *testing.T) {
	db, err := Open(nil, WithDir(t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, db.CreateFunction("f", func([]value.Value) (any, error) { return 1, nil }))
	id := db.funcs["f"].id
	require.NotNil(t, lookupBridge(id))
	require.NoError(t, db.Close())
	assert.Nil(t, lookupBridge(id))
	assert.ErrorIs(t, db.CreateFunction("g", func([]value.Value) (any, error) { return nil, nil }), ErrDatabaseClosed)
}

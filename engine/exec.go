package engine

import (
	"unsafe"

	"modernc.org/libc"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/viant/sqlite-worker/value"
)

// ResultSet is the output of one column-producing statement run by Exec.
type ResultSet struct {
	Columns []string        `json:"columns"`
	Values  [][]value.Value `json:"values"`
}

// prepare compiles the first statement of the NUL-terminated text at zSQL.
// pstmt is zero when the text holds only whitespace or comments; tail points
// past the consumed text.
func (d *Database) prepare(zSQL uintptr) (pstmt, tail uintptr, err error) {
	pp := d.tls.Alloc(int(2 * ptrSize))
	defer d.tls.Free(int(2 * ptrSize))
	ppStmt, ppTail := pp, pp+ptrSize
	*(*uintptr)(unsafe.Pointer(ppStmt)) = 0
	*(*uintptr)(unsafe.Pointer(ppTail)) = 0

	if err := d.check(sqlite3.Xsqlite3_prepare_v2(d.tls, d.db, zSQL, -1, ppStmt, ppTail)); err != nil {
		return 0, 0, err
	}
	return *(*uintptr)(unsafe.Pointer(ppStmt)), *(*uintptr)(unsafe.Pointer(ppTail)), nil
}

// Prepare compiles the first statement in sql and, unless p is the zero
// Params, binds it. The Statement stays registered with d until freed or
// until d is closed or exported.
func (d *Database) Prepare(sql string, p Params) (*Statement, error) {
	if d.db == 0 {
		return nil, ErrDatabaseClosed
	}
	zSQL, err := libc.CString(sql)
	if err != nil {
		return nil, err
	}
	defer libc.Xfree(d.tls, zSQL)

	pstmt, _, err := d.prepare(zSQL)
	if err != nil {
		return nil, err
	}
	if pstmt == 0 {
		return nil, ErrNothingToPrepare
	}
	stmt := d.newStatement(pstmt)
	if !p.IsZero() {
		if err := stmt.Bind(p); err != nil {
			_ = stmt.Free()
			return nil, err
		}
	}
	return stmt, nil
}

// Exec runs every statement of sql to completion and returns one ResultSet
// per statement that produced at least one row, in script order. p, when not the
// zero Params, is bound to the first statement that declares parameters.
func (d *Database) Exec(sql string, p Params) ([]ResultSet, error) {
	if d.db == 0 {
		return nil, ErrDatabaseClosed
	}
	script, err := libc.CString(sql)
	if err != nil {
		return nil, err
	}
	defer libc.Xfree(d.tls, script)

	results := []ResultSet{}
	pending := p
	for tail := script; *(*byte)(unsafe.Pointer(tail)) != 0; {
		pstmt, next, err := d.prepare(tail)
		if err != nil {
			return nil, err
		}
		tail = next
		if pstmt == 0 {
			continue
		}
		stmt := d.newStatement(pstmt)
		if !pending.IsZero() && stmt.ParameterCount() > 0 {
			err = stmt.Bind(pending)
			pending = Params{}
		}
		if err == nil {
			results, err = collect(stmt, results)
		}
		freeErr := stmt.Free()
		if err != nil {
			return nil, err
		}
		if freeErr != nil {
			return nil, freeErr
		}
	}
	return results, nil
}

// collect steps stmt to completion. A result block is added on the first
// row, so a statement that yields no rows leaves results unchanged.
func collect(stmt *Statement, results []ResultSet) ([]ResultSet, error) {
	block := -1
	for {
		ok, err := stmt.Step()
		if err != nil {
			return nil, err
		}
		if !ok {
			return results, nil
		}
		if stmt.ColumnCount() == 0 {
			continue
		}
		if block < 0 {
			results = append(results, ResultSet{Columns: stmt.ColumnNames(), Values: [][]value.Value{}})
			block = len(results) - 1
		}
		row, err := stmt.Get()
		if err != nil {
			return nil, err
		}
		results[block].Values = append(results[block].Values, row)
	}
}

// Each prepares sql once, binds p and calls row for every result row before
// stepping further. done, when not nil, is called after the last row. The
// statement is freed even when a callback fails; the callback's error is
// returned unchanged.
func (d *Database) Each(sql string, p Params, row func(map[string]value.Value) error, done func() error) error {
	stmt, err := d.Prepare(sql, p)
	if err != nil {
		return err
	}
	if err := eachRow(stmt, row); err != nil {
		return err
	}
	if done != nil {
		return done()
	}
	return nil
}

func eachRow(stmt *Statement, row func(map[string]value.Value) error) error {
	defer stmt.Free()
	for {
		ok, err := stmt.Step()
		if err != nil || !ok {
			return err
		}
		obj, err := stmt.GetAsObject()
		if err != nil {
			return err
		}
		if err := row(obj); err != nil {
			return err
		}
	}
}

// Run executes sql for its side effects. With parameters only the first
// statement is run; without them the whole script is executed.
func (d *Database) Run(sql string, p Params) error {
	if d.db == 0 {
		return ErrDatabaseClosed
	}
	if !p.IsZero() {
		stmt, err := d.Prepare(sql, p)
		if err != nil {
			return err
		}
		_, err = stmt.Step()
		if freeErr := stmt.Free(); err == nil {
			err = freeErr
		}
		return err
	}
	zSQL, err := libc.CString(sql)
	if err != nil {
		return err
	}
	defer libc.Xfree(d.tls, zSQL)
	return d.check(sqlite3.Xsqlite3_exec(d.tls, d.db, zSQL, 0, 0, 0))
}

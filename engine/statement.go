package engine

import (
	"fmt"
	"unsafe"

	"modernc.org/libc"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/viant/sqlite-worker/internal/arena"
	"github.com/viant/sqlite-worker/value"
)

// Statement is a compiled statement owned by one Database. Text and blob
// parameters are staged in the statement's arena and stay allocated until
// the next Reset or Free, because the engine reads them by reference while
// stepping. A single value larger than the engine's length limit fails with
// *arena.AllocationError.
type Statement struct {
	db        *Database
	pstmt     uintptr // *sqlite3.Sqlite3_stmt
	arena     *arena.Arena
	bindIndex int
}

func (d *Database) newStatement(pstmt uintptr) *Statement {
	ar := arena.New(d.tls)
	ar.SetLimit(int(d.maxLength()))
	s := &Statement{db: d, pstmt: pstmt, arena: ar, bindIndex: 1}
	d.stmts[pstmt] = s
	return s
}

// Bind resets the statement, clearing previous bindings and releasing their
// staged memory, then binds p. Every parameter is converted before any is
// bound, so an unsupported value leaves the statement with no bindings
// rather than a partial set. Named parameters that the statement does not
// declare are skipped.
func (s *Statement) Bind(p Params) error {
	if s.pstmt == 0 {
		return ErrStatementClosed
	}
	s.rewind()
	positional, named, err := p.convert()
	if err != nil {
		return err
	}
	if err := s.bindAll(positional, named); err != nil {
		s.clear()
		return err
	}
	return nil
}

func (s *Statement) bindAll(positional []value.Value, named []namedValue) error {
	for i, v := range positional {
		if err := s.bindValue(i+1, v); err != nil {
			return err
		}
	}
	for _, nv := range named {
		idx, err := s.parameterIndex(nv.name)
		if err != nil {
			return err
		}
		if idx == 0 {
			continue
		}
		if err := s.bindValue(idx, nv.value); err != nil {
			return err
		}
	}
	return nil
}

// BindNext binds v at the statement's implicit position, which starts at 1
// and advances with every BindNext call until the next Reset.
func (s *Statement) BindNext(v any) error {
	if s.pstmt == 0 {
		return ErrStatementClosed
	}
	c, err := value.From(v)
	if err != nil {
		return err
	}
	if err := s.bindValue(s.bindIndex, c); err != nil {
		return err
	}
	s.bindIndex++
	return nil
}

// ParameterCount returns the number of parameters the statement declares.
func (s *Statement) ParameterCount() int {
	if s.pstmt == 0 {
		return 0
	}
	return int(sqlite3.Xsqlite3_bind_parameter_count(s.db.tls, s.pstmt))
}

func (s *Statement) parameterIndex(name string) (int, error) {
	cname, err := libc.CString(name)
	if err != nil {
		return 0, err
	}
	defer libc.Xfree(s.db.tls, cname)
	return int(sqlite3.Xsqlite3_bind_parameter_index(s.db.tls, s.pstmt, cname)), nil
}

func (s *Statement) bindValue(idx int, v value.Value) error {
	tls := s.db.tls
	var rc int32
	switch v.Kind() {
	case value.KindNull:
		rc = sqlite3.Xsqlite3_bind_null(tls, s.pstmt, int32(idx))
	case value.KindInteger:
		rc = sqlite3.Xsqlite3_bind_int64(tls, s.pstmt, int32(idx), v.Int())
	case value.KindFloat:
		rc = sqlite3.Xsqlite3_bind_double(tls, s.pstmt, int32(idx), v.Float())
	case value.KindText:
		al, err := s.arena.StageString(v.Text())
		if err != nil {
			return err
		}
		rc = sqlite3.Xsqlite3_bind_text(tls, s.pstmt, int32(idx), al.Addr, int32(al.Size), 0)
	case value.KindBlob:
		al, err := s.arena.StageBytes(v.Blob())
		if err != nil {
			return err
		}
		rc = sqlite3.Xsqlite3_bind_blob(tls, s.pstmt, int32(idx), al.Addr, int32(al.Size), 0)
	default:
		return &value.UnsupportedTypeError{Value: v}
	}
	return s.db.check(rc)
}

// Step advances the statement by one row. It returns true when a row is
// available and false once the statement has run to completion.
func (s *Statement) Step() (bool, error) {
	if s.pstmt == 0 {
		return false, ErrStatementClosed
	}
	switch rc := sqlite3.Xsqlite3_step(s.db.tls, s.pstmt); rc {
	case sqlite3.SQLITE_ROW:
		return true, nil
	case sqlite3.SQLITE_DONE:
		return false, nil
	default:
		return false, s.db.check(rc)
	}
}

// ColumnCount returns the number of result columns.
func (s *Statement) ColumnCount() int {
	if s.pstmt == 0 {
		return 0
	}
	return int(sqlite3.Xsqlite3_column_count(s.db.tls, s.pstmt))
}

// ColumnNames returns the result column names in order.
func (s *Statement) ColumnNames() []string {
	n := s.ColumnCount()
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = libc.GoString(sqlite3.Xsqlite3_column_name(s.db.tls, s.pstmt, int32(i)))
	}
	return names
}

// Get reads every column of the current row. Each cell takes the type the
// engine reports for it, so one column can yield different kinds on
// different rows.
func (s *Statement) Get() ([]value.Value, error) {
	if s.pstmt == 0 {
		return nil, ErrStatementClosed
	}
	n := s.ColumnCount()
	row := make([]value.Value, n)
	for i := 0; i < n; i++ {
		row[i] = s.column(i)
	}
	return row, nil
}

// GetColumn reads a single column of the current row.
func (s *Statement) GetColumn(i int) (value.Value, error) {
	if s.pstmt == 0 {
		return value.Value{}, ErrStatementClosed
	}
	if n := s.ColumnCount(); i < 0 || i >= n {
		return value.Value{}, fmt.Errorf("engine: column index %d out of range [0,%d)", i, n)
	}
	return s.column(i), nil
}

// GetAsObject reads the current row keyed by column name. When two columns
// share a name the later one wins.
func (s *Statement) GetAsObject() (map[string]value.Value, error) {
	row, err := s.Get()
	if err != nil {
		return nil, err
	}
	names := s.ColumnNames()
	out := make(map[string]value.Value, len(names))
	for i, name := range names {
		out[name] = row[i]
	}
	return out, nil
}

func (s *Statement) column(i int) value.Value {
	tls := s.db.tls
	col := int32(i)
	switch sqlite3.Xsqlite3_column_type(tls, s.pstmt, col) {
	case sqlite3.SQLITE_INTEGER:
		return value.Integer(sqlite3.Xsqlite3_column_int64(tls, s.pstmt, col))
	case sqlite3.SQLITE_FLOAT:
		return value.Float(sqlite3.Xsqlite3_column_double(tls, s.pstmt, col))
	case sqlite3.SQLITE_TEXT:
		p := sqlite3.Xsqlite3_column_text(tls, s.pstmt, col)
		n := sqlite3.Xsqlite3_column_bytes(tls, s.pstmt, col)
		return value.Text(string(copyNative(p, n)))
	case sqlite3.SQLITE_BLOB:
		p := sqlite3.Xsqlite3_column_blob(tls, s.pstmt, col)
		n := sqlite3.Xsqlite3_column_bytes(tls, s.pstmt, col)
		return value.Blob(copyNative(p, n))
	}
	return value.Null()
}

func copyNative(p uintptr, n int32) []byte {
	out := make([]byte, n)
	if p != 0 && n > 0 {
		copy(out, (*libc.RawMem)(unsafe.Pointer(p))[:n:n])
	}
	return out
}

// Run binds p (unless it is the zero Params), steps once and resets. It is
// meant for statements executed for their side effect.
func (s *Statement) Run(p Params) error {
	if s.pstmt == 0 {
		return ErrStatementClosed
	}
	if !p.IsZero() {
		if err := s.Bind(p); err != nil {
			return err
		}
	}
	if _, err := s.Step(); err != nil {
		return err
	}
	return s.Reset()
}

// SQL returns the text the statement was compiled from.
func (s *Statement) SQL() string {
	if s.pstmt == 0 {
		return ""
	}
	return libc.GoString(sqlite3.Xsqlite3_sql(s.db.tls, s.pstmt))
}

// ExpandedSQL returns the statement text with bound parameters substituted.
func (s *Statement) ExpandedSQL() string {
	if s.pstmt == 0 {
		return ""
	}
	p := sqlite3.Xsqlite3_expanded_sql(s.db.tls, s.pstmt)
	if p == 0 {
		return ""
	}
	defer sqlite3.Xsqlite3_free(s.db.tls, p)
	return libc.GoString(p)
}

// Reset releases all staged parameter memory, clears the bindings and
// rewinds the statement so it can be stepped again.
func (s *Statement) Reset() error {
	if s.pstmt == 0 {
		return ErrStatementClosed
	}
	rcClear := sqlite3.Xsqlite3_clear_bindings(s.db.tls, s.pstmt)
	rcReset := sqlite3.Xsqlite3_reset(s.db.tls, s.pstmt)
	s.arena.ReleaseAll()
	s.bindIndex = 1
	if err := s.db.check(rcClear); err != nil {
		return err
	}
	return s.db.check(rcReset)
}

// rewind resets the statement ignoring the status of its last step, which
// the engine reports again from sqlite3_reset.
func (s *Statement) rewind() {
	sqlite3.Xsqlite3_reset(s.db.tls, s.pstmt)
	s.clear()
}

// clear drops bindings without rewinding the statement.
func (s *Statement) clear() {
	sqlite3.Xsqlite3_clear_bindings(s.db.tls, s.pstmt)
	s.arena.ReleaseAll()
	s.bindIndex = 1
}

// Free finalizes the statement and removes it from its Database. Freeing an
// already freed statement is a no-op.
func (s *Statement) Free() error {
	if s.pstmt == 0 {
		return nil
	}
	sqlite3.Xsqlite3_clear_bindings(s.db.tls, s.pstmt)
	rc := sqlite3.Xsqlite3_finalize(s.db.tls, s.pstmt)
	s.arena.ReleaseAll()
	delete(s.db.stmts, s.pstmt)
	s.pstmt = 0
	return s.db.check(rc)
}

// Pending returns the number of staged parameter allocations still held by
// the statement.
func (s *Statement) Pending() int { return s.arena.Len() }

package engine

import (
	"iter"
	"unsafe"

	"modernc.org/libc"
)

// Cursor walks the statements of a script one at a time. Each call to Next
// frees the previously returned Statement before compiling the following
// one, so at most one Statement of the script is alive. A Cursor is not
// restartable; once it reports exhaustion, or fails, it keeps reporting
// exhaustion.
type Cursor struct {
	db        *Database
	script    uintptr // NUL-terminated copy of the script
	tail      uintptr // start of the not yet compiled text
	current   *Statement
	remaining string
}

// IterateStatements returns a Cursor over the statements in sql.
func (d *Database) IterateStatements(sql string) (*Cursor, error) {
	if d.db == 0 {
		return nil, ErrDatabaseClosed
	}
	script, err := libc.CString(sql)
	if err != nil {
		return nil, err
	}
	c := &Cursor{db: d, script: script, tail: script, remaining: sql}
	d.cursors[c] = struct{}{}
	return c, nil
}

// Next returns the next Statement. ok is false when no statement remains.
// A compile error is returned once; the text that failed to compile stays
// available from RemainingSQL and the cursor is exhausted afterwards.
func (c *Cursor) Next() (stmt *Statement, ok bool, err error) {
	if c.script == 0 {
		return nil, false, nil
	}
	if c.current != nil {
		_ = c.current.Free()
		c.current = nil
	}
	if c.db.db == 0 {
		c.release()
		return nil, false, ErrDatabaseClosed
	}
	for *(*byte)(unsafe.Pointer(c.tail)) != 0 {
		pstmt, tail, err := c.db.prepare(c.tail)
		if err != nil {
			c.remaining = libc.GoString(c.tail)
			c.release()
			return nil, false, err
		}
		c.tail = tail
		if pstmt == 0 {
			continue
		}
		c.remaining = libc.GoString(c.tail)
		c.current = c.db.newStatement(pstmt)
		return c.current, true, nil
	}
	c.remaining = ""
	c.release()
	return nil, false, nil
}

// RemainingSQL returns the text not yet compiled. After a compile error it
// returns the text starting at the statement that failed.
func (c *Cursor) RemainingSQL() string { return c.remaining }

// All adapts the cursor to a range-over-func sequence. Iteration stops
// after the first error.
func (c *Cursor) All() iter.Seq2[*Statement, error] {
	return func(yield func(*Statement, error) bool) {
		for {
			stmt, ok, err := c.Next()
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok || !yield(stmt, nil) {
				return
			}
		}
	}
}

// Close frees the current Statement and the script copy without waiting for
// exhaustion. Closing the Database, or exporting it, closes its cursors.
func (c *Cursor) Close() {
	if c.current != nil {
		_ = c.current.Free()
		c.current = nil
	}
	c.release()
}

func (c *Cursor) release() {
	if c.script != 0 {
		libc.Xfree(c.db.tls, c.script)
		c.script = 0
		c.tail = 0
	}
	delete(c.db.cursors, c)
}

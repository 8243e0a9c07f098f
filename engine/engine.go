package engine

import (
	"unsafe"

	"go.uber.org/zap"
	"modernc.org/libc"
	sqlite3 "modernc.org/sqlite/lib"
)

const ptrSize = unsafe.Sizeof(uintptr(0))

// Option configures a Database.
type Option func(*options)

type options struct {
	dir        string
	extensions bool
}

func newOptions(opts []Option) options {
	o := options{extensions: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithDir sets the directory holding the backing store. It defaults to the
// system temporary directory.
func WithDir(dir string) Option { return func(o *options) { o.dir = dir } }

// WithExtensions toggles the built-in extension functions (vec_cosine,
// reverse, padl, ...). They are installed by default.
func WithExtensions(enabled bool) Option { return func(o *options) { o.extensions = enabled } }

// Database is an open engine connection over an ephemeral, uniquely named
// backing store.
type Database struct {
	tls   *libc.TLS
	db    uintptr // *sqlite3.Xsqlite3
	store *store
	opts  options

	stmts    map[uintptr]*Statement
	cursors  map[*Cursor]struct{}
	funcs    map[string]*function
	builtins []*function
}

// Open creates a Database. When data is non-nil the backing store is
// pre-populated with it, so data is expected to be a database image such
// as one returned by Export.
func Open(data []byte, opts ...Option) (*Database, error) {
	o := newOptions(opts)
	st, err := newStore(o.dir, data)
	if err != nil {
		return nil, err
	}
	d := &Database{
		tls:     libc.NewTLS(),
		store:   st,
		opts:    o,
		stmts:   make(map[uintptr]*Statement),
		cursors: make(map[*Cursor]struct{}),
		funcs:   make(map[string]*function),
	}
	if err := d.open(); err != nil {
		d.tls.Close()
		_ = st.remove()
		return nil, err
	}
	Logger().Debug("database opened", zap.String("path", st.path()), zap.Int("bytes", len(data)))
	return d, nil
}

func (d *Database) open() error {
	path := d.store.path()
	cpath, err := libc.CString(path)
	if err != nil {
		return err
	}
	defer libc.Xfree(d.tls, cpath)

	pp := d.tls.Alloc(int(ptrSize))
	defer d.tls.Free(int(ptrSize))
	*(*uintptr)(unsafe.Pointer(pp)) = 0

	rc := sqlite3.Xsqlite3_open_v2(d.tls, cpath, pp, sqlite3.SQLITE_OPEN_READWRITE|sqlite3.SQLITE_OPEN_CREATE, 0)
	handle := *(*uintptr)(unsafe.Pointer(pp))
	if rc != sqlite3.SQLITE_OK {
		msg := libc.GoString(sqlite3.Xsqlite3_errstr(d.tls, rc))
		if handle != 0 {
			msg = libc.GoString(sqlite3.Xsqlite3_errmsg(d.tls, handle))
			sqlite3.Xsqlite3_close_v2(d.tls, handle)
		}
		return &OpenError{Path: path, Code: int(rc), Msg: msg}
	}
	d.db = handle
	if d.opts.extensions {
		if err := d.installExtensions(); err != nil {
			d.dropFunctions()
			sqlite3.Xsqlite3_close_v2(d.tls, d.db)
			d.db = 0
			return err
		}
	}
	return nil
}

// check converts a non-OK status into an *Error carrying the engine's
// current error message.
func (d *Database) check(rc int32) error {
	if rc == sqlite3.SQLITE_OK {
		return nil
	}
	return &Error{Code: int(rc), Msg: libc.GoString(sqlite3.Xsqlite3_errmsg(d.tls, d.db))}
}

// RowsModified returns the number of rows changed by the most recent
// INSERT, UPDATE or DELETE.
func (d *Database) RowsModified() (int, error) {
	if d.db == 0 {
		return 0, ErrDatabaseClosed
	}
	return int(sqlite3.Xsqlite3_changes(d.tls, d.db)), nil
}

// Export closes every open cursor, finalizes every open statement, removes every user function,
// flushes the backing store and returns its bytes. The Database is reopened
// on the same store and stays usable.
func (d *Database) Export() ([]byte, error) {
	if d.db == 0 {
		return nil, ErrDatabaseClosed
	}
	d.closeCursors()
	d.freeStatements()
	d.dropFunctions()
	if err := d.closeHandle(); err != nil {
		return nil, err
	}
	data, readErr := d.store.read()
	if err := d.open(); err != nil {
		_ = d.store.remove()
		d.tls.Close()
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	Logger().Debug("database exported", zap.String("path", d.store.path()), zap.Int("bytes", len(data)))
	return data, nil
}

// Close closes every open cursor, finalizes every open statement, removes every user function, closes
// the native handle and deletes the backing store. Closing twice is a no-op.
func (d *Database) Close() error {
	if d.db == 0 {
		return nil
	}
	d.closeCursors()
	d.freeStatements()
	d.dropFunctions()
	err := d.closeHandle()
	if rmErr := d.store.remove(); rmErr != nil {
		Logger().Warn("failed to remove backing store", zap.String("path", d.store.path()), zap.Error(rmErr))
	}
	d.tls.Close()
	Logger().Debug("database closed", zap.String("path", d.store.path()))
	return err
}

// Closed reports whether Close has been called.
func (d *Database) Closed() bool { return d.db == 0 }

func (d *Database) closeHandle() error {
	err := d.check(sqlite3.Xsqlite3_close_v2(d.tls, d.db))
	d.db = 0
	return err
}

func (d *Database) closeCursors() {
	for c := range d.cursors {
		c.Close()
	}
}

func (d *Database) freeStatements() {
	for _, stmt := range d.stmts {
		if err := stmt.Free(); err != nil {
			Logger().Debug("statement finalized with error", zap.Error(err))
		}
	}
}

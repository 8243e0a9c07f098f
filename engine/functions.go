package engine

import (
	"fmt"
	"sync"
	"unsafe"

	"go.uber.org/zap"
	"modernc.org/libc"
	"modernc.org/libc/sys/types"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/viant/sqlite-worker/value"
)

// Function is a host callback installed as a scalar SQL function. It
// receives the call's arguments and returns nil, a bool (stored as 0/1),
// any Go integer or float, a string, a []byte or a value.Value. Returning
// an error, returning any other type, or panicking makes the SQL call fail
// with the corresponding message.
type Function func(args []value.Value) (any, error)

type function struct {
	name  string
	cname uintptr
	id    uintptr
	fn    Function
}

// bridge maps the user-data id handed to the engine back to the Go
// callback. The trampoline must be a plain function, so callbacks are never
// passed to the engine directly.
var bridge = struct {
	mu   sync.RWMutex
	m    map[uintptr]*function
	next uintptr
}{m: make(map[uintptr]*function)}

func registerBridge(f *function) uintptr {
	bridge.mu.Lock()
	defer bridge.mu.Unlock()
	bridge.next++
	bridge.m[bridge.next] = f
	return bridge.next
}

func unregisterBridge(id uintptr) {
	bridge.mu.Lock()
	delete(bridge.m, id)
	bridge.mu.Unlock()
}

func lookupBridge(id uintptr) *function {
	bridge.mu.RLock()
	defer bridge.mu.RUnlock()
	return bridge.m[id]
}

// CreateFunction installs fn as the SQL function name, accepting any number
// of arguments. Installing a name twice replaces the previous callback.
// User functions are removed by Export and Close.
func (d *Database) CreateFunction(name string, fn Function) error {
	if d.db == 0 {
		return ErrDatabaseClosed
	}
	if prev, ok := d.funcs[name]; ok {
		d.dropFunction(prev)
		delete(d.funcs, name)
	}
	f, err := d.installFunction(name, fn)
	if err != nil {
		return err
	}
	d.funcs[name] = f
	return nil
}

func (d *Database) installFunction(name string, fn Function) (*function, error) {
	cname, err := libc.CString(name)
	if err != nil {
		return nil, err
	}
	f := &function{name: name, cname: cname, fn: fn}
	f.id = registerBridge(f)
	rc := sqlite3.Xsqlite3_create_function(
		d.tls,
		d.db,
		cname,
		-1,
		sqlite3.SQLITE_UTF8,
		f.id,
		cFuncPointer(funcTrampoline),
		0,
		0,
	)
	if err := d.check(rc); err != nil {
		unregisterBridge(f.id)
		libc.Xfree(d.tls, cname)
		return nil, err
	}
	return f, nil
}

func (d *Database) dropFunction(f *function) {
	if d.db != 0 {
		rc := sqlite3.Xsqlite3_create_function(d.tls, d.db, f.cname, -1, sqlite3.SQLITE_UTF8, 0, 0, 0, 0)
		if err := d.check(rc); err != nil {
			Logger().Warn("failed to remove function", zap.String("name", f.name), zap.Error(err))
		}
	}
	unregisterBridge(f.id)
	libc.Xfree(d.tls, f.cname)
	f.cname = 0
}

// dropFunctions removes user functions and built-in extensions alike.
func (d *Database) dropFunctions() {
	for name, f := range d.funcs {
		d.dropFunction(f)
		delete(d.funcs, name)
	}
	for _, f := range d.builtins {
		d.dropFunction(f)
	}
	d.builtins = nil
}

// cFuncPointer converts a function declaration (not a closure) into the
// pointer form the transpiled engine expects.
func cFuncPointer[T any](f T) uintptr {
	return *(*uintptr)(unsafe.Pointer(&struct{ f T }{f}))
}

func funcTrampoline(tls *libc.TLS, ctx uintptr, argc int32, argv uintptr) {
	f := lookupBridge(sqlite3.Xsqlite3_user_data(tls, ctx))
	if f == nil {
		resultError(tls, ctx, "engine: function is no longer registered")
		return
	}
	out, err := f.call(functionArgs(tls, argc, argv))
	if err != nil {
		resultError(tls, ctx, err.Error())
		return
	}
	if err := resultValue(tls, ctx, out); err != nil {
		resultError(tls, ctx, err.Error())
	}
}

// call runs the callback, converting failures and panics into a
// *FunctionError so nothing unwinds through the engine.
func (f *function) call(args []value.Value) (out value.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FunctionError{Name: f.name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	res, err := f.fn(args)
	if err != nil {
		return value.Value{}, &FunctionError{Name: f.name, Err: err}
	}
	if out, err = value.From(res); err != nil {
		return value.Value{}, &FunctionError{Name: f.name, Err: err}
	}
	return out, nil
}

func functionArgs(tls *libc.TLS, argc int32, argv uintptr) []value.Value {
	args := make([]value.Value, argc)
	for i := int32(0); i < argc; i++ {
		p := *(*uintptr)(unsafe.Pointer(argv + uintptr(i)*ptrSize))
		switch sqlite3.Xsqlite3_value_type(tls, p) {
		case sqlite3.SQLITE_INTEGER:
			args[i] = value.Integer(sqlite3.Xsqlite3_value_int64(tls, p))
		case sqlite3.SQLITE_FLOAT:
			args[i] = value.Float(sqlite3.Xsqlite3_value_double(tls, p))
		case sqlite3.SQLITE_TEXT:
			text := sqlite3.Xsqlite3_value_text(tls, p)
			args[i] = value.Text(string(copyNative(text, sqlite3.Xsqlite3_value_bytes(tls, p))))
		case sqlite3.SQLITE_BLOB:
			blob := sqlite3.Xsqlite3_value_blob(tls, p)
			args[i] = value.Blob(copyNative(blob, sqlite3.Xsqlite3_value_bytes(tls, p)))
		default:
			args[i] = value.Null()
		}
	}
	return args
}

func resultValue(tls *libc.TLS, ctx uintptr, v value.Value) error {
	switch v.Kind() {
	case value.KindInteger:
		sqlite3.Xsqlite3_result_int64(tls, ctx, v.Int())
	case value.KindFloat:
		sqlite3.Xsqlite3_result_double(tls, ctx, v.Float())
	case value.KindText:
		s := v.Text()
		cstr, err := libc.CString(s)
		if err != nil {
			return err
		}
		defer libc.Xfree(tls, cstr)
		sqlite3.Xsqlite3_result_text(tls, ctx, cstr, int32(len(s)), sqlite3.SQLITE_TRANSIENT)
	case value.KindBlob:
		b := v.Blob()
		if len(b) == 0 {
			sqlite3.Xsqlite3_result_zeroblob(tls, ctx, 0)
			return nil
		}
		p := libc.Xmalloc(tls, types.Size_t(len(b)))
		if p == 0 {
			return fmt.Errorf("engine: cannot allocate %d bytes for function result", len(b))
		}
		defer libc.Xfree(tls, p)
		copy((*libc.RawMem)(unsafe.Pointer(p))[:len(b):len(b)], b)
		sqlite3.Xsqlite3_result_blob(tls, ctx, p, int32(len(b)), sqlite3.SQLITE_TRANSIENT)
	default:
		sqlite3.Xsqlite3_result_null(tls, ctx)
	}
	return nil
}

func resultError(tls *libc.TLS, ctx uintptr, msg string) {
	cmsg, err := libc.CString(msg)
	if err != nil {
		sqlite3.Xsqlite3_result_error_nomem(tls, ctx)
		return
	}
	defer libc.Xfree(tls, cmsg)
	sqlite3.Xsqlite3_result_error(tls, ctx, cmsg, -1)
}

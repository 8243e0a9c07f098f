package engine

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/viant/sqlite-worker/value"
	"github.com/viant/sqlite-worker/vector"
)

// extension is a scalar function installed on every open connection when
// extensions are enabled.
type extension struct {
	name string
	fn   Function
}

// errTooBig matches the engine's own message for oversized results.
var errTooBig = errors.New("string or blob too big")

// extensions lists the built-in functions bound to d. Functions that build
// strings from SQL-supplied counts check the result size against the
// engine's length limit before allocating.
func (d *Database) extensions() []extension {
	return []extension{
		{name: "vec_cosine", fn: vecFunc("vec_cosine", vector.Cosine)},
		{name: "vec_l2", fn: vecFunc("vec_l2", vector.L2)},
		{name: "reverse", fn: strFunc1("reverse", reverse)},
		{name: "proper", fn: strFunc1("proper", proper)},
		{name: "padl", fn: padFunc("padl", d.maxLength, func(s, pad string) string { return pad + s })},
		{name: "padr", fn: padFunc("padr", d.maxLength, func(s, pad string) string { return s + pad })},
		{name: "replicate", fn: replicateFunc(d.maxLength)},
		{name: "leftstr", fn: sliceFunc("leftstr", leftstr)},
		{name: "rightstr", fn: sliceFunc("rightstr", rightstr)},
		{name: "charindex", fn: charindex},
		{name: "square", fn: square},
	}
}

func (d *Database) installExtensions() error {
	for _, ext := range d.extensions() {
		f, err := d.installFunction(ext.name, ext.fn)
		if err != nil {
			return fmt.Errorf("engine: install %s: %w", ext.name, err)
		}
		d.builtins = append(d.builtins, f)
	}
	return nil
}

// maxLength returns the engine's SQLITE_LIMIT_LENGTH, the largest string
// or blob in bytes the connection accepts.
func (d *Database) maxLength() int64 {
	return int64(sqlite3.Xsqlite3_limit(d.tls, d.db, sqlite3.SQLITE_LIMIT_LENGTH, -1))
}

func arity(name string, args []value.Value, min, max int) error {
	if len(args) < min || len(args) > max {
		if min == max {
			return fmt.Errorf("%s: expected %d arguments, got %d", name, min, len(args))
		}
		return fmt.Errorf("%s: expected %d to %d arguments, got %d", name, min, max, len(args))
	}
	return nil
}

func hasNull(args []value.Value) bool {
	for _, a := range args {
		if a.IsNull() {
			return true
		}
	}
	return false
}

func vecFunc(name string, m vector.Metric) Function {
	return func(args []value.Value) (any, error) {
		if err := arity(name, args, 2, 2); err != nil {
			return nil, err
		}
		return vector.Compare(m, args[0], args[1])
	}
}

func strFunc1(name string, fn func(string) string) Function {
	return func(args []value.Value) (any, error) {
		if err := arity(name, args, 1, 1); err != nil {
			return nil, err
		}
		if args[0].IsNull() {
			return nil, nil
		}
		return fn(textOf(args[0])), nil
	}
}

// textOf renders numbers the way the engine casts them to text.
func textOf(v value.Value) string {
	switch v.Kind() {
	case value.KindInteger, value.KindFloat:
		return v.String()
	}
	return v.Text()
}

func reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

func proper(s string) string {
	return cases.Title(language.Und).String(strings.ToLower(s))
}

func padFunc(name string, limit func() int64, join func(s, pad string) string) Function {
	return func(args []value.Value) (any, error) {
		if err := arity(name, args, 2, 2); err != nil {
			return nil, err
		}
		if hasNull(args) {
			return nil, nil
		}
		s := textOf(args[0])
		n := args[1].Int()
		if n < 0 {
			return nil, fmt.Errorf("%s: invalid length %d", name, n)
		}
		missing := n - int64(utf8.RuneCountInString(s))
		if missing <= 0 {
			return s, nil
		}
		if int64(len(s))+missing > limit() {
			return nil, fmt.Errorf("%s: %w", name, errTooBig)
		}
		return join(s, strings.Repeat(" ", int(missing))), nil
	}
}

func replicateFunc(limit func() int64) Function {
	return func(args []value.Value) (any, error) {
		if err := arity("replicate", args, 2, 2); err != nil {
			return nil, err
		}
		if hasNull(args) {
			return nil, nil
		}
		s := textOf(args[0])
		n := args[1].Int()
		if n < 0 {
			return nil, fmt.Errorf("replicate: invalid count %d", n)
		}
		if len(s) > 0 && n > limit()/int64(len(s)) {
			return nil, fmt.Errorf("replicate: %w", errTooBig)
		}
		return strings.Repeat(s, int(n)), nil
	}
}

func sliceFunc(name string, fn func(runes []rune, n int) []rune) Function {
	return func(args []value.Value) (any, error) {
		if err := arity(name, args, 2, 2); err != nil {
			return nil, err
		}
		if hasNull(args) {
			return nil, nil
		}
		n := int(args[1].Int())
		if n < 0 {
			return nil, fmt.Errorf("%s: invalid length %d", name, n)
		}
		return string(fn([]rune(textOf(args[0])), n)), nil
	}
}

func leftstr(runes []rune, n int) []rune {
	if n > len(runes) {
		n = len(runes)
	}
	return runes[:n]
}

func rightstr(runes []rune, n int) []rune {
	if n > len(runes) {
		n = len(runes)
	}
	return runes[len(runes)-n:]
}

// charindex(needle, haystack [, start]) returns the 1-based rune position
// of needle in haystack at or after start, or 0.
func charindex(args []value.Value) (any, error) {
	if err := arity("charindex", args, 2, 3); err != nil {
		return nil, err
	}
	if hasNull(args[:2]) {
		return nil, nil
	}
	needle := []rune(textOf(args[0]))
	haystack := []rune(textOf(args[1]))
	start := 1
	if len(args) == 3 && !args[2].IsNull() {
		if start = int(args[2].Int()); start < 1 {
			start = 1
		}
	}
	if len(needle) == 0 {
		return int64(0), nil
	}
	for i := start - 1; i+len(needle) <= len(haystack); i++ {
		if string(haystack[i:i+len(needle)]) == string(needle) {
			return int64(i + 1), nil
		}
	}
	return int64(0), nil
}

func square(args []value.Value) (any, error) {
	if err := arity("square", args, 1, 1); err != nil {
		return nil, err
	}
	switch x := args[0]; x.Kind() {
	case value.KindNull:
		return nil, nil
	case value.KindInteger:
		return x.Int() * x.Int(), nil
	default:
		return x.Float() * x.Float(), nil
	}
}

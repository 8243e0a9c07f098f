package engine

import "github.com/viant/sqlite-worker/value"

// Params carries the parameters of one bind call: either positional Args
// (bound to ?1, ?2, ...) or Names keyed by the full parameter name including
// its sigil (":id", "$id", "@id"). The zero Params binds nothing.
type Params struct {
	Args  []any
	Names map[string]any
}

// Args returns positional Params.
func Args(args ...any) Params {
	if args == nil {
		args = []any{}
	}
	return Params{Args: args}
}

// Named returns named Params.
func Named(names map[string]any) Params {
	if names == nil {
		names = map[string]any{}
	}
	return Params{Names: names}
}

// IsZero reports whether p carries no bind request at all.
func (p Params) IsZero() bool { return p.Args == nil && p.Names == nil }

type namedValue struct {
	name  string
	value value.Value
}

// convert validates every parameter before anything is bound so a failing
// conversion never leaves a statement partially bound.
func (p Params) convert() ([]value.Value, []namedValue, error) {
	if p.Args != nil && p.Names != nil {
		return nil, nil, ErrMixedParams
	}
	if p.Args != nil {
		values, err := value.FromAll(p.Args)
		return values, nil, err
	}
	named := make([]namedValue, 0, len(p.Names))
	for name, raw := range p.Names {
		v, err := value.From(raw)
		if err != nil {
			return nil, nil, err
		}
		named = append(named, namedValue{name: name, value: v})
	}
	return nil, named, nil
}

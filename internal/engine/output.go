package engine

// Output is the value published by Combine and Collection: child name (or
// collection id) to child output. A published Output is never mutated; a
// change produces a new map.
type Output map[string]any

// Lookup walks an output mirror by name. It returns nil if any step is
// missing or is not an Output.
func Lookup(v any, path ...string) any {
	for _, name := range path {
		out, ok := v.(Output)
		if !ok {
			return nil
		}
		v = out[name]
	}
	return v
}

// LookupAs is Lookup with a type assertion.
func LookupAs[T any](v any, path ...string) (T, bool) {
	t, ok := Lookup(v, path...).(T)
	return t, ok
}

package bridge

import "slices"

// Closer is anything with a terminal Close.
type Closer interface {
	Close()
}

// CloseAll closes each closer in order, skipping nils.
func CloseAll(closers ...Closer) {
	for _, c := range closers {
		if c != nil {
			c.Close()
		}
	}
}

// CloseSorted closes the values of m in key order.
func CloseSorted[C Closer](m map[string]C) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		m[k].Close()
	}
}

package state

import (
	"encoding/json"
	"slices"
)

// Table is an immutable ordered map from id to entity. The id list and the
// map live in one value, so the ids always equal the key set.
//
// Every mutator returns a new *Table when something changed and the receiver
// itself when nothing did. Reference equality on a *Table is therefore a
// valid dirty check. A nil *Table behaves as an empty table.
type Table[T any] struct {
	ids  []string
	byID map[string]T
}

// NewTable builds a table from ids and entities in order. Duplicate ids keep
// the first position and the last value.
func NewTable[T any](ids []string, get func(id string) T) *Table[T] {
	t := &Table[T]{byID: make(map[string]T, len(ids))}
	for _, id := range ids {
		if _, ok := t.byID[id]; !ok {
			t.ids = append(t.ids, id)
		}
		t.byID[id] = get(id)
	}
	return t
}

// Len returns the number of entries.
func (t *Table[T]) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ids)
}

// IDs returns a copy of the ordered id list.
func (t *Table[T]) IDs() []string {
	if t == nil {
		return nil
	}
	return slices.Clone(t.ids)
}

// Get returns the entity for id.
func (t *Table[T]) Get(id string) (T, bool) {
	var zero T
	if t == nil {
		return zero, false
	}
	v, ok := t.byID[id]
	return v, ok
}

// Has reports whether id is present.
func (t *Table[T]) Has(id string) bool {
	_, ok := t.Get(id)
	return ok
}

// All iterates entries in id order.
func (t *Table[T]) All(yield func(id string, v T) bool) {
	if t == nil {
		return
	}
	for _, id := range t.ids {
		if !yield(id, t.byID[id]) {
			return
		}
	}
}

// Set returns a table with id mapped to v. New ids are appended.
func (t *Table[T]) Set(id string, v T) *Table[T] {
	out := t.clone(1)
	if _, ok := out.byID[id]; !ok {
		out.ids = append(out.ids, id)
	}
	out.byID[id] = v
	return out
}

// Delete returns a table without id, or t itself if id is absent.
func (t *Table[T]) Delete(id string) *Table[T] {
	if !t.Has(id) {
		return t
	}
	out := t.clone(0)
	delete(out.byID, id)
	out.ids = slices.DeleteFunc(out.ids, func(s string) bool { return s == id })
	return out
}

// DeleteWhere returns a table without the entries matching fn, or t itself
// if none match.
func (t *Table[T]) DeleteWhere(fn func(id string, v T) bool) *Table[T] {
	var doomed []string
	for id, v := range t.All {
		if fn(id, v) {
			doomed = append(doomed, id)
		}
	}
	if len(doomed) == 0 {
		return t
	}
	out := t.clone(0)
	for _, id := range doomed {
		delete(out.byID, id)
	}
	out.ids = slices.DeleteFunc(out.ids, func(s string) bool { return !out.has(s) })
	return out
}

func (t *Table[T]) has(id string) bool {
	_, ok := t.byID[id]
	return ok
}

func (t *Table[T]) clone(extra int) *Table[T] {
	out := &Table[T]{
		ids:  make([]string, 0, t.Len()+extra),
		byID: make(map[string]T, t.Len()+extra),
	}
	if t != nil {
		out.ids = append(out.ids, t.ids...)
		for k, v := range t.byID {
			out.byID[k] = v
		}
	}
	return out
}

type tableJSON[T any] struct {
	IDs   []string     `json:"ids"`
	Items map[string]T `json:"items"`
}

// MarshalJSON writes {"ids": [...], "items": {...}}; never null.
func (t *Table[T]) MarshalJSON() ([]byte, error) {
	out := tableJSON[T]{IDs: []string{}, Items: map[string]T{}}
	if t != nil {
		out.IDs = append(out.IDs, t.ids...)
		for k, v := range t.byID {
			out.Items[k] = v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the MarshalJSON form. Ids missing from items are
// dropped so the invariant holds on decode.
func (t *Table[T]) UnmarshalJSON(data []byte) error {
	var in tableJSON[T]
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	t.ids = nil
	t.byID = make(map[string]T, len(in.IDs))
	for _, id := range in.IDs {
		v, ok := in.Items[id]
		if !ok || t.has(id) {
			continue
		}
		t.ids = append(t.ids, id)
		t.byID[id] = v
	}
	return nil
}

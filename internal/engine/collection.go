package engine

import (
	"maps"
	"slices"
)

// Collection keeps one child per id. On every props change the id set is
// recomputed: ids that left are destroyed, ids that appeared are built, and
// ids that stayed are updated only if their own props changed by reference.
//
// The published Output maps id to child output. It is replaced only when
// membership changes or a member publishes.
func Collection[P, C any](ids func(P) []string, props func(P, string) C, child Worker[C]) Worker[P] {
	return collectionWorker[P, C]{ids: ids, props: props, child: child}
}

type collectionWorker[P, C any] struct {
	ids   func(P) []string
	props func(P, string) C
	child Worker[C]
}

type member[C any] struct {
	el    element[C]
	props C
	last  any
}

type collectionElement[P, C any] struct {
	rt      *runtime
	path    string
	w       collectionWorker[P, C]
	members map[string]*member[C]
	dirty   bool
	out     Output
}

func (w collectionWorker[P, C]) build(rt *runtime, path string) element[P] {
	return &collectionElement[P, C]{
		rt:      rt,
		path:    path,
		w:       w,
		members: make(map[string]*member[C]),
		out:     Output{},
	}
}

func (el *collectionElement[P, C]) update(props P) {
	var ids []string
	if !el.rt.safely(el.path, OpProps, func() { ids = el.w.ids(props) }) {
		return
	}

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	for _, id := range slices.Sorted(maps.Keys(el.members)) {
		if _, ok := want[id]; ok {
			continue
		}
		el.members[id].el.destroy()
		delete(el.members, id)
		el.dirty = true
	}

	for _, id := range ids {
		var c C
		if !el.rt.safely(el.path+"/"+id, OpProps, func() { c = el.w.props(props, id) }) {
			continue
		}

		m, ok := el.members[id]
		if !ok {
			m = &member[C]{el: el.w.child.build(el.rt, el.path+"/"+id), props: c}
			el.members[id] = m
			el.dirty = true
			m.el.update(c)
			continue
		}
		if Same(m.props, c) {
			continue
		}
		m.props = c
		m.el.update(c)
	}
}

func (el *collectionElement[P, C]) output() any {
	changed := el.dirty
	for _, m := range el.members {
		v := m.el.output()
		if !Same(m.last, v) {
			m.last = v
			changed = true
		}
	}
	if !changed {
		return el.out
	}

	out := make(Output, len(el.members))
	for id, m := range el.members {
		if m.last != nil {
			out[id] = m.last
		}
	}
	el.dirty = false
	el.out = out
	return out
}

func (el *collectionElement[P, C]) destroy() {
	for _, id := range slices.Sorted(maps.Keys(el.members)) {
		el.members[id].el.destroy()
	}
	el.members = map[string]*member[C]{}
}

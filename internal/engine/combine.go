package engine

import (
	"maps"
	"slices"
)

// Combine runs every child with the same props and publishes their outputs
// under the child names. A child that has not published is absent from the
// output map.
func Combine[P any](children map[string]Worker[P]) Worker[P] {
	names := slices.Sorted(maps.Keys(children))
	workers := make([]Worker[P], len(names))
	for i, name := range names {
		workers[i] = children[name]
	}
	return combineWorker[P]{names: names, workers: workers}
}

type combineWorker[P any] struct {
	names   []string
	workers []Worker[P]
}

type combineElement[P any] struct {
	names    []string
	children []element[P]
	last     []any
	out      Output
}

func (w combineWorker[P]) build(rt *runtime, path string) element[P] {
	el := &combineElement[P]{
		names:    w.names,
		children: make([]element[P], len(w.workers)),
		last:     make([]any, len(w.workers)),
		out:      Output{},
	}
	for i, worker := range w.workers {
		el.children[i] = worker.build(rt, path+"/"+w.names[i])
	}
	return el
}

func (el *combineElement[P]) update(props P) {
	for _, child := range el.children {
		child.update(props)
	}
}

func (el *combineElement[P]) output() any {
	changed := false
	for i, child := range el.children {
		v := child.output()
		if !Same(el.last[i], v) {
			el.last[i] = v
			changed = true
		}
	}
	if !changed {
		return el.out
	}

	out := make(Output, len(el.children))
	for i, name := range el.names {
		if el.last[i] != nil {
			out[name] = el.last[i]
		}
	}
	el.out = out
	return out
}

func (el *combineElement[P]) destroy() {
	for _, child := range el.children {
		child.destroy()
	}
}

// Filter adapts props for a subtree. fn runs inline in the pass; if it
// panics the subtree keeps its previous props.
func Filter[P, C any](child Worker[C], fn func(P) C) Worker[P] {
	return filterWorker[P, C]{child: child, fn: fn}
}

type filterWorker[P, C any] struct {
	child Worker[C]
	fn    func(P) C
}

type filterElement[P, C any] struct {
	rt    *runtime
	path  string
	fn    func(P) C
	child element[C]
}

func (w filterWorker[P, C]) build(rt *runtime, path string) element[P] {
	return &filterElement[P, C]{
		rt:    rt,
		path:  path,
		fn:    w.fn,
		child: w.child.build(rt, path),
	}
}

func (el *filterElement[P, C]) update(props P) {
	var c C
	if !el.rt.safely(el.path, OpProps, func() { c = el.fn(props) }) {
		return
	}
	el.child.update(c)
}

func (el *filterElement[P, C]) output() any {
	return el.child.output()
}

func (el *filterElement[P, C]) destroy() {
	el.child.destroy()
}

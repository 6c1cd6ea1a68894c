package tree

import "sort"

type direction int

const (
	deepestFirst direction = iota
	rootFirst
)

type levelGroup[T any] struct {
	level int
	items []T
}

// levelOrder groups items by level. Levels come in dir order and items keep
// their input (registration) order within a level. Empty levels are omitted.
func levelOrder[T any](items []T, levelOf func(T) int, dir direction) []levelGroup[T] {
	index := make(map[int]int)
	var groups []levelGroup[T]
	for _, item := range items {
		level := levelOf(item)
		pos, ok := index[level]
		if !ok {
			pos = len(groups)
			index[level] = pos
			groups = append(groups, levelGroup[T]{level: level})
		}
		groups[pos].items = append(groups[pos].items, item)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if dir == deepestFirst {
			return groups[i].level > groups[j].level
		}
		return groups[i].level < groups[j].level
	})
	return groups
}

// walker visits grouped items one at a time. visit receives a continuation
// and must call it exactly once, possibly after an asynchronous round-trip,
// for the walk to move on. Not calling it abandons the walk.
type walker[T any] struct {
	groups   []levelGroup[T]
	group    int
	item     int
	visit    func(level int, item T, next func())
	endLevel func(level int)
	done     func()
}

func walk[T any](groups []levelGroup[T], visit func(int, T, func()), endLevel func(int), done func()) {
	w := &walker[T]{groups: groups, visit: visit, endLevel: endLevel, done: done}
	w.next()
}

func (w *walker[T]) next() {
	for w.group < len(w.groups) {
		g := w.groups[w.group]
		if w.item < len(g.items) {
			item := g.items[w.item]
			w.item++
			w.visit(g.level, item, w.next)
			return
		}
		if w.endLevel != nil {
			w.endLevel(g.level)
		}
		w.group++
		w.item = 0
	}
	if w.done != nil {
		done := w.done
		w.done = nil
		done()
	}
}

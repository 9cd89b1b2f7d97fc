// internal/storymap/reorder.go
package storymap

import (
	"sort"

	"github.com/Corphon/StoryMap/internal/models"
)

// Reorder moves the scene sceneID to newOrder and shifts the scenes between
// its old and new order by exactly one step, so a dense 1..N ordering stays
// dense and untouched scenes keep their relative order.
//
// newOrder is clamped to [1, N]. When the current orders are not already a
// dense permutation they are compacted first (stable by order, then by store
// position). The result is a sorted copy; the input is not modified. ok is
// false when sceneID is unknown, in which case the sorted copy is unchanged.
func Reorder(scenes []models.Scene, sceneID string, newOrder int) (out []models.Scene, ok bool) {
	out = cloneScenes(scenes)
	idx := -1
	for i := range out {
		if out[i].ID == sceneID {
			idx = i
			break
		}
	}
	if idx < 0 {
		sortByOrder(out)
		return out, false
	}

	if !IsDense(out) {
		compactInPlace(out)
	}
	newOrder = clampOrder(newOrder, len(out))
	oldOrder := out[idx].Order

	switch {
	case oldOrder < newOrder:
		for i := range out {
			if i != idx && out[i].Order > oldOrder && out[i].Order <= newOrder {
				out[i].Order--
			}
		}
	case oldOrder > newOrder:
		for i := range out {
			if i != idx && out[i].Order >= newOrder && out[i].Order < oldOrder {
				out[i].Order++
			}
		}
	}
	out[idx].Order = newOrder

	sortByOrder(out)
	return out, true
}

// IsDense reports whether the orders are exactly {1..N} with no duplicates.
func IsDense(scenes []models.Scene) bool {
	seen := make([]bool, len(scenes)+1)
	for _, s := range scenes {
		if s.Order < 1 || s.Order > len(scenes) || seen[s.Order] {
			return false
		}
		seen[s.Order] = true
	}
	return true
}

// Compact returns a copy renumbered to 1..N, keeping the current sequence.
// Ties are broken by store position.
func Compact(scenes []models.Scene) []models.Scene {
	out := cloneScenes(scenes)
	compactInPlace(out)
	return out
}

func compactInPlace(scenes []models.Scene) {
	idx := make([]int, len(scenes))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scenes[idx[a]].Order < scenes[idx[b]].Order
	})
	for rank, i := range idx {
		scenes[i].Order = rank + 1
	}
}

func clampOrder(order, n int) int {
	if n == 0 {
		return 1
	}
	if order < 1 {
		return 1
	}
	if order > n {
		return n
	}
	return order
}

// internal/storymap/scenes.go
package storymap

import (
	"slices"

	"github.com/Corphon/StoryMap/internal/models"
)

// AddScene appends a scene. An order outside [1, max] (including zero) is
// replaced by max+1; an order inside the range inserts the scene there and
// pushes every scene at or after it one step later. A nil position is filled
// by the placement rule.
func (b Board) AddScene(s models.Scene) Board {
	s = s.Clone()
	s.PlotThreads = DedupeThreadIDs(s.PlotThreads)
	if s.Position == nil {
		p := b.placement.Next(b.scenes)
		s.Position = &p
	}

	scenes := cloneScenes(b.scenes)
	top := maxOrder(scenes)
	if s.Order < 1 || s.Order > top {
		s.Order = top + 1
	} else {
		for i := range scenes {
			if scenes[i].Order >= s.Order {
				scenes[i].Order++
			}
		}
	}

	next := b
	next.scenes = append(scenes, s)
	return next
}

// UpdateScene replaces the scene with the same id. A nil position keeps the
// stored one. When the order changes the Reorder Engine shifts the scenes in
// between and the result is sorted by order.
func (b Board) UpdateScene(s models.Scene) (Board, bool) {
	i := b.sceneIndex(s.ID)
	if i < 0 {
		return b, false
	}
	prev := b.scenes[i]
	s = s.Clone()
	s.PlotThreads = DedupeThreadIDs(s.PlotThreads)
	if s.Position == nil && prev.Position != nil {
		p := *prev.Position
		s.Position = &p
	}

	var scenes []models.Scene
	if s.Order != prev.Order {
		scenes, _ = Reorder(b.scenes, s.ID, s.Order)
		j := slices.IndexFunc(scenes, func(x models.Scene) bool { return x.ID == s.ID })
		s.Order = scenes[j].Order
		scenes[j] = s
	} else {
		scenes = cloneScenes(b.scenes)
		scenes[i] = s
	}

	next := b
	next.scenes = scenes
	return next, true
}

// DeleteScene removes a scene and closes the gap it leaves in the ordering.
func (b Board) DeleteScene(id string) (Board, bool) {
	i := b.sceneIndex(id)
	if i < 0 {
		return b, false
	}
	removed := b.scenes[i].Order
	scenes := slices.Delete(cloneScenes(b.scenes), i, i+1)
	for j := range scenes {
		if scenes[j].Order > removed {
			scenes[j].Order--
		}
	}
	next := b
	next.scenes = scenes
	return next, true
}

// ReplaceScenes swaps the whole scene store, keeping the thread store.
func (b Board) ReplaceScenes(scenes []models.Scene) Board {
	next := b
	next.scenes = b.placeMissing(scenes)
	return next
}

// ReorderScene moves one scene to newOrder. See Reorder.
func (b Board) ReorderScene(id string, newOrder int) (Board, bool) {
	scenes, ok := Reorder(b.scenes, id, newOrder)
	if !ok {
		return b, false
	}
	next := b
	next.scenes = scenes
	return next, true
}

// placeMissing clones scenes, de-duplicates memberships and gives every scene
// without a position one from the placement rule.
func (b Board) placeMissing(scenes []models.Scene) []models.Scene {
	out := make([]models.Scene, 0, len(scenes))
	for _, s := range scenes {
		s = s.Clone()
		s.PlotThreads = DedupeThreadIDs(s.PlotThreads)
		out = append(out, s)
	}
	for i := range out {
		if out[i].Position != nil {
			continue
		}
		placed := slices.DeleteFunc(slices.Clone(out), func(s models.Scene) bool { return s.Position == nil })
		p := b.placement.Next(placed)
		out[i].Position = &p
	}
	return out
}

// DedupeThreadIDs drops empty and repeated ids, keeping first occurrences.
func DedupeThreadIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

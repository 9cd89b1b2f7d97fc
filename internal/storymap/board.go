// internal/storymap/board.go
package storymap

import (
	"slices"
	"sort"

	"github.com/Corphon/StoryMap/internal/models"
)

// Board is an immutable snapshot of one story map's thread store and scene
// store. Every mutator returns a new Board and leaves the receiver untouched.
type Board struct {
	threads   []models.PlotThread
	scenes    []models.Scene
	placement Placement
}

// NewBoard copies threads and scenes into a snapshot. Inputs are normalized
// the same way ReplaceAll normalizes them.
func NewBoard(threads []models.PlotThread, scenes []models.Scene, placement Placement) Board {
	b := Board{placement: placement}
	return b.ReplaceAll(threads, scenes)
}

// Placement returns the placement rule used for new scenes.
func (b Board) Placement() Placement {
	return b.placement
}

// WithPlacement returns the same snapshot with a different placement rule.
func (b Board) WithPlacement(p Placement) Board {
	b.placement = p
	return b
}

// Threads returns a copy of the thread store in insertion order.
func (b Board) Threads() []models.PlotThread {
	return append([]models.PlotThread{}, b.threads...)
}

// Scenes returns a deep copy of the scene store in store order.
func (b Board) Scenes() []models.Scene {
	return cloneScenes(b.scenes)
}

// SortedScenes returns a deep copy of the scenes ascending by order.
func (b Board) SortedScenes() []models.Scene {
	out := cloneScenes(b.scenes)
	sortByOrder(out)
	return out
}

// Thread looks up a thread by id.
func (b Board) Thread(id string) (models.PlotThread, bool) {
	if i := b.threadIndex(id); i >= 0 {
		return b.threads[i], true
	}
	return models.PlotThread{}, false
}

// Scene looks up a scene by id.
func (b Board) Scene(id string) (models.Scene, bool) {
	if i := b.sceneIndex(id); i >= 0 {
		return b.scenes[i].Clone(), true
	}
	return models.Scene{}, false
}

// MainThread returns the current main thread, if any.
func (b Board) MainThread() (models.PlotThread, bool) {
	for _, t := range b.threads {
		if t.IsMain {
			return t, true
		}
	}
	return models.PlotThread{}, false
}

// MaxOrder returns max(order) over all scenes, or 0 for an empty store.
func (b Board) MaxOrder() int {
	return maxOrder(b.scenes)
}

// NextOrder is the order a newly appended scene receives.
func (b Board) NextOrder() int {
	return b.MaxOrder() + 1
}

// Graph projects the snapshot.
func (b Board) Graph() models.Graph {
	return Project(b.threads, b.scenes)
}

// ReplaceAll swaps both stores in one step. Thread flags are normalized to a
// single main thread, scene memberships are de-duplicated and missing
// positions are placed. Dangling thread references are kept as they are.
func (b Board) ReplaceAll(threads []models.PlotThread, scenes []models.Scene) Board {
	return Board{
		threads:   normalizeThreads(threads),
		scenes:    b.placeMissing(scenes),
		placement: b.placement,
	}
}

func (b Board) threadIndex(id string) int {
	return slices.IndexFunc(b.threads, func(t models.PlotThread) bool { return t.ID == id })
}

func (b Board) sceneIndex(id string) int {
	return slices.IndexFunc(b.scenes, func(s models.Scene) bool { return s.ID == id })
}

func cloneScenes(scenes []models.Scene) []models.Scene {
	if scenes == nil {
		return []models.Scene{}
	}
	out := make([]models.Scene, len(scenes))
	for i, s := range scenes {
		out[i] = s.Clone()
	}
	return out
}

func sortByOrder(scenes []models.Scene) {
	sort.SliceStable(scenes, func(i, j int) bool {
		return scenes[i].Order < scenes[j].Order
	})
}

func maxOrder(scenes []models.Scene) int {
	m := 0
	for _, s := range scenes {
		if s.Order > m {
			m = s.Order
		}
	}
	return m
}

// internal/storymap/threads.go
package storymap

import (
	"slices"

	"github.com/Corphon/StoryMap/internal/models"
)

// AddThread appends a thread. The first thread of an empty store is always
// main. A later thread that arrives flagged main takes the flag from the
// others so the store never holds two main threads.
func (b Board) AddThread(t models.PlotThread) Board {
	next := b
	next.threads = slices.Clone(b.threads)
	if len(next.threads) == 0 {
		t.IsMain = true
	}
	if t.Color == "" {
		t.Color = models.DefaultThreadColor
	}
	next.threads = append(next.threads, t)
	if t.IsMain {
		demoteOthers(next.threads, len(next.threads)-1)
	}
	return next
}

// UpdateThread replaces the thread with the same id. Setting IsMain demotes
// every other thread; clearing it leaves the others alone, so a store may end
// up with no main thread.
func (b Board) UpdateThread(t models.PlotThread) (Board, bool) {
	i := b.threadIndex(t.ID)
	if i < 0 {
		return b, false
	}
	next := b
	next.threads = slices.Clone(b.threads)
	if t.Color == "" {
		t.Color = models.DefaultThreadColor
	}
	next.threads[i] = t
	if t.IsMain {
		demoteOthers(next.threads, i)
	}
	return next, true
}

// DeleteThread removes a thread and strips its id from every scene. Deleting
// the main thread does not promote another one.
func (b Board) DeleteThread(id string) (Board, bool) {
	i := b.threadIndex(id)
	if i < 0 {
		return b, false
	}
	next := b
	next.threads = slices.Delete(slices.Clone(b.threads), i, i+1)
	next.scenes = stripThread(b.scenes, id)
	return next, true
}

func stripThread(scenes []models.Scene, threadID string) []models.Scene {
	out := cloneScenes(scenes)
	for i := range out {
		out[i].PlotThreads = slices.DeleteFunc(out[i].PlotThreads, func(id string) bool {
			return id == threadID
		})
	}
	return out
}

func demoteOthers(threads []models.PlotThread, keep int) {
	for i := range threads {
		if i != keep {
			threads[i].IsMain = false
		}
	}
}

// normalizeThreads keeps the first main flag, fills empty colors and drops
// repeated ids (first occurrence wins).
func normalizeThreads(threads []models.PlotThread) []models.PlotThread {
	out := make([]models.PlotThread, 0, len(threads))
	seen := make(map[string]bool, len(threads))
	mainSeen := false
	for _, t := range threads {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		if t.Color == "" {
			t.Color = models.DefaultThreadColor
		}
		if t.IsMain {
			if mainSeen {
				t.IsMain = false
			}
			mainSeen = true
		}
		out = append(out, t)
	}
	return out
}

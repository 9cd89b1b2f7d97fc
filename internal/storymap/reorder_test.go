package storymap

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/StoryMap/internal/models"
)

func TestReorderMoveEarlier(t *testing.T) {
	scenes := scenesWithOrders(1, 2, 3, 4)

	out, ok := Reorder(scenes, "s04", 2)
	require.True(t, ok)

	got := ordersByID(out)
	assert.Equal(t, map[string]int{"s01": 1, "s02": 3, "s03": 4, "s04": 2}, got)
	assert.Equal(t, []string{"s01", "s04", "s02", "s03"}, idsOf(out))

	// input untouched
	assert.Equal(t, 4, scenes[3].Order)
}

func TestReorderMoveLater(t *testing.T) {
	out, ok := Reorder(scenesWithOrders(1, 2, 3, 4, 5), "s02", 4)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"s01": 1, "s02": 4, "s03": 2, "s04": 3, "s05": 5}, ordersByID(out))
}

func TestReorderSameOrderIsNoop(t *testing.T) {
	scenes := scenesWithOrders(1, 2, 3)
	out, ok := Reorder(scenes, "s02", 2)
	require.True(t, ok)
	assert.Equal(t, ordersByID(scenes), ordersByID(out))
}

func TestReorderClampsOutOfRange(t *testing.T) {
	tests := []struct {
		name     string
		newOrder int
		want     map[string]int
	}{
		{"above range", 99, map[string]int{"s01": 3, "s02": 1, "s03": 2}},
		{"zero", 0, map[string]int{"s01": 1, "s02": 2, "s03": 3}},
		{"negative", -5, map[string]int{"s01": 1, "s02": 2, "s03": 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ok := Reorder(scenesWithOrders(1, 2, 3), "s01", tt.newOrder)
			require.True(t, ok)
			assert.Equal(t, tt.want, ordersByID(out))
			assert.True(t, IsDense(out))
		})
	}
}

func TestReorderUnknownScene(t *testing.T) {
	out, ok := Reorder(scenesWithOrders(2, 1), "missing", 1)
	assert.False(t, ok)
	assert.Equal(t, []string{"s02", "s01"}, idsOf(out))
}

func TestReorderCompactsSparseOrders(t *testing.T) {
	// gaps and a duplicate: s02 and s03 share 5
	scenes := scenesWithOrders(2, 5, 5, 9)

	out, ok := Reorder(scenes, "s04", 1)
	require.True(t, ok)
	assert.True(t, IsDense(out))
	assert.Equal(t, map[string]int{"s01": 2, "s02": 3, "s03": 4, "s04": 1}, ordersByID(out))
}

func TestReorderEmpty(t *testing.T) {
	out, ok := Reorder(nil, "x", 1)
	assert.False(t, ok)
	assert.Empty(t, out)
}

func TestReorderKeepsDenseAndMinimal(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 42))
	const n = 12
	orders := make([]int, n)
	for i := range orders {
		orders[i] = i + 1
	}
	scenes := scenesWithOrders(orders...)

	for step := 0; step < 500; step++ {
		target := scenes[r.IntN(n)]
		newOrder := r.IntN(n) + 1

		out, ok := Reorder(scenes, target.ID, newOrder)
		require.True(t, ok)
		require.True(t, IsDense(out), "step %d: orders not dense", step)

		before, after := ordersByID(scenes), ordersByID(out)
		require.Equal(t, newOrder, after[target.ID])

		changed := 0
		for id, o := range before {
			if id != target.ID && after[id] != o {
				changed++
			}
		}
		require.Equal(t, abs(newOrder-target.Order), changed, "step %d", step)

		// untouched scenes keep their relative sequence
		var restBefore, restAfter []string
		for _, s := range sortedCopy(scenes) {
			if s.ID != target.ID {
				restBefore = append(restBefore, s.ID)
			}
		}
		for _, s := range out {
			if s.ID != target.ID {
				restAfter = append(restAfter, s.ID)
			}
		}
		require.Equal(t, restBefore, restAfter)

		scenes = out
	}
}

func TestCompact(t *testing.T) {
	scenes := scenesWithOrders(10, 3, 3, 7)
	out := Compact(scenes)
	assert.Equal(t, map[string]int{"s01": 4, "s02": 1, "s03": 2, "s04": 3}, ordersByID(out))
	assert.False(t, IsDense(scenes))
	assert.True(t, IsDense(out))
}

func idsOf(scenes []models.Scene) []string {
	ids := make([]string, len(scenes))
	for i, s := range scenes {
		ids[i] = s.ID
	}
	return ids
}

func sortedCopy(scenes []models.Scene) []models.Scene {
	out := cloneScenes(scenes)
	sortByOrder(out)
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

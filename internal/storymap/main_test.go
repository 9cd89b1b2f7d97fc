package storymap

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/Corphon/StoryMap/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scenesWithOrders builds scenes s1..sN carrying the given orders.
func scenesWithOrders(orders ...int) []models.Scene {
	scenes := make([]models.Scene, len(orders))
	for i, o := range orders {
		scenes[i] = models.Scene{
			ID:       sceneName(i + 1),
			Order:    o,
			Title:    sceneName(i + 1),
			Position: &models.Position{X: float64(i+1) * 100, Y: 300},
		}
	}
	return scenes
}

func sceneName(n int) string {
	return "s" + string(rune('0'+n/10)) + string(rune('0'+n%10))
}

func ordersByID(scenes []models.Scene) map[string]int {
	out := make(map[string]int, len(scenes))
	for _, s := range scenes {
		out[s.ID] = s.Order
	}
	return out
}

func mainCount(threads []models.PlotThread) int {
	n := 0
	for _, t := range threads {
		if t.IsMain {
			n++
		}
	}
	return n
}

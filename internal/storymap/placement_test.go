package storymap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Corphon/StoryMap/internal/models"
)

func TestPlacementNext(t *testing.T) {
	p := DefaultPlacement()

	tests := []struct {
		name     string
		existing []models.Scene
		want     models.Position
	}{
		{
			name: "empty canvas",
			want: models.Position{X: 250, Y: 100},
		},
		{
			name: "right of highest order",
			existing: []models.Scene{
				{ID: "a", Order: 2, Position: &models.Position{X: 900, Y: 40}},
				{ID: "b", Order: 1, Position: &models.Position{X: 1200, Y: 10}},
			},
			want: models.Position{X: 1150, Y: 40},
		},
		{
			name: "skips occupied spot",
			existing: []models.Scene{
				{ID: "a", Order: 1, Position: &models.Position{X: 0, Y: 0}},
				{ID: "b", Order: 0, Position: &models.Position{X: 250, Y: 0}},
			},
			want: models.Position{X: 500, Y: 0},
		},
		{
			name: "ignores unplaced scenes",
			existing: []models.Scene{
				{ID: "a", Order: 5},
			},
			want: models.Position{X: 250, Y: 100},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Next(tt.existing))
		})
	}
}

func TestPlacementZeroSpacingFallsBack(t *testing.T) {
	got := Placement{LaneY: 5}.Next(nil)
	assert.Equal(t, models.Position{X: DefaultHorizontalSpacing, Y: 5}, got)
}

func TestPlacementNeverCollides(t *testing.T) {
	b := NewBoard(nil, nil, DefaultPlacement())
	for i := 0; i < 20; i++ {
		b = b.AddScene(models.Scene{ID: sceneName(i + 1)})
		if i%3 == 0 {
			// user drags the latest scene back to the origin lane
			s, _ := b.Scene(sceneName(i + 1))
			s.Position = &models.Position{X: 250, Y: 100}
			b, _ = b.UpdateScene(s)
		}
	}
	seen := map[models.Position]string{}
	for _, s := range b.Scenes() {
		if s.Position.X == 250 && s.Position.Y == 100 {
			continue // dragged by hand
		}
		prev, dup := seen[*s.Position]
		assert.False(t, dup, "%s collides with %s", s.ID, prev)
		seen[*s.Position] = s.ID
	}
}

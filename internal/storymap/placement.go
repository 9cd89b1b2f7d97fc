// internal/storymap/placement.go
package storymap

import (
	"github.com/Corphon/StoryMap/internal/models"
)

const (
	// DefaultHorizontalSpacing 相邻场景的水平间距
	DefaultHorizontalSpacing = 250
	// DefaultLaneY 空地图上第一个场景的纵坐标
	DefaultLaneY = 100
)

// Placement computes canvas positions for scenes created without one.
type Placement struct {
	HorizontalSpacing float64
	LaneY             float64
}

// DefaultPlacement returns the standard spacing.
func DefaultPlacement() Placement {
	return Placement{HorizontalSpacing: DefaultHorizontalSpacing, LaneY: DefaultLaneY}
}

// Next places a new scene one spacing to the right of the highest-order
// scene, on the same y. An empty canvas starts at (spacing, laneY). If the
// spot is already taken exactly, it moves right by the spacing until free.
func (p Placement) Next(existing []models.Scene) models.Position {
	spacing := p.HorizontalSpacing
	if spacing <= 0 {
		spacing = DefaultHorizontalSpacing
	}

	pos := models.Position{X: spacing, Y: p.LaneY}
	var last *models.Scene
	for i := range existing {
		s := &existing[i]
		if s.Position == nil {
			continue
		}
		if last == nil || s.Order >= last.Order {
			last = s
		}
	}
	if last != nil {
		pos = models.Position{X: last.Position.X + spacing, Y: last.Position.Y}
	}

	for occupied(existing, pos) {
		pos.X += spacing
	}
	return pos
}

func occupied(scenes []models.Scene, pos models.Position) bool {
	for _, s := range scenes {
		if s.Position != nil && *s.Position == pos {
			return true
		}
	}
	return false
}

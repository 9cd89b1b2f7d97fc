// internal/models/scene.go
package models

import (
	"encoding/json"
	"slices"
)

// SceneType 场景类型，由所属情节线数量推导
type SceneType string

const (
	// SceneTypeLocal 只属于一条情节线（或没有）的场景
	SceneTypeLocal SceneType = "local"
	// SceneTypeExpress 被多条情节线共享的场景
	SceneTypeExpress SceneType = "express"
)

// Position 画布坐标
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Scene 表示故事中的一个节拍
type Scene struct {
	ID           string    `json:"id"`
	Order        int       `json:"order"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	PlotThreads  []string  `json:"plotThreads"`
	Position     *Position `json:"position,omitempty"`
	SelectedBeat string    `json:"selectedBeat,omitempty"`
}

// TypeForMembership returns the scene type for a membership count.
func TypeForMembership(count int) SceneType {
	if count > 1 {
		return SceneTypeExpress
	}
	return SceneTypeLocal
}

// Type is always derived from membership; it cannot be set.
func (s Scene) Type() SceneType {
	return TypeForMembership(len(s.PlotThreads))
}

// HasThread reports whether the scene belongs to threadID.
func (s Scene) HasThread(threadID string) bool {
	return slices.Contains(s.PlotThreads, threadID)
}

// Clone returns a deep copy.
func (s Scene) Clone() Scene {
	c := s
	if s.PlotThreads != nil {
		c.PlotThreads = slices.Clone(s.PlotThreads)
	}
	if s.Position != nil {
		p := *s.Position
		c.Position = &p
	}
	return c
}

// MarshalJSON 输出时附带推导出的 type 字段
func (s Scene) MarshalJSON() ([]byte, error) {
	type plain Scene
	threads := s.PlotThreads
	if threads == nil {
		threads = []string{}
	}
	p := plain(s)
	p.PlotThreads = threads
	return json.Marshal(struct {
		plain
		Type SceneType `json:"type"`
	}{p, s.Type()})
}

// internal/models/storymap.go
package models

import (
	"time"
)

// StoryMap 一个独立的故事地图：情节线、场景及元数据
type StoryMap struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	StructureID string       `json:"structure_id,omitempty"`
	Revision    int64        `json:"revision"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	PlotThreads []PlotThread `json:"plotThreads"`
	Scenes      []Scene      `json:"scenes"`
}

// StoryMapSummary 用于地图列表
type StoryMapSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	StructureID string    `json:"structure_id,omitempty"`
	Revision    int64     `json:"revision"`
	ThreadCount int       `json:"thread_count"`
	SceneCount  int       `json:"scene_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summary builds the list view of a map.
func (m *StoryMap) Summary() StoryMapSummary {
	return StoryMapSummary{
		ID:          m.ID,
		Name:        m.Name,
		StructureID: m.StructureID,
		Revision:    m.Revision,
		ThreadCount: len(m.PlotThreads),
		SceneCount:  len(m.Scenes),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// Dataset 导入导出交换格式
type Dataset struct {
	Scenes      []Scene      `json:"scenes"`
	PlotThreads []PlotThread `json:"plotThreads"`
}

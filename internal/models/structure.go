// internal/models/structure.go
package models

// StoryBeat 故事结构模板中的一个节拍
type StoryBeat struct {
	ID                 string   `json:"id" yaml:"id"`
	Name               string   `json:"name" yaml:"name"`
	Description        string   `json:"description" yaml:"description"`
	PercentagePosition float64  `json:"percentagePosition" yaml:"percentage_position"` // 0-100
	RequiredThreads    []string `json:"requiredThreads" yaml:"required_threads"`
	GenreSpecific      bool     `json:"genreSpecific,omitempty" yaml:"genre_specific"`
}

// CommonThread 模板建议的情节线
type CommonThread struct {
	ID          string `json:"id" yaml:"id"` // referenced by StoryBeat.RequiredThreads
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Color       string `json:"color" yaml:"color"`
	IsMain      bool   `json:"isMain" yaml:"is_main"`
}

// StoryStructure 类型化的故事结构模板（如三幕剧、救猫咪）
type StoryStructure struct {
	ID            string         `json:"id" yaml:"id"`
	Name          string         `json:"name" yaml:"name"`
	Genre         string         `json:"genre" yaml:"genre"`
	Description   string         `json:"description" yaml:"description"`
	Beats         []StoryBeat    `json:"beats" yaml:"beats"`
	CommonThreads []CommonThread `json:"commonThreads" yaml:"common_threads"`
}

// Beat looks up a beat by id.
func (s *StoryStructure) Beat(beatID string) (StoryBeat, bool) {
	for _, b := range s.Beats {
		if b.ID == beatID {
			return b, true
		}
	}
	return StoryBeat{}, false
}

// BeatStatus 节拍在当前故事中的覆盖情况
type BeatStatus struct {
	Beat          StoryBeat `json:"beat"`
	Present       bool      `json:"present"`
	SceneID       string    `json:"scene_id,omitempty"`
	SceneLabel    string    `json:"scene_label,omitempty"`
	ExpectedOrder int       `json:"expected_order"`
}

// StructureGuide 结构指南
type StructureGuide struct {
	StructureID  string       `json:"structure_id"`
	Name         string       `json:"name"`
	TotalScenes  int          `json:"total_scenes"`
	Beats        []BeatStatus `json:"beats"`
	MissingBeats []StoryBeat  `json:"missing_beats"`
}

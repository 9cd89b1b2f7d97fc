// internal/services/structure_service.go
package services

import (
	"context"
	"fmt"

	apperrors "github.com/Corphon/StoryMap/internal/errors"
	"github.com/Corphon/StoryMap/internal/models"
	"github.com/Corphon/StoryMap/internal/storymap"
	"github.com/Corphon/StoryMap/internal/structures"
)

// StructureService 故事结构模板的查询与节拍指南
type StructureService struct {
	registry *structures.Registry
	maps     *StoryMapService
}

// NewStructureService 创建结构服务
func NewStructureService(registry *structures.Registry, maps *StoryMapService) *StructureService {
	return &StructureService{registry: registry, maps: maps}
}

// List 返回全部结构模板
func (s *StructureService) List() []models.StoryStructure {
	return s.registry.List()
}

// Get 按 ID 返回结构模板
func (s *StructureService) Get(id string) (*models.StoryStructure, error) {
	structure, ok := s.registry.Get(id)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("story structure %q not found", id), nil)
	}
	return structure, nil
}

// Guide reports which beats of the map's structure have a scene, where each
// beat is expected in the current scene count, and which are missing.
func (s *StructureService) Guide(ctx context.Context, mapID string) (models.StructureGuide, error) {
	st, err := s.maps.state(ctx, mapID)
	if err != nil {
		return models.StructureGuide{}, err
	}
	structure, err := st.activeStructure(s.maps)
	if err != nil {
		return models.StructureGuide{}, err
	}
	return storymap.Guide(structure, st.board.SortedScenes()), nil
}

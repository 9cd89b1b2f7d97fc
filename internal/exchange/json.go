// internal/exchange/json.go
package exchange

import (
	"bytes"
	"encoding/json"
	"fmt"

	apperrors "github.com/Corphon/StoryMap/internal/errors"
	"github.com/Corphon/StoryMap/internal/models"
	"github.com/Corphon/StoryMap/internal/storymap"
)

// wire types keep absent fields distinguishable from zero values.
type wireDataset struct {
	Scenes      []wireScene  `json:"scenes"`
	PlotThreads []wireThread `json:"plotThreads"`
}

type wireScene struct {
	ID           string           `json:"id"`
	Order        *int             `json:"order"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	PlotThreads  []string         `json:"plotThreads"`
	Position     *models.Position `json:"position"`
	SelectedBeat string           `json:"selectedBeat"`
	// Type is accepted for compatibility and ignored.
	Type string `json:"type"`
}

type wireThread struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	IsMain bool   `json:"isMain"`
	MDQ    string `json:"mdq"`
	LDQ    string `json:"ldq"`
}

// DecodeJSON parses an exported dataset and fills every absent field:
// missing ids are generated, a missing or non-positive order becomes the
// row index + 1, missing thread colors and names are defaulted. Positions
// stay nil so the board places them. Dangling thread references are kept.
func DecodeJSON(data []byte) (models.Dataset, error) {
	var doc *wireDataset
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return models.Dataset{}, apperrors.NewValidationError("invalid JSON dataset", err)
	}
	if doc == nil {
		return models.Dataset{}, apperrors.NewValidationError("invalid JSON dataset: expected an object", nil)
	}

	ds := models.Dataset{
		Scenes:      make([]models.Scene, 0, len(doc.Scenes)),
		PlotThreads: make([]models.PlotThread, 0, len(doc.PlotThreads)),
	}

	seenThreads := map[string]bool{}
	for _, w := range doc.PlotThreads {
		t := models.PlotThread{
			ID:     w.ID,
			Name:   w.Name,
			Color:  w.Color,
			IsMain: w.IsMain,
			MDQ:    w.MDQ,
			LDQ:    w.LDQ,
		}
		if t.ID == "" {
			t.ID = storymap.NewThreadID()
		}
		if seenThreads[t.ID] {
			continue
		}
		seenThreads[t.ID] = true
		if t.Name == "" {
			t.Name = placeholderThreadName(t.ID)
		}
		if t.Color == "" {
			t.Color = models.DefaultThreadColor
		}
		ds.PlotThreads = append(ds.PlotThreads, t)
	}

	seenScenes := map[string]bool{}
	for i, w := range doc.Scenes {
		s := models.Scene{
			ID:           w.ID,
			Title:        w.Title,
			Description:  w.Description,
			PlotThreads:  storymap.DedupeThreadIDs(w.PlotThreads),
			SelectedBeat: w.SelectedBeat,
		}
		if s.ID == "" {
			s.ID = storymap.NewSceneID()
		}
		if seenScenes[s.ID] {
			continue
		}
		seenScenes[s.ID] = true
		if w.Order != nil && *w.Order > 0 {
			s.Order = *w.Order
		} else {
			s.Order = i + 1
		}
		if w.Position != nil {
			p := *w.Position
			s.Position = &p
		}
		ds.Scenes = append(ds.Scenes, s)
	}
	return ds, nil
}

// EncodeJSON writes the dataset with two-space indentation. Scenes carry
// their derived type.
func EncodeJSON(ds models.Dataset) ([]byte, error) {
	if ds.Scenes == nil {
		ds.Scenes = []models.Scene{}
	}
	if ds.PlotThreads == nil {
		ds.PlotThreads = []models.PlotThread{}
	}
	out, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return nil, apperrors.NewProcessingError("encode JSON dataset", err)
	}
	return out, nil
}

func placeholderThreadName(id string) string {
	return fmt.Sprintf("Thread %s", id)
}

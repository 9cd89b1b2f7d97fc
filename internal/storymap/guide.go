// internal/storymap/guide.go
package storymap

import (
	"math"
	"strings"

	"github.com/Corphon/StoryMap/internal/models"
)

// MissingBeats lists, in template order, the beats no scene is tagged with.
func MissingBeats(structure *models.StoryStructure, scenes []models.Scene) []models.StoryBeat {
	missing := []models.StoryBeat{}
	if structure == nil {
		return missing
	}
	for _, beat := range structure.Beats {
		if _, ok := sceneForBeat(scenes, beat.ID); !ok {
			missing = append(missing, beat)
		}
	}
	return missing
}

// Guide reports every beat of structure against the current scenes.
func Guide(structure *models.StoryStructure, scenes []models.Scene) models.StructureGuide {
	guide := models.StructureGuide{
		TotalScenes:  len(scenes),
		Beats:        []models.BeatStatus{},
		MissingBeats: MissingBeats(structure, scenes),
	}
	if structure == nil {
		return guide
	}
	guide.StructureID = structure.ID
	guide.Name = structure.Name
	for _, beat := range structure.Beats {
		status := models.BeatStatus{
			Beat:          beat,
			ExpectedOrder: ExpectedOrder(beat, len(scenes)),
		}
		if s, ok := sceneForBeat(scenes, beat.ID); ok {
			status.Present = true
			status.SceneID = s.ID
			status.SceneLabel = NodeLabel(s)
		}
		guide.Beats = append(guide.Beats, status)
	}
	return guide
}

// ExpectedOrder maps a beat's percentage position onto a story of total
// scenes: max(1, round(pct/100 * total)).
func ExpectedOrder(beat models.StoryBeat, total int) int {
	o := int(math.Round(beat.PercentagePosition / 100 * float64(total)))
	if o < 1 {
		return 1
	}
	return o
}

// SceneFromBeat builds a new scene for a missing beat. Order and position are
// left for AddScene to assign.
func SceneFromBeat(id string, beat models.StoryBeat) models.Scene {
	return models.Scene{
		ID:           id,
		Title:        beat.Name,
		Description:  beat.Description,
		PlotThreads:  DedupeThreadIDs(beat.RequiredThreads),
		SelectedBeat: beat.ID,
	}
}

// ApplyBeat tags s with beat: empty title and description are taken from the
// beat and its required threads are merged into the membership.
func ApplyBeat(s models.Scene, beat models.StoryBeat) models.Scene {
	s = s.Clone()
	s.SelectedBeat = beat.ID
	if s.Title == "" {
		s.Title = beat.Name
	}
	if s.Description == "" {
		s.Description = beat.Description
	}
	s.PlotThreads = DedupeThreadIDs(append(s.PlotThreads, beat.RequiredThreads...))
	return s
}

// MatchCommonThread finds the thread standing in for ct: same id, or the
// same name ignoring case.
func MatchCommonThread(threads []models.PlotThread, ct models.CommonThread) (string, bool) {
	for _, t := range threads {
		if ct.ID != "" && t.ID == ct.ID {
			return t.ID, true
		}
	}
	for _, t := range threads {
		if strings.EqualFold(t.Name, ct.Name) {
			return t.ID, true
		}
	}
	return "", false
}

// ResolveBeatThreads rewrites beat.RequiredThreads to ids present in threads.
// An id is kept when a thread carries it, otherwise it is mapped through the
// structure's common thread of that id; anything else is dropped.
func ResolveBeatThreads(structure *models.StoryStructure, beat models.StoryBeat, threads []models.PlotThread) models.StoryBeat {
	known := make(map[string]bool, len(threads))
	for _, t := range threads {
		known[t.ID] = true
	}
	resolved := make([]string, 0, len(beat.RequiredThreads))
	for _, id := range beat.RequiredThreads {
		if known[id] {
			resolved = append(resolved, id)
			continue
		}
		if structure == nil {
			continue
		}
		for _, ct := range structure.CommonThreads {
			if ct.ID != id {
				continue
			}
			if tid, ok := MatchCommonThread(threads, ct); ok {
				resolved = append(resolved, tid)
			}
			break
		}
	}
	beat.RequiredThreads = DedupeThreadIDs(resolved)
	return beat
}

func sceneForBeat(scenes []models.Scene, beatID string) (models.Scene, bool) {
	for _, s := range scenes {
		if s.SelectedBeat == beatID {
			return s, true
		}
	}
	return models.Scene{}, false
}

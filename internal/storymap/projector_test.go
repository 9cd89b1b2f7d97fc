package storymap

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/StoryMap/internal/models"
)

func sharedSceneFixture() ([]models.PlotThread, []models.Scene) {
	threads := []models.PlotThread{
		{ID: "A", Name: "Main", Color: "#ff0000", IsMain: true},
		{ID: "B", Name: "Romance", Color: "#0000ff"},
	}
	// store order deliberately differs from story order
	scenes := []models.Scene{
		{ID: "s5", Order: 5, Title: "Five", PlotThreads: []string{"A"}, Position: &models.Position{X: 500, Y: 0}},
		{ID: "s1", Order: 1, Title: "One", PlotThreads: []string{"A"}, Position: &models.Position{X: 100, Y: 0}},
		{ID: "s3", Order: 3, Title: "Three", PlotThreads: []string{"A", "B"}, Position: &models.Position{X: 300, Y: 0}},
		{ID: "s2", Order: 2, Title: "Two", PlotThreads: []string{"B"}, Position: &models.Position{X: 200, Y: 0}},
		{ID: "s4", Order: 4, Title: "Four", PlotThreads: []string{"B"}, Position: &models.Position{X: 400, Y: 0}},
	}
	return threads, scenes
}

func TestProjectSharedScene(t *testing.T) {
	threads, scenes := sharedSceneFixture()

	g := Project(threads, scenes)

	require.Len(t, g.Nodes, 5)
	assert.Equal(t, "s1", g.Nodes[0].ID)
	assert.Equal(t, "1. One", g.Nodes[0].Label)
	assert.Equal(t, models.SceneTypeExpress, g.Nodes[2].Type)
	assert.Equal(t, models.SceneTypeLocal, g.Nodes[0].Type)
	assert.Equal(t, models.Position{X: 300, Y: 0}, g.Nodes[2].Position)

	type link struct{ thread, src, dst string }
	var got []link
	for _, e := range g.Edges {
		got = append(got, link{e.ThreadID, e.Source, e.Target})
	}
	want := []link{
		{"A", "s1", "s3"}, {"A", "s3", "s5"},
		{"B", "s2", "s3"}, {"B", "s3", "s4"},
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(link{})); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}

	main := g.Edges[0]
	assert.Equal(t, "edge-1:A-2:s1-2:s3", main.ID)
	assert.Equal(t, MainStrokeWidth, main.StrokeWidth)
	assert.Equal(t, "#ff0000", main.Color)
	assert.Equal(t, "Right-A", main.SourceHandle)
	assert.Equal(t, "Left-A", main.TargetHandle)
	assert.True(t, main.Animated)
	assert.Equal(t, EdgeKind, main.Kind)

	assert.Equal(t, ThreadStrokeWidth, g.Edges[2].StrokeWidth)
	assert.Equal(t, "#0000ff", g.Edges[2].Color)
}

func TestProjectIsIdempotent(t *testing.T) {
	threads, scenes := sharedSceneFixture()

	first := Project(threads, scenes)
	second := Project(threads, scenes)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("projection changed between calls (-first +second):\n%s", diff)
	}
}

func TestProjectEdgeCountPerThread(t *testing.T) {
	tests := []struct {
		name    string
		members int
		want    int
	}{
		{"no scenes", 0, 0},
		{"one scene", 1, 0},
		{"two scenes", 2, 1},
		{"seven scenes", 7, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			threads := []models.PlotThread{{ID: "t", Color: "#111111"}, {ID: "other", Color: "#222222"}}
			var scenes []models.Scene
			for i := 0; i < 8; i++ {
				s := models.Scene{ID: sceneName(i + 1), Order: 8 - i, PlotThreads: []string{"other"}}
				if i < tt.members {
					s.PlotThreads = append(s.PlotThreads, "t")
				}
				scenes = append(scenes, s)
			}

			g := Project(threads, scenes)

			count := 0
			for _, e := range g.Edges {
				if e.ThreadID == "t" {
					count++
				}
			}
			assert.Equal(t, tt.want, count)
		})
	}
}

func TestProjectHandles(t *testing.T) {
	threads, scenes := sharedSceneFixture()
	scenes = append(scenes, models.Scene{ID: "lonely", Order: 6, Title: "Alone"})

	g := Project(threads, scenes)

	shared := g.Nodes[2]
	require.Equal(t, "s3", shared.ID)
	want := []models.Handle{
		{ID: "Left-A", Side: models.HandleLeft, ThreadID: "A", Color: "#ff0000", OffsetPercent: 0, Main: true},
		{ID: "Left-B", Side: models.HandleLeft, ThreadID: "B", Color: "#0000ff", OffsetPercent: 100},
		{ID: "Right-A", Side: models.HandleRight, ThreadID: "A", Color: "#ff0000", OffsetPercent: 0, Main: true},
		{ID: "Right-B", Side: models.HandleRight, ThreadID: "B", Color: "#0000ff", OffsetPercent: 100},
	}
	if diff := cmp.Diff(want, shared.Handles); diff != "" {
		t.Errorf("handles mismatch (-want +got):\n%s", diff)
	}

	single := g.Nodes[0]
	require.Len(t, single.Handles, 2)
	assert.Equal(t, 50.0, single.Handles[0].OffsetPercent)

	alone := g.Nodes[5]
	require.Equal(t, "lonely", alone.ID)
	assert.Equal(t, []string{"Left-default", "Right-default"}, []string{alone.Handles[0].ID, alone.Handles[1].ID})
	assert.Equal(t, DefaultHandleColor, alone.Handles[0].Color)
	assert.Equal(t, []string{}, alone.Threads)
}

func TestProjectDanglingThreadCountsTowardType(t *testing.T) {
	g := Project(
		[]models.PlotThread{{ID: "a", Color: "#123456"}},
		[]models.Scene{{ID: "s", Order: 1, PlotThreads: []string{"a", "ghost"}}},
	)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, models.SceneTypeExpress, g.Nodes[0].Type)
	assert.Len(t, g.Nodes[0].Handles, 2)
	assert.Empty(t, g.Edges)
}

func TestBoardGraphMatchesProject(t *testing.T) {
	threads, scenes := sharedSceneFixture()
	b := NewBoard(threads, scenes, DefaultPlacement())
	if diff := cmp.Diff(Project(threads, scenes), b.Graph()); diff != "" {
		t.Errorf("board graph differs (-project +board):\n%s", diff)
	}
}

func TestEdgeIDsWithHyphenatedIDs(t *testing.T) {
	threads := []models.PlotThread{
		{ID: "a", Name: "A", Color: "#111111"},
		{ID: "a-b", Name: "AB", Color: "#222222"},
	}
	scenes := []models.Scene{
		{ID: "b-c", Order: 1, PlotThreads: []string{"a"}},
		{ID: "c", Order: 2, PlotThreads: []string{"a-b"}},
		{ID: "d", Order: 3, PlotThreads: []string{"a", "a-b"}},
	}

	g := Project(threads, scenes)
	require.Len(t, g.Edges, 2)
	assert.NotEqual(t, g.Edges[0].ID, g.Edges[1].ID)
	assert.NotEqual(t, EdgeID("a", "b-c", "d"), EdgeID("a-b", "c", "d"))
	assert.Equal(t, "edge-1:a-3:b-c-1:d", EdgeID("a", "b-c", "d"))
}

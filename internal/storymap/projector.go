// internal/storymap/projector.go
package storymap

import (
	"fmt"

	"github.com/Corphon/StoryMap/internal/models"
)

const (
	// MainStrokeWidth 主情节线连线宽度
	MainStrokeWidth = 4
	// ThreadStrokeWidth 其他情节线连线宽度
	ThreadStrokeWidth = 2
	// EdgeKind 画布连线样式
	EdgeKind = "smoothstep"
	// DefaultHandleColor 无情节线节点的默认连接点颜色
	DefaultHandleColor = "#888888"
)

// Project derives canvas nodes and edges from the two stores. It keeps no
// state: identical inputs always give identical output, edge ids included.
func Project(threads []models.PlotThread, scenes []models.Scene) models.Graph {
	ordered := cloneScenes(scenes)
	sortByOrder(ordered)

	g := models.Graph{
		Nodes: make([]models.GraphNode, 0, len(ordered)),
		Edges: []models.GraphEdge{},
	}
	for _, s := range ordered {
		g.Nodes = append(g.Nodes, projectNode(threads, s))
	}
	for _, t := range threads {
		g.Edges = append(g.Edges, threadEdges(t, ordered)...)
	}
	return g
}

// EdgeID is derived from the thread and both endpoints only. Each part is
// length-prefixed so ids containing '-' cannot collide.
func EdgeID(threadID, sourceID, targetID string) string {
	return fmt.Sprintf("edge-%d:%s-%d:%s-%d:%s",
		len(threadID), threadID, len(sourceID), sourceID, len(targetID), targetID)
}

// HandleID names the connection point of a thread on one side of a node.
func HandleID(side models.HandleSide, threadID string) string {
	return fmt.Sprintf("%s-%s", side, threadID)
}

// NodeLabel is "{order}. {title}".
func NodeLabel(s models.Scene) string {
	return fmt.Sprintf("%d. %s", s.Order, s.Title)
}

func projectNode(threads []models.PlotThread, s models.Scene) models.GraphNode {
	node := models.GraphNode{
		ID:      s.ID,
		Type:    s.Type(),
		Label:   NodeLabel(s),
		Threads: s.PlotThreads,
	}
	if node.Threads == nil {
		node.Threads = []string{}
	}
	if s.Position != nil {
		node.Position = *s.Position
	}

	var member []models.PlotThread
	for _, t := range threads {
		if s.HasThread(t.ID) {
			member = append(member, t)
		}
	}
	node.Handles = append(sideHandles(models.HandleLeft, member), sideHandles(models.HandleRight, member)...)
	return node
}

// sideHandles spreads one handle per thread evenly along a side; a node
// without threads gets a single default handle in the middle.
func sideHandles(side models.HandleSide, threads []models.PlotThread) []models.Handle {
	if len(threads) == 0 {
		return []models.Handle{{
			ID:            HandleID(side, "default"),
			Side:          side,
			Color:         DefaultHandleColor,
			OffsetPercent: 50,
		}}
	}
	handles := make([]models.Handle, 0, len(threads))
	for i, t := range threads {
		offset := 50.0
		if len(threads) > 1 {
			offset = float64(i) * 100 / float64(len(threads)-1)
		}
		handles = append(handles, models.Handle{
			ID:            HandleID(side, t.ID),
			Side:          side,
			ThreadID:      t.ID,
			Color:         t.Color,
			OffsetPercent: offset,
			Main:          t.IsMain,
		})
	}
	return handles
}

// threadEdges links consecutive scenes of one thread; ordered must already
// be sorted by order.
func threadEdges(t models.PlotThread, ordered []models.Scene) []models.GraphEdge {
	var members []models.Scene
	for _, s := range ordered {
		if s.HasThread(t.ID) {
			members = append(members, s)
		}
	}
	if len(members) < 2 {
		return nil
	}

	width := ThreadStrokeWidth
	if t.IsMain {
		width = MainStrokeWidth
	}
	edges := make([]models.GraphEdge, 0, len(members)-1)
	for i := 0; i < len(members)-1; i++ {
		src, dst := members[i], members[i+1]
		edges = append(edges, models.GraphEdge{
			ID:           EdgeID(t.ID, src.ID, dst.ID),
			ThreadID:     t.ID,
			Source:       src.ID,
			Target:       dst.ID,
			SourceHandle: HandleID(models.HandleRight, t.ID),
			TargetHandle: HandleID(models.HandleLeft, t.ID),
			Color:        t.Color,
			StrokeWidth:  width,
			Main:         t.IsMain,
			Animated:     true,
			Kind:         EdgeKind,
		})
	}
	return edges
}

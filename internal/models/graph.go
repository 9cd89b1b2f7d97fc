// internal/models/graph.go
package models

// HandleSide 连接点所在的节点侧
type HandleSide string

const (
	HandleLeft  HandleSide = "Left"
	HandleRight HandleSide = "Right"
)

// Handle 节点上的连接点，每条情节线每侧一个
type Handle struct {
	ID            string     `json:"id"`
	Side          HandleSide `json:"side"`
	ThreadID      string     `json:"threadId,omitempty"`
	Color         string     `json:"color"`
	OffsetPercent float64    `json:"offsetPercent"`
	Main          bool       `json:"main,omitempty"`
}

// GraphNode 画布节点，每个场景一个
type GraphNode struct {
	ID       string    `json:"id"`
	Type     SceneType `json:"type"`
	Label    string    `json:"label"`
	Position Position  `json:"position"`
	Threads  []string  `json:"threads"`
	Handles  []Handle  `json:"handles"`
}

// GraphEdge 同一情节线上相邻场景之间的连线
type GraphEdge struct {
	ID           string `json:"id"`
	ThreadID     string `json:"threadId"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle"`
	TargetHandle string `json:"targetHandle"`
	Color        string `json:"color"`
	StrokeWidth  int    `json:"strokeWidth"`
	Main         bool   `json:"main"`
	Animated     bool   `json:"animated"`
	Kind         string `json:"kind"`
}

// Graph 投影结果
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

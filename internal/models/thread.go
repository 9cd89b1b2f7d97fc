// internal/models/thread.go
package models

// PlotThread 表示一条情节线
type PlotThread struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	IsMain bool   `json:"isMain"`
	MDQ    string `json:"mdq,omitempty"` // main dramatic question
	LDQ    string `json:"ldq,omitempty"` // lesser dramatic question
}

// DefaultThreadColor 未指定颜色时使用
const DefaultThreadColor = "#000000"

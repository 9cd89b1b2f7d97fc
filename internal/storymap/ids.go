// internal/storymap/ids.go
package storymap

import (
	"github.com/google/uuid"
)

// NewSceneID returns a fresh, time-ordered scene id.
func NewSceneID() string {
	return "scene-" + newID()
}

// NewThreadID returns a fresh, time-ordered thread id.
func NewThreadID() string {
	return "thread-" + newID()
}

// NewMapID returns a fresh, time-ordered story map id.
func NewMapID() string {
	return "map-" + newID()
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

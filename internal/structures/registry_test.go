package structures

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Corphon/StoryMap/internal/utils"
)

func testLogger() *utils.Logger {
	return utils.NewLoggerFromZap(zap.NewNop())
}

const mysteryYAML = `
id: mystery
name: Whodunit
genre: Mystery
description: Crime, investigation, reveal.
common_threads:
  - {id: case, name: The Case, color: "#111111", is_main: true}
beats:
  - {id: reveal, name: The Reveal, percentage_position: 95, required_threads: [case]}
  - {id: crime, name: The Crime, percentage_position: 5}
`

func TestRegistryLoadsDefaults(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "missing"), testLogger())
	require.NoError(t, r.Load())

	ids := []string{}
	for _, s := range r.List() {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []string{"three-act", "save-the-cat", "heros-journey"}, ids)

	s, ok := r.Get("save-the-cat")
	require.True(t, ok)
	assert.Len(t, s.Beats, 15)
	assert.Equal(t, "opening-image", s.Beats[0].ID)
	assert.Len(t, s.CommonThreads, 2)
}

func TestRegistryDirectoryOverridesAndSkipsInvalid(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	write("mystery.yaml", mysteryYAML)
	write("override.yml", "id: three-act\nname: House Three Act\nbeats: []\n")
	write("broken.yaml", "id: [unterminated")
	write("nameless.yaml", "id: nameless\n")
	write("notes.txt", "id: ignored\nname: Ignored\n")

	r := NewRegistry(dir, testLogger())
	require.NoError(t, r.Load())

	assert.Len(t, r.List(), 4)

	m, ok := r.Get("mystery")
	require.True(t, ok)
	require.Len(t, m.Beats, 2)
	assert.Equal(t, "crime", m.Beats[0].ID, "beats sorted by position")
	assert.Equal(t, []string{}, m.Beats[0].RequiredThreads)

	three, _ := r.Get("three-act")
	assert.Equal(t, "House Three Act", three.Name)
	assert.Empty(t, three.Beats)

	_, ok = r.Get("nameless")
	assert.False(t, ok)
	_, ok = r.Get("ignored")
	assert.False(t, ok)
}

func TestParseStructureYAMLValidation(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", "  \n"},
		{"no id", "name: X\n"},
		{"duplicate beat", "id: x\nname: X\nbeats:\n  - {id: a, name: A}\n  - {id: a, name: B}\n"},
		{"beat without id", "id: x\nname: X\nbeats:\n  - {name: A}\n"},
		{"position out of range", "id: x\nname: X\nbeats:\n  - {id: a, name: A, percentage_position: 120}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStructureYAML([]byte(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestGetReturnsCopy(t *testing.T) {
	r := NewRegistry("", testLogger())
	require.NoError(t, r.Load())

	s, ok := r.Get("three-act")
	require.True(t, ok)
	s.Name = "changed"

	again, _ := r.Get("three-act")
	assert.NotEqual(t, "changed", again.Name)
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir, testLogger())
	require.NoError(t, r.Load())

	reloaded := make(chan struct{}, 4)
	w, err := NewWatcher(r, 30*time.Millisecond, func() {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "mystery.yaml"), []byte(mysteryYAML), 0644))

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("registry was not reloaded")
	}
	_, ok := r.Get("mystery")
	assert.True(t, ok)
}

func TestWatcherStopsWithContext(t *testing.T) {
	r := NewRegistry(t.TempDir(), testLogger())
	w, err := NewWatcher(r, 0, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Start(ctx), "second start is a no-op")
	cancel()

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	w.Stop()
}

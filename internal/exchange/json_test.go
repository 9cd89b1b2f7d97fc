package exchange

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/StoryMap/internal/errors"
	"github.com/Corphon/StoryMap/internal/models"
)

const sampleJSON = `{
  "scenes": [
    { "id": "scene-1", "order": 1, "title": "Scene 1", "description": "...",
      "plotThreads": ["thread1","thread2"], "position": {"x":100,"y":300}, "type": "local" },
    { "id": "scene-2", "title": "Ghosted", "plotThreads": ["ghost"] }
  ],
  "plotThreads": [
    { "id": "thread1", "name": "Main Plot", "color": "#ff0000", "isMain": true, "mdq": "Will she?", "ldq": "..." },
    { "id": "thread2" }
  ]
}`

func TestDecodeJSON(t *testing.T) {
	ds, err := DecodeJSON([]byte(sampleJSON))
	require.NoError(t, err)

	require.Len(t, ds.Scenes, 2)
	first := ds.Scenes[0]
	assert.Equal(t, 1, first.Order)
	assert.Equal(t, []string{"thread1", "thread2"}, first.PlotThreads)
	require.NotNil(t, first.Position)
	assert.Equal(t, models.Position{X: 100, Y: 300}, *first.Position)
	// stored type is ignored; derived from membership
	assert.Equal(t, models.SceneTypeExpress, first.Type())

	second := ds.Scenes[1]
	assert.Equal(t, 2, second.Order, "missing order falls back to index")
	assert.Nil(t, second.Position)
	assert.Equal(t, []string{"ghost"}, second.PlotThreads, "dangling ids survive import")

	require.Len(t, ds.PlotThreads, 2)
	assert.Equal(t, "Will she?", ds.PlotThreads[0].MDQ)
	assert.Equal(t, "Thread thread2", ds.PlotThreads[1].Name)
	assert.Equal(t, models.DefaultThreadColor, ds.PlotThreads[1].Color)
}

func TestDecodeJSONDefaultsMissingCollections(t *testing.T) {
	ds, err := DecodeJSON([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, ds.Scenes)
	assert.Empty(t, ds.PlotThreads)
	assert.NotNil(t, ds.Scenes)
}

func TestDecodeJSONGeneratesIDsAndDropsDuplicates(t *testing.T) {
	ds, err := DecodeJSON([]byte(`{"scenes":[{"title":"a"},{"id":"x"},{"id":"x","title":"dup"}],"plotThreads":[{"name":"n"}]}`))
	require.NoError(t, err)
	require.Len(t, ds.Scenes, 2)
	assert.True(t, strings.HasPrefix(ds.Scenes[0].ID, "scene-"))
	assert.Empty(t, ds.Scenes[1].Title)
	assert.True(t, strings.HasPrefix(ds.PlotThreads[0].ID, "thread-"))
}

func TestDecodeJSONRejectsMalformed(t *testing.T) {
	for _, in := range []string{``, `{"scenes":`, `null`, `[1,2]`, `{"scenes":[{"order":"first"}]}`} {
		_, err := DecodeJSON([]byte(in))
		assert.True(t, apperrors.IsValidationError(err), "input %q: %v", in, err)
	}
}

func TestEncodeJSONRoundTrip(t *testing.T) {
	ds, err := DecodeJSON([]byte(sampleJSON))
	require.NoError(t, err)

	out, err := EncodeJSON(ds)
	require.NoError(t, err)

	var raw map[string][]map[string]any
	require.NoError(t, json.Unmarshal(out, &raw))
	assert.Equal(t, "express", raw["scenes"][0]["type"])
	assert.Equal(t, "local", raw["scenes"][1]["type"])
	assert.Equal(t, true, raw["plotThreads"][0]["isMain"])

	back, err := DecodeJSON(out)
	require.NoError(t, err)
	assert.Equal(t, ds.PlotThreads, back.PlotThreads)
	assert.Equal(t, ds.Scenes[0], back.Scenes[0])
}

func TestEncodeJSONEmpty(t *testing.T) {
	out, err := EncodeJSON(models.Dataset{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"scenes":[],"plotThreads":[]}`, string(out))
}

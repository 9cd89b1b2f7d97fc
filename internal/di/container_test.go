package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter struct{ name string }

func TestContainer(t *testing.T) {
	c := NewContainer()
	c.Register("b", &greeter{name: "b"})
	c.Register("a", 42)

	assert.True(t, c.Has("a"))
	assert.Equal(t, []string{"a", "b"}, c.GetNames())
	assert.Nil(t, c.Get("missing"))

	g, err := Resolve[*greeter](c, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", g.name)

	_, err = Resolve[*greeter](c, "a")
	assert.Error(t, err)
	_, err = Resolve[*greeter](c, "missing")
	assert.Error(t, err)

	c.Remove("a")
	assert.False(t, c.Has("a"))
	c.Clear()
	assert.Empty(t, c.GetNames())
}

func TestGetContainerIsSingleton(t *testing.T) {
	assert.Same(t, GetContainer(), GetContainer())
}

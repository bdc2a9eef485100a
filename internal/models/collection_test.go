package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCollection(t *testing.T) {
	for _, c := range Collections() {
		parsed, err := ParseCollection(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}

	_, err := ParseCollection("users")
	assert.Error(t, err)

	_, err = ParseCollection("")
	assert.Error(t, err)
}

func TestCollection_DependsOn(t *testing.T) {
	assert.Empty(t, CollectionPages.DependsOn())
	assert.Equal(t, []Collection{CollectionPages}, CollectionWidgets.DependsOn())
	assert.Equal(t, []Collection{CollectionPages}, CollectionLinks.DependsOn())
	assert.Equal(t, []Collection{CollectionWidgets}, CollectionItems.DependsOn())
}

// Порядок Collections() должен удовлетворять зависимостям:
// каждая коллекция идет после всех, от кого зависит.
func TestCollections_DependencyOrder(t *testing.T) {
	position := make(map[Collection]int)
	for i, c := range Collections() {
		position[c] = i
	}

	for _, c := range Collections() {
		for _, dep := range c.DependsOn() {
			depPos, ok := position[dep]
			require.True(t, ok, "dependency %s not listed", dep)
			assert.Less(t, depPos, position[c], "%s must come after %s", c, dep)
		}
	}
}

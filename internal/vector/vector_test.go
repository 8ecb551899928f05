package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDimensionsForKnownModel(t *testing.T) {
	assert.Equal(t, 1536, DimensionsFor("3-small"))
	assert.Equal(t, 768, DimensionsFor("nomic-embed-text"))
}

func TestDimensionsForUnknownModel(t *testing.T) {
	assert.Equal(t, 0, DimensionsFor("some-new-model"))
}

func TestDimensionMismatchErrorMessage(t *testing.T) {
	err := &DimensionMismatchError{Collection: "cvcore_r1_ada-002", ExistingDims: 768, RequiredDims: 1536}
	assert.Contains(t, err.Error(), "cvcore_r1_ada-002")
	assert.Contains(t, err.Error(), "768")
	assert.Contains(t, err.Error(), "1536")
}

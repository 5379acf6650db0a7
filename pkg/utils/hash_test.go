package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashString(t *testing.T) {
	a := HashString("Pesquise prateleiras")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashString("  pesquise PRATELEIRAS "))
	assert.NotEqual(t, a, HashString("pesquise estantes"))
}

package placeholder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicIsStableByPrompt(t *testing.T) {
	a := Deterministic("a fox reading a book")
	b := Deterministic("a fox reading a book")
	c := Deterministic("a wolf reading a book")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, IsStock(a))
}

func TestRandomDiffers(t *testing.T) {
	assert.NotEqual(t, Random(), Random())
	assert.True(t, IsStock(Random()))
}

func TestFailureIsStableDataURI(t *testing.T) {
	f := Failure()
	assert.True(t, strings.HasPrefix(f, "data:image/"), f[:min(len(f), 32)])
	assert.Equal(t, f, Failure())
	assert.False(t, IsStock(f))
}

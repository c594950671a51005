package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomStringIsDeterministicPerSeed(t *testing.T) {
	a := CreateRandomStringGenerator(42)
	b := CreateRandomStringGenerator(42)

	for i := 0; i < 5; i++ {
		s := a.GetRandomString(6)
		assert.Len(t, s, 6)
		assert.Equal(t, s, b.GetRandomString(6))
	}
}

func TestRandomStringAvoidsAmbiguousLetters(t *testing.T) {
	s := CreateRandomStringGenerator(7).GetRandomString(512)
	assert.NotContains(t, s, "0")
	assert.NotContains(t, s, "l")
	assert.NotContains(t, s, "O")
	assert.NotContains(t, s, "I")
}

package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBestMatch_ExactAndNear(t *testing.T) {
	candidates := []string{"Thomas Hobbes", "John Locke", "David Hume"}

	m, ok := BestMatch("Thomas Hobbes", candidates)
	assert.True(t, ok)
	assert.Equal(t, "Thomas Hobbes", m.Candidate)
	assert.Equal(t, 100, m.Score)

	m, ok = BestMatch("Tom Hobs", candidates)
	assert.True(t, ok)
	assert.Equal(t, "Thomas Hobbes", m.Candidate)
	assert.Greater(t, m.Score, 50)
}

func TestBestMatch_EmptyCandidates(t *testing.T) {
	_, ok := BestMatch("anything", nil)
	assert.False(t, ok)
}

func TestBestMatch_NoPlausibleMatchStillReturnsBestScored(t *testing.T) {
	candidates := []string{"Immanuel Kant", "Baruch Spinoza"}
	m, ok := BestMatch("zzzzzzzzzzzz", candidates)
	assert.True(t, ok)
	assert.Less(t, m.Score, 50)
}

package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLetterGrade(t *testing.T) {
	cases := []struct {
		score    float64
		maxScore int
		want     string
	}{
		{95, 100, "A"},
		{90, 100, "A"},
		{85, 100, "B"},
		{72, 100, "C"},
		{60, 100, "D"},
		{59.5, 100, "F"},
		{0, 100, "F"},
		{135, 150, "A"},
		{50, 0, ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, letterGrade(tc.score, tc.maxScore), "score=%v max=%d", tc.score, tc.maxScore)
	}
}

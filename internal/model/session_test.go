package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeCoveredIsMonotonic(t *testing.T) {
	state := &SessionState{}

	state.MergeCovered([]int{0, 2})
	assert.Equal(t, []int{0, 2}, state.CoveredTopics)

	state.MergeCovered(nil)
	assert.Equal(t, []int{0, 2}, state.CoveredTopics)

	state.MergeCovered([]int{2, 0, 1})
	assert.Equal(t, []int{0, 2, 1}, state.CoveredTopics)
}

func TestCoveredSet(t *testing.T) {
	state := &SessionState{CoveredTopics: []int{0, 2, 2}}
	assert.Equal(t, map[int]bool{0: true, 2: true}, state.CoveredSet())

	empty := &SessionState{}
	assert.Empty(t, empty.CoveredSet())
}

package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
type: standard
lang: cpp
limits:
  time: 1.0
  real_time: 2.0
  memory: 262144
groups:
  - id: 0
    range: {first: 1, last: 2}
    cost: 100
    depends: []
`

func TestParseValidManifest(t *testing.T) {
	m, err := Parse([]byte(validYAML))
	require.NoError(t, err)
	assert.Equal(t, TypeStandard, m.Type)
	assert.Equal(t, LangCpp, m.Lang)
	assert.Len(t, m.Groups, 1)
	assert.True(t, m.Groups[0].Range.Contains(1))
	assert.True(t, m.Groups[0].Range.Contains(2))
	assert.False(t, m.Groups[0].Range.Contains(3))
}

func TestParseRejectsNonDenseGroupIDs(t *testing.T) {
	yaml := `
type: standard
lang: cpp
limits: {time: 1, real_time: 2, memory: 1024}
groups:
  - id: 5
    range: {first: 1, last: 1}
    cost: 1
`
	_, err := Parse([]byte(yaml))
	assert.Error(t, err)
}

func TestParseRejectsUnknownDependency(t *testing.T) {
	yaml := `
type: standard
lang: cpp
limits: {time: 1, real_time: 2, memory: 1024}
groups:
  - id: 0
    range: {first: 1, last: 1}
    cost: 1
    depends: [9]
`
	_, err := Parse([]byte(yaml))
	assert.Error(t, err)
}

func TestParseAllowsEmptyGroups(t *testing.T) {
	yaml := `
type: standard
lang: cpp
limits: {time: 1, real_time: 2, memory: 1024}
groups: []
`
	m, err := Parse([]byte(yaml))
	require.NoError(t, err)
	assert.Empty(t, m.Groups)
}

func TestParseRejectsUnknownLanguage(t *testing.T) {
	yaml := `
type: standard
lang: brainfuck
limits: {time: 1, real_time: 2, memory: 1024}
groups: []
`
	_, err := Parse([]byte(yaml))
	assert.Error(t, err)
}

func TestSingleTestRange(t *testing.T) {
	r := TestsRange{First: 3, Last: 3}
	assert.False(t, r.Contains(2))
	assert.True(t, r.Contains(3))
	assert.False(t, r.Contains(4))
}

package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedSite(t *testing.T) {
	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Zakaria Said", s.Owner.Name)
	require.Len(t, s.Counters, 4)
	assert.NotEmpty(t, s.Projects)
	assert.NotEmpty(t, s.Skills)
	assert.NotEmpty(t, s.Social)

	c, ok := s.Counter("completed")
	require.True(t, ok)
	assert.Equal(t, 15, c.Value)
	assert.Equal(t, "+", c.Suffix)
	assert.Zero(t, c.Duration)

	_, ok = s.Counter("missing")
	assert.False(t, ok)

	assert.Equal(t, "https://zakariast578.github.io/4-smart/", s.Projects[0].LiveURL)
	assert.Equal(t, "https://github.com/Zakariast578/4-smart", s.Projects[0].RepoURL)
	assert.Equal(t, 95, s.Skills[0].Progress)
	for _, sk := range s.Skills {
		assert.Positive(t, sk.Progress, sk.Title)
	}
}

func TestParseCounterDuration(t *testing.T) {
	s, err := Parse([]byte(`
owner: {name: Jane}
counters:
  - {key: a, label: A, value: 4, duration: 1500ms}
`))
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, s.Counters[0].Duration)
}

func TestParseRejectsInvalidCounters(t *testing.T) {
	cases := map[string]string{
		"no owner":  "counters: []",
		"no key":    "owner: {name: J}\ncounters: [{label: A, value: 1}]",
		"duplicate": "owner: {name: J}\ncounters: [{key: a, value: 1}, {key: a, value: 2}]",
		"negative":  "owner: {name: J}\ncounters: [{key: a, value: -1}]",
		"malformed": "owner: [",
		"progress":  "owner: {name: J}\nskills: [{title: Go, progress: 120}]",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestProjectCompleted(t *testing.T) {
	assert.True(t, Project{Status: "Completed"}.Completed())
	assert.False(t, Project{Status: "Pending"}.Completed())
}

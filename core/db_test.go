package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOrdering(t *testing.T) {
	tests := map[string][]DBOrdering{
		"":                     nil,
		"version":              {{Field: "version", Ascending: true}},
		"-version, created_at": {{Field: "version"}, {Field: "created_at", Ascending: true}},
		" , -effective_from,-": {{Field: "effective_from"}},
	}
	for raw, want := range tests {
		assert.Equal(t, want, ParseOrdering(raw), raw)
	}
}

func TestFilterOrdering(t *testing.T) {
	fields := []string{"version", "created_at"}
	fallback := DBOrdering{Field: "version"}

	got := FilterOrdering([]DBOrdering{{Field: "lol"}, {Field: "created_at", Ascending: true}}, fields, fallback)
	assert.Equal(t, []DBOrdering{{Field: "created_at", Ascending: true}}, got)

	got = FilterOrdering([]DBOrdering{{Field: "version; DROP TABLE marks"}}, fields, fallback)
	assert.Equal(t, []DBOrdering{fallback}, got)
	assert.Equal(t, "version DESC", got[0].String())
}

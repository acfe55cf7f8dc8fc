package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Recall ", "#recall", "", "HeelWork", "#", "sit"})
	assert.Equal(t, []string{"recall", "heelwork", "sit"}, got)

	many := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		many = append(many, string(rune('a'+i)))
	}
	assert.Len(t, NormalizeTags(many), MaxTagsPerPost)

	long := "#" + strings.Repeat("ü", MaxTagLen+1)
	assert.Equal(t, []string{"sit"}, NormalizeTags([]string{long, "sit"}))
	assert.Equal(t, []string{strings.Repeat("ü", MaxTagLen)}, NormalizeTags([]string{strings.Repeat("Ü", MaxTagLen)}))
}

func TestStringListRoundTripThroughDriverValue(t *testing.T) {
	v, err := StringList{"recall", "sit"}.Value()
	require.NoError(t, err)

	var l StringList
	require.NoError(t, l.Scan(v))
	assert.Equal(t, StringList{"recall", "sit"}, l)

	require.NoError(t, l.Scan(nil))
	assert.Nil(t, l)
	assert.Error(t, l.Scan(42))
}

func TestSummarizeAuthorFallsBackToSentinel(t *testing.T) {
	users := map[string]*User{"u1": {ID: "u1", Username: "rex"}}

	a := SummarizeAuthor("u1", users)
	assert.False(t, a.Deleted())
	assert.Equal(t, "rex", a.Username)

	gone := SummarizeAuthor("u2", users)
	assert.True(t, gone.Deleted())
	assert.Equal(t, DeletedAuthor("u2"), gone)
}
